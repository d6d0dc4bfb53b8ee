package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/sentinel/pkg/config"
	"mercator-hq/sentinel/pkg/policy/git"
)

// GitMetrics exports the clone and pull counters of a git rule source. The
// values are read from the repository at scrape time.
//
// Metrics:
//   - sentinel_git_pulls_total: pulls by result (success, failure)
//   - sentinel_git_clone_duration_seconds: duration of the initial clone
//   - sentinel_git_pull_duration_seconds: duration of the last pull
//   - sentinel_git_last_pull_timestamp_seconds: time of the last pull
type GitMetrics struct {
	stats func() git.Metrics

	pullsTotal    *prometheus.Desc
	cloneDuration *prometheus.Desc
	pullDuration  *prometheus.Desc
	lastPull      *prometheus.Desc
}

// NewGitMetrics creates git metrics reading from stats.
func NewGitMetrics(cfg *config.MetricsConfig, stats func() git.Metrics) *GitMetrics {
	name := func(n string) string { return prometheus.BuildFQName(cfg.Namespace, "git", n) }
	return &GitMetrics{
		stats:         stats,
		pullsTotal:    prometheus.NewDesc(name("pulls_total"), "Total number of rules repository pulls by result", []string{"result"}, nil),
		cloneDuration: prometheus.NewDesc(name("clone_duration_seconds"), "Duration of the rules repository clone", nil, nil),
		pullDuration:  prometheus.NewDesc(name("pull_duration_seconds"), "Duration of the last rules repository pull", nil, nil),
		lastPull:      prometheus.NewDesc(name("last_pull_timestamp_seconds"), "Unix time of the last rules repository pull", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (gm *GitMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- gm.pullsTotal
	ch <- gm.cloneDuration
	ch <- gm.pullDuration
	ch <- gm.lastPull
}

// Collect implements prometheus.Collector.
func (gm *GitMetrics) Collect(ch chan<- prometheus.Metric) {
	m := gm.stats()
	ch <- prometheus.MustNewConstMetric(gm.pullsTotal, prometheus.CounterValue, float64(m.SuccessfulPulls), "success")
	ch <- prometheus.MustNewConstMetric(gm.pullsTotal, prometheus.CounterValue, float64(m.FailedPulls), "failure")
	ch <- prometheus.MustNewConstMetric(gm.cloneDuration, prometheus.GaugeValue, m.CloneDuration.Seconds())
	ch <- prometheus.MustNewConstMetric(gm.pullDuration, prometheus.GaugeValue, m.PullDuration.Seconds())

	var last float64
	if !m.LastPullTime.IsZero() {
		last = float64(m.LastPullTime.Unix())
	}
	ch <- prometheus.MustNewConstMetric(gm.lastPull, prometheus.GaugeValue, last)
}
