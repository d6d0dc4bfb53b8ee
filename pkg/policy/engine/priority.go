package engine

import (
	"sort"

	"mercator-hq/sentinel/pkg/policy/rule"
)

// Priority ranks. Lower ranks are evaluated first.
const (
	RankCritical = 0
	RankHigh     = 1
	RankMedium   = 2
	RankLow      = 3
	RankUnknown  = 4
)

// PriorityRank returns the evaluation rank for a priority string.
// Unknown or empty priorities rank after LOW.
func PriorityRank(priority string) int {
	switch priority {
	case rule.PriorityCritical:
		return RankCritical
	case rule.PriorityHigh:
		return RankHigh
	case rule.PriorityMedium:
		return RankMedium
	case rule.PriorityLow:
		return RankLow
	default:
		return RankUnknown
	}
}

// SortByPriority sorts rules by priority rank in place.
// Rules of equal rank keep their relative order.
func SortByPriority(rules []rule.Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		return PriorityRank(rules[i].Priority) < PriorityRank(rules[j].Priority)
	})
}

type candidate struct {
	rule rule.Rule
	task bool
}

// candidates concatenates task rules and repository rules into a new slice
// and sorts it by priority, leaving both inputs untouched.
func candidates(taskRules, repoRules []rule.Rule) []candidate {
	out := make([]candidate, 0, len(taskRules)+len(repoRules))
	for _, r := range taskRules {
		out = append(out, candidate{rule: r, task: true})
	}
	for _, r := range repoRules {
		out = append(out, candidate{rule: r})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return PriorityRank(out[i].rule.Priority) < PriorityRank(out[j].rule.Priority)
	})
	return out
}
