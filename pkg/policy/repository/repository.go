package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"mercator-hq/sentinel/pkg/policy/rule"
	"mercator-hq/sentinel/pkg/policy/source"
)

// ParseFunc turns a document into rule records.
type ParseFunc func(source.Document) (*source.ParseResult, error)

// Repository is a thread-safe store for the active rule set.
// It uses copy-on-write semantics for atomic updates.
type Repository struct {
	logger   *slog.Logger
	observer Observer
	parse    ParseFunc

	// loadMu serializes loads so snapshots are installed in call order.
	loadMu sync.Mutex

	mu      sync.RWMutex
	roots   []source.Source
	rules   []rule.Rule
	version string
	stats   Stats
	loaded  bool

	watchMu     sync.Mutex
	watchCancel context.CancelFunc
}

// New creates an empty repository.
func New(logger *slog.Logger, opts ...Option) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Repository{
		logger:  logger.With("component", "repository"),
		parse:   source.Parse,
		version: computeVersion(nil),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load reads every document of every root, in the order given, and installs
// the admitted rules as the active snapshot. The roots are remembered for
// Reload.
//
// Per-document failures and missing roots are reported in the result. An
// error is returned only when the load could not complete (cancellation or a
// failing source); the previous snapshot then stays active.
func (r *Repository) Load(ctx context.Context, roots ...source.Source) (*LoadResult, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("no rule sources configured")
	}

	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	r.logger.Info("Loading rules", "sources", sourceNames(roots))

	result, err := r.scan(ctx, roots)
	if err != nil {
		r.logger.Error("Failed to load rules", "error", err)
		r.observe(nil, err)
		return nil, err
	}

	r.mu.Lock()
	r.roots = append([]source.Source(nil), roots...)
	r.install(result, false)
	r.mu.Unlock()

	r.logger.Info("Rules loaded successfully",
		"count", result.RuleCount,
		"documents", result.DocumentCount,
		"errors", len(result.Errors),
		"version", result.Version,
		"duration_ms", result.Duration.Milliseconds(),
	)
	r.observe(result, nil)
	return result, nil
}

// Reload re-runs Load against the remembered roots and swaps the snapshot.
// On failure the previous rules remain active.
func (r *Repository) Reload(ctx context.Context) (*LoadResult, error) {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	// Roots are read under loadMu so a concurrent Load with new roots is
	// never overwritten by a snapshot of the old ones.
	r.mu.RLock()
	roots := r.roots
	loaded := r.loaded
	r.mu.RUnlock()
	if !loaded {
		return nil, ErrNotLoaded
	}

	r.logger.Info("Reloading rules", "sources", sourceNames(roots))

	result, err := r.scan(ctx, roots)
	if err != nil {
		r.logger.Error("Failed to reload rules, keeping previous rules", "error", err)
		r.observe(nil, err)
		return nil, err
	}

	r.mu.Lock()
	r.install(result, true)
	r.mu.Unlock()

	r.logger.Info("Rules reloaded successfully",
		"count", result.RuleCount,
		"errors", len(result.Errors),
		"version", result.Version,
		"duration_ms", result.Duration.Milliseconds(),
	)
	r.observe(result, nil)
	return result, nil
}

// Scan loads roots without touching the active snapshot. It backs dry-run
// validation such as linting.
func (r *Repository) Scan(ctx context.Context, roots ...source.Source) (*LoadResult, error) {
	return r.scan(ctx, roots)
}

// install swaps in the scanned rules. Caller holds r.mu.
func (r *Repository) install(result *LoadResult, reload bool) {
	r.rules = result.Rules
	r.version = result.Version
	r.loaded = true
	r.stats.RuleCount = result.RuleCount
	r.stats.Version = result.Version
	r.stats.LoadedAt = time.Now()
	r.stats.LastDuration = result.Duration
	r.stats.LastErrors = len(result.Errors)
	if reload {
		r.stats.Reloads++
	}
}

func (r *Repository) scan(ctx context.Context, roots []source.Source) (*LoadResult, error) {
	start := time.Now()
	result := &LoadResult{}

	for _, root := range roots {
		err := root.Walk(ctx, func(doc source.Document) error {
			result.DocumentCount++
			parsed, err := r.parse(doc)
			if err != nil {
				r.logger.Warn("skipping rule document", "path", doc.Path, "error", err)
				result.Errors = append(result.Errors, err)
				return nil
			}
			for _, rerr := range parsed.Errors {
				r.logger.Warn("skipping rule", "path", doc.Path, "error", rerr)
			}
			result.Rules = append(result.Rules, parsed.Rules...)
			result.Errors = append(result.Errors, parsed.Errors...)
			result.Warnings = append(result.Warnings, parsed.Warnings...)
			return nil
		})

		switch {
		case err == nil:
		case errors.Is(err, source.ErrRootNotFound):
			r.logger.Warn("rules path not found", "source", root.Name())
			result.Conditions = append(result.Conditions, "rules path not found: "+root.Name())
		default:
			return nil, fmt.Errorf("load %s: %w", root.Name(), err)
		}
	}

	result.Warnings = append(result.Warnings, duplicateWarnings(result.Rules)...)
	result.RuleCount = len(result.Rules)
	result.Version = computeVersion(result.Rules)
	result.Duration = time.Since(start)
	return result, nil
}

func (r *Repository) observe(result *LoadResult, err error) {
	if r.observer != nil {
		r.observer.ObserveLoad(result, err)
	}
}

// Rules returns the active snapshot in load order. The slice is shared and
// must not be modified.
func (r *Repository) Rules() []rule.Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rules[:len(r.rules):len(r.rules)]
}

// Version returns the identifier of the active rule set.
func (r *Repository) Version() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Stats returns a summary of the repository state.
func (r *Repository) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

// Loaded reports whether a Load has completed.
func (r *Repository) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// Lookup returns the first rule with the given ID.
func (r *Repository) Lookup(ruleID string) (rule.Rule, bool) {
	for _, rl := range r.Rules() {
		if rl.RuleID == ruleID {
			return rl, true
		}
	}
	return rule.Rule{}, false
}

// Watch reloads the repository whenever rule documents under paths change.
// It blocks until ctx is cancelled or Close is called.
func (r *Repository) Watch(ctx context.Context, paths []string, config *FileWatcherConfig) error {
	r.watchMu.Lock()
	if r.watchCancel != nil {
		r.watchMu.Unlock()
		return ErrWatchRunning
	}
	watchCtx, cancel := context.WithCancel(ctx)
	r.watchCancel = cancel
	r.watchMu.Unlock()

	defer func() {
		r.watchMu.Lock()
		r.watchCancel = nil
		r.watchMu.Unlock()
		cancel()
	}()

	if config == nil {
		config = DefaultFileWatcherConfig()
	}
	cfg := *config
	cfg.Paths = paths

	watcher, err := NewFileWatcher(&cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	return watcher.Watch(watchCtx, func() error {
		_, err := r.Reload(watchCtx)
		return err
	})
}

// Close stops a running Watch.
func (r *Repository) Close() error {
	r.watchMu.Lock()
	defer r.watchMu.Unlock()
	if r.watchCancel != nil {
		r.watchCancel()
		r.watchCancel = nil
	}
	return nil
}

// computeVersion hashes the (rule_id, source) sequence of a rule set.
func computeVersion(rules []rule.Rule) string {
	h := sha256.New()
	for _, rl := range rules {
		h.Write([]byte(rl.RuleID))
		h.Write([]byte{0})
		h.Write([]byte(rl.Source))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// duplicateWarnings reports rule IDs defined more than once. All copies stay
// active; evaluation order decides which one fires.
func duplicateWarnings(rules []rule.Rule) []string {
	locations := make(map[string][]string)
	for _, rl := range rules {
		locations[rl.RuleID] = append(locations[rl.RuleID], rl.Source)
	}

	var warnings []string
	for id, sources := range locations {
		if len(sources) > 1 {
			warnings = append(warnings, fmt.Sprintf("duplicate rule_id %q defined %d times: %s",
				id, len(sources), strings.Join(sources, ", ")))
		}
	}
	sort.Strings(warnings)
	return warnings
}

func sourceNames(roots []source.Source) []string {
	names := make([]string, len(roots))
	for i, root := range roots {
		names[i] = root.Name()
	}
	return names
}
