package git

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"mercator-hq/sentinel/pkg/policy/source"
)

// Source exposes the rules directory of a git checkout as a rule source.
// The first walk clones; later walks pull when pullOnWalk is set. Clone and
// pull failures are returned from Walk, so a failed pull keeps the previously
// loaded rules active.
type Source struct {
	repo       *Repository
	fileConfig *source.FileConfig
	pullOnWalk bool
	logger     *slog.Logger

	mu     sync.Mutex
	cloned bool
}

// NewSource creates a git-backed source. fileConfig controls how documents
// inside the checkout are read; hidden entries, including .git, are always
// skipped.
func NewSource(repo *Repository, fileConfig *source.FileConfig, pullOnWalk bool, logger *slog.Logger) *Source {
	if fileConfig == nil {
		fileConfig = source.DefaultFileConfig()
	}
	fc := *fileConfig
	fc.SkipHidden = true
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		repo:       repo,
		fileConfig: &fc,
		pullOnWalk: pullOnWalk,
		logger:     logger.With("component", "source.git"),
	}
}

// Name identifies the remote and branch.
func (s *Source) Name() string {
	return fmt.Sprintf("git:%s@%s", s.repo.URL(), s.repo.Branch())
}

// Repository returns the checkout backing the source.
func (s *Source) Repository() *Repository {
	return s.repo
}

// Walk syncs the checkout and visits the documents under the rules path.
func (s *Source) Walk(ctx context.Context, fn func(source.Document) error) error {
	if err := s.sync(ctx); err != nil {
		return err
	}
	return source.NewFileSource(s.repo.RulesPath(), s.fileConfig, s.logger).Walk(ctx, fn)
}

func (s *Source) sync(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cloned {
		if err := s.repo.Clone(ctx); err != nil {
			return err
		}
		s.cloned = true

		attrs := []any{"repository", s.repo.URL(), "branch", s.repo.Branch()}
		if commit, err := s.repo.CurrentCommit(); err == nil {
			attrs = append(attrs, "commit", shortSHA(commit.SHA))
		}
		s.logger.Info("Rules repository ready", attrs...)
		return nil
	}

	if !s.pullOnWalk {
		return nil
	}

	result, err := s.repo.Pull(ctx)
	if err != nil {
		return err
	}
	if result.HadChanges {
		s.logger.Info("Rules repository updated",
			"from", shortSHA(result.FromSHA),
			"to", shortSHA(result.ToSHA),
			"changed_files", len(result.ChangedFiles),
		)
	} else {
		s.logger.Debug("rules repository up to date", "commit", shortSHA(result.ToSHA))
	}
	return nil
}

// Commit returns the checked-out commit, or nil before the first walk.
func (s *Source) Commit() *CommitInfo {
	commit, err := s.repo.CurrentCommit()
	if err != nil {
		return nil
	}
	return commit
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
