// Package git serves rule documents from a git repository.
//
// A Repository manages the local checkout (clone, fast-forward pull, commit
// metadata). A Source wraps it as a source.Source: the first walk clones, later
// walks pull, and documents are read from the configured sub-path.
//
//	repo, err := git.NewRepository(&cfg.Rules.Git)
//	if err != nil {
//		return err
//	}
//	src := git.NewSource(repo, nil, cfg.Rules.Git.PullOnReload, logger)
//	result, err := rules.Load(ctx, src)
//
// Sources are not watched; pair them with repository.Scheduler to pull on a
// cron schedule.
//
// # Authentication
//
//   - token: HTTPS basic auth with a personal access token
//   - ssh: private key file, optionally encrypted
//   - none: public or local repositories
package git
