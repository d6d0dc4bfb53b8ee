package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mercator-hq/sentinel/pkg/cli"
	"mercator-hq/sentinel/pkg/config"
	"mercator-hq/sentinel/pkg/policy/engine"
	"mercator-hq/sentinel/pkg/policy/git"
	"mercator-hq/sentinel/pkg/policy/repository"
	"mercator-hq/sentinel/pkg/policy/source"
	"mercator-hq/sentinel/pkg/security/secrets"
	"mercator-hq/sentinel/pkg/server"
	"mercator-hq/sentinel/pkg/telemetry/health"
	"mercator-hq/sentinel/pkg/telemetry/logging"
	"mercator-hq/sentinel/pkg/telemetry/metrics"
	"mercator-hq/sentinel/pkg/telemetry/tracing"
)

var serveFlags struct {
	rules         []string
	listenAddress string
	logLevel      string
	dryRun        bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the policy decision server",
	Long: `Start the policy decision server with the specified configuration.

The server loads rules from the configured store, answers evaluation requests
over HTTP, and keeps the rule set current through file watching or a reload
schedule.

Examples:
  # Start with default config and the discovered .sentinel/rules tree
  sentinel serve

  # Start with custom config
  sentinel serve --config /etc/sentinel/config.yaml

  # Serve a rules directory on another address
  sentinel serve --rules rules/ --listen 0.0.0.0:8080

  # Validate config without starting server
  sentinel serve --dry-run`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringSliceVarP(&serveFlags.rules, "rules", "r", nil, "rule paths (selects the file source)")
	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().StringVar(&serveFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	if err := applyServeFlags(cfg); err != nil {
		return err
	}

	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	if err := resolveCredentials(commandContext(cmd), cfg, logger); err != nil {
		return err
	}

	if serveFlags.dryRun {
		fmt.Fprintln(stdout(cmd), "✓ Configuration valid")
		return nil
	}

	ctx, stop := cli.SignalContext(commandContext(cmd))
	defer stop()

	svc, err := newService(ctx, cfg, logger)
	if err != nil {
		return cli.NewCommandError("serve", err)
	}
	defer svc.close()

	printBanner(stdout(cmd), cfg, svc)

	if err := svc.run(ctx); err != nil {
		return cli.NewCommandError("serve", err)
	}
	logger.Info("Server stopped")
	return nil
}

// applyServeFlags applies flag overrides and revalidates the result.
func applyServeFlags(cfg *config.Config) error {
	if len(serveFlags.rules) > 0 {
		cfg.Rules.Source = "file"
		cfg.Rules.Paths = serveFlags.rules
	}
	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}
	if serveFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = serveFlags.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError("", err.Error())
	}
	return nil
}

// resolveCredentials replaces secret references in rule store credentials.
func resolveCredentials(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	resolver, err := secrets.FromConfig(&cfg.Secrets, logger)
	if err != nil {
		return cli.NewConfigError("secrets.dir", err.Error())
	}
	if err := resolver.ResolveRuleCredentials(ctx, &cfg.Rules); err != nil {
		return cli.NewConfigError("rules", err.Error())
	}
	return nil
}

// service holds the running components of the server.
type service struct {
	cfg    *config.Config
	logger *slog.Logger

	sources    []source.Source
	closers    []io.Closer
	watchPaths []string

	repo      *repository.Repository
	evaluator *engine.Evaluator
	collector *metrics.Collector
	tracer    *tracing.Tracer
	scheduler *repository.Scheduler
	server    *server.Server
	checks    []string
}

func newService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (svc *service, err error) {
	s := &service{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			s.close()
		}
	}()

	s.sources, s.watchPaths, s.closers, err = buildSources(ctx, &cfg.Rules, logger)
	if err != nil {
		return nil, err
	}

	s.tracer, err = tracing.New(&cfg.Telemetry.Tracing, tracing.WithServiceVersion(Version))
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	var repoOpts []repository.Option
	if cfg.Telemetry.Metrics.Enabled {
		s.collector = metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry())
		repoOpts = append(repoOpts, repository.WithObserver(s.collector))
		for _, src := range s.sources {
			if gs, ok := src.(*git.Source); ok {
				if err := s.collector.RegisterGitSource(gs.Repository().Metrics); err != nil {
					return nil, fmt.Errorf("failed to register git metrics: %w", err)
				}
			}
		}
	}

	s.repo = repository.New(logger, repoOpts...)
	result, err := s.repo.Load(ctx, s.sources...)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	if cfg.Engine.StrictLoad && (len(result.Errors) > 0 || len(result.Conditions) > 0) {
		return nil, fmt.Errorf("rules loaded with %d error(s) and %d condition(s) in strict mode",
			len(result.Errors), len(result.Conditions))
	}

	evalOpts := []engine.Option{engine.WithTracer(s.tracer.Tracer())}
	if s.collector != nil {
		evalOpts = append(evalOpts, engine.WithObserver(s.collector))
	}
	s.evaluator, err = engine.NewEvaluator(engineConfig(&cfg.Engine), s.repo, logger, evalOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create evaluator: %w", err)
	}

	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
	checker.RegisterCheck("rules", health.LoadedCheck(s.repo))
	for _, src := range s.sources {
		if p, ok := src.(interface{ Ping(context.Context) error }); ok {
			checker.RegisterCheck("store", p.Ping)
		}
	}
	s.checks = checker.ListChecks()

	s.server, err = server.New(&cfg.Server, server.Dependencies{
		Evaluator:        s.evaluator,
		Rules:            s.repo,
		Metrics:          s.collector,
		Tracer:           s.tracer,
		Checker:          checker,
		Telemetry:        cfg.Telemetry,
		Version:          health.NewVersionInfo(Version, GitCommit, BuildDate),
		ExplainByDefault: cfg.Engine.Explain,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	if cfg.Rules.ReloadSchedule != "" {
		s.scheduler, err = repository.NewScheduler(s.repo, cfg.Rules.ReloadSchedule, logger)
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// engineConfig maps the engine section of the configuration onto the
// evaluator's configuration.
func engineConfig(cfg *config.EngineConfig) *engine.EngineConfig {
	ec := engine.DefaultEngineConfig().
		WithTrace(cfg.Trace).
		WithSlowEvaluationThreshold(cfg.SlowEvaluationThreshold)
	if len(cfg.DenyActions) > 0 {
		ec = ec.WithDenyActions(cfg.DenyActions...)
	}
	if cfg.MaxTaskRules > 0 {
		ec = ec.WithMaxTaskRules(cfg.MaxTaskRules)
	}
	return ec
}

// buildSources creates the rule sources named by the rules configuration.
// watchPaths are the file paths a watcher should follow; closers release
// store connections.
func buildSources(ctx context.Context, rc *config.RulesConfig, logger *slog.Logger) (sources []source.Source, watchPaths []string, closers []io.Closer, err error) {
	fileConfig := &source.FileConfig{
		MaxFileSize:    rc.MaxFileSize,
		Extensions:     rc.Extensions,
		FollowSymlinks: rc.FollowSymlinks,
		SkipHidden:     true,
	}
	if fileConfig.MaxFileSize == 0 || len(fileConfig.Extensions) == 0 {
		defaults := source.DefaultFileConfig()
		if fileConfig.MaxFileSize == 0 {
			fileConfig.MaxFileSize = defaults.MaxFileSize
		}
		if len(fileConfig.Extensions) == 0 {
			fileConfig.Extensions = defaults.Extensions
		}
	}

	switch rc.Source {
	case "", "file":
		paths := rc.Paths
		if len(paths) == 0 {
			if !rc.Discover {
				return nil, nil, nil, cli.NewConfigError("rules.paths", "no rule paths configured and discovery is disabled")
			}
			wd, err := os.Getwd()
			if err != nil {
				return nil, nil, nil, fmt.Errorf("failed to get working directory: %w", err)
			}
			rulesDir := rc.RulesDir
			if rulesDir == "" {
				rulesDir = source.DefaultRulesDir
			}
			root, found := source.FindRulesRoot(wd, rulesDir)
			if !found {
				logger.Warn("no rules directory found; serving without rules", "rules_dir", rulesDir, "start", wd)
			}
			paths = []string{root}
		}
		for _, p := range paths {
			sources = append(sources, source.NewFileSource(p, fileConfig, logger))
		}
		return sources, paths, nil, nil

	case "sqlite":
		src, err := source.NewSQLiteSource(&source.SQLiteConfig{
			Path:        rc.SQLite.Path,
			Driver:      rc.SQLite.Driver,
			Prefix:      rc.SQLite.Prefix,
			BusyTimeout: rc.SQLite.BusyTimeout,
		}, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open rule store: %w", err)
		}
		return []source.Source{src}, nil, []io.Closer{src}, nil

	case "redis":
		src, err := source.NewRedisSource(ctx, source.RedisConfig{
			URL:         rc.Redis.URL,
			Prefix:      rc.Redis.Prefix,
			DialTimeout: rc.Redis.DialTimeout,
		}, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to rule store: %w", err)
		}
		return []source.Source{src}, nil, []io.Closer{src}, nil

	case "git":
		repo, err := git.NewRepository(&rc.Git)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to configure rules repository: %w", err)
		}
		return []source.Source{git.NewSource(repo, fileConfig, rc.Git.PullOnReload, logger)}, nil, nil, nil

	default:
		return nil, nil, nil, cli.NewConfigError("rules.source", fmt.Sprintf("unsupported rule source %q", rc.Source))
	}
}

// run serves until ctx is cancelled or a component fails.
func (s *service) run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.server.Start(ctx)
	})

	if s.cfg.Rules.Watch && len(s.watchPaths) > 0 {
		g.Go(func() error {
			err := s.repo.Watch(ctx, s.watchPaths, &repository.FileWatcherConfig{
				DebounceInterval: s.cfg.Rules.DebounceInterval,
				Extensions:       s.cfg.Rules.Extensions,
				SkipHidden:       true,
			})
			if err != nil {
				// The server keeps running on the loaded rules.
				s.logger.Error("rule watcher stopped", "error", err)
			}
			return nil
		})
	}

	if s.scheduler != nil {
		if err := s.scheduler.Start(ctx); err != nil {
			s.logger.Warn("failed to start reload scheduler", "error", err)
		} else if next := s.scheduler.NextRun(); next != nil {
			s.logger.Info("Reload scheduler started", "schedule", s.cfg.Rules.ReloadSchedule, "next_run", next)
		}
	}

	return g.Wait()
}

func (s *service) close() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	if s.repo != nil {
		_ = s.repo.Close()
	}
	if s.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.tracer.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("failed to shut down tracer", "error", err)
		}
		cancel()
	}
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			s.logger.Warn("failed to close rule store", "error", err)
		}
	}
}

func printBanner(w io.Writer, cfg *config.Config, s *service) {
	stats := s.repo.Stats()
	fmt.Fprintf(w, "Sentinel %s\n", Version)
	fmt.Fprintf(w, "✓ Rules loaded (%d rules, version %s)\n", stats.RuleCount, s.repo.Version())
	fmt.Fprintf(w, "✓ Listening on %s\n", cfg.Server.ListenAddress)
	fmt.Fprintf(w, "✓ Readiness checks: %s\n", strings.Join(s.checks, ", "))
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Fprintf(w, "✓ Metrics endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Fprintln(w, "\nPress Ctrl+C to stop")
}
