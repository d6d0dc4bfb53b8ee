package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"mercator-hq/sentinel/pkg/cli"
	"mercator-hq/sentinel/pkg/policy/source"
)

var importFlags struct {
	rules  string
	db     string
	driver string
	redis  string
	prefix string
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Copy a rules tree into a document store",
	Long: `Copy every rule document under a rules directory into a SQLite database or
a Redis instance. Document keys are the paths relative to the rules directory,
so the store holds the same tree.

Documents are copied as they are; run lint first to catch invalid rules.

Examples:
  # Seed a SQLite store
  sentinel import --rules rules/ --db data/rules.db

  # Seed a shared Redis store under a custom prefix
  sentinel import --rules rules/ --redis redis://localhost:6379/0 --prefix team-a:rules:`,
	RunE: importRules,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVarP(&importFlags.rules, "rules", "r", "", "rules directory (default: discovered .sentinel/rules)")
	importCmd.Flags().StringVar(&importFlags.db, "db", "", "SQLite database path")
	importCmd.Flags().StringVar(&importFlags.driver, "driver", source.DriverModernc, "SQLite driver: sqlite, sqlite3")
	importCmd.Flags().StringVar(&importFlags.redis, "redis", "", "Redis URL")
	importCmd.Flags().StringVar(&importFlags.prefix, "prefix", "", "key prefix (Redis) or path prefix (SQLite)")

	importCmd.MarkFlagsMutuallyExclusive("db", "redis")
	importCmd.MarkFlagsOneRequired("db", "redis")
}

// documentStore is a writable rule document store.
type documentStore interface {
	Name() string
	Put(ctx context.Context, path string, data []byte) error
	Close() error
}

func importRules(cmd *cobra.Command, args []string) error {
	root, err := resolveRulesDir(importFlags.rules)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	logger := toolLogger()

	store, err := openStore(ctx, logger)
	if err != nil {
		return cli.NewCommandError("import", err)
	}
	defer store.Close()

	// The Redis source applies its key prefix itself.
	pathPrefix := importFlags.prefix
	if importFlags.redis != "" {
		pathPrefix = ""
	}

	n, err := importTree(ctx, source.NewFileSource(root, nil, logger), root, pathPrefix, store, stderr(cmd))
	if err != nil {
		return cli.NewCommandError("import", err)
	}

	fmt.Fprintf(stdout(cmd), "✓ Imported %d document(s) from %s into %s\n", n, root, store.Name())
	return nil
}

func openStore(ctx context.Context, logger *slog.Logger) (documentStore, error) {
	if importFlags.redis != "" {
		return source.NewRedisSource(ctx, source.RedisConfig{URL: importFlags.redis, Prefix: importFlags.prefix}, logger)
	}
	cfg := source.DefaultSQLiteConfig()
	cfg.Path = importFlags.db
	cfg.Driver = importFlags.driver
	return source.NewSQLiteSource(cfg, logger)
}

// importTree copies every document of src into store, keyed by its path
// relative to root and prefixed with pathPrefix. Progress goes to progressOut.
func importTree(ctx context.Context, src source.Source, root, pathPrefix string, store documentStore, progressOut io.Writer) (int, error) {
	var docs []source.Document
	err := src.Walk(ctx, func(doc source.Document) error {
		if doc.Err != nil {
			return fmt.Errorf("failed to read %s: %w", doc.Path, doc.Err)
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, fmt.Errorf("no rule documents found under %s", root)
	}

	progress := cli.NewProgressReporter(progressOut, "documents")
	progress.Start(int64(len(docs)))
	for _, doc := range docs {
		key := pathPrefix + documentKey(root, doc.Path)
		if err := store.Put(ctx, key, doc.Data); err != nil {
			progress.Error(err)
			return 0, err
		}
		progress.Increment()
	}
	progress.Finish()
	return len(docs), nil
}

// documentKey is path relative to root in slash form. A root that is itself
// a document keys by its base name.
func documentKey(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return filepath.Base(path)
	}
	return filepath.ToSlash(rel)
}
