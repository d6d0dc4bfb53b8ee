package source

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // cgo SQLite driver ("sqlite3")
	_ "modernc.org/sqlite"          // pure Go SQLite driver ("sqlite")
)

// SQLite drivers accepted by SQLiteConfig.Driver.
const (
	DriverModernc = "sqlite"
	DriverCgo     = "sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS rule_documents (
	path       TEXT PRIMARY KEY,
	content    BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// SQLiteConfig contains configuration for the SQLite document store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// Driver selects the database/sql driver: "sqlite" (pure Go, default)
	// or "sqlite3" (cgo).
	Driver string

	// Prefix restricts Walk to documents whose path starts with it.
	Prefix string

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:        "data/rules.db",
		Driver:      DriverModernc,
		BusyTimeout: 5 * time.Second,
	}
}

// SQLiteSource stores rule documents in a SQLite table. Document paths are
// hierarchical keys; Walk visits them ordered by path.
type SQLiteSource struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger

	walkStmt   *sql.Stmt
	putStmt    *sql.Stmt
	deleteStmt *sql.Stmt
}

// NewSQLiteSource opens (creating if needed) the document store.
func NewSQLiteSource(config *SQLiteConfig, logger *slog.Logger) (*SQLiteSource, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	driver := config.Driver
	if driver == "" {
		driver = DriverModernc
	}
	if driver != DriverModernc && driver != DriverCgo {
		return nil, fmt.Errorf("unsupported sqlite driver %q", driver)
	}
	if config.BusyTimeout == 0 {
		config.BusyTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open(driver, config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteSource{
		db:     db,
		config: config,
		logger: logger.With("component", "source.sqlite"),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	s.logger.Info("SQLite rule store opened", "path", config.Path, "driver", driver)
	return s, nil
}

func (s *SQLiteSource) initSchema() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds()),
		"PRAGMA synchronous=NORMAL;",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", strings.TrimSuffix(p, ";"), err)
		}
	}
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteSource) prepareStatements() error {
	var err error
	s.walkStmt, err = s.db.Prepare(`SELECT path, content FROM rule_documents WHERE path >= ? ORDER BY path`)
	if err != nil {
		return err
	}
	s.putStmt, err = s.db.Prepare(`
		INSERT INTO rule_documents (path, content, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at`)
	if err != nil {
		return err
	}
	s.deleteStmt, err = s.db.Prepare(`DELETE FROM rule_documents WHERE path = ?`)
	return err
}

// Name identifies the store.
func (s *SQLiteSource) Name() string {
	return "sqlite:" + s.config.Path
}

// Walk visits stored documents ordered by path. An empty store is reported
// as a missing root.
func (s *SQLiteSource) Walk(ctx context.Context, fn func(Document) error) error {
	rows, err := s.walkStmt.QueryContext(ctx, s.config.Prefix)
	if err != nil {
		return fmt.Errorf("failed to query rule documents: %w", err)
	}

	// Collect first so fn can run without holding the only connection.
	var docs []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.Path, &doc.Data); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan rule document: %w", err)
		}
		if !strings.HasPrefix(doc.Path, s.config.Prefix) {
			break
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("failed to read rule documents: %w", err)
	}
	rows.Close()

	if len(docs) == 0 {
		return fmt.Errorf("%w: %s", ErrRootNotFound, s.Name())
	}

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return nil
}

// Put stores or replaces a document.
func (s *SQLiteSource) Put(ctx context.Context, path string, data []byte) error {
	if _, err := s.putStmt.ExecContext(ctx, path, data, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to store %q: %w", path, err)
	}
	return nil
}

// Delete removes a document. Deleting a missing document is not an error.
func (s *SQLiteSource) Delete(ctx context.Context, path string) error {
	if _, err := s.deleteStmt.ExecContext(ctx, path); err != nil {
		return fmt.Errorf("failed to delete %q: %w", path, err)
	}
	return nil
}

// Ping checks the database connection.
func (s *SQLiteSource) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases prepared statements and the database handle.
func (s *SQLiteSource) Close() error {
	for _, stmt := range []*sql.Stmt{s.walkStmt, s.putStmt, s.deleteStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return s.db.Close()
}
