package source

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// FileConfig contains configuration for reading rule documents from disk.
type FileConfig struct {
	// MaxFileSize is the maximum document size in bytes (default: 10MB)
	MaxFileSize int64

	// Extensions is the list of rule document extensions (default: .yaml, .yml, .json)
	Extensions []string

	// FollowSymlinks controls whether to follow symbolic links (default: true)
	FollowSymlinks bool

	// SkipHidden controls whether to skip hidden files/directories (default: true)
	SkipHidden bool
}

// DefaultFileConfig returns the default file source configuration.
func DefaultFileConfig() *FileConfig {
	return &FileConfig{
		MaxFileSize:    10 * 1024 * 1024, // 10MB
		Extensions:     []string{".yaml", ".yml", ".json"},
		FollowSymlinks: true,
		SkipHidden:     true,
	}
}

// FileSource reads rule documents from a directory tree or a single file.
type FileSource struct {
	root   string
	config *FileConfig
	logger *slog.Logger
}

// NewFileSource creates a file source rooted at path.
func NewFileSource(path string, config *FileConfig, logger *slog.Logger) *FileSource {
	if config == nil {
		config = DefaultFileConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{
		root:   path,
		config: config,
		logger: logger.With("component", "source.file"),
	}
}

// Name returns the root path.
func (s *FileSource) Name() string {
	return s.root
}

// Root returns the root path.
func (s *FileSource) Root() string {
	return s.root
}

// Walk visits every rule document under the root in lexical order.
func (s *FileSource) Walk(ctx context.Context, fn func(Document) error) error {
	info, err := os.Stat(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrRootNotFound, s.root)
		}
		return &LoadError{Path: s.root, Message: "failed to access rules root", Cause: err}
	}

	var entries []entry
	if info.IsDir() {
		entries, err = s.collect(s.root)
		if err != nil {
			return err
		}
	} else {
		entries = []entry{{path: s.root}}
	}

	s.logger.Debug("collected rule documents", "root", s.root, "count", len(entries))

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc := Document{Path: e.path, Err: e.err}
		if e.err == nil {
			doc = s.read(e.path)
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return nil
}

// entry is a collected path. err is set for a subtree or file that could
// not be listed.
type entry struct {
	path string
	err  error
}

// read loads one document, reporting problems through Document.Err.
func (s *FileSource) read(path string) Document {
	info, err := os.Stat(path)
	if err != nil {
		msg := "failed to access file"
		if os.IsPermission(err) {
			msg = "permission denied"
		}
		return Document{Path: path, Err: &LoadError{Path: path, Message: msg, Cause: err}}
	}

	if !info.Mode().IsRegular() {
		return Document{Path: path, Err: &LoadError{Path: path, Message: "not a regular file"}}
	}

	if info.Size() > s.config.MaxFileSize {
		return Document{Path: path, Err: &LoadError{
			Path:    path,
			Message: fmt.Sprintf("file size %d bytes exceeds maximum %d bytes", info.Size(), s.config.MaxFileSize),
		}}
	}

	// #nosec G304 - rule paths come from operator configuration.
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{Path: path, Err: &LoadError{Path: path, Message: "failed to read file", Cause: err}}
	}

	if !utf8.Valid(data) {
		return Document{Path: path, Err: &LoadError{Path: path, Message: "file contains invalid UTF-8 encoding"}}
	}

	return Document{Path: path, Data: data}
}

// collect returns all rule document paths under dir in lexical order.
// Symlinked directories are descended into when FollowSymlinks is set;
// a directory reached twice through links is skipped. Only a failure to
// list dir itself is returned; anything below it becomes an errored entry.
func (s *FileSource) collect(dir string) ([]entry, error) {
	var files []entry
	visited := make(map[string]bool)
	if real, err := filepath.EvalSymlinks(dir); err == nil {
		visited[real] = true
	}

	var walk func(root, display string) error
	walk = func(root, display string) error {
		return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			shown := display
			if rel, relErr := filepath.Rel(root, path); relErr == nil && rel != "." {
				shown = filepath.Join(display, rel)
			}

			if err != nil {
				if path == dir {
					return err
				}
				s.logger.Warn("skipping unreadable path", "path", shown, "error", err)
				msg := "failed to read directory"
				if os.IsPermission(err) {
					msg = "permission denied"
				}
				files = append(files, entry{path: shown, err: &LoadError{Path: shown, Message: msg, Cause: err}})
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			// Skip hidden files/directories if configured
			if s.config.SkipHidden && strings.HasPrefix(d.Name(), ".") && path != root {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if d.IsDir() {
				return nil
			}

			if d.Type()&fs.ModeSymlink != 0 {
				if !s.config.FollowSymlinks {
					return nil
				}
				realPath, err := filepath.EvalSymlinks(path)
				if err != nil {
					s.logger.Warn("failed to resolve symlink", "path", shown, "error", err)
					return nil
				}
				target, err := os.Stat(realPath)
				if err != nil {
					s.logger.Warn("failed to access symlink target", "path", shown, "error", err)
					return nil
				}
				if target.IsDir() {
					if visited[realPath] {
						s.logger.Warn("symlink loop detected", "path", shown)
						return nil
					}
					visited[realPath] = true
					return walk(realPath, shown)
				}
				if visited[realPath] {
					return nil
				}
				visited[realPath] = true
				if s.hasValidExtension(realPath) || s.hasValidExtension(path) {
					files = append(files, entry{path: shown})
				}
				return nil
			}

			if !s.hasValidExtension(path) {
				return nil
			}
			files = append(files, entry{path: shown})
			return nil
		})
	}

	if err := walk(dir, dir); err != nil {
		return nil, &LoadError{Path: dir, Message: "failed to walk directory", Cause: err}
	}

	return files, nil
}

// hasValidExtension checks if the file has a rule document extension.
func (s *FileSource) hasValidExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, validExt := range s.config.Extensions {
		if ext == strings.ToLower(validExt) {
			return true
		}
	}
	return false
}
