package source

import (
	"os"
	"path/filepath"
)

// DefaultRulesDir is the directory searched for by FindRulesRoot.
const DefaultRulesDir = ".sentinel/rules"

// FindRulesRoot searches start and its ancestors for a directory named
// rulesDir and returns the first match. When none exists it returns
// start/rulesDir and false; loading from that path then reports a missing
// root instead of failing.
func FindRulesRoot(start, rulesDir string) (string, bool) {
	if rulesDir == "" {
		rulesDir = DefaultRulesDir
	}
	abs, err := filepath.Abs(start)
	if err != nil {
		return filepath.Join(start, rulesDir), false
	}

	dir := abs
	for {
		candidate := filepath.Join(dir, rulesDir)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return filepath.Join(abs, rulesDir), false
}
