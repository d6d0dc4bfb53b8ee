package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/sentinel/pkg/cli"
	"mercator-hq/sentinel/pkg/policy/repository"
	"mercator-hq/sentinel/pkg/policy/rule"
	"mercator-hq/sentinel/pkg/policy/source"
	"mercator-hq/sentinel/pkg/telemetry/logging"
)

func stdout(cmd *cobra.Command) io.Writer {
	if cmd == nil {
		return os.Stdout
	}
	return cmd.OutOrStdout()
}

func stderr(cmd *cobra.Command) io.Writer {
	if cmd == nil {
		return os.Stderr
	}
	return cmd.ErrOrStderr()
}

func commandContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}

// toolLogger is the logger for one-shot commands: console format on stderr,
// quiet unless --verbose.
func toolLogger() *slog.Logger {
	level := "warn"
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Config{Level: level, Format: string(logging.FormatConsole), Writer: os.Stderr})
	if err != nil {
		return slog.Default()
	}
	return logger
}

// resolveRulesDir returns dir, or the discovered .sentinel/rules tree when
// dir is empty.
func resolveRulesDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	root, found := source.FindRulesRoot(wd, source.DefaultRulesDir)
	if !found {
		return "", cli.NewConfigError("rules", fmt.Sprintf("no %s directory found; pass --rules", source.DefaultRulesDir))
	}
	return root, nil
}

// loadRuleTree loads the rules under dir into a new repository. A missing
// tree is a configuration error for one-shot commands.
func loadRuleTree(ctx context.Context, dir string, logger *slog.Logger) (*repository.Repository, *repository.LoadResult, error) {
	dir, err := resolveRulesDir(dir)
	if err != nil {
		return nil, nil, err
	}

	repo := repository.New(logger)
	result, err := repo.Load(ctx, source.NewFileSource(dir, nil, logger))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load rules from %s: %w", dir, err)
	}
	if len(result.Conditions) > 0 {
		return nil, nil, cli.NewConfigError("rules", fmt.Sprintf("rules path not found: %s", dir))
	}
	return repo, result, nil
}

// parseObject decodes a JSON object flag. A value starting with "@" names a
// file holding the object.
func parseObject(flag, value string) (map[string]any, error) {
	if value == "" {
		return map[string]any{}, nil
	}
	data := []byte(value)
	if path, ok := strings.CutPrefix(value, "@"); ok {
		var err error
		// #nosec G304 - reading a user-named input file is the purpose of the flag.
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read --%s file: %w", flag, err)
		}
	}

	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, cli.NewConfigError(flag, fmt.Sprintf("must be a JSON object: %v", err))
	}
	if obj == nil {
		obj = map[string]any{}
	}
	return obj, nil
}

// loadTaskRules reads call-scoped rules from a rule document. Any rejected
// record fails the command.
func loadTaskRules(path string) ([]rule.Rule, error) {
	if path == "" {
		return nil, nil
	}
	// #nosec G304 - reading a user-named rule document is the purpose of the flag.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read task rules: %w", err)
	}

	parsed, err := source.Parse(source.Document{Path: path, Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to parse task rules: %w", err)
	}
	list := &source.ErrorList{}
	for _, e := range parsed.Errors {
		list.Add(e)
	}
	if list.HasErrors() {
		return nil, fmt.Errorf("invalid task rules: %w", list.ToError())
	}

	// Call-scoped rules have no source document.
	for i := range parsed.Rules {
		parsed.Rules[i].Source = ""
	}
	return parsed.Rules, nil
}
