package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/sentinel/pkg/cli"
	"mercator-hq/sentinel/pkg/policy/rule"
	"mercator-hq/sentinel/pkg/policy/source"
)

var lintFlags struct {
	rules  string
	strict bool
	format string
}

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Validate rule documents",
	Long: `Validate every rule document under a rules directory.

Each document is parsed the way the server loads it and reported with:
  - syntax errors (document ignored)
  - rejected rules (missing rule_id or action, undecodable fields)
  - warnings on admitted rules (unknown priority, missing trigger,
    ambiguous all/any conditions, duplicate rule_ids)

Examples:
  # Lint the discovered .sentinel/rules tree
  sentinel lint

  # Lint a directory
  sentinel lint --rules rules/

  # Strict mode (warnings as errors)
  sentinel lint --rules rules/ --strict

  # JSON output for CI/CD
  sentinel lint --rules rules/ --format json`,
	RunE: lintRules,
}

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().StringVarP(&lintFlags.rules, "rules", "r", "", "rules directory or file (default: discovered .sentinel/rules)")
	lintCmd.Flags().BoolVar(&lintFlags.strict, "strict", false, "treat warnings as errors")
	lintCmd.Flags().StringVar(&lintFlags.format, "format", "text", "output format: text, json")
}

// DocumentResult is the lint outcome for one rule document.
type DocumentResult struct {
	Document string   `json:"document"`
	Valid    bool     `json:"valid"`
	Rules    int      `json:"rules"`
	Skipped  int      `json:"skipped,omitempty"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// LintReport is the lint outcome for a rules tree.
type LintReport struct {
	Root      string           `json:"root"`
	Documents []DocumentResult `json:"documents"`
	Rules     int              `json:"rules"`
	Errors    int              `json:"errors"`
	Warnings  int              `json:"warnings"`
}

func lintRules(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(lintFlags.format, cli.FormatText, cli.FormatJSON)
	if err != nil {
		return err
	}
	root, err := resolveRulesDir(lintFlags.rules)
	if err != nil {
		return err
	}

	report, err := lintTree(commandContext(cmd), source.NewFileSource(root, nil, toolLogger()), toolLogger())
	if err != nil {
		return cli.NewCommandError("lint", err)
	}

	if err := cli.NewFormatter(format).FormatTo(stdout(cmd), report); err != nil {
		return err
	}

	if report.Errors > 0 {
		return cli.NewCommandError("lint", fmt.Errorf("validation failed: %d error(s)", report.Errors))
	}
	if lintFlags.strict && report.Warnings > 0 {
		return cli.NewCommandError("lint", fmt.Errorf("validation failed: %d warning(s) in strict mode", report.Warnings))
	}
	return nil
}

// lintTree parses every document of src and reports per-document findings.
// Duplicate rule_ids are reported on the later document.
func lintTree(ctx context.Context, src source.Source, logger *slog.Logger) (*LintReport, error) {
	report := &LintReport{Root: src.Name(), Documents: []DocumentResult{}}
	seen := make(map[string]string)

	err := src.Walk(ctx, func(doc source.Document) error {
		res := DocumentResult{Document: doc.Path, Valid: true}

		parsed, err := source.Parse(doc)
		if err != nil {
			logger.Debug("failed to parse document", "path", doc.Path, "error", err)
			res.Valid = false
			res.Errors = append(res.Errors, err.Error())
		} else {
			res.Rules = len(parsed.Rules)
			res.Skipped = parsed.Skipped
			for _, e := range parsed.Errors {
				res.Valid = false
				res.Errors = append(res.Errors, describeRuleError(e))
			}
			res.Warnings = append(res.Warnings, parsed.Warnings...)
			for _, r := range parsed.Rules {
				if first, dup := seen[r.RuleID]; dup {
					res.Warnings = append(res.Warnings,
						fmt.Sprintf("%s: %s: duplicate rule_id, first defined in %s", doc.Path, r.RuleID, first))
					continue
				}
				seen[r.RuleID] = doc.Path
			}
		}

		report.Rules += res.Rules
		report.Errors += len(res.Errors)
		report.Warnings += len(res.Warnings)
		report.Documents = append(report.Documents, res)
		return nil
	})
	if errors.Is(err, source.ErrRootNotFound) {
		return nil, cli.NewConfigError("rules", fmt.Sprintf("rules path not found: %s", src.Name()))
	}
	if err != nil {
		return nil, err
	}
	return report, nil
}

func describeRuleError(err error) string {
	var verr *rule.ValidationError
	if errors.As(err, &verr) && verr.RuleID != "" {
		return fmt.Sprintf("rule %s rejected: %s", verr.RuleID, strings.Join(verr.Problems, "; "))
	}
	return err.Error()
}

// RenderText prints the report the way lint prints it on a terminal.
func (r *LintReport) RenderText(w io.Writer) error {
	for _, doc := range r.Documents {
		fmt.Fprintf(w, "Validating %s...\n", doc.Document)

		if len(doc.Errors) == 0 && len(doc.Warnings) == 0 {
			fmt.Fprintf(w, "✓ %d rule(s) valid\n", doc.Rules)
		}
		for _, e := range doc.Errors {
			fmt.Fprintf(w, "✗ Error: %s\n", e)
		}
		for _, warn := range doc.Warnings {
			fmt.Fprintf(w, "⚠  Warning: %s\n", warn)
		}
		if doc.Skipped > 0 {
			fmt.Fprintf(w, "  %d non-rule item(s) ignored\n", doc.Skipped)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "Summary:")
	_, err := fmt.Fprintf(w, "  %d document(s), %d rule(s), %d error(s), %d warning(s)\n",
		len(r.Documents), r.Rules, r.Errors, r.Warnings)
	return err
}
