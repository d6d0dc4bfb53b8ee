package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mercator-hq/sentinel/pkg/cli"
	"mercator-hq/sentinel/pkg/policy/engine"
	"mercator-hq/sentinel/pkg/policy/rule"
)

var testFlags struct {
	rules     string
	testsFile string
	format    string
}

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Run rule test cases",
	Long: `Evaluate test cases against a rules directory and compare the decisions
with the expected ones.

Test Case Format (YAML):
  tests:
    - name: "Large unverified transfer is blocked"
      action:
        type: transfer
        amount: 5000
      context:
        type: financial
        user: {verified: false}
      task_rules: []          # optional call-scoped rules
      expect:
        allowed: false
        triggered_rule: FIN-001   # optional
        message: "..."            # optional

Examples:
  sentinel test --rules rules/ --tests rule_tests.yaml
  sentinel test --tests rule_tests.yaml --format json`,
	RunE: runTests,
}

func init() {
	rootCmd.AddCommand(testCmd)

	testCmd.Flags().StringVarP(&testFlags.rules, "rules", "r", "", "rules directory (default: discovered .sentinel/rules)")
	testCmd.Flags().StringVarP(&testFlags.testsFile, "tests", "t", "", "test case file")
	testCmd.Flags().StringVar(&testFlags.format, "format", "text", "output format: text, json")

	// Mark required flags - panic if this fails as it's a programming error
	if err := testCmd.MarkFlagRequired("tests"); err != nil {
		panic(fmt.Sprintf("failed to mark tests flag as required: %v", err))
	}
}

// TestSuite represents a collection of test cases.
type TestSuite struct {
	Tests []TestCase `yaml:"tests"`
}

// TestCase represents a single rule test case.
type TestCase struct {
	Name      string          `yaml:"name"`
	Action    map[string]any  `yaml:"action"`
	Context   map[string]any  `yaml:"context"`
	TaskRules []rule.Rule     `yaml:"task_rules"`
	Expect    TestExpectation `yaml:"expect"`
}

// TestExpectation represents the expected decision of a test case.
type TestExpectation struct {
	Allowed       *bool  `yaml:"allowed"`
	TriggeredRule string `yaml:"triggered_rule,omitempty"`
	Message       string `yaml:"message,omitempty"`
}

// TestResult represents the result of executing a single test case.
type TestResult struct {
	Name     string          `json:"name"`
	Passed   bool            `json:"passed"`
	Failures []string        `json:"failures,omitempty"`
	Decision engine.Decision `json:"decision"`
	Duration time.Duration   `json:"duration_ns"`
}

// TestReport summarizes a test run.
type TestReport struct {
	RulesVersion string       `json:"rules_version"`
	Results      []TestResult `json:"results"`
	Passed       int          `json:"passed"`
	Failed       int          `json:"failed"`
}

func runTests(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(testFlags.format, cli.FormatText, cli.FormatJSON)
	if err != nil {
		return err
	}

	suite, err := loadTestCases(testFlags.testsFile)
	if err != nil {
		return cli.NewCommandError("test", fmt.Errorf("failed to load test cases: %w", err))
	}
	if len(suite.Tests) == 0 {
		return cli.NewCommandError("test", fmt.Errorf("no test cases found in %s", testFlags.testsFile))
	}

	ctx := commandContext(cmd)
	logger := toolLogger()
	repo, _, err := loadRuleTree(ctx, testFlags.rules, logger)
	if err != nil {
		return err
	}

	evaluator, err := engine.NewEvaluator(nil, repo, logger)
	if err != nil {
		return cli.NewCommandError("test", fmt.Errorf("failed to create evaluator: %w", err))
	}

	report := &TestReport{RulesVersion: repo.Version(), Results: make([]TestResult, 0, len(suite.Tests))}
	for _, tc := range suite.Tests {
		result := runTestCase(ctx, evaluator, tc)
		if result.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
		report.Results = append(report.Results, result)
	}

	if err := cli.NewFormatter(format).FormatTo(stdout(cmd), report); err != nil {
		return err
	}
	if report.Failed > 0 {
		return cli.NewCommandError("test", fmt.Errorf("%d of %d test(s) failed", report.Failed, len(report.Results)))
	}
	return nil
}

func loadTestCases(path string) (*TestSuite, error) {
	// #nosec G304 - User-specified test file path is expected behavior for a CLI tool.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var suite TestSuite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i, tc := range suite.Tests {
		if tc.Name == "" {
			suite.Tests[i].Name = fmt.Sprintf("test %d", i+1)
		}
		if tc.Expect.Allowed == nil {
			return nil, fmt.Errorf("%s: expect.allowed is required", suite.Tests[i].Name)
		}
	}
	return &suite, nil
}

func runTestCase(ctx context.Context, evaluator *engine.Evaluator, tc TestCase) TestResult {
	start := time.Now()
	decision := evaluator.Evaluate(ctx, tc.Action, tc.Context, tc.TaskRules)

	result := TestResult{Name: tc.Name, Decision: decision, Duration: time.Since(start)}

	if want := *tc.Expect.Allowed; decision.Allowed != want {
		result.Failures = append(result.Failures, fmt.Sprintf("allowed: expected %t, got %t", want, decision.Allowed))
	}
	if want := tc.Expect.TriggeredRule; want != "" && decision.TriggeredRule != want {
		result.Failures = append(result.Failures, fmt.Sprintf("triggered_rule: expected %q, got %q", want, decision.TriggeredRule))
	}
	if want := tc.Expect.Message; want != "" && decision.Message != want {
		result.Failures = append(result.Failures, fmt.Sprintf("message: expected %q, got %q", want, decision.Message))
	}

	result.Passed = len(result.Failures) == 0
	return result
}

// RenderText prints one line per test case and a summary.
func (r *TestReport) RenderText(w io.Writer) error {
	fmt.Fprintln(w, "Running rule tests...")
	fmt.Fprintln(w)

	for _, res := range r.Results {
		if res.Passed {
			fmt.Fprintf(w, "✓ %s (%.2fms)\n", res.Name, float64(res.Duration.Microseconds())/1000)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", res.Name)
		for _, f := range res.Failures {
			fmt.Fprintf(w, "  %s\n", f)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Summary:")
	_, err := fmt.Fprintf(w, "  %d tests run, %d passed, %d failed\n", len(r.Results), r.Passed, r.Failed)
	return err
}
