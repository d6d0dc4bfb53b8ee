package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mercator-hq/sentinel/pkg/cli"
)

func TestRunTests(t *testing.T) {
	testFlags.rules = "testdata/rules"
	testFlags.testsFile = "testdata/rule_tests.yaml"
	testFlags.format = "text"
	cmd, out := newTestCommand(t)

	if err := runTests(cmd, nil); err != nil {
		t.Fatalf("runTests() error = %v\n%s", err, out.String())
	}

	got := out.String()
	for _, want := range []string{
		"✓ Large unverified transfer is blocked",
		"✓ Task rule outranks stored rules",
		"✓ test 5",
		"5 tests run, 5 passed, 0 failed",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestRunTestsFailures(t *testing.T) {
	testFlags.rules = "testdata/rules"
	testFlags.testsFile = "testdata/rule_tests_failing.yaml"
	testFlags.format = "json"
	cmd, out := newTestCommand(t)

	err := runTests(cmd, nil)
	if err == nil {
		t.Fatal("runTests() should fail when a case fails")
	}
	if code := cli.ExitCode(err); code != cli.ExitFailure {
		t.Errorf("ExitCode() = %d, want %d", code, cli.ExitFailure)
	}

	var report TestReport
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if report.Failed != 1 || report.Passed != 0 {
		t.Errorf("report = %d passed, %d failed; want 0, 1", report.Passed, report.Failed)
	}
	if len(report.Results) != 1 || len(report.Results[0].Failures) != 1 {
		t.Fatalf("results = %+v", report.Results)
	}
	if !strings.Contains(report.Results[0].Failures[0], "allowed: expected true, got false") {
		t.Errorf("failure = %q", report.Results[0].Failures[0])
	}
}

func TestLoadTestCases(t *testing.T) {
	dir := t.TempDir()

	missing := filepath.Join(dir, "missing-expect.yaml")
	if err := os.WriteFile(missing, []byte("tests:\n  - name: no expectation\n    action: {type: x}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadTestCases(missing); err == nil || !strings.Contains(err.Error(), "expect.allowed is required") {
		t.Errorf("loadTestCases() error = %v, want missing expect.allowed", err)
	}

	malformed := filepath.Join(dir, "malformed.yaml")
	if err := os.WriteFile(malformed, []byte("tests: [\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadTestCases(malformed); err == nil {
		t.Error("loadTestCases() with malformed YAML should return error")
	}

	if _, err := loadTestCases(filepath.Join(dir, "nonexistent.yaml")); err == nil {
		t.Error("loadTestCases() with missing file should return error")
	}
}

func TestRunTestCaseExpectations(t *testing.T) {
	repo, _, err := loadRuleTree(context.Background(), "testdata/rules", toolLogger())
	if err != nil {
		t.Fatalf("loadRuleTree() error = %v", err)
	}
	evaluator := newTestEvaluator(t, repo)

	denied := false
	tc := TestCase{
		Name:    "wrong rule and message",
		Action:  map[string]any{"type": "transfer", "amount": 5000},
		Context: map[string]any{"type": "financial", "user": map[string]any{"verified": false}},
		Expect:  TestExpectation{Allowed: &denied, TriggeredRule: "FIN-002", Message: "other"},
	}

	result := runTestCase(context.Background(), evaluator, tc)
	if result.Passed {
		t.Fatal("runTestCase() passed, want failure")
	}
	if len(result.Failures) != 2 {
		t.Errorf("failures = %v, want triggered_rule and message", result.Failures)
	}
}
