package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"

	"mercator-hq/sentinel/pkg/policy/engine"
)

// newTestCommand returns a command whose output is captured.
func newTestCommand(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetContext(context.Background())
	return cmd, out
}

func newTestEvaluator(t *testing.T, provider engine.RuleProvider) *engine.Evaluator {
	t.Helper()
	evaluator, err := engine.NewEvaluator(nil, provider, toolLogger())
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}
	return evaluator
}
