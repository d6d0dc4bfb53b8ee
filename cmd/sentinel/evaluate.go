package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"mercator-hq/sentinel/pkg/cli"
	"mercator-hq/sentinel/pkg/policy/engine"
)

var evaluateFlags struct {
	rules      string
	action     string
	context    string
	taskRules  string
	explain    bool
	failOnDeny bool
	format     string
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate one action against the rules",
	Long: `Evaluate an action in its operating context and print the decision.

The action and context are JSON objects, given inline or as @file.

Examples:
  # Evaluate a transfer
  sentinel evaluate --rules rules/ \
    --action '{"type":"transfer","amount":5000}' \
    --context '{"type":"financial","user":{"verified":false}}'

  # Show how every candidate rule was handled
  sentinel evaluate --rules rules/ --action @action.json --context @context.json --explain

  # Add call-scoped rules and fail the shell pipeline on deny
  sentinel evaluate --rules rules/ --action @action.json --task-rules task.yaml --fail-on-deny`,
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringVarP(&evaluateFlags.rules, "rules", "r", "", "rules directory (default: discovered .sentinel/rules)")
	evaluateCmd.Flags().StringVarP(&evaluateFlags.action, "action", "a", "", "action JSON object or @file")
	evaluateCmd.Flags().StringVar(&evaluateFlags.context, "context", "", "context JSON object or @file")
	evaluateCmd.Flags().StringVar(&evaluateFlags.taskRules, "task-rules", "", "rule document with call-scoped rules")
	evaluateCmd.Flags().BoolVar(&evaluateFlags.explain, "explain", false, "show every candidate rule")
	evaluateCmd.Flags().BoolVar(&evaluateFlags.failOnDeny, "fail-on-deny", false, "exit non-zero when the action is denied")
	evaluateCmd.Flags().StringVar(&evaluateFlags.format, "format", "text", "output format: text, json")

	// Mark required flags - panic if this fails as it's a programming error
	if err := evaluateCmd.MarkFlagRequired("action"); err != nil {
		panic(fmt.Sprintf("failed to mark action flag as required: %v", err))
	}
}

// errDenied is returned with --fail-on-deny when the decision denies.
var errDenied = errors.New("action denied")

func runEvaluate(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(evaluateFlags.format, cli.FormatText, cli.FormatJSON)
	if err != nil {
		return err
	}
	action, err := parseObject("action", evaluateFlags.action)
	if err != nil {
		return err
	}
	evalCtx, err := parseObject("context", evaluateFlags.context)
	if err != nil {
		return err
	}
	taskRules, err := loadTaskRules(evaluateFlags.taskRules)
	if err != nil {
		return cli.NewCommandError("evaluate", err)
	}

	ctx := commandContext(cmd)
	logger := toolLogger()
	repo, _, err := loadRuleTree(ctx, evaluateFlags.rules, logger)
	if err != nil {
		return err
	}

	evaluator, err := engine.NewEvaluator(nil, repo, logger)
	if err != nil {
		return cli.NewCommandError("evaluate", err)
	}

	var (
		result   any
		decision engine.Decision
	)
	if evaluateFlags.explain {
		ex := evaluator.Explain(ctx, action, evalCtx, taskRules)
		decision = ex.Decision
		result = explanationView{ex}
	} else {
		decision = evaluator.Evaluate(ctx, action, evalCtx, taskRules)
		result = decisionView{decision}
	}

	if err := cli.NewFormatter(format).FormatTo(stdout(cmd), result); err != nil {
		return err
	}
	if evaluateFlags.failOnDeny && !decision.Allowed {
		return cli.NewCommandError("evaluate", fmt.Errorf("%w by %s", errDenied, decision.TriggeredRule))
	}
	return nil
}

type decisionView struct {
	engine.Decision
}

func (v decisionView) RenderText(w io.Writer) error {
	d := v.Decision
	verdict := "✓ Allowed"
	if !d.Allowed {
		verdict = "✗ Denied"
	}
	fmt.Fprintln(w, verdict)
	if d.TriggeredRule == "" {
		fmt.Fprintln(w, "  No rule matched (default allow)")
	} else {
		fmt.Fprintf(w, "  Rule:     %s (%s)\n", d.TriggeredRule, d.Priority)
		fmt.Fprintf(w, "  Action:   %s\n", d.ActionType)
		if d.Message != "" {
			fmt.Fprintf(w, "  Message:  %s\n", d.Message)
		}
	}
	_, err := fmt.Fprintf(w, "  Considered %d rule(s)\n", d.RulesConsidered)
	return err
}

type explanationView struct {
	engine.Explanation
}

func (v explanationView) RenderText(w io.Writer) error {
	if err := (decisionView{v.Decision}).RenderText(w); err != nil {
		return err
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Candidates:")
	for _, s := range v.Steps {
		mark := "-"
		switch {
		case s.Skipped != "":
			mark = "!"
		case s.TriggerMatched && s.ConditionMatched:
			mark = "✓"
		case s.TriggerMatched:
			mark = "✗"
		}
		fmt.Fprintf(w, "  %s %-12s %-8s trigger=%t condition=%t", mark, s.RuleID, s.Priority, s.TriggerMatched, s.ConditionMatched)
		if s.TaskRule {
			fmt.Fprint(w, " [task]")
		}
		if s.Skipped != "" {
			fmt.Fprintf(w, " skipped: %s", s.Skipped)
		}
		fmt.Fprintln(w)
	}
	return nil
}
