package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"mercator-hq/sentinel/pkg/cli"
	"mercator-hq/sentinel/pkg/policy/engine"
	"mercator-hq/sentinel/pkg/policy/rule"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect rule sets",
}

var rulesListFlags struct {
	rules  string
	format string
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the active rules",
	Long: `List the rules admitted from a rules directory in evaluation order
(highest priority first, then load order).

Examples:
  sentinel rules list --rules rules/
  sentinel rules list --format csv > rules.csv`,
	RunE: listRules,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesListCmd)

	rulesListCmd.Flags().StringVarP(&rulesListFlags.rules, "rules", "r", "", "rules directory (default: discovered .sentinel/rules)")
	rulesListCmd.Flags().StringVar(&rulesListFlags.format, "format", "text", "output format: text, json, csv")
}

// RuleListing is the output of rules list.
type RuleListing struct {
	Version string      `json:"version"`
	Rules   []rule.Rule `json:"rules"`
}

func listRules(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(rulesListFlags.format, cli.FormatText, cli.FormatJSON, cli.FormatCSV)
	if err != nil {
		return err
	}

	repo, _, err := loadRuleTree(commandContext(cmd), rulesListFlags.rules, toolLogger())
	if err != nil {
		return err
	}

	rules := append([]rule.Rule(nil), repo.Rules()...)
	engine.SortByPriority(rules)
	listing := RuleListing{Version: repo.Version(), Rules: rules}
	return cli.NewFormatter(format).FormatTo(stdout(cmd), listing)
}

// RenderText prints one line per rule.
func (l RuleListing) RenderText(w io.Writer) error {
	fmt.Fprintf(w, "%-14s %-9s %-12s %-24s %s\n", "RULE_ID", "PRIORITY", "CONTEXT", "ACTION", "SOURCE")
	for _, r := range l.Rules {
		row := ruleRow(r)
		fmt.Fprintf(w, "%-14s %-9s %-12s %-24s %s\n", row[0], row[1], row[2], row[3], row[5])
	}
	_, err := fmt.Fprintf(w, "\n%d rule(s), version %s\n", len(l.Rules), l.Version)
	return err
}

// Header implements cli.TableRenderer.
func (l RuleListing) Header() []string {
	return []string{"rule_id", "priority", "context", "action", "rank", "source"}
}

// Rows implements cli.TableRenderer.
func (l RuleListing) Rows() [][]string {
	rows := make([][]string, 0, len(l.Rules))
	for _, r := range l.Rules {
		rows = append(rows, ruleRow(r))
	}
	return rows
}

func ruleRow(r rule.Rule) []string {
	context, action := "*", ""
	if r.Trigger != nil && r.Trigger.Context != "" {
		context = r.Trigger.Context
	}
	if r.Action != nil {
		action = r.Action.Type
	}
	priority := r.Priority
	if priority == "" {
		priority = "-"
	}
	return []string{r.RuleID, priority, context, action, strconv.Itoa(engine.PriorityRank(r.Priority)), r.Source}
}
