// Sentinel is a declarative policy engine that decides whether actions are
// allowed in a given operating context.
//
// Rules are YAML or JSON documents loaded from a directory tree, a SQLite or
// Redis document store, or a git repository. Sentinel evaluates actions
// against them from the command line or over an HTTP API.
//
// Usage:
//
//	# Serve the HTTP API over the discovered .sentinel/rules tree
//	sentinel serve
//
//	# Serve with a configuration file
//	sentinel serve --config /etc/sentinel/config.yaml
//
//	# Evaluate one action
//	sentinel evaluate --rules rules/ --action '{"type":"transfer","amount":5000}' --context '{"type":"financial"}'
//
//	# Validate rule documents
//	sentinel lint --rules rules/
//
//	# Run rule test cases
//	sentinel test --rules rules/ --tests rule_tests.yaml
package main

import (
	"fmt"
	"os"

	"mercator-hq/sentinel/pkg/cli"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitCode(err))
	}
}
