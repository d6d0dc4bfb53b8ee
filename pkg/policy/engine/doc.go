// Package engine evaluates proposed actions against declarative rules and
// returns an allow/deny decision.
//
// The evaluator is a pure function of the current rule snapshot, the action
// and its operating context. It never performs I/O and never fails: rule
// anomalies make the affected condition fail instead of raising an error.
//
// # Evaluation Flow
//
//	task rules ++ repository rules
//	       ↓
//	stable sort by priority (CRITICAL, HIGH, MEDIUM, LOW, other)
//	       ↓
//	for each rule:
//	  trigger matches context.type / action.type?
//	    No  → next rule
//	  condition holds?
//	    No  → next rule
//	    Yes → decision from rule action, stop
//	       ↓
//	no match → default allow
//
// # Basic Usage
//
//	repo := repository.New(logger)
//	if _, err := repo.Load(ctx, source.NewFileSource(".sentinel/rules", nil)); err != nil {
//	    return err
//	}
//
//	eval, err := engine.NewEvaluator(engine.DefaultEngineConfig(), repo, logger)
//	if err != nil {
//	    return err
//	}
//
//	decision := eval.Evaluate(ctx,
//	    map[string]any{"type": "transfer", "amount": 25000},
//	    map[string]any{"type": "financial"},
//	    nil,
//	)
//	if !decision.Allowed {
//	    return fmt.Errorf("denied by %s: %s", decision.TriggeredRule, decision.Message)
//	}
//
// # Conditions
//
// A condition is either a combinator ("all" or "any" over nested nodes) or a
// leaf map of field keys to comparators. Field keys resolve against the action
// first and the context second; dotted keys walk nested maps and lists.
// Comparators are strict equality, ">x"/"<x" thresholds, operator objects
// (gt, lt, gte, lte, eq, ne, in, not_in), check_elements and not.
//
// Numeric comparators coerce numbers and numeric strings explicitly; any other
// input makes the comparison fail.
//
// # Observability
//
// Each evaluation gets a uuid, runs inside an OpenTelemetry span and is
// reported to an optional Observer for metrics.
package engine
