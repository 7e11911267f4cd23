// Package engine resolves tenant configuration values from configuration
// rules. Given a tenant, a config key and an evaluation context it selects one
// rule and returns that rule's value with provenance.
//
// # Architecture
//
// The engine uses a three-layer design:
//
//  1. Evaluator - Decides whether a condition tree holds for a context (pure)
//  2. Selector - Filters, orders and picks the winning rule for a key
//  3. Engine - Validates input, fetches candidates from the RuleStore and builds the result
//
// # Evaluation Flow
//
//	Evaluate(tenant, key, context)
//	       ↓
//	RuleStore.FetchActiveRules (bounded by StoreTimeout)
//	       ↓
//	Sort by priority desc, id asc
//	       ↓
//	For each conditional/override rule:
//	  Condition matches? → Yes → condition_matched
//	       ↓
//	Highest priority default rule → default_fallback
//	       ↓
//	Nothing → no_match (nil value, not an error)
//
// # Basic Usage
//
//	eng, err := engine.NewEngine(engine.DefaultEngineConfig(), store, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res, err := eng.Evaluate(ctx, "org-1", "auto_journal.batch_threshold", rules.Context{
//	    "industry": rules.String("restaurant"),
//	})
//	switch {
//	case errors.Is(err, engine.ErrStoreUnavailable):
//	    // apply a hardcoded fallback
//	case err != nil:
//	    return err
//	case !res.Found():
//	    // no configuration defined for the key
//	}
//
// # Fail-Closed Evaluation
//
// Evaluation never fails because of rule content. Rules with malformed
// condition trees, unknown operators, values that cannot be coerced and trees
// deeper than MaxConditionDepth all evaluate as "does not match". Only store
// faults and invalid caller input are returned as errors.
//
// # Thread Safety
//
// The engine is safe for concurrent use. Batch queries are evaluated in
// parallel and results keep the order of the queries.
package engine
