// Package eval implements spec.md §4.6 and §6.2's `compile`/`execute`
// entry points: assembling one or more parsed units into a stratified
// program, then driving each stratum to a fixed point against a Store.
package eval

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"dlcore/internal/ir"
	"dlcore/internal/lower"
	"dlcore/internal/plan"
	"dlcore/internal/program"
	"dlcore/internal/rename"
	"dlcore/internal/store"
	"dlcore/internal/stratify"
	"dlcore/internal/syntax"
	"dlcore/internal/typecheck"
)

// Error is an evaluator failure: one of spec.md §7's "unknown relation",
// "variable not found", "type mismatch in built-in function", or
// "aggregate on empty group" kinds.
type Error struct {
	Msg string
}

func (e *Error) Error() string { return "eval: " + e.Msg }

// Compile folds units into c (lower, then rename against each unit's own
// package header), assembles the result into one Program (spec.md §6.2's
// "program assembly... partitioning predicates into ext/int"), type
// checks it, and stratifies it. This generalizes spec.md §6.2's single-
// source `compile` to the multi-unit compile `rust/driver/src/lib.rs`
// supports, so a schema file and one or more rule files combine into one
// stratified program (SPEC_FULL.md §C.4).
func Compile(c *ir.Container, units ...*syntax.Unit) (*program.Program, *stratify.Stratified, error) {
	results := make([]lower.Result, len(units))
	for i, u := range units {
		res := lower.Unit(c, u)
		rename.Unit(c, u, res)
		results[i] = res
	}

	prog := program.Assemble(c, results...)

	if err := typecheck.Check(prog); err != nil {
		return nil, nil, err
	}

	strat, err := stratify.Stratify(prog)
	if err != nil {
		return nil, nil, err
	}

	return prog, strat, nil
}

// Options configures Execute's run-to-completion behavior.
type Options struct {
	// Logger receives progress lines; defaults to the standard library
	// logger (matching the teacher's RecomputeRules, which logs through
	// stdlib "log" rather than its categorized internal/logging sink).
	Logger *log.Logger

	// ProgressInterval controls how often a still-running recursive
	// stratum reports elapsed time (teacher's RecomputeRules: a 30s
	// ticker). Zero disables progress logging.
	ProgressInterval time.Duration

	// MaxIterations bounds a single recursive stratum's fixed-point loop;
	// zero means unbounded (the spec names no default; internal/config's
	// MaxIterations knob feeds this field when set).
	MaxIterations int
}

// Execute allocates every extensional relation, then drives strata in
// order per spec.md §4.6, returning the total number of facts inserted.
func Execute(c *ir.Container, prog *program.Program, strat *stratify.Stratified, st store.Store, opts Options) (int, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	runID := uuid.New().String()

	for pred := range prog.Extensional {
		st.CreateRelation(c.NameString(pred))
	}
	for pred := range prog.RulesByHead {
		st.CreateRelation(c.NameString(pred))
	}

	interp := &interpreter{c: c}

	total := 0
	for i, stratum := range strat.Strata {
		n, err := runStratum(interp, c, prog, strat, i, stratum, st, logger, runID, opts)
		if err != nil {
			return total, err
		}
		total += n

		if err := st.MergeDeltas(); err != nil {
			return total, fmt.Errorf("eval: merge deltas after stratum %d: %w", i, err)
		}
	}
	return total, nil
}

// runStratum plans and executes one stratum's rules, to a fixed point if
// it is recursive.
func runStratum(interp *interpreter, c *ir.Container, prog *program.Program, strat *stratify.Stratified, idx int, stratum []ir.NameId, st store.Store, logger *log.Logger, runID string, opts Options) (int, error) {
	var rules []ir.InstId
	for _, pred := range stratum {
		rules = append(rules, prog.RulesByHead[pred]...)
	}
	if len(rules) == 0 {
		return 0, nil
	}

	if !strat.Recursive(idx, prog) {
		total := 0
		for _, ruleId := range rules {
			rp, err := plan.New(c, 0).PlanRule(ruleId)
			if err != nil {
				return total, err
			}
			n, err := interp.runPlan(rp, st)
			if err != nil {
				return total, err
			}
			total += n
		}
		return total, nil
	}

	inStratum := make(map[ir.NameId]bool, len(stratum))
	for _, p := range stratum {
		inStratum[p] = true
	}

	initialPlans := make([]*plan.RulePlan, 0, len(rules))
	type deltaPlan struct {
		rp *plan.RulePlan
	}
	var deltaPlans []deltaPlan

	for _, ruleId := range rules {
		rp, err := plan.New(c, 0).PlanRule(ruleId)
		if err != nil {
			return 0, err
		}
		initialPlans = append(initialPlans, rp)

		rule := c.Get(ruleId)
		seen := make(map[ir.NameId]bool)
		for _, premId := range rule.RulePremises {
			prem := c.Get(premId)
			var atomId ir.InstId
			switch prem.Kind {
			case ir.KAtom:
				atomId = premId
			case ir.KNegAtom:
				continue
			default:
				continue
			}
			pred := c.Get(atomId).NameH
			if !inStratum[pred] || seen[pred] {
				continue
			}
			seen[pred] = true
			drp, err := plan.New(c, pred).PlanRule(ruleId)
			if err != nil {
				return 0, err
			}
			deltaPlans = append(deltaPlans, deltaPlan{rp: drp})
		}
	}

	total := 0
	for _, rp := range initialPlans {
		n, err := interp.runPlan(rp, st)
		if err != nil {
			return total, err
		}
		total += n
	}
	if err := st.MergeDeltas(); err != nil {
		return total, fmt.Errorf("eval: merge deltas (initial) in stratum %d: %w", idx, err)
	}

	done := make(chan struct{})
	if opts.ProgressInterval > 0 {
		go func() {
			ticker := time.NewTicker(opts.ProgressInterval)
			defer ticker.Stop()
			start := time.Now()
			for {
				select {
				case <-ticker.C:
					logger.Printf("run %s: stratum %d still iterating (%v elapsed)", runID, idx, time.Since(start).Round(time.Second))
				case <-done:
					return
				}
			}
		}()
	}
	defer close(done)

	iterations := 0
	for {
		iterations++
		if opts.MaxIterations > 0 && iterations > opts.MaxIterations {
			return total, &Error{Msg: fmt.Sprintf("stratum %d exceeded MaxIterations (%d)", idx, opts.MaxIterations)}
		}

		roundTotal := 0
		for _, dp := range deltaPlans {
			n, err := interp.runPlan(dp.rp, st)
			if err != nil {
				return total, err
			}
			roundTotal += n
		}
		total += roundTotal

		if roundTotal == 0 {
			break
		}

		if err := st.MergeDeltas(); err != nil {
			return total, fmt.Errorf("eval: merge deltas (round %d) in stratum %d: %w", iterations, idx, err)
		}
	}

	return total, nil
}
