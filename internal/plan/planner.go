package plan

import (
	"fmt"
	"sort"

	"dlcore/internal/ir"
)

// aggregateFns names the transform function identifiers the planner
// recognizes as per-group reductions rather than plain lets (spec.md
// §4.4's aggregation-block splitting; fn:collect is accepted at plan time
// but internal/eval rejects it at run time per DESIGN.md's Open Question
// decision).
var aggregateFns = map[string]AggKind{
	"fn:sum":     AggSum,
	"fn:count":   AggCount,
	"fn:max":     AggMax,
	"fn:min":     AggMin,
	"fn:collect": AggCollect,
}

// Planner holds the per-compile state (fresh scratch/temp-relation name
// counters) shared across every rule planned in one run. A single Planner
// should plan every rule of one delta configuration so that the names it
// mints never collide within that run.
type Planner struct {
	c         *ir.Container
	deltaPred ir.NameId // 0 when this is the plain (non-delta) plan of a rule
	scratchN  int
	tempN     int
}

// New returns a Planner over c. deltaPred, if nonzero, names the single
// recursive premise predicate this plan should read via ScanDelta instead
// of Scan (spec.md §4.6: "one delta-plan per (rule, recursive-premise)
// pair").
func New(c *ir.Container, deltaPred ir.NameId) *Planner {
	return &Planner{c: c, deltaPred: deltaPred}
}

func (pl *Planner) freshScratch() ir.NameId {
	pl.scratchN++
	return pl.c.InternName(fmt.Sprintf("$scratch_%d", pl.scratchN))
}

// freshTemp mints a unique anonymous relation name. Because physical ops
// are a separate tree rather than appended ir.Inst entries, the
// Container's instruction count does not advance during planning, and
// separate Planners over one Container start their counters alike; a
// candidate name built from that count and a Planner-local counter is
// therefore skipped if the Container has already interned it, so every
// temp name is unique within the Container (spec.md §4.4: "Temporary
// relation names embed the current IR instruction count to guarantee
// uniqueness").
func (pl *Planner) freshTemp() ir.NameId {
	for {
		pl.tempN++
		name := fmt.Sprintf("$temp_grp_%d_%d", pl.c.Len(), pl.tempN)
		if _, taken := pl.c.LookupName(name); !taken {
			return pl.c.InternName(name)
		}
	}
}

func isConstKind(k ir.InstKind) bool {
	switch k {
	case ir.KBool, ir.KNumber, ir.KFloat, ir.KString, ir.KBytes, ir.KName, ir.KList, ir.KMap, ir.KStructC:
		return true
	default:
		return false
	}
}

// PlanRule builds the physical plan for one rule instruction.
func (pl *Planner) PlanRule(ruleId ir.InstId) (*RulePlan, error) {
	c := pl.c
	rule := c.Get(ruleId)

	// Split RuleTransforms into groups separated by `do` boundaries:
	// groups[0] holds the lets before the first do (if any); groups[i+1]
	// holds the lets between do i and do i+1 (or the end).
	var groups [][]ir.InstId
	var doApps []ir.InstId
	cur := []ir.InstId{}
	for _, trId := range rule.RuleTransforms {
		tr := c.Get(trId)
		if !tr.HasVar {
			groups = append(groups, cur)
			doApps = append(doApps, trId)
			cur = nil
			continue
		}
		cur = append(cur, trId)
	}
	groups = append(groups, cur)

	var temps []ir.NameId
	bound := map[ir.NameId]bool{}

	if len(doApps) == 0 {
		op, err := pl.planPremises(rule.RulePremises, 0, bound, func(bound map[ir.NameId]bool) (*Op, error) {
			return pl.buildLetsChain(groups[0], bound, func(bound map[ir.NameId]bool) (*Op, error) {
				return pl.headInsert(rule.RuleHead, bound)
			})
		})
		if err != nil {
			return nil, err
		}
		return &RulePlan{Blocks: []*Op{op}}, nil
	}

	temp0 := pl.freshTemp()
	temps = append(temps, temp0)
	var firstGroupVars []ir.NameId
	block0, err := pl.planPremises(rule.RulePremises, 0, bound, func(bound map[ir.NameId]bool) (*Op, error) {
		return pl.buildLetsChain(groups[0], bound, func(bound map[ir.NameId]bool) (*Op, error) {
			firstGroupVars = sortedVars(c, bound)
			return pl.tempInsert(temp0, firstGroupVars)
		})
	})
	if err != nil {
		return nil, err
	}

	blocks := []*Op{block0}
	// sourceTemp/sourceVars name the relation (and its column schema) the
	// current iteration's GroupBy reads; they're the previous block's
	// output, starting with block0's.
	sourceTemp, sourceVars := temp0, firstGroupVars

	for i, doId := range doApps {
		doTr := c.Get(doId)
		appTerm := c.Get(doTr.TransformApp)
		if appTerm.Kind != ir.KApplyFn {
			return nil, &Error{Msg: "malformed do transform"}
		}

		keys := make([]ir.NameId, len(appTerm.Args))
		for j, argId := range appTerm.Args {
			arg := c.Get(argId)
			if arg.Kind != ir.KVar || arg.NameH == ir.WildcardName {
				return nil, &Error{Msg: "group-by keys must be variables"}
			}
			keys[j] = arg.NameH
		}

		newBound := map[ir.NameId]bool{}
		for _, k := range keys {
			newBound[k] = true
		}

		var aggregates []Aggregate
		var plainLets []ir.InstId
		for _, trId := range groups[i+1] {
			tr := c.Get(trId)
			app := c.Get(tr.TransformApp)
			if app.Kind == ir.KApplyFn {
				if kind, ok := aggregateFns[c.NameString(app.NameH)]; ok {
					if len(app.Args) != 1 {
						return nil, &Error{Msg: "complex expressions in aggregates not supported"}
					}
					argInst := c.Get(app.Args[0])
					if argInst.Kind != ir.KVar {
						return nil, &Error{Msg: "complex expressions in aggregates not supported"}
					}
					aggregates = append(aggregates, Aggregate{
						Kind:      kind,
						ResultVar: tr.TransformVar,
						Arg:       Expr{Kind: EVar, Var: argInst.NameH},
					})
					newBound[tr.TransformVar] = true
					continue
				}
			}
			plainLets = append(plainLets, trId)
		}

		isLast := i == len(doApps)-1

		thisSource, thisVars := sourceTemp, sourceVars

		var body *Op
		if isLast {
			body, err = pl.buildLetsChain(plainLets, newBound, func(bound map[ir.NameId]bool) (*Op, error) {
				return pl.headInsert(rule.RuleHead, bound)
			})
		} else {
			nextTemp := pl.freshTemp()
			temps = append(temps, nextTemp)
			var nextVars []ir.NameId
			body, err = pl.buildLetsChain(plainLets, newBound, func(bound map[ir.NameId]bool) (*Op, error) {
				nextVars = sortedVars(c, bound)
				return pl.tempInsert(nextTemp, nextVars)
			})
			sourceTemp, sourceVars = nextTemp, nextVars
		}
		if err != nil {
			return nil, err
		}

		blocks = append(blocks, &Op{
			Kind:        OpGroupBy,
			GroupSource: thisSource,
			GroupVars:   thisVars,
			GroupKeys:   keys,
			Aggregates:  aggregates,
			Body:        body,
		})
	}

	return &RulePlan{Blocks: blocks, Temps: temps}, nil
}

// planPremises recursively builds the Op tree for premises[idx:], then
// lets and the final insert, wrapping each successive premise around the
// continuation built from everything after it (spec.md §4.4: "processed
// left-to-right").
func (pl *Planner) planPremises(premises []ir.InstId, idx int, bound map[ir.NameId]bool, final func(map[ir.NameId]bool) (*Op, error)) (*Op, error) {
	if idx == len(premises) {
		return final(bound)
	}
	premId := premises[idx]
	prem := pl.c.Get(premId)
	switch prem.Kind {
	case ir.KAtom:
		return pl.planAtom(premId, bound, func(bound map[ir.NameId]bool) (*Op, error) {
			return pl.planPremises(premises, idx+1, bound, final)
		})
	case ir.KEq:
		rest, err := pl.planPremises(premises, idx+1, bound, final)
		if err != nil {
			return nil, err
		}
		return pl.flatten(prem.Left, bound, func(left Expr) (*Op, error) {
			return pl.flatten(prem.Right, bound, func(right Expr) (*Op, error) {
				return &Op{Kind: OpFilter, Cond: Cond{Kind: CondEq, Left: left, Right: right}, Body: rest}, nil
			})
		})
	default:
		return nil, &Error{Msg: fmt.Sprintf("unsupported premise kind %s", prem.Kind)}
	}
}

// planAtom plans one positive-atom premise: select an index key (the
// first argument that is already bound or a constant), bind a fresh
// column variable per argument, and wrap the continuation in Filters
// (scheduled in reverse column order, so the first column's check ends up
// outermost and the last column's innermost) for every column whose
// argument was not a freshly-bound variable.
func (pl *Planner) planAtom(atomId ir.InstId, bound map[ir.NameId]bool, continuation func(map[ir.NameId]bool) (*Op, error)) (*Op, error) {
	c := pl.c
	a := c.Get(atomId)

	idxCol := -1
	for i, argId := range a.Args {
		t := c.Get(argId)
		if t.Kind == ir.KVar {
			if t.NameH != ir.WildcardName && bound[t.NameH] {
				idxCol = i
				break
			}
			continue
		}
		if isConstKind(t.Kind) {
			idxCol = i
			break
		}
	}

	// idxCol is always a bound variable or a literal constant by
	// construction (the selection loop above never picks an ApplyFn
	// argument), so its key never needs the nested-call flattening below.
	var source Source
	if idxCol >= 0 {
		source = Source{Kind: SourceIndexLookup, Relation: a.NameH, ColIdx: idxCol, Key: simpleOperand(c, a.Args[idxCol])}
	} else if pl.deltaPred != 0 && a.NameH == pl.deltaPred {
		source = Source{Kind: SourceScanDelta, Relation: a.NameH}
	} else {
		source = Source{Kind: SourceScan, Relation: a.NameH}
	}

	colVars := make([]ir.NameId, len(a.Args))
	type pendingFilter struct {
		col    int
		termId ir.InstId
	}
	var filters []pendingFilter

	for i, argId := range a.Args {
		if i == idxCol {
			colVars[i] = pl.freshScratch()
			continue
		}
		t := c.Get(argId)
		if t.Kind == ir.KVar && t.NameH == ir.WildcardName {
			colVars[i] = pl.freshScratch()
			continue
		}
		if t.Kind == ir.KVar && !bound[t.NameH] {
			colVars[i] = t.NameH
			bound[t.NameH] = true
			continue
		}
		fresh := pl.freshScratch()
		colVars[i] = fresh
		filters = append(filters, pendingFilter{col: i, termId: argId})
	}

	body, err := continuation(bound)
	if err != nil {
		return nil, err
	}

	for i := len(filters) - 1; i >= 0; i-- {
		f := filters[i]
		innerBody := body
		colVar := colVars[f.col]
		body, err = pl.flatten(f.termId, bound, func(operand Expr) (*Op, error) {
			return &Op{
				Kind: OpFilter,
				Cond: Cond{Kind: CondEq, Left: Expr{Kind: EVar, Var: colVar}, Right: operand},
				Body: innerBody,
			}, nil
		})
		if err != nil {
			return nil, err
		}
	}

	return &Op{Kind: OpIterate, Source: source, Vars: colVars, Body: body}, nil
}

// buildLetsChain wraps final in one OpLet per transform in lets, in order.
// Each let's top-level application binds directly into its declared
// variable; any nested ApplyFn arguments within that application are
// flattened into their own fresh lets first (spec.md §4.4's "evaluating
// nested function calls").
func (pl *Planner) buildLetsChain(lets []ir.InstId, bound map[ir.NameId]bool, final func(map[ir.NameId]bool) (*Op, error)) (*Op, error) {
	if len(lets) == 0 {
		return final(bound)
	}
	trId := lets[0]
	tr := pl.c.Get(trId)
	return pl.buildLet(tr.TransformVar, tr.TransformApp, bound, func(bound map[ir.NameId]bool) (*Op, error) {
		return pl.buildLetsChain(lets[1:], bound, final)
	})
}

// buildLet binds v to the result of evaluating appId (its top-level
// application), then runs rest with v marked bound.
func (pl *Planner) buildLet(v ir.NameId, appId ir.InstId, bound map[ir.NameId]bool, rest func(map[ir.NameId]bool) (*Op, error)) (*Op, error) {
	app := pl.c.Get(appId)
	if app.Kind != ir.KApplyFn {
		bound[v] = true
		body, err := rest(bound)
		if err != nil {
			return nil, err
		}
		return &Op{Kind: OpLet, LetVar: v, LetExpr: simpleOperand(pl.c, appId), Body: body}, nil
	}
	return pl.flattenArgs(app.Args, 0, bound, nil, func(operands []Expr) (*Op, error) {
		bound[v] = true
		body, err := rest(bound)
		if err != nil {
			return nil, err
		}
		return &Op{Kind: OpLet, LetVar: v, LetExpr: Expr{Kind: ECall, Fn: app.NameH, Args: operands}, Body: body}, nil
	})
}

func (pl *Planner) headInsert(headId ir.InstId, bound map[ir.NameId]bool) (*Op, error) {
	a := pl.c.Get(headId)
	return pl.flattenArgs(a.Args, 0, bound, nil, func(operands []Expr) (*Op, error) {
		return &Op{Kind: OpInsert, Relation: a.NameH, Args: operands}, nil
	})
}

func (pl *Planner) tempInsert(temp ir.NameId, vars []ir.NameId) (*Op, error) {
	args := make([]Expr, len(vars))
	for i, v := range vars {
		args[i] = Expr{Kind: EVar, Var: v}
	}
	return &Op{Kind: OpInsert, Relation: temp, Args: args}, nil
}

// sortedVars returns bound's keys sorted by name text, for deterministic
// temp-relation schemas (spec.md §4.4: "sorted for determinism").
func sortedVars(c *ir.Container, bound map[ir.NameId]bool) []ir.NameId {
	out := make([]ir.NameId, 0, len(bound))
	for v := range bound {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return c.NameString(out[i]) < c.NameString(out[j]) })
	return out
}

// flatten converts term into an operand (a Var or Const reference — never
// a raw nested call) and passes it to cont, hoisting any ApplyFn term
// into its own fresh Let first (spec.md §4.4: "recursively evaluate each
// argument into an operand, then emit a Let{var=fresh, expr=Call(...)}
// and pass Var(fresh) inward").
func (pl *Planner) flatten(termId ir.InstId, bound map[ir.NameId]bool, cont func(Expr) (*Op, error)) (*Op, error) {
	t := pl.c.Get(termId)
	if t.Kind != ir.KApplyFn {
		return cont(simpleOperand(pl.c, termId))
	}
	return pl.flattenArgs(t.Args, 0, bound, nil, func(operands []Expr) (*Op, error) {
		fresh := pl.freshScratch()
		rest, err := cont(Expr{Kind: EVar, Var: fresh})
		if err != nil {
			return nil, err
		}
		return &Op{Kind: OpLet, LetVar: fresh, LetExpr: Expr{Kind: ECall, Fn: t.NameH, Args: operands}, Body: rest}, nil
	})
}

// flattenArgs flattens argIds left to right, threading the operands built
// so far, then passes the complete operand list to cont.
func (pl *Planner) flattenArgs(argIds []ir.InstId, idx int, bound map[ir.NameId]bool, operands []Expr, cont func([]Expr) (*Op, error)) (*Op, error) {
	if idx == len(argIds) {
		return cont(operands)
	}
	return pl.flatten(argIds[idx], bound, func(op Expr) (*Op, error) {
		return pl.flattenArgs(argIds, idx+1, bound, append(append([]Expr(nil), operands...), op), cont)
	})
}

// simpleOperand converts a Var or literal-constant term directly into an
// Expr, with no hoisting. Callers guarantee termId is never an ApplyFn.
func simpleOperand(c *ir.Container, termId ir.InstId) Expr {
	t := c.Get(termId)
	if t.Kind == ir.KVar {
		return Expr{Kind: EVar, Var: t.NameH}
	}
	return Expr{Kind: EConst, Const: constValue(c, termId)}
}

// constValue recursively folds a constant instruction tree into one
// ir.Value.
func constValue(c *ir.Container, id ir.InstId) ir.Value {
	t := c.Get(id)
	switch t.Kind {
	case ir.KBool:
		return ir.Bool(t.Bool)
	case ir.KNumber:
		return ir.Number(t.Number)
	case ir.KFloat:
		return ir.Float(t.Float)
	case ir.KString:
		return ir.String(c.StringValue(t.Str))
	case ir.KBytes:
		return ir.Bytes(t.Bytes)
	case ir.KName:
		return ir.Name(c.NameString(t.NameH))
	case ir.KList:
		elems := make([]ir.Value, len(t.Elems))
		for i, e := range t.Elems {
			elems[i] = constValue(c, e)
		}
		return ir.List(elems)
	case ir.KMap:
		keys := make([]ir.Value, len(t.Keys))
		vals := make([]ir.Value, len(t.Vals))
		for i := range t.Keys {
			keys[i] = constValue(c, t.Keys[i])
			vals[i] = constValue(c, t.Vals[i])
		}
		return ir.Map(keys, vals)
	case ir.KStructC:
		fields := make([]string, len(t.FieldNames))
		vals := make([]ir.Value, len(t.FieldVals))
		for i := range t.FieldNames {
			fields[i] = c.NameString(t.FieldNames[i])
			vals[i] = constValue(c, t.FieldVals[i])
		}
		return ir.Struct(fields, vals)
	default:
		panic(fmt.Sprintf("plan: %s is not a constant instruction", t.Kind))
	}
}
