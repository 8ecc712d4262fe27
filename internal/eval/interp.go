package eval

import (
	"encoding/binary"
	"fmt"
	"strings"

	"dlcore/internal/ir"
	"dlcore/internal/plan"
	"dlcore/internal/store"
)

// env is the per-execution variable environment (spec.md §9: "per-
// execution variable environments must be freshly allocated and released
// on exit" — a fresh map per runPlan call, never reused across rules).
type env map[ir.NameId]ir.Value

// interpreter walks a plan.Op tree against a Store, grounded on
// `rust/interpreter/src/lib.rs`'s exec_op/eval_expr/eval_cond/
// eval_aggregate structure.
type interpreter struct {
	c *ir.Container
}

// runPlan creates any temporary relations the plan's blocks communicate
// through, then executes each block in sequence, summing insertion
// counts.
func (in *interpreter) runPlan(rp *plan.RulePlan, st store.Store) (int, error) {
	for _, temp := range rp.Temps {
		st.CreateRelation(in.c.NameString(temp))
	}
	total := 0
	for _, block := range rp.Blocks {
		n, err := in.exec(block, env{}, st)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (in *interpreter) exec(op *plan.Op, e env, st store.Store) (int, error) {
	switch op.Kind {
	case plan.OpNop:
		return 0, nil

	case plan.OpSeq:
		total := 0
		for _, child := range op.Children {
			n, err := in.exec(child, e, st)
			if err != nil {
				return total, err
			}
			total += n
		}
		return total, nil

	case plan.OpIterate:
		rows, err := in.scanSource(op.Source, e, st)
		if err != nil {
			return 0, err
		}
		total := 0
		for _, row := range rows {
			if len(row) != len(op.Vars) {
				continue
			}
			for i, v := range op.Vars {
				e[v] = row[i]
			}
			n, err := in.exec(op.Body, e, st)
			if err != nil {
				return total, err
			}
			total += n
		}
		return total, nil

	case plan.OpFilter:
		ok, err := in.evalCond(op.Cond, e)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, nil
		}
		return in.exec(op.Body, e, st)

	case plan.OpLet:
		v, err := in.evalExpr(op.LetExpr, e)
		if err != nil {
			return 0, err
		}
		e[op.LetVar] = v
		return in.exec(op.Body, e, st)

	case plan.OpInsert:
		tuple := make(store.Row, len(op.Args))
		for i, a := range op.Args {
			v, err := in.evalExpr(a, e)
			if err != nil {
				return 0, err
			}
			tuple[i] = v
		}
		ok, err := st.Insert(in.c.NameString(op.Relation), tuple)
		if err != nil {
			return 0, &Error{Msg: err.Error()}
		}
		if ok {
			return 1, nil
		}
		return 0, nil

	case plan.OpGroupBy:
		return in.execGroupBy(op, e, st)

	default:
		return 0, &Error{Msg: fmt.Sprintf("unknown op kind %s", op.Kind)}
	}
}

func (in *interpreter) scanSource(src plan.Source, e env, st store.Store) ([]store.Row, error) {
	relation := in.c.NameString(src.Relation)
	switch src.Kind {
	case plan.SourceScan:
		rows, err := st.Scan(relation)
		if err != nil {
			return nil, &Error{Msg: err.Error()}
		}
		return rows, nil
	case plan.SourceScanDelta:
		rows, err := st.ScanDelta(relation)
		if err != nil {
			return nil, &Error{Msg: err.Error()}
		}
		return rows, nil
	case plan.SourceIndexLookup:
		key, err := in.evalExpr(src.Key, e)
		if err != nil {
			return nil, err
		}
		rows, err := st.ScanIndex(relation, src.ColIdx, key)
		if err != nil {
			return nil, &Error{Msg: err.Error()}
		}
		return rows, nil
	default:
		return nil, &Error{Msg: "unknown source kind"}
	}
}

// execGroupBy scans GroupSource over stable+delta and whatever is
// pending in next-delta for the same relation (so a group-by reads
// facts a prior block of the same rule just wrote in this execution),
// groups rows by GroupKeys, computes every aggregate per group, then
// runs Body once per distinct key with the keys and aggregate results
// bound. Grounded on `rust/interpreter/src/lib.rs`'s GroupBy arm.
func (in *interpreter) execGroupBy(op *plan.Op, e env, st store.Store) (int, error) {
	relation := in.c.NameString(op.GroupSource)
	rows, err := st.Scan(relation)
	if err != nil {
		return 0, &Error{Msg: err.Error()}
	}
	nextDelta, err := st.ScanNextDelta(relation)
	if err == nil {
		rows = append(append([]store.Row(nil), rows...), nextDelta...)
	}

	type group struct {
		key  []ir.Value
		rows []store.Row
	}
	var order []string
	groups := make(map[string]*group)

	for _, row := range rows {
		if len(row) != len(op.GroupVars) {
			continue
		}
		for i, v := range op.GroupVars {
			e[v] = row[i]
		}
		key := make([]ir.Value, len(op.GroupKeys))
		for i, k := range op.GroupKeys {
			key[i] = e[k]
		}
		hk := groupKeyHash(key)
		g, ok := groups[hk]
		if !ok {
			g = &group{key: key}
			groups[hk] = g
			order = append(order, hk)
		}
		g.rows = append(g.rows, row)
	}

	total := 0
	for _, hk := range order {
		g := groups[hk]
		for i, k := range op.GroupKeys {
			e[k] = g.key[i]
		}
		for _, agg := range op.Aggregates {
			v, err := in.evalAggregate(agg, op.GroupVars, g.rows, e)
			if err != nil {
				return total, err
			}
			e[agg.ResultVar] = v
		}
		n, err := in.exec(op.Body, e, st)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// groupKeyHash renders a group-by key tuple into a length-prefixed string
// key, the same way internal/store.rowKey does: each column's hash-key
// text is prefixed with its own byte length so a value containing `|`
// can never make two distinct key tuples collide onto the same group
// (which would silently merge two groups' rows before aggregation).
func groupKeyHash(key []ir.Value) string {
	var b strings.Builder
	var lenBuf [4]byte
	for _, v := range key {
		s := ir.HashKey(v)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
		b.Write(lenBuf[:])
		b.WriteString(s)
	}
	return b.String()
}

func (in *interpreter) evalAggregate(agg plan.Aggregate, groupVars []ir.NameId, rows []store.Row, e env) (v ir.Value, err error) {
	switch agg.Kind {
	case plan.AggCount:
		return ir.Number(int64(len(rows))), nil

	case plan.AggSum:
		var sum int64
		for _, row := range rows {
			rebind(e, groupVars, row)
			val, err := in.evalExpr(agg.Arg, e)
			if err != nil {
				return ir.Value{}, err
			}
			if val.Kind != ir.KindNumber {
				return ir.Value{}, &Error{Msg: "type mismatch in built-in function fn:sum"}
			}
			sum += val.Number
		}
		return ir.Number(sum), nil

	case plan.AggMax, plan.AggMin:
		return in.evalMinMax(agg, groupVars, rows, e)

	case plan.AggCollect:
		return ir.Value{}, &Error{Msg: "fn:collect is not implemented"}

	default:
		return ir.Value{}, &Error{Msg: "unknown aggregate kind"}
	}
}

func (in *interpreter) evalMinMax(agg plan.Aggregate, groupVars []ir.NameId, rows []store.Row, e env) (v ir.Value, err error) {
	if len(rows) == 0 {
		return ir.Value{}, &Error{Msg: "aggregate on empty group"}
	}
	var best ir.Value
	have := false
	for _, row := range rows {
		rebind(e, groupVars, row)
		val, err := in.evalExpr(agg.Arg, e)
		if err != nil {
			return ir.Value{}, err
		}
		if !have {
			best, have = val, true
			continue
		}
		if err := compareForAgg(agg.Kind, val, best, &best); err != nil {
			return ir.Value{}, err
		}
	}
	return best, nil
}

func compareForAgg(kind plan.AggKind, val, cur ir.Value, best *ir.Value) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if ir.IsIncomparableNull(r) {
				err = &Error{Msg: "aggregate comparison mixes Null with a non-Null value"}
				return
			}
			panic(r)
		}
	}()
	switch kind {
	case plan.AggMax:
		if ir.Less(cur, val) {
			*best = val
		}
	case plan.AggMin:
		if ir.Less(val, cur) {
			*best = val
		}
	}
	return nil
}

func rebind(e env, vars []ir.NameId, row store.Row) {
	for i, v := range vars {
		if i < len(row) {
			e[v] = row[i]
		}
	}
}

func (in *interpreter) evalCond(cond plan.Cond, e env) (bool, error) {
	left, err := in.evalExpr(cond.Left, e)
	if err != nil {
		return false, err
	}
	right, err := in.evalExpr(cond.Right, e)
	if err != nil {
		return false, err
	}
	switch cond.Kind {
	case plan.CondEq:
		return ir.Equal(left, right), nil
	case plan.CondIneq:
		return !ir.Equal(left, right), nil
	default:
		return false, &Error{Msg: "unknown condition kind"}
	}
}

func (in *interpreter) evalExpr(expr plan.Expr, e env) (ir.Value, error) {
	switch expr.Kind {
	case plan.EVar:
		v, ok := e[expr.Var]
		if !ok {
			return ir.Value{}, &Error{Msg: "variable not found: " + in.c.NameString(expr.Var)}
		}
		return v, nil
	case plan.EConst:
		return expr.Const, nil
	case plan.ECall:
		args := make([]ir.Value, len(expr.Args))
		for i, a := range expr.Args {
			v, err := in.evalExpr(a, e)
			if err != nil {
				return ir.Value{}, err
			}
			args[i] = v
		}
		name := in.c.NameString(expr.Fn)
		fn, ok := scalarFns[name]
		if !ok {
			return ir.Value{}, &Error{Msg: "unknown function: " + name}
		}
		return fn(args)
	default:
		return ir.Value{}, &Error{Msg: "unknown expression kind"}
	}
}
