package plan

import (
	"testing"

	"github.com/stretchr/testify/require"

	"dlcore/internal/ir"
	"dlcore/internal/lower"
	"dlcore/internal/syntax"
)

// compileClause parses and lowers a single-clause source string, returning
// its rule instruction id.
func compileClause(t *testing.T, c *ir.Container, src string) ir.InstId {
	t.Helper()
	u, err := syntax.Parse(src)
	require.NoError(t, err)
	require.Len(t, u.Clauses, 1)
	return lower.Clause(c, u.Clauses[0])
}

func TestPlanRule_PlainJoin(t *testing.T) {
	c := ir.New()
	ruleId := compileClause(t, c, "path(X, Z) :- edge(X, Y), edge(Y, Z).")

	rp, err := New(c, 0).PlanRule(ruleId)
	require.NoError(t, err)
	require.Len(t, rp.Blocks, 1)
	require.Empty(t, rp.Temps)

	root := rp.Blocks[0]
	require.Equal(t, OpIterate, root.Kind)
	require.Equal(t, SourceScan, root.Source.Kind)
	require.Equal(t, "edge", c.NameString(root.Source.Relation))
	require.Len(t, root.Vars, 2)

	// First edge(X, Y) binds X and Y directly, with no filters (both are
	// fresh variables): its Body is the second edge's Iterate directly.
	second := root.Body
	require.Equal(t, OpIterate, second.Kind)
	require.Equal(t, "edge", c.NameString(second.Source.Relation))

	// Second edge(Y, Z): Y is already bound, so column 0 becomes an index
	// lookup key (leftmost bound-or-constant argument wins).
	require.Equal(t, SourceIndexLookup, second.Source.Kind)
	require.Equal(t, 0, second.Source.ColIdx)
	require.Equal(t, EVar, second.Source.Key.Kind)

	insert := second.Body
	require.Equal(t, OpInsert, insert.Kind)
	require.Equal(t, "path", c.NameString(insert.Relation))
	require.Len(t, insert.Args, 2)
}

func TestPlanRule_ConstantArgumentBecomesIndexKey(t *testing.T) {
	c := ir.New()
	ruleId := compileClause(t, c, `admin(X) :- role(X, "admin").`)

	rp, err := New(c, 0).PlanRule(ruleId)
	require.NoError(t, err)
	root := rp.Blocks[0]
	require.Equal(t, SourceIndexLookup, root.Source.Kind)
	require.Equal(t, 1, root.Source.ColIdx)
	require.Equal(t, EConst, root.Source.Key.Kind)
	require.Equal(t, ir.KindString, root.Source.Key.Const.Kind)
	require.Equal(t, "admin", root.Source.Key.Const.Str)
}

func TestPlanRule_RepeatedVariableBecomesFilter(t *testing.T) {
	c := ir.New()
	// Y appears twice in the same atom: the second occurrence must filter
	// against the first rather than silently rebinding it.
	ruleId := compileClause(t, c, "loop(X) :- link(X, Y, Y).")

	rp, err := New(c, 0).PlanRule(ruleId)
	require.NoError(t, err)
	root := rp.Blocks[0]
	require.Equal(t, OpIterate, root.Kind)
	require.Equal(t, SourceScan, root.Source.Kind)

	filter := root.Body
	require.Equal(t, OpFilter, filter.Kind)
	require.Equal(t, CondEq, filter.Cond.Kind)
	require.Equal(t, EVar, filter.Cond.Right.Kind)
}

func TestPlanRule_DeltaPredicateScansDelta(t *testing.T) {
	c := ir.New()
	ruleId := compileClause(t, c, "reach(X, Z) :- reach(X, Y), edge(Y, Z).")

	reachId := c.InternName("reach")
	rp, err := New(c, reachId).PlanRule(ruleId)
	require.NoError(t, err)
	root := rp.Blocks[0]
	require.Equal(t, SourceScanDelta, root.Source.Kind)
	require.Equal(t, "reach", c.NameString(root.Source.Relation))
}

func TestPlanRule_LetArithmetic(t *testing.T) {
	c := ir.New()
	ruleId := compileClause(t, c, "doubled(X, Y) :- base(X) |> let Y = fn:mul(X, 2).")

	rp, err := New(c, 0).PlanRule(ruleId)
	require.NoError(t, err)
	root := rp.Blocks[0]
	require.Equal(t, OpIterate, root.Kind)

	let := root.Body
	require.Equal(t, OpLet, let.Kind)
	require.Equal(t, ECall, let.LetExpr.Kind)
	require.Equal(t, "fn:mul", c.NameString(let.LetExpr.Fn))
	require.Len(t, let.LetExpr.Args, 2)

	insert := let.Body
	require.Equal(t, OpInsert, insert.Kind)
}

func TestPlanRule_NestedCallFlattensIntoFreshLet(t *testing.T) {
	c := ir.New()
	ruleId := compileClause(t, c, "r(X, Y) :- base(X) |> let Y = fn:add(fn:mul(X, 2), 1).")

	rp, err := New(c, 0).PlanRule(ruleId)
	require.NoError(t, err)
	root := rp.Blocks[0]

	inner := root.Body
	require.Equal(t, OpLet, inner.Kind)
	require.Equal(t, "fn:mul", c.NameString(inner.LetExpr.Fn))

	outer := inner.Body
	require.Equal(t, OpLet, outer.Kind)
	require.Equal(t, "fn:add", c.NameString(outer.LetExpr.Fn))
	require.Equal(t, EVar, outer.LetExpr.Args[0].Kind)
	require.Equal(t, inner.LetVar, outer.LetExpr.Args[0].Var)

	insert := outer.Body
	require.Equal(t, OpInsert, insert.Kind)
}

func TestPlanRule_AggregationSplitsIntoTwoBlocks(t *testing.T) {
	c := ir.New()
	ruleId := compileClause(t, c, "total(K, S) :- item(K, V) |> do fn:group_by(K); let S = fn:sum(V).")

	rp, err := New(c, 0).PlanRule(ruleId)
	require.NoError(t, err)
	require.Len(t, rp.Blocks, 2)
	require.Len(t, rp.Temps, 1)

	block0 := rp.Blocks[0]
	require.Equal(t, OpIterate, block0.Kind)
	insert0 := block0.Body
	require.Equal(t, OpInsert, insert0.Kind)
	require.Equal(t, rp.Temps[0], insert0.Relation)

	groupBy := rp.Blocks[1]
	require.Equal(t, OpGroupBy, groupBy.Kind)
	require.Equal(t, rp.Temps[0], groupBy.GroupSource)
	require.Len(t, groupBy.GroupKeys, 1)
	require.Len(t, groupBy.Aggregates, 1)
	require.Equal(t, AggSum, groupBy.Aggregates[0].Kind)

	headInsert := groupBy.Body
	require.Equal(t, OpInsert, headInsert.Kind)
	require.Equal(t, "total", c.NameString(headInsert.Relation))
}

func TestPlanRule_GroupByKeyMustBeVariable(t *testing.T) {
	c := ir.New()
	ruleId := compileClause(t, c, `total(S) :- item(V) |> do fn:group_by("x"); let S = fn:sum(V).`)

	_, err := New(c, 0).PlanRule(ruleId)
	require.Error(t, err)
	require.Contains(t, err.Error(), "group-by keys must be variables")
}

func TestPlanRule_AggregateNonTrivialArgumentRejected(t *testing.T) {
	c := ir.New()
	ruleId := compileClause(t, c, "total(K, S) :- item(K, V) |> do fn:group_by(K); let S = fn:sum(fn:mul(V, 2)).")

	_, err := New(c, 0).PlanRule(ruleId)
	require.Error(t, err)
	require.Contains(t, err.Error(), "complex expressions in aggregates not supported")
}

func TestPlanRule_NegationIsUnsupportedPremise(t *testing.T) {
	c := ir.New()
	ruleId := compileClause(t, c, "q(X) :- p(X), !blocked(X).")

	_, err := New(c, 0).PlanRule(ruleId)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported premise")
}
