package lower

import (
	"testing"

	"github.com/stretchr/testify/require"

	"dlcore/internal/ir"
	"dlcore/internal/syntax"
)

func mustParse(t *testing.T, src string) *syntax.Unit {
	t.Helper()
	u, err := syntax.Parse(src)
	require.NoError(t, err)
	return u
}

func TestClause_FactHasNoPremisesOrTransforms(t *testing.T) {
	c := ir.New()
	u := mustParse(t, `edge(1, 2).`)

	id := Clause(c, u.Clauses[0])
	in := c.Get(id)
	require.Equal(t, ir.KRule, in.Kind)
	require.Empty(t, in.RulePremises)
	require.Empty(t, in.RuleTransforms)

	head := c.Get(in.RuleHead)
	require.Equal(t, ir.KAtom, head.Kind)
	require.Equal(t, "edge", c.NameString(head.NameH))
	require.Len(t, head.Args, 2)
}

func TestClause_RepeatedVariableSharesOneInstruction(t *testing.T) {
	c := ir.New()
	u := mustParse(t, `path(X, Y) :- edge(X, Z), edge(Z, Y).`)

	id := Clause(c, u.Clauses[0])
	in := c.Get(id)
	require.Len(t, in.RulePremises, 2)

	p1 := c.Get(in.RulePremises[0])
	p2 := c.Get(in.RulePremises[1])
	// Z occurs as arg 1 of edge(X, Z) and arg 0 of edge(Z, Y); both must
	// resolve to the same Var instruction.
	require.Equal(t, p1.Args[1], p2.Args[0])
}

func TestClause_WildcardNeverShared(t *testing.T) {
	c := ir.New()
	u := mustParse(t, `p(X) :- q(X, _), r(_, X).`)

	id := Clause(c, u.Clauses[0])
	in := c.Get(id)

	q := c.Get(in.RulePremises[0])
	r := c.Get(in.RulePremises[1])
	require.NotEqual(t, q.Args[1], r.Args[0], "each wildcard occurrence must be a fresh instruction")

	wq := c.Get(q.Args[1])
	wr := c.Get(r.Args[0])
	require.Equal(t, ir.WildcardName, wq.NameH)
	require.Equal(t, ir.WildcardName, wr.NameH)
}

func TestClause_NegationAndInequality(t *testing.T) {
	c := ir.New()
	u := mustParse(t, `p(X, Y) :- q(X, Y), !blocked(X, Y), X != Y.`)

	id := Clause(c, u.Clauses[0])
	in := c.Get(id)
	require.Len(t, in.RulePremises, 3)

	neg := c.Get(in.RulePremises[1])
	require.Equal(t, ir.KNegAtom, neg.Kind)
	atom := c.Get(neg.AtomIdx)
	require.Equal(t, "blocked", c.NameString(atom.NameH))

	ineq := c.Get(in.RulePremises[2])
	require.Equal(t, ir.KIneq, ineq.Kind)
}

func TestClause_LetAndDoTransforms(t *testing.T) {
	c := ir.New()
	u := mustParse(t, `s(X, S) :- v(X, V) |> let S = fn:plus(V, 1); do fn:count().`)

	id := Clause(c, u.Clauses[0])
	in := c.Get(id)
	require.Len(t, in.RuleTransforms, 2)

	let := c.Get(in.RuleTransforms[0])
	require.True(t, let.HasVar)
	require.Equal(t, "S", c.NameString(let.TransformVar))

	do := c.Get(in.RuleTransforms[1])
	require.False(t, do.HasVar)
}

func TestDecl_LowersAtomAndBounds(t *testing.T) {
	c := ir.New()
	u := mustParse(t, `Decl edge(X, Y) bound /number, /number.`)

	id := Decl(c, u.Decls[0])
	in := c.Get(id)
	require.Equal(t, ir.KDecl, in.Kind)
	require.Len(t, in.DeclBounds, 1)

	bound := c.Get(in.DeclBounds[0])
	require.Len(t, bound.BoundTerms, 2)
	t0 := c.Get(bound.BoundTerms[0])
	require.Equal(t, ir.KName, t0.Kind)
	require.Equal(t, "number", c.NameString(t0.NameH))
}

func TestUnit_LowersAllDeclsAndRulesInOrder(t *testing.T) {
	c := ir.New()
	u := mustParse(t, `
		Decl edge(X, Y) bound /number, /number.
		edge(1, 2).
		edge(2, 3).
	`)

	res := Unit(c, u)
	require.Len(t, res.Decls, 1)
	require.Len(t, res.Rules, 2)
}

func TestConstant_NestedListLowersElementwise(t *testing.T) {
	c := ir.New()
	sc := scope{}
	id := constant(c, sc, ir.List([]ir.Value{ir.Number(1), ir.Number(2)}))

	in := c.Get(id)
	require.Equal(t, ir.KList, in.Kind)
	require.Len(t, in.Elems, 2)
	require.Equal(t, ir.KNumber, c.Get(in.Elems[0]).Kind)
}
