package syntax

import (
	"testing"

	"github.com/stretchr/testify/require"

	"dlcore/internal/ir"
)

func TestParse_Fact(t *testing.T) {
	u, err := Parse(`edge(1, 2).`)
	require.NoError(t, err)
	require.Len(t, u.Clauses, 1)

	c := u.Clauses[0]
	require.Equal(t, "edge", c.Head.Pred)
	require.Empty(t, c.Premises)
	require.Empty(t, c.Transforms)
	require.Equal(t, []Term{Const(ir.Number(1)), Const(ir.Number(2))}, c.Head.Args)
}

func TestParse_RuleWithPremisesAndNegation(t *testing.T) {
	u, err := Parse(`path(X, Y) :- edge(X, Y), !blocked(X, Y).`)
	require.NoError(t, err)
	require.Len(t, u.Clauses, 1)

	c := u.Clauses[0]
	require.Len(t, c.Premises, 2)
	require.Equal(t, PAtom, c.Premises[0].Kind)
	require.Equal(t, "edge", c.Premises[0].Atom.Pred)
	require.Equal(t, PNegAtom, c.Premises[1].Kind)
	require.Equal(t, "blocked", c.Premises[1].Atom.Pred)
}

func TestParse_EqualityAndInequalityPremises(t *testing.T) {
	u, err := Parse(`same(X, Y) :- node(X), node(Y), X = Y.`)
	require.NoError(t, err)
	require.Equal(t, PEq, u.Clauses[0].Premises[2].Kind)

	u, err = Parse(`diff(X, Y) :- node(X), node(Y), X != Y.`)
	require.NoError(t, err)
	require.Equal(t, PIneq, u.Clauses[0].Premises[2].Kind)
}

func TestParse_TransformLetAndDo(t *testing.T) {
	u, err := Parse(`sum(X, S) :- value(X, V) |> let S = fn:plus(V, 1); do fn:count().`)
	require.NoError(t, err)
	require.Len(t, u.Clauses[0].Transforms, 2)

	let := u.Clauses[0].Transforms[0]
	require.True(t, let.HasVar)
	require.Equal(t, "S", let.Var)
	require.Equal(t, "fn:plus", let.App.Fn)

	do := u.Clauses[0].Transforms[1]
	require.False(t, do.HasVar)
	require.Equal(t, "fn:count", do.App.Fn)
}

func TestParse_ListLiteral(t *testing.T) {
	u, err := Parse(`tags([1, 2, 3]).`)
	require.NoError(t, err)

	arg := u.Clauses[0].Head.Args[0]
	require.Equal(t, TConst, arg.Kind)
	require.Equal(t, ir.List([]ir.Value{ir.Number(1), ir.Number(2), ir.Number(3)}), arg.Const)
}

func TestParse_PackageAndUseHeaders(t *testing.T) {
	u, err := Parse(`Package foo! Use bar! p(1).`)
	require.NoError(t, err)
	require.NotNil(t, u.Package)
	require.Equal(t, "foo", u.Package.Name)
	require.Len(t, u.Uses, 1)
	require.Equal(t, "bar", u.Uses[0].Name)
}

func TestParse_DeclWithBoundAlternatives(t *testing.T) {
	u, err := Parse(`Decl edge(X, Y) bound /number, /number | /string, /string.`)
	require.NoError(t, err)
	require.Len(t, u.Decls, 1)

	d := u.Decls[0]
	require.Equal(t, "edge", d.Atom.Pred)
	require.Len(t, d.Bounds, 2)
	require.Len(t, d.Bounds[0].Terms, 2)
	require.Len(t, d.Bounds[1].Terms, 2)
	require.Equal(t, ir.Name("number"), d.Bounds[0].Terms[0].Const)
}

func TestParse_ZeroArityAtom(t *testing.T) {
	u, err := Parse(`always_true.`)
	require.NoError(t, err)
	require.Equal(t, "always_true", u.Clauses[0].Head.Pred)
	require.Empty(t, u.Clauses[0].Head.Args)
}

func TestParse_BooleanAndNameConstants(t *testing.T) {
	u, err := Parse(`flag(true, /some_name).`)
	require.NoError(t, err)
	args := u.Clauses[0].Head.Args
	require.Equal(t, ir.Bool(true), args[0].Const)
	require.Equal(t, ir.Name("some_name"), args[1].Const)
}

func TestParse_MalformedClauseErrors(t *testing.T) {
	_, err := Parse(`edge(1, 2)`) // missing trailing '.'
	require.Error(t, err)
}

func TestParse_NonAtomHeadErrors(t *testing.T) {
	_, err := Parse(`X.`)
	require.Error(t, err)
}
