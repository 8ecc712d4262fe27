package stratify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"dlcore/internal/ir"
	"dlcore/internal/lower"
	"dlcore/internal/program"
	"dlcore/internal/syntax"
)

func buildProgram(t *testing.T, src string) *program.Program {
	t.Helper()
	u, err := syntax.Parse(src)
	require.NoError(t, err)
	c := ir.New()
	res := lower.Unit(c, u)
	return program.Assemble(c, res)
}

func pred(p *program.Program, name string) ir.NameId {
	id, _ := p.Container.LookupName(name)
	return id
}

func TestStratify_SingleNonRecursivePredicate(t *testing.T) {
	p := buildProgram(t, `
		path(X, Y) :- edge(X, Y).
	`)
	s, err := Stratify(p)
	require.NoError(t, err)
	require.Len(t, s.Strata, 1)
	require.False(t, s.Recursive(0, p))
}

func TestStratify_RecursivePredicateIsOwnStratum(t *testing.T) {
	p := buildProgram(t, `
		reach(X, Y) :- edge(X, Y).
		reach(X, Y) :- reach(X, Z), edge(Z, Y).
	`)
	s, err := Stratify(p)
	require.NoError(t, err)
	require.Len(t, s.Strata, 1)
	require.True(t, s.Recursive(0, p))
}

func TestStratify_NegationOrdersDependencyFirst(t *testing.T) {
	p := buildProgram(t, `
		blocked(X) :- flagged(X).
		ok(X) :- node(X), !blocked(X).
	`)
	s, err := Stratify(p)
	require.NoError(t, err)
	require.Len(t, s.Strata, 2)

	blockedStratum := s.StratumOf[pred(p, "blocked")]
	okStratum := s.StratumOf[pred(p, "ok")]
	require.Less(t, blockedStratum, okStratum)
}

func TestStratify_RejectsRecursionThroughNegation(t *testing.T) {
	p := buildProgram(t, `
		p(X) :- q(X), !p(X).
	`)
	_, err := Stratify(p)
	require.Error(t, err)

	var stratErr *Error
	require.ErrorAs(t, err, &stratErr)
	require.Equal(t, "p", stratErr.Predicate)
}

func TestStratify_MutualRecursionThroughNegationAcrossTwoPredicatesRejected(t *testing.T) {
	p := buildProgram(t, `
		a(X) :- b(X), !c(X).
		c(X) :- a(X).
	`)
	_, err := Stratify(p)
	require.Error(t, err)
}

func TestStratify_PureExtensionalPredicateAbsentFromStrata(t *testing.T) {
	p := buildProgram(t, `
		path(X, Y) :- edge(X, Y).
	`)
	s, err := Stratify(p)
	require.NoError(t, err)

	_, ok := s.StratumOf[pred(p, "edge")]
	require.False(t, ok, "edge has no rules, so it must not appear in any stratum")
}

func TestStratify_DoTransformInOwnRecursiveCycleRejected(t *testing.T) {
	p := buildProgram(t, `
		agg(X) :- agg(X) |> do fn:count().
	`)
	_, err := Stratify(p)
	require.Error(t, err)

	var stratErr *Error
	require.ErrorAs(t, err, &stratErr)
	require.Equal(t, "agg", stratErr.Predicate)
}
