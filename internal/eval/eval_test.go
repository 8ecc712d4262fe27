package eval

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"dlcore/internal/ir"
	"dlcore/internal/store"
	"dlcore/internal/syntax"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func compileAndRun(t *testing.T, srcs ...string) (*ir.Container, store.Store) {
	t.Helper()
	c := ir.New()
	units := make([]*syntax.Unit, len(srcs))
	for i, src := range srcs {
		u, err := syntax.Parse(src)
		require.NoError(t, err)
		units[i] = u
	}
	prog, strat, err := Compile(c, units...)
	require.NoError(t, err)

	st := store.NewMem()
	_, err = Execute(c, prog, strat, st, Options{})
	require.NoError(t, err)
	return c, st
}

func rowsToStrings(rows []store.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		s := ""
		for _, v := range r {
			s += v.String() + ","
		}
		out[i] = s
	}
	return out
}

// TestEval_S1_TransitiveClosure exercises spec.md §8's S1 scenario.
func TestEval_S1_TransitiveClosure(t *testing.T) {
	c, st := compileAndRun(t, `
		edge(1,2). edge(2,3). edge(3,4). edge(4,5).
		reachable(X,Y) :- edge(X,Y).
		reachable(X,Z) :- reachable(X,Y), edge(Y,Z).
	`)

	rows, err := st.Scan("reachable")
	require.NoError(t, err)

	want := []string{
		"1,2,", "1,3,", "1,4,", "1,5,",
		"2,3,", "2,4,", "2,5,",
		"3,4,", "3,5,",
		"4,5,",
	}
	got := rowsToStrings(rows)
	sortStrings(want)
	sortStrings(got)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("reachable mismatch (-want +got):\n%s", diff)
	}
	_ = c
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// TestEval_S2_PackageRename exercises spec.md §8's S2 scenario.
func TestEval_S2_PackageRename(t *testing.T) {
	_, st := compileAndRun(t, `
		Package pkg!
		p(1).
		q(X) :- p(X).
	`)

	rows, err := st.Scan("pkg.p")
	require.NoError(t, err)
	require.Equal(t, []string{"1,"}, rowsToStrings(rows))

	rows, err = st.Scan("pkg.q")
	require.NoError(t, err)
	require.Equal(t, []string{"1,"}, rowsToStrings(rows))

	_, err = st.Scan("p")
	require.Error(t, err)
	_, err = st.Scan("q")
	require.Error(t, err)
}

// TestEval_S3_ArithmeticLet exercises spec.md §8's S3 scenario.
func TestEval_S3_ArithmeticLet(t *testing.T) {
	_, st := compileAndRun(t, `
		p(1). p(2).
		q(Y) :- p(X) |> let Y = fn:plus(X, 10).
	`)
	rows, err := st.Scan("q")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"11,", "12,"}, rowsToStrings(rows))
}

// TestEval_S4_Aggregation exercises spec.md §8's S4 scenario.
func TestEval_S4_Aggregation(t *testing.T) {
	_, st := compileAndRun(t, `
		p(1,10). p(1,20). p(2,30).
		q(K,S) :- p(K,V) |> do fn:group_by(K); let S = fn:sum(V).
	`)
	rows, err := st.Scan("q")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"1,30,", "2,30,"}, rowsToStrings(rows))
}

// TestEval_S5_Count exercises spec.md §8's S5 scenario.
func TestEval_S5_Count(t *testing.T) {
	_, st := compileAndRun(t, `
		p(1,10). p(1,20). p(2,30).
		q(K,C) :- p(K,V) |> do fn:group_by(K); let C = fn:count(V).
	`)
	rows, err := st.Scan("q")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"1,2,", "2,1,"}, rowsToStrings(rows))
}

// TestEval_GroupByDistinguishesKeysWithPipeInStringColumns exercises a
// multi-column group-by key whose two distinct tuples hash to the same
// bare-concatenated string ("s:X|s:Y|s:Z|" either way) because one
// column's text itself contains "|". A correct group-by must still keep
// them in separate groups; a bare-concatenation key collision would silently
// merge their rows into one group with a wrong aggregate.
func TestEval_GroupByDistinguishesKeysWithPipeInStringColumns(t *testing.T) {
	_, st := compileAndRun(t, `
		p("X|s:Y", "Z", 10).
		p("X", "Y|s:Z", 20).
		q(A,B,C) :- p(A,B,V) |> do fn:group_by(A,B); let C = fn:count(V).
	`)
	rows, err := st.Scan("q")
	require.NoError(t, err)
	require.Len(t, rows, 2, "the two distinct key tuples must form two groups, not one merged group")
	for _, r := range rows {
		require.Equal(t, ir.Number(1), r[2], "each group has exactly one row, so count must be 1")
	}
}

// TestEval_S6_NegationCycleRejection exercises spec.md §8's S6 scenario:
// stratify (invoked from Compile) must reject the program.
func TestEval_S6_NegationCycleRejection(t *testing.T) {
	c := ir.New()
	u, err := syntax.Parse(`p(X) :- !p(X).`)
	require.NoError(t, err)

	_, _, err = Compile(c, u)
	require.Error(t, err)
	require.Contains(t, err.Error(), "cannot be stratified")
}

// TestEval_FixedPointIdempotence exercises spec.md §8's property 6: a
// second Execute on the same store after the fixed point inserts nothing.
func TestEval_FixedPointIdempotence(t *testing.T) {
	c := ir.New()
	u, err := syntax.Parse(`
		edge(1,2). edge(2,3).
		reachable(X,Y) :- edge(X,Y).
		reachable(X,Z) :- reachable(X,Y), edge(Y,Z).
	`)
	require.NoError(t, err)
	prog, strat, err := Compile(c, u)
	require.NoError(t, err)

	st := store.NewMem()
	n1, err := Execute(c, prog, strat, st, Options{})
	require.NoError(t, err)
	require.Greater(t, n1, 0)

	n2, err := Execute(c, prog, strat, st, Options{})
	require.NoError(t, err)
	require.Equal(t, 0, n2)
}

// TestEval_MultiUnitCompile exercises SPEC_FULL.md §C.4's multi-unit
// Compile generalization.
func TestEval_MultiUnitCompile(t *testing.T) {
	_, st := compileAndRun(t,
		`p(1). p(2).`,
		`q(X) :- p(X).`,
	)
	rows, err := st.Scan("q")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"1,", "2,"}, rowsToStrings(rows))
}
