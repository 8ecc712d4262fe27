package store

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"dlcore/internal/ir"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
	)
}

func TestMem_ScanUnknownRelationErrors(t *testing.T) {
	m := NewMem()
	_, err := m.Scan("ghost")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown relation")
}

func TestMem_InsertDeduplicatesGlobally(t *testing.T) {
	m := NewMem()
	m.CreateRelation("p")

	ok, err := m.Insert("p", Row{ir.Number(1)})
	require.NoError(t, err)
	require.True(t, ok)

	// Still pending in next-delta: not yet visible via Scan.
	rows, err := m.Scan("p")
	require.NoError(t, err)
	require.Empty(t, rows)

	require.NoError(t, m.MergeDeltas())
	rows, err = m.Scan("p")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	// Re-inserting the same tuple (now in stable) reports not-new.
	ok, err = m.Insert("p", Row{ir.Number(1)})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMem_DeltaLifecycleAcrossMerges(t *testing.T) {
	m := NewMem()
	m.CreateRelation("p")

	_, err := m.Insert("p", Row{ir.Number(1)})
	require.NoError(t, err)
	require.NoError(t, m.MergeDeltas())

	delta, err := m.ScanDelta("p")
	require.NoError(t, err)
	require.Len(t, delta, 1)

	_, err = m.Insert("p", Row{ir.Number(2)})
	require.NoError(t, err)
	nextDelta, err := m.ScanNextDelta("p")
	require.NoError(t, err)
	require.Len(t, nextDelta, 1)

	require.NoError(t, m.MergeDeltas())
	// (1) moved stable<-delta, (2) moved delta<-nextDelta.
	delta, err = m.ScanDelta("p")
	require.NoError(t, err)
	require.Equal(t, []Row{{ir.Number(2)}}, delta)

	all, err := m.Scan("p")
	require.NoError(t, err)
	require.ElementsMatch(t, []Row{{ir.Number(1)}, {ir.Number(2)}}, all)
}

func TestMem_ScanIndexFiltersByColumn(t *testing.T) {
	m := NewMem()
	m.CreateRelation("edge")
	for _, tuple := range []Row{
		{ir.Number(1), ir.Number(2)},
		{ir.Number(1), ir.Number(3)},
		{ir.Number(2), ir.Number(3)},
	} {
		_, err := m.Insert("edge", tuple)
		require.NoError(t, err)
	}
	require.NoError(t, m.MergeDeltas())

	rows, err := m.ScanIndex("edge", 0, ir.Number(1))
	require.NoError(t, err)
	require.ElementsMatch(t, []Row{{ir.Number(1), ir.Number(2)}, {ir.Number(1), ir.Number(3)}}, rows)

	rows, err = m.ScanIndex("edge", 0, ir.Number(99))
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestMem_ScanDeltaIndexRestrictedToDelta(t *testing.T) {
	m := NewMem()
	m.CreateRelation("edge")
	_, err := m.Insert("edge", Row{ir.Number(1), ir.Number(2)})
	require.NoError(t, err)
	require.NoError(t, m.MergeDeltas())
	_, err = m.Insert("edge", Row{ir.Number(1), ir.Number(3)})
	require.NoError(t, err)
	require.NoError(t, m.MergeDeltas())

	// By now {1,2} is stable and {1,3} is delta.
	rows, err := m.ScanDeltaIndex("edge", 0, ir.Number(1))
	require.NoError(t, err)
	require.Equal(t, []Row{{ir.Number(1), ir.Number(3)}}, rows)
}

func TestMem_InsertDistinguishesTuplesWithPipeInStringColumns(t *testing.T) {
	m := NewMem()
	m.CreateRelation("p")

	// Both rows hash to the same bare-concatenation key ("s:X|s:Y|s:Z|")
	// if the column boundary isn't length-prefixed; they must still be
	// treated as distinct tuples.
	a := Row{ir.String("X|s:Y"), ir.String("Z")}
	b := Row{ir.String("X"), ir.String("Y|s:Z")}

	ok, err := m.Insert("p", a)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = m.Insert("p", b)
	require.NoError(t, err)
	require.True(t, ok, "distinct tuples must not collide on a bare-concatenated hash key")

	require.NoError(t, m.MergeDeltas())
	rows, err := m.Scan("p")
	require.NoError(t, err)
	require.ElementsMatch(t, []Row{a, b}, rows)
}

func TestMem_CreateRelationIsIdempotent(t *testing.T) {
	m := NewMem()
	m.CreateRelation("p")
	_, err := m.Insert("p", Row{ir.Number(1)})
	require.NoError(t, err)
	m.CreateRelation("p") // must not reset the relation
	rows, err := m.ScanNextDelta("p")
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
