package store

import "dlcore/internal/ir"

// Composite dispatches every operation to one of several registered
// backend Stores based on the relation name, falling back to a default
// for anything not explicitly routed — e.g. EDB relations served from a
// sqlstore.Store while IDB relations stay in a Mem. Grounded on
// `rust/vm/src/composite_host.rs`'s per-relation routing; the original
// tags WASM linear-memory pointers with a host index because its Host
// trait addresses tuples by integer handle, a scheme this layer has no
// use for since Store already addresses relations by name — routing is
// just a map lookup here.
type Composite struct {
	routes   map[string]Store
	fallback Store
}

// NewComposite returns a Composite that sends any unrouted relation to
// fallback.
func NewComposite(fallback Store) *Composite {
	return &Composite{routes: make(map[string]Store), fallback: fallback}
}

// Route sends every future operation on relation to backend instead of
// the fallback.
func (c *Composite) Route(relation string, backend Store) {
	c.routes[relation] = backend
}

func (c *Composite) backendFor(relation string) Store {
	if b, ok := c.routes[relation]; ok {
		return b
	}
	return c.fallback
}

func (c *Composite) CreateRelation(relation string) {
	c.backendFor(relation).CreateRelation(relation)
}

func (c *Composite) Scan(relation string) ([]Row, error) {
	return c.backendFor(relation).Scan(relation)
}

func (c *Composite) ScanDelta(relation string) ([]Row, error) {
	return c.backendFor(relation).ScanDelta(relation)
}

func (c *Composite) ScanNextDelta(relation string) ([]Row, error) {
	return c.backendFor(relation).ScanNextDelta(relation)
}

func (c *Composite) ScanIndex(relation string, colIdx int, key ir.Value) ([]Row, error) {
	return c.backendFor(relation).ScanIndex(relation, colIdx, key)
}

func (c *Composite) ScanDeltaIndex(relation string, colIdx int, key ir.Value) ([]Row, error) {
	return c.backendFor(relation).ScanDeltaIndex(relation, colIdx, key)
}

func (c *Composite) Insert(relation string, tuple Row) (bool, error) {
	return c.backendFor(relation).Insert(relation, tuple)
}

// MergeDeltas merges every distinct backend exactly once (the fallback,
// plus each routed backend), even though several relations may share one
// backend.
func (c *Composite) MergeDeltas() error {
	seen := make(map[Store]bool)
	merge := func(s Store) error {
		if seen[s] {
			return nil
		}
		seen[s] = true
		return s.MergeDeltas()
	}
	if err := merge(c.fallback); err != nil {
		return err
	}
	for _, b := range c.routes {
		if err := merge(b); err != nil {
			return err
		}
	}
	return nil
}
