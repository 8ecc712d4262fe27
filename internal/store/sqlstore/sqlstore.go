// Package sqlstore implements SPEC_FULL.md §B.1: a store.Store backed by
// SQLite via modernc.org/sqlite (pure Go, no cgo), one table per relation.
// It is exactly the kind of host-side adapter spec.md §5 calls out as a
// legitimate external implementation of the serial Store contract; the
// in-memory store in internal/store remains the default.
package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"dlcore/internal/ir"
	"dlcore/internal/store"
)

const (
	bucketStable    = "stable"
	bucketDelta     = "delta"
	bucketNextDelta = "next_delta"
)

// relMeta tracks one relation's physical schema state: its column count
// (-1 until the first Insert fixes it, since CreateRelation alone carries
// no arity) and which columns already have a lazily-built index.
type relMeta struct {
	arity   int
	indexed map[int]bool
}

// Store is a store.Store backed by one SQLite database.
type Store struct {
	db *sql.DB

	mu   sync.Mutex
	rels map[string]relMeta
}

// Open opens (creating if absent) a SQLite database at path — use
// ":memory:" for an ephemeral store scoped to one process.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", path, err)
	}
	// modernc.org/sqlite serializes writes at the file level regardless;
	// capping the pool at one connection avoids spurious "database is
	// locked" errors from concurrent writers racing the same file.
	db.SetMaxOpenConns(1)
	return &Store{db: db, rels: make(map[string]relMeta)}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func tableName(relation string) string { return "rel_" + sanitize(relation) }

func sanitize(name string) string {
	b := []byte(name)
	for i, c := range b {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		default:
			b[i] = '_'
		}
	}
	return string(b)
}

func (s *Store) CreateRelation(relation string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rels[relation]; !ok {
		s.rels[relation] = relMeta{arity: -1, indexed: make(map[int]bool)}
	}
}

func (s *Store) known(relation string) (relMeta, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rels[relation]
	return m, ok
}

// ensureTable fixes relation's arity on first use and creates its table.
// A later Insert with a different tuple length is a physical schema
// conflict this backend cannot represent (the in-memory default has no
// such restriction, since it never commits to fixed columns).
func (s *Store) ensureTable(relation string, arity int) error {
	s.mu.Lock()
	meta, ok := s.rels[relation]
	if !ok {
		s.mu.Unlock()
		return &store.Error{Msg: "unknown relation " + relation}
	}
	if meta.arity == arity {
		s.mu.Unlock()
		return nil
	}
	if meta.arity != -1 {
		s.mu.Unlock()
		return &store.Error{Msg: fmt.Sprintf("relation %s: arity mismatch, already %d column(s), got %d", relation, meta.arity, arity)}
	}
	meta.arity = arity
	s.rels[relation] = meta
	s.mu.Unlock()

	var colSuffix string
	if arity > 0 {
		cols := make([]string, arity)
		for i := range cols {
			cols[i] = fmt.Sprintf("c%d BLOB", i)
		}
		colSuffix = ", " + strings.Join(cols, ", ")
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (row_hash BLOB PRIMARY KEY, bucket TEXT NOT NULL%s)`,
		tableName(relation), colSuffix)
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("sqlstore: create table for %s: %w", relation, err)
	}
	return nil
}

func (s *Store) ensureIndex(relation string, col int) error {
	s.mu.Lock()
	meta, ok := s.rels[relation]
	if !ok {
		s.mu.Unlock()
		return &store.Error{Msg: "unknown relation " + relation}
	}
	if meta.indexed[col] {
		s.mu.Unlock()
		return nil
	}
	meta.indexed[col] = true
	s.rels[relation] = meta
	s.mu.Unlock()

	ddl := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_c%d ON %s (c%d)`,
		tableName(relation), col, tableName(relation), col)
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("sqlstore: create index on %s column %d: %w", relation, col, err)
	}
	return nil
}

func (s *Store) Insert(relation string, tuple store.Row) (bool, error) {
	for _, v := range tuple {
		if isComposite(v) {
			return false, &store.Error{Msg: "sqlstore: composite values (List/Map/Struct) are not supported"}
		}
	}
	if err := s.ensureTable(relation, len(tuple)); err != nil {
		return false, err
	}

	table := tableName(relation)
	hash := rowHash(tuple)

	var exists int
	err := s.db.QueryRow(fmt.Sprintf(`SELECT 1 FROM %s WHERE row_hash = ?`, table), hash).Scan(&exists)
	if err == nil {
		return false, nil
	}
	if err != sql.ErrNoRows {
		return false, fmt.Errorf("sqlstore: insert check on %s: %w", relation, err)
	}

	colNames := make([]string, len(tuple))
	placeholders := make([]string, len(tuple))
	args := make([]any, 0, len(tuple)+2)
	args = append(args, hash, bucketNextDelta)
	for i, v := range tuple {
		colNames[i] = fmt.Sprintf("c%d", i)
		placeholders[i] = "?"
		args = append(args, encodeValue(v))
	}
	var colSuffix, valSuffix string
	if len(tuple) > 0 {
		colSuffix = ", " + strings.Join(colNames, ", ")
		valSuffix = ", " + strings.Join(placeholders, ", ")
	}
	stmt := fmt.Sprintf(`INSERT INTO %s (row_hash, bucket%s) VALUES (?, ?%s)`, table, colSuffix, valSuffix)
	if _, err := s.db.Exec(stmt, args...); err != nil {
		return false, fmt.Errorf("sqlstore: insert into %s: %w", relation, err)
	}
	return true, nil
}

func (s *Store) Scan(relation string) ([]store.Row, error) {
	return s.scanBuckets(relation, bucketStable, bucketDelta)
}

func (s *Store) ScanDelta(relation string) ([]store.Row, error) {
	return s.scanBuckets(relation, bucketDelta)
}

func (s *Store) ScanNextDelta(relation string) ([]store.Row, error) {
	return s.scanBuckets(relation, bucketNextDelta)
}

func (s *Store) scanBuckets(relation string, buckets ...string) ([]store.Row, error) {
	meta, ok := s.known(relation)
	if !ok {
		return nil, &store.Error{Msg: "unknown relation " + relation}
	}
	if meta.arity < 0 {
		return nil, nil
	}

	bucketPh := make([]string, len(buckets))
	args := make([]any, len(buckets))
	for i, b := range buckets {
		bucketPh[i] = "?"
		args[i] = b
	}
	table := tableName(relation)

	if meta.arity == 0 {
		q := fmt.Sprintf(`SELECT 1 FROM %s WHERE bucket IN (%s) LIMIT 1`, table, strings.Join(bucketPh, ", "))
		var x int
		err := s.db.QueryRow(q, args...).Scan(&x)
		if err == sql.ErrNoRows {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("sqlstore: scan %s: %w", relation, err)
		}
		return []store.Row{{}}, nil
	}

	cols := make([]string, meta.arity)
	for i := range cols {
		cols[i] = fmt.Sprintf("c%d", i)
	}
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE bucket IN (%s)`, strings.Join(cols, ", "), table, strings.Join(bucketPh, ", "))
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: scan %s: %w", relation, err)
	}
	return decodeRows(rows, meta.arity)
}

func (s *Store) ScanIndex(relation string, col int, key ir.Value) ([]store.Row, error) {
	return s.scanIndexBuckets(relation, col, key, bucketStable, bucketDelta)
}

func (s *Store) ScanDeltaIndex(relation string, col int, key ir.Value) ([]store.Row, error) {
	return s.scanIndexBuckets(relation, col, key, bucketDelta)
}

func (s *Store) scanIndexBuckets(relation string, col int, key ir.Value, buckets ...string) ([]store.Row, error) {
	meta, ok := s.known(relation)
	if !ok {
		return nil, &store.Error{Msg: "unknown relation " + relation}
	}
	if meta.arity < 0 {
		return nil, nil
	}
	if col < 0 || col >= meta.arity {
		return nil, &store.Error{Msg: fmt.Sprintf("column index %d out of range for relation %s", col, relation)}
	}
	if err := s.ensureIndex(relation, col); err != nil {
		return nil, err
	}

	table := tableName(relation)
	cols := make([]string, meta.arity)
	for i := range cols {
		cols[i] = fmt.Sprintf("c%d", i)
	}
	bucketPh := make([]string, len(buckets))
	args := []any{encodeValue(key)}
	for i, b := range buckets {
		bucketPh[i] = "?"
		args = append(args, b)
	}
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE c%d = ? AND bucket IN (%s)`,
		strings.Join(cols, ", "), table, col, strings.Join(bucketPh, ", "))
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: scan_index %s: %w", relation, err)
	}
	return decodeRows(rows, meta.arity)
}

func decodeRows(rows *sql.Rows, arity int) ([]store.Row, error) {
	defer rows.Close()
	var out []store.Row
	raw := make([][]byte, arity)
	scanDest := make([]any, arity)
	for i := range raw {
		scanDest[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(scanDest...); err != nil {
			return nil, fmt.Errorf("sqlstore: scan row: %w", err)
		}
		row := make(store.Row, arity)
		for i, b := range raw {
			v, err := decodeValue(b)
			if err != nil {
				return nil, err
			}
			row[i] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// MergeDeltas runs one errgroup goroutine per known relation, each applying
// that relation's two bucket-reclassification updates in order. This is
// sqlstore's use of golang.org/x/sync/errgroup, alongside cmd/dlc's
// concurrent file loading; a merge rebuilds no index.
func (s *Store) MergeDeltas() error {
	s.mu.Lock()
	names := make([]string, 0, len(s.rels))
	for name, meta := range s.rels {
		if meta.arity >= 0 {
			names = append(names, name)
		}
	}
	s.mu.Unlock()

	var g errgroup.Group
	for _, name := range names {
		name := name
		g.Go(func() error { return s.mergeOne(name) })
	}
	return g.Wait()
}

func (s *Store) mergeOne(relation string) error {
	table := tableName(relation)
	if _, err := s.db.Exec(fmt.Sprintf(`UPDATE %s SET bucket = ? WHERE bucket = ?`, table), bucketStable, bucketDelta); err != nil {
		return fmt.Errorf("sqlstore: merge %s (stable<-delta): %w", relation, err)
	}
	if _, err := s.db.Exec(fmt.Sprintf(`UPDATE %s SET bucket = ? WHERE bucket = ?`, table), bucketDelta, bucketNextDelta); err != nil {
		return fmt.Errorf("sqlstore: merge %s (delta<-next_delta): %w", relation, err)
	}
	return nil
}
