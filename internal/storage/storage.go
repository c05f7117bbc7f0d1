// Package storage defines the key-value persistence boundary the
// consensus core writes through: a single embedded pebble database
// with column families modelled as key prefixes, and an atomic Batch
// so finalization can commit cert-votes, the period map, the PBFT
// block, the DAG block order, and the chain head in one indivisible
// write.
package storage

import (
	"github.com/cockroachdb/pebble"

	"github.com/Taraxa-project/taraxa-node-sub003/internal/errs"
)

// Column is a logical table, implemented as a byte-string key prefix
// over the single pebble keyspace.
type Column byte

const (
	ColumnDagBlocks Column = iota
	ColumnDagBlockPeriod
	ColumnPbftBlocks
	ColumnPbftBlockPeriod
	ColumnCertVotes
	ColumnVotes
	ColumnPeriodHead
	ColumnStatus
)

func key(c Column, k []byte) []byte {
	buf := make([]byte, 0, len(k)+1)
	buf = append(buf, byte(c))
	return append(buf, k...)
}

// Database is the read/write surface every consensus component is
// handed; it never exposes the underlying pebble.DB so callers can't
// bypass the column convention.
type Database struct {
	db *pebble.DB
}

// Open opens (or creates) a pebble database at dir.
func Open(dir string) (*Database, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errs.NewStorage("open", err)
	}
	return &Database{db: db}, nil
}

// Close flushes and closes the underlying database.
func (d *Database) Close() error {
	if err := d.db.Close(); err != nil {
		return errs.NewStorage("close", err)
	}
	return nil
}

// Get reads a single value. It returns (nil, false, nil) on a miss.
func (d *Database) Get(col Column, k []byte) ([]byte, bool, error) {
	v, closer, err := d.db.Get(key(col, k))
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.NewStorage("get", err)
	}
	out := append([]byte(nil), v...)
	_ = closer.Close()
	return out, true, nil
}

// Put writes a single key outside of a batch; consensus-critical
// multi-key writes must go through NewBatch instead.
func (d *Database) Put(col Column, k, v []byte) error {
	if err := d.db.Set(key(col, k), v, pebble.Sync); err != nil {
		return errs.NewStorage("put", err)
	}
	return nil
}

// NewIterator returns an iterator over every key in col.
func (d *Database) NewIterator(col Column) (*pebble.Iterator, error) {
	lower := []byte{byte(col)}
	upper := []byte{byte(col) + 1}
	return d.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
}

// Batch accumulates writes across possibly-many columns and commits
// them as a single atomic unit — the mechanism the finalization
// sequence relies on to make cert-votes + period-map + pbft-block +
// dag-set-order + head-update indivisible.
type Batch struct {
	db *pebble.DB
	b  *pebble.Batch
}

// NewBatch starts a new atomic write batch.
func (d *Database) NewBatch() *Batch {
	return &Batch{db: d.db, b: d.db.NewBatch()}
}

// Put stages a write; it has no effect until Commit is called.
func (b *Batch) Put(col Column, k, v []byte) error {
	if err := b.b.Set(key(col, k), v, nil); err != nil {
		return errs.NewStorage("batch put", err)
	}
	return nil
}

// Delete stages a deletion.
func (b *Batch) Delete(col Column, k []byte) error {
	if err := b.b.Delete(key(col, k), nil); err != nil {
		return errs.NewStorage("batch delete", err)
	}
	return nil
}

// Commit applies every staged write atomically and durably.
func (b *Batch) Commit() error {
	if err := b.b.Commit(pebble.Sync); err != nil {
		return errs.NewStorage("batch commit", err)
	}
	return nil
}
