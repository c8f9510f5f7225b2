package storage

import (
	"errors"

	"github.com/myuser/graphstore/internal/keys"
)

// KV is one key-value pair of a batch.
type KV struct {
	Key   []byte
	Value []byte
}

// Iterator walks scan results in ascending byte order of keys.
// An exhausted iterator reports Valid() == false.
type Iterator interface {
	Valid() bool
	Next()
	Key() []byte
	Value() []byte
	Close() error
}

// ErrStoreClosed is returned by operations on a closed engine.
var ErrStoreClosed = errors.New("storage: engine closed")

// Engine is the ordered key-value store the ingestion path writes to.
// Keys carry their partition prefix, so partitions are disjoint slices
// of the key space; the partition argument lets implementations route
// or isolate physically.
type Engine interface {
	// PutBatch atomically applies all pairs for one partition: relative
	// to any concurrent reader, either all pairs become visible or none.
	PutBatch(space keys.SpaceID, part keys.PartitionID, pairs []KV) error

	// Get returns the value stored under key, or nil if absent.
	Get(space keys.SpaceID, part keys.PartitionID, key []byte) ([]byte, error)

	// ScanPrefix iterates all keys sharing prefix, ascending.
	ScanPrefix(space keys.SpaceID, part keys.PartitionID, prefix []byte) (Iterator, error)

	// ScanRange iterates the half-open interval [low, high), ascending.
	ScanRange(space keys.SpaceID, part keys.PartitionID, low, high []byte) (Iterator, error)

	Close() error
}

// sliceIterator serves scan results that were collected under the
// engine's own synchronization. Callers see a stable snapshot.
type sliceIterator struct {
	pairs []KV
	idx   int
}

func (it *sliceIterator) Valid() bool { return it.idx < len(it.pairs) }

func (it *sliceIterator) Next() { it.idx++ }

func (it *sliceIterator) Key() []byte {
	return it.pairs[it.idx].Key
}

func (it *sliceIterator) Value() []byte {
	return it.pairs[it.idx].Value
}

func (it *sliceIterator) Close() error { return nil }
