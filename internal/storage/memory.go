package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/google/btree"

	"github.com/myuser/graphstore/internal/keys"
	"github.com/myuser/graphstore/internal/storage/wal"
)

// MemoryStore is an ordered in-memory Engine on a btree. With a WAL
// attached, every batch is logged before it is applied and the log is
// replayed on open, so the store survives restarts.
type MemoryStore struct {
	mu     sync.RWMutex
	tree   *btree.BTree
	log    *wal.WAL
	closed bool
}

type item struct {
	key   []byte
	value []byte
}

func (i *item) Less(than btree.Item) bool {
	return bytes.Compare(i.key, than.(*item).key) < 0
}

// NewMemoryStore creates a volatile store with no WAL.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tree: btree.New(32),
	}
}

// OpenMemoryStore creates a store backed by a WAL at walPath, replaying
// any existing log before returning.
func OpenMemoryStore(walPath string) (*MemoryStore, error) {
	log, err := wal.Open(walPath)
	if err != nil {
		return nil, fmt.Errorf("open wal: %w", err)
	}

	s := &MemoryStore{
		tree: btree.New(32),
		log:  log,
	}
	err = log.Iterate(func(data []byte) error {
		space, _, pairs, err := decodeBatchRecord(data)
		if err != nil {
			return err
		}
		s.applyLocked(space, pairs)
		return nil
	})
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("replay wal: %w", err)
	}
	return s, nil
}

// physicalKey namespaces a storage key by its space.
func physicalKey(space keys.SpaceID, key []byte) []byte {
	buf := make([]byte, 4+len(key))
	binary.BigEndian.PutUint32(buf, uint32(space))
	copy(buf[4:], key)
	return buf
}

func (s *MemoryStore) applyLocked(space keys.SpaceID, pairs []KV) {
	for _, kv := range pairs {
		s.tree.ReplaceOrInsert(&item{key: physicalKey(space, kv.Key), value: kv.Value})
	}
}

// PutBatch applies all pairs under one lock hold: concurrent readers
// see either none or all of the batch.
func (s *MemoryStore) PutBatch(space keys.SpaceID, part keys.PartitionID, pairs []KV) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	if s.log != nil {
		rec := encodeBatchRecord(space, part, pairs)
		if err := s.log.Append(rec); err != nil {
			return fmt.Errorf("wal append: %w", err)
		}
	}

	s.applyLocked(space, pairs)
	return nil
}

func (s *MemoryStore) Get(space keys.SpaceID, part keys.PartitionID, key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	got := s.tree.Get(&item{key: physicalKey(space, key)})
	if got == nil {
		return nil, nil
	}
	return got.(*item).value, nil
}

func (s *MemoryStore) ScanPrefix(space keys.SpaceID, part keys.PartitionID, prefix []byte) (Iterator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	start := physicalKey(space, prefix)
	var pairs []KV
	s.tree.AscendGreaterOrEqual(&item{key: start}, func(i btree.Item) bool {
		it := i.(*item)
		if !bytes.HasPrefix(it.key, start) {
			return false
		}
		pairs = append(pairs, KV{Key: it.key[4:], Value: it.value})
		return true
	})
	return &sliceIterator{pairs: pairs}, nil
}

func (s *MemoryStore) ScanRange(space keys.SpaceID, part keys.PartitionID, low, high []byte) (Iterator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	start := physicalKey(space, low)
	end := physicalKey(space, high)
	var pairs []KV
	s.tree.AscendGreaterOrEqual(&item{key: start}, func(i btree.Item) bool {
		it := i.(*item)
		if bytes.Compare(it.key, end) >= 0 {
			return false
		}
		pairs = append(pairs, KV{Key: it.key[4:], Value: it.value})
		return true
	})
	return &sliceIterator{pairs: pairs}, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.log != nil {
		return s.log.Close()
	}
	return nil
}

// Batch record format, framed by the WAL:
// space(4) | part(4) | count(4) | count * (klen(4) | key | vlen(4) | value)

func encodeBatchRecord(space keys.SpaceID, part keys.PartitionID, pairs []KV) []byte {
	size := 12
	for _, kv := range pairs {
		size += 8 + len(kv.Key) + len(kv.Value)
	}
	buf := make([]byte, 0, size)

	var scratch [4]byte
	put32 := func(v uint32) {
		binary.BigEndian.PutUint32(scratch[:], v)
		buf = append(buf, scratch[:]...)
	}

	put32(uint32(space))
	put32(uint32(part))
	put32(uint32(len(pairs)))
	for _, kv := range pairs {
		put32(uint32(len(kv.Key)))
		buf = append(buf, kv.Key...)
		put32(uint32(len(kv.Value)))
		buf = append(buf, kv.Value...)
	}
	return buf
}

func decodeBatchRecord(data []byte) (keys.SpaceID, keys.PartitionID, []KV, error) {
	if len(data) < 12 {
		return 0, 0, nil, fmt.Errorf("batch record too short: %d bytes", len(data))
	}
	space := keys.SpaceID(binary.BigEndian.Uint32(data[0:]))
	part := keys.PartitionID(binary.BigEndian.Uint32(data[4:]))
	count := binary.BigEndian.Uint32(data[8:])
	rest := data[12:]

	pairs := make([]KV, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(rest) < 4 {
			return 0, 0, nil, fmt.Errorf("batch record truncated at pair %d", i)
		}
		klen := binary.BigEndian.Uint32(rest)
		rest = rest[4:]
		if uint32(len(rest)) < klen+4 {
			return 0, 0, nil, fmt.Errorf("batch record truncated at pair %d", i)
		}
		key := rest[:klen]
		rest = rest[klen:]
		vlen := binary.BigEndian.Uint32(rest)
		rest = rest[4:]
		if uint32(len(rest)) < vlen {
			return 0, 0, nil, fmt.Errorf("batch record truncated at pair %d", i)
		}
		value := rest[:vlen]
		rest = rest[vlen:]
		pairs = append(pairs, KV{Key: key, Value: value})
	}
	return space, part, pairs, nil
}
