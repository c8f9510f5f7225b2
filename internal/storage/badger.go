package storage

import (
	"bytes"
	"fmt"

	badger "github.com/dgraph-io/badger/v3"

	"github.com/myuser/graphstore/internal/keys"
)

// BadgerStore is an on-disk Engine on BadgerDB. A batch is one Badger
// transaction, so per-partition atomicity falls out of Badger's
// snapshot isolation.
type BadgerStore struct {
	db *badger.DB
}

// BadgerConfig holds the settings for opening a BadgerStore.
type BadgerConfig struct {
	Dir string `yaml:"dir"`
	// SyncWrites trades throughput for durability of each commit.
	SyncWrites bool `yaml:"syncWrites"`
}

// OpenBadgerStore opens or creates the database under conf.Dir. The
// caller owns Close.
func OpenBadgerStore(conf BadgerConfig) (*BadgerStore, error) {
	opts := badger.DefaultOptions(conf.Dir)
	opts.SyncWrites = conf.SyncWrites
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", conf.Dir, err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) PutBatch(space keys.SpaceID, part keys.PartitionID, pairs []KV) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, kv := range pairs {
			if err := txn.Set(physicalKey(space, kv.Key), kv.Value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badger batch (part %d, %d pairs): %w", part, len(pairs), err)
	}
	return nil
}

func (s *BadgerStore) Get(space keys.SpaceID, part keys.PartitionID, key []byte) ([]byte, error) {
	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(physicalKey(space, key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("badger get: %w", err)
	}
	return val, nil
}

// collect materializes matching pairs inside one View transaction.
// Badger iterators are only valid within their transaction, and values
// must be copied out anyway, so scans return a snapshot slice.
func (s *BadgerStore) collect(space keys.SpaceID, start []byte, keep func(physKey []byte) bool) (Iterator, error) {
	var pairs []KV
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(start); it.Valid(); it.Next() {
			item := it.Item()
			k := item.KeyCopy(nil)
			if !keep(k) {
				break
			}
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			pairs = append(pairs, KV{Key: k[4:], Value: v})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger scan: %w", err)
	}
	return &sliceIterator{pairs: pairs}, nil
}

func (s *BadgerStore) ScanPrefix(space keys.SpaceID, part keys.PartitionID, prefix []byte) (Iterator, error) {
	start := physicalKey(space, prefix)
	return s.collect(space, start, func(k []byte) bool {
		return bytes.HasPrefix(k, start)
	})
}

func (s *BadgerStore) ScanRange(space keys.SpaceID, part keys.PartitionID, low, high []byte) (Iterator, error) {
	start := physicalKey(space, low)
	end := physicalKey(space, high)
	return s.collect(space, start, func(k []byte) bool {
		return bytes.Compare(k, end) < 0
	})
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
