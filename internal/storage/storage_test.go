package storage

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/myuser/graphstore/internal/keys"
)

// engineUnderTest runs the shared Engine contract tests against one
// implementation.
func engineUnderTest(t *testing.T, engine Engine) {
	t.Helper()

	const space keys.SpaceID = 1
	const part keys.PartitionID = 3

	// Keys are written out of order; scans must come back sorted.
	var batch []KV
	for _, v := range []keys.Version{2, 5, 1, 4, 3} {
		batch = append(batch, KV{
			Key:   keys.EdgeKey(part, 100, 101, 103, 102, v),
			Value: []byte(fmt.Sprintf("v%d", v)),
		})
	}
	require.NoError(t, engine.PutBatch(space, part, batch))

	// Prefix scan: newest version first.
	iter, err := engine.ScanPrefix(space, part, keys.EdgePrefix(part, 100, 101))
	require.NoError(t, err)
	defer iter.Close()

	want := []string{"v5", "v4", "v3", "v2", "v1"}
	var got []string
	for ; iter.Valid(); iter.Next() {
		got = append(got, string(iter.Value()))
	}
	require.Equal(t, want, got)

	// Range scan over the slot behaves identically.
	low, high := keys.RangeBounds(part, 100, 101, 103, 102)
	iter, err = engine.ScanRange(space, part, low, high)
	require.NoError(t, err)
	defer iter.Close()

	got = got[:0]
	for ; iter.Valid(); iter.Next() {
		got = append(got, string(iter.Value()))
	}
	require.Equal(t, want, got)

	// Writing the same key replaces in place.
	key := keys.EdgeKey(part, 100, 101, 103, 102, 3)
	require.NoError(t, engine.PutBatch(space, part, []KV{{Key: key, Value: []byte("v3b")}}))
	val, err := engine.Get(space, part, key)
	require.NoError(t, err)
	require.Equal(t, []byte("v3b"), val)

	// Spaces are disjoint namespaces.
	iter, err = engine.ScanPrefix(space+1, part, keys.EdgePrefix(part, 100, 101))
	require.NoError(t, err)
	require.False(t, iter.Valid())
	iter.Close()

	// Missing key reads as nil.
	val, err = engine.Get(space, part, keys.EdgeKey(part, 9, 9, 9, 9, 9))
	require.NoError(t, err)
	require.Nil(t, val)
}

func TestMemoryStoreEngine(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	engineUnderTest(t, s)
}

func TestBadgerStoreEngine(t *testing.T) {
	s, err := OpenBadgerStore(BadgerConfig{Dir: t.TempDir()})
	require.NoError(t, err)
	defer s.Close()
	engineUnderTest(t, s)
}

func TestMemoryStoreBatchVisibility(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	const space keys.SpaceID = 0
	const part keys.PartitionID = 0
	prefix := keys.VertexPrefix(part, 7)

	// Concurrent readers must never observe a partial batch: counts
	// are always a multiple of the batch size.
	const batchSize = 50
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			iter, err := s.ScanPrefix(space, part, prefix)
			if err != nil {
				t.Errorf("scan: %v", err)
				return
			}
			n := 0
			for ; iter.Valid(); iter.Next() {
				n++
			}
			iter.Close()
			if n%batchSize != 0 {
				t.Errorf("observed partial batch: %d records", n)
				return
			}
		}
	}()

	for round := 0; round < 20; round++ {
		batch := make([]KV, 0, batchSize)
		for i := 0; i < batchSize; i++ {
			v := keys.Version(round*batchSize + i + 1)
			batch = append(batch, KV{
				Key:   keys.EdgeKey(part, 7, 1, keys.EdgeRanking(i), 8, v),
				Value: []byte("x"),
			})
		}
		if err := s.PutBatch(space, part, batch); err != nil {
			t.Fatalf("PutBatch: %v", err)
		}
	}
	close(done)
	wg.Wait()
}

func TestMemoryStoreWALReplay(t *testing.T) {
	walPath := filepath.Join(t.TempDir(), "edges.wal")

	s, err := OpenMemoryStore(walPath)
	require.NoError(t, err)

	key := keys.EdgeKey(1, 100, 101, 103, 102, 1)
	require.NoError(t, s.PutBatch(2, 1, []KV{
		{Key: key, Value: []byte("payload")},
		{Key: keys.EdgeKey(1, 100, 101, 103, 102, 2), Value: []byte("newer")},
	}))
	require.NoError(t, s.Close())

	// Reopen and replay.
	s2, err := OpenMemoryStore(walPath)
	require.NoError(t, err)
	defer s2.Close()

	val, err := s2.Get(2, 1, key)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), val)

	iter, err := s2.ScanPrefix(2, 1, keys.EdgePrefix(1, 100, 101))
	require.NoError(t, err)
	defer iter.Close()
	var vals []string
	for ; iter.Valid(); iter.Next() {
		vals = append(vals, string(iter.Value()))
	}
	require.Equal(t, []string{"newer", "payload"}, vals)
}

func TestClosedStore(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Close())

	err := s.PutBatch(0, 0, []KV{{Key: []byte("k"), Value: []byte("v")}})
	require.ErrorIs(t, err, ErrStoreClosed)
	_, err = s.ScanPrefix(0, 0, []byte("k"))
	require.ErrorIs(t, err, ErrStoreClosed)
}

func TestBatchRecordRoundTrip(t *testing.T) {
	pairs := []KV{
		{Key: []byte("alpha"), Value: []byte("one")},
		{Key: []byte{0x00, 0xff}, Value: nil},
		{Key: bytes.Repeat([]byte{0xab}, 40), Value: bytes.Repeat([]byte{0x01}, 300)},
	}
	rec := encodeBatchRecord(7, 3, pairs)
	space, part, got, err := decodeBatchRecord(rec)
	require.NoError(t, err)
	require.Equal(t, keys.SpaceID(7), space)
	require.Equal(t, keys.PartitionID(3), part)
	require.Len(t, got, len(pairs))
	for i := range pairs {
		require.Equal(t, pairs[i].Key, got[i].Key)
		require.True(t, bytes.Equal(pairs[i].Value, got[i].Value))
	}

	_, _, _, err = decodeBatchRecord(rec[:8])
	require.Error(t, err)
	_, _, _, err = decodeBatchRecord(rec[:len(rec)-1])
	require.Error(t, err)
}
