package version

import (
	"sort"
	"sync"
	"testing"

	"github.com/myuser/graphstore/internal/keys"
	"github.com/myuser/graphstore/internal/meta"
)

func TestPolicyTable(t *testing.T) {
	tests := []struct {
		retention    meta.RetentionMode
		overwritable bool
		want         Mode
	}{
		{meta.SingleVersion, true, FixedSlot},
		{meta.SingleVersion, false, FixedSlot},
		{meta.MultiVersion, true, FixedSlot},
		{meta.MultiVersion, false, Append},
	}
	for _, tt := range tests {
		got := PolicyFor(tt.retention, tt.overwritable)
		if got != tt.want {
			t.Errorf("PolicyFor(%v, %v) = %v, want %v",
				tt.retention, tt.overwritable, got, tt.want)
		}
	}
}

func TestCounterAllocatorMonotonic(t *testing.T) {
	a := NewCounterAllocator()
	var prev keys.Version
	for i := 0; i < 1000; i++ {
		v, err := a.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if v <= prev {
			t.Fatalf("version regressed: %d after %d", v, prev)
		}
		prev = v
	}
	if prev != 1000 {
		t.Errorf("counter should be dense: want 1000, got %d", prev)
	}
}

func TestCounterAllocatorConcurrent(t *testing.T) {
	a := NewCounterAllocator()
	const workers = 8
	const perWorker = 5000

	results := make([][]keys.Version, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			out := make([]keys.Version, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				v, err := a.Next()
				if err != nil {
					t.Errorf("Next: %v", err)
					return
				}
				out = append(out, v)
			}
			results[w] = out
		}(w)
	}
	wg.Wait()

	var all []keys.Version
	for w := 0; w < workers; w++ {
		// Each worker must individually observe increasing versions.
		for i := 1; i < len(results[w]); i++ {
			if results[w][i] <= results[w][i-1] {
				t.Fatalf("worker %d saw regression", w)
			}
		}
		all = append(all, results[w]...)
	}

	// No duplicates across workers.
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	for i := 1; i < len(all); i++ {
		if all[i] == all[i-1] {
			t.Fatalf("duplicate version %d", all[i])
		}
	}
}

func TestClockAllocatorMonotonic(t *testing.T) {
	a := NewClockAllocator()
	var prev keys.Version
	for i := 0; i < 10000; i++ {
		v, err := a.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		// Strictly increasing even when the clock does not advance
		// between calls.
		if v <= prev {
			t.Fatalf("clock version regressed: %d after %d", v, prev)
		}
		prev = v
	}
}
