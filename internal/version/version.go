package version

import (
	"errors"
	"math"
	"sync/atomic"
	"time"

	"github.com/myuser/graphstore/internal/keys"
	"github.com/myuser/graphstore/internal/meta"
)

// Mode is the retention behavior applied to one request's writes.
type Mode int

const (
	// FixedSlot writes always land on the sentinel version: each write
	// physically replaces the previous record of its edge slot.
	FixedSlot Mode = iota
	// Append writes allocate a fresh version per edge: every write is
	// retained as an independent record.
	Append
)

func (m Mode) String() string {
	if m == FixedSlot {
		return "fixed-slot"
	}
	return "append"
}

// PolicyFor combines the space-wide retention mode with the request's
// overwritable flag. Retention is the conjunction of both: only a
// multi-version space with a non-overwriting request appends history.
func PolicyFor(retention meta.RetentionMode, overwritable bool) Mode {
	if retention == meta.MultiVersion && !overwritable {
		return Append
	}
	return FixedSlot
}

// ErrExhausted is returned when an allocator can no longer hand out
// strictly increasing versions.
var ErrExhausted = errors.New("version space exhausted")

// Allocator hands out versions for append-mode writes. Implementations
// must be safe for concurrent use and strictly increasing: no two calls
// ever observe equal or regressing values.
type Allocator interface {
	Next() (keys.Version, error)
}

// CounterAllocator is an atomically incremented counter starting at 1.
// Version 0 is reserved as the upper range-scan bound and is never
// allocated; the sentinel (MaxUint64) is reserved for fixed-slot writes.
type CounterAllocator struct {
	last uint64
}

func NewCounterAllocator() *CounterAllocator {
	return &CounterAllocator{}
}

func (a *CounterAllocator) Next() (keys.Version, error) {
	v := atomic.AddUint64(&a.last, 1)
	if v >= math.MaxUint64-1 {
		return 0, ErrExhausted
	}
	return keys.Version(v), nil
}

// ClockAllocator derives versions from wall-clock nanoseconds. A CAS
// loop guards against clock regression and same-nanosecond callers by
// bumping past the previously issued value.
type ClockAllocator struct {
	last uint64
}

func NewClockAllocator() *ClockAllocator {
	return &ClockAllocator{}
}

func (a *ClockAllocator) Next() (keys.Version, error) {
	for {
		prev := atomic.LoadUint64(&a.last)
		now := uint64(time.Now().UnixNano())
		if now <= prev {
			now = prev + 1
		}
		if now >= math.MaxUint64-1 {
			return 0, ErrExhausted
		}
		if atomic.CompareAndSwapUint64(&a.last, prev, now) {
			return keys.Version(now), nil
		}
	}
}
