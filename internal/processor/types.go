package processor

import (
	"sync"

	"github.com/myuser/graphstore/internal/keys"
)

// EdgeKey is the logical identity of one edge slot, excluding version.
type EdgeKey struct {
	Src     keys.VertexID    `json:"src"`
	Type    keys.EdgeType    `json:"edgeType"`
	Ranking keys.EdgeRanking `json:"ranking"`
	Dst     keys.VertexID    `json:"dst"`
}

// Edge pairs an edge slot with its opaque property payload.
type Edge struct {
	Key   EdgeKey `json:"key"`
	Props []byte  `json:"props"`
}

// AddEdgesRequest is one ingestion request. Overwritable is a
// request-scoped policy flag: it applies to every edge in the request.
type AddEdgesRequest struct {
	Space        keys.SpaceID                `json:"spaceId"`
	Overwritable bool                        `json:"overwritable"`
	Parts        map[keys.PartitionID][]Edge `json:"parts"`
}

// FailureCode identifies why a partition's batch was not durably written.
type FailureCode int

const (
	ErrUnknownSpace FailureCode = iota + 1
	ErrEdgeTypeNotFound
	ErrInvalidKey
	ErrStorageFailure
	ErrVersionAllocation
)

func (c FailureCode) String() string {
	switch c {
	case ErrUnknownSpace:
		return "unknown_space"
	case ErrEdgeTypeNotFound:
		return "edge_type_not_found"
	case ErrInvalidKey:
		return "invalid_key"
	case ErrStorageFailure:
		return "storage_failure"
	case ErrVersionAllocation:
		return "version_allocation"
	default:
		return "unknown"
	}
}

// Result reports the outcome per partition. A partition absent from
// FailedParts was written successfully.
type Result struct {
	FailedParts map[keys.PartitionID][]FailureCode `json:"failedParts"`
}

// OK reports whether every partition succeeded.
func (r Result) OK() bool {
	return len(r.FailedParts) == 0
}

// Future is the asynchronous completion handle returned by Process. It
// resolves once every partition batch has completed. There is no
// cancellation: discarded futures do not stop outstanding writes.
type Future struct {
	ch   chan Result
	once sync.Once
	res  Result
}

func newFuture() *Future {
	return &Future{ch: make(chan Result, 1)}
}

func (f *Future) complete(r Result) {
	f.ch <- r
}

// Wait blocks until the request has fully resolved. It may be called
// more than once; later calls return the cached result.
func (f *Future) Wait() Result {
	f.once.Do(func() {
		f.res = <-f.ch
	})
	return f.res
}
