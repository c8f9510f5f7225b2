package meta

import (
	"errors"
	"fmt"
	"sync"

	"github.com/myuser/graphstore/internal/keys"
)

// RetentionMode controls how many versions of an edge a space keeps.
type RetentionMode int

const (
	// SingleVersion spaces retain only the latest write per edge slot.
	SingleVersion RetentionMode = iota
	// MultiVersion spaces retain every non-overwriting write as an
	// ordered history.
	MultiVersion
)

func (m RetentionMode) String() string {
	switch m {
	case SingleVersion:
		return "single-version"
	case MultiVersion:
		return "multi-version"
	default:
		return fmt.Sprintf("retention(%d)", int(m))
	}
}

var (
	ErrSpaceNotFound    = errors.New("space not found")
	ErrEdgeTypeNotFound = errors.New("edge type not found")
)

// EdgeSchema describes one registered edge type within a space. The
// ingestion path only needs existence; readers use the name for
// diagnostics.
type EdgeSchema struct {
	Type keys.EdgeType
	Name string
}

// SchemaManager is the space configuration capability consumed by the
// ingestion processor. Tests substitute an in-memory implementation.
type SchemaManager interface {
	RetentionMode(space keys.SpaceID) (RetentionMode, error)
	EdgeSchema(space keys.SpaceID, edgeType keys.EdgeType) (*EdgeSchema, error)
}

type spaceInfo struct {
	retention RetentionMode
	edges     map[keys.EdgeType]*EdgeSchema
}

// AdHocSchemaManager is a mutex-guarded in-memory SchemaManager. It is
// the configuration source for single-node deployments and tests; a
// real meta service would sit behind the same interface.
type AdHocSchemaManager struct {
	mu     sync.RWMutex
	spaces map[keys.SpaceID]*spaceInfo
}

func NewAdHocSchemaManager() *AdHocSchemaManager {
	return &AdHocSchemaManager{
		spaces: make(map[keys.SpaceID]*spaceInfo),
	}
}

// AddSpace registers a space with its retention mode, replacing any
// previous registration.
func (s *AdHocSchemaManager) AddSpace(space keys.SpaceID, retention RetentionMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spaces[space] = &spaceInfo{
		retention: retention,
		edges:     make(map[keys.EdgeType]*EdgeSchema),
	}
}

// AddEdgeType registers an edge type in a space. The negated type is
// registered as well: one relation is stored in both directions and the
// reverse direction carries the negated type value.
func (s *AdHocSchemaManager) AddEdgeType(space keys.SpaceID, edgeType keys.EdgeType, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.spaces[space]
	if !ok {
		return fmt.Errorf("add edge type %q: %w", name, ErrSpaceNotFound)
	}
	info.edges[edgeType] = &EdgeSchema{Type: edgeType, Name: name}
	if edgeType != 0 {
		info.edges[-edgeType] = &EdgeSchema{Type: -edgeType, Name: name}
	}
	return nil
}

func (s *AdHocSchemaManager) RetentionMode(space keys.SpaceID) (RetentionMode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.spaces[space]
	if !ok {
		return 0, ErrSpaceNotFound
	}
	return info.retention, nil
}

func (s *AdHocSchemaManager) EdgeSchema(space keys.SpaceID, edgeType keys.EdgeType) (*EdgeSchema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.spaces[space]
	if !ok {
		return nil, ErrSpaceNotFound
	}
	schema, ok := info.edges[edgeType]
	if !ok {
		return nil, ErrEdgeTypeNotFound
	}
	return schema, nil
}

// PartitionFor maps a source vertex to its partition. Edges are
// partitioned by source vertex so that all out-edges of a vertex live
// in one partition and one prefix scan covers them.
func PartitionFor(src keys.VertexID, numParts int32) keys.PartitionID {
	if numParts <= 0 {
		return 0
	}
	h := uint64(src)
	// Fibonacci hashing to spread sequential vertex IDs.
	h *= 0x9e3779b97f4a7c15
	return keys.PartitionID(h % uint64(numParts))
}
