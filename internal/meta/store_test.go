package meta

import (
	"errors"
	"strings"
	"testing"

	"github.com/myuser/graphstore/internal/keys"
)

func TestAdHocSchemaManager(t *testing.T) {
	s := NewAdHocSchemaManager()
	s.AddSpace(1, MultiVersion)
	if err := s.AddEdgeType(1, 101, "follows"); err != nil {
		t.Fatalf("AddEdgeType: %v", err)
	}

	mode, err := s.RetentionMode(1)
	if err != nil {
		t.Fatalf("RetentionMode: %v", err)
	}
	if mode != MultiVersion {
		t.Errorf("want multi-version, got %v", mode)
	}

	if _, err := s.RetentionMode(2); !errors.Is(err, ErrSpaceNotFound) {
		t.Errorf("want ErrSpaceNotFound, got %v", err)
	}

	schema, err := s.EdgeSchema(1, 101)
	if err != nil {
		t.Fatalf("EdgeSchema: %v", err)
	}
	if schema.Name != "follows" {
		t.Errorf("want name follows, got %q", schema.Name)
	}

	// The reverse direction is registered implicitly.
	if _, err := s.EdgeSchema(1, -101); err != nil {
		t.Errorf("reverse edge type should exist: %v", err)
	}

	if _, err := s.EdgeSchema(1, 999); !errors.Is(err, ErrEdgeTypeNotFound) {
		t.Errorf("want ErrEdgeTypeNotFound, got %v", err)
	}
}

func TestAddEdgeTypeUnknownSpace(t *testing.T) {
	s := NewAdHocSchemaManager()
	if err := s.AddEdgeType(9, 1, "x"); !errors.Is(err, ErrSpaceNotFound) {
		t.Errorf("want ErrSpaceNotFound, got %v", err)
	}
}

func TestLoadSpaces(t *testing.T) {
	const doc = `
spaces:
  - name: social
    id: 1
    retention: multi
    edgeTypes:
      - name: follows
        id: 101
      - name: likes
        id: 102
  - name: metrics
    id: 2
    retention: single
    edgeTypes:
      - name: reading
        id: 7
`
	mgr, err := LoadSpaces(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadSpaces: %v", err)
	}

	if mode, _ := mgr.RetentionMode(1); mode != MultiVersion {
		t.Errorf("space 1: want multi-version, got %v", mode)
	}
	if mode, _ := mgr.RetentionMode(2); mode != SingleVersion {
		t.Errorf("space 2: want single-version, got %v", mode)
	}
	if _, err := mgr.EdgeSchema(1, 102); err != nil {
		t.Errorf("edge type 102 should exist: %v", err)
	}
	if _, err := mgr.EdgeSchema(2, -7); err != nil {
		t.Errorf("reverse edge type -7 should exist: %v", err)
	}
}

func TestLoadSpacesRejectsBadInput(t *testing.T) {
	cases := []string{
		"spaces:\n  - name: x\n    id: 1\n    retention: sometimes\n",
		"spaces:\n  - name: x\n    id: 1\n    edgeTypes:\n      - name: bad\n        id: 0\n",
	}
	for i, doc := range cases {
		if _, err := LoadSpaces(strings.NewReader(doc)); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}

func TestPartitionFor(t *testing.T) {
	const numParts = 16
	counts := make(map[keys.PartitionID]int)
	for src := keys.VertexID(0); src < 10000; src++ {
		p := PartitionFor(src, numParts)
		if p < 0 || p >= numParts {
			t.Fatalf("partition %d out of range", p)
		}
		counts[p]++
	}
	// Stable assignment.
	if PartitionFor(42, numParts) != PartitionFor(42, numParts) {
		t.Error("partition assignment must be deterministic")
	}
	// Rough balance: no partition should be starved entirely.
	if len(counts) != numParts {
		t.Errorf("expected all %d partitions used, got %d", numParts, len(counts))
	}
}
