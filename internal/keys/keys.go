package keys

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Identifier types shared across the store.
type (
	SpaceID     int32
	PartitionID int32
	VertexID    int64
	EdgeType    int32
	EdgeRanking int64
	Version     uint64
)

// SentinelVersion is the canonical version tag for fixed-slot writes.
// It encodes to the smallest possible version suffix, so a fixed-slot
// record always sorts first within its edge slot.
const SentinelVersion Version = math.MaxUint64

// Encoded field widths. The full edge key is fixed-length so that
// prefix scans never bleed across field boundaries.
const (
	partLen    = 4
	vertexLen  = 8
	typeLen    = 4
	rankLen    = 8
	versionLen = 8

	vertexPrefixLen = partLen + vertexLen
	edgePrefixLen   = vertexPrefixLen + typeLen
	edgeSlotLen     = edgePrefixLen + rankLen + vertexLen
	edgeKeyLen      = edgeSlotLen + versionLen
)

// Signed fields are stored with the sign bit flipped so that signed
// order matches unsigned byte order. Without this, negative edge types
// (the reverse direction of a relation) would sort after positive ones
// and break prefix scans.
func biasInt32(v int32) uint32 { return uint32(v) ^ (1 << 31) }
func biasInt64(v int64) uint64 { return uint64(v) ^ (1 << 63) }

func unbiasInt32(v uint32) int32 { return int32(v ^ (1 << 31)) }
func unbiasInt64(v uint64) int64 { return int64(v ^ (1 << 63)) }

// EdgeKey builds the full storage key for one version of an edge.
//
// Layout: part(4) | src(8) | edgeType(4) | rank(8) | dst(8) | ^version(8)
//
// The version is stored inverted (MaxUint64 - v) so that a larger
// logical version produces smaller bytes: an ascending scan over one
// edge slot yields newest-first.
func EdgeKey(part PartitionID, src VertexID, edgeType EdgeType,
	rank EdgeRanking, dst VertexID, version Version) []byte {
	buf := make([]byte, edgeKeyLen)
	binary.BigEndian.PutUint32(buf[0:], biasInt32(int32(part)))
	binary.BigEndian.PutUint64(buf[partLen:], biasInt64(int64(src)))
	binary.BigEndian.PutUint32(buf[vertexPrefixLen:], biasInt32(int32(edgeType)))
	binary.BigEndian.PutUint64(buf[edgePrefixLen:], biasInt64(int64(rank)))
	binary.BigEndian.PutUint64(buf[edgePrefixLen+rankLen:], biasInt64(int64(dst)))
	binary.BigEndian.PutUint64(buf[edgeSlotLen:], math.MaxUint64-uint64(version))
	return buf
}

// PartitionPrefix covers every key in one partition.
func PartitionPrefix(part PartitionID) []byte {
	buf := make([]byte, partLen)
	binary.BigEndian.PutUint32(buf, biasInt32(int32(part)))
	return buf
}

// VertexPrefix covers every out-edge record of one vertex in one
// partition, regardless of edge type.
func VertexPrefix(part PartitionID, src VertexID) []byte {
	buf := make([]byte, vertexPrefixLen)
	binary.BigEndian.PutUint32(buf[0:], biasInt32(int32(part)))
	binary.BigEndian.PutUint64(buf[partLen:], biasInt64(int64(src)))
	return buf
}

// EdgePrefix covers every record of one (src, edgeType) pair: any
// ranking, destination, or version.
func EdgePrefix(part PartitionID, src VertexID, edgeType EdgeType) []byte {
	buf := make([]byte, edgePrefixLen)
	binary.BigEndian.PutUint32(buf[0:], biasInt32(int32(part)))
	binary.BigEndian.PutUint64(buf[partLen:], biasInt64(int64(src)))
	binary.BigEndian.PutUint32(buf[vertexPrefixLen:], biasInt32(int32(edgeType)))
	return buf
}

// RangeBounds returns the half-open interval [low, high) holding every
// stored version of one edge slot, newest first. The low bound uses the
// sentinel version (smallest encoded suffix); the high bound uses
// version 0, which the allocator never hands out.
func RangeBounds(part PartitionID, src VertexID, edgeType EdgeType,
	rank EdgeRanking, dst VertexID) (low, high []byte) {
	low = EdgeKey(part, src, edgeType, rank, dst, SentinelVersion)
	high = EdgeKey(part, src, edgeType, rank, dst, 0)
	return low, high
}

// Decode splits a storage key back into its logical fields. It is the
// exact inverse of EdgeKey.
func Decode(key []byte) (part PartitionID, src VertexID, edgeType EdgeType,
	rank EdgeRanking, dst VertexID, version Version, err error) {
	if len(key) != edgeKeyLen {
		return 0, 0, 0, 0, 0, 0, fmt.Errorf("malformed edge key: %d bytes, want %d", len(key), edgeKeyLen)
	}
	part = PartitionID(unbiasInt32(binary.BigEndian.Uint32(key[0:])))
	src = VertexID(unbiasInt64(binary.BigEndian.Uint64(key[partLen:])))
	edgeType = EdgeType(unbiasInt32(binary.BigEndian.Uint32(key[vertexPrefixLen:])))
	rank = EdgeRanking(unbiasInt64(binary.BigEndian.Uint64(key[edgePrefixLen:])))
	dst = VertexID(unbiasInt64(binary.BigEndian.Uint64(key[edgePrefixLen+rankLen:])))
	version = Version(math.MaxUint64 - binary.BigEndian.Uint64(key[edgeSlotLen:]))
	return part, src, edgeType, rank, dst, version, nil
}
