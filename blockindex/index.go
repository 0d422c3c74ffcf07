// Package blockindex builds and queries the image block index: a mapping
// from block hash to every image offset observed with that hash.
//
// The index is sharded into buckets keyed by xxHash of the block hash
// bytes to keep any one bucket small. Each bucket holds a plain multimap
// rather than a perfect-hash table, because the image legitimately
// repeats the same block at many offsets and every one of them must be
// kept.
package blockindex

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/rpcpool/splicegen/blockhash"
)

const defaultShardCount = 256

// Index is an immutable, read-only mapping from block hash to the sorted
// (by construction) list of image offsets observed with that hash.
type Index struct {
	shards []map[blockhash.Hash][]int64
	n      uint64
}

// Builder accumulates hash records for one pass over the image and then
// seals them into a read-only Index.
type Builder struct {
	shards []map[blockhash.Hash][]int64
}

// NewBuilder creates a Builder with the default number of shards.
func NewBuilder() *Builder {
	shards := make([]map[blockhash.Hash][]int64, defaultShardCount)
	for i := range shards {
		shards[i] = make(map[blockhash.Hash][]int64)
	}
	return &Builder{shards: shards}
}

func shardFor(shards []map[blockhash.Hash][]int64, h blockhash.Hash) map[blockhash.Hash][]int64 {
	var key [16]byte
	binary.LittleEndian.PutUint64(key[0:8], h.Lo)
	binary.LittleEndian.PutUint64(key[8:16], h.Hi)
	i := xxhash.Sum64(key[:]) % uint64(len(shards))
	return shards[i]
}

// Insert records that the image contains hash H at the given offset.
//
// Insert must be called in ascending offset order (the Block Hasher emits
// records this way) so that each hash's offset list stays sorted without
// an extra sort pass.
func (b *Builder) Insert(h blockhash.Hash, offset int64) {
	shard := shardFor(b.shards, h)
	shard[h] = append(shard[h], offset)
}

// Build builds the Builder from a record stream directly, for convenience.
func Build(records func(func(blockhash.Record) error) error) (*Index, error) {
	b := NewBuilder()
	if err := records(func(rec blockhash.Record) error {
		b.Insert(rec.Hash, rec.Offset)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("blockindex: build: %w", err)
	}
	return b.Seal(), nil
}

// Seal freezes the builder into a read-only Index.
func (b *Builder) Seal() *Index {
	n := uint64(0)
	for _, shard := range b.shards {
		for _, offs := range shard {
			n += uint64(len(offs))
		}
	}
	return &Index{shards: b.shards, n: n}
}

// Lookup returns the sorted list of image offsets recorded for hash h, or
// nil if the hash was never observed. The returned slice must not be
// mutated by the caller.
func (idx *Index) Lookup(h blockhash.Hash) []int64 {
	shard := shardFor(idx.shards, h)
	return shard[h]
}

// Len returns the total number of (hash, offset) records in the index.
func (idx *Index) Len() uint64 {
	return idx.n
}
