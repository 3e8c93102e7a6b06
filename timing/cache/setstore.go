package cache

import "fmt"

// A Block is the metadata kept for one way of one set.
type Block struct {
	// Tag identifies the memory block held in the way. Meaningful only when
	// Valid is set.
	Tag uint64
	// Valid is true when the way holds live data.
	Valid bool
	// Dirty is true when the way was written after it was filled.
	Dirty bool
	// Recency is the logical time of the last fill or hit. The replacement
	// policy compares it to pick a victim.
	Recency uint64
}

// SetStore keeps the blocks of every set in one flat slice indexed by
// setIndex*associativity + way.
type SetStore struct {
	blocks []Block
	sets   int
	ways   int
}

// NewSetStore allocates numSets*ways invalid blocks.
func NewSetStore(numSets, ways int) *SetStore {
	return &SetStore{
		blocks: make([]Block, numSets*ways),
		sets:   numSets,
		ways:   ways,
	}
}

// Set returns the ways of the given set. The slice aliases the store, so
// changes to its elements are changes to the cache. Panics if setIndex is out
// of range.
func (s *SetStore) Set(setIndex int) []Block {
	if setIndex < 0 || setIndex >= s.sets {
		panic(fmt.Sprintf("cache: set index %d out of range [0, %d)", setIndex, s.sets))
	}

	start := setIndex * s.ways
	end := start + s.ways

	return s.blocks[start:end:end]
}

// NumSets returns the number of sets.
func (s *SetStore) NumSets() int {
	return s.sets
}

// Ways returns the associativity.
func (s *SetStore) Ways() int {
	return s.ways
}

// Reset invalidates every block.
func (s *SetStore) Reset() {
	clear(s.blocks)
}
