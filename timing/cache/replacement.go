package cache

// A ReplacementPolicy finds blocks in a set and decides which way to evict.
//
// Policies hold no state of their own. The logical clock is owned by the
// caller and passed in, and all bookkeeping lives in Block.Recency.
type ReplacementPolicy interface {
	// Lookup searches the set for a valid block with the given tag. On a hit
	// it updates the block's bookkeeping for time now.
	Lookup(set []Block, tag uint64, now uint64) (way int, hit bool)

	// SelectVictim returns the way to fill on a miss.
	SelectVictim(set []Block) int
}

// NewPolicy returns the policy registered under name. Empty means LRU.
func NewPolicy(name string) ReplacementPolicy {
	switch name {
	case PolicyFIFO:
		return NewFIFO()
	default:
		return NewLRU()
	}
}

func findValid(set []Block, tag uint64) int {
	for way := range set {
		if set[way].Valid && set[way].Tag == tag {
			return way
		}
	}
	return -1
}

// selectOldest returns the lowest-indexed invalid way if there is one, and
// otherwise the way with the smallest Recency, ties going to the lowest way.
func selectOldest(set []Block) int {
	victim := 0
	for way := range set {
		if !set[way].Valid {
			return way
		}
		if set[way].Recency < set[victim].Recency {
			victim = way
		}
	}
	return victim
}

// LRU evicts the least recently used block.
type LRU struct{}

// NewLRU returns a newly constructed LRU policy.
func NewLRU() *LRU {
	return &LRU{}
}

// Lookup implements ReplacementPolicy. A hit refreshes the block's recency.
func (LRU) Lookup(set []Block, tag uint64, now uint64) (int, bool) {
	way := findValid(set, tag)
	if way < 0 {
		return -1, false
	}

	set[way].Recency = now

	return way, true
}

// SelectVictim implements ReplacementPolicy.
func (LRU) SelectVictim(set []Block) int {
	return selectOldest(set)
}

// FIFO evicts the block that was filled first. Hits do not change the order.
type FIFO struct{}

// NewFIFO returns a newly constructed FIFO policy.
func NewFIFO() *FIFO {
	return &FIFO{}
}

// Lookup implements ReplacementPolicy.
func (FIFO) Lookup(set []Block, tag uint64, _ uint64) (int, bool) {
	way := findValid(set, tag)
	return way, way >= 0
}

// SelectVictim implements ReplacementPolicy.
func (FIFO) SelectVictim(set []Block) int {
	return selectOldest(set)
}
