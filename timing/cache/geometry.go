package cache

import (
	"fmt"
	"math/bits"
)

// Address is a memory address split into the fields used to index the cache.
type Address struct {
	Tag         uint64
	SetIndex    int
	BlockOffset uint64
}

// Geometry holds the values derived from a Config that are needed to slice
// addresses. It is immutable once built.
type Geometry struct {
	NumSets       int
	Associativity int
	BlockSize     int

	BlockOffsetBits uint
	SetIndexBits    uint
	TagShift        uint

	offsetMask uint64
	setMask    uint64
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// NewGeometry derives the geometry from a configuration. It fails with an
// error wrapping ErrInvalidConfig when the block size or the set count is not
// a power of two, or when the size is not an exact multiple of a set.
func NewGeometry(config Config) (Geometry, error) {
	if config.Size <= 0 || config.Associativity <= 0 || config.BlockSize <= 0 {
		return Geometry{}, fmt.Errorf(
			"%w: size, associativity and block_size must be > 0 (got %d, %d, %d)",
			ErrInvalidConfig, config.Size, config.Associativity, config.BlockSize)
	}

	if !isPowerOfTwo(config.BlockSize) {
		return Geometry{}, fmt.Errorf("%w: block_size %d must be a power of two",
			ErrInvalidConfig, config.BlockSize)
	}

	if config.Associativity > config.Size/config.BlockSize {
		return Geometry{}, fmt.Errorf(
			"%w: %d ways of %dB blocks do not fit in size %d",
			ErrInvalidConfig, config.Associativity, config.BlockSize, config.Size)
	}

	setBytes := config.BlockSize * config.Associativity
	if config.Size%setBytes != 0 {
		return Geometry{}, fmt.Errorf(
			"%w: size %d is not a multiple of block_size*associativity (%d)",
			ErrInvalidConfig, config.Size, setBytes)
	}

	numSets := config.Size / setBytes
	if !isPowerOfTwo(numSets) {
		return Geometry{}, fmt.Errorf("%w: set count %d must be a power of two",
			ErrInvalidConfig, numSets)
	}

	offsetBits := uint(bits.TrailingZeros(uint(config.BlockSize)))
	setBits := uint(bits.TrailingZeros(uint(numSets)))

	return Geometry{
		NumSets:         numSets,
		Associativity:   config.Associativity,
		BlockSize:       config.BlockSize,
		BlockOffsetBits: offsetBits,
		SetIndexBits:    setBits,
		TagShift:        offsetBits + setBits,
		offsetMask:      uint64(config.BlockSize) - 1,
		setMask:         uint64(numSets) - 1,
	}, nil
}

// Decompose splits addr into tag, set index and block offset.
func (g Geometry) Decompose(addr uint64) Address {
	return Address{
		Tag:         addr >> g.TagShift,
		SetIndex:    int((addr >> g.BlockOffsetBits) & g.setMask),
		BlockOffset: addr & g.offsetMask,
	}
}

// Compose is the inverse of Decompose.
func (g Geometry) Compose(a Address) uint64 {
	return a.Tag<<g.TagShift |
		uint64(a.SetIndex)<<g.BlockOffsetBits |
		a.BlockOffset
}

// BlockAddress returns addr with the block offset cleared.
func (g Geometry) BlockAddress(addr uint64) uint64 {
	return addr &^ g.offsetMask
}
