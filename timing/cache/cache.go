// Package cache models a single set-associative, write-allocate, write-back
// cache driven by trace records.
package cache

import (
	"github.com/go-logr/logr"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/cachesim/timing/latency"
	"github.com/sarchlab/cachesim/trace"
)

// HookPosAccess marks the point right after an access has been processed and
// recorded. Hooks receive the trace.Record as Item and the AccessOutcome as
// Detail.
var HookPosAccess = &sim.HookPos{Name: "CacheAccess"}

// AccessOutcome contains the result of a cache access.
type AccessOutcome struct {
	// Hit indicates whether the access was a cache hit.
	Hit bool
	// DirtyWriteback is true if the miss evicted a dirty block.
	DirtyWriteback bool
	// Evicted is true if the miss replaced a valid block.
	Evicted bool
	// EvictedAddr is the block address of the replaced block (if Evicted).
	EvictedAddr uint64
	// Address is the decomposed address of the access.
	Address Address
	// Way is the way that served the hit or received the fill.
	Way int
}

// Cache is the access processor. It owns the blocks, the logical clock and
// the statistics, and is the only thing that mutates them.
type Cache struct {
	*sim.HookableBase

	config   Config
	geometry Geometry
	store    *SetStore
	policy   ReplacementPolicy
	cost     latency.Model
	log      logr.Logger

	// clock advances by one on every access, hit or miss.
	clock uint64
	stats Statistics
}

// Option configures a Cache.
type Option func(*Cache)

// WithPolicy overrides the replacement policy named in the config.
func WithPolicy(p ReplacementPolicy) Option {
	return func(c *Cache) {
		c.policy = p
	}
}

// WithCostModel overrides the linear cost model derived from the config.
func WithCostModel(m latency.Model) Option {
	return func(c *Cache) {
		c.cost = m
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logr.Logger) Option {
	return func(c *Cache) {
		c.log = l
	}
}

// New creates a cache with all blocks invalid. It fails with an error
// wrapping ErrInvalidConfig if the configuration is unusable.
func New(config Config, opts ...Option) (*Cache, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	geometry, err := NewGeometry(config)
	if err != nil {
		return nil, err
	}

	c := &Cache{
		HookableBase: sim.NewHookableBase(),
		config:       config,
		geometry:     geometry,
		store:        NewSetStore(geometry.NumSets, geometry.Associativity),
		policy:       NewPolicy(config.Policy),
		cost:         config.CostModel(),
		log:          logr.Discard(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.log.V(1).Info("cache created",
		"config", config.String(),
		"sets", geometry.NumSets,
		"offsetBits", geometry.BlockOffsetBits,
		"setBits", geometry.SetIndexBits)

	return c, nil
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Geometry returns the derived geometry.
func (c *Cache) Geometry() Geometry {
	return c.geometry
}

// Stats returns a copy of the raw counters.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// Summary returns the statistics with derived rates and the cycle estimate.
func (c *Cache) Summary() Summary {
	return c.stats.Summarize(c.cost)
}

// Clock returns the current logical time, which equals the number of accesses
// processed.
func (c *Cache) Clock() uint64 {
	return c.clock
}

// Process runs one trace record through the cache.
func (c *Cache) Process(rec trace.Record) AccessOutcome {
	c.clock++
	now := c.clock

	addr := c.geometry.Decompose(rec.Address)
	set := c.store.Set(addr.SetIndex)

	outcome := AccessOutcome{Address: addr}

	if way, hit := c.policy.Lookup(set, addr.Tag, now); hit {
		outcome.Hit = true
		outcome.Way = way
		if rec.IsWrite() {
			set[way].Dirty = true
		}
	} else {
		c.fill(set, addr, rec.IsWrite(), now, &outcome)
	}

	c.stats.Record(rec, outcome)

	if c.NumHooks() > 0 {
		c.InvokeHook(sim.HookCtx{
			Domain: c,
			Pos:    HookPosAccess,
			Item:   rec,
			Detail: outcome,
		})
	}

	return outcome
}

// fill installs the block for addr into the victim way of set.
func (c *Cache) fill(
	set []Block,
	addr Address,
	isWrite bool,
	now uint64,
	outcome *AccessOutcome,
) {
	way := c.policy.SelectVictim(set)
	victim := &set[way]

	if victim.Valid {
		outcome.Evicted = true
		outcome.EvictedAddr = c.geometry.Compose(Address{
			Tag:      victim.Tag,
			SetIndex: addr.SetIndex,
		})
		outcome.DirtyWriteback = victim.Dirty
	}

	*victim = Block{
		Tag:     addr.Tag,
		Valid:   true,
		Dirty:   isWrite,
		Recency: now,
	}
	outcome.Way = way
}

// Read processes a read of addr.
func (c *Cache) Read(addr uint64) AccessOutcome {
	return c.Process(trace.R(addr))
}

// Write processes a write to addr.
func (c *Cache) Write(addr uint64) AccessOutcome {
	return c.Process(trace.W(addr))
}

// Contains reports whether the block holding addr is cached. It does not
// count as an access and does not touch replacement state.
func (c *Cache) Contains(addr uint64) bool {
	a := c.geometry.Decompose(addr)
	for _, b := range c.store.Set(a.SetIndex) {
		if b.Valid && b.Tag == a.Tag {
			return true
		}
	}
	return false
}

// IsDirty reports whether the block holding addr is cached and dirty.
func (c *Cache) IsDirty(addr uint64) bool {
	a := c.geometry.Decompose(addr)
	for _, b := range c.store.Set(a.SetIndex) {
		if b.Valid && b.Tag == a.Tag {
			return b.Dirty
		}
	}
	return false
}

// Flush writes back all dirty blocks and invalidates the cache. It returns
// the number of blocks written back, which are also counted in
// Statistics.FlushWritebacks.
func (c *Cache) Flush() int {
	written := 0
	for s := 0; s < c.store.NumSets(); s++ {
		for _, b := range c.store.Set(s) {
			if b.Valid && b.Dirty {
				written++
			}
		}
	}

	c.store.Reset()
	c.stats.FlushWritebacks += uint64(written)

	c.log.V(1).Info("cache flushed", "writebacks", written)

	return written
}
