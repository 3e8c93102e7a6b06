package cache_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/cachesim/timing/cache"
	"github.com/sarchlab/cachesim/timing/latency"
	"github.com/sarchlab/cachesim/trace"
)

func smallConfig(size, ways, blockSize int) cache.Config {
	return cache.Config{
		Size:                  size,
		Associativity:         ways,
		BlockSize:             blockSize,
		HitLatency:            1,
		MissPenalty:           10,
		DirtyWritebackPenalty: 20,
	}
}

func mustNew(config cache.Config, opts ...cache.Option) *cache.Cache {
	c, err := cache.New(config, opts...)
	Expect(err).NotTo(HaveOccurred())
	return c
}

func processAll(c *cache.Cache, records []trace.Record) {
	for _, rec := range records {
		c.Process(rec)
	}
}

type hookRecorder struct {
	ctxs []sim.HookCtx
}

func (h *hookRecorder) Func(ctx sim.HookCtx) {
	h.ctxs = append(h.ctxs, ctx)
}

var _ = Describe("Cache", func() {
	var c *cache.Cache

	Describe("Construction", func() {
		It("should reject an invalid geometry", func() {
			_, err := cache.New(smallConfig(384, 2, 64))
			Expect(err).To(MatchError(cache.ErrInvalidConfig))
		})

		It("should reject an unknown policy", func() {
			config := smallConfig(512, 2, 64)
			config.Policy = "random"
			_, err := cache.New(config)
			Expect(err).To(MatchError(cache.ErrInvalidConfig))
		})

		It("should start empty", func() {
			c = mustNew(smallConfig(512, 2, 64), cache.WithLogger(GinkgoLogr))
			Expect(c.Contains(0)).To(BeFalse())
			Expect(c.Clock()).To(BeZero())
			Expect(c.Stats()).To(Equal(cache.Statistics{}))
		})
	})

	Describe("Read operations", func() {
		BeforeEach(func() {
			c = mustNew(smallConfig(4*1024, 4, 64))
		})

		It("should miss on cold cache", func() {
			outcome := c.Read(0x1000)
			Expect(outcome.Hit).To(BeFalse())
			Expect(outcome.Evicted).To(BeFalse())

			stats := c.Stats()
			Expect(stats.Reads).To(Equal(uint64(1)))
			Expect(stats.Misses).To(Equal(uint64(1)))
			Expect(stats.Hits).To(Equal(uint64(0)))
			Expect(stats.ColdFills).To(Equal(uint64(1)))
		})

		It("should hit on cached data", func() {
			c.Read(0x1000)

			outcome := c.Read(0x1000)
			Expect(outcome.Hit).To(BeTrue())

			stats := c.Stats()
			Expect(stats.Reads).To(Equal(uint64(2)))
			Expect(stats.Misses).To(Equal(uint64(1)))
			Expect(stats.Hits).To(Equal(uint64(1)))
		})

		It("should hit on different addresses in same cache line", func() {
			c.Read(0x1000)
			Expect(c.Read(0x1004).Hit).To(BeTrue())
			Expect(c.Read(0x103F).Hit).To(BeTrue())
			Expect(c.Read(0x1040).Hit).To(BeFalse())
		})

		It("should not dirty a block on read", func() {
			c.Read(0x1000)
			Expect(c.IsDirty(0x1000)).To(BeFalse())
		})
	})

	Describe("Write operations", func() {
		BeforeEach(func() {
			c = mustNew(smallConfig(4*1024, 4, 64))
		})

		It("should write-allocate on miss", func() {
			outcome := c.Write(0x1000)
			Expect(outcome.Hit).To(BeFalse())
			Expect(c.IsDirty(0x1000)).To(BeTrue())
			Expect(c.Read(0x1000).Hit).To(BeTrue())
		})

		It("should mark a block dirty on a write hit", func() {
			c.Read(0x1000)
			outcome := c.Write(0x1008)
			Expect(outcome.Hit).To(BeTrue())
			Expect(c.IsDirty(0x1000)).To(BeTrue())

			stats := c.Stats()
			Expect(stats.Writes).To(Equal(uint64(1)))
			Expect(stats.Reads).To(Equal(uint64(1)))
		})
	})

	Describe("Logical clock", func() {
		It("should advance once per access, hit or miss", func() {
			c = mustNew(smallConfig(512, 2, 64))
			processAll(c, trace.Alternating(0, 256, 3))
			Expect(c.Clock()).To(Equal(uint64(6)))
		})
	})

	Describe("Cold start", func() {
		It("should fill every way before evicting", func() {
			// 4 sets, 4 ways, set span 256B
			c = mustNew(smallConfig(1024, 4, 64))
			for i, addr := range []uint64{0, 256, 512, 768} {
				outcome := c.Read(addr)
				Expect(outcome.Hit).To(BeFalse())
				Expect(outcome.Evicted).To(BeFalse())
				Expect(outcome.Way).To(Equal(i))
			}

			stats := c.Stats()
			Expect(stats.Misses).To(Equal(uint64(4)))
			Expect(stats.ColdFills).To(Equal(uint64(4)))
			Expect(stats.Evictions).To(BeZero())

			outcome := c.Read(1024)
			Expect(outcome.Evicted).To(BeTrue())
			Expect(outcome.EvictedAddr).To(Equal(uint64(0)))
			Expect(outcome.Way).To(Equal(0))
		})
	})

	Describe("LRU eviction", func() {
		It("should evict B for the sequence A, B, A, C", func() {
			c = mustNew(smallConfig(512, 2, 64))
			a, b, cc := uint64(0), uint64(256), uint64(512)

			c.Read(a)
			c.Read(b)
			c.Read(a)
			outcome := c.Read(cc)

			Expect(outcome.Evicted).To(BeTrue())
			Expect(outcome.EvictedAddr).To(Equal(b))
			Expect(c.Contains(a)).To(BeTrue())
			Expect(c.Contains(b)).To(BeFalse())
			Expect(c.Contains(cc)).To(BeTrue())
		})

		It("should evict the oldest block under FIFO instead", func() {
			config := smallConfig(512, 2, 64)
			config.Policy = cache.PolicyFIFO
			c = mustNew(config)

			c.Read(0)
			c.Read(256)
			c.Read(0)
			outcome := c.Read(512)

			Expect(outcome.EvictedAddr).To(Equal(uint64(0)))
			Expect(c.Contains(256)).To(BeTrue())
		})

		It("should report the evicted block address with its set bits", func() {
			c = mustNew(smallConfig(512, 2, 64))
			c.Read(0x1C0)
			c.Read(0x2C0)
			outcome := c.Read(0x3C0)
			Expect(outcome.Address.SetIndex).To(Equal(3))
			Expect(outcome.EvictedAddr).To(Equal(uint64(0x1C0)))
		})
	})

	Describe("Dirty writebacks", func() {
		BeforeEach(func() {
			c = mustNew(smallConfig(512, 2, 64))
		})

		It("should count a dirty eviction exactly once", func() {
			c.Write(0)
			c.Read(256)
			outcome := c.Read(512)
			Expect(outcome.DirtyWriteback).To(BeTrue())
			Expect(c.Stats().DirtyWritebacks).To(Equal(uint64(1)))

			// The refill of block 0 is clean, and evicting clean blocks
			// never writes back.
			c.Read(0)
			c.Read(256)
			c.Read(512)
			Expect(c.Stats().DirtyWritebacks).To(Equal(uint64(1)))
			Expect(c.Stats().Evictions).To(Equal(uint64(4)))
		})

		It("should never write back a clean eviction", func() {
			processAll(c, trace.Strided(0, 256, 3, 4))
			Expect(c.Stats().Evictions).To(BeNumerically(">", 0))
			Expect(c.Stats().DirtyWritebacks).To(BeZero())
		})

		It("should write back a block dirtied by a write hit", func() {
			c.Read(0)
			c.Write(0)
			c.Read(256)
			Expect(c.Read(512).DirtyWriteback).To(BeTrue())
		})
	})

	Describe("Flush", func() {
		It("should write back all dirty blocks and invalidate", func() {
			c = mustNew(smallConfig(512, 2, 64))
			c.Write(0)
			c.Write(64)
			c.Read(128)

			Expect(c.Flush()).To(Equal(2))
			Expect(c.Contains(0)).To(BeFalse())
			Expect(c.Contains(128)).To(BeFalse())

			stats := c.Stats()
			Expect(stats.FlushWritebacks).To(Equal(uint64(2)))
			Expect(stats.DirtyWritebacks).To(BeZero())
			Expect(c.Summary().EstimatedCycles).To(Equal(uint64(3 + 3*10 + 2*20)))
		})
	})

	Describe("Scenarios", func() {
		It("should miss on every block of a capacity-exceeding scan", func() {
			c = mustNew(smallConfig(256, 1, 64))
			processAll(c, trace.Sequential(0, 64, 5))

			sum := c.Summary()
			Expect(sum.Accesses).To(Equal(uint64(5)))
			Expect(sum.Misses).To(Equal(uint64(5)))
			Expect(sum.Hits).To(BeZero())
			Expect(sum.DirtyWritebacks).To(BeZero())
			Expect(sum.Evictions).To(Equal(uint64(1)))
			Expect(sum.MissRate).To(Equal(1.0))
		})

		It("should avoid thrashing with two ways", func() {
			c = mustNew(smallConfig(512, 2, 64))
			processAll(c, trace.Alternating(0, 256, 10))

			sum := c.Summary()
			Expect(sum.Accesses).To(Equal(uint64(20)))
			Expect(sum.Misses).To(Equal(uint64(2)))
			Expect(sum.Hits).To(Equal(uint64(18)))
			Expect(sum.MissRate).To(BeNumerically("~", 0.1, 1e-9))
			Expect(sum.EstimatedCycles).To(Equal(uint64(20 + 2*10)))
		})

		It("should thrash the same pattern when direct mapped", func() {
			c = mustNew(smallConfig(512, 1, 64))
			processAll(c, trace.Alternating(0, 512, 10))
			Expect(c.Stats().Misses).To(Equal(uint64(20)))
		})
	})

	Describe("Miss-rate monotonicity", func() {
		It("should never get worse as associativity grows", func() {
			// Three blocks one capacity apart all land in the same set.
			pattern := trace.Strided(0, 1024, 3, 20)

			prev := 2.0
			for _, ways := range []int{1, 2, 4, 8, 16} {
				c = mustNew(smallConfig(1024, ways, 64))
				processAll(c, pattern)
				rate := c.Summary().MissRate
				Expect(rate).To(BeNumerically("<=", prev), "ways=%d", ways)
				prev = rate
			}
			Expect(prev).To(BeNumerically("~", 3.0/60.0, 1e-9))
		})
	})

	Describe("Cost model", func() {
		records := []trace.Record{
			{Kind: trace.Read, Address: 0, Gap: 5},
			{Kind: trace.Write, Address: 0, Gap: 7},
		}

		It("should price accesses with the configured latencies", func() {
			c = mustNew(smallConfig(512, 2, 64))
			processAll(c, records)
			Expect(c.Summary().EstimatedCycles).To(Equal(uint64(2*1 + 1*10)))
		})

		It("should use the model passed with WithCostModel", func() {
			config := smallConfig(512, 2, 64)
			c = mustNew(config,
				cache.WithCostModel(latency.WithCompute{Model: config.CostModel()}))
			processAll(c, records)
			Expect(c.Summary().EstimatedCycles).To(Equal(uint64(2*1 + 1*10 + 12)))
		})
	})

	Describe("Hooks", func() {
		It("should invoke hooks after each access", func() {
			c = mustNew(smallConfig(512, 2, 64))
			h := &hookRecorder{}
			c.AcceptHook(h)
			c.AcceptHook(cache.NewLogHook(GinkgoLogr))

			rec := trace.Record{Kind: trace.Write, Address: 0x40, Gap: 3}
			outcome := c.Process(rec)

			Expect(h.ctxs).To(HaveLen(1))
			Expect(h.ctxs[0].Pos).To(BeIdenticalTo(cache.HookPosAccess))
			Expect(h.ctxs[0].Item).To(Equal(rec))
			Expect(h.ctxs[0].Detail).To(Equal(outcome))
			Expect(h.ctxs[0].Domain).To(BeIdenticalTo(c))
		})

		It("should have recorded the access before hooks run", func() {
			c = mustNew(smallConfig(512, 2, 64))
			var seen uint64
			c.AcceptHook(hookFunc(func(sim.HookCtx) { seen = c.Stats().Accesses }))
			c.Read(0)
			Expect(seen).To(Equal(uint64(1)))
		})
	})
})

type hookFunc func(ctx sim.HookCtx)

func (f hookFunc) Func(ctx sim.HookCtx) { f(ctx) }
