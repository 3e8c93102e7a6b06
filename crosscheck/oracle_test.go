package crosscheck_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cachesim/crosscheck"
	"github.com/sarchlab/cachesim/timing/cache"
	"github.com/sarchlab/cachesim/trace"
)

func config(size, ways, blockSize int) cache.Config {
	return cache.Config{
		Size:                  size,
		Associativity:         ways,
		BlockSize:             blockSize,
		HitLatency:            1,
		MissPenalty:           10,
		DirtyWritebackPenalty: 10,
	}
}

var _ = Describe("Oracle", func() {
	It("should reproduce the two-way alternating scenario", func() {
		o, err := crosscheck.New(config(512, 2, 64), GinkgoLogr)
		Expect(err).NotTo(HaveOccurred())

		hits := 0
		for _, rec := range trace.Alternating(0, 256, 10) {
			if o.Access(rec).Hit {
				hits++
			}
		}
		Expect(hits).To(Equal(18))
	})

	It("should see a dirty writeback when a written block is evicted", func() {
		o, err := crosscheck.New(config(512, 2, 64), GinkgoLogr)
		Expect(err).NotTo(HaveOccurred())

		o.Access(trace.W(0))
		o.Access(trace.R(256))
		Expect(o.Access(trace.R(512))).To(Equal(crosscheck.Outcome{DirtyWriteback: true}))
	})

	It("should refuse non-LRU configurations", func() {
		c := config(512, 2, 64)
		c.Policy = cache.PolicyFIFO
		_, err := crosscheck.New(c, GinkgoLogr)
		Expect(err).To(MatchError(ContainSubstring("only the lru policy")))
	})

	It("should refuse invalid geometry", func() {
		_, err := crosscheck.New(config(384, 2, 64), GinkgoLogr)
		Expect(err).To(MatchError(cache.ErrInvalidConfig))
	})

	DescribeTable("agreement with the cache model",
		func(c cache.Config, records []trace.Record) {
			model, err := cache.New(c)
			Expect(err).NotTo(HaveOccurred())
			o, err := crosscheck.New(c, GinkgoLogr)
			Expect(err).NotTo(HaveOccurred())
			model.AcceptHook(o)

			for _, rec := range records {
				model.Process(rec)
			}

			Expect(o.Checked()).To(Equal(uint64(len(records))))
			Expect(o.Err()).NotTo(HaveOccurred())
			Expect(o.Mismatches()).To(BeEmpty())
		},
		Entry("direct mapped, random",
			config(1024, 1, 64), trace.Random(1, 5000, 0, 16*1024, 8, 0.3)),
		Entry("4-way, random",
			config(4096, 4, 64), trace.Random(2, 5000, 0, 64*1024, 4, 0.5)),
		Entry("6-way, random",
			config(6*64*8, 6, 64), trace.Random(3, 5000, 0x10000, 32*1024, 16, 0.2)),
		Entry("fully associative, strided",
			config(512, 8, 64), trace.Strided(0, 64, 12, 10)),
		Entry("column-major matrix",
			cache.DefaultL1DConfig(), trace.MatrixWalk(0, 256, 256, 8, true)),
	)

	It("should report where a different policy diverges", func() {
		c := config(512, 2, 64)
		model, err := cache.New(c, cache.WithPolicy(cache.NewFIFO()))
		Expect(err).NotTo(HaveOccurred())
		o, err := crosscheck.New(c, GinkgoLogr)
		Expect(err).NotTo(HaveOccurred())
		model.AcceptHook(o)

		for _, addr := range []uint64{0, 256, 0, 512, 0} {
			model.Read(addr)
		}

		Expect(o.MismatchCount()).To(Equal(uint64(1)))
		Expect(o.Mismatches()).To(HaveLen(1))
		m := o.Mismatches()[0]
		Expect(m.Seq).To(Equal(uint64(5)))
		Expect(m.Model.Hit).To(BeFalse())
		Expect(m.Oracle.Hit).To(BeTrue())
		Expect(o.Err()).To(MatchError(ContainSubstring("1 of 5 accesses")))
	})
})
