package latency_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cachesim/timing/latency"
)

var _ = Describe("Latency", func() {
	Describe("Linear", func() {
		It("should charge one hit latency per access", func() {
			m := latency.Linear{HitLatency: 1, MissPenalty: 100, DirtyWritebackPenalty: 50}
			Expect(m.Cycles(latency.Counts{Accesses: 10})).To(Equal(uint64(10)))
		})

		It("should add miss and writeback penalties", func() {
			m := latency.Linear{HitLatency: 1, MissPenalty: 100, DirtyWritebackPenalty: 50}
			c := latency.Counts{Accesses: 20, Misses: 2, DirtyWritebacks: 1}
			Expect(m.Cycles(c)).To(Equal(uint64(20 + 200 + 50)))
		})

		It("should ignore the instruction gap", func() {
			m := latency.Linear{HitLatency: 1, MissPenalty: 12, DirtyWritebackPenalty: 12}
			Expect(m.Cycles(latency.Counts{Accesses: 1, InstructionGap: 1000})).
				To(Equal(uint64(1)))
		})

		It("should return zero for an empty run", func() {
			Expect(latency.Linear{HitLatency: 1}.Cycles(latency.Counts{})).To(BeZero())
		})
	})

	Describe("WithCompute", func() {
		It("should add one cycle per retired instruction", func() {
			m := latency.WithCompute{Model: latency.Linear{HitLatency: 1, MissPenalty: 10}}
			c := latency.Counts{Accesses: 4, Misses: 1, InstructionGap: 30}
			Expect(m.Cycles(c)).To(Equal(uint64(4 + 10 + 30)))
		})
	})

	Describe("NewModel", func() {
		base := latency.Linear{HitLatency: 1, MissPenalty: 10, DirtyWritebackPenalty: 20}
		counts := latency.Counts{Accesses: 4, Misses: 1, DirtyWritebacks: 1, InstructionGap: 30}

		It("should default to the linear model", func() {
			for _, name := range []string{"", latency.ModelLinear} {
				m, err := latency.NewModel(name, base)
				Expect(err).NotTo(HaveOccurred())
				Expect(m.Cycles(counts)).To(Equal(uint64(4 + 10 + 20)))
			}
		})

		It("should build the compute model", func() {
			m, err := latency.NewModel(latency.ModelCompute, base)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Cycles(counts)).To(Equal(uint64(4 + 10 + 20 + 30)))
		})

		It("should reject an unknown name", func() {
			_, err := latency.NewModel("quadratic", base)
			Expect(err).To(MatchError(ContainSubstring("quadratic")))
		})
	})
})
