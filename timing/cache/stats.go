package cache

import (
	"github.com/sarchlab/cachesim/timing/latency"
	"github.com/sarchlab/cachesim/trace"
)

// Statistics holds cache performance statistics.
type Statistics struct {
	Accesses        uint64 `json:"accesses"`
	Reads           uint64 `json:"reads"`
	Writes          uint64 `json:"writes"`
	Hits            uint64 `json:"hits"`
	Misses          uint64 `json:"misses"`
	DirtyWritebacks uint64 `json:"dirty_writebacks"`

	// Evictions counts misses that replaced a valid block, clean or dirty.
	Evictions uint64 `json:"evictions"`
	// ColdFills counts misses that filled an invalid way.
	ColdFills uint64 `json:"cold_fills"`
	// FlushWritebacks counts dirty blocks written back by Flush.
	FlushWritebacks uint64 `json:"flush_writebacks"`
	// InstructionGap sums the instruction gaps carried by the trace.
	InstructionGap uint64 `json:"instruction_gap"`
}

// Record accounts for one processed access.
func (s *Statistics) Record(rec trace.Record, outcome AccessOutcome) {
	s.Accesses++
	s.InstructionGap += rec.Gap

	if rec.IsWrite() {
		s.Writes++
	} else {
		s.Reads++
	}

	if outcome.Hit {
		s.Hits++
		return
	}

	s.Misses++
	if outcome.Evicted {
		s.Evictions++
	} else {
		s.ColdFills++
	}
	if outcome.DirtyWriteback {
		s.DirtyWritebacks++
	}
}

// Counts converts the statistics into the events a cost model prices.
func (s Statistics) Counts() latency.Counts {
	return latency.Counts{
		Accesses:        s.Accesses,
		Misses:          s.Misses,
		DirtyWritebacks: s.DirtyWritebacks + s.FlushWritebacks,
		InstructionGap:  s.InstructionGap,
	}
}

// Summary is a read-only snapshot of the statistics with derived rates.
type Summary struct {
	Statistics

	MissRate        float64 `json:"miss_rate"`
	HitRate         float64 `json:"hit_rate"`
	EstimatedCycles uint64  `json:"estimated_cycles"`
}

// Summarize derives rates and the cycle estimate under the given model.
func (s Statistics) Summarize(model latency.Model) Summary {
	sum := Summary{Statistics: s}

	if s.Accesses > 0 {
		sum.MissRate = float64(s.Misses) / float64(s.Accesses)
		sum.HitRate = float64(s.Hits) / float64(s.Accesses)
	}

	if model != nil {
		sum.EstimatedCycles = model.Cycles(s.Counts())
	}

	return sum
}

// AverageAccessCycles returns EstimatedCycles per access.
func (s Summary) AverageAccessCycles() float64 {
	if s.Accesses == 0 {
		return 0
	}
	return float64(s.EstimatedCycles) / float64(s.Accesses)
}
