// Package latency provides cycle-cost models that turn cache event counts
// into an estimated cycle total.
//
// The estimate is a policy, not a measurement: the default Linear model
// charges one hit latency per access plus fixed penalties for misses and
// dirty writebacks.
package latency

import "fmt"

// Counts are the cache events a Model prices.
type Counts struct {
	// Accesses is the number of references processed.
	Accesses uint64
	// Misses is the number of references that missed.
	Misses uint64
	// DirtyWritebacks is the number of dirty blocks written back.
	DirtyWritebacks uint64
	// InstructionGap is the total number of instructions retired between
	// references, as reported by the trace.
	InstructionGap uint64
}

// Model estimates the cycles spent on a set of cache events.
type Model interface {
	Cycles(c Counts) uint64
}

// Linear charges HitLatency for every access, MissPenalty on top for every
// miss, and DirtyWritebackPenalty for every dirty writeback:
//
//	cycles = Accesses*HitLatency + Misses*MissPenalty +
//	         DirtyWritebacks*DirtyWritebackPenalty
//
// InstructionGap does not contribute.
type Linear struct {
	HitLatency            uint64 `json:"hit_latency"`
	MissPenalty           uint64 `json:"miss_penalty"`
	DirtyWritebackPenalty uint64 `json:"dirty_writeback_penalty"`
}

// Cycles implements Model.
func (l Linear) Cycles(c Counts) uint64 {
	return c.Accesses*l.HitLatency +
		c.Misses*l.MissPenalty +
		c.DirtyWritebacks*l.DirtyWritebackPenalty
}

// WithCompute wraps a model and adds one cycle per retired instruction, so the
// estimate covers the work between references as well as the memory cost.
type WithCompute struct {
	Model Model
}

// Cycles implements Model.
func (w WithCompute) Cycles(c Counts) uint64 {
	return w.Model.Cycles(c) + c.InstructionGap
}

// Model names accepted by NewModel.
const (
	ModelLinear  = "linear"
	ModelCompute = "compute"
)

// NewModel returns the named model built on base. An empty name selects the
// linear model.
func NewModel(name string, base Linear) (Model, error) {
	switch name {
	case "", ModelLinear:
		return base, nil
	case ModelCompute:
		return WithCompute{Model: base}, nil
	default:
		return nil, fmt.Errorf("unknown cost model %q (known: %s, %s)",
			name, ModelLinear, ModelCompute)
	}
}
