// Package benchmarks runs named cache workloads and reports their statistics.
package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-logr/logr"

	"github.com/sarchlab/cachesim/timing/cache"
	"github.com/sarchlab/cachesim/timing/core"
	"github.com/sarchlab/cachesim/timing/latency"
	"github.com/sarchlab/cachesim/trace"
)

// BenchmarkResult holds the statistics of one workload run against one
// cache configuration.
type BenchmarkResult struct {
	// Name identifies the workload
	Name string `json:"name"`

	// Description explains what the workload exercises
	Description string `json:"description"`

	// Config is the cache configuration, e.g. "128KiB 8-way 64B lru"
	Config string `json:"config"`

	Records         uint64  `json:"records"`
	Accesses        uint64  `json:"accesses"`
	Hits            uint64  `json:"hits"`
	Misses          uint64  `json:"misses"`
	DirtyWritebacks uint64  `json:"dirty_writebacks"`
	Evictions       uint64  `json:"evictions"`
	MissRate        float64 `json:"miss_rate"`

	// EstimatedCycles is the cost model's estimate for the whole run
	EstimatedCycles uint64 `json:"estimated_cycles"`

	// AverageAccessCycles is EstimatedCycles per access
	AverageAccessCycles float64 `json:"average_access_cycles"`

	// Error is set when the configuration could not be built
	Error string `json:"error,omitempty"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Cache is the configuration every workload runs against
	Cache cache.Config

	// CostModel names the cycle estimate (see latency.NewModel); empty
	// means linear
	CostModel string

	// FlushAtEnd writes back dirty blocks after each workload
	FlushAtEnd bool

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Logger receives per-run progress (default: discard)
	Logger logr.Logger
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Cache:  cache.DefaultConfig(),
		Output: os.Stdout,
		Logger: logr.Discard(),
	}
}

// Harness runs workloads and reports results.
type Harness struct {
	config    HarnessConfig
	workloads []Workload
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Logger.GetSink() == nil {
		config.Logger = logr.Discard()
	}
	return &Harness{
		config:    config,
		workloads: []Workload{},
	}
}

// AddWorkload adds a workload to the harness.
func (h *Harness) AddWorkload(w Workload) {
	h.workloads = append(h.workloads, w)
}

// AddWorkloads adds multiple workloads to the harness.
func (h *Harness) AddWorkloads(workloads []Workload) {
	h.workloads = append(h.workloads, workloads...)
}

// Workloads returns the workloads added so far.
func (h *Harness) Workloads() []Workload {
	return h.workloads
}

// RunAll executes all workloads against the configured cache.
func (h *Harness) RunAll() []BenchmarkResult {
	results := make([]BenchmarkResult, 0, len(h.workloads))

	for _, w := range h.workloads {
		results = append(results, h.run(w, h.config.Cache))
	}

	return results
}

// SweepAssociativity runs one workload once per associativity in ways,
// keeping the cache size, block size and latencies of the harness config.
func (h *Harness) SweepAssociativity(w Workload, ways []int) []BenchmarkResult {
	results := make([]BenchmarkResult, 0, len(ways))

	for _, n := range ways {
		config := h.config.Cache
		config.Associativity = n
		results = append(results, h.run(w, config))
	}

	return results
}

func (h *Harness) run(w Workload, config cache.Config) BenchmarkResult {
	result := BenchmarkResult{
		Name:        w.Name,
		Description: w.Description,
		Config:      config.String(),
	}

	model, err := latency.NewModel(h.config.CostModel, config.CostModel())
	if err != nil {
		result.Error = err.Error()
		return result
	}

	c, err := cache.New(config, cache.WithCostModel(model))
	if err != nil {
		result.Error = err.Error()
		return result
	}

	opts := []core.Option{core.WithLogger(h.config.Logger)}
	if h.config.FlushAtEnd {
		opts = append(opts, core.WithFlushAtEnd())
	}

	start := time.Now()
	res, err := core.NewCore(c, opts...).Run(trace.NewSliceSource(w.Records...))
	result.WallTime = time.Since(start)
	if err != nil {
		result.Error = err.Error()
	}

	sum := res.Summary
	result.Records = res.Records
	result.Accesses = sum.Accesses
	result.Hits = sum.Hits
	result.Misses = sum.Misses
	result.DirtyWritebacks = sum.DirtyWritebacks + sum.FlushWritebacks
	result.Evictions = sum.Evictions
	result.MissRate = sum.MissRate
	result.EstimatedCycles = sum.EstimatedCycles
	result.AverageAccessCycles = sum.AverageAccessCycles()

	h.config.Logger.V(1).Info("workload finished",
		"name", w.Name,
		"config", result.Config,
		"miss_rate", result.MissRate)

	return result
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output, "=== Cache Benchmark Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "Workload: %s\n", r.Name)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(h.config.Output, "  Cache: %s\n", r.Config)
		if r.Error != "" {
			_, _ = fmt.Fprintf(h.config.Output, "  Error: %s\n", r.Error)
			_, _ = fmt.Fprintln(h.config.Output, "")
			continue
		}
		_, _ = fmt.Fprintf(h.config.Output, "  Accesses:          %d\n", r.Accesses)
		_, _ = fmt.Fprintf(h.config.Output, "  Hits:              %d\n", r.Hits)
		_, _ = fmt.Fprintf(h.config.Output, "  Misses:            %d\n", r.Misses)
		_, _ = fmt.Fprintf(h.config.Output, "  Miss Rate:         %.4f\n", r.MissRate)
		_, _ = fmt.Fprintf(h.config.Output, "  Dirty Writebacks:  %d\n", r.DirtyWritebacks)
		_, _ = fmt.Fprintf(h.config.Output, "  Evictions:         %d\n", r.Evictions)
		_, _ = fmt.Fprintf(h.config.Output, "  Estimated Cycles:  %d\n", r.EstimatedCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Cycles per Access: %.3f\n", r.AverageAccessCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,config,accesses,hits,misses,miss_rate,dirty_writebacks,evictions,estimated_cycles")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%s,%d,%d,%d,%.4f,%d,%d,%d\n",
			r.Name,
			r.Config,
			r.Accesses,
			r.Hits,
			r.Misses,
			r.MissRate,
			r.DirtyWritebacks,
			r.Evictions,
			r.EstimatedCycles,
		)
	}
}

// BenchmarkReport is the JSON document written by PrintJSON.
type BenchmarkReport struct {
	Timestamp string            `json:"timestamp"`
	Cache     cache.Config      `json:"cache"`
	Results   []BenchmarkResult `json:"results"`
	Summary   ReportSummary     `json:"summary"`
}

// ReportSummary contains aggregate statistics across all results.
type ReportSummary struct {
	TotalBenchmarks int           `json:"total_benchmarks"`
	TotalAccesses   uint64        `json:"total_accesses"`
	TotalMisses     uint64        `json:"total_misses"`
	MissRate        float64       `json:"miss_rate"`
	TotalWallTime   time.Duration `json:"total_wall_time_ns"`
}

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	var summary ReportSummary
	summary.TotalBenchmarks = len(results)
	for _, r := range results {
		summary.TotalAccesses += r.Accesses
		summary.TotalMisses += r.Misses
		summary.TotalWallTime += r.WallTime
	}
	if summary.TotalAccesses > 0 {
		summary.MissRate = float64(summary.TotalMisses) / float64(summary.TotalAccesses)
	}

	report := BenchmarkReport{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Cache:     h.config.Cache,
		Results:   results,
		Summary:   summary,
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
