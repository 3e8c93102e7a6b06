package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/sarchlab/cachesim/benchmarks"
	"github.com/sarchlab/cachesim/trace"
)

type benchFlags struct {
	cacheFlags

	workloads []string
	sweep     []int
	csv       bool
	json      bool
	flush     bool
	dump      string
}

func newBenchCmd(logger func(*cobra.Command) logr.Logger) *cobra.Command {
	f := &benchFlags{}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run the synthetic workloads against the cache.",
		Long: `Runs the built-in synthetic workloads (or the ones named with ` +
			`--workload) and prints their statistics. With --sweep every ` +
			`workload runs once per associativity at the same cache size.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBench(cmd, logger(cmd), f)
		},
	}

	f.register(cmd)
	cmd.Flags().StringSliceVar(&f.workloads, "workload", nil,
		"workloads to run (default: all)")
	cmd.Flags().IntSliceVar(&f.sweep, "sweep", nil,
		"associativities to sweep, e.g. 1,2,4,8,16")
	cmd.Flags().BoolVar(&f.csv, "csv", false, "print results as CSV")
	cmd.Flags().BoolVar(&f.json, "json", false, "print results as JSON")
	cmd.Flags().BoolVar(&f.flush, "flush", false,
		"write back dirty blocks at the end of each workload")
	cmd.Flags().StringVar(&f.dump, "dump", "",
		"also write each workload as a trace file into this directory")
	cmd.MarkFlagsMutuallyExclusive("csv", "json")

	return cmd
}

func runBench(cmd *cobra.Command, log logr.Logger, f *benchFlags) error {
	config, err := f.resolve()
	if err != nil {
		return err
	}

	workloads, err := selectWorkloads(f.workloads)
	if err != nil {
		return err
	}

	if f.dump != "" {
		if err := dumpWorkloads(f.dump, workloads); err != nil {
			return err
		}
	}

	harness := benchmarks.NewHarness(benchmarks.HarnessConfig{
		Cache:      config,
		CostModel:  f.costModel,
		FlushAtEnd: f.flush,
		Output:     cmd.OutOrStdout(),
		Logger:     log,
	})

	var results []benchmarks.BenchmarkResult
	if len(f.sweep) > 0 {
		for _, w := range workloads {
			results = append(results, harness.SweepAssociativity(w, f.sweep)...)
		}
	} else {
		harness.AddWorkloads(workloads)
		results = harness.RunAll()
	}

	switch {
	case f.csv:
		harness.PrintCSV(results)
	case f.json:
		return harness.PrintJSON(results)
	default:
		harness.PrintResults(results)
	}

	return nil
}

func selectWorkloads(names []string) ([]benchmarks.Workload, error) {
	if len(names) == 0 {
		return benchmarks.GetWorkloads(), nil
	}

	workloads := make([]benchmarks.Workload, 0, len(names))
	for _, name := range names {
		w, ok := benchmarks.GetWorkload(name)
		if !ok {
			return nil, fmt.Errorf("unknown workload %q", name)
		}
		workloads = append(workloads, w)
	}

	return workloads, nil
}

func dumpWorkloads(dir string, workloads []benchmarks.Workload) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create dump directory: %w", err)
	}

	for _, w := range workloads {
		if err := dumpWorkload(filepath.Join(dir, w.Name+".trace"), w); err != nil {
			return err
		}
	}

	return nil
}

func dumpWorkload(path string, w benchmarks.Workload) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create trace file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close trace file: %w", cerr)
		}
	}()

	writer := trace.NewWriter(file)
	if err := writer.WriteAll(w.Records); err != nil {
		return fmt.Errorf("failed to write %s: %w", w.Name, err)
	}

	return nil
}
