package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/pprof"
	"sync"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/cachesim/crosscheck"
	"github.com/sarchlab/cachesim/record"
	"github.com/sarchlab/cachesim/timing/cache"
	"github.com/sarchlab/cachesim/timing/core"
	"github.com/sarchlab/cachesim/timing/latency"
	"github.com/sarchlab/cachesim/trace"
)

type runFlags struct {
	cacheFlags

	verify     bool
	db         string
	accesses   bool
	flush      bool
	maxRecords uint64
	format     string
	cpuProfile string
}

func newRunCmd(logger func(*cobra.Command) logr.Logger) *cobra.Command {
	f := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run [flags] <trace>",
		Short: "Replay a trace against the cache and print statistics.",
		Long: `Replays the trace file (or stdin when the path is "-") and prints ` +
			`the statistics. Files ending in .gz are decompressed on the fly. ` +
			`If the trace has a malformed line, the statistics of the records ` +
			`before it are printed and the command fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd, logger(cmd), f, args[0])
		},
	}

	f.register(cmd)
	cmd.Flags().BoolVar(&f.verify, "verify", false,
		"cross-check every access against the akita cache directory (lru only)")
	cmd.Flags().StringVar(&f.db, "db", os.Getenv(envDB),
		"record the run into this SQLite database")
	cmd.Flags().BoolVar(&f.accesses, "record-accesses", false,
		"with --db, also store one row per access")
	cmd.Flags().BoolVar(&f.flush, "flush", false,
		"write back dirty blocks left in the cache at the end of the trace")
	cmd.Flags().Uint64Var(&f.maxRecords, "max-records", 0,
		"stop after this many records (0 = unlimited)")
	cmd.Flags().StringVar(&f.format, "format", "text", "report format (text, json)")
	cmd.Flags().StringVar(&f.cpuProfile, "cpuprofile", "", "write cpu profile to file")

	return cmd
}

func runTrace(cmd *cobra.Command, log logr.Logger, f *runFlags, path string) error {
	if f.format != "text" && f.format != "json" {
		return fmt.Errorf("unknown report format %q", f.format)
	}

	config, err := f.resolve()
	if err != nil {
		return err
	}

	if f.cpuProfile != "" {
		stop, err := startCPUProfile(f.cpuProfile)
		if err != nil {
			return err
		}
		defer stop()
	}

	model, err := latency.NewModel(f.costModel, config.CostModel())
	if err != nil {
		return err
	}

	c, err := cache.New(config, cache.WithLogger(log), cache.WithCostModel(model))
	if err != nil {
		return err
	}

	if log.V(2).Enabled() {
		c.AcceptHook(cache.NewLogHook(log))
	}

	var oracle *crosscheck.Oracle
	if f.verify {
		oracle, err = crosscheck.New(config, log)
		if err != nil {
			return err
		}
		c.AcceptHook(oracle)
	}

	var recorder *record.SQLiteRecorder
	if f.db != "" {
		var closeRecorder func() error
		recorder, closeRecorder, err = openRecorder(f.db, f.accesses)
		if err != nil {
			return err
		}
		defer func() { _ = closeRecorder() }()

		c.AcceptHook(recorder)
		if _, err := recorder.StartRun(config, filepath.Base(path)); err != nil {
			return err
		}
	}

	opts := []core.Option{core.WithLogger(log), core.WithMaxRecords(f.maxRecords)}
	if f.flush {
		opts = append(opts, core.WithFlushAtEnd())
	}
	runner := core.NewCore(c, opts...)

	var (
		res    core.Result
		runErr error
	)
	if path == "-" {
		res, runErr = runner.Run(trace.NewReader(cmd.InOrStdin()))
	} else {
		res, runErr = runner.RunFile(path)
	}

	if recorder != nil {
		if err := recorder.FinishRun(res.Records, res.Summary, runErr); err != nil {
			log.Error(err, "failed to record run")
		}
	}

	rep := newReport(config, c.Geometry(), res)
	if err := rep.write(cmd.OutOrStdout(), f.format); err != nil {
		return errors.Join(runErr, err)
	}

	if runErr != nil {
		return runErr
	}

	if oracle != nil {
		return writeVerification(cmd.OutOrStdout(), oracle)
	}

	return nil
}

// openRecorder opens the database. The returned close function is also
// registered with atexit, so buffered rows reach the file even when the
// process exits before the run returns.
func openRecorder(path string, accesses bool) (*record.SQLiteRecorder, func() error, error) {
	recorder, err := record.NewSQLiteRecorder(path)
	if err != nil {
		return nil, nil, err
	}
	recorder.RecordAccesses(accesses)

	closeOnce := sync.OnceValue(recorder.Close)
	atexit.Register(func() { _ = closeOnce() })

	return recorder, closeOnce, nil
}

func startCPUProfile(path string) (func(), error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create CPU profile: %w", err)
	}

	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to start CPU profile: %w", err)
	}

	return func() {
		pprof.StopCPUProfile()
		_ = f.Close()
	}, nil
}
