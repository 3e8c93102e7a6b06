// Package cmd provides the command-line interface for cachesim.
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/cachesim/timing/cache"
	"github.com/sarchlab/cachesim/timing/latency"
)

// Environment variables that provide flag defaults. They may also be set in a
// .env file in the working directory.
const (
	envPreset = "CACHESIM_PRESET"
	envConfig = "CACHESIM_CONFIG"
	envDB     = "CACHESIM_DB"
)

// cacheFlags selects the cache configuration. Shared by run and bench.
type cacheFlags struct {
	preset    string
	config    string
	ways      int
	policy    string
	costModel string
}

func (f *cacheFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.preset, "preset", envOr(envPreset, "l1d"),
		"cache preset (l1d, l1i, l2)")
	cmd.Flags().StringVar(&f.config, "config", os.Getenv(envConfig),
		"JSON cache configuration file, overrides --preset")
	cmd.Flags().IntVar(&f.ways, "ways", 0,
		"override the associativity (0 keeps the configured value)")
	cmd.Flags().StringVar(&f.policy, "policy", "",
		"override the replacement policy (lru, fifo)")
	cmd.Flags().StringVar(&f.costModel, "cost-model", latency.ModelLinear,
		"cycle estimate: linear, or compute to also charge one cycle per instruction in the trace gaps")
}

func (f *cacheFlags) resolve() (cache.Config, error) {
	var (
		config cache.Config
		err    error
	)

	if f.config != "" {
		config, err = cache.LoadConfig(f.config)
	} else {
		config, err = cache.Preset(f.preset)
	}
	if err != nil {
		return cache.Config{}, err
	}

	if f.ways > 0 {
		config.Associativity = f.ways
	}
	if f.policy != "" {
		config.Policy = f.policy
	}

	if err := config.Validate(); err != nil {
		return cache.Config{}, err
	}

	if _, err := latency.NewModel(f.costModel, config.CostModel()); err != nil {
		return cache.Config{}, err
	}

	return config, nil
}

// NewRootCmd builds the cachesim command tree.
func NewRootCmd() *cobra.Command {
	var verbosity int

	rootCmd := &cobra.Command{
		Use:   "cachesim",
		Short: "Trace-driven set-associative cache simulator.",
		Long: `cachesim replays memory access traces against a set-associative ` +
			`cache model and reports hits, misses, dirty writebacks and an ` +
			`estimated cycle count.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v",
		"log verbosity, repeat for more detail")

	logger := func(cmd *cobra.Command) logr.Logger {
		return newLogger(cmd.ErrOrStderr(), verbosity)
	}

	rootCmd.AddCommand(
		newRunCmd(logger),
		newBenchCmd(logger),
		newConfigCmd(),
	)

	return rootCmd
}

// Execute loads .env, runs the command line and exits through atexit so that
// registered handlers run.
func Execute() {
	_ = godotenv.Load()

	if err := NewRootCmd().Execute(); err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func newLogger(w io.Writer, verbosity int) logr.Logger {
	if verbosity == 0 {
		return logr.Discard()
	}

	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			_, _ = fmt.Fprintf(w, "%s: %s\n", prefix, args)
			return
		}
		_, _ = fmt.Fprintln(w, args)
	}, funcr.Options{Verbosity: verbosity})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
