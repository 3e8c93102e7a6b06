package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sarchlab/cachesim/timing/cache"
)

func newConfigCmd() *cobra.Command {
	var (
		preset string
		output string
		list   bool
	)

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print or save a preset cache configuration as JSON.",
		Long: `Prints the named preset as JSON, or writes it to --output. ` +
			`The file can be edited and passed to "run --config".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if list {
				for _, name := range cache.PresetNames() {
					c, _ := cache.Preset(name)
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%-4s %s\n", name, c)
				}
				return nil
			}

			config, err := cache.Preset(preset)
			if err != nil {
				return err
			}

			if output != "" {
				return config.SaveConfig(output)
			}

			data, err := json.MarshalIndent(config, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to serialize cache config: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}

	cmd.Flags().StringVar(&preset, "preset", envOr(envPreset, "l1d"),
		"preset to print ("+strings.Join(cache.PresetNames(), ", ")+")")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	cmd.Flags().BoolVar(&list, "list", false, "list the presets")

	return cmd
}
