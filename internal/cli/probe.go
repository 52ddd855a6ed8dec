/*
PURPOSE:
  Defines the 'probe' subcommand.
  Helps debug connectivity before a full run.

REQUIREMENTS:
  User-specified:
  - Check which backends are reachable right now.

  Implementation-discovered:
  - Useful validation step before the battery; same prober the run uses.

ARCHITECTURE INTEGRATION:
  - Calls: internal/engine.ProbeAll()

ERROR HANDLING:
  - Prints per-backend status; unknown backend names are an error.

IMPLEMENTATION RULES:
  - Simple output to stdout.

USAGE:
  tts-bench probe --backends kokoro,xtts

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/engine/prober.go

MAINTENANCE:
  - None.
*/

package cli

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/hablalab/tts-bench/internal/config"
	"github.com/hablalab/tts-bench/internal/engine"
	"github.com/hablalab/tts-bench/internal/registry"
)

var probeBackends []string

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Probe backend health endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if len(probeBackends) > 0 {
			cfg.SelectedBackends = probeBackends
		}

		reg := registry.New(cfg.Backends, cfg.TestCases)
		descs, err := reg.Select(cfg.SelectedBackends)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		client := engine.NewClient(cfg)
		for _, p := range engine.ProbeAll(ctx, client, descs, cfg.ProbeConcurrency) {
			if p.Reachable {
				fmt.Printf("- %-10s reachable (%s)\n", p.Backend, p.Latency)
			} else {
				fmt.Printf("- %-10s UNREACHABLE: %s\n", p.Backend, p.Error)
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().StringSliceVar(&probeBackends, "backends", nil, "Comma-separated list of backends to probe (default: all)")
}
