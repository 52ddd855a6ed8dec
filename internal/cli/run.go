/*
PURPOSE:
  Defines the 'run' subcommand.
  Executes the full benchmark run.

REQUIREMENTS:
  User-specified:
  - Run the benchmark battery against selected backends.
  - Specific flags for overrides.
  - Ctrl-C must cancel in-flight work and still persist partial results.

  Implementation-discovered:
  - Need to load config first, then apply flag overrides.
  - signal.NotifyContext is the run-level cancellation signal.

ARCHITECTURE INTEGRATION:
  - Calls: internal/engine.Run()
  - Uses: internal/config

ERROR HANDLING:
  - Returns error if config load fails or engine run fails.

IMPLEMENTATION RULES:
  - Setup flags in init().
  - Logic: Load Config -> Override -> Engine.Run.

USAGE:
  tts-bench run --backends kokoro,xtts --parallel

SELF-HEALING INSTRUCTIONS:
  - Check flag names match Config struct fields generally.

RELATED FILES:
  - internal/cli/root.go

MAINTENANCE:
  - Update when adding new CLI overrides.
*/

package cli

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/hablalab/tts-bench/internal/config"
	"github.com/hablalab/tts-bench/internal/engine"
)

var (
	backendsOverride []string
	testsOverride    []string
	forceInclude     []string
	outputOverride   string
	parallelFlag     bool
	noAudioFlag      bool
	managedFlag      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the benchmark battery",
	Long: `Executes the benchmark battery against one or more TTS backends.
The process follows a strict protocol:
1. Probing: each selected backend's health endpoint is checked once.
2. Scheduling: available backends run sequentially (default) or in parallel.
3. Battery: every test case is synthesized in order, with resource sampling
   bracketing each request; failures are recorded and the battery continues.

Outcomes stream to CSV and JSON Lines as they complete, and the finalized
comparison result set is written to <output>/data/results.json for the
report renderer.`,
	Example: `  # Run with defaults (uses tts_bench.yaml when present)
  tts-bench run

  # Benchmark only two backends, concurrently
  tts-bench run --backends kokoro,xtts --parallel

  # Run a subset of the battery without persisting audio
  tts-bench run --tests corto,largo --no-audio

  # Drive a backend even though its probe failed
  tts-bench run --force-include f5`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		if len(backendsOverride) > 0 {
			cfg.SelectedBackends = backendsOverride
		}
		if len(testsOverride) > 0 {
			cfg.SelectedTests = testsOverride
		}
		if len(forceInclude) > 0 {
			cfg.ForceInclude = forceInclude
		}
		if outputOverride != "" {
			cfg.OutputDir = outputOverride
		}
		if cmd.Flags().Changed("parallel") {
			cfg.Parallel = parallelFlag
		}
		if noAudioFlag {
			cfg.SaveAudio = false
		}
		if cmd.Flags().Changed("managed") {
			cfg.ManagedLifecycle = managedFlag
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		_, err = engine.Run(ctx, cfg)
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringSliceVar(&backendsOverride, "backends", nil, "Comma-separated list of backends to benchmark (default: all)")
	runCmd.Flags().StringSliceVar(&testsOverride, "tests", nil, "Comma-separated list of test case keys to run (default: all)")
	runCmd.Flags().StringSliceVar(&forceInclude, "force-include", nil, "Backends to drive even when their health probe fails")
	runCmd.Flags().StringVarP(&outputOverride, "output-dir", "o", "", "Output directory for results and audio artifacts")
	runCmd.Flags().BoolVar(&parallelFlag, "parallel", false, "Benchmark backends concurrently (only when resource-isolated)")
	runCmd.Flags().BoolVar(&noAudioFlag, "no-audio", false, "Do not persist returned audio artifacts")
	runCmd.Flags().BoolVar(&managedFlag, "managed", false, "Start/stop each backend's container around its battery")
}
