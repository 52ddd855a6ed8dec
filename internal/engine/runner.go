/*
PURPOSE:
  High-level runner that orchestrates one benchmark run end to end:
  registry → health probing → scheduling → aggregation → persisted
  results for the report renderer.

REQUIREMENTS:
  User-specified:
  - Hard stop when the registry selection is empty or when no backend is
    available; every other failure is recorded data.
  - Force-included backends are driven despite a failed probe.
  - Managed runs bring each backend up before probing it and tear it
    down after its battery (start → test → stop), sequentially.

  Implementation-discovered:
  - CSV/NDJSON rows are written from the collector goroutine so the
    writers see outcomes exactly once and in collection order.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli
  - Uses: registry, prober, battery, scheduler, sampler, aggregate,
    lifecycle, output

ERROR HANDLING:
  - Returns ErrNoBackends / ErrNoAvailableBackends for the two hard
    stops; wraps filesystem/writer failures.
  - Cancellation still finalizes and persists the partial result set.

IMPLEMENTATION RULES:
  - The run directory layout (audio/, data/) matches what the external
    report renderer expects.

USAGE:
  set, err := engine.Run(ctx, cfg)

SELF-HEALING INSTRUCTIONS:
  - If results.json is missing, check the output directory permissions;
    writers are opened before any backend work starts.

RELATED FILES:
  - internal/cli/run.go
  - internal/aggregate/aggregate.go

MAINTENANCE:
  - Update when the run directory contract with the renderer changes.
*/

package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/hablalab/tts-bench/internal/aggregate"
	"github.com/hablalab/tts-bench/internal/config"
	"github.com/hablalab/tts-bench/internal/lifecycle"
	"github.com/hablalab/tts-bench/internal/model"
	"github.com/hablalab/tts-bench/internal/output"
	"github.com/hablalab/tts-bench/internal/registry"
	"github.com/hablalab/tts-bench/internal/sampler"
)

var (
	// ErrNoBackends means the registry selection produced nothing to do.
	ErrNoBackends = errors.New("no backends selected")
	// ErrNoAvailableBackends means every selected backend failed its
	// probe and none was force-included.
	ErrNoAvailableBackends = errors.New("no backends available")
)

// Run executes the full benchmark run and returns the finalized result
// set (also persisted under cfg.OutputDir for the report renderer).
func Run(ctx context.Context, cfg *config.Config) (*model.ComparisonResultSet, error) {
	reg := registry.New(cfg.Backends, cfg.TestCases)

	descs, err := reg.Select(cfg.SelectedBackends)
	if err != nil {
		return nil, err
	}
	cases, err := reg.SelectCases(cfg.SelectedTests)
	if err != nil {
		return nil, err
	}
	if len(descs) == 0 {
		return nil, ErrNoBackends
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("no test cases selected")
	}

	audioDir := filepath.Join(cfg.OutputDir, "audio")
	dataDir := filepath.Join(cfg.OutputDir, "data")
	for _, dir := range []string{audioDir, dataDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}

	parallel := cfg.Parallel
	var mgr lifecycle.Manager = lifecycle.Noop{}
	if cfg.ManagedLifecycle {
		mgr = lifecycle.NewCompose(cfg.ComposeFile)
		if parallel {
			output.Logger.Warn("Managed lifecycle forces sequential execution (shared GPU assumption)")
			parallel = false
		}
	}

	// Snapshot the effective configuration next to the results so a run
	// directory is self-describing. The caller's config is left untouched.
	effective := *cfg
	effective.Parallel = parallel
	if err := writeConfigSnapshot(filepath.Join(dataDir, "config.yaml"), &effective); err != nil {
		return nil, err
	}

	csvWriter, err := output.NewCSVWriter(filepath.Join(dataDir, "outcomes.csv"))
	if err != nil {
		return nil, fmt.Errorf("failed to init CSV writer: %w", err)
	}
	defer csvWriter.Close()

	jsonWriter, err := output.NewJSONWriter(filepath.Join(dataDir, "outcomes.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("failed to init JSON writer: %w", err)
	}
	defer jsonWriter.Close()

	client := NewClient(cfg)

	// 1. Probe phase. Managed runs bring each backend up first.
	output.Logger.Info("Probing backends", "count", len(descs))
	probes := probePhase(ctx, cfg, client, mgr, descs)

	// 2. Availability gate.
	forced := lo.SliceToMap(cfg.ForceInclude, func(n string) (string, struct{}) { return n, struct{}{} })
	reachable := lo.SliceToMap(
		lo.Filter(probes, func(p model.ProbeResult, _ int) bool { return p.Reachable }),
		func(p model.ProbeResult) (string, struct{}) { return p.Backend, struct{}{} },
	)
	available := lo.Filter(descs, func(d model.BackendDescriptor, _ int) bool {
		if _, ok := reachable[d.Name]; ok {
			return true
		}
		if _, ok := forced[d.Name]; ok {
			output.Logger.Warn("Force-including backend despite failed probe", "backend", d.Name)
			return true
		}
		return false
	})
	if len(available) == 0 {
		return nil, ErrNoAvailableBackends
	}
	availableNames := lo.Map(available, func(d model.BackendDescriptor, _ int) string { return d.Name })
	output.Logger.Info("Available backends", "backends", availableNames)

	// 3. Execution phase: workers hand outcomes to the single collector,
	// which also streams the CSV/NDJSON rows.
	collector := aggregate.NewCollector(probes, availableNames, func(o model.SynthesisOutcome) {
		if err := csvWriter.Write(o); err != nil {
			output.Logger.Error("Failed to write outcome to CSV", "error", err)
		}
		if err := jsonWriter.Write(o); err != nil {
			output.Logger.Error("Failed to write outcome to JSON", "error", err)
		}
	})

	smp := sampler.New(cfg.SampleInterval)
	smp.GPUDevice = cfg.GPUDevice
	battery := NewBattery(client, HostSampler{S: smp}, audioDir, cfg.SaveAudio)
	sched := NewScheduler(battery, parallel)

	rc := RunContext{Probes: probes, Available: available, Cases: cases}
	runErr := executeWithLifecycle(ctx, cfg, mgr, sched, rc, collector.Add)

	// 4. Aggregation. Partial results are finalized even on cancellation.
	set := collector.Finalize()
	set.Cancelled = errors.Is(runErr, context.Canceled) || ctx.Err() != nil

	resultsPath := filepath.Join(dataDir, "results.json")
	if err := output.WriteResultSet(resultsPath, set); err != nil {
		return set, fmt.Errorf("failed to persist result set: %w", err)
	}

	logSummary(set)
	output.Logger.Info("Run complete", "results", resultsPath, "cancelled", set.Cancelled)
	return set, nil
}

// probePhase probes all selected backends. In managed mode each backend
// is brought up before its probe so "unavailable" means "did not come
// up", not "was not started".
func probePhase(ctx context.Context, cfg *config.Config, client *Client, mgr lifecycle.Manager, descs []model.BackendDescriptor) []model.ProbeResult {
	if !cfg.ManagedLifecycle {
		return ProbeAll(ctx, client, descs, cfg.ProbeConcurrency)
	}

	results := make([]model.ProbeResult, 0, len(descs))
	for _, desc := range descs {
		if err := mgr.EnsureRunning(ctx, desc); err != nil {
			output.Logger.Error("Failed to start backend", "backend", desc.Name, "error", err)
			results = append(results, model.ProbeResult{Backend: desc.Name, Error: err.Error()})
			continue
		}
		results = append(results, client.Probe(ctx, desc))
	}
	return results
}

// executeWithLifecycle runs the scheduler; in managed mode each backend
// is torn down after its battery completes.
func executeWithLifecycle(ctx context.Context, cfg *config.Config, mgr lifecycle.Manager, sched *Scheduler, rc RunContext, collect func(model.SynthesisOutcome)) error {
	if !cfg.ManagedLifecycle {
		return sched.Execute(ctx, rc, collect)
	}

	for _, desc := range rc.Available {
		single := RunContext{Probes: rc.Probes, Available: []model.BackendDescriptor{desc}, Cases: rc.Cases}
		err := sched.Execute(ctx, single, collect)

		// Teardown uses a fresh context so a cancelled run still stops
		// the container it started.
		if tdErr := mgr.TearDown(context.WithoutCancel(ctx), desc); tdErr != nil {
			output.Logger.Error("Failed to stop backend", "backend", desc.Name, "error", tdErr)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func writeConfigSnapshot(path string, cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config snapshot: %w", err)
	}
	return nil
}

func logSummary(set *model.ComparisonResultSet) {
	for _, name := range RankedBackends(set) {
		r := set.Reports[name]
		attrs := []any{
			"backend", name,
			"status", r.Status,
			"ok", r.SuccessCount,
			"failed", r.FailureCount,
		}
		if r.MeanLatency != nil {
			attrs = append(attrs, "mean_latency", *r.MeanLatency)
		}
		if r.PeakRAMB != nil {
			attrs = append(attrs, "peak_ram", humanize.IBytes(*r.PeakRAMB))
		}
		output.Logger.Info("Backend summary", attrs...)
	}
}

// RankedBackends lists every reported backend: ranked ones first
// (fastest mean latency leading), then the rest alphabetically.
func RankedBackends(set *model.ComparisonResultSet) []string {
	ranked := aggregate.RankByMeanLatency(set)
	inRank := lo.SliceToMap(ranked, func(n string) (string, struct{}) { return n, struct{}{} })

	rest := lo.Filter(lo.Keys(set.Reports), func(n string, _ int) bool {
		_, ok := inRank[n]
		return !ok
	})
	// lo.Keys order is nondeterministic; fix it.
	sort.Strings(rest)
	return append(ranked, rest...)
}
