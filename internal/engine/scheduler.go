/*
PURPOSE:
  Orders the available backends' batteries: sequentially by default (one
  backend's full battery completes before the next starts, for shared
  GPU/VRAM budgets) or concurrently when backends are resource-isolated.

REQUIREMENTS:
  User-specified:
  - Mode selection never changes per-backend request serialization;
    that is the battery runner's contract.
  - Backends excluded by the prober are skipped entirely and surface as
    "unavailable", distinct from "failed all tests".
  - Completed outcomes are handed off to a single collector; workers
    never mutate the result set directly.

  Implementation-discovered:
  - The run's state (who is available, what is scheduled) lives in an
    explicit RunContext value, not ambient globals, so there is no race
    between availability checks and execution.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine/runner.go
  - Uses: internal/engine/battery.go, golang.org/x/sync/errgroup

ERROR HANDLING:
  - Batteries never fail; Execute only returns the context error when
    the run was cancelled before all backends were dispatched.

IMPLEMENTATION RULES:
  - Parallel mode: one goroutine per available backend (errgroup).
  - Sequential mode: batteries for backends never reached after a
    cancellation are back-filled with cancelled outcomes so the
    per-pair invariant survives.

USAGE:
  s := engine.NewScheduler(battery, parallel)
  s.Execute(ctx, rc, collector.Add)

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/engine/battery.go
  - internal/aggregate/aggregate.go

MAINTENANCE:
  - Update if a bounded middle ground between 1 and N workers is needed.
*/

package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/hablalab/tts-bench/internal/model"
	"github.com/hablalab/tts-bench/internal/output"
)

// RunContext is the explicit, immutable state of one benchmark run:
// what was probed, what is available and what will be executed.
type RunContext struct {
	Probes    []model.ProbeResult
	Available []model.BackendDescriptor
	Cases     []model.TestCase
}

// Scheduler dispatches per-backend batteries in the selected mode.
type Scheduler struct {
	battery  *Battery
	parallel bool
}

// NewScheduler creates a scheduler for the given mode.
func NewScheduler(battery *Battery, parallel bool) *Scheduler {
	return &Scheduler{battery: battery, parallel: parallel}
}

// Execute runs every available backend's battery and hands each
// completed outcome to collect. Within one backend outcomes arrive in
// configured case order; across backends order is only guaranteed in
// sequential mode.
func (s *Scheduler) Execute(ctx context.Context, rc RunContext, collect func(model.SynthesisOutcome)) error {
	if s.parallel {
		return s.executeParallel(ctx, rc, collect)
	}
	return s.executeSequential(ctx, rc, collect)
}

func (s *Scheduler) executeSequential(ctx context.Context, rc RunContext, collect func(model.SynthesisOutcome)) error {
	for _, desc := range rc.Available {
		output.Logger.Info("Benchmarking backend", "backend", desc.Name, "mode", "sequential")
		// Battery.Run back-fills cancelled outcomes itself when ctx is
		// already done, so never-reached backends still report.
		for _, o := range s.battery.Run(ctx, desc, rc.Cases) {
			collect(o)
		}
	}
	return ctx.Err()
}

func (s *Scheduler) executeParallel(ctx context.Context, rc RunContext, collect func(model.SynthesisOutcome)) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, desc := range rc.Available {
		desc := desc
		g.Go(func() error {
			output.Logger.Info("Benchmarking backend", "backend", desc.Name, "mode", "parallel")
			for _, o := range s.battery.Run(gctx, desc, rc.Cases) {
				collect(o)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
