/*
PURPOSE:
  Fans health probes out across all registered backends with a small
  concurrency ceiling and classifies each one as available/unavailable.

REQUIREMENTS:
  User-specified:
  - Probes are cheap and independent: run them concurrently, unlike
    synthesis requests.
  - Results come back in registry order regardless of completion order.

  Implementation-discovered:
  - semaphore.Weighted gives the bounded pool without a worker-queue
    structure; one goroutine per backend is fine at this scale.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine (runner), internal/cli (probe command)
  - Uses: internal/engine/client.go

ERROR HANDLING:
  - Individual probe failures are data on ProbeResult, never errors.
  - Only context cancellation aborts the batch early; already-issued
    probes still report.

IMPLEMENTATION RULES:
  - No retries within a single probe (re-running the benchmark is the
    retry).

USAGE:
  probes := engine.ProbeAll(ctx, client, descs, 4)

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/engine/client.go

MAINTENANCE:
  - None.
*/

package engine

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/hablalab/tts-bench/internal/model"
	"github.com/hablalab/tts-bench/internal/output"
)

// ProbeAll probes every descriptor concurrently, bounded by ceiling,
// and returns one ProbeResult per descriptor in input order.
func ProbeAll(ctx context.Context, c *Client, descs []model.BackendDescriptor, ceiling int64) []model.ProbeResult {
	if ceiling <= 0 {
		ceiling = 4
	}

	sem := semaphore.NewWeighted(ceiling)
	results := make([]model.ProbeResult, len(descs))

	var wg sync.WaitGroup
	for i, desc := range descs {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Run cancelled before this probe was issued.
			results[i] = model.ProbeResult{
				Backend: desc.Name,
				Error:   err.Error(),
			}
			continue
		}

		wg.Add(1)
		go func(i int, desc model.BackendDescriptor) {
			defer wg.Done()
			defer sem.Release(1)

			results[i] = c.Probe(ctx, desc)
			if results[i].Reachable {
				output.Logger.Info("Backend healthy", "backend", desc.Name, "latency", results[i].Latency)
			} else {
				output.Logger.Warn("Backend unreachable", "backend", desc.Name, "error", results[i].Error)
			}
		}(i, desc)
	}
	wg.Wait()

	return results
}
