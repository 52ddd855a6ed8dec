/*
PURPOSE:
  Merges per-backend, per-test outcomes into one ordered result set with
  derived per-backend summary statistics, and exposes a recomputable
  latency ranking.

REQUIREMENTS:
  User-specified:
  - Single-writer discipline: only the collector appends to the
    in-progress result set; scheduler workers hand outcomes off.
  - Summaries are always recomputed from the full outcome set, never
    incrementally drifted.
  - Backends with zero successful outcomes report undefined (nil)
    statistics, never zero, to avoid misleading rankings.
  - Aggregation is idempotent.

  Implementation-discovered:
  - Resource means are averaged across successful outcomes that actually
    carry samples; degraded sampling leaves the stats undefined rather
    than pulling means toward zero.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine/runner.go
  - Consumes: internal/model

ERROR HANDLING:
  - None; pure computation over collected data.

IMPLEMENTATION RULES:
  - The ranking is a derived view, computed on demand, never stored.

USAGE:
  col := aggregate.NewCollector(probes, available, observer)
  col.Add(outcome) ...
  set := col.Finalize()
  ranked := aggregate.RankByMeanLatency(set)

SELF-HEALING INSTRUCTIONS:
  - If summary numbers look stale, something is mutating set.Outcomes
    after Finalize; they must be append-only before and frozen after.

RELATED FILES:
  - internal/engine/scheduler.go
  - internal/model/types.go

MAINTENANCE:
  - Update Aggregate when BackendReport grows new statistics.
*/

package aggregate

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/hablalab/tts-bench/internal/model"
)

// Collector is the single appender of the in-progress result set.
// Scheduler workers call Add; the collector goroutine owns all writes.
type Collector struct {
	ch    chan model.SynthesisOutcome
	done  chan struct{}
	set   *model.ComparisonResultSet
	onAdd func(model.SynthesisOutcome)
}

// NewCollector starts a collector for one run. observer, if non-nil, is
// invoked for every collected outcome on the collector goroutine (used
// for streaming CSV/NDJSON rows).
func NewCollector(probes []model.ProbeResult, available []string, observer func(model.SynthesisOutcome)) *Collector {
	c := &Collector{
		ch:   make(chan model.SynthesisOutcome, 16),
		done: make(chan struct{}),
		set: &model.ComparisonResultSet{
			Timestamp: time.Now(),
			Probes:    probes,
			Available: available,
		},
		onAdd: observer,
	}

	go func() {
		defer close(c.done)
		for o := range c.ch {
			c.set.Outcomes = append(c.set.Outcomes, o)
			if c.onAdd != nil {
				c.onAdd(o)
			}
		}
	}()

	return c
}

// Add hands one completed outcome to the collector. Safe for
// concurrent use by scheduler workers.
func (c *Collector) Add(o model.SynthesisOutcome) {
	c.ch <- o
}

// Finalize stops collection, computes the per-backend reports and
// returns the now read-only result set.
func (c *Collector) Finalize() *model.ComparisonResultSet {
	close(c.ch)
	<-c.done

	Aggregate(c.set)
	return c.set
}

// Aggregate recomputes set.Reports from the full, current outcome set.
// Calling it twice over the same outcomes yields identical reports.
func Aggregate(set *model.ComparisonResultSet) {
	reports := make(map[string]model.BackendReport, len(set.Probes))

	availableSet := lo.SliceToMap(set.Available, func(n string) (string, struct{}) {
		return n, struct{}{}
	})

	// Unavailable backends: probed, not scheduled, zero outcomes.
	for _, p := range set.Probes {
		if _, ok := availableSet[p.Backend]; !ok {
			reports[p.Backend] = model.BackendReport{
				Backend: p.Backend,
				Status:  model.StatusUnavailable,
			}
		}
	}

	for _, name := range set.Available {
		outcomes := lo.Filter(set.Outcomes, func(o model.SynthesisOutcome, _ int) bool {
			return o.Backend == name
		})
		reports[name] = backendReport(name, outcomes)
	}

	set.Reports = reports
}

func backendReport(name string, outcomes []model.SynthesisOutcome) model.BackendReport {
	succ := lo.Filter(outcomes, func(o model.SynthesisOutcome, _ int) bool { return o.Success })

	report := model.BackendReport{
		Backend:      name,
		Status:       model.StatusFailed,
		SuccessCount: len(succ),
		FailureCount: len(outcomes) - len(succ),
	}
	if len(succ) == 0 {
		// Zero successes: latency/resource statistics stay undefined.
		return report
	}
	report.Status = model.StatusOK

	latencies := lo.Map(succ, func(o model.SynthesisOutcome, _ int) time.Duration { return o.Elapsed })
	report.MeanLatency = lo.ToPtr(meanDuration(latencies))
	report.PeakLatency = lo.ToPtr(lo.Max(latencies))

	sampled := lo.Filter(succ, func(o model.SynthesisOutcome, _ int) bool {
		return o.Resources.Samples > 0
	})
	if len(sampled) == 0 {
		// Sampling degraded for every success: resource stats undefined.
		return report
	}

	var cpuSum, cpuPeak, gpuSum, gpuPeak float64
	var ramSum, ramPeak, vramSum, vramPeak uint64
	gpuObserved := false
	for _, o := range sampled {
		r := o.Resources
		cpuSum += r.CPUMeanPct
		ramSum += r.RAMMeanB
		gpuSum += r.GPUMeanPct
		vramSum += r.VRAMMeanB
		cpuPeak = max(cpuPeak, r.CPUPeakPct)
		ramPeak = max(ramPeak, r.RAMPeakB)
		gpuPeak = max(gpuPeak, r.GPUPeakPct)
		vramPeak = max(vramPeak, r.VRAMPeakB)
		gpuObserved = gpuObserved || r.GPUObserved
	}

	n := uint64(len(sampled))
	report.MeanCPUPct = lo.ToPtr(cpuSum / float64(n))
	report.PeakCPUPct = lo.ToPtr(cpuPeak)
	report.MeanRAMB = lo.ToPtr(ramSum / n)
	report.PeakRAMB = lo.ToPtr(ramPeak)
	if gpuObserved {
		report.MeanGPUPct = lo.ToPtr(gpuSum / float64(n))
		report.PeakGPUPct = lo.ToPtr(gpuPeak)
		report.MeanVRAMB = lo.ToPtr(vramSum / n)
		report.PeakVRAMB = lo.ToPtr(vramPeak)
	}
	return report
}

// RankByMeanLatency returns the backends with defined mean latency,
// fastest first. It is recomputed from the reports on every call.
func RankByMeanLatency(set *model.ComparisonResultSet) []string {
	type ranked struct {
		name string
		mean time.Duration
	}

	var rs []ranked
	for name, r := range set.Reports {
		if r.MeanLatency != nil {
			rs = append(rs, ranked{name: name, mean: *r.MeanLatency})
		}
	}

	sort.Slice(rs, func(i, j int) bool {
		if rs[i].mean == rs[j].mean {
			return rs[i].name < rs[j].name
		}
		return rs[i].mean < rs[j].mean
	})

	return lo.Map(rs, func(r ranked, _ int) string { return r.name })
}

func meanDuration(ds []time.Duration) time.Duration {
	if len(ds) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range ds {
		sum += d
	}
	return sum / time.Duration(len(ds))
}
