package aggregate

import (
	"reflect"
	"testing"
	"time"

	"github.com/hablalab/tts-bench/internal/model"
)

func outcome(backend, tc string, success bool, elapsed time.Duration, samples int) model.SynthesisOutcome {
	o := model.SynthesisOutcome{
		Backend:  backend,
		TestCase: tc,
		Success:  success,
		Elapsed:  elapsed,
	}
	if !success {
		o.FailureReason = "simulated"
	}
	if samples > 0 {
		o.Resources = model.ResourceStats{
			Samples:    samples,
			CPUMeanPct: 50,
			CPUPeakPct: 80,
			RAMMeanB:   1 << 30,
			RAMPeakB:   2 << 30,
		}
	}
	return o
}

func TestCollectorSingleWriter(t *testing.T) {
	probes := []model.ProbeResult{
		{Backend: "a", Reachable: true},
		{Backend: "b", Reachable: false, Error: "connection refused"},
	}

	var observed []string
	col := NewCollector(probes, []string{"a"}, func(o model.SynthesisOutcome) {
		observed = append(observed, o.TestCase)
	})

	col.Add(outcome("a", "corto", true, time.Second, 2))
	col.Add(outcome("a", "largo", false, 2*time.Second, 0))

	set := col.Finalize()
	if len(set.Outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(set.Outcomes))
	}
	if len(observed) != 2 {
		t.Fatalf("observer saw %d outcomes, expected 2", len(observed))
	}

	a := set.Reports["a"]
	if a.Status != model.StatusOK || a.SuccessCount != 1 || a.FailureCount != 1 {
		t.Errorf("unexpected report for a: %+v", a)
	}
	b := set.Reports["b"]
	if b.Status != model.StatusUnavailable {
		t.Errorf("b should be unavailable, got %s", b.Status)
	}
	if b.SuccessCount != 0 || b.FailureCount != 0 {
		t.Errorf("unavailable backend must have zero counts: %+v", b)
	}
}

func TestAggregateIdempotent(t *testing.T) {
	set := &model.ComparisonResultSet{
		Probes:    []model.ProbeResult{{Backend: "a", Reachable: true}},
		Available: []string{"a"},
		Outcomes: []model.SynthesisOutcome{
			outcome("a", "corto", true, time.Second, 3),
			outcome("a", "largo", true, 3*time.Second, 3),
		},
	}

	Aggregate(set)
	first := set.Reports
	Aggregate(set)
	second := set.Reports

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("aggregation not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}

	a := second["a"]
	if a.MeanLatency == nil || *a.MeanLatency != 2*time.Second {
		t.Errorf("mean latency: got %v", a.MeanLatency)
	}
	if a.PeakLatency == nil || *a.PeakLatency != 3*time.Second {
		t.Errorf("peak latency: got %v", a.PeakLatency)
	}
}

func TestZeroSuccessesReportUndefinedStats(t *testing.T) {
	set := &model.ComparisonResultSet{
		Probes:    []model.ProbeResult{{Backend: "a", Reachable: true}},
		Available: []string{"a"},
		Outcomes: []model.SynthesisOutcome{
			outcome("a", "corto", false, time.Second, 0),
			outcome("a", "largo", false, time.Second, 0),
		},
	}

	Aggregate(set)
	a := set.Reports["a"]
	if a.Status != model.StatusFailed {
		t.Errorf("expected failed status, got %s", a.Status)
	}
	if a.MeanLatency != nil || a.PeakLatency != nil {
		t.Error("latency stats must be undefined, not zero")
	}
	if a.MeanCPUPct != nil || a.MeanRAMB != nil {
		t.Error("resource stats must be undefined, not zero")
	}
}

func TestDegradedSamplingLeavesResourceStatsUndefined(t *testing.T) {
	set := &model.ComparisonResultSet{
		Probes:    []model.ProbeResult{{Backend: "a", Reachable: true}},
		Available: []string{"a"},
		Outcomes: []model.SynthesisOutcome{
			outcome("a", "corto", true, time.Second, 0),
		},
	}

	Aggregate(set)
	a := set.Reports["a"]
	if a.MeanLatency == nil {
		t.Error("latency is always defined for successes")
	}
	if a.MeanCPUPct != nil {
		t.Error("resource stats must stay undefined when sampling degraded")
	}
}

func TestResourceMeansSumBeforeDividing(t *testing.T) {
	ramMeans := []uint64{100, 101, 102}
	cpuMeans := []float64{10, 20, 40}

	var outcomes []model.SynthesisOutcome
	for i, key := range []string{"corto", "medio", "largo"} {
		o := outcome("a", key, true, time.Second, 2)
		o.Resources.RAMMeanB = ramMeans[i]
		o.Resources.CPUMeanPct = cpuMeans[i]
		outcomes = append(outcomes, o)
	}

	set := &model.ComparisonResultSet{
		Probes:    []model.ProbeResult{{Backend: "a", Reachable: true}},
		Available: []string{"a"},
		Outcomes:  outcomes,
	}

	Aggregate(set)
	a := set.Reports["a"]
	// Integer division per term would truncate each 100/3 to 33 and
	// report 100 instead of 101.
	if a.MeanRAMB == nil || *a.MeanRAMB != 101 {
		t.Errorf("ram mean: expected 101, got %v", a.MeanRAMB)
	}
	if a.MeanCPUPct == nil || *a.MeanCPUPct != (10+20+40)/3.0 {
		t.Errorf("cpu mean: expected %v, got %v", (10+20+40)/3.0, a.MeanCPUPct)
	}
}

func TestGPUStatsOnlyWhenObserved(t *testing.T) {
	o := outcome("a", "corto", true, time.Second, 2)
	o.Resources.GPUObserved = true
	o.Resources.GPUMeanPct = 70
	o.Resources.GPUPeakPct = 90

	set := &model.ComparisonResultSet{
		Probes:    []model.ProbeResult{{Backend: "a", Reachable: true}},
		Available: []string{"a"},
		Outcomes:  []model.SynthesisOutcome{o},
	}

	Aggregate(set)
	a := set.Reports["a"]
	if a.MeanGPUPct == nil || *a.MeanGPUPct != 70 {
		t.Errorf("gpu mean: got %v", a.MeanGPUPct)
	}
	if a.PeakGPUPct == nil || *a.PeakGPUPct != 90 {
		t.Errorf("gpu peak: got %v", a.PeakGPUPct)
	}
}

func TestRankByMeanLatency(t *testing.T) {
	set := &model.ComparisonResultSet{
		Probes: []model.ProbeResult{
			{Backend: "slow", Reachable: true},
			{Backend: "fast", Reachable: true},
			{Backend: "broken", Reachable: true},
			{Backend: "down", Reachable: false},
		},
		Available: []string{"slow", "fast", "broken"},
		Outcomes: []model.SynthesisOutcome{
			outcome("slow", "corto", true, 4*time.Second, 0),
			outcome("fast", "corto", true, time.Second, 0),
			outcome("broken", "corto", false, 0, 0),
		},
	}

	Aggregate(set)
	ranked := RankByMeanLatency(set)
	want := []string{"fast", "slow"}
	if !reflect.DeepEqual(ranked, want) {
		t.Fatalf("ranking: expected %v, got %v", want, ranked)
	}
}
