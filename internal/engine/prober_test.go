package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hablalab/tts-bench/internal/model"
)

func TestProbeAllOrderAndClassification(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	unhealthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer unhealthy.Close()

	descs := []model.BackendDescriptor{
		descFor(healthy.URL, "sano"),
		descFor(unhealthy.URL, "enfermo"),
		descFor("http://127.0.0.1:1", "muerto"),
	}

	c := NewClient(testConfig())
	results := ProbeAll(context.Background(), c, descs, 4)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, desc := range descs {
		if results[i].Backend != desc.Name {
			t.Errorf("position %d: expected %s, got %s", i, desc.Name, results[i].Backend)
		}
	}
	if !results[0].Reachable {
		t.Errorf("sano should be reachable: %q", results[0].Error)
	}
	if results[1].Reachable || results[1].Error == "" {
		t.Error("enfermo should be unreachable with an error")
	}
	if results[2].Reachable || results[2].Error == "" {
		t.Error("muerto should be unreachable with an error")
	}
}

func TestProbeAllRespectsConcurrencyCeiling(t *testing.T) {
	var inFlight, peak atomic.Int64

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	descs := make([]model.BackendDescriptor, 6)
	for i := range descs {
		descs[i] = descFor(ts.URL, "b"+string(rune('0'+i)))
	}

	c := NewClient(testConfig())
	results := ProbeAll(context.Background(), c, descs, 2)

	if len(results) != 6 {
		t.Fatalf("expected 6 results, got %d", len(results))
	}
	for _, r := range results {
		if !r.Reachable {
			t.Errorf("%s should be reachable", r.Backend)
		}
	}
	if got := peak.Load(); got > 2 {
		t.Errorf("concurrency ceiling exceeded: %d probes in flight", got)
	}
}

func TestProbeAllCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	descs := []model.BackendDescriptor{descFor("http://127.0.0.1:1", "a")}
	c := NewClient(testConfig())
	results := ProbeAll(ctx, c, descs, 2)

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Reachable {
		t.Error("cancelled probe must not report reachable")
	}
}
