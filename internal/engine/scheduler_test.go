package engine

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hablalab/tts-bench/internal/model"
)

// delayServer answers every synthesis request after the given delay.
func delayServer(delay time.Duration) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(delay)
		w.Header().Set("Content-Type", "audio/wav")
		w.Write([]byte("RIFF"))
	}))
}

type collected struct {
	mu       sync.Mutex
	outcomes []model.SynthesisOutcome
}

func (c *collected) add(o model.SynthesisOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes = append(c.outcomes, o)
}

func (c *collected) perBackend() map[string][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := make(map[string][]string)
	for _, o := range c.outcomes {
		m[o.Backend] = append(m[o.Backend], o.TestCase)
	}
	return m
}

func runScheduler(t *testing.T, parallel bool, descs []model.BackendDescriptor, cs []model.TestCase) (*collected, time.Duration) {
	t.Helper()

	b := NewBattery(NewClient(testConfig()), fakeSampler{}, t.TempDir(), false)
	s := NewScheduler(b, parallel)
	col := &collected{}

	start := time.Now()
	if err := s.Execute(context.Background(), RunContext{Available: descs, Cases: cs}, col.add); err != nil {
		t.Fatalf("execute: %v", err)
	}
	return col, time.Since(start)
}

func TestSequentialModeSumsWallTime(t *testing.T) {
	slow := delayServer(120 * time.Millisecond)
	defer slow.Close()
	fast := delayServer(80 * time.Millisecond)
	defer fast.Close()

	descs := []model.BackendDescriptor{
		descFor(slow.URL, "lento"),
		descFor(fast.URL, "rapido"),
	}

	col, elapsed := runScheduler(t, false, descs, cases("corto"))

	if len(col.outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(col.outcomes))
	}
	if elapsed < 200*time.Millisecond {
		t.Errorf("sequential run finished in %v, expected at least the sum of batteries", elapsed)
	}
	// Sequential mode also guarantees cross-backend order.
	if col.outcomes[0].Backend != "lento" || col.outcomes[1].Backend != "rapido" {
		t.Errorf("sequential order violated: %s, %s", col.outcomes[0].Backend, col.outcomes[1].Backend)
	}
}

func TestParallelModeOverlapsBackends(t *testing.T) {
	slow := delayServer(120 * time.Millisecond)
	defer slow.Close()
	fast := delayServer(80 * time.Millisecond)
	defer fast.Close()

	descs := []model.BackendDescriptor{
		descFor(slow.URL, "lento"),
		descFor(fast.URL, "rapido"),
	}

	col, elapsed := runScheduler(t, true, descs, cases("corto"))

	if len(col.outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(col.outcomes))
	}
	if elapsed >= 200*time.Millisecond {
		t.Errorf("parallel run took %v, batteries did not overlap", elapsed)
	}
}

func TestOutcomeCountInvariant(t *testing.T) {
	ts := delayServer(0)
	defer ts.Close()

	descs := []model.BackendDescriptor{
		descFor(ts.URL, "a"),
		descFor(ts.URL, "b"),
	}
	cs := cases("uno", "dos", "tres")

	for _, parallel := range []bool{false, true} {
		col, _ := runScheduler(t, parallel, descs, cs)
		if len(col.outcomes) != len(descs)*len(cs) {
			t.Errorf("parallel=%t: expected %d outcomes, got %d",
				parallel, len(descs)*len(cs), len(col.outcomes))
		}
	}
}

func TestParallelModePreservesPerBackendOrder(t *testing.T) {
	ts := delayServer(5 * time.Millisecond)
	defer ts.Close()

	descs := []model.BackendDescriptor{
		descFor(ts.URL, "a"),
		descFor(ts.URL, "b"),
		descFor(ts.URL, "c"),
	}
	cs := cases("uno", "dos", "tres")

	col, _ := runScheduler(t, true, descs, cs)

	for backend, keys := range col.perBackend() {
		if len(keys) != 3 {
			t.Fatalf("backend %s: expected 3 outcomes, got %d", backend, len(keys))
		}
		for i, want := range []string{"uno", "dos", "tres"} {
			if keys[i] != want {
				t.Errorf("backend %s: case order violated: %v", backend, keys)
				break
			}
		}
	}
}

func TestSequentialCancellationBackfillsLaterBackends(t *testing.T) {
	hang := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server notices the client disconnect and
		// cancels r.Context(); otherwise Close deadlocks on this handler.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer hang.Close()
	ok := delayServer(0)
	defer ok.Close()

	descs := []model.BackendDescriptor{
		descFor(hang.URL, "colgado"),
		descFor(ok.URL, "nunca"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	b := NewBattery(NewClient(testConfig()), fakeSampler{}, t.TempDir(), false)
	s := NewScheduler(b, false)
	col := &collected{}

	err := s.Execute(ctx, RunContext{Available: descs, Cases: cases("uno", "dos")}, col.add)
	if err == nil {
		t.Error("cancelled run should surface the context error")
	}

	// Every scheduled pair still has an outcome, all marked cancelled.
	if len(col.outcomes) != 4 {
		t.Fatalf("expected 4 outcomes, got %d", len(col.outcomes))
	}
	for _, o := range col.outcomes {
		if o.Success {
			t.Errorf("%s/%s should not have succeeded", o.Backend, o.TestCase)
		}
		if o.FailureReason != model.FailureReasonCancelled {
			t.Errorf("%s/%s: reason %q", o.Backend, o.TestCase, o.FailureReason)
		}
	}
}
