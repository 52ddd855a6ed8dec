/*
PURPOSE:
  Samples host CPU, RAM and GPU utilization while a synthesis request is
  in flight, on a fixed interval, and derives mean/peak statistics.

REQUIREMENTS:
  User-specified:
  - Sampling runs from request dispatch until the response (or failure)
    is observed.
  - Best-effort: unobtainable metrics degrade to an empty sample
    sequence, never fail the enclosing request.

  Implementation-discovered:
  - GPU metrics come from `nvidia-smi -x -q` XML; hosts without the
    binary simply produce samples with HasGPU=false.
  - gopsutil's cpu.Percent(0, ...) measures utilization since the
    previous call, which lines up naturally with a ticker.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine (battery runner)
  - Produces: model.ResourceSample sequences, model.ResourceStats

ERROR HANDLING:
  - Individual failed readings are skipped; Stop never returns an error.

IMPLEMENTATION RULES:
  - The sampling target is read-only observed, never mutated.
  - Each nvidia-smi invocation gets its own short timeout so a hung
    driver cannot stall the ticker loop.

USAGE:
  s := sampler.New(250 * time.Millisecond)
  h := s.Start(ctx, "kokoro", "corto")
  ... issue request ...
  samples := h.Stop()
  stats := sampler.Stats(samples)

SELF-HEALING INSTRUCTIONS:
  - If GPU fields are always zero, check nvidia-smi XML field names.

RELATED FILES:
  - internal/sampler/nvidia.go
  - internal/engine/battery.go

MAINTENANCE:
  - Update when new resource dimensions are captured.
*/

package sampler

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/hablalab/tts-bench/internal/model"
)

const gpuSampleTimeout = 1500 * time.Millisecond

// Sampler produces per-request resource sample sequences.
type Sampler struct {
	Interval  time.Duration
	GPUDevice int

	readCPU func() (float64, error)
	readRAM func() (uint64, error)
	readGPU func(ctx context.Context, device int) (GPUSample, error)
	gpuOK   bool
}

// New creates a sampler reading host metrics via gopsutil and, when
// nvidia-smi is present, GPU metrics via its XML query interface.
func New(interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &Sampler{
		Interval: interval,
		readCPU: func() (float64, error) {
			pcts, err := cpu.Percent(0, false)
			if err != nil {
				return 0, err
			}
			if len(pcts) == 0 {
				return 0, nil
			}
			return pcts[0], nil
		},
		readRAM: func() (uint64, error) {
			vm, err := mem.VirtualMemory()
			if err != nil {
				return 0, err
			}
			return vm.Used, nil
		},
		readGPU: sampleNvidiaSMIXML,
		gpuOK:   hasNvidiaSMI(),
	}
}

// Sampling is an in-progress sample collection for one request.
type Sampling struct {
	mu      sync.Mutex
	samples []model.ResourceSample
	cancel  context.CancelFunc
	done    chan struct{}
}

// Start begins sampling for the given backend/test-case pair. The
// returned handle must be stopped exactly once.
func (s *Sampler) Start(ctx context.Context, backend, testCase string) *Sampling {
	ctx, cancel := context.WithCancel(ctx)
	sm := &Sampling{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(sm.done)
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sample, ok := s.take(ctx, backend, testCase)
				if !ok {
					continue
				}
				sm.mu.Lock()
				sm.samples = append(sm.samples, sample)
				sm.mu.Unlock()
			}
		}
	}()

	return sm
}

// take reads one sample. Returns ok=false when no metric at all could
// be observed.
func (s *Sampler) take(ctx context.Context, backend, testCase string) (model.ResourceSample, bool) {
	sample := model.ResourceSample{
		Backend:   backend,
		TestCase:  testCase,
		Timestamp: time.Now(),
	}

	gotAny := false
	if cpuPct, err := s.readCPU(); err == nil {
		sample.CPUPercent = cpuPct
		gotAny = true
	}
	if ram, err := s.readRAM(); err == nil {
		sample.RAMBytes = ram
		gotAny = true
	}
	if s.gpuOK && s.readGPU != nil {
		gctx, gcancel := context.WithTimeout(ctx, gpuSampleTimeout)
		g, err := s.readGPU(gctx, s.GPUDevice)
		gcancel()
		if err == nil {
			sample.GPUPercent = float64(g.UtilPercent)
			sample.VRAMBytes = uint64(g.MemUsedMB * 1024 * 1024)
			sample.HasGPU = true
			gotAny = true
		}
	}

	return sample, gotAny
}

// Stop terminates sampling and returns the collected sequence in
// observation order. An empty slice means metrics were unobtainable.
func (sm *Sampling) Stop() []model.ResourceSample {
	sm.cancel()
	<-sm.done

	sm.mu.Lock()
	defer sm.mu.Unlock()
	return append([]model.ResourceSample(nil), sm.samples...)
}

// Stats derives mean/peak statistics from a sample sequence.
func Stats(samples []model.ResourceSample) model.ResourceStats {
	stats := model.ResourceStats{Samples: len(samples)}
	if len(samples) == 0 {
		return stats
	}

	var cpuSum, gpuSum float64
	var ramSum, vramSum uint64
	for _, s := range samples {
		cpuSum += s.CPUPercent
		ramSum += s.RAMBytes
		gpuSum += s.GPUPercent
		vramSum += s.VRAMBytes

		if s.CPUPercent > stats.CPUPeakPct {
			stats.CPUPeakPct = s.CPUPercent
		}
		if s.RAMBytes > stats.RAMPeakB {
			stats.RAMPeakB = s.RAMBytes
		}
		if s.GPUPercent > stats.GPUPeakPct {
			stats.GPUPeakPct = s.GPUPercent
		}
		if s.VRAMBytes > stats.VRAMPeakB {
			stats.VRAMPeakB = s.VRAMBytes
		}
		if s.HasGPU {
			stats.GPUObserved = true
		}
	}

	n := float64(len(samples))
	stats.CPUMeanPct = cpuSum / n
	stats.RAMMeanB = ramSum / uint64(len(samples))
	stats.GPUMeanPct = gpuSum / n
	stats.VRAMMeanB = vramSum / uint64(len(samples))
	return stats
}
