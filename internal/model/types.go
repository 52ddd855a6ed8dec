/*
PURPOSE:
  Defines the core data structures used throughout tts-bench.
  These models represent backends, test cases, probe results, resource
  samples and synthesis outcomes.

REQUIREMENTS:
  User-specified:
  - One SynthesisOutcome per scheduled (backend, test case) pair, success
    or failure.
  - Distinguish "unavailable" backends from "attempted and failed" ones.
  - Resource statistics are nullable: a backend with zero successes must
    report undefined stats, never zero.

  Implementation-discovered:
  - Need JSON tags for the report renderer (results.json consumer).
  - Pointer fields + omitempty express "undefined" cleanly in JSON.

ARCHITECTURE INTEGRATION:
  - Used by: internal/engine, internal/aggregate, internal/output
  - Shared across boundaries.

ERROR HANDLING:
  - None (pure data structs). Failures live in FailureReason/Error fields.

IMPLEMENTATION RULES:
  - Keep structs simple and public.
  - Use time.Time and time.Duration for high precision.
  - Descriptors and test cases are immutable after registry construction.

USAGE:
  out := model.SynthesisOutcome{Backend: "kokoro", TestCase: "corto", ...}

SELF-HEALING INSTRUCTIONS:
  - If new metrics are needed, add field and update CSV/JSON writers.

RELATED FILES:
  - internal/output/csv.go
  - internal/output/json.go

MAINTENANCE:
  - Update when adding new metrics to capture.
*/

package model

import (
	"time"
)

// BackendDescriptor identifies one TTS service under comparison.
// Immutable; created at registry initialization.
type BackendDescriptor struct {
	Name        string `json:"name" yaml:"name"`
	BaseURL     string `json:"base_url" yaml:"base_url"`
	HealthPath  string `json:"health_path" yaml:"health_path"`
	SynthPath   string `json:"synth_path" yaml:"synth_path"`
	ContentType string `json:"content_type" yaml:"content_type"`
	Voice       string `json:"voice,omitempty" yaml:"voice,omitempty"`
	Language    string `json:"language,omitempty" yaml:"language,omitempty"`
}

// HealthURL returns the full health-check URL for the backend.
func (d BackendDescriptor) HealthURL() string {
	return d.BaseURL + d.HealthPath
}

// SynthURL returns the full synthesis URL for the backend.
func (d BackendDescriptor) SynthURL() string {
	return d.BaseURL + d.SynthPath
}

// TestCase is one entry of the battery: a category label plus the text
// payload sent to every backend.
type TestCase struct {
	Key              string        `json:"key" yaml:"key"`
	Category         string        `json:"category" yaml:"category"`
	Text             string        `json:"text" yaml:"text"`
	ExpectedDuration time.Duration `json:"expected_duration" yaml:"expected_duration"`
}

// ProbeResult records a single health probe of one backend.
// Created once per backend per run; never mutated afterwards.
type ProbeResult struct {
	Backend   string        `json:"backend"`
	Reachable bool          `json:"reachable"`
	Latency   time.Duration `json:"latency"`
	Timestamp time.Time     `json:"timestamp"`
	Error     string        `json:"error,omitempty"`
}

// ResourceSample is one timestamped reading taken while a synthesis
// request was in flight.
type ResourceSample struct {
	Backend    string    `json:"backend"`
	TestCase   string    `json:"test_case"`
	Timestamp  time.Time `json:"timestamp"`
	CPUPercent float64   `json:"cpu_percent"`
	RAMBytes   uint64    `json:"ram_bytes"`
	GPUPercent float64   `json:"gpu_percent"`
	VRAMBytes  uint64    `json:"vram_bytes"`
	HasGPU     bool      `json:"has_gpu"`
}

// ResourceStats is the mean/peak summary derived from one outcome's
// sample sequence. Samples == 0 means metrics were unobtainable.
type ResourceStats struct {
	Samples     int     `json:"samples"`
	CPUMeanPct  float64 `json:"cpu_mean_pct"`
	CPUPeakPct  float64 `json:"cpu_peak_pct"`
	RAMMeanB    uint64  `json:"ram_mean_bytes"`
	RAMPeakB    uint64  `json:"ram_peak_bytes"`
	GPUMeanPct  float64 `json:"gpu_mean_pct"`
	GPUPeakPct  float64 `json:"gpu_peak_pct"`
	VRAMMeanB   uint64  `json:"vram_mean_bytes"`
	VRAMPeakB   uint64  `json:"vram_peak_bytes"`
	GPUObserved bool    `json:"gpu_observed"`
}

// FailureReasonCancelled marks outcomes whose request was still in
// flight (or never dispatched) when the run was cancelled.
const FailureReasonCancelled = "cancelled"

// SynthesisOutcome is the recorded result of one backend/test-case pair.
// Created once, immutable after creation.
type SynthesisOutcome struct {
	Backend          string        `json:"backend"`
	TestCase         string        `json:"test_case"`
	Category         string        `json:"category"`
	TextLength       int           `json:"text_length"`
	ExpectedDuration time.Duration `json:"expected_duration,omitempty"`
	Success          bool          `json:"success"`
	Elapsed          time.Duration `json:"elapsed"`
	Timestamp        time.Time     `json:"timestamp"`
	AudioBytes       int64         `json:"audio_bytes,omitempty"`
	AudioPath        string        `json:"audio_path,omitempty"`
	ContentType      string        `json:"content_type,omitempty"`
	FailureReason    string        `json:"failure_reason,omitempty"`
	Resources        ResourceStats `json:"resources"`
}

// BackendStatus classifies one backend's participation in a run.
type BackendStatus string

const (
	// StatusOK means the backend produced at least one successful outcome.
	StatusOK BackendStatus = "ok"
	// StatusFailed means every attempted test case failed.
	StatusFailed BackendStatus = "failed"
	// StatusUnavailable means the health probe excluded the backend;
	// no test case was attempted.
	StatusUnavailable BackendStatus = "unavailable"
)

// BackendReport is the per-backend summary inside a ComparisonResultSet.
// Latency/resource statistics are nil when the backend has zero
// successful outcomes.
type BackendReport struct {
	Backend      string        `json:"backend"`
	Status       BackendStatus `json:"status"`
	SuccessCount int           `json:"success_count"`
	FailureCount int           `json:"failure_count"`

	MeanLatency *time.Duration `json:"mean_latency,omitempty"`
	PeakLatency *time.Duration `json:"peak_latency,omitempty"`
	MeanCPUPct  *float64       `json:"mean_cpu_pct,omitempty"`
	PeakCPUPct  *float64       `json:"peak_cpu_pct,omitempty"`
	MeanRAMB    *uint64        `json:"mean_ram_bytes,omitempty"`
	PeakRAMB    *uint64        `json:"peak_ram_bytes,omitempty"`
	MeanGPUPct  *float64       `json:"mean_gpu_pct,omitempty"`
	PeakGPUPct  *float64       `json:"peak_gpu_pct,omitempty"`
	MeanVRAMB   *uint64        `json:"mean_vram_bytes,omitempty"`
	PeakVRAMB   *uint64        `json:"peak_vram_bytes,omitempty"`
}

// ComparisonResultSet is the finalized, ordered result of one run.
// Built incrementally by the aggregator's collector; read-only once
// Finalize has been called.
type ComparisonResultSet struct {
	Timestamp time.Time                `json:"timestamp"`
	Probes    []ProbeResult            `json:"probes"`
	Available []string                 `json:"available_backends"`
	Outcomes  []SynthesisOutcome       `json:"outcomes"`
	Reports   map[string]BackendReport `json:"reports"`
	Cancelled bool                     `json:"cancelled,omitempty"`
}
