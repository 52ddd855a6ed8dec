package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if len(cfg.Backends) != 4 {
		t.Errorf("expected 4 stock backends, got %d", len(cfg.Backends))
	}
	if len(cfg.TestCases) != 6 {
		t.Errorf("expected 6 stock test cases, got %d", len(cfg.TestCases))
	}
	if cfg.Parallel {
		t.Error("sequential must be the default mode")
	}
	if cfg.SynthTimeout <= cfg.ProbeTimeout {
		t.Error("synthesis timeout must be larger than probe timeout")
	}
	if cfg.ProbeConcurrency <= 0 {
		t.Error("probe concurrency must be positive")
	}
}

func TestLoadMissingDefaultFileFallsBack(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load with no file: %v", err)
	}
	if len(cfg.Backends) != 4 {
		t.Errorf("expected defaults, got %d backends", len(cfg.Backends))
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tts_bench.yaml")
	data := []byte(`
parallel: true
synth_timeout: 90s
output_dir: /tmp/bench-out
backends:
  - name: local
    base_url: http://localhost:9000
    health_path: /health
    synth_path: /synthesize
    content_type: audio/wav
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Parallel {
		t.Error("parallel not applied")
	}
	if cfg.SynthTimeout != 90*time.Second {
		t.Errorf("synth_timeout: got %v", cfg.SynthTimeout)
	}
	if len(cfg.Backends) != 1 || cfg.Backends[0].Name != "local" {
		t.Errorf("backends not replaced: %+v", cfg.Backends)
	}
	// Untouched fields keep defaults.
	if len(cfg.TestCases) != 6 {
		t.Errorf("test cases should keep defaults, got %d", len(cfg.TestCases))
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("backends: [not closed"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TTSBENCH_PARALLEL", "true")
	t.Setenv("TTSBENCH_BACKENDS", "kokoro,xtts")
	t.Setenv("TTSBENCH_PROBE_TIMEOUT", "3s")
	t.Setenv("TTSBENCH_GPU_DEVICE", "1")

	dir := t.TempDir()
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Parallel {
		t.Error("TTSBENCH_PARALLEL not applied")
	}
	if len(cfg.SelectedBackends) != 2 || cfg.SelectedBackends[0] != "kokoro" {
		t.Errorf("TTSBENCH_BACKENDS not applied: %v", cfg.SelectedBackends)
	}
	if cfg.ProbeTimeout != 3*time.Second {
		t.Errorf("TTSBENCH_PROBE_TIMEOUT not applied: %v", cfg.ProbeTimeout)
	}
	if cfg.GPUDevice != 1 {
		t.Errorf("TTSBENCH_GPU_DEVICE not applied: %d", cfg.GPUDevice)
	}
}
