/*
PURPOSE:
  Defines the configuration structure and loading logic for tts-bench.
  Adheres to "Config IS Code" philosophy.

REQUIREMENTS:
  User-specified:
  - Allow configuration of backend catalog, test battery, timeouts,
    sequential-vs-parallel execution and audio persistence.

  Implementation-discovered:
  - Needs to support YAML parsing.
  - Needs to support environment variable overrides (TTSBENCH_...).
  - Defaults must reproduce the stock four-service catalog and the six
    Spanish test texts so the tool is useful with zero configuration.

ARCHITECTURE INTEGRATION:
  - Used by: internal/cli, internal/engine
  - Dependencies: gopkg.in/yaml.v3, github.com/caarlos0/env/v11

ERROR HANDLING:
  - Returns explicit error if config file is invalid.
  - Missing default file is not an error (falls back to defaults).

IMPLEMENTATION RULES:
  - Config struct tags support yaml and env.
  - Defaults should be sensible (60s synthesis timeout, 10s probe timeout).

USAGE:
  cfg, err := config.Load("tts_bench.yaml")

SELF-HEALING INSTRUCTIONS:
  - If new fields are needed, add to Config struct and update Default().

RELATED FILES:
  - internal/cli/run.go

MAINTENANCE:
  - Update when adding new tuning parameters.
*/

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/hablalab/tts-bench/internal/model"
)

// Config represents the full configuration for tts-bench.
type Config struct {
	Backends  []model.BackendDescriptor `yaml:"backends"`
	TestCases []model.TestCase          `yaml:"test_cases"`

	// Selection: empty means "all".
	SelectedBackends []string `yaml:"selected_backends" env:"TTSBENCH_BACKENDS" envSeparator:","`
	SelectedTests    []string `yaml:"selected_tests" env:"TTSBENCH_TESTS" envSeparator:","`

	// ForceInclude drives a backend's battery even when its probe failed.
	ForceInclude []string `yaml:"force_include" env:"TTSBENCH_FORCE_INCLUDE" envSeparator:","`

	Parallel  bool `yaml:"parallel" env:"TTSBENCH_PARALLEL"`
	SaveAudio bool `yaml:"save_audio" env:"TTSBENCH_SAVE_AUDIO"`

	ProbeTimeout     time.Duration `yaml:"probe_timeout" env:"TTSBENCH_PROBE_TIMEOUT"`
	SynthTimeout     time.Duration `yaml:"synth_timeout" env:"TTSBENCH_SYNTH_TIMEOUT"`
	ProbeConcurrency int64         `yaml:"probe_concurrency" env:"TTSBENCH_PROBE_CONCURRENCY"`
	SampleInterval   time.Duration `yaml:"sample_interval" env:"TTSBENCH_SAMPLE_INTERVAL"`

	// GPUDevice is the nvidia-smi device index sampled during requests.
	GPUDevice int `yaml:"gpu_device" env:"TTSBENCH_GPU_DEVICE"`

	OutputDir string `yaml:"output_dir" env:"TTSBENCH_OUTPUT_DIR"`

	// ManagedLifecycle makes the scheduler start/stop each backend's
	// container around its battery (sequential mode only).
	ManagedLifecycle bool   `yaml:"managed_lifecycle" env:"TTSBENCH_MANAGED_LIFECYCLE"`
	ComposeFile      string `yaml:"compose_file" env:"TTSBENCH_COMPOSE_FILE"`
}

// Default returns the default configuration: the stock catalog of four
// local TTS services and the six-category Spanish test battery.
func Default() *Config {
	return &Config{
		Backends: []model.BackendDescriptor{
			{
				Name:        "azure",
				BaseURL:     "http://localhost:5004",
				HealthPath:  "/health",
				SynthPath:   "/synthesize",
				ContentType: "audio/mpeg",
				Voice:       "Abril",
				Language:    "es-ES",
			},
			{
				Name:        "xtts",
				BaseURL:     "http://localhost:5001",
				HealthPath:  "/health",
				SynthPath:   "/synthesize_json",
				ContentType: "audio/wav",
				Voice:       "es_female",
				Language:    "es",
			},
			{
				Name:        "kokoro",
				BaseURL:     "http://localhost:5002",
				HealthPath:  "/health",
				SynthPath:   "/synthesize_json",
				ContentType: "audio/wav",
				Voice:       "ef_dora",
				Language:    "es",
			},
			{
				Name:        "f5",
				BaseURL:     "http://localhost:5005",
				HealthPath:  "/health",
				SynthPath:   "/synthesize_json",
				ContentType: "audio/wav",
				Voice:       "es_female",
				Language:    "es",
			},
		},
		TestCases: []model.TestCase{
			{
				Key:              "corto",
				Category:         "Texto Corto",
				Text:             "Hola, este es un texto corto para probar la síntesis de voz.",
				ExpectedDuration: 3 * time.Second,
			},
			{
				Key:              "medio",
				Category:         "Texto Medio",
				Text:             "Este es un texto de longitud media que incluye varias oraciones para evaluar la fluidez y naturalidad de la síntesis de texto a voz en español. Contiene palabras comunes y algunas con acentos.",
				ExpectedDuration: 8 * time.Second,
			},
			{
				Key:              "largo",
				Category:         "Texto Largo",
				Text:             "La síntesis de texto a voz es una tecnología fascinante que convierte texto escrito en habla audible. En español, esta tecnología debe manejar correctamente los acentos, la entonación y las particularidades fonéticas del idioma. Los modelos modernos utilizan técnicas avanzadas de aprendizaje profundo para generar voces naturales y expresivas.",
				ExpectedDuration: 20 * time.Second,
			},
			{
				Key:              "tecnico",
				Category:         "Texto Técnico",
				Text:             "La inteligencia artificial y el procesamiento de lenguaje natural han revolucionado la síntesis de voz. Los algoritmos de deep learning, redes neuronales convolucionales y transformers permiten generar audio de alta calidad.",
				ExpectedDuration: 12 * time.Second,
			},
			{
				Key:              "numeros",
				Category:         "Números",
				Text:             "El año 2024 ha sido importante para la IA. Tenemos 365 días, 24 horas, 60 minutos y 3600 segundos. Los números del 1 al 100 son fundamentales en matemáticas.",
				ExpectedDuration: 10 * time.Second,
			},
			{
				Key:              "emocional",
				Category:         "Texto Emocional",
				Text:             "¡Qué maravilloso día! El sol brilla intensamente, los pájaros cantan alegremente y todo parece perfecto. ¿No es increíble cómo la naturaleza nos llena de felicidad?",
				ExpectedDuration: 9 * time.Second,
			},
		},
		Parallel:         false,
		SaveAudio:        true,
		ProbeTimeout:     10 * time.Second,
		SynthTimeout:     60 * time.Second,
		ProbeConcurrency: 4,
		SampleInterval:   250 * time.Millisecond,
		OutputDir:        "tts_comparison_results",
		ComposeFile:      "docker-compose.yml",
	}
}

// Load reads configuration from a file.
// If path is specified, it attempts to load that file.
// If path is empty, it searches for default files in order.
// If no file is found, the defaults are returned. In every case the
// TTSBENCH_* environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := Default()

	var data []byte
	var err error

	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
	} else {
		defaults := []string{"tts_bench.yaml", "tts_bench.yml"}
		found := false
		for _, name := range defaults {
			data, err = os.ReadFile(name)
			if err == nil {
				path = name
				found = true
				break
			}
		}
		if !found {
			if err := applyEnv(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv overlays TTSBENCH_* environment variables on top of the
// loaded configuration.
func applyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("failed to parse environment overrides: %w", err)
	}
	return nil
}
