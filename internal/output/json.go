/*
PURPOSE:
  Writes synthesis outcomes to a JSON Lines file (NDJSON) as they arrive,
  and the finalized ComparisonResultSet to results.json for the report
  renderer.

REQUIREMENTS:
  User-specified:
  - Machine-parseable output for the external HTML/JSON report generator.

  Implementation-discovered:
  - JSON Lines is better for streaming/logging than a single large array
    (append-friendly; partial data survives a crash mid-run).
  - The renderer additionally wants one compiled document with probes,
    availability, outcomes and per-backend summaries.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine
  - Consumes: internal/model

ERROR HANDLING:
  - Returns error on file creation or write failure.

IMPLEMENTATION RULES:
  - Use encoding/json.NewEncoder.
  - Thread-safe.

USAGE:
  w, err := output.NewJSONWriter("outcomes.jsonl")
  w.Write(outcome)
  w.Close()
  output.WriteResultSet("results.json", set)

SELF-HEALING INSTRUCTIONS:
  - None specific.

RELATED FILES:
  - internal/model/types.go

MAINTENANCE:
  - Update if the renderer's results.json contract changes.
*/

package output

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/hablalab/tts-bench/internal/model"
)

// JSONWriter handles writing outcomes to a JSON Lines file.
type JSONWriter struct {
	file    *os.File
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewJSONWriter creates a new JSONWriter.
func NewJSONWriter(path string) (*JSONWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	return &JSONWriter{
		file:    f,
		encoder: json.NewEncoder(f),
	}, nil
}

// Write writes a single outcome as a JSON line.
func (jw *JSONWriter) Write(o model.SynthesisOutcome) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	return jw.encoder.Encode(o)
}

// Close closes the underlying file.
func (jw *JSONWriter) Close() error {
	return jw.file.Close()
}

// WriteResultSet persists the finalized result set as indented JSON.
func WriteResultSet(path string, set *model.ComparisonResultSet) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(set)
}
