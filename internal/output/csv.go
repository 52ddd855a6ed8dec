/*
PURPOSE:
  Writes synthesis outcomes to a CSV file.
  Ensures data integrity by flushing writes immediately.

REQUIREMENTS:
  User-specified:
  - Output to CSV for spreadsheet review of backend performance.
  - Keep file handle open for flushing.

  Implementation-discovered:
  - One row per (backend, test case) outcome, failures included.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine
  - Consumes: internal/model.SynthesisOutcome

ERROR HANDLING:
  - Returns error on file creation or write failure.

IMPLEMENTATION RULES:
  - Use encoding/csv.
  - Flush() after every write (critical for crash resilience).
  - Use Mutex since the parallel scheduler may fan in concurrently.

USAGE:
  w, err := output.NewCSVWriter("outcomes.csv")
  w.Write(outcome)
  w.Close()

SELF-HEALING INSTRUCTIONS:
  - If CSV format changes, update header and record conversion.

RELATED FILES:
  - internal/model/types.go

MAINTENANCE:
  - Update Write() mapping when SynthesisOutcome changes.
*/

package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"sync"

	"github.com/hablalab/tts-bench/internal/model"
)

// CSVWriter handles writing outcomes to a CSV file.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter creates a new CSVWriter.
// It overwrites the file if it exists.
func NewCSVWriter(path string) (*CSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	w := csv.NewWriter(f)

	header := []string{
		"backend", "test_case", "category", "timestamp", "success",
		"elapsed_s", "text_length", "expected_duration_s",
		"audio_bytes", "audio_path",
		"cpu_mean_pct", "cpu_peak_pct", "ram_mean_mb", "ram_peak_mb",
		"gpu_mean_pct", "gpu_peak_pct", "vram_mean_mb", "vram_peak_mb",
		"samples", "failure_reason",
	}
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, err
	}
	w.Flush()

	return &CSVWriter{
		file:   f,
		writer: w,
	}, nil
}

// Write writes a single outcome to the CSV file.
// It is thread-safe.
func (cw *CSVWriter) Write(o model.SynthesisOutcome) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	r := o.Resources
	record := []string{
		o.Backend,
		o.TestCase,
		o.Category,
		o.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
		fmt.Sprintf("%t", o.Success),
		fmt.Sprintf("%.4f", o.Elapsed.Seconds()),
		fmt.Sprintf("%d", o.TextLength),
		fmt.Sprintf("%.1f", o.ExpectedDuration.Seconds()),
		fmt.Sprintf("%d", o.AudioBytes),
		o.AudioPath,
		fmt.Sprintf("%.1f", r.CPUMeanPct),
		fmt.Sprintf("%.1f", r.CPUPeakPct),
		fmt.Sprintf("%.2f", float64(r.RAMMeanB)/1024/1024),
		fmt.Sprintf("%.2f", float64(r.RAMPeakB)/1024/1024),
		fmt.Sprintf("%.1f", r.GPUMeanPct),
		fmt.Sprintf("%.1f", r.GPUPeakPct),
		fmt.Sprintf("%.2f", float64(r.VRAMMeanB)/1024/1024),
		fmt.Sprintf("%.2f", float64(r.VRAMPeakB)/1024/1024),
		fmt.Sprintf("%d", r.Samples),
		o.FailureReason,
	}

	if err := cw.writer.Write(record); err != nil {
		return err
	}
	cw.writer.Flush()
	return cw.writer.Error()
}

// Close closes the underlying file.
func (cw *CSVWriter) Close() error {
	cw.writer.Flush()
	return cw.file.Close()
}
