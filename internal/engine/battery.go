/*
PURPOSE:
  Drives one backend through the full ordered test battery, coordinating
  resource sampling around each synthesis request and persisting audio
  artifacts.

REQUIREMENTS:
  User-specified:
  - Requests against one backend are strictly serialized so resource
    samples stay attributable to a single in-flight request.
  - Partial-failure isolation: one failing case must not abort the
    remaining battery.
  - Every scheduled case yields exactly one outcome, including cases
    cancelled before dispatch.

  Implementation-discovered:
  - Sampling must observe the full request window: start before the
    POST, stop after the response or failure.
  - Cancellation is detected both before dispatch (ctx already done)
    and after a failed request (request error caused by ctx).

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine/scheduler.go
  - Uses: internal/engine/client.go, internal/sampler

ERROR HANDLING:
  - Never returns an error; every failure mode becomes outcome data.

IMPLEMENTATION RULES:
  - Audio files are sequentially numbered per (backend, case) within the
    run's audio directory.
  - A failed audio write downgrades the outcome to a failure: an
    artifact the user cannot review is a lost result.

USAGE:
  b := engine.NewBattery(client, smp, audioDir, true)
  outcomes := b.Run(ctx, desc, cases)

SELF-HEALING INSTRUCTIONS:
  - If audio files are empty, check the backend's content type versus
    its descriptor.

RELATED FILES:
  - internal/engine/scheduler.go
  - internal/sampler/sampler.go

MAINTENANCE:
  - Update when outcomes grow new captured dimensions.
*/

package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hablalab/tts-bench/internal/model"
	"github.com/hablalab/tts-bench/internal/output"
	"github.com/hablalab/tts-bench/internal/sampler"
)

// SamplingHandle is an in-progress resource sample collection.
type SamplingHandle interface {
	Stop() []model.ResourceSample
}

// ResourceSampler starts per-request sample collection. Satisfied by
// the host sampler; tests substitute fakes.
type ResourceSampler interface {
	Start(ctx context.Context, backend, testCase string) SamplingHandle
}

// HostSampler adapts *sampler.Sampler to the ResourceSampler interface.
type HostSampler struct {
	S *sampler.Sampler
}

func (h HostSampler) Start(ctx context.Context, backend, testCase string) SamplingHandle {
	return h.S.Start(ctx, backend, testCase)
}

// Battery runs the ordered test battery against a single backend.
type Battery struct {
	client    *Client
	sampler   ResourceSampler
	audioDir  string
	saveAudio bool
}

// NewBattery creates a battery runner. audioDir is where artifacts are
// persisted when saveAudio is set.
func NewBattery(client *Client, smp ResourceSampler, audioDir string, saveAudio bool) *Battery {
	return &Battery{
		client:    client,
		sampler:   smp,
		audioDir:  audioDir,
		saveAudio: saveAudio,
	}
}

// Run executes every test case in configured order and returns one
// outcome per case. Requests are serialized; sampling brackets each
// request.
func (b *Battery) Run(ctx context.Context, desc model.BackendDescriptor, cases []model.TestCase) []model.SynthesisOutcome {
	outcomes := make([]model.SynthesisOutcome, 0, len(cases))

	for seq, tc := range cases {
		if ctx.Err() != nil {
			// Run cancelled: back-fill the remaining scheduled cases so
			// the per-pair outcome invariant holds.
			outcomes = append(outcomes, cancelledOutcome(desc, tc))
			continue
		}

		outcomes = append(outcomes, b.runCase(ctx, desc, tc, seq))
	}

	return outcomes
}

func (b *Battery) runCase(ctx context.Context, desc model.BackendDescriptor, tc model.TestCase, seq int) model.SynthesisOutcome {
	out := model.SynthesisOutcome{
		Backend:          desc.Name,
		TestCase:         tc.Key,
		Category:         tc.Category,
		TextLength:       len(tc.Text),
		ExpectedDuration: tc.ExpectedDuration,
		Timestamp:        time.Now(),
	}

	output.Logger.Info("Running test case", "backend", desc.Name, "case", tc.Key)

	handle := b.sampler.Start(ctx, desc.Name, tc.Key)
	start := time.Now()
	resp, err := b.client.Synthesize(ctx, desc, tc)
	out.Elapsed = time.Since(start)
	out.Resources = sampler.Stats(handle.Stop())

	if err != nil {
		out.FailureReason = err.Error()
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			out.FailureReason = model.FailureReasonCancelled
		}
		output.Logger.Error("Test case failed",
			"backend", desc.Name, "case", tc.Key, "reason", out.FailureReason)
		return out
	}

	out.Success = true
	out.AudioBytes = int64(len(resp.Audio))
	out.ContentType = resp.ContentType

	if b.saveAudio {
		path, err := b.persistAudio(desc, tc, seq, resp)
		if err != nil {
			out.Success = false
			out.FailureReason = fmt.Sprintf("audio persistence failed: %v", err)
			output.Logger.Error("Failed to persist audio",
				"backend", desc.Name, "case", tc.Key, "error", err)
			return out
		}
		out.AudioPath = path
	}

	output.Logger.Info("Test case succeeded",
		"backend", desc.Name,
		"case", tc.Key,
		"elapsed", out.Elapsed,
		"audio_size", humanize.Bytes(uint64(out.AudioBytes)),
	)
	return out
}

func (b *Battery) persistAudio(desc model.BackendDescriptor, tc model.TestCase, seq int, resp *SynthesisResponse) (string, error) {
	name := fmt.Sprintf("%s_%s_%03d%s", desc.Name, tc.Key, seq, extensionFor(resp.ContentType))
	path := filepath.Join(b.audioDir, name)
	if err := os.WriteFile(path, resp.Audio, 0644); err != nil {
		return "", err
	}
	return path, nil
}

func cancelledOutcome(desc model.BackendDescriptor, tc model.TestCase) model.SynthesisOutcome {
	return model.SynthesisOutcome{
		Backend:          desc.Name,
		TestCase:         tc.Key,
		Category:         tc.Category,
		TextLength:       len(tc.Text),
		ExpectedDuration: tc.ExpectedDuration,
		Timestamp:        time.Now(),
		FailureReason:    model.FailureReasonCancelled,
	}
}

func extensionFor(contentType string) string {
	switch contentType {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	default:
		return ".bin"
	}
}
