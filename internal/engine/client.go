/*
PURPOSE:
  HTTP client for the two backend interactions: lightweight health
  probes and resource-heavy synthesis requests.

REQUIREMENTS:
  User-specified:
  - Probe: bounded timeout, single attempt, any error or non-2xx means
    unreachable.
  - Synthesize: POST text payload, per-request timeout much larger than
    the probe timeout, returns audio bytes plus content type.

  Implementation-discovered:
  - Needs http.Client with a transport-level ResponseHeaderTimeout so a
    backend that accepts the connection but never answers (model still
    loading) is distinguished from a slow generation.
  - Non-2xx synthesis responses carry a useful body; capture a snippet
    of it in the failure reason.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine (prober, battery)
  - Uses: internal/config, internal/model

ERROR HANDLING:
  - Probe never returns an error; the classification lives on the
    ProbeResult.
  - Synthesize returns an error for every failure mode; the battery
    runner converts it into outcome data.

IMPLEMENTATION RULES:
  - Use net/http.
  - Enforce timeouts via context, not client-global deadlines, so the
    probe and synthesis budgets stay independent.

USAGE:
  c := engine.NewClient(cfg)
  pr := c.Probe(ctx, desc)
  resp, err := c.Synthesize(ctx, desc, testCase)

SELF-HEALING INSTRUCTIONS:
  - If a backend changes its synthesis endpoint, update its descriptor
    in the config, not this client.

RELATED FILES:
  - internal/config/config.go
  - internal/model/types.go

MAINTENANCE:
  - Update if backends grow new request parameters.
*/

package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hablalab/tts-bench/internal/config"
	"github.com/hablalab/tts-bench/internal/model"
)

// maxErrorBodyBytes bounds how much of a failing response body ends up
// in a failure reason.
const maxErrorBodyBytes = 512

// Client issues probes and synthesis requests against TTS backends.
type Client struct {
	cfg  *config.Config
	http *http.Client
}

// NewClient creates a new Client.
func NewClient(cfg *config.Config) *Client {
	// The header timeout covers the time until the first response byte.
	// For self-hosted backends this is where model loading happens.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.SynthTimeout

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Transport: transport,
		},
	}
}

// Probe issues a single bounded-timeout health check. It never retries:
// a flaky backend is simply reported unavailable for this run.
func (c *Client) Probe(ctx context.Context, desc model.BackendDescriptor) model.ProbeResult {
	result := model.ProbeResult{
		Backend:   desc.Name,
		Timestamp: time.Now(),
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, desc.HealthURL(), nil)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	result.Latency = time.Since(start)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		result.Error = fmt.Sprintf("bad status: %s", resp.Status)
		return result
	}

	result.Reachable = true
	return result
}

// SynthesisResponse is the audio produced by one synthesis request.
type SynthesisResponse struct {
	Audio       []byte
	ContentType string
}

// Synthesize posts the test case's text to the backend's synthesis
// endpoint and returns the audio bytes. The per-request timeout is the
// configured synthesis timeout, independent of the probe timeout.
func (c *Client) Synthesize(ctx context.Context, desc model.BackendDescriptor, tc model.TestCase) (*SynthesisResponse, error) {
	payload := map[string]interface{}{
		"text":  tc.Text,
		"speed": 1.0,
	}
	if desc.Voice != "" {
		payload["voice"] = desc.Voice
	}
	if desc.Language != "" {
		payload["language"] = desc.Language
	}
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.SynthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, desc.SynthURL(), bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, fmt.Errorf("backend error (%s): %s", resp.Status, bytes.TrimSpace(snippet))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = desc.ContentType
	}

	return &SynthesisResponse{
		Audio:       audio,
		ContentType: contentType,
	}, nil
}
