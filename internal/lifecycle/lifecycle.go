/*
PURPOSE:
  Injected container lifecycle collaborator. The engine only requires
  "backend reachable at URL X" and stays agnostic to how X came to be
  reachable; this package supplies the start/stop primitives for runs
  that manage their own containers.

REQUIREMENTS:
  User-specified:
  - EnsureRunning/TearDown per backend, invoked around the battery in
    sequential managed runs (start → test → stop choreography).

  Implementation-discovered:
  - docker compose service names match descriptor names in the stock
    catalog, so the descriptor name doubles as the compose service.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine (runner, managed sequential mode)
  - Uses: os/exec

ERROR HANDLING:
  - Errors are returned to the caller; the runner records the backend
    as unavailable rather than aborting the run.

IMPLEMENTATION RULES:
  - Always CommandContext so a stuck docker invocation dies with the run.

USAGE:
  mgr := lifecycle.NewCompose("docker-compose.yml")
  err := mgr.EnsureRunning(ctx, desc)

SELF-HEALING INSTRUCTIONS:
  - If containers never come up, run the compose command by hand and
    compare service names against descriptor names.

RELATED FILES:
  - internal/engine/runner.go

MAINTENANCE:
  - Update if compose service naming diverges from backend naming.
*/

package lifecycle

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/hablalab/tts-bench/internal/model"
)

// Manager abstracts the external container lifecycle collaborator.
type Manager interface {
	EnsureRunning(ctx context.Context, desc model.BackendDescriptor) error
	TearDown(ctx context.Context, desc model.BackendDescriptor) error
}

// Compose manages backends as docker compose services.
type Compose struct {
	File string
}

// NewCompose creates a compose-backed lifecycle manager.
func NewCompose(file string) *Compose {
	return &Compose{File: file}
}

// EnsureRunning brings the backend's compose service up.
func (c *Compose) EnsureRunning(ctx context.Context, desc model.BackendDescriptor) error {
	return c.run(ctx, "up", "-d", desc.Name)
}

// TearDown stops the backend's compose service.
func (c *Compose) TearDown(ctx context.Context, desc model.BackendDescriptor) error {
	return c.run(ctx, "stop", desc.Name)
}

func (c *Compose) run(ctx context.Context, args ...string) error {
	full := append([]string{"compose", "-f", c.File}, args...)
	cmd := exec.CommandContext(ctx, "docker", full...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("docker %s: %w: %s", strings.Join(full, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Noop is the default manager for externally managed backends.
type Noop struct{}

func (Noop) EnsureRunning(context.Context, model.BackendDescriptor) error { return nil }
func (Noop) TearDown(context.Context, model.BackendDescriptor) error      { return nil }
