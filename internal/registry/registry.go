/*
PURPOSE:
  Static catalog of known TTS backends and configured test cases.
  The registry is the single source of truth for what can be benchmarked.

REQUIREMENTS:
  User-specified:
  - List() returns descriptors in a stable, configured order.
  - Select() narrows the catalog to a named subset ("all" when empty).

  Implementation-discovered:
  - Unknown names in a selection are a caller error, not a silent skip;
    a typo'd --backends flag must fail loudly.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine (runner), internal/cli (probe)
  - Consumes: internal/config, internal/model

ERROR HANDLING:
  - Select returns an error naming the unknown entry.
  - List has no failure modes; the registry is immutable after New.

IMPLEMENTATION RULES:
  - Copy slices on construction and on List so callers cannot mutate
    the catalog.

USAGE:
  reg := registry.New(cfg.Backends, cfg.TestCases)
  descs, err := reg.Select(cfg.SelectedBackends)

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/config/config.go

MAINTENANCE:
  - None.
*/

package registry

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/hablalab/tts-bench/internal/model"
)

// Registry holds the immutable backend catalog and test battery.
type Registry struct {
	backends []model.BackendDescriptor
	cases    []model.TestCase
}

// New builds a registry from configured descriptors and test cases.
func New(backends []model.BackendDescriptor, cases []model.TestCase) *Registry {
	return &Registry{
		backends: append([]model.BackendDescriptor(nil), backends...),
		cases:    append([]model.TestCase(nil), cases...),
	}
}

// List returns all registered backends in configured order.
func (r *Registry) List() []model.BackendDescriptor {
	return append([]model.BackendDescriptor(nil), r.backends...)
}

// Cases returns the full configured test battery in order.
func (r *Registry) Cases() []model.TestCase {
	return append([]model.TestCase(nil), r.cases...)
}

// Select returns the backends whose names appear in names, preserving
// catalog order. An empty selection (or "all") returns everything.
func (r *Registry) Select(names []string) ([]model.BackendDescriptor, error) {
	if isAll(names) {
		return r.List(), nil
	}

	known := lo.SliceToMap(r.backends, func(d model.BackendDescriptor) (string, struct{}) {
		return d.Name, struct{}{}
	})
	for _, name := range names {
		if _, ok := known[name]; !ok {
			return nil, fmt.Errorf("unknown backend %q", name)
		}
	}

	wanted := lo.SliceToMap(names, func(n string) (string, struct{}) { return n, struct{}{} })
	return lo.Filter(r.backends, func(d model.BackendDescriptor, _ int) bool {
		_, ok := wanted[d.Name]
		return ok
	}), nil
}

// SelectCases returns the test cases whose keys appear in keys,
// preserving battery order. Empty (or "all") returns the full battery.
func (r *Registry) SelectCases(keys []string) ([]model.TestCase, error) {
	if isAll(keys) {
		return r.Cases(), nil
	}

	known := lo.SliceToMap(r.cases, func(tc model.TestCase) (string, struct{}) {
		return tc.Key, struct{}{}
	})
	for _, key := range keys {
		if _, ok := known[key]; !ok {
			return nil, fmt.Errorf("unknown test case %q", key)
		}
	}

	wanted := lo.SliceToMap(keys, func(k string) (string, struct{}) { return k, struct{}{} })
	return lo.Filter(r.cases, func(tc model.TestCase, _ int) bool {
		_, ok := wanted[tc.Key]
		return ok
	}), nil
}

func isAll(names []string) bool {
	if len(names) == 0 {
		return true
	}
	return len(names) == 1 && names[0] == "all"
}
