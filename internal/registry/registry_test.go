package registry

import (
	"testing"

	"github.com/hablalab/tts-bench/internal/model"
)

func testBackends() []model.BackendDescriptor {
	return []model.BackendDescriptor{
		{Name: "azure", BaseURL: "http://localhost:5004"},
		{Name: "xtts", BaseURL: "http://localhost:5001"},
		{Name: "kokoro", BaseURL: "http://localhost:5002"},
	}
}

func testCases() []model.TestCase {
	return []model.TestCase{
		{Key: "corto", Text: "hola"},
		{Key: "largo", Text: "texto largo"},
	}
}

func TestListPreservesOrder(t *testing.T) {
	reg := New(testBackends(), testCases())

	got := reg.List()
	want := []string{"azure", "xtts", "kokoro"}
	if len(got) != len(want) {
		t.Fatalf("expected %d backends, got %d", len(want), len(got))
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Errorf("position %d: expected %s, got %s", i, name, got[i].Name)
		}
	}
}

func TestSelectSubsetPreservesCatalogOrder(t *testing.T) {
	reg := New(testBackends(), testCases())

	// Request order differs from catalog order; catalog order wins.
	got, err := reg.Select([]string{"kokoro", "azure"})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 backends, got %d", len(got))
	}
	if got[0].Name != "azure" || got[1].Name != "kokoro" {
		t.Errorf("unexpected selection order: %s, %s", got[0].Name, got[1].Name)
	}
}

func TestSelectAll(t *testing.T) {
	reg := New(testBackends(), testCases())

	for _, names := range [][]string{nil, {}, {"all"}} {
		got, err := reg.Select(names)
		if err != nil {
			t.Fatalf("select %v: %v", names, err)
		}
		if len(got) != 3 {
			t.Errorf("select %v: expected 3 backends, got %d", names, len(got))
		}
	}
}

func TestSelectUnknownBackend(t *testing.T) {
	reg := New(testBackends(), testCases())

	if _, err := reg.Select([]string{"azure", "nope"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestSelectCases(t *testing.T) {
	reg := New(testBackends(), testCases())

	got, err := reg.SelectCases([]string{"largo"})
	if err != nil {
		t.Fatalf("select cases: %v", err)
	}
	if len(got) != 1 || got[0].Key != "largo" {
		t.Fatalf("unexpected cases: %+v", got)
	}

	if _, err := reg.SelectCases([]string{"inexistente"}); err == nil {
		t.Fatal("expected error for unknown test case")
	}
}

func TestRegistryIsImmutable(t *testing.T) {
	backends := testBackends()
	reg := New(backends, testCases())

	backends[0].Name = "mutated"
	if reg.List()[0].Name != "azure" {
		t.Error("registry shares storage with caller slice")
	}

	listed := reg.List()
	listed[1].Name = "mutated"
	if reg.List()[1].Name != "xtts" {
		t.Error("List exposes internal storage")
	}
}
