package store

import (
	"context"
	"errors"
	"testing"

	"github.com/depsentry/depsentry/pkg/analysis"
)

func testReport(id string) *analysis.Report {
	return &analysis.Report{ID: id, Findings: []analysis.Finding{}}
}

func TestMemoryStoreSaveGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Save(ctx, testReport("r1")); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	got, err := s.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.ID != "r1" {
		t.Errorf("ID = %q, want r1", got.ID)
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreListNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := s.Save(ctx, testReport(id)); err != nil {
			t.Fatal(err)
		}
	}

	ids, err := s.List(ctx, 2)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(ids) != 2 || ids[0] != "c" || ids[1] != "b" {
		t.Errorf("List() = %v, want [c b]", ids)
	}
}

func TestMemoryStoreOverwrite(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	r := testReport("r1")
	_ = s.Save(ctx, r)
	r2 := testReport("r1")
	r2.Degraded = true
	_ = s.Save(ctx, r2)

	got, _ := s.Get(ctx, "r1")
	if !got.Degraded {
		t.Error("overwrite did not replace the stored report")
	}
	ids, _ := s.List(ctx, 0)
	if len(ids) != 1 {
		t.Errorf("List() = %v, want single id after overwrite", ids)
	}
}
