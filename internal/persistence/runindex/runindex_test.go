package runindex

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	x, err := Open(filepath.Join(t.TempDir(), "index", "runs.sqlite"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(func() { _ = x.Close() })
	return x
}

func TestRecordAndGet(t *testing.T) {
	x := openTestIndex(t)
	ctx := context.Background()
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := Record{
		ID:             "run-1",
		Mode:           "auto",
		Status:         "converged",
		Reason:         "mean_delta: settled",
		Seed:           42,
		Iterations:     812,
		Cost:           0.125,
		Objects:        9,
		Lights:         2,
		Accepted:       300,
		Rejected:       512,
		HardRejections: 77,
		StartedAt:      start,
		FinishedAt:     start.Add(3 * time.Second),
		ScenePath:      "/tmp/out.json",
	}
	if err := x.Record(ctx, r); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	got, err := x.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !got.StartedAt.Equal(r.StartedAt) || !got.FinishedAt.Equal(r.FinishedAt) {
		t.Fatalf("time mismatch: %v/%v", got.StartedAt, got.FinishedAt)
	}
	want := r
	got.StartedAt, got.FinishedAt = time.Time{}, time.Time{}
	want.StartedAt, want.FinishedAt = time.Time{}, time.Time{}
	if got != want {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}

	// replace keeps a single row
	r.Status = "failed"
	if err := x.Record(ctx, r); err != nil {
		t.Fatalf("re-record failed: %v", err)
	}
	all, err := x.List(ctx, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 1 || all[0].Status != "failed" {
		t.Fatalf("expected one replaced row, got %+v", all)
	}
}

func TestGetNotFound(t *testing.T) {
	x := openTestIndex(t)
	if _, err := x.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	x := openTestIndex(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		err := x.Record(ctx, Record{ID: id, Mode: "auto", Status: "converged", StartedAt: base, FinishedAt: base.Add(time.Duration(i) * time.Minute)})
		if err != nil {
			t.Fatalf("record %s failed: %v", id, err)
		}
	}
	list, err := x.List(ctx, 2)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != "c" || list[1].ID != "b" {
		t.Fatalf("unexpected order %+v", list)
	}
}

func TestRecordRequiresID(t *testing.T) {
	x := openTestIndex(t)
	if err := x.Record(context.Background(), Record{}); err == nil {
		t.Fatalf("expected error for empty id")
	}
	if _, err := Open(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
