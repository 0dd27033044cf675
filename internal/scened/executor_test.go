package scened

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/scene-synth/internal/persistence/runindex"
	"github.com/GoSim-25-26J-441/scene-synth/internal/persistence/trace"
)

const testConfigYAML = `
seed: 7
annealing:
  max_iterations: 30
  constraint_mode: soft
sampling:
  max_samples: 10
  ray_count: 4
`

const longConfigYAML = `
annealing:
  max_iterations: 1000000
  constraint_mode: soft
sampling:
  max_samples: 10
  ray_count: 4
`

func newTestExecutor(t *testing.T, opts ExecutorOptions) *RunExecutor {
	t.Helper()
	exec := NewRunExecutor(NewRunStore(), opts)
	t.Cleanup(exec.Shutdown)
	return exec
}

// drain blocks until the run feed closes and returns the final event
func drain(t *testing.T, exec *RunExecutor, runID string) Event {
	t.Helper()
	events, cancel, err := exec.Subscribe(runID)
	if err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}
	defer cancel()

	var last Event
	timeout := time.After(30 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return last
			}
			last = ev
		case <-timeout:
			t.Fatalf("timed out waiting for run %s to finish", runID)
		}
	}
}

func TestRunExecutorAutoRunCompletes(t *testing.T) {
	dir := t.TempDir()
	idx, err := runindex.Open(":memory:")
	if err != nil {
		t.Fatalf("Open index: %v", err)
	}
	defer idx.Close()

	exec := newTestExecutor(t, ExecutorOptions{OutputDir: dir, Index: idx})
	if _, err := exec.Create("run-1", RunInput{ConfigYAML: testConfigYAML}); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	rec, err := exec.Start("run-1")
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if rec.Run.Status != RunStatusRunning {
		t.Fatalf("expected running, got %s", rec.Run.Status)
	}

	final := drain(t, exec, "run-1")
	if final.Type != EventStatus || final.Status != RunStatusCompleted {
		t.Fatalf("expected completed status event, got %+v", final)
	}

	rec, _ = exec.Store().Get("run-1")
	if rec.Run.Status != RunStatusCompleted {
		t.Fatalf("expected completed, got %s", rec.Run.Status)
	}
	if rec.Run.StartedAtUnixMs == 0 || rec.Run.EndedAtUnixMs < rec.Run.StartedAtUnixMs {
		t.Fatalf("unexpected timestamps: %+v", rec.Run)
	}

	progress, err := exec.Progress("run-1")
	if err != nil {
		t.Fatalf("Progress error: %v", err)
	}
	if progress.Iteration == 0 || progress.Iteration > 30 {
		t.Fatalf("expected 1..30 iterations, got %d", progress.Iteration)
	}

	if _, err := os.Stat(filepath.Join(dir, "run-1", "scene.json")); err != nil {
		t.Fatalf("expected scene file: %v", err)
	}
	steps, err := trace.ReadFile(filepath.Join(dir, "run-1", "trace.jsonl.zst"))
	if err != nil {
		t.Fatalf("ReadFile trace: %v", err)
	}
	if len(steps) != progress.Iteration {
		t.Fatalf("expected %d trace lines, got %d", progress.Iteration, len(steps))
	}

	entry, err := idx.Get(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("index Get: %v", err)
	}
	if entry.Status != string(RunStatusCompleted) || entry.Iterations != progress.Iteration || entry.Seed != 7 {
		t.Fatalf("unexpected index entry: %+v", entry)
	}

	summary, err := exec.Metrics("run-1")
	if err != nil {
		t.Fatalf("Metrics error: %v", err)
	}
	if summary.Iterations != progress.Iteration {
		t.Fatalf("expected %d observed iterations, got %d", progress.Iteration, summary.Iterations)
	}
}

func TestRunExecutorManualSteps(t *testing.T) {
	exec := newTestExecutor(t, ExecutorOptions{})
	if _, err := exec.Create("m-1", RunInput{ConfigYAML: testConfigYAML, Mode: ModeManual}); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	ctx := context.Background()

	if _, err := exec.Step(ctx, "m-1", 1); !errors.Is(err, ErrRunNotStarted) {
		t.Fatalf("expected ErrRunNotStarted, got %v", err)
	}
	if _, err := exec.Start("m-1"); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	progress, err := exec.Step(ctx, "m-1", 5)
	if err != nil {
		t.Fatalf("Step error: %v", err)
	}
	if progress.Iteration != 5 {
		t.Fatalf("expected iteration 5, got %d", progress.Iteration)
	}
	rec, _ := exec.Store().Get("m-1")
	if rec.Run.Status != RunStatusRunning {
		t.Fatalf("expected running, got %s", rec.Run.Status)
	}

	doc, err := exec.Scene("m-1")
	if err != nil {
		t.Fatalf("Scene error: %v", err)
	}
	if len(doc.Objects) == 0 || len(doc.Lights) == 0 {
		t.Fatalf("expected objects and lights, got %d/%d", len(doc.Objects), len(doc.Lights))
	}

	progress, err = exec.Step(ctx, "m-1", 1000)
	if err != nil {
		t.Fatalf("Step error: %v", err)
	}
	if progress.Iteration > 30 {
		t.Fatalf("expected at most 30 iterations, got %d", progress.Iteration)
	}
	rec, _ = exec.Store().Get("m-1")
	if rec.Run.Status != RunStatusCompleted {
		t.Fatalf("expected completed, got %s", rec.Run.Status)
	}

	if _, err := exec.Step(ctx, "m-1", 1); !errors.Is(err, ErrRunTerminal) {
		t.Fatalf("expected ErrRunTerminal, got %v", err)
	}
}

func TestRunExecutorConcurrentStartSingleSession(t *testing.T) {
	exec := newTestExecutor(t, ExecutorOptions{})
	if _, err := exec.Create("run-c", RunInput{ConfigYAML: testConfigYAML, Mode: ModeManual}); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	const starters = 8
	var wg sync.WaitGroup
	begin := make(chan struct{})
	errs := make(chan error, starters)
	for i := 0; i < starters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-begin
			_, err := exec.Start("run-c")
			errs <- err
		}()
	}
	close(begin)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Start error: %v", err)
		}
	}

	exec.mu.Lock()
	sessions, starting := len(exec.sessions), len(exec.starting)
	exec.mu.Unlock()
	if sessions != 1 || starting != 0 {
		t.Fatalf("expected 1 session and no pending starts, got %d and %d", sessions, starting)
	}
	if rec, _ := exec.Store().Get("run-c"); rec.Run.Status != RunStatusRunning {
		t.Fatalf("expected running, got %s", rec.Run.Status)
	}

	progress, err := exec.Step(context.Background(), "run-c", 3)
	if err != nil {
		t.Fatalf("Step error: %v", err)
	}
	if progress.Iteration != 3 {
		t.Fatalf("expected iteration 3, got %d", progress.Iteration)
	}
	if _, err := exec.Start("run-c"); err != nil {
		t.Fatalf("Start on a running run should be a no-op, got %v", err)
	}
	progress, err = exec.Progress("run-c")
	if err != nil {
		t.Fatalf("Progress error: %v", err)
	}
	if progress.Iteration != 3 {
		t.Fatalf("restart must keep the session, got iteration %d", progress.Iteration)
	}
}

func TestRunExecutorStepRejectsAutoRun(t *testing.T) {
	exec := newTestExecutor(t, ExecutorOptions{})
	if _, err := exec.Create("a-1", RunInput{ConfigYAML: testConfigYAML}); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := exec.Step(context.Background(), "a-1", 1); !errors.Is(err, ErrWrongMode) {
		t.Fatalf("expected ErrWrongMode, got %v", err)
	}
}

func TestRunExecutorStopManualRun(t *testing.T) {
	exec := newTestExecutor(t, ExecutorOptions{})
	if _, err := exec.Create("m-stop", RunInput{ConfigYAML: testConfigYAML, Mode: ModeManual}); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := exec.Start("m-stop"); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if _, err := exec.Step(context.Background(), "m-stop", 2); err != nil {
		t.Fatalf("Step error: %v", err)
	}

	rec, err := exec.Stop("m-stop")
	if err != nil {
		t.Fatalf("Stop error: %v", err)
	}
	if rec.Run.Status != RunStatusCancelled || rec.Run.Reason != "stopped" {
		t.Fatalf("expected cancelled/stopped, got %s/%s", rec.Run.Status, rec.Run.Reason)
	}

	final := drain(t, exec, "m-stop")
	if final.Status != RunStatusCancelled {
		t.Fatalf("expected cancelled final event, got %+v", final)
	}

	// stopping again is a no-op
	if _, err := exec.Stop("m-stop"); err != nil {
		t.Fatalf("second Stop error: %v", err)
	}
	if _, err := exec.Start("m-stop"); !errors.Is(err, ErrRunTerminal) {
		t.Fatalf("expected ErrRunTerminal on restart, got %v", err)
	}
}

func TestRunExecutorShutdownCancelsAutoRuns(t *testing.T) {
	exec := newTestExecutor(t, ExecutorOptions{})
	if _, err := exec.Create("long", RunInput{ConfigYAML: longConfigYAML}); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := exec.Start("long"); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	exec.Shutdown()
	final := drain(t, exec, "long")
	if final.Status != RunStatusCancelled {
		t.Fatalf("expected cancelled, got %+v", final)
	}
	rec, _ := exec.Store().Get("long")
	if rec.Run.Status != RunStatusCancelled {
		t.Fatalf("expected cancelled, got %s", rec.Run.Status)
	}
}

func TestRunExecutorCreateValidatesInput(t *testing.T) {
	tests := []struct {
		name  string
		input RunInput
	}{
		{"unknown mode", RunInput{Mode: "batch"}},
		{"bad config", RunInput{ConfigYAML: "annealing:\n  cooling_rate: 2\n"}},
		{"bad catalog", RunInput{CatalogYAML: "objects: ["}},
		{"bad scene", RunInput{SceneJSON: `{"objects":[{"position":{"x":0,"y":0,"z":0}}]}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := newTestExecutor(t, ExecutorOptions{})
			if _, err := exec.Create("", tt.input); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			if n := len(exec.Store().List(10, "")); n != 0 {
				t.Fatalf("expected no stored runs, got %d", n)
			}
		})
	}
}

func TestRunExecutorCreateRecordsWarnings(t *testing.T) {
	exec := newTestExecutor(t, ExecutorOptions{})
	sceneJSON := `{"sceneName":"lobby","objects":[
		{"name":"Crate","position":{"x":0,"y":0,"z":0}},
		{"name":"Sofa","position":{"x":2,"y":0,"z":2}}
	],"lights":[]}`
	rec, err := exec.Create("warn", RunInput{SceneJSON: sceneJSON})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if len(rec.Run.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", rec.Run.Warnings)
	}
}

func TestRunExecutorUnknownRun(t *testing.T) {
	exec := newTestExecutor(t, ExecutorOptions{})
	if _, err := exec.Start(""); !errors.Is(err, ErrRunIDMissing) {
		t.Fatalf("expected ErrRunIDMissing, got %v", err)
	}
	if _, err := exec.Start("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	if _, err := exec.Stop("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	if _, err := exec.Metrics("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	if _, _, err := exec.Subscribe("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}
