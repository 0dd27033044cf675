// Package scened serves scene optimization runs over HTTP, websocket and gRPC.
package scened

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/scene-synth/internal/anneal"
	"github.com/GoSim-25-26J-441/scene-synth/internal/catalog"
	"github.com/GoSim-25-26J-441/scene-synth/internal/metrics"
	"github.com/GoSim-25-26J-441/scene-synth/internal/persistence/runindex"
	"github.com/GoSim-25-26J-441/scene-synth/internal/persistence/scenefile"
	"github.com/GoSim-25-26J-441/scene-synth/internal/persistence/trace"
	"github.com/GoSim-25-26J-441/scene-synth/internal/scene"
	"github.com/GoSim-25-26J-441/scene-synth/pkg/config"
	"github.com/GoSim-25-26J-441/scene-synth/pkg/logger"
	"github.com/GoSim-25-26J-441/scene-synth/pkg/utils"
)

var (
	ErrRunNotFound   = errors.New("run not found")
	ErrRunTerminal   = errors.New("run is terminal")
	ErrRunIDMissing  = errors.New("run_id is required")
	ErrWrongMode     = errors.New("operation not allowed in this run mode")
	ErrRunNotStarted = errors.New("run not started")
	ErrInvalidInput  = errors.New("invalid run input")
)

// ExecutorOptions wires optional persistence into the executor
type ExecutorOptions struct {
	// OutputDir receives <run_id>/scene.json and <run_id>/trace.jsonl.zst; empty disables files
	OutputDir string
	Index     *runindex.Index
	Notifier  *Notifier
}

type session struct {
	mu         sync.Mutex // serializes manual steps and finish
	opt        *anneal.Optimizer
	collector  *metrics.Collector
	trace      *trace.Writer
	feed       *feed
	cancel     context.CancelFunc
	seed       int64
	startedAt  time.Time
	scenePath  string
	tracePath  string
	finishOnce sync.Once
}

// RunExecutor manages run sessions and per-run cancellation.
type RunExecutor struct {
	store *RunStore
	opts  ExecutorOptions

	mu       sync.Mutex
	sessions map[string]*session
	starting map[string]bool // runs between claim and session registration
}

func NewRunExecutor(store *RunStore, opts ExecutorOptions) *RunExecutor {
	return &RunExecutor{
		store:    store,
		opts:     opts,
		sessions: make(map[string]*session),
		starting: make(map[string]bool),
	}
}

// Store returns the backing run store
func (e *RunExecutor) Store() *RunStore { return e.store }

type parsedInput struct {
	cfg      *config.RunConfig
	catalog  *catalog.Catalog
	initial  *scene.State
	warnings []string
}

func parseInput(input RunInput) (*parsedInput, error) {
	switch input.Mode {
	case "", ModeAuto, ModeManual:
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, input.Mode)
	}

	p := &parsedInput{cfg: config.DefaultRunConfig(), catalog: catalog.Default()}
	var err error
	if input.ConfigYAML != "" {
		if p.cfg, err = config.ParseRunConfigYAMLString(input.ConfigYAML); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	if input.CatalogYAML != "" {
		if p.catalog, err = catalog.Parse([]byte(input.CatalogYAML)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	if input.SceneJSON != "" {
		doc, err := scenefile.Decode([]byte(input.SceneJSON))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		p.initial, p.warnings = scenefile.ToState(doc, p.catalog)
	}
	return p, nil
}

// Create validates the input and registers a pending run
func (e *RunExecutor) Create(runID string, input RunInput) (*RunRecord, error) {
	p, err := parseInput(input)
	if err != nil {
		return nil, err
	}
	rec, err := e.store.Create(runID, input)
	if err != nil {
		return nil, err
	}
	e.store.AddWarnings(rec.Run.ID, p.warnings)
	rec, _ = e.store.Get(rec.Run.ID)
	logger.Info("run created", "run_id", rec.Run.ID, "mode", rec.Run.Mode)
	return rec, nil
}

func (e *RunExecutor) build(runID string, input RunInput) (*session, error) {
	p, err := parseInput(input)
	if err != nil {
		return nil, err
	}
	rng := utils.NewRandSource(p.cfg.Seed)
	ev := scene.NewEvaluator(p.cfg, p.catalog, rng)
	opt, err := anneal.NewOptimizer(p.cfg, ev, rng)
	if err != nil {
		return nil, err
	}
	sess := &session{
		opt:       opt,
		collector: metrics.NewCollector(),
		feed:      newFeed(),
		seed:      rng.Seed(),
	}
	opt.WithLogger(logger.ForRun(runID)).
		WithHook(sess.collector.Hook()).
		WithHook(sess.feed.publishStep)

	if e.opts.OutputDir != "" {
		dir := filepath.Join(e.opts.OutputDir, runID)
		sess.scenePath = filepath.Join(dir, "scene.json")
		sess.tracePath = filepath.Join(dir, "trace.jsonl.zst")
		tw, err := trace.Create(sess.tracePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create trace: %w", err)
		}
		sess.trace = tw
		opt.WithHook(tw.Hook())
	}

	if err := opt.Init(p.initial); err != nil {
		if sess.trace != nil {
			_ = sess.trace.Close()
		}
		return nil, err
	}
	return sess, nil
}

func (e *RunExecutor) session(runID string) (*session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[runID]
	return s, ok
}

// Start initializes the optimizer. Auto runs proceed in the background;
// manual runs wait for Step.
func (e *RunExecutor) Start(runID string) (*RunRecord, error) {
	if runID == "" {
		return nil, ErrRunIDMissing
	}
	rec, ok := e.store.Get(runID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	switch {
	case rec.Run.Status == RunStatusRunning:
		return rec, nil
	case rec.Run.Status.Terminal():
		return nil, fmt.Errorf("%w: %s", ErrRunTerminal, runID)
	}
	if !e.claimStart(runID) {
		// another Start owns this run
		if cur, ok := e.store.Get(runID); ok {
			return cur, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	defer e.releaseStart(runID)

	sess, err := e.build(runID, rec.Input)
	if err != nil {
		logger.Error("failed to start run", "run_id", runID, "error", err)
		if _, setErr := e.store.SetStatus(runID, RunStatusFailed, "", err.Error()); setErr != nil {
			logger.Error("failed to set failed status", "run_id", runID, "error", setErr)
		}
		return nil, err
	}
	sess.startedAt = time.Now().UTC()
	sess.collector.Start()

	updated, err := e.store.SetStatus(runID, RunStatusRunning, "", "")
	if err != nil {
		if sess.trace != nil {
			_ = sess.trace.Close()
		}
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess.cancel = cancel
	e.mu.Lock()
	e.sessions[runID] = sess
	e.mu.Unlock()

	sess.feed.publish(Event{Type: EventStatus, Status: RunStatusRunning})
	if rec.Run.Mode != ModeManual {
		go e.runAuto(ctx, runID, sess)
	}
	return updated, nil
}

// claimStart reserves runID for a single Start; false when a session exists
// or another Start is building one
func (e *RunExecutor) claimStart(runID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.sessions[runID]; exists || e.starting[runID] {
		return false
	}
	e.starting[runID] = true
	return true
}

func (e *RunExecutor) releaseStart(runID string) {
	e.mu.Lock()
	delete(e.starting, runID)
	e.mu.Unlock()
}

func (e *RunExecutor) runAuto(ctx context.Context, runID string, sess *session) {
	logger.Info("starting optimization", "run_id", runID)
	_, err := sess.opt.Run(ctx)
	if ctx.Err() != nil {
		logger.Info("optimization cancelled", "run_id", runID)
	}
	e.finish(runID, sess, err)
}

// Step advances a manual run by up to n iterations. Optimizer failures end
// the run and are reported through its status, not the returned error.
func (e *RunExecutor) Step(ctx context.Context, runID string, n int) (anneal.Progress, error) {
	if runID == "" {
		return anneal.Progress{}, ErrRunIDMissing
	}
	if n <= 0 {
		n = 1
	}
	rec, ok := e.store.Get(runID)
	if !ok {
		return anneal.Progress{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if rec.Run.Mode != ModeManual {
		return anneal.Progress{}, fmt.Errorf("%w: %s is %s", ErrWrongMode, runID, rec.Run.Mode)
	}
	if rec.Run.Status.Terminal() {
		return anneal.Progress{}, fmt.Errorf("%w: %s", ErrRunTerminal, runID)
	}
	sess, ok := e.session(runID)
	if !ok {
		return anneal.Progress{}, fmt.Errorf("%w: %s", ErrRunNotStarted, runID)
	}

	sess.mu.Lock()
	_, err := sess.opt.StepN(ctx, n)
	sess.mu.Unlock()
	if ctx.Err() != nil {
		return sess.opt.Progress(), ctx.Err()
	}
	if err != nil || sess.opt.Status().Terminal() {
		e.finish(runID, sess, err)
	}
	return sess.opt.Progress(), nil
}

// Stop cancels a run and marks it cancelled
func (e *RunExecutor) Stop(runID string) (*RunRecord, error) {
	if runID == "" {
		return nil, ErrRunIDMissing
	}
	rec, ok := e.store.Get(runID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if rec.Run.Status.Terminal() {
		return rec, nil
	}

	updated, err := e.store.SetStatus(runID, RunStatusCancelled, "stopped", "")
	if err != nil {
		return nil, err
	}
	sess, ok := e.session(runID)
	if ok {
		sess.cancel()
		if rec.Run.Mode == ModeManual {
			e.finish(runID, sess, context.Canceled)
		}
	}
	logger.Info("run cancelled", "run_id", runID)
	return updated, nil
}

// finish persists the outcome once per session
func (e *RunExecutor) finish(runID string, sess *session, runErr error) {
	sess.finishOnce.Do(func() {
		sess.mu.Lock()
		defer sess.mu.Unlock()

		res := sess.opt.Result()
		sess.collector.Finish(res)
		if sess.trace != nil {
			if err := sess.trace.Close(); err != nil {
				logger.Error("failed to close trace", "run_id", runID, "error", err)
			}
		}

		status := RunStatusCompleted
		errMsg := ""
		if res.Status == anneal.StatusFailed || (runErr != nil && !errors.Is(runErr, context.Canceled)) {
			status = RunStatusFailed
			if runErr != nil {
				errMsg = runErr.Error()
			}
		}
		rec, err := e.store.SetStatus(runID, status, res.Reason, errMsg)
		if err != nil && !errors.Is(err, ErrRunTerminal) {
			logger.Error("failed to set final status", "run_id", runID, "error", err)
			return
		}
		status = rec.Run.Status

		scenePath := ""
		if sess.scenePath != "" && res.State != nil {
			if err := scenefile.Save(sess.scenePath, res.State); err != nil {
				logger.Error("failed to save scene", "run_id", runID, "error", err)
			} else {
				scenePath = sess.scenePath
			}
		}

		objects, lights := 0, 0
		if res.State != nil {
			objects, lights = len(res.State.Objects), len(res.State.Lights)
		}
		if e.opts.Index != nil {
			err := e.opts.Index.Record(context.Background(), runindex.Record{
				ID:             runID,
				Mode:           rec.Run.Mode,
				Status:         string(status),
				Reason:         res.Reason,
				Seed:           sess.seed,
				Iterations:     res.Iterations,
				Cost:           res.Cost,
				Objects:        objects,
				Lights:         lights,
				Accepted:       res.Accepted,
				Rejected:       res.Rejected,
				HardRejections: res.HardRejections,
				StartedAt:      sess.startedAt,
				FinishedAt:     time.Now().UTC(),
				ScenePath:      scenePath,
				TracePath:      sess.tracePath,
			})
			if err != nil {
				logger.Error("failed to index run", "run_id", runID, "error", err)
			}
		}

		sess.feed.close(Event{Type: EventStatus, Status: status, Reason: res.Reason})
		if e.opts.Notifier != nil {
			e.opts.Notifier.Notify(rec.Input.CallbackURL, rec.Input.CallbackSecret, NotificationPayload{
				RunID:           runID,
				Status:          status,
				Reason:          res.Reason,
				Error:           rec.Run.Error,
				Iterations:      res.Iterations,
				Cost:            res.Cost,
				Objects:         objects,
				Lights:          lights,
				CreatedAtUnixMs: rec.Run.CreatedAtUnixMs,
				StartedAtUnixMs: rec.Run.StartedAtUnixMs,
				EndedAtUnixMs:   rec.Run.EndedAtUnixMs,
			})
		}
		logger.Info("run finished", "run_id", runID, "status", status, "iterations", res.Iterations, "cost", res.Cost)
	})
}

// Progress returns the optimizer snapshot of a started run
func (e *RunExecutor) Progress(runID string) (anneal.Progress, error) {
	sess, err := e.started(runID)
	if err != nil {
		return anneal.Progress{}, err
	}
	return sess.opt.Progress(), nil
}

// Scene returns the current (or final) layout of a started run
func (e *RunExecutor) Scene(runID string) (*scenefile.Document, error) {
	sess, err := e.started(runID)
	if err != nil {
		return nil, err
	}
	cur := sess.opt.Current()
	if cur == nil {
		return nil, fmt.Errorf("%w: %s", ErrRunNotStarted, runID)
	}
	return scenefile.FromState(cur), nil
}

// Metrics returns the telemetry summary of a started run
func (e *RunExecutor) Metrics(runID string) (*metrics.Summary, error) {
	sess, err := e.started(runID)
	if err != nil {
		return nil, err
	}
	return sess.collector.Summary(), nil
}

// Subscribe streams events of a started run until it finishes or cancel is called
func (e *RunExecutor) Subscribe(runID string) (<-chan Event, func(), error) {
	sess, err := e.started(runID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := sess.feed.subscribe(64)
	return ch, cancel, nil
}

func (e *RunExecutor) started(runID string) (*session, error) {
	if runID == "" {
		return nil, ErrRunIDMissing
	}
	if _, ok := e.store.Get(runID); !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	sess, ok := e.session(runID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotStarted, runID)
	}
	return sess, nil
}

// Shutdown cancels every active run
func (e *RunExecutor) Shutdown() {
	e.mu.Lock()
	ids := make([]string, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	e.mu.Unlock()
	for _, id := range ids {
		if _, err := e.Stop(id); err != nil {
			logger.Warn("failed to stop run on shutdown", "run_id", id, "error", err)
		}
	}
}
