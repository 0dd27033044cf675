package scened

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/scene-synth/pkg/utils"
)

// RunStatus is the lifecycle position of a run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether the run can no longer change
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// Run modes
const (
	ModeAuto   = "auto"
	ModeManual = "manual"
)

// RunInput is everything needed to build an optimizer for a run
type RunInput struct {
	ConfigYAML     string `json:"config_yaml,omitempty"`
	CatalogYAML    string `json:"catalog_yaml,omitempty"`
	SceneJSON      string `json:"scene_json,omitempty"`
	Mode           string `json:"mode,omitempty"`
	CallbackURL    string `json:"callback_url,omitempty"`
	CallbackSecret string `json:"callback_secret,omitempty"`
}

// Run is the client-visible run description
type Run struct {
	ID              string    `json:"id"`
	Mode            string    `json:"mode"`
	Status          RunStatus `json:"status"`
	Reason          string    `json:"reason,omitempty"`
	Error           string    `json:"error,omitempty"`
	Warnings        []string  `json:"warnings,omitempty"`
	CreatedAtUnixMs int64     `json:"created_at_unix_ms"`
	StartedAtUnixMs int64     `json:"started_at_unix_ms,omitempty"`
	EndedAtUnixMs   int64     `json:"ended_at_unix_ms,omitempty"`
}

// RunRecord pairs a run with its input
type RunRecord struct {
	Run   Run
	Input RunInput
}

// RunStore keeps runs in memory
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]*RunRecord
}

func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string]*RunRecord),
	}
}

func nowUnixMs() int64 {
	return time.Now().UTC().UnixMilli()
}

func (r *RunRecord) clone() *RunRecord {
	c := *r
	c.Run.Warnings = append([]string(nil), r.Run.Warnings...)
	return &c
}

// Create registers a pending run, generating an id when runID is empty
func (s *RunStore) Create(runID string, input RunInput) (*RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if runID == "" {
		runID = utils.GenerateRunID()
	}
	if strings.ContainsAny(runID, "/:?#") {
		return nil, fmt.Errorf("run id cannot contain '/', ':', '?' or '#': %s", runID)
	}
	if _, exists := s.runs[runID]; exists {
		return nil, fmt.Errorf("run already exists: %s", runID)
	}
	if input.Mode == "" {
		input.Mode = ModeAuto
	}

	rec := &RunRecord{
		Run: Run{
			ID:              runID,
			Mode:            input.Mode,
			Status:          RunStatusPending,
			CreatedAtUnixMs: nowUnixMs(),
		},
		Input: input,
	}
	s.runs[runID] = rec
	return rec.clone(), nil
}

// Get returns a copy of the run
func (s *RunStore) Get(runID string) (*RunRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.runs[runID]
	if !ok {
		return nil, false
	}
	return rec.clone(), true
}

// List returns up to limit runs, newest first
func (s *RunStore) List(limit int, status RunStatus) []*RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	out := make([]*RunRecord, 0, len(s.runs))
	for _, rec := range s.runs {
		if status != "" && rec.Run.Status != status {
			continue
		}
		out = append(out, rec.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Run.CreatedAtUnixMs != out[j].Run.CreatedAtUnixMs {
			return out[i].Run.CreatedAtUnixMs > out[j].Run.CreatedAtUnixMs
		}
		return out[i].Run.ID < out[j].Run.ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// SetStatus moves a run to status. Terminal runs are never changed again.
func (s *RunStore) SetStatus(runID string, status RunStatus, reason, errMsg string) (*RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if rec.Run.Status.Terminal() {
		return rec.clone(), fmt.Errorf("%w: %s", ErrRunTerminal, runID)
	}

	rec.Run.Status = status
	if reason != "" {
		rec.Run.Reason = reason
	}
	if errMsg != "" {
		rec.Run.Error = errMsg
	}
	switch {
	case status == RunStatusRunning:
		if rec.Run.StartedAtUnixMs == 0 {
			rec.Run.StartedAtUnixMs = nowUnixMs()
		}
	case status.Terminal():
		rec.Run.EndedAtUnixMs = nowUnixMs()
	}
	return rec.clone(), nil
}

// AddWarnings appends input warnings to a run
func (s *RunStore) AddWarnings(runID string, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.runs[runID]; ok {
		rec.Run.Warnings = append(rec.Run.Warnings, warnings...)
	}
}
