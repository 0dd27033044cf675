package scened

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/GoSim-25-26J-441/scene-synth/pkg/logger"
)

type HTTPServer struct {
	mux      *http.ServeMux
	store    *RunStore
	Executor *RunExecutor
	upgrader websocket.Upgrader
}

func NewHTTPServer(executor *RunExecutor) *HTTPServer {
	s := &HTTPServer{
		mux:      http.NewServeMux(),
		store:    executor.Store(),
		Executor: executor,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/v1/runs", s.handleRuns)
	s.mux.HandleFunc("/v1/runs/", s.handleRunByID)

	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleRuns handles /v1/runs
func (s *HTTPServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateRun(w, r)
	case http.MethodGet:
		s.handleListRuns(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type runRoute struct {
	suffix  string
	method  string
	handler func(http.ResponseWriter, *http.Request, string)
}

// handleRunByID handles /v1/runs/{id} and its actions
func (s *HTTPServer) handleRunByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "run ID is required")
		return
	}

	routes := []runRoute{
		{":start", http.MethodPost, s.handleStartRun},
		{":step", http.MethodPost, s.handleStepRun},
		{":stop", http.MethodPost, s.handleStopRun},
		{"/scene", http.MethodGet, s.handleGetScene},
		{"/metrics", http.MethodGet, s.handleGetMetrics},
		{"/ws", http.MethodGet, s.handleWebsocket},
	}
	for _, rt := range routes {
		if !strings.HasSuffix(path, rt.suffix) {
			continue
		}
		if r.Method != rt.method {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		rt.handler(w, r, strings.TrimSuffix(path, rt.suffix))
		return
	}

	if strings.ContainsAny(path, "/:") {
		s.writeError(w, http.StatusNotFound, "unknown run endpoint")
		return
	}
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.handleGetRun(w, r, path)
}

// handleCreateRun handles POST /v1/runs
func (s *HTTPServer) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RunID string   `json:"run_id,omitempty"`
		Input RunInput `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	rec, err := s.Executor.Create(req.RunID, req.Input)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			s.writeError(w, http.StatusBadRequest, err.Error())
		case strings.Contains(err.Error(), "already exists"):
			s.writeError(w, http.StatusConflict, err.Error())
		case strings.Contains(err.Error(), "cannot contain"):
			s.writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{"run": rec.Run})
}

// handleListRuns handles GET /v1/runs?limit=&status=
func (s *HTTPServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
			if limit > 1000 {
				limit = 1000
			}
		}
	}
	status := RunStatus(strings.ToLower(r.URL.Query().Get("status")))

	recs := s.store.List(limit, status)
	runs := make([]Run, 0, len(recs))
	for _, rec := range recs {
		runs = append(runs, rec.Run)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

// handleGetRun handles GET /v1/runs/{id}
func (s *HTTPServer) handleGetRun(w http.ResponseWriter, _ *http.Request, runID string) {
	rec, ok := s.store.Get(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	resp := map[string]any{"run": rec.Run}
	if p, err := s.Executor.Progress(runID); err == nil {
		resp["progress"] = p
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleStartRun handles POST /v1/runs/{id}:start
func (s *HTTPServer) handleStartRun(w http.ResponseWriter, _ *http.Request, runID string) {
	updated, err := s.Executor.Start(runID)
	if err != nil {
		s.writeExecutorError(w, err)
		return
	}
	logger.Info("run started (HTTP)", "run_id", runID)
	s.writeJSON(w, http.StatusOK, map[string]any{"run": updated.Run})
}

// handleStepRun handles POST /v1/runs/{id}:step?n=
func (s *HTTPServer) handleStepRun(w http.ResponseWriter, r *http.Request, runID string) {
	n := 1
	if nStr := r.URL.Query().Get("n"); nStr != "" {
		parsed, err := strconv.Atoi(nStr)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "n must be a positive integer")
			return
		}
		n = parsed
	}
	progress, err := s.Executor.Step(r.Context(), runID, n)
	if err != nil {
		s.writeExecutorError(w, err)
		return
	}
	rec, _ := s.store.Get(runID)
	s.writeJSON(w, http.StatusOK, map[string]any{"run": rec.Run, "progress": progress})
}

// handleStopRun handles POST /v1/runs/{id}:stop
func (s *HTTPServer) handleStopRun(w http.ResponseWriter, _ *http.Request, runID string) {
	updated, err := s.Executor.Stop(runID)
	if err != nil {
		s.writeExecutorError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"run": updated.Run})
}

// handleGetScene handles GET /v1/runs/{id}/scene
func (s *HTTPServer) handleGetScene(w http.ResponseWriter, _ *http.Request, runID string) {
	doc, err := s.Executor.Scene(runID)
	if err != nil {
		s.writeExecutorError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

// handleGetMetrics handles GET /v1/runs/{id}/metrics
func (s *HTTPServer) handleGetMetrics(w http.ResponseWriter, _ *http.Request, runID string) {
	summary, err := s.Executor.Metrics(runID)
	if err != nil {
		s.writeExecutorError(w, err)
		return
	}
	progress, _ := s.Executor.Progress(runID)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"metrics":  summary,
		"progress": progress,
	})
}

func (s *HTTPServer) writeExecutorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrRunNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrRunIDMissing), errors.Is(err, ErrInvalidInput):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrRunTerminal), errors.Is(err, ErrWrongMode), errors.Is(err, ErrRunNotStarted):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": message,
	})
}
