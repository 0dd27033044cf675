package scened

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/GoSim-25-26J-441/scene-synth/pkg/logger"
)

// NotificationPayload is posted to a run's callback URL when it finishes
type NotificationPayload struct {
	RunID           string    `json:"run_id"`
	Status          RunStatus `json:"status"`
	Reason          string    `json:"reason,omitempty"`
	Error           string    `json:"error,omitempty"`
	Iterations      int       `json:"iterations"`
	Cost            float64   `json:"cost"`
	Objects         int       `json:"objects"`
	Lights          int       `json:"lights"`
	CreatedAtUnixMs int64     `json:"created_at_unix_ms"`
	StartedAtUnixMs int64     `json:"started_at_unix_ms,omitempty"`
	EndedAtUnixMs   int64     `json:"ended_at_unix_ms,omitempty"`
	Timestamp       int64     `json:"timestamp"`
}

// Notifier delivers completion callbacks
type Notifier struct {
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
}

// NewNotifier creates a notifier with three retries and exponential backoff
func NewNotifier() *Notifier {
	return &Notifier{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		maxRetries: 3,
		baseDelay:  1 * time.Second,
	}
}

// Notify posts the payload asynchronously. The URL may contain {run_id}.
func (n *Notifier) Notify(callbackURL, callbackSecret string, payload NotificationPayload) {
	if callbackURL == "" {
		return
	}
	finalURL := strings.ReplaceAll(callbackURL, "{run_id}", payload.RunID)
	payload.Timestamp = time.Now().UTC().UnixMilli()
	go n.send(finalURL, callbackSecret, payload)
}

func (n *Notifier) send(callbackURL, callbackSecret string, payload NotificationPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to marshal notification payload", "run_id", payload.RunID, "error", err)
		return
	}

	var lastErr error
	for attempt := 0; attempt <= n.maxRetries; attempt++ {
		if attempt > 0 {
			delay := n.baseDelay * time.Duration(1<<uint(attempt-1))
			logger.Debug("retrying notification", "run_id", payload.RunID, "attempt", attempt, "delay", delay)
			time.Sleep(delay)
		}

		req, err := http.NewRequest(http.MethodPost, callbackURL, bytes.NewReader(body))
		if err != nil {
			lastErr = fmt.Errorf("failed to create request: %w", err)
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "scene-synth/1.0")
		if callbackSecret != "" {
			req.Header.Set("X-Scene-Callback-Secret", callbackSecret)
		}

		resp, err := n.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("HTTP request failed: %w", err)
			logger.Warn("notification attempt failed", "run_id", payload.RunID, "attempt", attempt+1, "error", err)
			continue
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			logger.Info("notification sent", "run_id", payload.RunID, "status", payload.Status, "status_code", resp.StatusCode)
			return
		}
		lastErr = fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		logger.Warn("notification returned non-2xx status", "run_id", payload.RunID, "status_code", resp.StatusCode, "attempt", attempt+1)
	}

	logger.Error("failed to send notification after retries",
		"run_id", payload.RunID,
		"max_retries", n.maxRetries,
		"last_error", lastErr)
}
