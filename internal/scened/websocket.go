package scened

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/GoSim-25-26J-441/scene-synth/pkg/logger"
)

const wsWriteTimeout = 5 * time.Second

// handleWebsocket handles GET /v1/runs/{id}/ws. It sends the current progress,
// then one message per event, and closes after the final status.
func (s *HTTPServer) handleWebsocket(w http.ResponseWriter, r *http.Request, runID string) {
	events, cancel, err := s.Executor.Subscribe(runID)
	if err != nil {
		s.writeExecutorError(w, err)
		return
	}
	defer cancel()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// reader goroutine only notices the client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if p, err := s.Executor.Progress(runID); err == nil {
		if err := writeWS(conn, map[string]any{"type": "progress", "progress": p}); err != nil {
			return
		}
	}

	for {
		select {
		case <-gone:
			return
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"),
					time.Now().Add(time.Second))
				return
			}
			if err := writeWS(conn, ev); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					logger.Debug("websocket write failed", "run_id", runID, "error", err)
				}
				return
			}
		}
	}
}

func writeWS(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
