package web

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/opencvs/cvsimport/internal/progress"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local monitor only, no cross-origin concern
	},
}

// pollInterval is how often the handler re-checks a run that has no live
// reporter registered, so a client watching a run driven by a different
// process still sees the store's state advance.
const pollInterval = 2 * time.Second

// handleWebSocket streams progress for one run. If a live progress.Reporter
// is registered for the run (it is being driven by this process), updates
// stream as they happen; otherwise the handler polls the store and closes
// once the run's terminal status is observed.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Printf("Warning: failed to close WebSocket connection: %v", err)
		}
	}()

	if reporter, ok := s.reporters.Get(runID); ok {
		s.streamLive(conn, runID, reporter)
		return
	}
	s.streamPolled(conn, runID)
}

func (s *Server) streamLive(conn *websocket.Conn, runID string, reporter *progress.Reporter) {
	unsubscribe := reporter.Subscribe(func(status progress.Status) {
		s.sendJSON(conn, ProgressEvent{Type: "progress", Data: ProgressData{
			RunID:      runID,
			Current:    status.Current,
			Total:      status.Total,
			Percentage: status.Percentage,
			Operation:  status.Operation,
		}})
	})
	defer unsubscribe()

	// Block until the client disconnects; Subscribe's callback does the
	// actual pushing.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) streamPolled(conn *websocket.Conn, runID string) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		run, err := s.store.LoadRun(runID)
		if err != nil {
			s.sendJSON(conn, ProgressEvent{Type: "error", Data: ProgressData{RunID: runID}})
			return
		}
		s.sendJSON(conn, ProgressEvent{Type: "progress", Data: ProgressData{
			RunID:     runID,
			Operation: run.Status,
		}})
		if run.Status == "completed" || run.Status == "failed" {
			return
		}
		<-ticker.C
	}
}

func (s *Server) sendJSON(conn *websocket.Conn, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("JSON marshal error: %v", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("WebSocket write error: %v", err)
	}
}
