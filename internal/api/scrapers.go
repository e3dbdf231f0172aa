package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

type runScraperRequest struct {
	MaxArticles *int `json:"max_articles,omitempty"`
}

// handleRunScraper implements spec.md §6's /scrapers/run/{source_id}:
// kicks run_source in the background and streams its outcome to
// /scrapers/runs/ws subscribers, since a full ingestion run can exceed
// typical HTTP client timeouts.
func (s *Server) handleRunScraper(w http.ResponseWriter, r *http.Request) {
	sourceID, err := strconv.ParseInt(mux.Vars(r)["source_id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid source_id")
		return
	}

	var req runScraperRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
	}

	s.runs.broadcast(RunEvent{Type: "started", SourceID: sourceID, At: time.Now().UTC()})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		report, err := s.orchestrator.RunSource(ctx, sourceID, req.MaxArticles)
		if err != nil {
			s.log.WithField("source_id", sourceID).Warnf("run_source failed: %v", err)
			s.runs.broadcast(RunEvent{Type: "failed", SourceID: sourceID, Error: err.Error(), At: time.Now().UTC()})
			return
		}
		s.runs.broadcast(RunEvent{Type: "finished", SourceID: sourceID, Report: report, At: time.Now().UTC()})
	}()

	writeData(w, map[string]interface{}{"source_id": sourceID, "status": "started"}, nil)
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleRunStream implements the live run-status feed, generalized from
// the teacher's handleWebSocket (cmd/noisefs-webui/main.go): upgrade, fan
// out broadcast messages to a per-client buffered channel, drain incoming
// frames only to detect disconnects.
func (s *Server) handleRunStream(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ch := s.runs.subscribe()
	defer s.runs.unsubscribe(ch)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
