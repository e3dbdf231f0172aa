// Package api implements the REST surface spec.md §6 names: a thin
// gorilla/mux router over the Analytics, Source Registry, Compliance and
// Scraper Orchestrator layers, plus a websocket feed of run
// started/finished/failed events. Generalized from the teacher's
// cmd/noisefs-webui/main.go (mux routing, {success,data,error} JSON
// envelope, websocket broadcast-to-clients loop).
package api

import (
	"encoding/json"
	"net/http"
)

// Envelope is spec.md §6's required response shape:
// {status, data?, meta?, errors?[]}.
type Envelope struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Meta   interface{} `json:"meta,omitempty"`
	Errors []string    `json:"errors,omitempty"`
}

func writeData(w http.ResponseWriter, data interface{}, meta interface{}) {
	writeJSON(w, http.StatusOK, Envelope{Status: "success", Data: data, Meta: meta})
}

func writeError(w http.ResponseWriter, status int, messages ...string) {
	writeJSON(w, status, Envelope{Status: "error", Errors: messages})
}

func writeJSON(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}
