package api

import (
	"sync"
	"time"

	"github.com/preventia/preventia-core/internal/orchestrator"
)

// RunEvent is one websocket message pushed to /scrapers/runs/ws
// subscribers: a run starting, finishing, or failing.
type RunEvent struct {
	Type     string              `json:"type"` // "started" | "finished" | "failed"
	SourceID int64               `json:"source_id"`
	Report   *orchestrator.RunReport `json:"report,omitempty"`
	Error    string              `json:"error,omitempty"`
	At       time.Time           `json:"at"`
}

// runTracker fans out RunEvents to every connected websocket client,
// generalized from the teacher's wsClients map + broadcast-to-channel
// loop (cmd/noisefs-webui/main.go's broadcastAnnouncement).
type runTracker struct {
	mu      sync.RWMutex
	clients map[chan RunEvent]struct{}
}

func newRunTracker() *runTracker {
	return &runTracker{clients: map[chan RunEvent]struct{}{}}
}

func (t *runTracker) subscribe() chan RunEvent {
	ch := make(chan RunEvent, 16)
	t.mu.Lock()
	t.clients[ch] = struct{}{}
	t.mu.Unlock()
	return ch
}

func (t *runTracker) unsubscribe(ch chan RunEvent) {
	t.mu.Lock()
	delete(t.clients, ch)
	t.mu.Unlock()
	close(ch)
}

func (t *runTracker) broadcast(ev RunEvent) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for ch := range t.clients {
		select {
		case ch <- ev:
		default:
			// slow client, drop rather than block the run
		}
	}
}
