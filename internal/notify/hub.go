// Package notify broadcasts job progress to WebSocket clients watching
// a specific job_id, grounded on the polling broadcaster pattern: a
// background poller reads job state at an interval and fans it out to
// every connection registered for that job, pruning any connection
// whose write fails.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mirajehossain/tenantmigrator/internal/logger"
	"github.com/mirajehossain/tenantmigrator/internal/query"
)

// Message is the envelope sent to connected clients.
type Message struct {
	Type string `json:"type"` // "progress_update" | "job_complete"
	Data any    `json:"data"`
}

// Hub tracks active WebSocket connections per job_id.
type Hub struct {
	mu          sync.Mutex
	connections map[string]map[*websocket.Conn]struct{}
	log         *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{connections: make(map[string]map[*websocket.Conn]struct{}), log: log}
}

// Connect registers conn as a watcher of jobID.
func (h *Hub) Connect(jobID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.connections[jobID] == nil {
		h.connections[jobID] = make(map[*websocket.Conn]struct{})
	}
	h.connections[jobID][conn] = struct{}{}
	h.log.Info("websocket connected", map[string]any{"job_id": jobID})
}

// Disconnect removes conn from jobID's watcher set.
func (h *Hub) Disconnect(jobID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.connections[jobID]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(h.connections, jobID)
		}
	}
	h.log.Info("websocket disconnected", map[string]any{"job_id": jobID})
}

// Broadcast sends msg to every connection watching jobID, pruning any
// connection whose write fails.
func (h *Hub) Broadcast(jobID string, msg Message) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.connections[jobID]))
	for c := range h.connections[jobID] {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	var dead []*websocket.Conn
	for _, c := range conns {
		if err := c.WriteJSON(msg); err != nil {
			h.log.Error("error sending to websocket", map[string]any{"job_id": jobID, "error": err.Error()})
			dead = append(dead, c)
		}
	}
	for _, c := range dead {
		h.Disconnect(jobID, c)
	}
}

// MonitorJobProgress polls query for jobID's status every interval and
// broadcasts progress_update events, finishing with a job_complete
// event once the job reaches a terminal status. It returns when the
// job is done, not found, or ctx is cancelled.
func (h *Hub) MonitorJobProgress(ctx context.Context, q *query.Interface, jobID string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		view, err := q.GetJob(ctx, jobID)
		if err != nil {
			h.log.Warn("monitor: job not found, stopping", map[string]any{"job_id": jobID})
			return
		}

		h.Broadcast(jobID, Message{Type: "progress_update", Data: view})

		if view.Status.Terminal() {
			h.Broadcast(jobID, Message{Type: "job_complete", Data: view})
			h.log.Info("monitor: job completed", map[string]any{"job_id": jobID, "status": string(view.Status)})
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
