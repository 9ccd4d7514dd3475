package httpapi

import (
	"context"
	"net/http"
	"time"
)

// healthChecker is satisfied by the store client: a ping that reports
// whether the backing Redis connection is reachable.
type healthChecker interface {
	Ping(ctx context.Context) error
}

// handleHealth reports store connectivity, matching /app/health/'s
// contract: 200 when the store answers, 503 otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if checker, ok := any(s.Query.Store).(healthChecker); ok {
		if err := checker.Ping(ctx); err != nil {
			status = "store unreachable: " + err.Error()
			code = http.StatusServiceUnavailable
		}
	}

	s.writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
