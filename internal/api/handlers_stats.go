package api

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether the session database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type StatsHandler struct {
	conn  Connection
	store Pinger
}

func NewStatsHandler(conn Connection, store Pinger) *StatsHandler {
	return &StatsHandler{conn: conn, store: store}
}

func (h *StatsHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":  "degraded",
				"service": "wabridge",
				"error":   err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "wabridge",
	})
}

// Status is the public, unauthenticated connection summary.
func (h *StatsHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.conn.Status())
}
