package api

import (
	"net/http"
	"time"

	"github.com/pitwall/lt-relay/internal/config"
)

// HealthStatus is the response body of /api/v1/health.
type HealthStatus struct {
	Status            string `json:"status"`
	Mode              string `json:"mode"`
	UpstreamConnected bool   `json:"upstream_connected"`
	Subscribers       int    `json:"subscribers"`
	FramesProcessed   int64  `json:"frames_processed"`
	UptimeSeconds     int64  `json:"uptime_seconds"`
	Version           string `json:"version"`
}

// HealthHandler reports pipeline liveness. In LIVE mode the service is
// degraded while the upstream connection is down; in REPLAY mode the
// upstream is local, so the service is always healthy.
type HealthHandler struct {
	live    LiveSource
	subs    SubscriberSource
	version string
	started time.Time
}

func NewHealthHandler(live LiveSource, subs SubscriberSource, version string) *HealthHandler {
	return &HealthHandler{
		live:    live,
		subs:    subs,
		version: version,
		started: time.Now(),
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	connected := h.live.Connected()
	if h.live.Mode() == config.ModeLive && !connected {
		status = "degraded"
	}
	WriteJSON(w, http.StatusOK, HealthStatus{
		Status:            status,
		Mode:              h.live.Mode(),
		UpstreamConnected: connected,
		Subscribers:       h.subs.Count(),
		FramesProcessed:   h.live.FramesProcessed(),
		UptimeSeconds:     int64(time.Since(h.started).Seconds()),
		Version:           h.version,
	})
}
