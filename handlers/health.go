package handlers

import (
	"net/http"
	"time"

	"github.com/clearwatch/clearwatch/app"
)

// HealthCheck returns a simple health check handler
func HealthCheck(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

// StatusResponse describes the service to callers of the root endpoint.
type StatusResponse struct {
	Service   string `json:"service"`
	Status    string `json:"status"`
	UptimeSec int64  `json:"uptime_sec"`
	Timestamp string `json:"timestamp"`
	Analyst   string `json:"analyst"`
}

// StatusHandler handles GET / with service identity and analyst readiness.
func StatusHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		analyst := "unavailable"
		if deps.Analyst.Available(r.Context()) {
			analyst = "available"
		}
		respondJSON(w, http.StatusOK, StatusResponse{
			Service:   "clearwatch",
			Status:    "running",
			UptimeSec: int64(deps.Uptime().Seconds()),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Analyst:   analyst,
		})
	}
}
