package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/featreg/pkg/metrics"
)

// HealthHandler reports process liveness.
type HealthHandler struct {
	now func() time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(now func() time.Time) *HealthHandler {
	return &HealthHandler{now: now}
}

type livenessResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// HandleHealth handles GET /healthz requests.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeError(w, r, NewKind("healthz", ErrMethodNotAllowed, "%s not allowed", r.Method))
		return
	}
	writeJSON(w, http.StatusOK, livenessResponse{Status: "ok", Timestamp: h.now()})
}

// HandleMetrics serves the Prometheus exposition of the registry currently
// installed by metrics.Configure.
func HandleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}
