package api

import (
	"net/http"
	"time"

	"github.com/Project-Jira-Connector/Bot-Back-End/internal/api/respond"
)

// HealthHandler reports the aggregated service health.
type HealthHandler struct {
	isHealthy func() bool
}

// NewHealthHandler binds the service health function. A nil function
// reports unhealthy.
func NewHealthHandler(isHealthy func() bool) *HealthHandler {
	if isHealthy == nil {
		isHealthy = func() bool { return false }
	}
	return &HealthHandler{isHealthy: isHealthy}
}

// CheckHealth handles GET /api/health
// Always returns 200; body reports healthy/unhealthy.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	status := "unhealthy"
	if h.isHealthy() {
		status = "healthy"
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
