package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// HealthCheck is one dependency probed by the health endpoint.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Service    string            `json:"service"`
	Backend    string            `json:"storage_backend"`
	Components map[string]string `json:"components"`
}

type HealthHandler struct {
	backend string
	checks  []HealthCheck
	timeout time.Duration
	logger  *slog.Logger
}

func NewHealthHandler(backend string, logger *slog.Logger, checks ...HealthCheck) *HealthHandler {
	return &HealthHandler{
		backend: backend,
		checks:  checks,
		timeout: 2 * time.Second,
		logger:  logger,
	}
}

// ServeHTTP pings every check and reports 503 if any of them fails.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeMessage(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	response := HealthResponse{
		Status:     "healthy",
		Timestamp:  time.Now().UTC(),
		Service:    "campaign-engine",
		Backend:    h.backend,
		Components: make(map[string]string, len(h.checks)),
	}
	for _, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			h.logger.Warn("Health check failed", "component", check.Name, "error", err)
			response.Components[check.Name] = "unhealthy"
			response.Status = "degraded"
			continue
		}
		response.Components[check.Name] = "healthy"
	}

	status := http.StatusOK
	if response.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, h.logger, status, response)
}
