package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse is the JSON body of the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Store     string `json:"store"`
	Timestamp string `json:"timestamp"`
}

// HealthChecker is the health dependency; the Qdrant store implements
// it via its Health method.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// NewHealthHandler creates the /health endpoint handler. It checks
// chunk store connectivity under a 3-second timeout.
func NewHealthHandler(store HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		err := store.Health(ctx)

		response := HealthResponse{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
		w.Header().Set("Content-Type", "application/json")

		if err != nil {
			response.Status = "unhealthy"
			response.Store = "disconnected"
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(response)
			return
		}

		response.Status = "healthy"
		response.Store = "connected"
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(response)
	}
}
