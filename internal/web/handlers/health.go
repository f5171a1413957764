package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/service"
)

// HealthHandler reports liveness
type HealthHandler struct {
	svc     *service.Service
	backend string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(svc *service.Service, backend string) *HealthHandler {
	return &HealthHandler{svc: svc, backend: backend}
}

// HealthResponse is the health check payload
type HealthResponse struct {
	Status      string `json:"status"`
	Backend     string `json:"backend,omitempty"`
	Descriptors int    `json:"descriptors"`
	Dim         int    `json:"dim"`
}

// Get handles the health check endpoint.
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	store := h.svc.Descriptors()
	respondJSON(w, http.StatusOK, HealthResponse{
		Status:      "ok",
		Backend:     h.backend,
		Descriptors: store.Len(),
		Dim:         store.Dim(),
	})
}
