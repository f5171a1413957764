package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/service"
	"go.uber.org/zap"
)

// OwnersHandler handles owner and department listings
type OwnersHandler struct {
	svc    *service.Service
	logger *zap.Logger
}

// NewOwnersHandler creates a new owners handler
func NewOwnersHandler(svc *service.Service, logger *zap.Logger) *OwnersHandler {
	return &OwnersHandler{svc: svc, logger: logger}
}

// List returns enrolled owners, filtered by ?department=
func (h *OwnersHandler) List(w http.ResponseWriter, r *http.Request) {
	owners, err := h.svc.ListOwners(r.Context(), r.URL.Query().Get("department"))
	if err != nil {
		respondServiceError(w, h.logger, "list owners", err)
		return
	}
	if owners == nil {
		owners = []database.Owner{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"users": owners})
}

// Delete removes an owner
func (h *OwnersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteOwner(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, h.logger, "delete owner", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Departments returns the known departments
func (h *OwnersHandler) Departments(w http.ResponseWriter, r *http.Request) {
	departments, err := h.svc.ListDepartments(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, "list departments", err)
		return
	}
	names := make([]string, len(departments))
	for i, d := range departments {
		names[i] = d.Name
	}
	respondJSON(w, http.StatusOK, map[string]any{"departments": names})
}
