package handlers

import (
	"net/http"
	"slices"
	"strconv"

	"github.com/kozaktomas/face-attendance/internal/config"
)

// SubjectsHandler serves the subject catalog
type SubjectsHandler struct {
	catalog config.SubjectCatalog
}

// NewSubjectsHandler creates a new subjects handler
func NewSubjectsHandler(catalog config.SubjectCatalog) *SubjectsHandler {
	return &SubjectsHandler{catalog: catalog}
}

// PeriodSubjects lists the subjects of one period
type PeriodSubjects struct {
	Period   int      `json:"period"`
	Subjects []string `json:"subjects"`
}

// List returns the subjects per period, or of one ?period
func (h *SubjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	if p := r.URL.Query().Get("period"); p != "" {
		period, err := strconv.Atoi(p)
		if err != nil {
			respondError(w, http.StatusBadRequest, "period must be a number")
			return
		}
		subjects := h.catalog.SubjectsFor(period)
		if subjects == nil {
			respondError(w, http.StatusNotFound, "unknown period")
			return
		}
		respondJSON(w, http.StatusOK, PeriodSubjects{Period: period, Subjects: subjects})
		return
	}

	periods := make([]int, 0, len(h.catalog.Periods))
	for p := range h.catalog.Periods {
		periods = append(periods, p)
	}
	slices.Sort(periods)

	out := make([]PeriodSubjects, len(periods))
	for i, p := range periods {
		out[i] = PeriodSubjects{Period: p, Subjects: h.catalog.Periods[p]}
	}
	respondJSON(w, http.StatusOK, map[string]any{"periods": out})
}
