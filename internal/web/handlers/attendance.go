package handlers

import (
	"net/http"
	"strconv"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/service"
	"go.uber.org/zap"
)

// AttendanceHandler handles attendance listings and reports
type AttendanceHandler struct {
	svc    *service.Service
	logger *zap.Logger
}

// NewAttendanceHandler creates a new attendance handler
func NewAttendanceHandler(svc *service.Service, logger *zap.Logger) *AttendanceHandler {
	return &AttendanceHandler{svc: svc, logger: logger}
}

// ByDate returns the attendance of ?date (default today), optionally for one ?period
func (h *AttendanceHandler) ByDate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	period := 0
	if p := q.Get("period"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			respondError(w, http.StatusBadRequest, "period must be a number")
			return
		}
		period = n
	}

	records, err := h.svc.AttendanceByDate(r.Context(), q.Get("date"), period)
	if err != nil {
		respondServiceError(w, h.logger, "list attendance", err)
		return
	}
	if records == nil {
		records = []database.AttendanceView{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"attendance": records})
}

// Monthly returns the report of ?month (YYYY-MM), optionally for one ?department
func (h *AttendanceHandler) Monthly(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	month := q.Get("month")
	if month == "" {
		respondError(w, http.StatusBadRequest, "month is required (YYYY-MM)")
		return
	}

	report, err := h.svc.MonthlyReport(r.Context(), month, q.Get("department"))
	if err != nil {
		respondServiceError(w, h.logger, "monthly report", err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}
