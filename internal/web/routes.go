package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.svc, s.backend)
	facesHandler := handlers.NewFacesHandler(s.svc, s.logger)
	ownersHandler := handlers.NewOwnersHandler(s.svc, s.logger)
	attendanceHandler := handlers.NewAttendanceHandler(s.svc, s.logger)
	subjectsHandler := handlers.NewSubjectsHandler(s.config.Subjects)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.Get)

		// Enrollment and recognition
		r.Post("/register", facesHandler.Register)
		r.Post("/recognize", facesHandler.Recognize)
		r.Post("/owners/{id}/faces", facesHandler.AddFace)
		r.Delete("/owners/{id}", ownersHandler.Delete)

		// Listings
		r.Get("/users", ownersHandler.List)
		r.Get("/departments", ownersHandler.Departments)
		r.Get("/subjects", subjectsHandler.List)

		// Attendance
		r.Get("/attendance", attendanceHandler.ByDate)
		r.Get("/attendance/monthly", attendanceHandler.Monthly)
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}` + "\n"))
	})
}
