package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/imageutil"
	"github.com/kozaktomas/face-attendance/internal/service"
	"go.uber.org/zap"
)

// FacesHandler handles enrollment and recognition
type FacesHandler struct {
	svc    *service.Service
	logger *zap.Logger
}

// NewFacesHandler creates a new faces handler
func NewFacesHandler(svc *service.Service, logger *zap.Logger) *FacesHandler {
	return &FacesHandler{svc: svc, logger: logger}
}

// RegisterRequest is the enrollment payload. Role is accepted as an alias of
// department for older capture clients.
type RegisterRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Department string `json:"department"`
	Role       string `json:"role"`
	Image      string `json:"image"` // data URL or base64
}

// RegisterResponse is returned after a successful enrollment
type RegisterResponse struct {
	Message       string `json:"message"`
	UserID        string `json:"user_id"`
	FacesDetected int    `json:"faces_detected"`
}

// Register enrolls a new owner from a photo
func (h *FacesHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	department := req.Department
	if department == "" {
		department = req.Role
	}
	if req.Name == "" || req.Email == "" || department == "" || req.Image == "" {
		respondError(w, http.StatusBadRequest, service.ErrMissingFields.Error())
		return
	}

	image, err := imageutil.DecodeDataURL(req.Image)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid image: "+err.Error())
		return
	}

	res, err := h.svc.Enroll(r.Context(), service.EnrollRequest{
		Name:       req.Name,
		Email:      req.Email,
		Department: department,
		Image:      image,
	})
	if err != nil {
		h.logger.Info("enrollment rejected", zap.String("email", sanitizeForLog(req.Email)), zap.Error(err))
		respondServiceError(w, h.logger, "enroll", err)
		return
	}

	respondJSON(w, http.StatusCreated, RegisterResponse{
		Message:       "User registered successfully",
		UserID:        res.Owner.ID,
		FacesDetected: res.FacesDetected,
	})
}

// AddFaceRequest carries an additional photo of an enrolled owner
type AddFaceRequest struct {
	Image string `json:"image"`
}

// AddFace enrolls another photo of an existing owner
func (h *FacesHandler) AddFace(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req AddFaceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	image, err := imageutil.DecodeDataURL(req.Image)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid image: "+err.Error())
		return
	}

	res, err := h.svc.AddFace(r.Context(), id, image)
	if err != nil {
		respondServiceError(w, h.logger, "add face", err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

// RecognizeRequest is the recognition payload
type RecognizeRequest struct {
	Image   string `json:"image"`
	Period  int    `json:"period"`
	Subject string `json:"subject"`
}

// RecognizeFailure is returned when no owner could be identified
type RecognizeFailure struct {
	Recognized bool   `json:"recognized"`
	Reason     string `json:"reason"`
}

// Reasons reported in RecognizeFailure
const (
	reasonNoFace  = "no_face_detected"
	reasonNoMatch = "no_match"
)

type recognizeResponse struct {
	Recognized bool `json:"recognized"`
	*service.Recognition
}

// Recognize identifies the person in a photo and marks their attendance
func (h *FacesHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	var req RecognizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Image == "" {
		respondError(w, http.StatusBadRequest, "no image provided")
		return
	}

	image, err := imageutil.DecodeDataURL(req.Image)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid image: "+err.Error())
		return
	}

	rec, err := h.svc.Recognize(r.Context(), image, req.Period, req.Subject)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, recognizeResponse{Recognized: true, Recognition: rec})
	case errors.Is(err, service.ErrNoFaceDetected):
		respondJSON(w, http.StatusNotFound, RecognizeFailure{Reason: reasonNoFace})
	case errors.Is(err, facematch.ErrNoMatch):
		respondJSON(w, http.StatusNotFound, RecognizeFailure{Reason: reasonNoMatch})
	default:
		respondServiceError(w, h.logger, "recognize", err)
	}
}
