// Package service ties face detection, matching and the attendance ledger
// into the enrollment and recognition workflows.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/descriptor"
	"github.com/kozaktomas/face-attendance/internal/embedder"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/imageutil"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"go.uber.org/zap"
)

var (
	// ErrNoFaceDetected is returned when detection fails or finds no face
	ErrNoFaceDetected = errors.New("no face detected")
	// ErrDuplicateOwner is returned when the enrollment email is already registered
	ErrDuplicateOwner = errors.New("owner already exists")
	// ErrOwnerNotFound is returned for operations on an unknown owner
	ErrOwnerNotFound = errors.New("owner not found")
	// ErrMissingFields is returned when a required input is empty
	ErrMissingFields = errors.New("missing required fields")
	// ErrInvalidImage is returned when the upload cannot be decoded as an image
	ErrInvalidImage = errors.New("invalid image")
)

// Detector finds faces in an image and embeds them.
type Detector interface {
	DetectAndEmbed(ctx context.Context, image []byte) ([]embedder.Face, error)
}

// Options configures a Service.
type Options struct {
	FaceCropDir  string // enrollment crops are written here when set
	MaxImageSize int    // uploads are scaled down to this size before detection
	Logger       *zap.Logger
}

// Service implements the attendance workflows.
type Service struct {
	owners      database.OwnerWriter
	departments database.DepartmentStore
	store       *descriptor.Store
	matcher     *facematch.Matcher
	ledger      *ledger.Ledger
	detector    Detector
	cropDir     string
	maxSize     int
	logger      *zap.Logger
}

// New creates a Service.
func New(backend *database.Backend, store *descriptor.Store, matcher *facematch.Matcher, l *ledger.Ledger, detector Detector, opts Options) *Service {
	s := &Service{
		owners:      backend.Owners,
		departments: backend.Departments,
		store:       store,
		matcher:     matcher,
		ledger:      l,
		detector:    detector,
		cropDir:     opts.FaceCropDir,
		maxSize:     opts.MaxImageSize,
		logger:      opts.Logger,
	}
	if s.maxSize <= 0 {
		s.maxSize = constants.MaxImageSize
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Descriptors returns the descriptor store.
func (s *Service) Descriptors() *descriptor.Store {
	return s.store
}

// Ledger returns the attendance ledger.
func (s *Service) Ledger() *ledger.Ledger {
	return s.ledger
}

// detect normalizes an upload and returns it with the faces found in it.
func (s *Service) detect(ctx context.Context, image []byte) ([]byte, []embedder.Face, error) {
	normalized, err := imageutil.Normalize(image, s.maxSize)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	faces, err := s.detector.DetectAndEmbed(ctx, normalized)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		s.logger.Warn("face detection failed", zap.Error(err))
		return nil, nil, fmt.Errorf("%w: %v", ErrNoFaceDetected, err)
	}
	if len(faces) == 0 {
		return nil, nil, ErrNoFaceDetected
	}
	return normalized, faces, nil
}

// EnrollRequest holds the data of a new owner.
type EnrollRequest struct {
	Name       string
	Email      string
	Department string
	Image      []byte
}

// EnrollResult describes a completed enrollment.
type EnrollResult struct {
	Owner         database.Owner `json:"owner"`
	DescriptorSeq uint64         `json:"-"`
	FacesDetected int            `json:"faces_detected"`
	CropPath      string         `json:"-"`
}

// Enroll registers a new owner with the first face found in the image.
// The owner is only created once a face was detected. If the descriptor
// cannot be stored the owner is removed again.
func (s *Service) Enroll(ctx context.Context, req EnrollRequest) (*EnrollResult, error) {
	name := database.CleanName(req.Name)
	email := strings.TrimSpace(req.Email)
	department := database.CleanName(req.Department)
	if name == "" || email == "" || department == "" || len(req.Image) == 0 {
		return nil, ErrMissingFields
	}

	existing, err := database.WithRetryValue(ctx, func() (*database.Owner, error) {
		return s.owners.GetOwnerByEmail(ctx, email)
	})
	if err != nil {
		return nil, fmt.Errorf("look up owner: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateOwner, email)
	}

	image, faces, err := s.detect(ctx, req.Image)
	if err != nil {
		return nil, err
	}
	face := faces[0]
	if err := s.store.Check(face.Embedding); err != nil {
		return nil, err
	}

	owner := &database.Owner{Name: name, Email: email, Department: department}
	if err := database.WithRetry(ctx, func() error { return s.owners.CreateOwner(ctx, owner) }); err != nil {
		if errors.Is(err, database.ErrDuplicateEmail) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateOwner, email)
		}
		return nil, fmt.Errorf("create owner: %w", err)
	}

	if err := database.WithRetry(ctx, func() error { return s.departments.UpsertDepartment(ctx, department) }); err != nil {
		s.logger.Warn("failed to record department", zap.String("department", department), zap.Error(err))
	}

	entry, err := s.store.Append(owner.ID, face.Embedding)
	if err != nil {
		s.rollbackOwner(ctx, owner.ID)
		if errors.Is(err, descriptor.ErrInvalidDescriptor) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: store descriptor: %w", database.ErrStorageUnavailable, err)
	}

	result := &EnrollResult{Owner: *owner, DescriptorSeq: entry.Seq, FacesDetected: len(faces)}
	result.CropPath = s.saveCrop(owner.ID, entry.Seq, image, face.BBox)

	s.logger.Info("owner enrolled",
		zap.String("owner_id", owner.ID), zap.String("department", department),
		zap.Int("faces_detected", len(faces)), zap.Int("descriptors", s.store.Len()))
	return result, nil
}

func (s *Service) rollbackOwner(ctx context.Context, id string) {
	if _, err := s.owners.DeleteOwner(context.WithoutCancel(ctx), id); err != nil {
		s.logger.Error("failed to remove owner after descriptor failure", zap.String("owner_id", id), zap.Error(err))
	}
}

// saveCrop writes the face crop of an enrollment. Failures are logged only.
func (s *Service) saveCrop(ownerID string, seq uint64, image []byte, bbox []float64) string {
	if s.cropDir == "" || len(bbox) == 0 {
		return ""
	}
	crop, err := imageutil.CropJPEG(image, bbox, constants.FaceCropPadding)
	if err != nil {
		s.logger.Warn("failed to crop face", zap.String("owner_id", ownerID), zap.Error(err))
		return ""
	}
	if err := os.MkdirAll(s.cropDir, 0o755); err != nil {
		s.logger.Warn("failed to create face crop directory", zap.String("dir", s.cropDir), zap.Error(err))
		return ""
	}
	path := filepath.Join(s.cropDir, fmt.Sprintf("%s_%d.jpg", ownerID, seq))
	if err := os.WriteFile(path, crop, 0o644); err != nil {
		s.logger.Warn("failed to write face crop", zap.String("path", path), zap.Error(err))
		return ""
	}
	return path
}

// AddFaceResult describes an additional enrolled face.
type AddFaceResult struct {
	OwnerID       string `json:"owner_id"`
	Descriptors   int    `json:"descriptors"`
	FacesDetected int    `json:"faces_detected"`
}

// AddFace enrolls another face of an existing owner.
func (s *Service) AddFace(ctx context.Context, ownerID string, image []byte) (*AddFaceResult, error) {
	if ownerID == "" || len(image) == 0 {
		return nil, ErrMissingFields
	}

	owner, err := database.WithRetryValue(ctx, func() (*database.Owner, error) {
		return s.owners.GetOwner(ctx, ownerID)
	})
	if err != nil {
		return nil, fmt.Errorf("get owner: %w", err)
	}
	if owner == nil {
		return nil, ErrOwnerNotFound
	}

	normalized, faces, err := s.detect(ctx, image)
	if err != nil {
		return nil, err
	}

	entry, err := s.store.Append(owner.ID, faces[0].Embedding)
	if err != nil {
		if errors.Is(err, descriptor.ErrInvalidDescriptor) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: store descriptor: %w", database.ErrStorageUnavailable, err)
	}
	s.saveCrop(owner.ID, entry.Seq, normalized, faces[0].BBox)

	count := 0
	for _, e := range s.store.Snapshot().Entries {
		if e.OwnerID == owner.ID {
			count++
		}
	}
	return &AddFaceResult{OwnerID: owner.ID, Descriptors: count, FacesDetected: len(faces)}, nil
}

// Recognition is a successful recognition with its attendance mark.
type Recognition struct {
	Owner        database.Owner `json:"user"`
	AttendanceID string         `json:"attendance_id"`
	Created      bool           `json:"created"`
	Date         string         `json:"date"`
	Period       int            `json:"period"`
	Subject      string         `json:"subject"`
	Timestamp    string         `json:"timestamp"`
	Distance     float64        `json:"distance"`
}

// Recognize identifies the first face in the image and marks the owner
// present for period and subject today.
func (s *Service) Recognize(ctx context.Context, image []byte, period int, subject string) (*Recognition, error) {
	if len(image) == 0 || strings.TrimSpace(subject) == "" {
		return nil, ErrMissingFields
	}
	if err := ledger.ValidatePeriod(period); err != nil {
		return nil, err
	}
	if s.store.Len() == 0 {
		return nil, facematch.ErrNoMatch
	}

	_, faces, err := s.detect(ctx, image)
	if err != nil {
		return nil, err
	}

	match, err := s.matcher.Match(ctx, faces[0].Embedding, 0)
	if err != nil {
		if errors.Is(err, facematch.ErrNoMatch) {
			s.logger.Info("face not recognized", zap.Int("faces_detected", len(faces)))
		}
		return nil, err
	}

	now := s.ledger.Now()
	mark, err := s.ledger.MarkAt(ctx, match.Owner.ID, now, period, subject)
	if err != nil {
		return nil, err
	}

	s.logger.Info("attendance recorded",
		zap.String("owner_id", match.Owner.ID), zap.Float64("distance", match.Distance),
		zap.Int("period", period), zap.Bool("created", mark.Created))

	return &Recognition{
		Owner:        match.Owner,
		AttendanceID: mark.AttendanceID,
		Created:      mark.Created,
		Date:         mark.Date,
		Period:       period,
		Subject:      strings.TrimSpace(subject),
		Timestamp:    now.Format(time.RFC3339),
		Distance:     match.Distance,
	}, nil
}

// DeleteOwner removes an owner. Their descriptors stay in the store until a
// recognition or a prune finds them orphaned; attendance history is kept.
func (s *Service) DeleteOwner(ctx context.Context, id string) error {
	deleted, err := database.WithRetryValue(ctx, func() (bool, error) {
		return s.owners.DeleteOwner(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete owner: %w", err)
	}
	if !deleted {
		return ErrOwnerNotFound
	}
	s.logger.Info("owner deleted", zap.String("owner_id", id))
	return nil
}

// ListOwners returns owners, optionally filtered by department.
func (s *Service) ListOwners(ctx context.Context, department string) ([]database.Owner, error) {
	filter := database.OwnerFilter{DepartmentKey: database.DepartmentFilterKey(department)}
	owners, err := database.WithRetryValue(ctx, func() ([]database.Owner, error) {
		return s.owners.ListOwners(ctx, filter)
	})
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	return owners, nil
}

// ListDepartments returns the known departments.
func (s *Service) ListDepartments(ctx context.Context) ([]database.Department, error) {
	departments, err := database.WithRetryValue(ctx, func() ([]database.Department, error) {
		return s.departments.ListDepartments(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return departments, nil
}

// AttendanceByDate returns the attendance of a date; period 0 means all periods.
func (s *Service) AttendanceByDate(ctx context.Context, date string, period int) ([]database.AttendanceView, error) {
	if date == "" {
		date = s.ledger.Today()
	}
	return s.ledger.ByDate(ctx, date, period)
}

// MonthlyReport returns the attendance report of month (YYYY-MM).
func (s *Service) MonthlyReport(ctx context.Context, month, department string) (*ledger.Report, error) {
	return s.ledger.MonthlyReport(ctx, month, department)
}
