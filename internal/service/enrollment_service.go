package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/acadterm/gradebook-api/internal/models"
	appErrors "github.com/acadterm/gradebook-api/pkg/errors"
)

type enrollmentRepo interface {
	CreateWithTermCap(ctx context.Context, enrollment *models.Enrollment, term string, year, cap int) error
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	Delete(ctx context.Context, id string) error
	ListByStudentTerm(ctx context.Context, studentID, term string, year int) ([]models.EnrollmentDetail, error)
	ListByOffering(ctx context.Context, offeringID string) ([]models.EnrollmentDetail, error)
}

type enrollmentOfferingReader interface {
	FindByID(ctx context.Context, id string) (*models.OfferingDetail, error)
}

type enrollmentAuditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type enrollmentCacheInvalidator interface {
	InvalidateStudent(ctx context.Context, term string, year int, studentID string)
}

// EnrollRequest registers a student into an offering with a chosen
// lecturer.
type EnrollRequest struct {
	OfferingID       string `json:"offering_id" validate:"required"`
	ChosenLecturerID string `json:"chosen_lecturer_id" validate:"required"`
}

// EnrollmentService manages the enrollment ledger.
type EnrollmentService struct {
	enrollments enrollmentRepo
	offerings   enrollmentOfferingReader
	audits      enrollmentAuditWriter
	cache       enrollmentCacheInvalidator
	termCap     int
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(enrollments enrollmentRepo, offerings enrollmentOfferingReader, audits enrollmentAuditWriter, cache enrollmentCacheInvalidator, termCap int, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if termCap <= 0 {
		termCap = 5
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		enrollments: enrollments,
		offerings:   offerings,
		audits:      audits,
		cache:       cache,
		termCap:     termCap,
		validator:   validate,
		logger:      logger,
	}
}

// Enroll registers the student into the offering. The chosen
// lecturer must be assigned to the offering, the student must stay
// under the per-term cap, and a second enrollment in the same
// offering is rejected.
func (s *EnrollmentService) Enroll(ctx context.Context, studentID string, req EnrollRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	offering, err := s.offerings.FindByID(ctx, req.OfferingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}

	assigned := false
	for _, lecturerID := range offering.LecturerIDs {
		if lecturerID == req.ChosenLecturerID {
			assigned = true
			break
		}
	}
	if !assigned {
		return nil, appErrors.Clone(appErrors.ErrValidation, "chosen lecturer is not assigned to this offering")
	}

	enrollment := &models.Enrollment{
		StudentID:        studentID,
		OfferingID:       req.OfferingID,
		ChosenLecturerID: req.ChosenLecturerID,
	}
	if err := s.enrollments.CreateWithTermCap(ctx, enrollment, offering.Term, offering.Year, s.termCap); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	if err := s.audits.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &studentID,
		Action:     models.AuditActionEnroll,
		Resource:   "enrollment",
		ResourceID: &enrollment.ID,
	}); err != nil {
		s.logger.Warn("failed to record enroll audit log", zap.Error(err))
	}

	if s.cache != nil {
		s.cache.InvalidateStudent(ctx, offering.Term, offering.Year, studentID)
	}

	return enrollment, nil
}

// Unenroll removes the student's own enrollment. Marks already
// recorded for the student stay in the mark store.
func (s *EnrollmentService) Unenroll(ctx context.Context, studentID, enrollmentID string) error {
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	if enrollment.StudentID != studentID {
		return appErrors.Clone(appErrors.ErrForbidden, "enrollment does not belong to student")
	}

	offering, err := s.offerings.FindByID(ctx, enrollment.OfferingID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}

	if err := s.enrollments.Delete(ctx, enrollmentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete enrollment")
	}

	if err := s.audits.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &studentID,
		Action:     models.AuditActionUnenroll,
		Resource:   "enrollment",
		ResourceID: &enrollmentID,
	}); err != nil {
		s.logger.Warn("failed to record unenroll audit log", zap.Error(err))
	}

	if s.cache != nil && offering != nil {
		s.cache.InvalidateStudent(ctx, offering.Term, offering.Year, studentID)
	}

	return nil
}

// ListForStudent returns the student's enrollments for a term.
func (s *EnrollmentService) ListForStudent(ctx context.Context, studentID, term string, year int) ([]models.EnrollmentDetail, error) {
	enrollments, err := s.enrollments.ListByStudentTerm(ctx, studentID, strings.ToUpper(strings.TrimSpace(term)), year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, nil
}

// Roster returns the offering's enrolled students.
func (s *EnrollmentService) Roster(ctx context.Context, offeringID string) ([]models.EnrollmentDetail, error) {
	if _, err := s.offerings.FindByID(ctx, offeringID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}
	roster, err := s.enrollments.ListByOffering(ctx, offeringID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	return roster, nil
}
