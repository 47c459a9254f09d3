package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/acadterm/gradebook-api/internal/models"
	appErrors "github.com/acadterm/gradebook-api/pkg/errors"
)

type markRepo interface {
	BulkUpsert(ctx context.Context, marks []models.Mark) error
	ListByOffering(ctx context.Context, offeringID string) ([]models.Mark, error)
	ListByStudentOffering(ctx context.Context, studentID, offeringID string) ([]models.Mark, error)
}

type markOfferingReader interface {
	FindByID(ctx context.Context, id string) (*models.OfferingDetail, error)
	IsLecturerAssigned(ctx context.Context, offeringID, lecturerID string) (bool, error)
}

type markAuditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// PostMarksRequest is a batch of mark entries. Each entry names its
// own offering.
type PostMarksRequest struct {
	Entries []models.MarkEntry `json:"entries" validate:"required,min=1,dive"`
}

// MarkEntryFailure explains why one entry was rejected.
type MarkEntryFailure struct {
	OfferingID   string `json:"offering_id"`
	StudentID    string `json:"student_id"`
	AssessmentID string `json:"assessment_id"`
	Reason       string `json:"reason"`
}

// PostMarksResult summarises a committed batch.
type PostMarksResult struct {
	Posted int `json:"posted"`
}

// MarkService handles batch mark posting.
type MarkService struct {
	marks     markRepo
	offerings markOfferingReader
	audits    markAuditWriter
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMarkService constructs MarkService.
func NewMarkService(marks markRepo, offerings markOfferingReader, audits markAuditWriter, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *MarkService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MarkService{
		marks:     marks,
		offerings: offerings,
		audits:    audits,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// PostMarks validates and commits a batch of marks. Entries may span
// offerings; the lecturer must be assigned to every offering named.
// The batch is all-or-nothing: any invalid entry rejects the whole
// posting and the failures list names each offending entry. A mark
// does not require an enrollment, and posting the same (assessment,
// student) pair again replaces the stored score, so repeats within
// one batch resolve to the last entry.
func (s *MarkService) PostMarks(ctx context.Context, lecturerID string, req PostMarksRequest) (*PostMarksResult, []MarkEntryFailure, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid marks payload")
	}

	offerings := make(map[string]*models.OfferingDetail)
	plans := make(map[string]map[string]models.Assessment)
	for _, entry := range req.Entries {
		if _, ok := offerings[entry.OfferingID]; ok {
			continue
		}
		offering, err := s.offerings.FindByID(ctx, entry.OfferingID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("offering %s not found", entry.OfferingID))
			}
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
		}
		assigned, err := s.offerings.IsLecturerAssigned(ctx, entry.OfferingID, lecturerID)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check lecturer assignment")
		}
		if !assigned {
			return nil, nil, appErrors.Clone(appErrors.ErrNotAssigned, fmt.Sprintf("lecturer not assigned to offering %s", entry.OfferingID))
		}
		offerings[entry.OfferingID] = offering
		byID := make(map[string]models.Assessment, len(offering.Assessments))
		for _, assessment := range offering.Assessments {
			byID[assessment.ID] = assessment
		}
		plans[entry.OfferingID] = byID
	}

	var failures []MarkEntryFailure
	marks := make([]models.Mark, 0, len(req.Entries))
	for _, entry := range req.Entries {
		assessment, ok := plans[entry.OfferingID][entry.AssessmentID]
		switch {
		case !ok:
			failures = append(failures, MarkEntryFailure{OfferingID: entry.OfferingID, StudentID: entry.StudentID, AssessmentID: entry.AssessmentID, Reason: "assessment not in offering plan"})
			continue
		case entry.Score < 0 || entry.Score > assessment.MaxScore:
			failures = append(failures, MarkEntryFailure{OfferingID: entry.OfferingID, StudentID: entry.StudentID, AssessmentID: entry.AssessmentID, Reason: fmt.Sprintf("score out of range 0..%g", assessment.MaxScore)})
			continue
		}
		marks = append(marks, models.Mark{
			AssessmentID: entry.AssessmentID,
			OfferingID:   entry.OfferingID,
			StudentID:    entry.StudentID,
			LecturerID:   lecturerID,
			Score:        entry.Score,
		})
	}

	if len(failures) > 0 {
		return nil, failures, appErrors.Clone(appErrors.ErrValidation, "mark batch rejected")
	}

	if err := s.marks.BulkUpsert(ctx, marks); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, nil, appErr
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit mark batch")
	}

	if s.metrics != nil {
		s.metrics.RecordMarksPosted(len(marks))
	}
	if s.cache != nil {
		for _, offering := range offerings {
			s.cache.InvalidateOffering(ctx, offering.Term, offering.Year)
		}
	}

	if err := s.audits.CreateAuditLog(ctx, &models.AuditLog{
		UserID:    &lecturerID,
		Action:    models.AuditActionMarksPost,
		Resource:  "marks",
		NewValues: []byte(fmt.Sprintf(`{"count":%d,"offerings":%d}`, len(marks), len(offerings))),
	}); err != nil {
		s.logger.Warn("failed to record marks audit log", zap.Error(err))
	}

	s.logger.Info("mark batch committed",
		zap.String("lecturer_id", lecturerID),
		zap.Int("offerings", len(offerings)),
		zap.Int("count", len(marks)))

	return &PostMarksResult{Posted: len(marks)}, nil, nil
}

// ListForOffering returns all marks recorded for an offering,
// restricted to assigned lecturers.
func (s *MarkService) ListForOffering(ctx context.Context, lecturerID, offeringID string) ([]models.Mark, error) {
	assigned, err := s.offerings.IsLecturerAssigned(ctx, offeringID, lecturerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check lecturer assignment")
	}
	if !assigned {
		return nil, appErrors.Clone(appErrors.ErrNotAssigned, "")
	}
	marks, err := s.marks.ListByOffering(ctx, offeringID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list marks")
	}
	return marks, nil
}
