package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/acadterm/gradebook-api/internal/models"
	appErrors "github.com/acadterm/gradebook-api/pkg/errors"
)

type offeringRepo interface {
	FindByID(ctx context.Context, id string) (*models.OfferingDetail, error)
	List(ctx context.Context, filter models.OfferingFilter) ([]models.OfferingDetail, int, error)
	ListByLecturer(ctx context.Context, lecturerID, term string, year int) ([]models.OfferingDetail, error)
	Create(ctx context.Context, offering *models.CourseOffering, lecturerIDs []string) error
	IsLecturerAssigned(ctx context.Context, offeringID, lecturerID string) (bool, error)
	ReplaceAssessments(ctx context.Context, offeringID string, assessments []models.Assessment) error
}

type offeringCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type offeringUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type offeringCacheInvalidator interface {
	InvalidateOffering(ctx context.Context, term string, year int)
}

// CreateOfferingRequest opens a course for a term.
type CreateOfferingRequest struct {
	CourseID    string   `json:"course_id" validate:"required"`
	Term        string   `json:"term" validate:"required"`
	Year        int      `json:"year" validate:"required,gte=2000"`
	Capacity    *int     `json:"capacity" validate:"omitempty,gt=0"`
	LecturerIDs []string `json:"lecturer_ids" validate:"required,min=1,dive,required"`
}

// AssessmentInput is one planned assessment. MaxScore may be omitted
// when the name carries a standard default.
type AssessmentInput struct {
	Name     string   `json:"name" validate:"required"`
	Weight   *int     `json:"weight" validate:"required,gte=0,lte=100"`
	MaxScore *float64 `json:"max_score" validate:"omitempty,gt=0"`
}

// SetAssessmentsRequest replaces an offering's assessment plan.
type SetAssessmentsRequest struct {
	Assessments []AssessmentInput `json:"assessments" validate:"required,min=1,dive"`
}

// OfferingService manages course offerings and assessment plans.
type OfferingService struct {
	offerings offeringRepo
	courses   offeringCourseReader
	users     offeringUserReader
	cache     offeringCacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewOfferingService constructs OfferingService.
func NewOfferingService(offerings offeringRepo, courses offeringCourseReader, users offeringUserReader, cache offeringCacheInvalidator, validate *validator.Validate, logger *zap.Logger) *OfferingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OfferingService{offerings: offerings, courses: courses, users: users, cache: cache, validator: validate, logger: logger}
}

// Create opens a course for the given term with its initial lecturer
// assignments.
func (s *OfferingService) Create(ctx context.Context, req CreateOfferingRequest) (*models.OfferingDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid offering payload")
	}

	if _, err := s.courses.FindByID(ctx, req.CourseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	for _, lecturerID := range req.LecturerIDs {
		lecturer, err := s.users.FindByID(ctx, lecturerID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("lecturer %s not found", lecturerID))
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lecturer")
		}
		if lecturer.Role != models.RoleLecturer {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("user %s is not a lecturer", lecturerID))
		}
	}

	offering := &models.CourseOffering{
		CourseID: req.CourseID,
		Term:     strings.ToUpper(strings.TrimSpace(req.Term)),
		Year:     req.Year,
		Capacity: req.Capacity,
	}
	if err := s.offerings.Create(ctx, offering, req.LecturerIDs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create offering")
	}

	return s.Get(ctx, offering.ID)
}

// Get returns an offering with its plan and lecturers.
func (s *OfferingService) Get(ctx context.Context, id string) (*models.OfferingDetail, error) {
	offering, err := s.offerings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}
	return offering, nil
}

// List returns offerings matching the filter.
func (s *OfferingService) List(ctx context.Context, filter models.OfferingFilter) ([]models.OfferingDetail, *models.Pagination, error) {
	filter.Term = strings.ToUpper(strings.TrimSpace(filter.Term))
	offerings, total, err := s.offerings.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list offerings")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return offerings, &models.Pagination{Page: page, PageSize: limit, TotalCount: total}, nil
}

// ListByLecturer returns the lecturer's offerings for a term.
func (s *OfferingService) ListByLecturer(ctx context.Context, lecturerID, term string, year int) ([]models.OfferingDetail, error) {
	offerings, err := s.offerings.ListByLecturer(ctx, lecturerID, strings.ToUpper(strings.TrimSpace(term)), year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lecturer offerings")
	}
	return offerings, nil
}

// SetAssessments replaces the offering's assessment plan. Max scores
// omitted from the payload are resolved from the standard defaults;
// the weights must sum to exactly 100. The swap is atomic and
// existing marks survive it.
func (s *OfferingService) SetAssessments(ctx context.Context, offeringID string, req SetAssessmentsRequest) ([]models.Assessment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assessment plan payload")
	}

	offering, err := s.Get(ctx, offeringID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(req.Assessments))
	assessments := make([]models.Assessment, 0, len(req.Assessments))
	total := 0
	for _, input := range req.Assessments {
		name := strings.TrimSpace(input.Name)
		key := strings.ToLower(name)
		if seen[key] {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate assessment name %q", name))
		}
		seen[key] = true

		maxScore := 0.0
		if input.MaxScore != nil {
			maxScore = *input.MaxScore
		} else {
			defaultMax, ok := DefaultAssessmentMaxScore(name)
			if !ok {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("assessment %q has no max score and no standard default", name))
			}
			maxScore = defaultMax
		}
		total += *input.Weight
		assessments = append(assessments, models.Assessment{Name: name, Weight: *input.Weight, MaxScore: maxScore})
	}

	if total != 100 {
		return nil, appErrors.Clone(appErrors.ErrInvalidWeights, fmt.Sprintf("assessment weights for offering %s sum to %d, expected exactly 100", offeringID, total))
	}

	if err := s.offerings.ReplaceAssessments(ctx, offeringID, assessments); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace assessment plan")
	}

	if s.cache != nil {
		s.cache.InvalidateOffering(ctx, offering.Term, offering.Year)
	}

	s.logger.Info("assessment plan replaced",
		zap.String("offering_id", offeringID),
		zap.Int("assessments", len(assessments)))

	return assessments, nil
}
