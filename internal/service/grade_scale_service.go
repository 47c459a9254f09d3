package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/acadterm/gradebook-api/internal/models"
	appErrors "github.com/acadterm/gradebook-api/pkg/errors"
)

type gradeScaleRepo interface {
	List(ctx context.Context) ([]models.GradeBand, error)
	ReplaceAll(ctx context.Context, bands []models.GradeBand) error
}

type gradeScaleAuditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// GradeBandInput is one band of a replacement scale.
type GradeBandInput struct {
	Letter     string  `json:"letter" validate:"required"`
	MinPercent float64 `json:"min_percent" validate:"gte=0,lte=100"`
	MaxPercent float64 `json:"max_percent" validate:"gte=0,lte=100"`
	Points     float64 `json:"points" validate:"gte=0"`
}

// ReplaceGradeScaleRequest swaps the whole scale at once.
type ReplaceGradeScaleRequest struct {
	Bands []GradeBandInput `json:"bands" validate:"required,min=1,dive"`
}

// GradeScaleService administers the institution grade scale.
type GradeScaleService struct {
	scale     gradeScaleRepo
	audits    gradeScaleAuditWriter
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradeScaleService constructs GradeScaleService.
func NewGradeScaleService(scale gradeScaleRepo, audits gradeScaleAuditWriter, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *GradeScaleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeScaleService{scale: scale, audits: audits, cache: cache, validator: validate, logger: logger}
}

// EnsureSeeded installs the default scale when the table is empty so
// a fresh deployment can grade before an admin uploads a custom one.
func (s *GradeScaleService) EnsureSeeded(ctx context.Context) error {
	bands, err := s.scale.List(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade scale")
	}
	if len(bands) > 0 {
		return nil
	}
	if err := s.scale.ReplaceAll(ctx, models.DefaultGradeScale()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to seed grade scale")
	}
	s.logger.Info("seeded default grade scale")
	return nil
}

// List returns the current scale, highest band first.
func (s *GradeScaleService) List(ctx context.Context) ([]models.GradeBand, error) {
	bands, err := s.scale.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade scale")
	}
	return bands, nil
}

// Replace validates and swaps the whole grade scale. Bands must not
// overlap; gaps are allowed but surface later as fallback lookups.
func (s *GradeScaleService) Replace(ctx context.Context, adminID string, req ReplaceGradeScaleRequest) ([]models.GradeBand, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade scale payload")
	}

	bands := make([]models.GradeBand, 0, len(req.Bands))
	letters := make(map[string]bool, len(req.Bands))
	for _, input := range req.Bands {
		letter := strings.TrimSpace(input.Letter)
		if input.MinPercent > input.MaxPercent {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("band %s has min above max", letter))
		}
		if letters[letter] {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate band letter %s", letter))
		}
		letters[letter] = true
		bands = append(bands, models.GradeBand{
			Letter:     letter,
			MinPercent: input.MinPercent,
			MaxPercent: input.MaxPercent,
			Points:     input.Points,
		})
	}

	sort.Slice(bands, func(i, j int) bool { return bands[i].MinPercent < bands[j].MinPercent })
	for i := 1; i < len(bands); i++ {
		if bands[i].MinPercent <= bands[i-1].MaxPercent {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("bands %s and %s overlap", bands[i-1].Letter, bands[i].Letter))
		}
	}

	if err := s.scale.ReplaceAll(ctx, bands); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace grade scale")
	}

	if err := s.audits.CreateAuditLog(ctx, &models.AuditLog{
		UserID:   &adminID,
		Action:   models.AuditActionGradeScaleReplace,
		Resource: "grade_scale",
	}); err != nil {
		s.logger.Warn("failed to record grade scale audit log", zap.Error(err))
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, "marksheet:*"); err != nil {
			s.logger.Warn("failed to invalidate marksheets after scale change", zap.Error(err))
		}
	}

	s.logger.Info("grade scale replaced", zap.Int("bands", len(bands)))
	return bands, nil
}
