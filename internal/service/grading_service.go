package service

import (
	"context"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/acadterm/gradebook-api/internal/models"
	appErrors "github.com/acadterm/gradebook-api/pkg/errors"
)

type gradingOfferingReader interface {
	ListByTerm(ctx context.Context, term string, year int) ([]models.OfferingDetail, error)
	ListAssessmentsByOfferings(ctx context.Context, offeringIDs []string) (map[string][]models.Assessment, error)
}

type gradingEnrollmentReader interface {
	ListByStudentTerm(ctx context.Context, studentID, term string, year int) ([]models.EnrollmentDetail, error)
	ListByOfferings(ctx context.Context, offeringIDs []string) (map[string][]models.EnrollmentDetail, error)
}

type gradingMarkReader interface {
	ListByOfferings(ctx context.Context, offeringIDs []string) (map[string][]models.Mark, error)
}

type gradeScaleReader interface {
	List(ctx context.Context) ([]models.GradeBand, error)
}

// GradingService computes percentages, letters and GPA from recorded
// marks. Aggregation never writes: a missing mark contributes zero to
// the weighted total and is reported separately, and marks whose
// assessment has left the plan are ignored.
type GradingService struct {
	offerings   gradingOfferingReader
	enrollments gradingEnrollmentReader
	marks       gradingMarkReader
	scale       gradeScaleReader
	cache       *CacheService
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewGradingService constructs GradingService.
func NewGradingService(offerings gradingOfferingReader, enrollments gradingEnrollmentReader, marks gradingMarkReader, scale gradeScaleReader, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *GradingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradingService{
		offerings:   offerings,
		enrollments: enrollments,
		marks:       marks,
		scale:       scale,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
	}
}

// roundHalfUp rounds to two decimal places, halves away from zero.
func roundHalfUp(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}

// resolveBand maps a percentage to its grade band. Bands arrive
// highest first; a percentage belongs to the first band whose floor
// it reaches, so fractional values between integer bounds (89.99
// against an 87-89 band) still resolve. A percentage below every
// floor, or above the scale's ceiling, falls back to the lowest
// band's letter with zero points; the fallback is logged and counted
// so a mispartitioned scale is visible.
func (s *GradingService) resolveBand(bands []models.GradeBand, percent float64) (string, float64) {
	ceiling := math.Inf(-1)
	for _, band := range bands {
		if band.MaxPercent > ceiling {
			ceiling = band.MaxPercent
		}
	}
	if percent <= ceiling {
		for _, band := range bands {
			if percent >= band.MinPercent {
				return band.Letter, band.Points
			}
		}
	}

	if len(bands) == 0 {
		s.logger.Warn("grade scale is empty", zap.Float64("percent", percent))
		if s.metrics != nil {
			s.metrics.RecordGradeScaleFallback()
		}
		return "", 0
	}

	lowest := bands[0]
	for _, band := range bands[1:] {
		if band.MinPercent < lowest.MinPercent {
			lowest = band
		}
	}
	s.logger.Warn("percentage matched no grade band",
		zap.Float64("percent", percent),
		zap.String("fallback_letter", lowest.Letter))
	if s.metrics != nil {
		s.metrics.RecordGradeScaleFallback()
	}
	return lowest.Letter, 0
}

// computeResult aggregates one student's marks for one offering.
func (s *GradingService) computeResult(offering models.EnrollmentDetail, assessments []models.Assessment, marks map[string]float64, bands []models.GradeBand) models.OfferingResult {
	result := models.OfferingResult{
		OfferingID: offering.OfferingID,
		CourseCode: offering.CourseCode,
		CourseName: offering.CourseName,
		Credits:    offering.Credits,
		StudentID:  offering.StudentID,
	}

	total := 0.0
	for _, assessment := range assessments {
		ar := models.AssessmentResult{
			AssessmentID: assessment.ID,
			Name:         assessment.Name,
			Weight:       assessment.Weight,
			MaxScore:     assessment.MaxScore,
		}
		if score, ok := marks[assessment.ID]; ok {
			ar.Score = score
			ar.Graded = true
			if assessment.MaxScore > 0 {
				// Sum the exact contribution; rounding each one
				// before summing drifts the total.
				earned := score / assessment.MaxScore * float64(assessment.Weight)
				ar.Weighted = roundHalfUp(earned)
				total += earned
			}
		}
		result.Assessments = append(result.Assessments, ar)
	}

	result.Percent = roundHalfUp(total)
	result.Letter, result.Points = s.resolveBand(bands, result.Percent)
	return result
}

// Marksheet returns one student's aggregated results for a term.
// Students with no enrollments get an empty sheet with GPA and
// average of zero.
func (s *GradingService) Marksheet(ctx context.Context, studentID, term string, year int) (*models.StudentMarksheet, error) {
	term = strings.ToUpper(strings.TrimSpace(term))

	if s.cache != nil {
		var cached models.StudentMarksheet
		if hit, _ := s.cache.Get(ctx, MarksheetKey(term, year, studentID), &cached); hit {
			return &cached, nil
		}
	}

	enrollments, err := s.enrollments.ListByStudentTerm(ctx, studentID, term, year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}

	sheet := &models.StudentMarksheet{
		StudentID: studentID,
		Term:      term,
		Year:      year,
		Results:   []models.OfferingResult{},
	}
	if len(enrollments) == 0 {
		return sheet, nil
	}
	sheet.StudentName = enrollments[0].StudentName
	sheet.RegNo = enrollments[0].StudentRegNo

	offeringIDs := make([]string, 0, len(enrollments))
	for _, enrollment := range enrollments {
		offeringIDs = append(offeringIDs, enrollment.OfferingID)
	}

	assessmentsByOffering, marksByKey, bands, err := s.loadAggregationInputs(ctx, offeringIDs)
	if err != nil {
		return nil, err
	}

	for _, enrollment := range enrollments {
		result := s.computeResult(enrollment, assessmentsByOffering[enrollment.OfferingID], marksByKey[enrollment.OfferingID][enrollment.StudentID], bands)
		sheet.Results = append(sheet.Results, result)
	}

	sheet.GPA, sheet.Average = summarise(sheet.Results)

	if s.cache != nil {
		_ = s.cache.Set(ctx, MarksheetKey(term, year, studentID), sheet, 0)
	}
	return sheet, nil
}

// CohortMarksheet returns per-student marksheets for every student
// enrolled in the term.
func (s *GradingService) CohortMarksheet(ctx context.Context, term string, year int) ([]models.StudentMarksheet, error) {
	term = strings.ToUpper(strings.TrimSpace(term))

	if s.cache != nil {
		var cached []models.StudentMarksheet
		if hit, _ := s.cache.Get(ctx, CohortKey(term, year), &cached); hit {
			return cached, nil
		}
	}

	offerings, err := s.offerings.ListByTerm(ctx, term, year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list offerings")
	}
	if len(offerings) == 0 {
		return []models.StudentMarksheet{}, nil
	}

	offeringIDs := make([]string, 0, len(offerings))
	for _, offering := range offerings {
		offeringIDs = append(offeringIDs, offering.ID)
	}

	rosters, err := s.enrollments.ListByOfferings(ctx, offeringIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rosters")
	}

	assessmentsByOffering, marksByKey, bands, err := s.loadAggregationInputs(ctx, offeringIDs)
	if err != nil {
		return nil, err
	}

	sheets := make(map[string]*models.StudentMarksheet)
	for _, offeringID := range offeringIDs {
		for _, enrollment := range rosters[offeringID] {
			sheet, ok := sheets[enrollment.StudentID]
			if !ok {
				sheet = &models.StudentMarksheet{
					StudentID:   enrollment.StudentID,
					StudentName: enrollment.StudentName,
					RegNo:       enrollment.StudentRegNo,
					Term:        term,
					Year:        year,
				}
				sheets[enrollment.StudentID] = sheet
			}
			result := s.computeResult(enrollment, assessmentsByOffering[offeringID], marksByKey[offeringID][enrollment.StudentID], bands)
			sheet.Results = append(sheet.Results, result)
		}
	}

	out := make([]models.StudentMarksheet, 0, len(sheets))
	for _, sheet := range sheets {
		sheet.GPA, sheet.Average = summarise(sheet.Results)
		out = append(out, *sheet)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentName < out[j].StudentName })

	if s.cache != nil {
		_ = s.cache.Set(ctx, CohortKey(term, year), out, 0)
	}
	return out, nil
}

// MissingMarks reports enrolled (student, assessment) pairs with no
// recorded mark for a term, optionally narrowed to one offering, one
// student, or both.
func (s *GradingService) MissingMarks(ctx context.Context, term string, year int, offeringID, studentID string) ([]models.MissingMark, error) {
	term = strings.ToUpper(strings.TrimSpace(term))

	offerings, err := s.offerings.ListByTerm(ctx, term, year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list offerings")
	}

	offeringIDs := make([]string, 0, len(offerings))
	codes := make(map[string]string, len(offerings))
	for _, offering := range offerings {
		if offeringID != "" && offering.ID != offeringID {
			continue
		}
		offeringIDs = append(offeringIDs, offering.ID)
		codes[offering.ID] = offering.CourseCode
	}
	if len(offeringIDs) == 0 {
		return []models.MissingMark{}, nil
	}

	rosters, err := s.enrollments.ListByOfferings(ctx, offeringIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rosters")
	}
	assessmentsByOffering, marksByKey, _, err := s.loadAggregationInputs(ctx, offeringIDs)
	if err != nil {
		return nil, err
	}

	missing := []models.MissingMark{}
	for _, id := range offeringIDs {
		for _, enrollment := range rosters[id] {
			if studentID != "" && enrollment.StudentID != studentID {
				continue
			}
			studentMarks := marksByKey[id][enrollment.StudentID]
			for _, assessment := range assessmentsByOffering[id] {
				if _, ok := studentMarks[assessment.ID]; ok {
					continue
				}
				missing = append(missing, models.MissingMark{
					OfferingID:     id,
					CourseCode:     codes[id],
					StudentID:      enrollment.StudentID,
					StudentName:    enrollment.StudentName,
					AssessmentID:   assessment.ID,
					AssessmentName: assessment.Name,
				})
			}
		}
	}
	return missing, nil
}

// GradeScale returns the configured bands, highest first.
func (s *GradingService) GradeScale(ctx context.Context) ([]models.GradeBand, error) {
	bands, err := s.scale.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade scale")
	}
	return bands, nil
}

func (s *GradingService) loadAggregationInputs(ctx context.Context, offeringIDs []string) (map[string][]models.Assessment, map[string]map[string]map[string]float64, []models.GradeBand, error) {
	assessmentsByOffering, err := s.offerings.ListAssessmentsByOfferings(ctx, offeringIDs)
	if err != nil {
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assessment plans")
	}

	marksByOffering, err := s.marks.ListByOfferings(ctx, offeringIDs)
	if err != nil {
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load marks")
	}
	marksByKey := make(map[string]map[string]map[string]float64, len(marksByOffering))
	for offeringID, marks := range marksByOffering {
		byStudent := make(map[string]map[string]float64)
		for _, mark := range marks {
			if byStudent[mark.StudentID] == nil {
				byStudent[mark.StudentID] = make(map[string]float64)
			}
			byStudent[mark.StudentID][mark.AssessmentID] = mark.Score
		}
		marksByKey[offeringID] = byStudent
	}

	bands, err := s.scale.List(ctx)
	if err != nil {
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade scale")
	}
	return assessmentsByOffering, marksByKey, bands, nil
}

// summarise computes the GPA as the arithmetic mean of grade points
// across offerings, ignoring credits, and the plain average of
// offering percentages. Both are zero when there are no results.
func summarise(results []models.OfferingResult) (gpa, average float64) {
	if len(results) == 0 {
		return 0, 0
	}
	points := 0.0
	percents := 0.0
	for _, result := range results {
		points += result.Points
		percents += result.Percent
	}
	gpa = roundHalfUp(points / float64(len(results)))
	average = roundHalfUp(percents / float64(len(results)))
	return gpa, average
}
