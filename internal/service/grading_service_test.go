package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/acadterm/gradebook-api/internal/models"
)

type mockGradingOfferings struct {
	offerings   []models.OfferingDetail
	assessments map[string][]models.Assessment
}

func (m *mockGradingOfferings) ListByTerm(ctx context.Context, term string, year int) ([]models.OfferingDetail, error) {
	return m.offerings, nil
}

func (m *mockGradingOfferings) ListAssessmentsByOfferings(ctx context.Context, offeringIDs []string) (map[string][]models.Assessment, error) {
	return m.assessments, nil
}

type mockGradingEnrollments struct {
	byStudent  []models.EnrollmentDetail
	byOffering map[string][]models.EnrollmentDetail
}

func (m *mockGradingEnrollments) ListByStudentTerm(ctx context.Context, studentID, term string, year int) ([]models.EnrollmentDetail, error) {
	return m.byStudent, nil
}

func (m *mockGradingEnrollments) ListByOfferings(ctx context.Context, offeringIDs []string) (map[string][]models.EnrollmentDetail, error) {
	return m.byOffering, nil
}

type mockGradingMarks struct {
	byOffering map[string][]models.Mark
}

func (m *mockGradingMarks) ListByOfferings(ctx context.Context, offeringIDs []string) (map[string][]models.Mark, error) {
	return m.byOffering, nil
}

type mockGradeScale struct {
	bands []models.GradeBand
}

func (m *mockGradeScale) List(ctx context.Context) ([]models.GradeBand, error) {
	return m.bands, nil
}

// standardScale mirrors the seeded institutional scale, highest band
// first the way the repository returns it.
func standardScale() []models.GradeBand {
	return []models.GradeBand{
		{Letter: "A", MinPercent: 90, MaxPercent: 100, Points: 4.0},
		{Letter: "A-", MinPercent: 87, MaxPercent: 89, Points: 3.7},
		{Letter: "B+", MinPercent: 84, MaxPercent: 86, Points: 3.3},
		{Letter: "B", MinPercent: 80, MaxPercent: 83, Points: 3.0},
		{Letter: "B-", MinPercent: 77, MaxPercent: 79, Points: 2.7},
		{Letter: "C+", MinPercent: 74, MaxPercent: 76, Points: 2.3},
		{Letter: "C", MinPercent: 70, MaxPercent: 73, Points: 2.0},
		{Letter: "C-", MinPercent: 67, MaxPercent: 69, Points: 1.7},
		{Letter: "D+", MinPercent: 64, MaxPercent: 66, Points: 1.3},
		{Letter: "D", MinPercent: 62, MaxPercent: 63, Points: 1.0},
		{Letter: "D-", MinPercent: 60, MaxPercent: 61, Points: 0.7},
		{Letter: "F", MinPercent: 0, MaxPercent: 59, Points: 0.0},
	}
}

func newGradingFixture(offerings *mockGradingOfferings, enrollments *mockGradingEnrollments, marks *mockGradingMarks) *GradingService {
	return NewGradingService(offerings, enrollments, marks, &mockGradeScale{bands: standardScale()}, nil, nil, zap.NewNop())
}

func TestGradingServiceMarksheetMissingMarkContributesZero(t *testing.T) {
	offerings := &mockGradingOfferings{
		assessments: map[string][]models.Assessment{
			"off-1": {
				{ID: "ass-cat", OfferingID: "off-1", Name: "CAT", Weight: 30, MaxScore: 30},
				{ID: "ass-exam", OfferingID: "off-1", Name: "Exam", Weight: 70, MaxScore: 70},
			},
		},
	}
	enrollments := &mockGradingEnrollments{
		byStudent: []models.EnrollmentDetail{{
			Enrollment: models.Enrollment{ID: "enr-1", StudentID: "stu-1", OfferingID: "off-1"},
			CourseCode: "CS101", CourseName: "Intro to Computing", Credits: 3,
			Term: "FALL", Year: 2026, StudentName: "Ada Student", StudentRegNo: "REG-001",
		}},
	}
	marks := &mockGradingMarks{byOffering: map[string][]models.Mark{
		"off-1": {{AssessmentID: "ass-cat", OfferingID: "off-1", StudentID: "stu-1", Score: 24}},
	}}
	svc := newGradingFixture(offerings, enrollments, marks)

	sheet, err := svc.Marksheet(context.Background(), "stu-1", "FALL", 2026)
	require.NoError(t, err)
	require.Len(t, sheet.Results, 1)

	result := sheet.Results[0]
	assert.Equal(t, 24.0, result.Percent)
	assert.Equal(t, "F", result.Letter)
	require.Len(t, result.Assessments, 2)
	assert.True(t, result.Assessments[0].Graded)
	assert.Equal(t, 24.0, result.Assessments[0].Weighted)
	assert.False(t, result.Assessments[1].Graded)
	assert.Equal(t, 0.0, result.Assessments[1].Weighted)
}

func TestGradingServiceBandFloorsResolveFractionalPercents(t *testing.T) {
	svc := newGradingFixture(&mockGradingOfferings{}, &mockGradingEnrollments{}, &mockGradingMarks{})

	letter, points := svc.resolveBand(standardScale(), 89.99)
	assert.Equal(t, "A-", letter)
	assert.Equal(t, 3.7, points)

	letter, points = svc.resolveBand(standardScale(), 90.0)
	assert.Equal(t, "A", letter)
	assert.Equal(t, 4.0, points)

	letter, points = svc.resolveBand(standardScale(), 0)
	assert.Equal(t, "F", letter)
	assert.Equal(t, 0.0, points)
}

func TestGradingServiceBandFallbackBelowScale(t *testing.T) {
	svc := newGradingFixture(&mockGradingOfferings{}, &mockGradingEnrollments{}, &mockGradingMarks{})

	bands := []models.GradeBand{
		{Letter: "P", MinPercent: 50, MaxPercent: 100, Points: 4.0},
		{Letter: "F", MinPercent: 40, MaxPercent: 49, Points: 0.0},
	}
	letter, points := svc.resolveBand(bands, 10)
	assert.Equal(t, "F", letter)
	assert.Equal(t, 0.0, points)
}

func TestGradingServiceBandFallbackAboveScaleCeiling(t *testing.T) {
	svc := newGradingFixture(&mockGradingOfferings{}, &mockGradingEnrollments{}, &mockGradingMarks{})

	bands := []models.GradeBand{
		{Letter: "A", MinPercent: 80, MaxPercent: 90, Points: 4.0},
		{Letter: "F", MinPercent: 0, MaxPercent: 79, Points: 0.0},
	}
	letter, points := svc.resolveBand(bands, 95)
	assert.Equal(t, "F", letter)
	assert.Equal(t, 0.0, points)

	letter, points = svc.resolveBand(standardScale(), 100)
	assert.Equal(t, "A", letter)
	assert.Equal(t, 4.0, points)
}

func TestGradingServiceMarksheetEmptyTerm(t *testing.T) {
	svc := newGradingFixture(&mockGradingOfferings{}, &mockGradingEnrollments{}, &mockGradingMarks{})

	sheet, err := svc.Marksheet(context.Background(), "stu-1", "FALL", 2026)
	require.NoError(t, err)
	assert.Empty(t, sheet.Results)
	assert.Equal(t, 0.0, sheet.GPA)
	assert.Equal(t, 0.0, sheet.Average)
}

func TestGradingServiceMarksheetGPAIsMeanOfPoints(t *testing.T) {
	offerings := &mockGradingOfferings{
		assessments: map[string][]models.Assessment{
			"off-1": {{ID: "a1", OfferingID: "off-1", Name: "Exam", Weight: 100, MaxScore: 100}},
			"off-2": {{ID: "a2", OfferingID: "off-2", Name: "Exam", Weight: 100, MaxScore: 100}},
		},
	}
	enrollments := &mockGradingEnrollments{
		byStudent: []models.EnrollmentDetail{
			{
				Enrollment: models.Enrollment{ID: "enr-1", StudentID: "stu-1", OfferingID: "off-1"},
				CourseCode: "CS101", Credits: 3, Term: "FALL", Year: 2026, StudentName: "Ada Student",
			},
			{
				Enrollment: models.Enrollment{ID: "enr-2", StudentID: "stu-1", OfferingID: "off-2"},
				CourseCode: "MA101", Credits: 1, Term: "FALL", Year: 2026, StudentName: "Ada Student",
			},
		},
	}
	marks := &mockGradingMarks{byOffering: map[string][]models.Mark{
		"off-1": {{AssessmentID: "a1", OfferingID: "off-1", StudentID: "stu-1", Score: 95}},
		"off-2": {{AssessmentID: "a2", OfferingID: "off-2", StudentID: "stu-1", Score: 70}},
	}}
	svc := newGradingFixture(offerings, enrollments, marks)

	sheet, err := svc.Marksheet(context.Background(), "stu-1", "FALL", 2026)
	require.NoError(t, err)
	require.Len(t, sheet.Results, 2)
	// (4.0 + 2.0) / 2, credits do not weight the mean
	assert.Equal(t, 3.0, sheet.GPA)
	assert.Equal(t, 82.5, sheet.Average)
}

func TestGradingServicePercentRoundsOnceOverExactSum(t *testing.T) {
	offerings := &mockGradingOfferings{
		assessments: map[string][]models.Assessment{
			"off-1": {
				{ID: "a1", OfferingID: "off-1", Name: "CAT 1", Weight: 17, MaxScore: 40},
				{ID: "a2", OfferingID: "off-1", Name: "CAT 2", Weight: 17, MaxScore: 40},
				{ID: "a3", OfferingID: "off-1", Name: "Exam", Weight: 66, MaxScore: 10},
			},
		},
	}
	enrollments := &mockGradingEnrollments{
		byStudent: []models.EnrollmentDetail{{
			Enrollment: models.Enrollment{ID: "enr-1", StudentID: "stu-1", OfferingID: "off-1"},
			CourseCode: "CS101", Credits: 3, Term: "FALL", Year: 2026, StudentName: "Ada Student",
		}},
	}
	// each CAT contributes exactly 2.125; rounding contributions
	// before summing would report 2.13+2.13+66 = 70.26
	marks := &mockGradingMarks{byOffering: map[string][]models.Mark{
		"off-1": {
			{AssessmentID: "a1", OfferingID: "off-1", StudentID: "stu-1", Score: 5},
			{AssessmentID: "a2", OfferingID: "off-1", StudentID: "stu-1", Score: 5},
			{AssessmentID: "a3", OfferingID: "off-1", StudentID: "stu-1", Score: 10},
		},
	}}
	svc := newGradingFixture(offerings, enrollments, marks)

	sheet, err := svc.Marksheet(context.Background(), "stu-1", "FALL", 2026)
	require.NoError(t, err)
	require.Len(t, sheet.Results, 1)
	assert.Equal(t, 70.25, sheet.Results[0].Percent)
	assert.Equal(t, 2.13, sheet.Results[0].Assessments[0].Weighted)
}

func TestGradingServiceOrphanedMarksIgnored(t *testing.T) {
	offerings := &mockGradingOfferings{
		assessments: map[string][]models.Assessment{
			"off-1": {{ID: "a-new", OfferingID: "off-1", Name: "Exam", Weight: 100, MaxScore: 100}},
		},
	}
	enrollments := &mockGradingEnrollments{
		byStudent: []models.EnrollmentDetail{{
			Enrollment: models.Enrollment{ID: "enr-1", StudentID: "stu-1", OfferingID: "off-1"},
			CourseCode: "CS101", Credits: 3, Term: "FALL", Year: 2026, StudentName: "Ada Student",
		}},
	}
	// a-old was removed from the plan; its mark stays stored but
	// stops contributing.
	marks := &mockGradingMarks{byOffering: map[string][]models.Mark{
		"off-1": {
			{AssessmentID: "a-old", OfferingID: "off-1", StudentID: "stu-1", Score: 99},
			{AssessmentID: "a-new", OfferingID: "off-1", StudentID: "stu-1", Score: 80},
		},
	}}
	svc := newGradingFixture(offerings, enrollments, marks)

	sheet, err := svc.Marksheet(context.Background(), "stu-1", "FALL", 2026)
	require.NoError(t, err)
	require.Len(t, sheet.Results, 1)
	assert.Equal(t, 80.0, sheet.Results[0].Percent)
	assert.Equal(t, "B", sheet.Results[0].Letter)
}

func TestGradingServiceMissingMarksReport(t *testing.T) {
	offerings := &mockGradingOfferings{
		offerings: []models.OfferingDetail{{
			CourseOffering: models.CourseOffering{ID: "off-1", Term: "FALL", Year: 2026},
			CourseCode:     "CS101",
		}},
		assessments: map[string][]models.Assessment{
			"off-1": {
				{ID: "a1", OfferingID: "off-1", Name: "CAT", Weight: 30, MaxScore: 30},
				{ID: "a2", OfferingID: "off-1", Name: "Exam", Weight: 70, MaxScore: 70},
			},
		},
	}
	enrollments := &mockGradingEnrollments{
		byOffering: map[string][]models.EnrollmentDetail{
			"off-1": {{
				Enrollment:  models.Enrollment{ID: "enr-1", StudentID: "stu-1", OfferingID: "off-1"},
				StudentName: "Ada Student",
			}},
		},
	}
	marks := &mockGradingMarks{byOffering: map[string][]models.Mark{
		"off-1": {{AssessmentID: "a1", OfferingID: "off-1", StudentID: "stu-1", Score: 20}},
	}}
	svc := newGradingFixture(offerings, enrollments, marks)

	missing, err := svc.MissingMarks(context.Background(), "FALL", 2026, "", "")
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, "stu-1", missing[0].StudentID)
	assert.Equal(t, "Exam", missing[0].AssessmentName)
}

func TestGradingServiceMissingMarksStudentFilter(t *testing.T) {
	offerings := &mockGradingOfferings{
		offerings: []models.OfferingDetail{{
			CourseOffering: models.CourseOffering{ID: "off-1", Term: "FALL", Year: 2026},
			CourseCode:     "CS101",
		}},
		assessments: map[string][]models.Assessment{
			"off-1": {{ID: "a1", OfferingID: "off-1", Name: "Exam", Weight: 100, MaxScore: 100}},
		},
	}
	enrollments := &mockGradingEnrollments{
		byOffering: map[string][]models.EnrollmentDetail{
			"off-1": {
				{Enrollment: models.Enrollment{ID: "enr-1", StudentID: "stu-1", OfferingID: "off-1"}, StudentName: "Ada Student"},
				{Enrollment: models.Enrollment{ID: "enr-2", StudentID: "stu-2", OfferingID: "off-1"}, StudentName: "Bo Student"},
			},
		},
	}
	marks := &mockGradingMarks{byOffering: map[string][]models.Mark{}}
	svc := newGradingFixture(offerings, enrollments, marks)

	missing, err := svc.MissingMarks(context.Background(), "FALL", 2026, "", "stu-2")
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, "stu-2", missing[0].StudentID)

	missing, err = svc.MissingMarks(context.Background(), "FALL", 2026, "", "")
	require.NoError(t, err)
	assert.Len(t, missing, 2)
}

func TestRoundHalfUp(t *testing.T) {
	assert.Equal(t, 2.13, roundHalfUp(2.125))
	assert.Equal(t, 66.67, roundHalfUp(66.666))
	assert.Equal(t, 66.66, roundHalfUp(66.664))
	assert.Equal(t, 0.0, roundHalfUp(0))
}
