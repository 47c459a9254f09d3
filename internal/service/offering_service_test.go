package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acadterm/gradebook-api/internal/models"
	appErrors "github.com/acadterm/gradebook-api/pkg/errors"
)

type mockOfferingRepo struct {
	offering *models.OfferingDetail
	assigned bool
	replaced []models.Assessment
}

func (m *mockOfferingRepo) FindByID(ctx context.Context, id string) (*models.OfferingDetail, error) {
	if m.offering == nil || m.offering.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.offering, nil
}

func (m *mockOfferingRepo) List(ctx context.Context, filter models.OfferingFilter) ([]models.OfferingDetail, int, error) {
	if m.offering == nil {
		return nil, 0, nil
	}
	return []models.OfferingDetail{*m.offering}, 1, nil
}

func (m *mockOfferingRepo) ListByLecturer(ctx context.Context, lecturerID, term string, year int) ([]models.OfferingDetail, error) {
	return nil, nil
}

func (m *mockOfferingRepo) Create(ctx context.Context, offering *models.CourseOffering, lecturerIDs []string) error {
	offering.ID = "off-created"
	m.offering = &models.OfferingDetail{CourseOffering: *offering, LecturerIDs: lecturerIDs}
	return nil
}

func (m *mockOfferingRepo) IsLecturerAssigned(ctx context.Context, offeringID, lecturerID string) (bool, error) {
	return m.assigned, nil
}

func (m *mockOfferingRepo) ReplaceAssessments(ctx context.Context, offeringID string, assessments []models.Assessment) error {
	m.replaced = assessments
	return nil
}

type mockCourseReader struct {
	course *models.Course
}

func (m *mockCourseReader) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if m.course == nil || m.course.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.course, nil
}

type mockUserReader struct {
	users map[string]*models.User
}

func (m *mockUserReader) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

type mockInvalidator struct {
	offeringCalls int
	studentCalls  int
}

func (m *mockInvalidator) InvalidateOffering(ctx context.Context, term string, year int) {
	m.offeringCalls++
}

func (m *mockInvalidator) InvalidateStudent(ctx context.Context, term string, year int, studentID string) {
	m.studentCalls++
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func newOfferingFixture() (*OfferingService, *mockOfferingRepo, *mockInvalidator) {
	repo := &mockOfferingRepo{offering: &models.OfferingDetail{
		CourseOffering: models.CourseOffering{ID: "off-1", CourseID: "crs-1", Term: "FALL", Year: 2026},
		CourseCode:     "CS101",
	}}
	cache := &mockInvalidator{}
	svc := NewOfferingService(repo, &mockCourseReader{}, &mockUserReader{}, cache, nil, nil)
	return svc, repo, cache
}

func TestOfferingServiceSetAssessmentsResolvesDefaults(t *testing.T) {
	svc, repo, cache := newOfferingFixture()

	plan, err := svc.SetAssessments(context.Background(), "off-1", SetAssessmentsRequest{
		Assessments: []AssessmentInput{
			{Name: "Assignments", Weight: intPtr(10)},
			{Name: "Quizzes", Weight: intPtr(15)},
			{Name: "Project", Weight: intPtr(25)},
			{Name: "Midsem", Weight: intPtr(20)},
			{Name: "Endsem", Weight: intPtr(30)},
		},
	})
	require.NoError(t, err)
	require.Len(t, plan, 5)
	assert.Equal(t, 10.0, plan[0].MaxScore)
	assert.Equal(t, 15.0, plan[1].MaxScore)
	assert.Equal(t, 25.0, plan[2].MaxScore)
	assert.Equal(t, 20.0, plan[3].MaxScore)
	assert.Equal(t, 30.0, plan[4].MaxScore)
	assert.Len(t, repo.replaced, 5)
	assert.Equal(t, 1, cache.offeringCalls)
}

func TestOfferingServiceSetAssessmentsExplicitMaxScoreWins(t *testing.T) {
	svc, repo, _ := newOfferingFixture()

	plan, err := svc.SetAssessments(context.Background(), "off-1", SetAssessmentsRequest{
		Assessments: []AssessmentInput{
			{Name: "Quiz", Weight: intPtr(30)},
			{Name: "Final", Weight: intPtr(70), MaxScore: floatPtr(80)},
		},
	})
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, 15.0, plan[0].MaxScore)
	assert.Equal(t, 80.0, plan[1].MaxScore)
	assert.Equal(t, 30, plan[0].Weight)
	assert.Equal(t, 70, plan[1].Weight)
	assert.Len(t, repo.replaced, 2)
}

func TestOfferingServiceSetAssessmentsRequiresWeight(t *testing.T) {
	svc, repo, _ := newOfferingFixture()

	_, err := svc.SetAssessments(context.Background(), "off-1", SetAssessmentsRequest{
		Assessments: []AssessmentInput{{Name: "Quiz", MaxScore: floatPtr(15)}},
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Nil(t, repo.replaced)
}

func TestOfferingServiceSetAssessmentsRejectsBadTotals(t *testing.T) {
	svc, repo, _ := newOfferingFixture()

	for _, weights := range [][2]int{{30, 69}, {30, 71}} {
		_, err := svc.SetAssessments(context.Background(), "off-1", SetAssessmentsRequest{
			Assessments: []AssessmentInput{
				{Name: "CAT", Weight: intPtr(weights[0]), MaxScore: floatPtr(30)},
				{Name: "Exam", Weight: intPtr(weights[1]), MaxScore: floatPtr(70)},
			},
		})
		require.Error(t, err)
		var appErr *appErrors.Error
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, appErrors.ErrInvalidWeights.Code, appErr.Code)
	}
	assert.Nil(t, repo.replaced)
}

func TestOfferingServiceSetAssessmentsRejectsDuplicateNames(t *testing.T) {
	svc, _, _ := newOfferingFixture()

	_, err := svc.SetAssessments(context.Background(), "off-1", SetAssessmentsRequest{
		Assessments: []AssessmentInput{
			{Name: "Exam", Weight: intPtr(50), MaxScore: floatPtr(50)},
			{Name: "exam", Weight: intPtr(50), MaxScore: floatPtr(50)},
		},
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestOfferingServiceSetAssessmentsUnknownDefault(t *testing.T) {
	svc, _, _ := newOfferingFixture()

	_, err := svc.SetAssessments(context.Background(), "off-1", SetAssessmentsRequest{
		Assessments: []AssessmentInput{{Name: "Viva", Weight: intPtr(100)}},
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestOfferingServiceSetAssessmentsOfferingNotFound(t *testing.T) {
	svc, _, _ := newOfferingFixture()

	_, err := svc.SetAssessments(context.Background(), "off-missing", SetAssessmentsRequest{
		Assessments: []AssessmentInput{{Name: "Exam", Weight: intPtr(100), MaxScore: floatPtr(100)}},
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestOfferingServiceCreateValidatesLecturers(t *testing.T) {
	repo := &mockOfferingRepo{}
	courses := &mockCourseReader{course: &models.Course{ID: "crs-1", Code: "CS101"}}
	users := &mockUserReader{users: map[string]*models.User{
		"lec-1": {ID: "lec-1", Role: models.RoleLecturer},
		"stu-1": {ID: "stu-1", Role: models.RoleStudent},
	}}
	svc := NewOfferingService(repo, courses, users, nil, nil, nil)

	_, err := svc.Create(context.Background(), CreateOfferingRequest{
		CourseID: "crs-1", Term: "fall", Year: 2026, LecturerIDs: []string{"stu-1"},
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	offering, err := svc.Create(context.Background(), CreateOfferingRequest{
		CourseID: "crs-1", Term: "fall", Year: 2026, LecturerIDs: []string{"lec-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "FALL", offering.Term)
}

func TestDefaultAssessmentMaxScore(t *testing.T) {
	maxScore, ok := DefaultAssessmentMaxScore("  Final Exam ")
	assert.True(t, ok)
	assert.Equal(t, 30.0, maxScore)

	_, ok = DefaultAssessmentMaxScore("Viva")
	assert.False(t, ok)
}
