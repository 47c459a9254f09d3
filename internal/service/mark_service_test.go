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

type mockMarkRepo struct {
	upserted []models.Mark
}

func (m *mockMarkRepo) BulkUpsert(ctx context.Context, marks []models.Mark) error {
	m.upserted = marks
	return nil
}

func (m *mockMarkRepo) ListByOffering(ctx context.Context, offeringID string) ([]models.Mark, error) {
	return m.upserted, nil
}

func (m *mockMarkRepo) ListByStudentOffering(ctx context.Context, studentID, offeringID string) ([]models.Mark, error) {
	return nil, nil
}

type mockMarkOfferings struct {
	offerings map[string]*models.OfferingDetail
	assigned  map[string]bool
}

func (m *mockMarkOfferings) FindByID(ctx context.Context, id string) (*models.OfferingDetail, error) {
	offering, ok := m.offerings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return offering, nil
}

func (m *mockMarkOfferings) IsLecturerAssigned(ctx context.Context, offeringID, lecturerID string) (bool, error) {
	return m.assigned[offeringID], nil
}

func newMarkFixture(assigned bool) (*MarkService, *mockMarkRepo, *mockAuditWriter) {
	repo := &mockMarkRepo{}
	offerings := &mockMarkOfferings{
		assigned: map[string]bool{"off-1": assigned, "off-2": assigned},
		offerings: map[string]*models.OfferingDetail{
			"off-1": {
				CourseOffering: models.CourseOffering{ID: "off-1", Term: "FALL", Year: 2026},
				Assessments: []models.Assessment{
					{ID: "ass-cat", OfferingID: "off-1", Name: "CAT", Weight: 30, MaxScore: 30},
					{ID: "ass-exam", OfferingID: "off-1", Name: "Exam", Weight: 70, MaxScore: 70},
				},
			},
			"off-2": {
				CourseOffering: models.CourseOffering{ID: "off-2", Term: "FALL", Year: 2026},
				Assessments: []models.Assessment{
					{ID: "ass-quiz", OfferingID: "off-2", Name: "Quiz", Weight: 100, MaxScore: 15},
				},
			},
		},
	}
	audits := &mockAuditWriter{}
	svc := NewMarkService(repo, offerings, audits, nil, nil, nil, nil)
	return svc, repo, audits
}

func TestMarkServicePostMarks(t *testing.T) {
	svc, repo, audits := newMarkFixture(true)

	result, failures, err := svc.PostMarks(context.Background(), "lec-1", PostMarksRequest{
		Entries: []models.MarkEntry{
			{OfferingID: "off-1", StudentID: "stu-1", AssessmentID: "ass-cat", Score: 24},
			{OfferingID: "off-1", StudentID: "stu-2", AssessmentID: "ass-cat", Score: 18},
			{OfferingID: "off-1", StudentID: "stu-1", AssessmentID: "ass-exam", Score: 55.5},
		},
	})
	require.NoError(t, err)
	assert.Empty(t, failures)
	assert.Equal(t, 3, result.Posted)
	require.Len(t, repo.upserted, 3)
	assert.Equal(t, "lec-1", repo.upserted[0].LecturerID)
	assert.Equal(t, "off-1", repo.upserted[0].OfferingID)
	require.Len(t, audits.logs, 1)
	assert.Equal(t, models.AuditActionMarksPost, audits.logs[0].Action)
}

func TestMarkServicePostMarksSpansOfferings(t *testing.T) {
	svc, repo, _ := newMarkFixture(true)

	result, failures, err := svc.PostMarks(context.Background(), "lec-1", PostMarksRequest{
		Entries: []models.MarkEntry{
			{OfferingID: "off-1", StudentID: "stu-1", AssessmentID: "ass-cat", Score: 24},
			{OfferingID: "off-2", StudentID: "stu-1", AssessmentID: "ass-quiz", Score: 12},
		},
	})
	require.NoError(t, err)
	assert.Empty(t, failures)
	assert.Equal(t, 2, result.Posted)
	require.Len(t, repo.upserted, 2)
	assert.Equal(t, "off-1", repo.upserted[0].OfferingID)
	assert.Equal(t, "off-2", repo.upserted[1].OfferingID)
}

func TestMarkServicePostMarksRejectsUnassignedLecturer(t *testing.T) {
	svc, repo, _ := newMarkFixture(false)

	_, _, err := svc.PostMarks(context.Background(), "lec-other", PostMarksRequest{
		Entries: []models.MarkEntry{{OfferingID: "off-1", StudentID: "stu-1", AssessmentID: "ass-cat", Score: 10}},
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotAssigned.Code, appErr.Code)
	assert.Empty(t, repo.upserted)
}

func TestMarkServicePostMarksUnknownOffering(t *testing.T) {
	svc, repo, _ := newMarkFixture(true)

	_, _, err := svc.PostMarks(context.Background(), "lec-1", PostMarksRequest{
		Entries: []models.MarkEntry{{OfferingID: "off-missing", StudentID: "stu-1", AssessmentID: "ass-cat", Score: 10}},
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	assert.Empty(t, repo.upserted)
}

func TestMarkServicePostMarksAllOrNothing(t *testing.T) {
	svc, repo, _ := newMarkFixture(true)

	result, failures, err := svc.PostMarks(context.Background(), "lec-1", PostMarksRequest{
		Entries: []models.MarkEntry{
			{OfferingID: "off-1", StudentID: "stu-1", AssessmentID: "ass-cat", Score: 24},
			{OfferingID: "off-1", StudentID: "stu-1", AssessmentID: "ass-unknown", Score: 5},
			{OfferingID: "off-1", StudentID: "stu-2", AssessmentID: "ass-exam", Score: 80},
		},
	})
	require.Error(t, err)
	assert.Nil(t, result)
	require.Len(t, failures, 2)
	assert.Equal(t, "assessment not in offering plan", failures[0].Reason)
	assert.Contains(t, failures[1].Reason, "score out of range")
	assert.Empty(t, repo.upserted)
}

func TestMarkServicePostMarksAcceptsUnenrolledStudent(t *testing.T) {
	svc, repo, _ := newMarkFixture(true)

	result, failures, err := svc.PostMarks(context.Background(), "lec-1", PostMarksRequest{
		Entries: []models.MarkEntry{
			{OfferingID: "off-1", StudentID: "stu-unrostered", AssessmentID: "ass-cat", Score: 20},
		},
	})
	require.NoError(t, err)
	assert.Empty(t, failures)
	assert.Equal(t, 1, result.Posted)
	require.Len(t, repo.upserted, 1)
	assert.Equal(t, "stu-unrostered", repo.upserted[0].StudentID)
}

func TestMarkServicePostMarksRepeatedPairLastWriteWins(t *testing.T) {
	svc, repo, _ := newMarkFixture(true)

	result, failures, err := svc.PostMarks(context.Background(), "lec-1", PostMarksRequest{
		Entries: []models.MarkEntry{
			{OfferingID: "off-1", StudentID: "stu-1", AssessmentID: "ass-cat", Score: 24},
			{OfferingID: "off-1", StudentID: "stu-1", AssessmentID: "ass-cat", Score: 26},
		},
	})
	require.NoError(t, err)
	assert.Empty(t, failures)
	assert.Equal(t, 2, result.Posted)
	// both rows reach the upsert; the later one overwrites on conflict
	require.Len(t, repo.upserted, 2)
	assert.Equal(t, 26.0, repo.upserted[1].Score)
}

func TestMarkServicePostMarksBoundaryScores(t *testing.T) {
	svc, repo, _ := newMarkFixture(true)

	result, failures, err := svc.PostMarks(context.Background(), "lec-1", PostMarksRequest{
		Entries: []models.MarkEntry{
			{OfferingID: "off-1", StudentID: "stu-1", AssessmentID: "ass-cat", Score: 0},
			{OfferingID: "off-1", StudentID: "stu-2", AssessmentID: "ass-cat", Score: 30},
		},
	})
	require.NoError(t, err)
	assert.Empty(t, failures)
	assert.Equal(t, 2, result.Posted)
	assert.Len(t, repo.upserted, 2)
}

func TestMarkServiceListForOffering(t *testing.T) {
	svc, _, _ := newMarkFixture(false)

	_, err := svc.ListForOffering(context.Background(), "lec-other", "off-1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotAssigned.Code, appErr.Code)
}
