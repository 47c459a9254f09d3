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

type mockEnrollmentRepo struct {
	createErr  error
	created    *models.Enrollment
	enrollment *models.Enrollment
	deleted    []string
}

func (m *mockEnrollmentRepo) CreateWithTermCap(ctx context.Context, enrollment *models.Enrollment, term string, year, cap int) error {
	if m.createErr != nil {
		return m.createErr
	}
	enrollment.ID = "enr-created"
	m.created = enrollment
	return nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if m.enrollment == nil || m.enrollment.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.enrollment, nil
}

func (m *mockEnrollmentRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockEnrollmentRepo) ListByStudentTerm(ctx context.Context, studentID, term string, year int) ([]models.EnrollmentDetail, error) {
	return nil, nil
}

func (m *mockEnrollmentRepo) ListByOffering(ctx context.Context, offeringID string) ([]models.EnrollmentDetail, error) {
	return nil, nil
}

type mockEnrollmentOfferings struct {
	offering *models.OfferingDetail
}

func (m *mockEnrollmentOfferings) FindByID(ctx context.Context, id string) (*models.OfferingDetail, error) {
	if m.offering == nil || m.offering.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.offering, nil
}

type mockAuditWriter struct {
	logs []*models.AuditLog
}

func (m *mockAuditWriter) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

func newEnrollmentFixture(repo *mockEnrollmentRepo) (*EnrollmentService, *mockAuditWriter, *mockInvalidator) {
	offerings := &mockEnrollmentOfferings{offering: &models.OfferingDetail{
		CourseOffering: models.CourseOffering{ID: "off-1", Term: "FALL", Year: 2026},
		LecturerIDs:    []string{"lec-1", "lec-2"},
	}}
	audits := &mockAuditWriter{}
	cache := &mockInvalidator{}
	svc := NewEnrollmentService(repo, offerings, audits, cache, 5, nil, nil)
	return svc, audits, cache
}

func TestEnrollmentServiceEnroll(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	svc, audits, cache := newEnrollmentFixture(repo)

	enrollment, err := svc.Enroll(context.Background(), "stu-1", EnrollRequest{
		OfferingID: "off-1", ChosenLecturerID: "lec-2",
	})
	require.NoError(t, err)
	assert.Equal(t, "enr-created", enrollment.ID)
	assert.Equal(t, "stu-1", repo.created.StudentID)
	assert.Len(t, audits.logs, 1)
	assert.Equal(t, models.AuditActionEnroll, audits.logs[0].Action)
	assert.Equal(t, 1, cache.studentCalls)
}

func TestEnrollmentServiceEnrollRejectsUnassignedLecturer(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	svc, _, _ := newEnrollmentFixture(repo)

	_, err := svc.Enroll(context.Background(), "stu-1", EnrollRequest{
		OfferingID: "off-1", ChosenLecturerID: "lec-999",
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Nil(t, repo.created)
}

func TestEnrollmentServiceEnrollPropagatesCapError(t *testing.T) {
	repo := &mockEnrollmentRepo{createErr: appErrors.ErrEnrollmentCap}
	svc, audits, _ := newEnrollmentFixture(repo)

	_, err := svc.Enroll(context.Background(), "stu-1", EnrollRequest{
		OfferingID: "off-1", ChosenLecturerID: "lec-1",
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrEnrollmentCap.Code, appErr.Code)
	assert.Empty(t, audits.logs)
}

func TestEnrollmentServiceEnrollPropagatesDuplicate(t *testing.T) {
	repo := &mockEnrollmentRepo{createErr: appErrors.ErrDuplicateEnrollment}
	svc, _, _ := newEnrollmentFixture(repo)

	_, err := svc.Enroll(context.Background(), "stu-1", EnrollRequest{
		OfferingID: "off-1", ChosenLecturerID: "lec-1",
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrDuplicateEnrollment.Code, appErr.Code)
}

func TestEnrollmentServiceEnrollOfferingNotFound(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	svc, _, _ := newEnrollmentFixture(repo)

	_, err := svc.Enroll(context.Background(), "stu-1", EnrollRequest{
		OfferingID: "off-missing", ChosenLecturerID: "lec-1",
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestEnrollmentServiceUnenrollOwnerOnly(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollment: &models.Enrollment{
		ID: "enr-1", StudentID: "stu-1", OfferingID: "off-1",
	}}
	svc, _, _ := newEnrollmentFixture(repo)

	err := svc.Unenroll(context.Background(), "stu-2", "enr-1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	assert.Empty(t, repo.deleted)
}

func TestEnrollmentServiceUnenroll(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollment: &models.Enrollment{
		ID: "enr-1", StudentID: "stu-1", OfferingID: "off-1",
	}}
	svc, audits, cache := newEnrollmentFixture(repo)

	err := svc.Unenroll(context.Background(), "stu-1", "enr-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"enr-1"}, repo.deleted)
	require.Len(t, audits.logs, 1)
	assert.Equal(t, models.AuditActionUnenroll, audits.logs[0].Action)
	assert.Equal(t, 1, cache.studentCalls)
}
