package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/acadterm/gradebook-api/internal/models"
	appErrors "github.com/acadterm/gradebook-api/pkg/errors"
)

func newEnrollmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestEnrollmentRepositoryCreateWithTermCap(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("stu-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments e")).
		WithArgs("stu-1", "FALL", 2026).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	enrollment := &models.Enrollment{StudentID: "stu-1", OfferingID: "off-1", ChosenLecturerID: "lec-1"}
	err := repo.CreateWithTermCap(context.Background(), enrollment, "FALL", 2026, 5)
	require.NoError(t, err)
	require.NotEmpty(t, enrollment.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateWithTermCapAtLimit(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("stu-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments e")).
		WithArgs("stu-1", "FALL", 2026).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectRollback()

	enrollment := &models.Enrollment{StudentID: "stu-1", OfferingID: "off-1", ChosenLecturerID: "lec-1"}
	err := repo.CreateWithTermCap(context.Background(), enrollment, "FALL", 2026, 5)
	require.ErrorIs(t, err, appErrors.ErrEnrollmentCap)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListByStudentTerm(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "offering_id", "chosen_lecturer_id", "created_at", "course_code", "course_name", "credits", "term", "year", "student_name", "student_reg_no"}).
		AddRow("enr-1", "stu-1", "off-1", "lec-1", time.Now(), "CS101", "Intro to Computing", 3, "FALL", 2026, "Ada Student", "REG-001")
	mock.ExpectQuery("SELECT e.id, e.student_id, e.offering_id").
		WithArgs("stu-1", "FALL", 2026).
		WillReturnRows(rows)

	enrollments, err := repo.ListByStudentTerm(context.Background(), "stu-1", "FALL", 2026)
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	require.Equal(t, "CS101", enrollments[0].CourseCode)
	require.NoError(t, mock.ExpectationsWereMet())
}
