package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/acadterm/gradebook-api/internal/models"
)

func newOfferingRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestOfferingRepositoryReplaceAssessments(t *testing.T) {
	db, mock, cleanup := newOfferingRepoMock(t)
	defer cleanup()
	repo := NewOfferingRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("off-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM assessments WHERE offering_id = $1")).
		WithArgs("off-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO assessments")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO assessments")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE course_offerings SET updated_at")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assessments := []models.Assessment{
		{Name: "CAT", Weight: 30, MaxScore: 30},
		{Name: "Exam", Weight: 70, MaxScore: 70},
	}
	err := repo.ReplaceAssessments(context.Background(), "off-1", assessments)
	require.NoError(t, err)
	require.NotEmpty(t, assessments[0].ID)
	require.Equal(t, 1, assessments[1].Position)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOfferingRepositoryIsLecturerAssigned(t *testing.T) {
	db, mock, cleanup := newOfferingRepoMock(t)
	defer cleanup()
	repo := NewOfferingRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM offering_lecturers WHERE offering_id = $1 AND lecturer_id = $2)")).
		WithArgs("off-1", "lec-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	assigned, err := repo.IsLecturerAssigned(context.Background(), "off-1", "lec-1")
	require.NoError(t, err)
	require.True(t, assigned)
	require.NoError(t, mock.ExpectationsWereMet())
}
