package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/acadterm/gradebook-api/internal/models"
	appErrors "github.com/acadterm/gradebook-api/pkg/errors"
)

func newMarkRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func expectPlanCheck(mock sqlmock.Sqlmock, rows *sqlmock.Rows) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, offering_id, max_score FROM assessments WHERE offering_id = ANY($1)")).
		WillReturnRows(rows)
}

func planRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "offering_id", "max_score"})
}

func TestMarkRepositoryBulkUpsert(t *testing.T) {
	db, mock, cleanup := newMarkRepoMock(t)
	defer cleanup()
	repo := NewMarkRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("off-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	expectPlanCheck(mock, planRows().AddRow("ass-1", "off-1", 30.0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO marks")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO marks")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	marks := []models.Mark{
		{AssessmentID: "ass-1", OfferingID: "off-1", StudentID: "stu-1", LecturerID: "lec-1", Score: 24},
		{AssessmentID: "ass-1", OfferingID: "off-1", StudentID: "stu-2", LecturerID: "lec-1", Score: 27},
	}
	err := repo.BulkUpsert(context.Background(), marks)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRepositoryBulkUpsertRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newMarkRepoMock(t)
	defer cleanup()
	repo := NewMarkRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("off-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	expectPlanCheck(mock, planRows().AddRow("ass-1", "off-1", 30.0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO marks")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO marks")).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	marks := []models.Mark{
		{AssessmentID: "ass-1", OfferingID: "off-1", StudentID: "stu-1", LecturerID: "lec-1", Score: 24},
		{AssessmentID: "ass-1", OfferingID: "off-1", StudentID: "stu-2", LecturerID: "lec-1", Score: 27},
	}
	err := repo.BulkUpsert(context.Background(), marks)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRepositoryBulkUpsertRejectsSwappedPlan(t *testing.T) {
	db, mock, cleanup := newMarkRepoMock(t)
	defer cleanup()
	repo := NewMarkRepository(db)

	// the plan read under the lock no longer contains ass-old, as if
	// a concurrent replacement committed first
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("off-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	expectPlanCheck(mock, planRows().AddRow("ass-new", "off-1", 50.0))
	mock.ExpectRollback()

	marks := []models.Mark{
		{AssessmentID: "ass-old", OfferingID: "off-1", StudentID: "stu-1", LecturerID: "lec-1", Score: 24},
	}
	err := repo.BulkUpsert(context.Background(), marks)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRepositoryBulkUpsertRejectsShrunkMaxScore(t *testing.T) {
	db, mock, cleanup := newMarkRepoMock(t)
	defer cleanup()
	repo := NewMarkRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("off-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	expectPlanCheck(mock, planRows().AddRow("ass-1", "off-1", 20.0))
	mock.ExpectRollback()

	marks := []models.Mark{
		{AssessmentID: "ass-1", OfferingID: "off-1", StudentID: "stu-1", LecturerID: "lec-1", Score: 24},
	}
	err := repo.BulkUpsert(context.Background(), marks)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRepositoryListByStudentOffering(t *testing.T) {
	db, mock, cleanup := newMarkRepoMock(t)
	defer cleanup()
	repo := NewMarkRepository(db)

	rows := sqlmock.NewRows([]string{"id", "assessment_id", "offering_id", "student_id", "lecturer_id", "score", "created_at", "updated_at"}).
		AddRow("mrk-1", "ass-1", "off-1", "stu-1", "lec-1", 24.0, time.Now(), time.Now())
	mock.ExpectQuery("SELECT id, assessment_id, offering_id, student_id").
		WithArgs("stu-1", "off-1").
		WillReturnRows(rows)

	marks, err := repo.ListByStudentOffering(context.Background(), "stu-1", "off-1")
	require.NoError(t, err)
	require.Len(t, marks, 1)
	require.Equal(t, 24.0, marks[0].Score)
	require.NoError(t, mock.ExpectationsWereMet())
}
