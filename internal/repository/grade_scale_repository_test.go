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
)

func newGradeScaleRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestGradeScaleRepositoryList(t *testing.T) {
	db, mock, cleanup := newGradeScaleRepoMock(t)
	defer cleanup()
	repo := NewGradeScaleRepository(db)

	rows := sqlmock.NewRows([]string{"id", "letter", "min_percent", "max_percent", "points", "created_at"}).
		AddRow("gb-1", "A", 90.0, 100.0, 4.0, time.Now()).
		AddRow("gb-2", "F", 0.0, 59.0, 0.0, time.Now())
	mock.ExpectQuery("SELECT id, letter, min_percent, max_percent, points").
		WillReturnRows(rows)

	bands, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, bands, 2)
	require.Equal(t, "A", bands[0].Letter)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeScaleRepositoryReplaceAll(t *testing.T) {
	db, mock, cleanup := newGradeScaleRepoMock(t)
	defer cleanup()
	repo := NewGradeScaleRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM grade_scale")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grade_scale")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grade_scale")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	bands := []models.GradeBand{
		{Letter: "P", MinPercent: 50, MaxPercent: 100, Points: 4},
		{Letter: "F", MinPercent: 0, MaxPercent: 49, Points: 0},
	}
	err := repo.ReplaceAll(context.Background(), bands)
	require.NoError(t, err)
	require.NotEmpty(t, bands[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
