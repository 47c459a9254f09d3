package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acadterm/gradebook-api/internal/models"
	appErrors "github.com/acadterm/gradebook-api/pkg/errors"
)

type mockGradeScaleRepo struct {
	bands    []models.GradeBand
	replaced []models.GradeBand
}

func (m *mockGradeScaleRepo) List(ctx context.Context) ([]models.GradeBand, error) {
	return m.bands, nil
}

func (m *mockGradeScaleRepo) ReplaceAll(ctx context.Context, bands []models.GradeBand) error {
	m.replaced = bands
	return nil
}

func TestGradeScaleServiceReplace(t *testing.T) {
	repo := &mockGradeScaleRepo{}
	audits := &mockAuditWriter{}
	svc := NewGradeScaleService(repo, audits, nil, nil, nil)

	bands, err := svc.Replace(context.Background(), "adm-1", ReplaceGradeScaleRequest{
		Bands: []GradeBandInput{
			{Letter: "A", MinPercent: 80, MaxPercent: 100, Points: 4.0},
			{Letter: "B", MinPercent: 60, MaxPercent: 79, Points: 3.0},
			{Letter: "F", MinPercent: 0, MaxPercent: 59, Points: 0.0},
		},
	})
	require.NoError(t, err)
	assert.Len(t, bands, 3)
	assert.Len(t, repo.replaced, 3)
	require.Len(t, audits.logs, 1)
	assert.Equal(t, models.AuditActionGradeScaleReplace, audits.logs[0].Action)
}

func TestGradeScaleServiceReplaceRejectsOverlap(t *testing.T) {
	repo := &mockGradeScaleRepo{}
	svc := NewGradeScaleService(repo, &mockAuditWriter{}, nil, nil, nil)

	_, err := svc.Replace(context.Background(), "adm-1", ReplaceGradeScaleRequest{
		Bands: []GradeBandInput{
			{Letter: "A", MinPercent: 75, MaxPercent: 100, Points: 4.0},
			{Letter: "B", MinPercent: 60, MaxPercent: 80, Points: 3.0},
		},
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Nil(t, repo.replaced)
}

func TestGradeScaleServiceReplaceRejectsInvertedBand(t *testing.T) {
	svc := NewGradeScaleService(&mockGradeScaleRepo{}, &mockAuditWriter{}, nil, nil, nil)

	_, err := svc.Replace(context.Background(), "adm-1", ReplaceGradeScaleRequest{
		Bands: []GradeBandInput{{Letter: "A", MinPercent: 90, MaxPercent: 80, Points: 4.0}},
	})
	require.Error(t, err)
}

func TestGradeScaleServiceReplaceRejectsDuplicateLetters(t *testing.T) {
	svc := NewGradeScaleService(&mockGradeScaleRepo{}, &mockAuditWriter{}, nil, nil, nil)

	_, err := svc.Replace(context.Background(), "adm-1", ReplaceGradeScaleRequest{
		Bands: []GradeBandInput{
			{Letter: "A", MinPercent: 90, MaxPercent: 100, Points: 4.0},
			{Letter: "A", MinPercent: 80, MaxPercent: 89, Points: 3.7},
		},
	})
	require.Error(t, err)
}

func TestGradeScaleServiceSeedsEmptyTable(t *testing.T) {
	repo := &mockGradeScaleRepo{}
	svc := NewGradeScaleService(repo, &mockAuditWriter{}, nil, nil, nil)

	require.NoError(t, svc.EnsureSeeded(context.Background()))
	require.Len(t, repo.replaced, 12)
	assert.Equal(t, "A", repo.replaced[0].Letter)
	assert.Equal(t, "F", repo.replaced[11].Letter)
}

func TestGradeScaleServiceSeedSkipsPopulatedTable(t *testing.T) {
	repo := &mockGradeScaleRepo{bands: models.DefaultGradeScale()[:3]}
	svc := NewGradeScaleService(repo, &mockAuditWriter{}, nil, nil, nil)

	require.NoError(t, svc.EnsureSeeded(context.Background()))
	assert.Nil(t, repo.replaced)
}

func TestGradeScaleServiceReplaceAllowsGaps(t *testing.T) {
	repo := &mockGradeScaleRepo{}
	svc := NewGradeScaleService(repo, &mockAuditWriter{}, nil, nil, nil)

	bands, err := svc.Replace(context.Background(), "adm-1", ReplaceGradeScaleRequest{
		Bands: []GradeBandInput{
			{Letter: "P", MinPercent: 50, MaxPercent: 100, Points: 4.0},
			{Letter: "F", MinPercent: 0, MaxPercent: 40, Points: 0.0},
		},
	})
	require.NoError(t, err)
	assert.Len(t, bands, 2)
}
