package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acadterm/gradebook-api/internal/models"
)

// GradeScaleRepository persists the institution grade scale.
type GradeScaleRepository struct {
	db *sqlx.DB
}

// NewGradeScaleRepository creates a new grade scale repository.
func NewGradeScaleRepository(db *sqlx.DB) *GradeScaleRepository {
	return &GradeScaleRepository{db: db}
}

// List returns the grade scale ordered from highest band to lowest.
func (r *GradeScaleRepository) List(ctx context.Context) ([]models.GradeBand, error) {
	const query = `SELECT id, letter, min_percent, max_percent, points, created_at
        FROM grade_scale ORDER BY max_percent DESC`
	var bands []models.GradeBand
	if err := r.db.SelectContext(ctx, &bands, query); err != nil {
		return nil, fmt.Errorf("list grade scale: %w", err)
	}
	return bands, nil
}

// ReplaceAll swaps the entire grade scale in one transaction.
func (r *GradeScaleRepository) ReplaceAll(ctx context.Context, bands []models.GradeBand) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM grade_scale`); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("clear grade scale: %w", err)
	}

	now := time.Now().UTC()
	const insertQuery = `INSERT INTO grade_scale (id, letter, min_percent, max_percent, points, created_at)
        VALUES (:id, :letter, :min_percent, :max_percent, :points, :created_at)`
	for i := range bands {
		if bands[i].ID == "" {
			bands[i].ID = uuid.NewString()
		}
		bands[i].CreatedAt = now
		if _, err := tx.NamedExecContext(ctx, insertQuery, bands[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("insert grade band: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit grade scale: %w", err)
	}
	return nil
}
