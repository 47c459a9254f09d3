package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/acadterm/gradebook-api/internal/models"
	appErrors "github.com/acadterm/gradebook-api/pkg/errors"
)

// MarkRepository handles mark persistence.
type MarkRepository struct {
	db *sqlx.DB
}

// NewMarkRepository creates a new mark repository.
func NewMarkRepository(db *sqlx.DB) *MarkRepository {
	return &MarkRepository{db: db}
}

// Upsert inserts or updates a single mark keyed by
// (assessment, student).
func (r *MarkRepository) Upsert(ctx context.Context, mark *models.Mark) error {
	if mark.ID == "" {
		mark.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if mark.CreatedAt.IsZero() {
		mark.CreatedAt = now
	}
	mark.UpdatedAt = now
	const query = `INSERT INTO marks (id, assessment_id, offering_id, student_id, lecturer_id, score, created_at, updated_at)
        VALUES (:id, :assessment_id, :offering_id, :student_id, :lecturer_id, :score, :created_at, :updated_at)
        ON CONFLICT (assessment_id, student_id)
        DO UPDATE SET score = EXCLUDED.score, lecturer_id = EXCLUDED.lecturer_id, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, mark); err != nil {
		return fmt.Errorf("upsert mark: %w", err)
	}
	return nil
}

// BulkUpsert inserts or updates a batch of marks in one transaction.
// Per-offering advisory locks are taken in sorted order so a batch
// never interleaves with an assessment plan replacement on the same
// offering. The plan is re-checked under the lock: an assessment that
// was swapped out after the caller validated the batch fails the
// whole posting instead of writing an orphaned mark. Any failure
// rolls back the entire batch.
func (r *MarkRepository) BulkUpsert(ctx context.Context, marks []models.Mark) error {
	if len(marks) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, 1)
	offeringIDs := make([]string, 0, 1)
	for i := range marks {
		if _, ok := seen[marks[i].OfferingID]; !ok {
			seen[marks[i].OfferingID] = struct{}{}
			offeringIDs = append(offeringIDs, marks[i].OfferingID)
		}
	}
	sort.Strings(offeringIDs)
	for _, offeringID := range offeringIDs {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, offeringID); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("lock offering: %w", err)
		}
	}

	type planRow struct {
		ID         string  `db:"id"`
		OfferingID string  `db:"offering_id"`
		MaxScore   float64 `db:"max_score"`
	}
	var plan []planRow
	if err := tx.SelectContext(ctx, &plan,
		`SELECT id, offering_id, max_score FROM assessments WHERE offering_id = ANY($1)`,
		pq.Array(offeringIDs)); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("load assessment plans: %w", err)
	}
	planByID := make(map[string]planRow, len(plan))
	for _, row := range plan {
		planByID[row.ID] = row
	}
	for i := range marks {
		row, ok := planByID[marks[i].AssessmentID]
		if !ok || row.OfferingID != marks[i].OfferingID {
			tx.Rollback() //nolint:errcheck
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("assessment %s is no longer in the offering plan", marks[i].AssessmentID))
		}
		if marks[i].Score < 0 || marks[i].Score > row.MaxScore {
			tx.Rollback() //nolint:errcheck
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("score for assessment %s is out of range 0..%g", marks[i].AssessmentID, row.MaxScore))
		}
	}

	const query = `INSERT INTO marks (id, assessment_id, offering_id, student_id, lecturer_id, score, created_at, updated_at)
        VALUES (:id, :assessment_id, :offering_id, :student_id, :lecturer_id, :score, :created_at, :updated_at)
        ON CONFLICT (assessment_id, student_id)
        DO UPDATE SET score = EXCLUDED.score, lecturer_id = EXCLUDED.lecturer_id, updated_at = EXCLUDED.updated_at`
	for i := range marks {
		if marks[i].ID == "" {
			marks[i].ID = uuid.NewString()
		}
		now := time.Now().UTC()
		if marks[i].CreatedAt.IsZero() {
			marks[i].CreatedAt = now
		}
		marks[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, marks[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("bulk upsert mark: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit marks: %w", err)
	}
	return nil
}

// ListByOffering returns all marks recorded against an offering.
func (r *MarkRepository) ListByOffering(ctx context.Context, offeringID string) ([]models.Mark, error) {
	const query = `SELECT id, assessment_id, offering_id, student_id, lecturer_id, score, created_at, updated_at
        FROM marks WHERE offering_id = $1 ORDER BY student_id, assessment_id`
	var marks []models.Mark
	if err := r.db.SelectContext(ctx, &marks, query, offeringID); err != nil {
		return nil, fmt.Errorf("list marks: %w", err)
	}
	return marks, nil
}

// ListByOfferings returns marks keyed by offering ID.
func (r *MarkRepository) ListByOfferings(ctx context.Context, offeringIDs []string) (map[string][]models.Mark, error) {
	if len(offeringIDs) == 0 {
		return map[string][]models.Mark{}, nil
	}
	const query = `SELECT id, assessment_id, offering_id, student_id, lecturer_id, score, created_at, updated_at
        FROM marks WHERE offering_id = ANY($1)`
	rows, err := r.db.QueryxContext(ctx, query, pq.Array(offeringIDs))
	if err != nil {
		return nil, fmt.Errorf("fetch marks: %w", err)
	}
	defer rows.Close()
	result := make(map[string][]models.Mark, len(offeringIDs))
	for rows.Next() {
		var mark models.Mark
		if err := rows.StructScan(&mark); err != nil {
			return nil, fmt.Errorf("scan mark: %w", err)
		}
		result[mark.OfferingID] = append(result[mark.OfferingID], mark)
	}
	return result, nil
}

// ListByStudentOffering returns a student's marks for one offering.
func (r *MarkRepository) ListByStudentOffering(ctx context.Context, studentID, offeringID string) ([]models.Mark, error) {
	const query = `SELECT id, assessment_id, offering_id, student_id, lecturer_id, score, created_at, updated_at
        FROM marks WHERE student_id = $1 AND offering_id = $2 ORDER BY assessment_id`
	var marks []models.Mark
	if err := r.db.SelectContext(ctx, &marks, query, studentID, offeringID); err != nil {
		return nil, fmt.Errorf("list student marks: %w", err)
	}
	return marks, nil
}
