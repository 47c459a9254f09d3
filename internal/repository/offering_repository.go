package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/acadterm/gradebook-api/internal/models"
)

// OfferingRepository handles course offering and assessment plan
// persistence.
type OfferingRepository struct {
	db *sqlx.DB
}

// NewOfferingRepository creates a new offering repository.
func NewOfferingRepository(db *sqlx.DB) *OfferingRepository {
	return &OfferingRepository{db: db}
}

const offeringDetailColumns = `o.id, o.course_id, o.term, o.year, o.capacity, o.created_at, o.updated_at,
        c.code AS course_code, c.name AS course_name, c.credits`

// FindByID returns an offering joined with its course, lecturers and
// assessment plan.
func (r *OfferingRepository) FindByID(ctx context.Context, id string) (*models.OfferingDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM course_offerings o JOIN courses c ON c.id = o.course_id WHERE o.id = $1 LIMIT 1`, offeringDetailColumns)
	var detail models.OfferingDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find offering by id: %w", err)
	}

	const lecturerQuery = `SELECT lecturer_id FROM offering_lecturers WHERE offering_id = $1 ORDER BY lecturer_id`
	if err := r.db.SelectContext(ctx, &detail.LecturerIDs, lecturerQuery, id); err != nil {
		return nil, fmt.Errorf("load offering lecturers: %w", err)
	}

	assessments, err := r.ListAssessments(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.Assessments = assessments
	return &detail, nil
}

// List returns offerings matching the filter with total count.
func (r *OfferingRepository) List(ctx context.Context, filter models.OfferingFilter) ([]models.OfferingDetail, int, error) {
	baseQuery := `FROM course_offerings o JOIN courses c ON c.id = o.course_id WHERE 1=1`
	var args []interface{}

	if filter.Term != "" {
		baseQuery += fmt.Sprintf(" AND o.term = $%d", len(args)+1)
		args = append(args, filter.Term)
	}
	if filter.Year != 0 {
		baseQuery += fmt.Sprintf(" AND o.year = $%d", len(args)+1)
		args = append(args, filter.Year)
	}
	if filter.CourseID != "" {
		baseQuery += fmt.Sprintf(" AND o.course_id = $%d", len(args)+1)
		args = append(args, filter.CourseID)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY c.code ASC LIMIT %d OFFSET %d", offeringDetailColumns, baseQuery, limit, offset)
	var offerings []models.OfferingDetail
	if err := r.db.SelectContext(ctx, &offerings, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list offerings: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count offerings: %w", err)
	}

	return offerings, total, nil
}

// ListByTerm returns every offering for a term and year, unpaginated.
// Term-wide aggregation reads through here so no offering is dropped.
func (r *OfferingRepository) ListByTerm(ctx context.Context, term string, year int) ([]models.OfferingDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM course_offerings o
        JOIN courses c ON c.id = o.course_id
        WHERE o.term = $1 AND o.year = $2
        ORDER BY c.code ASC`, offeringDetailColumns)
	var offerings []models.OfferingDetail
	if err := r.db.SelectContext(ctx, &offerings, query, term, year); err != nil {
		return nil, fmt.Errorf("list offerings by term: %w", err)
	}
	return offerings, nil
}

// ListByLecturer returns offerings the lecturer is assigned to for a
// term and year.
func (r *OfferingRepository) ListByLecturer(ctx context.Context, lecturerID, term string, year int) ([]models.OfferingDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM course_offerings o
        JOIN courses c ON c.id = o.course_id
        JOIN offering_lecturers ol ON ol.offering_id = o.id
        WHERE ol.lecturer_id = $1 AND o.term = $2 AND o.year = $3
        ORDER BY c.code ASC`, offeringDetailColumns)
	var offerings []models.OfferingDetail
	if err := r.db.SelectContext(ctx, &offerings, query, lecturerID, term, year); err != nil {
		return nil, fmt.Errorf("list offerings by lecturer: %w", err)
	}
	return offerings, nil
}

// Create inserts an offering together with its lecturer assignments.
func (r *OfferingRepository) Create(ctx context.Context, offering *models.CourseOffering, lecturerIDs []string) error {
	if offering.ID == "" {
		offering.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if offering.CreatedAt.IsZero() {
		offering.CreatedAt = now
	}
	offering.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	const query = `INSERT INTO course_offerings (id, course_id, term, year, capacity, created_at, updated_at)
        VALUES (:id, :course_id, :term, :year, :capacity, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, offering); err != nil {
		tx.Rollback() //nolint:errcheck
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return err
		}
		return fmt.Errorf("create offering: %w", err)
	}

	const assignQuery = `INSERT INTO offering_lecturers (offering_id, lecturer_id) VALUES ($1, $2)`
	for _, lecturerID := range lecturerIDs {
		if _, err := tx.ExecContext(ctx, assignQuery, offering.ID, lecturerID); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("assign lecturer: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit offering: %w", err)
	}
	return nil
}

// IsLecturerAssigned reports whether the lecturer teaches the offering.
func (r *OfferingRepository) IsLecturerAssigned(ctx context.Context, offeringID, lecturerID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM offering_lecturers WHERE offering_id = $1 AND lecturer_id = $2)`
	var assigned bool
	if err := r.db.GetContext(ctx, &assigned, query, offeringID, lecturerID); err != nil {
		return false, fmt.Errorf("check lecturer assignment: %w", err)
	}
	return assigned, nil
}

// ListAssessments returns the current assessment plan ordered by
// position.
func (r *OfferingRepository) ListAssessments(ctx context.Context, offeringID string) ([]models.Assessment, error) {
	const query = `SELECT id, offering_id, name, weight, max_score, position, created_at
        FROM assessments WHERE offering_id = $1 ORDER BY position ASC`
	var assessments []models.Assessment
	if err := r.db.SelectContext(ctx, &assessments, query, offeringID); err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	return assessments, nil
}

// ListAssessmentsByOfferings returns assessment plans keyed by
// offering ID.
func (r *OfferingRepository) ListAssessmentsByOfferings(ctx context.Context, offeringIDs []string) (map[string][]models.Assessment, error) {
	if len(offeringIDs) == 0 {
		return map[string][]models.Assessment{}, nil
	}
	const query = `SELECT id, offering_id, name, weight, max_score, position, created_at
        FROM assessments WHERE offering_id = ANY($1) ORDER BY offering_id, position ASC`
	rows, err := r.db.QueryxContext(ctx, query, pq.Array(offeringIDs))
	if err != nil {
		return nil, fmt.Errorf("fetch assessments: %w", err)
	}
	defer rows.Close()
	result := make(map[string][]models.Assessment, len(offeringIDs))
	for rows.Next() {
		var a models.Assessment
		if err := rows.StructScan(&a); err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		result[a.OfferingID] = append(result[a.OfferingID], a)
	}
	return result, nil
}

// ReplaceAssessments atomically replaces the offering's assessment
// plan. The transaction takes a per-offering advisory lock so mark
// batches against the same offering observe either the old plan or
// the new one, never a mix. Existing marks are left untouched even
// when their assessment row disappears.
func (r *OfferingRepository) ReplaceAssessments(ctx context.Context, offeringID string, assessments []models.Assessment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, offeringID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("lock offering: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM assessments WHERE offering_id = $1`, offeringID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("clear assessment plan: %w", err)
	}

	now := time.Now().UTC()
	const insertQuery = `INSERT INTO assessments (id, offering_id, name, weight, max_score, position, created_at)
        VALUES (:id, :offering_id, :name, :weight, :max_score, :position, :created_at)`
	for i := range assessments {
		if assessments[i].ID == "" {
			assessments[i].ID = uuid.NewString()
		}
		assessments[i].OfferingID = offeringID
		assessments[i].Position = i
		assessments[i].CreatedAt = now
		if _, err := tx.NamedExecContext(ctx, insertQuery, assessments[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("insert assessment: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE course_offerings SET updated_at = $2 WHERE id = $1`, offeringID, now); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("touch offering: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit assessment plan: %w", err)
	}
	return nil
}
