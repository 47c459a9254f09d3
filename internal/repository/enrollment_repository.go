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
	appErrors "github.com/acadterm/gradebook-api/pkg/errors"
)

// EnrollmentRepository handles the enrollment ledger.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository creates a new enrollment repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// CreateWithTermCap inserts an enrollment while holding a per-student
// advisory lock, re-checking the student's enrollment count for the
// term inside the transaction so concurrent requests cannot push the
// student past the cap. A violation of the (student, offering) unique
// index surfaces as ErrDuplicateEnrollment.
func (r *EnrollmentRepository) CreateWithTermCap(ctx context.Context, enrollment *models.Enrollment, term string, year, cap int) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, enrollment.StudentID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("lock student: %w", err)
	}

	const countQuery = `SELECT COUNT(*) FROM enrollments e
        JOIN course_offerings o ON o.id = e.offering_id
        WHERE e.student_id = $1 AND o.term = $2 AND o.year = $3`
	var count int
	if err := tx.GetContext(ctx, &count, countQuery, enrollment.StudentID, term, year); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("count term enrollments: %w", err)
	}
	if count >= cap {
		tx.Rollback() //nolint:errcheck
		return appErrors.ErrEnrollmentCap
	}

	const insertQuery = `INSERT INTO enrollments (id, student_id, offering_id, chosen_lecturer_id, created_at)
        VALUES (:id, :student_id, :offering_id, :chosen_lecturer_id, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertQuery, enrollment); err != nil {
		tx.Rollback() //nolint:errcheck
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return appErrors.ErrDuplicateEnrollment
		}
		return fmt.Errorf("create enrollment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment: %w", err)
	}
	return nil
}

// FindByID returns an enrollment by identifier.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, offering_id, chosen_lecturer_id, created_at FROM enrollments WHERE id = $1 LIMIT 1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment by id: %w", err)
	}
	return &enrollment, nil
}

// FindByStudentOffering returns the student's enrollment in an
// offering, if any.
func (r *EnrollmentRepository) FindByStudentOffering(ctx context.Context, studentID, offeringID string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, offering_id, chosen_lecturer_id, created_at FROM enrollments WHERE student_id = $1 AND offering_id = $2 LIMIT 1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, offeringID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	return &enrollment, nil
}

// Delete removes an enrollment. Marks recorded for the student stay
// in place.
func (r *EnrollmentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM enrollments WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	return nil
}

// ListByStudentTerm returns the student's enrollments for a term with
// course details.
func (r *EnrollmentRepository) ListByStudentTerm(ctx context.Context, studentID, term string, year int) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.offering_id, e.chosen_lecturer_id, e.created_at,
        c.code AS course_code, c.name AS course_name, c.credits, o.term, o.year,
        u.full_name AS student_name, COALESCE(u.reg_no, '') AS student_reg_no
        FROM enrollments e
        JOIN course_offerings o ON o.id = e.offering_id
        JOIN courses c ON c.id = o.course_id
        JOIN users u ON u.id = e.student_id
        WHERE e.student_id = $1 AND o.term = $2 AND o.year = $3
        ORDER BY c.code ASC`
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID, term, year); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return enrollments, nil
}

// ListByOffering returns the offering's roster ordered by student
// name.
func (r *EnrollmentRepository) ListByOffering(ctx context.Context, offeringID string) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.offering_id, e.chosen_lecturer_id, e.created_at,
        c.code AS course_code, c.name AS course_name, c.credits, o.term, o.year,
        u.full_name AS student_name, COALESCE(u.reg_no, '') AS student_reg_no
        FROM enrollments e
        JOIN course_offerings o ON o.id = e.offering_id
        JOIN courses c ON c.id = o.course_id
        JOIN users u ON u.id = e.student_id
        WHERE e.offering_id = $1
        ORDER BY u.full_name ASC`
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, offeringID); err != nil {
		return nil, fmt.Errorf("list offering roster: %w", err)
	}
	return enrollments, nil
}

// ListByOfferings returns rosters keyed by offering ID.
func (r *EnrollmentRepository) ListByOfferings(ctx context.Context, offeringIDs []string) (map[string][]models.EnrollmentDetail, error) {
	if len(offeringIDs) == 0 {
		return map[string][]models.EnrollmentDetail{}, nil
	}
	const query = `SELECT e.id, e.student_id, e.offering_id, e.chosen_lecturer_id, e.created_at,
        c.code AS course_code, c.name AS course_name, c.credits, o.term, o.year,
        u.full_name AS student_name, COALESCE(u.reg_no, '') AS student_reg_no
        FROM enrollments e
        JOIN course_offerings o ON o.id = e.offering_id
        JOIN courses c ON c.id = o.course_id
        JOIN users u ON u.id = e.student_id
        WHERE e.offering_id = ANY($1)
        ORDER BY u.full_name ASC`
	rows, err := r.db.QueryxContext(ctx, query, pq.Array(offeringIDs))
	if err != nil {
		return nil, fmt.Errorf("fetch rosters: %w", err)
	}
	defer rows.Close()
	result := make(map[string][]models.EnrollmentDetail, len(offeringIDs))
	for rows.Next() {
		var detail models.EnrollmentDetail
		if err := rows.StructScan(&detail); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		result[detail.OfferingID] = append(result[detail.OfferingID], detail)
	}
	return result, nil
}

// CountForTerm returns the student's enrollment count for a term.
func (r *EnrollmentRepository) CountForTerm(ctx context.Context, studentID, term string, year int) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments e
        JOIN course_offerings o ON o.id = e.offering_id
        WHERE e.student_id = $1 AND o.term = $2 AND o.year = $3`
	var count int
	if err := r.db.GetContext(ctx, &count, query, studentID, term, year); err != nil {
		return 0, fmt.Errorf("count term enrollments: %w", err)
	}
	return count, nil
}
