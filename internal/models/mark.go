package models

import "time"

// Mark represents a score recorded for a student against an
// assessment. Marks are keyed by (assessment, student); posting the
// same pair again replaces the score.
type Mark struct {
	ID           string    `db:"id" json:"id"`
	AssessmentID string    `db:"assessment_id" json:"assessment_id"`
	OfferingID   string    `db:"offering_id" json:"offering_id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	LecturerID   string    `db:"lecturer_id" json:"lecturer_id"`
	Score        float64   `db:"score" json:"score"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// MarkEntry is one row of a batch mark posting. Entries in one batch
// may target different offerings.
type MarkEntry struct {
	OfferingID   string  `json:"offering_id" binding:"required" validate:"required"`
	StudentID    string  `json:"student_id" binding:"required" validate:"required"`
	AssessmentID string  `json:"assessment_id" binding:"required" validate:"required"`
	Score        float64 `json:"score"`
}
