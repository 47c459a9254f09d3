package models

import "time"

// CourseOffering represents a course taught in a specific term and year.
type CourseOffering struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	Term      string    `db:"term" json:"term"`
	Year      int       `db:"year" json:"year"`
	Capacity  *int      `db:"capacity" json:"capacity,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Assessment represents one graded component of an offering's
// assessment plan. Weight is an integer percentage; the plan's
// weights must sum to exactly 100.
type Assessment struct {
	ID         string    `db:"id" json:"id"`
	OfferingID string    `db:"offering_id" json:"offering_id"`
	Name       string    `db:"name" json:"name"`
	Weight     int       `db:"weight" json:"weight"`
	MaxScore   float64   `db:"max_score" json:"max_score"`
	Position   int       `db:"position" json:"position"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// OfferingDetail is an offering joined with its course, lecturers and
// current assessment plan.
type OfferingDetail struct {
	CourseOffering
	CourseCode  string       `db:"course_code" json:"course_code"`
	CourseName  string       `db:"course_name" json:"course_name"`
	Credits     int          `db:"credits" json:"credits"`
	LecturerIDs []string     `json:"lecturer_ids"`
	Assessments []Assessment `json:"assessments"`
}

// OfferingFilter represents filter parameters for offering queries.
type OfferingFilter struct {
	Term     string `form:"term"`
	Year     int    `form:"year"`
	CourseID string `form:"course_id"`
	Page     int    `form:"page,default=1"`
	Limit    int    `form:"limit,default=20"`
}
