package models

import "time"

// Enrollment represents a student's registration in an offering,
// including the lecturer the student chose from the offering's
// assigned lecturers.
type Enrollment struct {
	ID               string    `db:"id" json:"id"`
	StudentID        string    `db:"student_id" json:"student_id"`
	OfferingID       string    `db:"offering_id" json:"offering_id"`
	ChosenLecturerID string    `db:"chosen_lecturer_id" json:"chosen_lecturer_id"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// EnrollmentDetail is an enrollment joined with course and student
// information for roster and marksheet views.
type EnrollmentDetail struct {
	Enrollment
	CourseCode   string `db:"course_code" json:"course_code"`
	CourseName   string `db:"course_name" json:"course_name"`
	Credits      int    `db:"credits" json:"credits"`
	Term         string `db:"term" json:"term"`
	Year         int    `db:"year" json:"year"`
	StudentName  string `db:"student_name" json:"student_name"`
	StudentRegNo string `db:"student_reg_no" json:"student_reg_no"`
}
