package models

// AssessmentResult is one assessment's contribution to a student's
// offering result. Graded is false when no mark exists for the pair;
// the weighted contribution is then zero.
type AssessmentResult struct {
	AssessmentID string  `json:"assessment_id"`
	Name         string  `json:"name"`
	Weight       int     `json:"weight"`
	MaxScore     float64 `json:"max_score"`
	Score        float64 `json:"score"`
	Graded       bool    `json:"graded"`
	Weighted     float64 `json:"weighted"`
}

// OfferingResult is a student's aggregated result for one offering.
type OfferingResult struct {
	OfferingID  string             `json:"offering_id"`
	CourseCode  string             `json:"course_code"`
	CourseName  string             `json:"course_name"`
	Credits     int                `json:"credits"`
	StudentID   string             `json:"student_id"`
	Percent     float64            `json:"percent"`
	Letter      string             `json:"letter"`
	Points      float64            `json:"points"`
	Assessments []AssessmentResult `json:"assessments"`
}

// StudentMarksheet is one student's results across a term, with the
// credit-weighted GPA and plain average of the offering percentages.
type StudentMarksheet struct {
	StudentID   string           `json:"student_id"`
	StudentName string           `json:"student_name,omitempty"`
	RegNo       string           `json:"reg_no,omitempty"`
	Term        string           `json:"term"`
	Year        int              `json:"year"`
	Results     []OfferingResult `json:"results"`
	GPA         float64          `json:"gpa"`
	Average     float64          `json:"average"`
}

// MissingMark identifies an enrolled (student, assessment) pair with
// no recorded mark.
type MissingMark struct {
	OfferingID     string `json:"offering_id"`
	CourseCode     string `json:"course_code"`
	StudentID      string `json:"student_id"`
	StudentName    string `json:"student_name,omitempty"`
	AssessmentID   string `json:"assessment_id"`
	AssessmentName string `json:"assessment_name"`
}
