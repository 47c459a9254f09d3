package models

import "time"

// GradeBand represents one row of the institution's grade scale: a
// contiguous percentage range mapped to a letter and grade points.
type GradeBand struct {
	ID         string    `db:"id" json:"id"`
	Letter     string    `db:"letter" json:"letter"`
	MinPercent float64   `db:"min_percent" json:"min_percent"`
	MaxPercent float64   `db:"max_percent" json:"max_percent"`
	Points     float64   `db:"points" json:"points"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// DefaultGradeScale is the 12-band scale installed when the table is
// empty. Admins can replace it wholesale afterwards.
func DefaultGradeScale() []GradeBand {
	return []GradeBand{
		{Letter: "A", MinPercent: 90, MaxPercent: 100, Points: 4.0},
		{Letter: "A-", MinPercent: 87, MaxPercent: 89, Points: 3.7},
		{Letter: "B+", MinPercent: 84, MaxPercent: 86, Points: 3.3},
		{Letter: "B", MinPercent: 80, MaxPercent: 83, Points: 3.0},
		{Letter: "B-", MinPercent: 77, MaxPercent: 79, Points: 2.7},
		{Letter: "C+", MinPercent: 74, MaxPercent: 76, Points: 2.3},
		{Letter: "C", MinPercent: 70, MaxPercent: 73, Points: 2.0},
		{Letter: "C-", MinPercent: 67, MaxPercent: 69, Points: 1.7},
		{Letter: "D+", MinPercent: 64, MaxPercent: 66, Points: 1.3},
		{Letter: "D", MinPercent: 62, MaxPercent: 63, Points: 1.0},
		{Letter: "D-", MinPercent: 60, MaxPercent: 61, Points: 0.7},
		{Letter: "F", MinPercent: 0, MaxPercent: 59, Points: 0.0},
	}
}
