package service

import "strings"

// defaultMaxScores maps well-known assessment names to their standard
// maximum score. Lookup is case-insensitive on the trimmed name.
var defaultMaxScores = map[string]float64{
	"assignment":   10,
	"assignments":  10,
	"quiz":         15,
	"quizzes":      15,
	"project":      25,
	"projects":     25,
	"midsem":       20,
	"mid-sem":      20,
	"midsemester":  20,
	"mid-semester": 20,
	"endsem":       30,
	"end-sem":      30,
	"endsemester":  30,
	"end-semester": 30,
	"final":        30,
	"final exam":   30,
}

// DefaultAssessmentMaxScore returns the standard maximum score for a
// known assessment name, or false when the name has no default.
func DefaultAssessmentMaxScore(name string) (float64, bool) {
	maxScore, ok := defaultMaxScores[strings.ToLower(strings.TrimSpace(name))]
	return maxScore, ok
}
