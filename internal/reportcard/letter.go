package reportcard

import "github.com/shopspring/decimal"

// NoGrade is reported when there is nothing to grade.
const NoGrade = "N/A"

type gradeRange struct {
	min    decimal.Decimal
	letter string
}

// ladder is ordered from the highest threshold down.
var ladder = []gradeRange{
	{decimal.NewFromInt(90), "A+"},
	{decimal.NewFromInt(85), "A"},
	{decimal.NewFromInt(80), "A-"},
	{decimal.NewFromInt(75), "B+"},
	{decimal.NewFromInt(70), "B"},
	{decimal.NewFromInt(65), "B-"},
	{decimal.NewFromInt(60), "C+"},
	{decimal.NewFromInt(55), "C"},
	{decimal.NewFromInt(50), "C-"},
	{decimal.NewFromInt(45), "D+"},
	{decimal.NewFromInt(40), "D"},
}

// Letter maps a 0-100 score to its letter grade.
func Letter(score decimal.Decimal) string {
	for _, r := range ladder {
		if score.GreaterThanOrEqual(r.min) {
			return r.letter
		}
	}
	return "F"
}
