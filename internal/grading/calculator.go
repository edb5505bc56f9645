// Package grading turns raw component scores into weighted final grades and
// aggregates final grades into ranked class recaps.
//
// Functions in this package never mutate their inputs and always return
// freshly allocated results.
package grading

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
)

// Weighted sums are accumulated in decimal so x.xx5 rounds half-up.
var weights = map[models.ScoreComponent]decimal.Decimal{
	models.ComponentAssignment1: decimal.RequireFromString("0.05"),
	models.ComponentAssignment2: decimal.RequireFromString("0.05"),
	models.ComponentQuiz1:       decimal.RequireFromString("0.10"),
	models.ComponentQuiz2:       decimal.RequireFromString("0.10"),
	models.ComponentMidterm:     decimal.RequireFromString("0.30"),
	models.ComponentFinalExam:   decimal.RequireFromString("0.40"),
}

// Weight returns the weight applied to a component.
func Weight(component models.ScoreComponent) float64 {
	w, ok := weights[component]
	if !ok {
		return 0
	}
	f, _ := w.Float64()
	return f
}

// ComputeFinalGrade returns the weighted final grade for a complete score set,
// rounded half-up to two decimals. It returns nil when any component is
// missing; partially filled score sets never earn partial credit.
func ComputeFinalGrade(scores models.ScoreSet) *float64 {
	sum := decimal.Zero
	for _, component := range models.ScoreComponents {
		value := scores.Value(component)
		if value == nil {
			return nil
		}
		sum = sum.Add(decimal.NewFromFloat(*value).Mul(weights[component]))
	}
	return round2(sum)
}

func round2(d decimal.Decimal) *float64 {
	v, _ := d.Round(2).Float64()
	return &v
}

// mean returns the arithmetic mean of values rounded to two decimals, or nil
// for an empty slice.
func mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(decimal.NewFromFloat(v))
	}
	return round2(sum.Div(decimal.NewFromInt(int64(len(values)))))
}
