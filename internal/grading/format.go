package grading

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// ScoreDecimals is the precision raw scores and final grades are kept at.
const ScoreDecimals = 2

// FormatScore renders a grade or average with two decimals, "-" when absent.
func FormatScore(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', ScoreDecimals, 64)
}

// FormatRank renders a rank, "-" for unranked students.
func FormatRank(rank *int) string {
	if rank == nil {
		return "-"
	}
	return strconv.Itoa(*rank)
}

// WithinPrecision reports whether a raw score fits in ScoreDecimals places.
func WithinPrecision(v float64) bool {
	d := decimal.NewFromFloat(v)
	return d.Equal(d.Round(ScoreDecimals))
}
