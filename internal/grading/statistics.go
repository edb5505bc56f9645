package grading

import (
	"math"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
)

// Band places a grade or average in its distribution bucket. Lower bounds are
// inclusive; the excellent band also covers 100.
func Band(value float64) models.GradeBand {
	switch {
	case value >= 90:
		return models.BandExcellent
	case value >= 80:
		return models.BandVeryGood
	case value >= 70:
		return models.BandGood
	case value >= 60:
		return models.BandFair
	default:
		return models.BandPoor
	}
}

// Predicate returns the report-card label for a grade, "-" when ungraded.
func Predicate(value *float64) string {
	if value == nil {
		return "-"
	}
	switch Band(*value) {
	case models.BandExcellent:
		return "Sangat Baik"
	case models.BandVeryGood:
		return "Baik"
	case models.BandGood:
		return "Cukup Baik"
	case models.BandFair:
		return "Cukup"
	default:
		return "Kurang"
	}
}

// Summarize computes statistics and the distribution over graded values.
// total is the roster size, which may exceed len(values) when some students
// are still ungraded.
func Summarize(values []float64, total int) (models.ClassStatistics, models.Distribution) {
	stats := models.ClassStatistics{
		TotalStudents:        total,
		GradedStudents:       len(values),
		CompletionPercentage: completion(len(values), total),
	}
	var distribution models.Distribution
	if len(values) == 0 {
		return stats, distribution
	}

	highest, lowest := values[0], values[0]
	for _, v := range values {
		if v > highest {
			highest = v
		}
		if v < lowest {
			lowest = v
		}
		distribution.Add(Band(v))
	}
	stats.Highest = &highest
	stats.Lowest = &lowest
	stats.Mean = mean(values)
	return stats, distribution
}

func completion(graded, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(graded) * 100 / float64(total)))
}
