package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatScore(t *testing.T) {
	v := 84.5
	assert.Equal(t, "84.50", FormatScore(&v))
	whole := 100.0
	assert.Equal(t, "100.00", FormatScore(&whole))
	assert.Equal(t, "-", FormatScore(nil))
}

func TestFormatRank(t *testing.T) {
	rank := 4
	assert.Equal(t, "4", FormatRank(&rank))
	assert.Equal(t, "-", FormatRank(nil))
}

func TestWithinPrecision(t *testing.T) {
	for _, v := range []float64{0, 80, 80.1, 80.12, 99.99, 100} {
		assert.True(t, WithinPrecision(v), "%v", v)
	}
	for _, v := range []float64{80.125, 0.001, 99.999} {
		assert.False(t, WithinPrecision(v), "%v", v)
	}
}
