package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateHaversineDistance(t *testing.T) {
	t.Run("same point is zero", func(t *testing.T) {
		assert.InDelta(t, 0, CalculateHaversineDistance(10.7769, 106.7009, 10.7769, 106.7009), 1e-9)
	})

	t.Run("one degree of latitude", func(t *testing.T) {
		// 2*pi*R/360
		assert.InDelta(t, 111194.93, CalculateHaversineDistance(0, 0, 1, 0), 0.01)
	})

	t.Run("symmetric", func(t *testing.T) {
		a := CalculateHaversineDistance(21.0285, 105.8542, 10.8231, 106.6297)
		b := CalculateHaversineDistance(10.8231, 106.6297, 21.0285, 105.8542)
		assert.InDelta(t, a, b, 1e-6)
		assert.InDelta(t, 1137000, a, 5000)
	})
}
