package touch_test

import (
	"testing"

	"github.com/nanoclaw/nanoclaw/internal/touch"
	"github.com/stretchr/testify/require"
)

func TestSwipeDetectorGeometry(t *testing.T) {
	tests := []struct {
		name     string
		dx, dy   int
		expected touch.SwipeDirection
	}{
		{"right within bounds", 50, 0, touch.SwipeRight},
		{"left within bounds", -50, 10, touch.SwipeLeft},
		{"too vertical", 50, 31, touch.SwipeNone},
		{"too short horizontal", 39, 0, touch.SwipeNone},
		{"exact threshold horizontal", 40, 30, touch.SwipeRight},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := touch.NewDetector()
			startX, startY := 100, 100
			d.OnDown(uint16(startX), uint16(startY))
			dir := d.OnUp(uint16(startX+tt.dx), uint16(startY+tt.dy))
			require.Equal(t, tt.expected, dir)
		})
	}
}

func TestSwipeDetectorCancelClearsOrigin(t *testing.T) {
	d := touch.NewDetector()
	d.OnDown(10, 10)
	d.Cancel()
	require.Equal(t, touch.SwipeNone, d.OnUp(100, 10))
}

func TestSwipeDetectorNoOriginYieldsNone(t *testing.T) {
	d := touch.NewDetector()
	require.Equal(t, touch.SwipeNone, d.OnUp(10, 10))
}
