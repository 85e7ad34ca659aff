package layout

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultParams(n int) Params {
	return Params{
		ScreenWidth:    1920,
		ScreenHeight:   1080,
		Workers:        n,
		MinWidth:       300,
		MinHeight:      300,
		HPad:           10,
		VPad:           10,
		ReservedBottom: 50,
	}
}

func TestComputeGridShape(t *testing.T) {
	tests := []struct {
		workers    int
		cols, rows int
	}{
		{0, 1, 1},
		{1, 1, 1},
		{2, 2, 1},
		{3, 2, 2},
		{4, 2, 2},
		{5, 3, 2},
		{9, 3, 3},
		{10, 4, 3},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d workers", tt.workers), func(t *testing.T) {
			plan, _ := Compute(defaultParams(tt.workers))
			assert.Equal(t, tt.cols, plan.Cols)
			assert.Equal(t, tt.rows, plan.Rows)
		})
	}
}

func TestComputeDimensions(t *testing.T) {
	plan, clamped := Compute(defaultParams(4))

	assert.False(t, clamped)
	// (1920 - 3*10) / 2 and (1080 - 50 - 3*10) / 2
	assert.Equal(t, 945, plan.WindowWidth)
	assert.Equal(t, 500, plan.WindowHeight)
	assert.Equal(t, []Point{
		{X: 10, Y: 10},
		{X: 965, Y: 10},
		{X: 10, Y: 520},
		{X: 965, Y: 520},
	}, plan.Positions)
}

func TestComputeWithinBounds(t *testing.T) {
	for n := 1; n <= 9; n++ {
		p := defaultParams(n)
		plan, clamped := Compute(p)
		require.False(t, clamped, "n=%d", n)
		require.Len(t, plan.Positions, n)

		assert.GreaterOrEqual(t, plan.WindowWidth, p.MinWidth)
		assert.GreaterOrEqual(t, plan.WindowHeight, p.MinHeight)
		for i, pos := range plan.Positions {
			assert.GreaterOrEqual(t, pos.X, 0, "n=%d i=%d", n, i)
			assert.GreaterOrEqual(t, pos.Y, 0, "n=%d i=%d", n, i)
			assert.LessOrEqual(t, pos.X+plan.WindowWidth, p.ScreenWidth, "n=%d i=%d", n, i)
			assert.LessOrEqual(t, pos.Y+plan.WindowHeight, p.ScreenHeight-p.ReservedBottom, "n=%d i=%d", n, i)
		}
	}
}

func TestComputeNoOverlap(t *testing.T) {
	plan, _ := Compute(defaultParams(6))
	for i := 0; i < len(plan.Positions); i++ {
		for j := i + 1; j < len(plan.Positions); j++ {
			a, b := plan.Rect(i), plan.Rect(j)
			overlapX := a.X < b.X+b.Width && b.X < a.X+a.Width
			overlapY := a.Y < b.Y+b.Height && b.Y < a.Y+a.Height
			assert.False(t, overlapX && overlapY, "windows %d and %d overlap", i, j)
		}
	}
}

func TestComputeClampsToMinimum(t *testing.T) {
	p := defaultParams(16)
	p.ScreenWidth = 800
	p.ScreenHeight = 600

	plan, clamped := Compute(p)
	assert.True(t, clamped)
	assert.Equal(t, 300, plan.WindowWidth)
	assert.Equal(t, 300, plan.WindowHeight)
	assert.Len(t, plan.Positions, 16)
}

func TestRect(t *testing.T) {
	plan, _ := Compute(defaultParams(2))
	r := plan.Rect(1)
	assert.Equal(t, plan.Positions[1], r.Point)
	assert.Equal(t, plan.WindowWidth, r.Width)
	assert.Equal(t, plan.Rect(0), plan.Rect(2))

	assert.Equal(t, Rect{Width: 5, Height: 6}, Plan{WindowWidth: 5, WindowHeight: 6}.Rect(3))
}
