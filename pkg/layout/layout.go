// Package layout tiles worker browser windows across the screen.
package layout

import "math"

// Params describes the screen and the tiling constraints
type Params struct {
	ScreenWidth    int
	ScreenHeight   int
	Workers        int
	MinWidth       int
	MinHeight      int
	HPad           int
	VPad           int
	ReservedBottom int
}

// Point is a window's top-left corner in screen pixels
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Rect is one worker's window
type Rect struct {
	Point
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Plan is the computed grid. It is a value type and is never mutated after Compute.
type Plan struct {
	Cols         int     `json:"cols"`
	Rows         int     `json:"rows"`
	WindowWidth  int     `json:"window_width"`
	WindowHeight int     `json:"window_height"`
	Positions    []Point `json:"positions"`
}

// Compute lays out p.Workers windows on a near-square grid. The returned bool
// is true when a dimension had to be raised to its minimum, in which case
// windows may extend past the screen edge.
func Compute(p Params) (Plan, bool) {
	n := p.Workers
	if n < 1 {
		n = 1
	}

	cols := int(math.Ceil(math.Sqrt(float64(n))))
	if cols < 1 {
		cols = 1
	}
	rows := (n + cols - 1) / cols

	width := (p.ScreenWidth - (cols+1)*p.HPad) / cols
	height := (p.ScreenHeight - p.ReservedBottom - (rows+1)*p.VPad) / rows

	clamped := false
	if width < p.MinWidth {
		width = p.MinWidth
		clamped = true
	}
	if height < p.MinHeight {
		height = p.MinHeight
		clamped = true
	}

	positions := make([]Point, n)
	for i := range positions {
		col, row := i%cols, i/cols
		positions[i] = Point{
			X: col*(width+p.HPad) + p.HPad,
			Y: row*(height+p.VPad) + p.VPad,
		}
	}

	return Plan{
		Cols:         cols,
		Rows:         rows,
		WindowWidth:  width,
		WindowHeight: height,
		Positions:    positions,
	}, clamped
}

// Rect returns the window for worker rank i. Ranks past the plan wrap around.
func (p Plan) Rect(i int) Rect {
	if len(p.Positions) == 0 {
		return Rect{Width: p.WindowWidth, Height: p.WindowHeight}
	}
	return Rect{
		Point:  p.Positions[i%len(p.Positions)],
		Width:  p.WindowWidth,
		Height: p.WindowHeight,
	}
}
