package plot

import "fmt"

// Curve is a single plotted curve: a tuple of equal-length columns plus its
// options. Columns map positionally onto the draw command's using clause.
type Curve struct {
	Options CurveOptions

	// Cols holds one slice per tuple element (x, y, size, ...), all the
	// same length.
	Cols [][]float64
}

// Chunk is a contiguous run of curves sharing one tuple width, one point
// count, and one cumulative option base. Broadcast resolution happens
// upstream: chunks arrive here with uniform, pre-resolved dimensions.
type Chunk struct {
	Base   CurveOptions
	Curves []Curve
}

// Width returns the chunk's tuple width.
func (c *Chunk) Width() int {
	if len(c.Curves) == 0 {
		return 0
	}
	return len(c.Curves[0].Cols)
}

// Points returns the per-curve point count.
func (c *Chunk) Points() int {
	if len(c.Curves) == 0 || len(c.Curves[0].Cols) == 0 {
		return 0
	}
	return len(c.Curves[0].Cols[0])
}

// Validate checks the chunk invariants: at least one curve with at least one
// column, uniform tuple width across curves, and equal column lengths
// throughout.
func (c *Chunk) Validate() error {
	if len(c.Curves) == 0 {
		return fmt.Errorf("chunk has no curves")
	}
	width := c.Width()
	if width == 0 {
		return fmt.Errorf("chunk has zero tuple width")
	}
	points := c.Points()
	for i, curve := range c.Curves {
		if len(curve.Cols) != width {
			return fmt.Errorf("curve %d has tuple width %d, chunk width is %d", i, len(curve.Cols), width)
		}
		for j, col := range curve.Cols {
			if len(col) != points {
				return fmt.Errorf("curve %d column %d has %d points, chunk has %d", i, j, len(col), points)
			}
		}
	}
	return nil
}

// XY is a convenience constructor for the common 2-column case.
func XY(x, y []float64) Chunk {
	return Chunk{Curves: []Curve{{Cols: [][]float64{x, y}}}}
}

// XYWith is XY plus a style and legend.
func XYWith(x, y []float64, with, legend string) Chunk {
	return Chunk{Curves: []Curve{{
		Options: CurveOptions{With: with, Legend: legend},
		Cols:    [][]float64{x, y},
	}}}
}
