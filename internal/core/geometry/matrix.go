// Package geometry holds the affine math used to place images on PDF pages.
package geometry

import (
	"math"

	"github.com/kirillkom/appraisal-intelligence/internal/core/domain"
)

// Matrix is a 2x3 affine transform [a b c d e f] mapping (x, y) to
// (a*x + c*y + e, b*x + d*y + f).
type Matrix struct {
	A, B, C, D, E, F float64
}

func Identity() Matrix {
	return Matrix{A: 1, D: 1}
}

func Translate(tx, ty float64) Matrix {
	return Matrix{A: 1, D: 1, E: tx, F: ty}
}

func Scale(sx, sy float64) Matrix {
	return Matrix{A: sx, D: sy}
}

// FromSlice builds a matrix from six operands; ok is false for any other length.
func FromSlice(v []float64) (Matrix, bool) {
	if len(v) != 6 {
		return Matrix{}, false
	}
	return Matrix{A: v[0], B: v[1], C: v[2], D: v[3], E: v[4], F: v[5]}, true
}

// Multiply returns m * n: n is applied first, then m.
func (m Matrix) Multiply(n Matrix) Matrix {
	return Matrix{
		A: m.A*n.A + m.C*n.B,
		B: m.B*n.A + m.D*n.B,
		C: m.A*n.C + m.C*n.D,
		D: m.B*n.C + m.D*n.D,
		E: m.A*n.E + m.C*n.F + m.E,
		F: m.B*n.E + m.D*n.F + m.F,
	}
}

func (m Matrix) Apply(x, y float64) (float64, float64) {
	return m.A*x + m.C*y + m.E, m.B*x + m.D*y + m.F
}

func (m Matrix) Determinant() float64 {
	return m.A*m.D - m.B*m.C
}

func (m Matrix) IsFinite() bool {
	for _, v := range []float64{m.A, m.B, m.C, m.D, m.E, m.F} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Rect is an axis-aligned rectangle in bottom-left-origin page space.
type Rect struct {
	X0, Y0, X1, Y1 float64
}

func (r Rect) Width() float64  { return r.X1 - r.X0 }
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

func (r Rect) Intersects(o Rect) bool {
	return r.X0 < o.X1 && o.X0 < r.X1 && r.Y0 < o.Y1 && o.Y0 < r.Y1
}

func (r Rect) Intersect(o Rect) Rect {
	return Rect{
		X0: math.Max(r.X0, o.X0),
		Y0: math.Max(r.Y0, o.Y0),
		X1: math.Min(r.X1, o.X1),
		Y1: math.Min(r.Y1, o.Y1),
	}
}

// NormalizeRect orders the corners of a rectangle given in any order.
func NormalizeRect(x0, y0, x1, y1 float64) Rect {
	return Rect{
		X0: math.Min(x0, x1),
		Y0: math.Min(y0, y1),
		X1: math.Max(x0, x1),
		Y1: math.Max(y0, y1),
	}
}

// TransformRect returns the axis-aligned bounds of r after applying m.
func (m Matrix) TransformRect(r Rect) Rect {
	xs := [4]float64{}
	ys := [4]float64{}
	xs[0], ys[0] = m.Apply(r.X0, r.Y0)
	xs[1], ys[1] = m.Apply(r.X1, r.Y0)
	xs[2], ys[2] = m.Apply(r.X0, r.Y1)
	xs[3], ys[3] = m.Apply(r.X1, r.Y1)

	out := Rect{X0: xs[0], Y0: ys[0], X1: xs[0], Y1: ys[0]}
	for i := 1; i < 4; i++ {
		out.X0 = math.Min(out.X0, xs[i])
		out.X1 = math.Max(out.X1, xs[i])
		out.Y0 = math.Min(out.Y0, ys[i])
		out.Y1 = math.Max(out.Y1, ys[i])
	}
	return out
}

// UnitSquareBounds is where an image painted under m lands on the page.
func (m Matrix) UnitSquareBounds() Rect {
	return m.TransformRect(Rect{X0: 0, Y0: 0, X1: 1, Y1: 1})
}

// ToRaster converts r from page space (origin bottom-left of mediaBox) into a
// top-left-origin box. Boxes overlapping the page are clipped to it; boxes
// entirely outside are returned unclipped so validation can reject them.
func ToRaster(r Rect, mediaBox Rect) domain.Box {
	if r.Intersects(mediaBox) {
		r = r.Intersect(mediaBox)
	}
	return domain.Box{
		X:      r.X0 - mediaBox.X0,
		Y:      mediaBox.Y1 - r.Y1,
		Width:  r.Width(),
		Height: r.Height(),
	}
}
