package rectify

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/MeKo-Tech/docscan/internal/utils"
)

// ErrDegenerateCorners is returned when the corners do not span an area, so
// no projective transform exists.
var ErrDegenerateCorners = errors.New("rectify: corners are degenerate")

// Homography is a row-major 3x3 projective transform with H[8] == 1.
type Homography [9]float64

// Identity is the homography that maps every point to itself.
var Identity = Homography{1, 0, 0, 0, 1, 0, 0, 0, 1}

// ComputeHomography solves for the transform mapping p[i] to q[i].
func ComputeHomography(p, q [4]utils.Point) (Homography, error) {
	// Eight equations for h00..h21 with h22 fixed at 1:
	//   x' (h20 X + h21 Y + 1) = h00 X + h01 Y + h02
	//   y' (h20 X + h21 Y + 1) = h10 X + h11 Y + h12
	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)
	for i := range 4 {
		X, Y := p[i].X, p[i].Y
		x, y := q[i].X, q[i].Y
		r := 2 * i
		a.SetRow(r, []float64{X, Y, 1, 0, 0, 0, -X * x, -Y * x})
		a.SetRow(r+1, []float64{0, 0, 0, X, Y, 1, -X * y, -Y * y})
		b.SetVec(r, x)
		b.SetVec(r+1, y)
	}

	var h mat.VecDense
	if err := h.SolveVec(a, b); err != nil {
		// A finite condition number is only a precision warning.
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 0) || math.IsNaN(float64(cond)) {
			return Homography{}, ErrDegenerateCorners
		}
	}
	var out Homography
	for i := range 8 {
		v := h.AtVec(i)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Homography{}, ErrDegenerateCorners
		}
		out[i] = v
	}
	out[8] = 1
	return out, nil
}

// Apply maps (x, y) through the transform. Points on the line at infinity
// map to NaN.
func (h Homography) Apply(x, y float64) (float64, float64) {
	den := h[6]*x + h[7]*y + h[8]
	if den == 0 {
		return math.NaN(), math.NaN()
	}
	return (h[0]*x + h[1]*y + h[2]) / den, (h[3]*x + h[4]*y + h[5]) / den
}

// ApplyPoint maps p through the transform.
func (h Homography) ApplyPoint(p utils.Point) utils.Point {
	x, y := h.Apply(p.X, p.Y)
	return utils.Point{X: x, Y: y}
}

// Inverse returns the inverse transform, normalised so its last element is 1.
func (h Homography) Inverse() (Homography, error) {
	var inv mat.Dense
	if err := inv.Inverse(mat.NewDense(3, 3, h[:])); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 0) {
			return Homography{}, ErrDegenerateCorners
		}
	}
	s := inv.At(2, 2)
	if s == 0 || math.IsNaN(s) {
		return Homography{}, ErrDegenerateCorners
	}
	var out Homography
	for r := range 3 {
		for c := range 3 {
			out[r*3+c] = inv.At(r, c) / s
		}
	}
	return out, nil
}
