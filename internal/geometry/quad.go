package geometry

import (
	"fmt"

	"github.com/MeKo-Tech/docscan/internal/utils"
)

// Quad is a quadrilateral listed clockwise from the top-left corner:
// [topLeft, topRight, bottomRight, bottomLeft].
type Quad [4]utils.Point

// QuadFromPoints copies exactly four points into a Quad without reordering.
func QuadFromPoints(pts []utils.Point) (Quad, error) {
	if len(pts) != 4 {
		return Quad{}, fmt.Errorf("quadrilateral needs 4 points, got %d", len(pts))
	}
	return Quad{pts[0], pts[1], pts[2], pts[3]}, nil
}

func (q Quad) TopLeft() utils.Point     { return q[0] }
func (q Quad) TopRight() utils.Point    { return q[1] }
func (q Quad) BottomRight() utils.Point { return q[2] }
func (q Quad) BottomLeft() utils.Point  { return q[3] }

// Points returns the corners as a slice.
func (q Quad) Points() []utils.Point { return []utils.Point{q[0], q[1], q[2], q[3]} }

// Sorted returns the quad with corner roles re-derived by SortClockwise.
func (q Quad) Sorted() Quad { return SortClockwise(q) }

// Scale multiplies every corner by sx, sy.
func (q Quad) Scale(sx, sy float64) Quad {
	var out Quad
	for i, p := range q {
		out[i] = utils.ScalePoint(p, sx, sy)
	}
	return out
}

func (q Quad) TopWidth() float64    { return Distance(q[0], q[1]) }
func (q Quad) BottomWidth() float64 { return Distance(q[3], q[2]) }
func (q Quad) LeftHeight() float64  { return Distance(q[0], q[3]) }
func (q Quad) RightHeight() float64 { return Distance(q[1], q[2]) }

// Area returns the enclosed area.
func (q Quad) Area() float64 { return utils.PolygonArea(q[:]) }

// CornerAngles returns the interior angle at each corner in quad order.
func (q Quad) CornerAngles() [4]float64 {
	tl, tr, br, bl := q[0], q[1], q[2], q[3]
	return [4]float64{
		AngleBetween(tl, tr, bl),
		AngleBetween(tr, tl, br),
		AngleBetween(br, tr, bl),
		AngleBetween(bl, tl, br),
	}
}
