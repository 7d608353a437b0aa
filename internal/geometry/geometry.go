package geometry

import (
	"cmp"
	"math"
	"slices"

	"github.com/MeKo-Tech/docscan/internal/utils"
)

// Distance returns the Euclidean distance between a and b.
func Distance(a, b utils.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// AngleBetween returns the angle in degrees at vertex between the rays to p1
// and p2. A zero-length ray yields 0.
func AngleBetween(vertex, p1, p2 utils.Point) float64 {
	v1x, v1y := p1.X-vertex.X, p1.Y-vertex.Y
	v2x, v2y := p2.X-vertex.X, p2.Y-vertex.Y
	m1 := math.Hypot(v1x, v1y)
	m2 := math.Hypot(v2x, v2y)
	if m1 == 0 || m2 == 0 {
		return 0
	}
	cos := (v1x*v2x + v1y*v2y) / (m1 * m2)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}

// parallelEpsilon is the determinant magnitude below which two lines are
// treated as parallel.
const parallelEpsilon = 1e-9

// LineIntersection intersects the line through a1,a2 with the segment b1,b2.
// The crossing must lie strictly inside the segment (parameter in (0,1)) and
// in the forward direction of a (a1 + t*(a2-a1) with t > 0). Parallel lines
// and out-of-range crossings report false.
func LineIntersection(a1, a2, b1, b2 utils.Point) (utils.Point, bool) {
	rx, ry := a2.X-a1.X, a2.Y-a1.Y
	sx, sy := b2.X-b1.X, b2.Y-b1.Y
	den := rx*sy - ry*sx
	if math.Abs(den) < parallelEpsilon {
		return utils.Point{}, false
	}
	qx, qy := b1.X-a1.X, b1.Y-a1.Y
	t := (qx*sy - qy*sx) / den
	u := (qx*ry - qy*rx) / den
	if t <= 0 || u <= 0 || u >= 1 {
		return utils.Point{}, false
	}
	return utils.Point{X: a1.X + t*rx, Y: a1.Y + t*ry}, true
}

// SortClockwise assigns corner roles: top-left has the smallest x+y,
// bottom-right the largest, top-right the smallest y-x and bottom-left the
// largest. Ties keep the earliest input point. When two roles land on the
// same point (a quad rotated close to 45 degrees) the corners are instead
// ordered by angle around their centroid, starting from top-left.
func SortClockwise(pts [4]utils.Point) Quad {
	tl, br, tr, bl := 0, 0, 0, 0
	for i := 1; i < 4; i++ {
		s := pts[i].X + pts[i].Y
		d := pts[i].Y - pts[i].X
		if s < pts[tl].X+pts[tl].Y {
			tl = i
		}
		if s > pts[br].X+pts[br].Y {
			br = i
		}
		if d < pts[tr].Y-pts[tr].X {
			tr = i
		}
		if d > pts[bl].Y-pts[bl].X {
			bl = i
		}
	}
	if tl == tr || tl == br || tl == bl || tr == br || tr == bl || br == bl {
		return sortByAngle(pts, tl)
	}
	return Quad{pts[tl], pts[tr], pts[br], pts[bl]}
}

func sortByAngle(pts [4]utils.Point, first int) Quad {
	cx := (pts[0].X + pts[1].X + pts[2].X + pts[3].X) / 4
	cy := (pts[0].Y + pts[1].Y + pts[2].Y + pts[3].Y) / 4
	idx := []int{0, 1, 2, 3}
	angle := func(i int) float64 { return math.Atan2(pts[i].Y-cy, pts[i].X-cx) }
	slices.SortStableFunc(idx, func(a, b int) int { return cmp.Compare(angle(a), angle(b)) })

	start := slices.Index(idx, first)
	var q Quad
	for k := range 4 {
		q[k] = pts[idx[(start+k)%4]]
	}
	return q
}
