package geometry

import (
	"math"

	"github.com/MeKo-Tech/docscan/internal/utils"
)

// LineSegment is a detected straight edge fragment.
type LineSegment struct {
	A utils.Point `json:"a"`
	B utils.Point `json:"b"`
}

// Angle is atan2 of the segment direction, in degrees within (-180, 180].
func (s LineSegment) Angle() float64 {
	return math.Atan2(s.B.Y-s.A.Y, s.B.X-s.A.X) * 180 / math.Pi
}

// IsHorizontal reports whether the segment is within 45 degrees of the x
// axis in either direction. Everything else counts as vertical. The test
// uses |angle|, so a segment drawn right-to-left (e.g. -170 degrees) is
// horizontal, the same as its reverse at 10 degrees.
func (s LineSegment) IsHorizontal() bool {
	a := math.Abs(s.Angle())
	return a < 45 || math.Abs(a-180) < 45
}

func (s LineSegment) Length() float64 { return Distance(s.A, s.B) }

func (s LineSegment) AverageX() float64 { return (s.A.X + s.B.X) / 2 }

func (s LineSegment) AverageY() float64 { return (s.A.Y + s.B.Y) / 2 }

// YAt returns the y coordinate of the infinite line through s at x.
// The segment must not be vertical.
func (s LineSegment) YAt(x float64) float64 {
	dx := s.B.X - s.A.X
	if dx == 0 {
		return s.AverageY()
	}
	return s.A.Y + (x-s.A.X)*(s.B.Y-s.A.Y)/dx
}

// XAt returns the x coordinate of the infinite line through s at y.
func (s LineSegment) XAt(y float64) float64 {
	dy := s.B.Y - s.A.Y
	if dy == 0 {
		return s.AverageX()
	}
	return s.A.X + (y-s.A.Y)*(s.B.X-s.A.X)/dy
}
