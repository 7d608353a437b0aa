package detector

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/docscan/internal/geometry"
	"github.com/MeKo-Tech/docscan/internal/preprocess"
	"github.com/MeKo-Tech/docscan/internal/utils"
)

var (
	// ErrTooFewLines is returned when fewer than two horizontal or two
	// vertical segments were found.
	ErrTooFewLines = errors.New("not enough boundary lines")
	// ErrNoIntersection is returned when two boundary lines do not meet
	// inside the image.
	ErrNoIntersection = errors.New("boundary lines do not intersect")
	// ErrEmptyCluster is returned when all horizontal (or vertical) segments
	// fall on the same side of the image centre.
	ErrEmptyCluster = errors.New("boundary cluster is empty")
)

// boundary holds the four document edges, each extended across the image.
type boundary struct {
	top, bottom, left, right geometry.LineSegment
}

// ClassifySegments splits segments into horizontal and vertical sets.
func ClassifySegments(segs []geometry.LineSegment) (horizontal, vertical []geometry.LineSegment) {
	for _, s := range segs {
		if s.IsHorizontal() {
			horizontal = append(horizontal, s)
		} else {
			vertical = append(vertical, s)
		}
	}
	return horizontal, vertical
}

// DetectByLines finds the document from straight segments of the raw Canny
// plane. With enough segments the boundary lines are averaged per side of the
// image centre; otherwise, or when averaging fails, the outermost segment on
// each side is used.
func DetectByLines(em *preprocess.EdgeMap, cfg HoughConfig) (geometry.Quad, error) {
	if em == nil || em.Width == 0 || em.Height == 0 {
		return geometry.Quad{}, preprocess.ErrEmptyImage
	}
	minLen := cfg.MinLineLengthRatio * float64(em.Width)
	segs := HoughLinesP(em.Edges, em.Width, em.Height, cfg, minLen)
	hs, vs := ClassifySegments(segs)
	if len(hs) < 2 || len(vs) < 2 {
		return geometry.Quad{}, fmt.Errorf("%w: %d horizontal, %d vertical", ErrTooFewLines, len(hs), len(vs))
	}

	w, h := float64(em.Width), float64(em.Height)
	var (
		q   geometry.Quad
		err error
	)
	if len(segs) >= cfg.ClusterMinLines {
		var b boundary
		if b, err = clusteredBoundary(hs, vs, w, h); err == nil {
			q, err = b.corners()
		}
	}
	if len(segs) < cfg.ClusterMinLines || err != nil {
		q, err = extremeBoundary(hs, vs, w, h).corners()
	}
	if err != nil {
		return geometry.Quad{}, err
	}
	return q.Scale(em.ScaleX, em.ScaleY), nil
}

// extremeBoundary picks the topmost, bottommost, leftmost and rightmost
// segments.
func extremeBoundary(hs, vs []geometry.LineSegment, w, h float64) boundary {
	top, bottom := hs[0], hs[0]
	for _, s := range hs[1:] {
		if s.AverageY() < top.AverageY() {
			top = s
		}
		if s.AverageY() > bottom.AverageY() {
			bottom = s
		}
	}
	left, right := vs[0], vs[0]
	for _, s := range vs[1:] {
		if s.AverageX() < left.AverageX() {
			left = s
		}
		if s.AverageX() > right.AverageX() {
			right = s
		}
	}
	return boundary{
		top:    horizontalChord(top.YAt(0), top.YAt(w-1), w),
		bottom: horizontalChord(bottom.YAt(0), bottom.YAt(w-1), w),
		left:   verticalChord(left.XAt(0), left.XAt(h-1), h),
		right:  verticalChord(right.XAt(0), right.XAt(h-1), h),
	}
}

// clusteredBoundary averages the segments above and below the image centre
// (left and right of it for vertical segments).
func clusteredBoundary(hs, vs []geometry.LineSegment, w, h float64) (boundary, error) {
	var above, below, leftOf, rightOf chordMean
	for _, s := range hs {
		if s.AverageY() < h/2 {
			above.add(s.YAt(0), s.YAt(w-1))
		} else {
			below.add(s.YAt(0), s.YAt(w-1))
		}
	}
	for _, s := range vs {
		if s.AverageX() < w/2 {
			leftOf.add(s.XAt(0), s.XAt(h-1))
		} else {
			rightOf.add(s.XAt(0), s.XAt(h-1))
		}
	}
	if above.n == 0 || below.n == 0 || leftOf.n == 0 || rightOf.n == 0 {
		return boundary{}, ErrEmptyCluster
	}
	return boundary{
		top:    horizontalChord(above.a/above.count(), above.b/above.count(), w),
		bottom: horizontalChord(below.a/below.count(), below.b/below.count(), w),
		left:   verticalChord(leftOf.a/leftOf.count(), leftOf.b/leftOf.count(), h),
		right:  verticalChord(rightOf.a/rightOf.count(), rightOf.b/rightOf.count(), h),
	}, nil
}

// chordMean accumulates the end points of full-width (or full-height)
// chords so they can be averaged.
type chordMean struct {
	a, b float64
	n    int
}

func (c *chordMean) add(a, b float64) {
	c.a += a
	c.b += b
	c.n++
}

func (c *chordMean) count() float64 { return float64(c.n) }

func horizontalChord(y0, y1, w float64) geometry.LineSegment {
	return geometry.LineSegment{A: utils.Point{X: 0, Y: y0}, B: utils.Point{X: w - 1, Y: y1}}
}

func verticalChord(x0, x1, h float64) geometry.LineSegment {
	return geometry.LineSegment{A: utils.Point{X: x0, Y: 0}, B: utils.Point{X: x1, Y: h - 1}}
}

// corners intersects each horizontal boundary, taken as a ray from the left
// image border, with each vertical boundary, bounded by the image height.
func (b boundary) corners() (geometry.Quad, error) {
	pairs := [4][2]geometry.LineSegment{
		{b.top, b.left}, {b.top, b.right}, {b.bottom, b.right}, {b.bottom, b.left},
	}
	var pts [4]utils.Point
	for i, pr := range pairs {
		p, ok := geometry.LineIntersection(pr[0].A, pr[0].B, pr[1].A, pr[1].B)
		if !ok {
			return geometry.Quad{}, ErrNoIntersection
		}
		if p.X < 0 || p.Y < 0 {
			return geometry.Quad{}, fmt.Errorf("%w: corner (%.1f, %.1f) outside image", ErrNoIntersection, p.X, p.Y)
		}
		pts[i] = p
	}
	return geometry.SortClockwise(pts), nil
}
