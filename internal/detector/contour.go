package detector

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/MeKo-Tech/docscan/internal/geometry"
	"github.com/MeKo-Tech/docscan/internal/preprocess"
	"github.com/MeKo-Tech/docscan/internal/utils"
)

// ErrNoQuadrilateral is returned when no contour simplifies to four vertices.
var ErrNoQuadrilateral = errors.New("no four-vertex contour found")

// ContourOptions tunes the contour detector.
type ContourOptions struct {
	// EpsilonRatio is the polygon simplification tolerance as a fraction of
	// the contour perimeter.
	EpsilonRatio float64
	// MinAreaRatio discards candidates smaller than this fraction of the
	// edge map area. Zero keeps everything with a positive area.
	MinAreaRatio float64
	// Validate enables the plausibility gate.
	Validate   bool
	Validation ValidationConfig
}

// DefaultContourOptions returns the options of the primary contour pass.
func DefaultContourOptions() ContourOptions {
	return ContourOptions{
		EpsilonRatio: 0.02,
		Validate:     true,
		Validation:   DefaultValidationConfig(),
	}
}

// RetryContourOptions returns the options used after the looser
// pre-processing pass: a minimum area instead of the plausibility gate.
func RetryContourOptions() ContourOptions {
	return ContourOptions{
		EpsilonRatio: 0.02,
		MinAreaRatio: 0.1,
		Validation:   DefaultValidationConfig(),
	}
}

// FindContours traces the outer boundary of every external component of a
// binary plane. Components enclosed by another component are skipped.
func FindContours(mask []uint8, w, h int) [][]utils.Point {
	if w <= 0 || h <= 0 || len(mask) < w*h {
		return nil
	}
	comps, labels := connectedComponents(mask, w, h)
	contours := make([][]utils.Point, 0, len(comps))
	for _, st := range comps {
		if !st.external {
			continue
		}
		contours = append(contours, traceContourMoore(labels, w, h, st))
	}
	return contours
}

// traceContourMoore follows the boundary of one component clockwise with
// Moore-neighbour tracing. It stops when the start pixel is about to be left
// in the same direction as the first step. Runs of collinear pixels are
// collapsed to their end points.
func traceContourMoore(labels []int, w, h int, st compStats) []utils.Point {
	inside := func(x, y int) bool {
		return x >= 0 && y >= 0 && x < w && y < h && labels[y*w+x] == st.label
	}

	sx, sy := st.start%w, st.start/w
	pts := []utils.Point{{X: float64(sx), Y: float64(sy)}}
	cx, cy := sx, sy
	back := 4 // west of the first raster pixel is never part of the component
	secondX, secondY := -1, -1
	limit := 8*st.count + 8

	for step := range limit {
		found := -1
		for i := 1; i <= 8; i++ {
			d := (back + i) % 8
			if inside(cx+ndx[d], cy+ndy[d]) {
				found = d
				break
			}
		}
		if found < 0 {
			break // isolated pixel
		}
		nx, ny := cx+ndx[found], cy+ndy[found]
		if step == 0 {
			secondX, secondY = nx, ny
		} else if cx == sx && cy == sy && nx == secondX && ny == secondY {
			break
		}

		prev := (found + 7) % 8
		back = direction(cx+ndx[prev]-nx, cy+ndy[prev]-ny)
		cx, cy = nx, ny
		if cx != sx || cy != sy {
			pts = appendContourPoint(pts, utils.Point{X: float64(cx), Y: float64(cy)})
		}
	}
	if n := len(pts); n >= 3 && continuesRun(pts[n-2], pts[n-1], pts[0]) {
		pts = pts[:n-1]
	}
	return pts
}

func direction(dx, dy int) int {
	for k := range 8 {
		if ndx[k] == dx && ndy[k] == dy {
			return k
		}
	}
	return 0
}

// appendContourPoint adds p, replacing the last point when it lies on a
// straight run continuing in the same direction.
func appendContourPoint(pts []utils.Point, p utils.Point) []utils.Point {
	if n := len(pts); n >= 2 && continuesRun(pts[n-2], pts[n-1], p) {
		pts[n-1] = p
		return pts
	}
	return append(pts, p)
}

// continuesRun reports whether a, b, p lie on one line with p beyond b.
func continuesRun(a, b, p utils.Point) bool {
	cross := (b.X-a.X)*(p.Y-b.Y) - (b.Y-a.Y)*(p.X-b.X)
	dot := (b.X-a.X)*(p.X-b.X) + (b.Y-a.Y)*(p.Y-b.Y)
	return cross == 0 && dot > 0
}

// ApproxQuads simplifies each contour and returns those that reduce to
// exactly four vertices, largest area first.
func ApproxQuads(contours [][]utils.Point, epsilonRatio float64) [][]utils.Point {
	var quads [][]utils.Point
	for _, c := range contours {
		if len(c) < 4 {
			continue
		}
		approx := utils.SimplifyClosedPolygon(c, epsilonRatio*utils.PolygonPerimeter(c))
		if len(approx) == 4 {
			quads = append(quads, approx)
		}
	}
	slices.SortStableFunc(quads, func(a, b []utils.Point) int {
		return cmp.Compare(utils.PolygonArea(b), utils.PolygonArea(a))
	})
	return quads
}

// DetectByContour finds the largest four-vertex polygon among the external
// contours of the closed edge plane. The result is ordered clockwise from
// top-left and expressed in source image coordinates.
func DetectByContour(em *preprocess.EdgeMap, opts ContourOptions) (geometry.Quad, error) {
	if em == nil || em.Width == 0 || em.Height == 0 {
		return geometry.Quad{}, preprocess.ErrEmptyImage
	}
	contours := FindContours(em.Closed, em.Width, em.Height)
	quads := ApproxQuads(contours, opts.EpsilonRatio)
	if len(quads) == 0 {
		return geometry.Quad{}, fmt.Errorf("%w among %d contours", ErrNoQuadrilateral, len(contours))
	}

	best := quads[0]
	area := utils.PolygonArea(best)
	minArea := opts.MinAreaRatio * float64(em.Width*em.Height)
	if area <= 0 || area <= minArea {
		return geometry.Quad{}, fmt.Errorf("%w: largest candidate area %.0f below %.0f", ErrNoQuadrilateral, area, minArea)
	}

	q := geometry.SortClockwise([4]utils.Point{best[0], best[1], best[2], best[3]})
	if opts.Validate {
		if err := opts.Validation.Validate(q); err != nil {
			return geometry.Quad{}, err
		}
	}
	return q.Scale(em.ScaleX, em.ScaleY), nil
}
