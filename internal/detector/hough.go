package detector

import (
	"cmp"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/MeKo-Tech/docscan/internal/geometry"
	"github.com/MeKo-Tech/docscan/internal/utils"
)

// HoughConfig parameterises line segment extraction and boundary selection.
type HoughConfig struct {
	Rho                float64 // accumulator distance resolution in pixels
	Theta              float64 // accumulator angle resolution in radians
	Threshold          int     // minimum votes for a peak
	MinLineLengthRatio float64 // minimum segment length as a fraction of the edge map width
	MaxLineGap         float64 // largest gap bridged inside one segment
	MaxPeaks           int
	// ClusterMinLines is the segment count from which averaged boundary
	// lines are preferred over the single extreme segments.
	ClusterMinLines int
}

// DefaultHoughConfig returns the parameters used by the line detector.
func DefaultHoughConfig() HoughConfig {
	return HoughConfig{
		Rho:                1,
		Theta:              math.Pi / 180,
		Threshold:          50,
		MinLineLengthRatio: 0.25,
		MaxLineGap:         20,
		MaxPeaks:           100,
		ClusterMinLines:    10,
	}
}

const (
	inlierBand = 4.0
	refitBand  = 2.0
)

type houghPeak struct {
	theta int
	rho   int
	votes int
}

// HoughLinesP extracts straight segments from a binary plane. Peaks of the
// (rho, theta) accumulator are visited strongest first; the unused edge
// points near each peak line are refitted by principal component analysis,
// projected onto the fitted direction and split wherever consecutive points
// are more than MaxLineGap apart. Runs of at least minLength become segments
// and their points are withdrawn from later peaks.
func HoughLinesP(mask []uint8, w, h int, cfg HoughConfig, minLength float64) []geometry.LineSegment {
	if w <= 0 || h <= 0 || len(mask) < w*h || cfg.Rho <= 0 || cfg.Theta <= 0 {
		return nil
	}

	var points []utils.Point
	for y := range h {
		for x := range w {
			if mask[y*w+x] != 0 {
				points = append(points, utils.Point{X: float64(x), Y: float64(y)})
			}
		}
	}
	if len(points) == 0 {
		return nil
	}

	nTheta := max(1, int(math.Round(math.Pi/cfg.Theta)))
	diag := math.Hypot(float64(w), float64(h))
	nRho := int(2*diag/cfg.Rho) + 2
	cosT := make([]float64, nTheta)
	sinT := make([]float64, nTheta)
	for t := range nTheta {
		a := float64(t) * cfg.Theta
		cosT[t], sinT[t] = math.Cos(a), math.Sin(a)
	}

	acc := make([]int32, nTheta*nRho)
	for _, p := range points {
		for t := range nTheta {
			r := int(math.Round((p.X*cosT[t] + p.Y*sinT[t] + diag) / cfg.Rho))
			acc[t*nRho+r]++
		}
	}

	peaks := findPeaks(acc, nTheta, nRho, cfg.Threshold)
	if cfg.MaxPeaks > 0 && len(peaks) > cfg.MaxPeaks {
		peaks = peaks[:cfg.MaxPeaks]
	}

	used := make([]bool, len(points))
	var segments []geometry.LineSegment
	for _, pk := range peaks {
		c, s := cosT[pk.theta], sinT[pk.theta]
		rho := float64(pk.rho)*cfg.Rho - diag

		idx := collectNear(points, used, func(p utils.Point) float64 {
			return math.Abs(p.X*c + p.Y*s - rho)
		}, inlierBand)
		line, ok := fitLine(points, idx)
		if !ok {
			continue
		}
		idx = collectNear(points, used, line.distance, refitBand)
		if line, ok = fitLine(points, idx); !ok {
			continue
		}
		for _, run := range splitRuns(points, idx, line, cfg.MaxLineGap) {
			if run.hi-run.lo < minLength {
				continue
			}
			segments = append(segments, geometry.LineSegment{A: line.at(run.lo), B: line.at(run.hi)})
			for _, i := range run.members {
				used[i] = true
			}
		}
	}
	return segments
}

// findPeaks returns accumulator cells at or above threshold that are maximal
// in their 3x3 neighbourhood, strongest first.
func findPeaks(acc []int32, nTheta, nRho, threshold int) []houghPeak {
	var peaks []houghPeak
	for t := range nTheta {
		for r := range nRho {
			v := acc[t*nRho+r]
			if int(v) < threshold {
				continue
			}
			isMax := true
			for dt := -1; dt <= 1 && isMax; dt++ {
				for dr := -1; dr <= 1; dr++ {
					if dt == 0 && dr == 0 {
						continue
					}
					tt, rr := t+dt, r+dr
					if tt < 0 || tt >= nTheta || rr < 0 || rr >= nRho {
						continue
					}
					n := acc[tt*nRho+rr]
					// Plateaus resolve to their first cell in scan order.
					if n > v || (n == v && (dt < 0 || (dt == 0 && dr < 0))) {
						isMax = false
						break
					}
				}
			}
			if isMax {
				peaks = append(peaks, houghPeak{theta: t, rho: r, votes: int(v)})
			}
		}
	}
	slices.SortStableFunc(peaks, func(a, b houghPeak) int { return cmp.Compare(b.votes, a.votes) })
	return peaks
}

func collectNear(points []utils.Point, used []bool, dist func(utils.Point) float64, band float64) []int {
	var idx []int
	for i, p := range points {
		if !used[i] && dist(p) <= band {
			idx = append(idx, i)
		}
	}
	return idx
}

// fittedLine is a point on the line plus a unit direction.
type fittedLine struct {
	cx, cy float64
	dx, dy float64
}

func (l fittedLine) distance(p utils.Point) float64 {
	return math.Abs((p.X-l.cx)*-l.dy + (p.Y-l.cy)*l.dx)
}

func (l fittedLine) project(p utils.Point) float64 {
	return (p.X-l.cx)*l.dx + (p.Y-l.cy)*l.dy
}

func (l fittedLine) at(t float64) utils.Point {
	return utils.Point{X: l.cx + t*l.dx, Y: l.cy + t*l.dy}
}

// fitLine returns the total least squares line through the selected points.
func fitLine(points []utils.Point, idx []int) (fittedLine, bool) {
	if len(idx) < 2 {
		return fittedLine{}, false
	}
	xs := make([]float64, len(idx))
	ys := make([]float64, len(idx))
	for k, i := range idx {
		xs[k], ys[k] = points[i].X, points[i].Y
	}
	vxx := stat.Variance(xs, nil)
	vyy := stat.Variance(ys, nil)
	vxy := stat.Covariance(xs, ys, nil)
	if vxx+vyy == 0 {
		return fittedLine{}, false
	}
	angle := 0.5 * math.Atan2(2*vxy, vxx-vyy)
	return fittedLine{
		cx: stat.Mean(xs, nil),
		cy: stat.Mean(ys, nil),
		dx: math.Cos(angle),
		dy: math.Sin(angle),
	}, true
}

type run struct {
	lo, hi  float64
	members []int
}

// splitRuns orders the points along the line and cuts wherever two
// neighbours are more than maxGap apart.
func splitRuns(points []utils.Point, idx []int, line fittedLine, maxGap float64) []run {
	type proj struct {
		t float64
		i int
	}
	ps := make([]proj, len(idx))
	for k, i := range idx {
		ps[k] = proj{t: line.project(points[i]), i: i}
	}
	slices.SortFunc(ps, func(a, b proj) int { return cmp.Compare(a.t, b.t) })

	var runs []run
	cur := run{lo: ps[0].t, hi: ps[0].t, members: []int{ps[0].i}}
	for _, p := range ps[1:] {
		if p.t-cur.hi > maxGap {
			runs = append(runs, cur)
			cur = run{lo: p.t, hi: p.t}
		}
		cur.hi = p.t
		cur.members = append(cur.members, p.i)
	}
	return append(runs, cur)
}
