// Package rectify flattens a photographed document given its four corners.
//
// The output size follows the longer of each pair of opposite sides, so
// foreshortened content is stretched rather than cropped. The source image is
// never modified.
package rectify

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/MeKo-Tech/docscan/internal/common"
	"github.com/MeKo-Tech/docscan/internal/geometry"
	"github.com/MeKo-Tech/docscan/internal/utils"
)

var (
	// ErrInvalidCorners is returned when the corner list does not hold
	// exactly four points.
	ErrInvalidCorners = errors.New("rectify: exactly 4 corners required")
	// ErrOutputTooLarge is returned when the computed output exceeds
	// Config.MaxOutputPixels.
	ErrOutputTooLarge = errors.New("rectify: output too large")
)

// Transform describes the warp derived from a set of corners.
type Transform struct {
	Corners geometry.Quad // source corners, clockwise from top-left
	Width   int
	Height  int
	// Forward maps source coordinates to output coordinates.
	Forward Homography
	// Inverse maps output coordinates back to the source.
	Inverse Homography
}

// maxTransformPixels bounds any output regardless of Config.MaxOutputPixels,
// keeping width*height and the NRGBA buffer size well inside int.
const maxTransformPixels = 1 << 30

// outputExtent is the unrounded output size: the longer horizontal side by
// the longer vertical side.
func outputExtent(q geometry.Quad) (float64, float64) {
	return math.Max(q.BottomWidth(), q.TopWidth()), math.Max(q.RightHeight(), q.LeftHeight())
}

// OutputSize returns the rectified dimensions for clockwise-ordered corners:
// the longer horizontal side by the longer vertical side, rounded, at least
// one pixel each. Huge or non-finite corners overflow int; NewTransform
// rejects those before sizing.
func OutputSize(q geometry.Quad) (int, int) {
	w, h := outputExtent(q)
	return max(1, int(math.Round(w))), max(1, int(math.Round(h)))
}

// checkExtent rejects output sizes that are not finite or exceed limit
// pixels in either dimension or in total. limit <= 0 means only the hard
// ceiling applies.
func checkExtent(w, h float64, limit int) error {
	if math.IsNaN(w) || math.IsNaN(h) || math.IsInf(w, 0) || math.IsInf(h, 0) {
		return fmt.Errorf("%w: non-finite size", ErrOutputTooLarge)
	}
	lim := float64(maxTransformPixels)
	if limit > 0 && float64(limit) < lim {
		lim = float64(limit)
	}
	w, h = math.Max(1, math.Round(w)), math.Max(1, math.Round(h))
	if w > lim || h > lim || w*h > lim {
		return fmt.Errorf("%w: %.0fx%.0f", ErrOutputTooLarge, w, h)
	}
	return nil
}

// NewTransform orders the corners and solves the homography onto the
// destination rectangle [0,0]..[W-1,H-1].
func NewTransform(corners []utils.Point) (*Transform, error) {
	q, err := geometry.QuadFromPoints(corners)
	if err != nil {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCorners, len(corners))
	}
	q = geometry.SortClockwise(q)
	fw, fh := outputExtent(q)
	if err := checkExtent(fw, fh, 0); err != nil {
		return nil, err
	}
	w, h := OutputSize(q)
	dst := [4]utils.Point{
		{X: 0, Y: 0},
		{X: float64(w - 1), Y: 0},
		{X: float64(w - 1), Y: float64(h - 1)},
		{X: 0, Y: float64(h - 1)},
	}

	fwd, err := ComputeHomography(q, dst)
	if err != nil {
		return nil, err
	}
	inv, err := ComputeHomography(dst, q)
	if err != nil {
		return nil, err
	}
	return &Transform{Corners: q, Width: w, Height: h, Forward: fwd, Inverse: inv}, nil
}

// Rectifier warps images onto the rectangle spanned by four corners.
type Rectifier struct {
	cfg Config
}

// New creates a rectifier.
func New(cfg Config) (*Rectifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rectify config: %w", err)
	}
	return &Rectifier{cfg: cfg}, nil
}

// Config returns the rectifier configuration.
func (r *Rectifier) Config() Config { return r.cfg }

// Rectify warps the region of img bounded by corners into a new image.
// Corners are in img pixel coordinates relative to its bounds origin and may
// come in any order.
func (r *Rectifier) Rectify(img image.Image, corners []utils.Point) (*image.NRGBA, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, &utils.ImageProcessingError{Operation: "rectify", Err: errors.New("empty image")}
	}
	t, err := NewTransform(corners)
	if err != nil {
		return nil, err
	}
	if err := checkExtent(float64(t.Width), float64(t.Height), r.cfg.MaxOutputPixels); err != nil {
		return nil, err
	}

	fill, err := utils.ParseColor(r.cfg.fill())
	if err != nil {
		return nil, err
	}
	interp := r.cfg.Interpolation
	if interp == "" {
		interp = InterpolationBilinear
	}

	sw := common.StartStopwatch()
	out := warpPerspective(img, t.Inverse, t.Width, t.Height, interp, toNRGBA(fill))
	slog.Debug("Rectified document",
		"width", t.Width,
		"height", t.Height,
		"interpolation", interp,
		"duration", sw.Elapsed())

	if r.cfg.DebugDir != "" {
		if err := dumpComparePNG(r.cfg.DebugDir, img, t.Corners.Points(), out); err != nil {
			slog.Warn("Failed to write rectify debug image", "error", err)
		}
	}
	return out, nil
}

// Rectify warps img with the default configuration.
func Rectify(img image.Image, corners []utils.Point) (*image.NRGBA, error) {
	r := &Rectifier{cfg: DefaultConfig()}
	return r.Rectify(img, corners)
}
