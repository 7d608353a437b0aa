package detector

import "github.com/MeKo-Tech/docscan/internal/geometry"

// DefaultInsetRatio is the margin of the fallback rectangle as a fraction of
// the image width.
const DefaultInsetRatio = 0.1

// DefaultCorners returns a rectangle inset by 10% of the image width on all
// sides, ordered clockwise from top-left.
func DefaultCorners(width, height int) geometry.Quad {
	return InsetCorners(width, height, DefaultInsetRatio)
}

// InsetCorners returns a rectangle inset by ratio*width on every side. When
// that margin would swallow the whole height it is taken from the height
// instead.
func InsetCorners(width, height int, ratio float64) geometry.Quad {
	w, h := float64(width), float64(height)
	m := ratio * w
	if 2*m >= h {
		m = ratio * h
	}
	return geometry.Quad{
		{X: m, Y: m},
		{X: w - m, Y: m},
		{X: w - m, Y: h - m},
		{X: m, Y: h - m},
	}
}

