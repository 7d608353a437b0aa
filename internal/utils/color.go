package utils

import (
	"fmt"
	"image/color"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// ParseColor parses a "#rrggbb" or "#rgb" hex string.
func ParseColor(s string) (color.RGBA, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return color.RGBA{}, &ImageProcessingError{Operation: "parse color", Err: fmt.Errorf("%q: %w", s, err)}
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

// Tint blends base towards overlay by t in Lab space.
func Tint(base, overlay color.Color, t float64) color.RGBA {
	bc, ok := colorful.MakeColor(base)
	if !ok {
		return color.RGBA{A: 255}
	}
	oc, ok := colorful.MakeColor(overlay)
	if !ok {
		return color.RGBA{A: 255}
	}
	r, g, b := bc.BlendLab(oc, t).Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
