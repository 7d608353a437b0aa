package rectify

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/docscan/internal/utils"
)

// Interpolation selects how source pixels are sampled.
type Interpolation string

const (
	// InterpolationBilinear blends the four nearest source pixels.
	InterpolationBilinear Interpolation = "bilinear"
	// InterpolationNearest takes the closest source pixel.
	InterpolationNearest Interpolation = "nearest"
)

// Config holds configuration for the perspective warp.
type Config struct {
	Interpolation   Interpolation // sampling method
	Fill            string        // hex colour for samples outside the source
	MaxOutputPixels int           // upper bound on width*height (0 = unlimited)
	// Debug dumping
	DebugDir string // if non-empty, writes a side-by-side comparison PNG here
}

// DefaultConfig returns sensible defaults for rectification.
func DefaultConfig() Config {
	return Config{
		Interpolation:   InterpolationBilinear,
		Fill:            "#000000",
		MaxOutputPixels: 100_000_000,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Interpolation {
	case InterpolationBilinear, InterpolationNearest, "":
	default:
		return fmt.Errorf("unknown interpolation %q", c.Interpolation)
	}
	if _, err := utils.ParseColor(c.fill()); err != nil {
		return fmt.Errorf("fill colour: %w", err)
	}
	if c.MaxOutputPixels < 0 {
		return errors.New("max output pixels must not be negative")
	}
	return nil
}

func (c Config) fill() string {
	if c.Fill == "" {
		return "#000000"
	}
	return c.Fill
}
