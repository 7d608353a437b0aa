// Package preprocess turns a photograph into the binary edge maps the corner
// detectors work on: downscale, grayscale, optional histogram equalisation,
// Gaussian blur, Canny with adaptive or fixed thresholds, and a morphological
// close.
package preprocess

import "fmt"

// Config holds the parameters of one pre-processing pass.
type Config struct {
	// MaxDimension bounds the longest image side before any filtering.
	// Zero disables downscaling.
	MaxDimension int

	// Equalize applies global histogram equalisation to the gray image.
	Equalize bool

	// BlurKernel is the Gaussian kernel size; values <= 1 skip blurring.
	BlurKernel int

	// Adaptive derives the Canny thresholds from the median intensity.
	Adaptive     bool
	MedianKernel int     // median filter size used for the intensity estimate
	LowRatio     float64 // low = max(MinLow, LowRatio*median)
	HighRatio    float64 // high = min(MaxHigh, HighRatio*median)
	MinLow       float64
	MaxHigh      float64

	// Fixed Canny thresholds, used when Adaptive is false.
	LowThreshold  float64
	HighThreshold float64

	// CloseKernel is the square structuring element of the closing step.
	CloseKernel int
}

// PrimaryConfig returns the parameters of the first detection pass.
func PrimaryConfig() Config {
	return Config{
		MaxDimension: 1000,
		Equalize:     true,
		BlurKernel:   3,
		Adaptive:     true,
		MedianKernel: 5,
		LowRatio:     0.66,
		HighRatio:    1.33,
		MinLow:       20,
		MaxHigh:      255,
		CloseKernel:  5,
	}
}

// RetryConfig returns the looser parameters used once both primary
// detectors have failed: stronger blur and fixed low thresholds.
func RetryConfig() Config {
	return Config{
		MaxDimension:  1000,
		Equalize:      false,
		BlurKernel:    5,
		Adaptive:      false,
		LowThreshold:  30,
		HighThreshold: 100,
		CloseKernel:   5,
	}
}

// Validate checks the configuration for values no pass can run with.
func (c Config) Validate() error {
	if c.MaxDimension < 0 {
		return fmt.Errorf("max dimension must be >= 0, got %d", c.MaxDimension)
	}
	if c.BlurKernel > 1 && c.BlurKernel%2 == 0 {
		return fmt.Errorf("blur kernel must be odd, got %d", c.BlurKernel)
	}
	if c.CloseKernel < 0 {
		return fmt.Errorf("close kernel must be >= 0, got %d", c.CloseKernel)
	}
	if c.Adaptive {
		if c.MedianKernel < 1 || c.MedianKernel%2 == 0 {
			return fmt.Errorf("median kernel must be odd and positive, got %d", c.MedianKernel)
		}
		if c.LowRatio <= 0 || c.HighRatio <= c.LowRatio {
			return fmt.Errorf("adaptive ratios must satisfy 0 < low < high, got %.2f/%.2f", c.LowRatio, c.HighRatio)
		}
		return nil
	}
	if c.LowThreshold < 0 || c.HighThreshold < c.LowThreshold {
		return fmt.Errorf("canny thresholds must satisfy 0 <= low <= high, got %.1f/%.1f", c.LowThreshold, c.HighThreshold)
	}
	return nil
}
