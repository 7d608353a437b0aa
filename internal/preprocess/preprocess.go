package preprocess

import (
	"errors"
	"image"
	"log/slog"

	"github.com/MeKo-Tech/docscan/internal/utils"
)

// ErrEmptyImage is returned for nil or zero-sized input.
var ErrEmptyImage = errors.New("preprocess: empty image")

// Preprocess runs one pure-Go pass over img and returns its edge maps.
func Preprocess(img image.Image, cfg Config) (*EdgeMap, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	if err := cfg.Validate(); err != nil {
		return nil, &utils.ImageProcessingError{Operation: "preprocess", Err: err}
	}

	small, sx, sy, err := utils.FitWithin(img, cfg.MaxDimension)
	if err != nil {
		return nil, err
	}

	gray := Grayscale(small)
	if cfg.Equalize {
		gray = Equalize(gray)
	}
	blurred := Blur(gray, cfg.BlurKernel)

	low, high := cfg.LowThreshold, cfg.HighThreshold
	if cfg.Adaptive {
		median := MedianIntensity(gray, cfg.MedianKernel)
		low, high = AdaptiveThresholds(median, cfg)
		slog.Debug("Adaptive canny thresholds", "median", median, "low", low, "high", high)
	}

	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	edges := Canny(blurred, low, high)
	return &EdgeMap{
		Width:  w,
		Height: h,
		Edges:  edges,
		Closed: Close(edges, w, h, cfg.CloseKernel),
		ScaleX: sx,
		ScaleY: sy,
		Low:    low,
		High:   high,
	}, nil
}
