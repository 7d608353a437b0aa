package utils

import (
	"errors"
	"fmt"
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
)

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// FitWithin shrinks img so that neither side exceeds maxDim, keeping the
// aspect ratio. Images that already fit are returned unchanged. The returned
// factors map a coordinate in the result back to the input
// (original / resized, per axis).
func FitWithin(img image.Image, maxDim int) (image.Image, float64, float64, error) {
	if img == nil {
		return nil, 0, 0, &ImageProcessingError{Operation: "resize", Err: errors.New("input image is nil")}
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, 0, 0, &ImageProcessingError{Operation: "resize", Err: fmt.Errorf("empty image %dx%d", w, h)}
	}
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return img, 1, 1, nil
	}

	var nw, nh int
	if w >= h {
		nw = maxDim
		nh = max(1, int(float64(h)*float64(maxDim)/float64(w)))
	} else {
		nh = maxDim
		nw = max(1, int(float64(w)*float64(maxDim)/float64(h)))
	}
	resized := imaging.Resize(img, nw, nh, imaging.Linear)
	return resized, float64(w) / float64(nw), float64(h) / float64(nh), nil
}

// ToRGBA returns an *image.RGBA copy of img with its origin at (0,0).
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
