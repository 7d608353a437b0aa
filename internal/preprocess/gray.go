package preprocess

import (
	"image"
	"image/draw"
	"math"

	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/histogram"
	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/stat"
)

// Grayscale converts img to an 8-bit luminance image with its origin at (0,0).
// bild returns the luminance replicated across RGBA channels; drawing it onto
// a Gray keeps one channel.
func Grayscale(img image.Image) *image.Gray {
	rgba := effect.Grayscale(img)
	b := rgba.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), rgba, b.Min, draw.Src)
	return out
}

// compact returns g with a zero origin and Stride equal to its width,
// copying only when needed.
func compact(g *image.Gray) *image.Gray {
	b := g.Bounds()
	if b.Min == (image.Point{}) && g.Stride == b.Dx() {
		return g
	}
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), g, b.Min, draw.Src)
	return out
}

// Equalize spreads the intensity histogram over the full 0..255 range using
// the cumulative distribution, the same mapping as OpenCV's equalizeHist.
func Equalize(g *image.Gray) *image.Gray {
	g = compact(g)
	bins := histogram.NewRGBAHistogram(g).R.Bins
	total := len(g.Pix)

	var cdf [256]int
	sum := 0
	for v := range 256 {
		if v < len(bins) {
			sum += bins[v]
		}
		cdf[v] = sum
	}
	cdfMin := 0
	for v := range 256 {
		if cdf[v] > 0 {
			cdfMin = cdf[v]
			break
		}
	}

	out := image.NewGray(g.Rect)
	if total == cdfMin {
		copy(out.Pix, g.Pix)
		return out
	}
	var lut [256]uint8
	scale := 255.0 / float64(total-cdfMin)
	for v := range 256 {
		lut[v] = uint8(math.Round(math.Max(0, float64(cdf[v]-cdfMin)*scale)))
	}
	for i, p := range g.Pix {
		out.Pix[i] = lut[p]
	}
	return out
}

// Blur applies a Gaussian blur whose sigma matches an OpenCV kernel of the
// given size with sigma 0.
func Blur(g *image.Gray, kernel int) *image.Gray {
	if kernel <= 1 {
		return g
	}
	sigma := 0.3*(float64(kernel-1)*0.5-1) + 0.8
	blurred := imaging.Blur(g, sigma)

	out := image.NewGray(image.Rect(0, 0, blurred.Rect.Dx(), blurred.Rect.Dy()))
	for i := range out.Pix {
		out.Pix[i] = blurred.Pix[i*4]
	}
	return out
}

// MedianIntensity median-filters g with a kernel x kernel window and returns
// the median gray level of the filtered image.
func MedianIntensity(g *image.Gray, kernel int) float64 {
	src := image.Image(g)
	if kernel > 1 {
		src = effect.Median(g, float64(kernel/2))
	}
	return medianOfHistogram(histogram.NewRGBAHistogram(src).R.Bins)
}

// medianOfHistogram returns the 0.5 quantile of gray levels weighted by
// their bin counts.
func medianOfHistogram(bins []int) float64 {
	levels := make([]float64, 0, len(bins))
	weights := make([]float64, 0, len(bins))
	for v, n := range bins {
		if n > 0 {
			levels = append(levels, float64(v))
			weights = append(weights, float64(n))
		}
	}
	if len(levels) == 0 {
		return 0
	}
	return stat.Quantile(0.5, stat.Empirical, levels, weights)
}

// AdaptiveThresholds derives Canny thresholds from a median intensity.
// The pair is returned in ascending order.
func AdaptiveThresholds(median float64, cfg Config) (float64, float64) {
	low := math.Max(cfg.MinLow, cfg.LowRatio*median)
	high := math.Min(cfg.MaxHigh, cfg.HighRatio*median)
	if high < low {
		low, high = high, low
	}
	return low, high
}
