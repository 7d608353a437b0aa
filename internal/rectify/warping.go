package rectify

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// warpPerspective fills a dstW x dstH image by mapping every destination
// pixel through h (destination to source) and sampling src there.
func warpPerspective(src image.Image, h Homography, dstW, dstH int, interp Interpolation, fill color.NRGBA) *image.NRGBA {
	s := imaging.Clone(src)
	out := image.NewNRGBA(image.Rect(0, 0, dstW, dstH))

	sample := bilinearSample
	if interp == InterpolationNearest {
		sample = nearestSample
	}
	for y := range dstH {
		row := out.Pix[y*out.Stride : y*out.Stride+dstW*4]
		for x := range dstW {
			sx, sy := h.Apply(float64(x), float64(y))
			c := fill
			if !math.IsNaN(sx) {
				c = sample(s, sx, sy, fill)
			}
			i := x * 4
			row[i], row[i+1], row[i+2], row[i+3] = c.R, c.G, c.B, c.A
		}
	}
	return out
}

func inside(b image.Rectangle, x, y float64) bool {
	return x >= 0 && y >= 0 && x <= float64(b.Dx()-1) && y <= float64(b.Dy()-1)
}

func nearestSample(src *image.NRGBA, x, y float64, fill color.NRGBA) color.NRGBA {
	if !inside(src.Rect, x, y) {
		return fill
	}
	i := src.PixOffset(int(x+0.5), int(y+0.5))
	p := src.Pix[i : i+4 : i+4]
	return color.NRGBA{R: p[0], G: p[1], B: p[2], A: p[3]}
}

func bilinearSample(src *image.NRGBA, x, y float64, fill color.NRGBA) color.NRGBA {
	b := src.Rect
	if !inside(b, x, y) {
		return fill
	}
	x0, y0 := int(x), int(y)
	x1, y1 := min(x0+1, b.Dx()-1), min(y0+1, b.Dy()-1)
	fx, fy := x-float64(x0), y-float64(y0)

	p00 := src.Pix[src.PixOffset(x0, y0):]
	p10 := src.Pix[src.PixOffset(x1, y0):]
	p01 := src.Pix[src.PixOffset(x0, y1):]
	p11 := src.Pix[src.PixOffset(x1, y1):]

	var c [4]uint8
	for k := range 4 {
		top := lerp(float64(p00[k]), float64(p10[k]), fx)
		bottom := lerp(float64(p01[k]), float64(p11[k]), fx)
		c[k] = uint8(lerp(top, bottom, fy) + 0.5)
	}
	return color.NRGBA{R: c[0], G: c[1], B: c[2], A: c[3]}
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }
