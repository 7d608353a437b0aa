package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/docscan/internal/utils"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Default scene colours: dark desk, off-white paper, black ink.
var (
	DeskColor  = color.RGBA{R: 40, G: 42, B: 45, A: 255}
	PaperColor = color.RGBA{R: 236, G: 234, B: 228, A: 255}
	InkColor   = color.RGBA{R: 20, G: 20, B: 20, A: 255}
)

// DocumentImage renders a filled quadrilateral of paper on a uniform
// background. Pixels are tested at their centres, so the boundary is
// aliased and lies within half a pixel of the given corners.
func DocumentImage(width, height int, corners [4]utils.Point, bg, paper color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)

	box := utils.BoundingBox(corners[:])
	y0 := max(0, int(math.Floor(box.MinY)))
	y1 := min(height-1, int(math.Ceil(box.MaxY)))
	x0 := max(0, int(math.Floor(box.MinX)))
	x1 := min(width-1, int(math.Ceil(box.MaxX)))
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			if insidePolygon(corners[:], float64(x)+0.5, float64(y)+0.5) {
				img.Set(x, y, paper)
			}
		}
	}
	return img
}

// DrawLabel writes text with the basic bitmap font, baseline at (x, y).
func DrawLabel(img draw.Image, text string, x, y int, col color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

// GradientImage returns an image whose red channel grows with x and green
// channel with y, useful to check that a warp keeps pixels in place.
func GradientImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	return img
}

// insidePolygon is the even-odd crossing test.
func insidePolygon(poly []utils.Point, x, y float64) bool {
	in := false
	for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
		a, b := poly[i], poly[j]
		if (a.Y > y) != (b.Y > y) && x < (b.X-a.X)*(y-a.Y)/(b.Y-a.Y)+a.X {
			in = !in
		}
	}
	return in
}

// SaveImage saves an image to the specified path as PNG.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	dir := filepath.Dir(path)
	require.NoError(t, EnsureDir(dir), "Failed to create directory %s", dir)

	file, err := os.Create(path) //nolint:gosec // G304: Test file creation with controlled path
	require.NoError(t, err, "Failed to create file %s", path)
	defer func() {
		require.NoError(t, file.Close())
	}()

	require.NoError(t, png.Encode(file, img), "Failed to encode PNG image")
}

// MeanAbsDiff returns the mean absolute per-channel difference of two
// equally sized images, in 8-bit units. Mismatched bounds yield +Inf.
func MeanAbsDiff(a, b image.Image) float64 {
	ba, bb := a.Bounds(), b.Bounds()
	if ba.Dx() != bb.Dx() || ba.Dy() != bb.Dy() {
		return math.Inf(1)
	}
	total := 0.0
	for y := range ba.Dy() {
		for x := range ba.Dx() {
			r1, g1, b1, _ := a.At(ba.Min.X+x, ba.Min.Y+y).RGBA()
			r2, g2, b2, _ := b.At(bb.Min.X+x, bb.Min.Y+y).RGBA()
			total += math.Abs(float64(r1>>8)-float64(r2>>8)) +
				math.Abs(float64(g1>>8)-float64(g2>>8)) +
				math.Abs(float64(b1>>8)-float64(b2>>8))
		}
	}
	return total / float64(3*ba.Dx()*ba.Dy())
}
