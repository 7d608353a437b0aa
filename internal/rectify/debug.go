package rectify

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/docscan/internal/utils"
)

func toNRGBA(c color.RGBA) color.NRGBA {
	return color.NRGBAModel.Convert(c).(color.NRGBA)
}

// dumpComparePNG writes the source with the corner quad next to the output.
func dumpComparePNG(dir string, src image.Image, srcQuad []utils.Point, dst image.Image) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	ts := time.Now().UnixNano()
	path := filepath.Join(dir, fmt.Sprintf("rect_compare_%d.png", ts))

	sb, db := src.Bounds(), dst.Bounds()
	gap := 10
	canvas := image.NewRGBA(image.Rect(0, 0, sb.Dx()+gap+db.Dx(), max(sb.Dy(), db.Dy())))
	draw.Draw(canvas, image.Rect(0, 0, sb.Dx(), sb.Dy()), src, sb.Min, draw.Src)
	xoff := sb.Dx() + gap
	draw.Draw(canvas, image.Rect(xoff, 0, xoff+db.Dx(), db.Dy()), dst, db.Min, draw.Src)

	utils.DrawPolygon(canvas, srcQuad, color.RGBA{255, 0, 0, 255}, 2)
	frame := []utils.Point{
		{X: float64(xoff), Y: 0},
		{X: float64(xoff + db.Dx() - 1), Y: 0},
		{X: float64(xoff + db.Dx() - 1), Y: float64(db.Dy() - 1)},
		{X: float64(xoff), Y: float64(db.Dy() - 1)},
	}
	utils.DrawPolygon(canvas, frame, color.RGBA{0, 255, 0, 255}, 2)

	f, err := os.Create(path) //nolint:gosec // G304: path is constructed from timestamp in debug directory
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return png.Encode(f, canvas)
}
