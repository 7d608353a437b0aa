package detector

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/docscan/internal/preprocess"
	"github.com/MeKo-Tech/docscan/internal/utils"
)

var (
	overlayColor  = color.RGBA{255, 0, 0, 255}
	fallbackColor = color.RGBA{255, 160, 0, 255}
)

func (s *detection) dumpDebug(res *Result) {
	dir := s.d.config.DebugDir
	ts := time.Now().UnixNano()
	for _, em := range []struct {
		tag string
		m   *preprocess.EdgeMap
	}{{"primary", s.primary}, {"retry", s.retry}} {
		if em.m == nil {
			continue
		}
		if err := dumpGrayPNG(dir, fmt.Sprintf("detect_%s_canny_%d.png", em.tag, ts), em.m.EdgesImage()); err != nil {
			slog.Warn("Failed to write debug edge map", "error", err)
		}
		if err := dumpGrayPNG(dir, fmt.Sprintf("detect_%s_closed_%d.png", em.tag, ts), em.m.ClosedImage()); err != nil {
			slog.Warn("Failed to write debug edge map", "error", err)
		}
	}
	if err := dumpOverlayPNG(dir, fmt.Sprintf("detect_overlay_%d.png", ts), s.img, res); err != nil {
		slog.Warn("Failed to write debug overlay", "error", err)
	}
}

func dumpGrayPNG(dir, name string, img *image.Gray) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(dir, name)) //nolint:gosec // G304: path is constructed from timestamp in debug directory
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return png.Encode(f, img)
}

func dumpOverlayPNG(dir, name string, src image.Image, res *Result) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(dir, name)) //nolint:gosec // G304: path is constructed from timestamp in debug directory
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return png.Encode(f, RenderOverlay(src, res))
}

// RenderOverlay draws the detected quadrilateral and its corner handles on a
// copy of src. Fallback corners are drawn in orange.
func RenderOverlay(src image.Image, res *Result) *image.RGBA {
	col := overlayColor
	if res.IsFallback() {
		col = fallbackColor
	}
	return RenderOverlayColor(src, res, col)
}

// RenderOverlayColor is RenderOverlay with a caller-chosen colour.
func RenderOverlayColor(src image.Image, res *Result, col color.Color) *image.RGBA {
	canvas := utils.ToRGBA(src)
	thickness := max(2, min(canvas.Bounds().Dx(), canvas.Bounds().Dy())/300)
	pts := res.Corners.Points()
	utils.DrawPolygon(canvas, pts, col, thickness)
	for _, p := range pts {
		utils.DrawHandle(canvas, p, 3*thickness, col)
	}
	return canvas
}
