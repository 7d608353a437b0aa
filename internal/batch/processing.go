package batch

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/docscan/internal/detector"
	"github.com/MeKo-Tech/docscan/internal/pipeline"
	"github.com/MeKo-Tech/docscan/internal/utils"
)

// outputNamer hands out unique file names inside one output directory.
type outputNamer struct {
	dir  string
	used map[string]int
}

func newOutputNamer(dir string) *outputNamer {
	return &outputNamer{dir: dir, used: make(map[string]int)}
}

// next returns dir/<stem><suffix>.<ext>, adding a counter when two inputs
// share a base name.
func (n *outputNamer) next(path, suffix, ext string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base)) + suffix
	count := n.used[stem]
	n.used[stem] = count + 1
	if count > 0 {
		stem += "_" + strconv.Itoa(count)
	}
	return filepath.Join(n.dir, stem+"."+ext)
}

// writeRectified saves every rectified page to config.OutputDir.
func writeRectified(results []pipeline.FileResult, config *Config) ([]string, error) {
	if config.OutputDir == "" || config.DetectOnly {
		return nil, nil
	}
	if err := os.MkdirAll(config.OutputDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	format := config.ImageFormat
	if format == "" {
		format = "png"
	}
	quality := config.JPEGQuality
	if quality <= 0 {
		quality = utils.DefaultJPEGQuality
	}

	namer := newOutputNamer(config.OutputDir)
	var written []string
	for _, r := range results {
		if r.Err != nil || r.Result == nil || r.Result.Image == nil {
			continue
		}
		outPath := namer.next(r.Path, "_scan", format)
		if err := saveEncoded(outPath, r.Result.Image, format, quality); err != nil {
			return written, err
		}
		written = append(written, outPath)
	}
	return written, nil
}

// writeOverlays renders the detected corners of every scanned file into
// config.OverlayDir. Sources are decoded again since batch results do not
// keep the input images.
func writeOverlays(results []pipeline.FileResult, config *Config) error {
	if config.OverlayDir == "" {
		return nil
	}
	if err := os.MkdirAll(config.OverlayDir, 0o750); err != nil {
		return fmt.Errorf("failed to create overlay directory: %w", err)
	}

	var col color.Color
	if config.OverlayColor != "" {
		c, err := utils.ParseColor(config.OverlayColor)
		if err != nil {
			return err
		}
		col = c
	}

	namer := newOutputNamer(config.OverlayDir)
	for _, r := range results {
		if r.Err != nil || r.Result == nil || r.Result.Detection == nil {
			continue
		}
		src, _, err := utils.LoadImage(r.Path)
		if err != nil {
			slog.Warn("Skipping overlay", "file", r.Path, "error", err)
			continue
		}
		outPath := namer.next(r.Path, "_overlay", "png")
		if err := saveEncoded(outPath, renderOverlay(src, r.Result.Detection, col), "png", 0); err != nil {
			return err
		}
	}
	return nil
}

func renderOverlay(src image.Image, det *detector.Result, col color.Color) image.Image {
	if col == nil {
		return detector.RenderOverlay(src, det)
	}
	return detector.RenderOverlayColor(src, det, col)
}

func saveEncoded(path string, img image.Image, format string, quality int) error {
	f, err := os.Create(path) //nolint:gosec // G304: path is built from the user's output directory
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := utils.EncodeImageQuality(f, img, format, quality); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}
