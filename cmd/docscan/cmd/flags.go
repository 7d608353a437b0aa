package cmd

import (
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/docscan/internal/config"
	"github.com/MeKo-Tech/docscan/internal/detector"
	"github.com/MeKo-Tech/docscan/internal/pipeline"
	"github.com/MeKo-Tech/docscan/internal/utils"
)

const (
	outputFormatJSON = "json"
	outputFormatCSV  = "csv"
	outputFormatText = "text"
)

// addDetectionFlags registers the flags shared by every scanning command.
func addDetectionFlags(cmd *cobra.Command) {
	cmd.Flags().String("backend", "", "edge-map backend (default from config)")
	cmd.Flags().Int("max-dimension", 0, "longest side of the working image in pixels")
	cmd.Flags().Bool("no-validate", false, "accept any contour quadrilateral without the plausibility checks")
	cmd.Flags().String("debug-dir", "", "write intermediate edge maps and overlays to this directory")
	cmd.Flags().String("interpolation", "", "rectification sampling: bilinear or nearest")
}

// applyDetectionFlags copies changed detection flags into cfg.
func applyDetectionFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("backend") {
		cfg.Detection.Backend, _ = cmd.Flags().GetString("backend")
	}
	if cmd.Flags().Changed("max-dimension") {
		cfg.Detection.MaxDimension, _ = cmd.Flags().GetInt("max-dimension")
	}
	if cmd.Flags().Changed("no-validate") {
		noValidate, _ := cmd.Flags().GetBool("no-validate")
		cfg.Detection.Validation.Enabled = !noValidate
	}
	if cmd.Flags().Changed("debug-dir") {
		dir, _ := cmd.Flags().GetString("debug-dir")
		cfg.Detection.DebugDir = dir
		cfg.Rectify.DebugDir = dir
	}
	if cmd.Flags().Changed("interpolation") {
		cfg.Rectify.Interpolation, _ = cmd.Flags().GetString("interpolation")
	}
}

// buildPipeline applies the command flags to a copy of the loaded
// configuration and creates the pipeline.
func buildPipeline(cmd *cobra.Command, state *cliState) (*pipeline.Pipeline, *config.Config, error) {
	cfg := *state.cfg
	applyDetectionFlags(cmd, &cfg)
	pl, err := pipeline.New(cfg.ToPipelineConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build pipeline: %w", err)
	}
	return pl, &cfg, nil
}

// parseCornersFlag parses "x1,y1,x2,y2,x3,y3,x4,y4".
func parseCornersFlag(s string) ([]utils.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 8 {
		return nil, fmt.Errorf("corners need 8 comma-separated numbers, got %d", len(parts))
	}
	pts := make([]utils.Point, 4)
	for i := range pts {
		x, err := strconv.ParseFloat(strings.TrimSpace(parts[2*i]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid corner x%d: %w", i+1, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(parts[2*i+1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid corner y%d: %w", i+1, err)
		}
		pts[i] = utils.Point{X: x, Y: y}
	}
	return pts, nil
}

// imageFormatFromPath maps an output file extension to an encoder name.
func imageFormatFromPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "png", nil
	case ".jpg", ".jpeg":
		return "jpeg", nil
	default:
		return "", fmt.Errorf("unsupported output extension %q (use .png, .jpg or .jpeg)", filepath.Ext(path))
	}
}

// renderOverlay draws det on src. An explicit colour wins; otherwise the
// configured colour is used unless the corners are the fallback defaults.
func renderOverlay(src image.Image, det *detector.Result, colorHex string, explicit bool) (image.Image, error) {
	if det.IsFallback() && !explicit {
		return detector.RenderOverlay(src, det), nil
	}
	var col color.Color = color.RGBA{R: 255, A: 255}
	if colorHex != "" {
		c, err := utils.ParseColor(colorHex)
		if err != nil {
			return nil, err
		}
		col = c
	}
	return detector.RenderOverlayColor(src, det, col), nil
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
