package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/MeKo-Tech/docscan/internal/detector"
	"github.com/MeKo-Tech/docscan/internal/pipeline"
	"github.com/MeKo-Tech/docscan/internal/utils"
)

// detectOutput is one entry of the JSON output.
type detectOutput struct {
	File      string           `json:"file"`
	Detection *detector.Result `json:"detection,omitempty"`
	Error     string           `json:"error,omitempty"`
}

func newDetectCmd(state *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect <image...>",
		Short: "Detect document corners in images",
		Long: `Detect the four document corners in one or more images.

The corners are reported clockwise from the top-left together with the
strategy that found them. Images in which no strategy finds the document
report default corners inset from the image border.

Supported formats: JPEG, PNG, BMP, TIFF, WebP

Examples:
  docscan detect photo.jpg
  docscan detect *.png --format json --output corners.json
  docscan detect photo.jpg --overlay overlays/ --overlay-color "#00FF00"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd, state, args)
		},
	}
	cmd.Flags().StringP("format", "f", "", "output format: text, json or csv (default from config)")
	cmd.Flags().StringP("output", "o", "", "write results to this file instead of stdout")
	cmd.Flags().String("overlay", "", "write overlay images with the detected corners to this directory")
	cmd.Flags().String("overlay-color", "", "overlay colour as hex (default from config)")
	addDetectionFlags(cmd)
	return cmd
}

func runDetect(cmd *cobra.Command, state *cliState, args []string) error {
	pl, cfg, err := buildPipeline(cmd, state)
	if err != nil {
		return err
	}

	format := cfg.Output.Format
	if cmd.Flags().Changed("format") {
		format, _ = cmd.Flags().GetString("format")
	}
	if !slices.Contains([]string{outputFormatText, outputFormatJSON, outputFormatCSV}, format) {
		return fmt.Errorf("invalid output format: %s (must be one of: text, json, csv)", format)
	}
	outputFile := cfg.Output.File
	if cmd.Flags().Changed("output") {
		outputFile, _ = cmd.Flags().GetString("output")
	}
	overlayDir := cfg.Output.OverlayDir
	if cmd.Flags().Changed("overlay") {
		overlayDir, _ = cmd.Flags().GetString("overlay")
	}
	overlayColor := cfg.Output.OverlayColor
	explicitColor := cmd.Flags().Changed("overlay-color")
	if explicitColor {
		overlayColor, _ = cmd.Flags().GetString("overlay-color")
	}
	if overlayDir != "" {
		if err := os.MkdirAll(overlayDir, 0o750); err != nil {
			return fmt.Errorf("failed to create overlay directory: %w", err)
		}
	}

	results := make([]detectOutput, 0, len(args))
	failed := 0
	for _, path := range args {
		entry := detectOutput{File: path}
		img, _, err := utils.LoadImage(path)
		if err == nil {
			entry.Detection, err = pl.Detect(cmd.Context(), img)
		}
		if err == nil && overlayDir != "" {
			err = writeOverlay(img, entry.Detection, filepath.Join(overlayDir, stem(path)+"_overlay.png"), overlayColor, explicitColor)
		}
		if err != nil {
			failed++
			entry.Error = err.Error()
			slog.Error("Detection failed", "file", path, "error", err)
		}
		results = append(results, entry)
	}

	var out io.Writer = cmd.OutOrStdout()
	if outputFile != "" {
		f, err := os.Create(outputFile) //nolint:gosec // G304: output path comes from the user
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	if err := writeDetectResults(out, results, format); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d image(s) failed", failed, len(args))
	}
	return nil
}

func writeOverlay(img image.Image, det *detector.Result, path, colorHex string, explicit bool) error {
	ov, err := renderOverlay(img, det, colorHex, explicit)
	if err != nil {
		return err
	}
	return utils.SaveImage(path, ov)
}

func writeDetectResults(w io.Writer, results []detectOutput, format string) error {
	switch format {
	case outputFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	case outputFormatCSV:
		files := make([]pipeline.FileResult, len(results))
		for i, r := range results {
			files[i].Path = r.File
			if r.Error != "" {
				files[i].Err = errors.New(r.Error)
			} else {
				files[i].Result = &pipeline.Result{Detection: r.Detection}
			}
		}
		text, err := pipeline.ToCSVFiles(files)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, text)
		return err
	default:
		_, err := io.WriteString(w, formatDetectText(results))
		return err
	}
}

var cornerNames = [4]string{"top-left", "top-right", "bottom-right", "bottom-left"}

func formatDetectText(results []detectOutput) string {
	title := cases.Title(language.English)
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		if r.Error != "" {
			fmt.Fprintf(&b, "%s: error: %s\n", r.File, r.Error)
			continue
		}
		det := r.Detection
		fmt.Fprintf(&b, "%s: %s (%dx%d, %v)\n", r.File, title.String(string(det.Strategy)),
			det.Width, det.Height, det.Duration.Round(time.Millisecond))
		for j, p := range det.Corners {
			fmt.Fprintf(&b, "  %-13s (%.1f, %.1f)\n", cornerNames[j]+":", p.X, p.Y)
		}
		if det.IsFallback() {
			b.WriteString("  no document edges found; corners are inset defaults\n")
		}
	}
	return b.String()
}
