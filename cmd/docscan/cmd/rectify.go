package cmd

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/docscan/internal/detector"
	"github.com/MeKo-Tech/docscan/internal/pipeline"
	"github.com/MeKo-Tech/docscan/internal/utils"
)

func newRectifyCmd(state *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rectify <image>",
		Short: "Warp a document into a flat, upright scan",
		Long: `Rectify the document in an image into an upright rectangle.

Without --corners the corners are detected first. Corners are given as
eight comma-separated numbers x1,y1,...,x4,y4 in image pixels, in any order.
The output format follows the extension of --output (.png, .jpg, .jpeg).

Examples:
  docscan rectify photo.jpg
  docscan rectify photo.jpg -o scan.jpg --quality 85
  docscan rectify photo.jpg --corners 50,50,450,50,450,650,50,650`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRectify(cmd, state, args[0])
		},
	}
	cmd.Flags().String("corners", "", "corner coordinates x1,y1,x2,y2,x3,y3,x4,y4 (skips the detected corners)")
	cmd.Flags().StringP("output", "o", "", "output image (default <image>_scan.png next to the input)")
	cmd.Flags().Int("quality", 0, "JPEG quality 1-100 (default from config)")
	addDetectionFlags(cmd)
	return cmd
}

func runRectify(cmd *cobra.Command, state *cliState, path string) error {
	pl, cfg, err := buildPipeline(cmd, state)
	if err != nil {
		return err
	}

	outPath, _ := cmd.Flags().GetString("output")
	if outPath == "" {
		outPath = filepath.Join(filepath.Dir(path), stem(path)+"_scan.png")
	}
	format, err := imageFormatFromPath(outPath)
	if err != nil {
		return err
	}
	quality := cfg.Output.JPEGQuality
	if cmd.Flags().Changed("quality") {
		quality, _ = cmd.Flags().GetInt("quality")
		if quality < 1 || quality > 100 {
			return fmt.Errorf("invalid quality: %d (must be between 1 and 100)", quality)
		}
	}

	var corners []utils.Point
	if s, _ := cmd.Flags().GetString("corners"); s != "" {
		if corners, err = parseCornersFlag(s); err != nil {
			return err
		}
	}

	img, _, err := utils.LoadImage(path)
	if err != nil {
		return err
	}

	session := pl.NewSession()
	det, err := session.Detect(cmd.Context(), img)
	if err != nil {
		return fmt.Errorf("detection failed: %w", err)
	}
	if corners != nil {
		if err := session.SetCorners(corners); err != nil {
			return err
		}
	} else if det.IsFallback() {
		slog.Warn("No document edges found, rectifying with default corners", "file", path)
	}

	out, err := session.Rectify(cmd.Context())
	if err != nil {
		return fmt.Errorf("rectification failed: %w", err)
	}
	_, source, _ := session.Corners()

	if err := saveImage(outPath, out, format, quality); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%dx%d, corners: %s)\n",
		outPath, out.Rect.Dx(), out.Rect.Dy(), cornerSourceLabel(source, det.Strategy))
	return nil
}

func cornerSourceLabel(source pipeline.CornerSource, strategy detector.Strategy) string {
	if source == pipeline.CornersUserAdjusted {
		return string(source)
	}
	return string(strategy)
}

func saveImage(path string, img *image.NRGBA, format string, quality int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path) //nolint:gosec // G304: output path comes from the user
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := utils.EncodeImageQuality(f, img, format, quality); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
