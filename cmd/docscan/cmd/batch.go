package cmd

import (
	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/docscan/internal/batch"
	"github.com/MeKo-Tech/docscan/internal/config"
)

func newBatchCmd(state *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <dir|files...>",
		Short: "Detect and rectify many images in parallel",
		Long: `Scan every image found in the given files and directories with a pool of
parallel workers. Results are printed as text, JSON or CSV; rectified pages
are written to --output-dir when set.

A file that cannot be read or rectified is reported and skipped unless
--continue-on-error=false is given.

Examples:
  docscan batch photos/
  docscan batch photos/ --recursive --workers 8 --output-dir scans/
  docscan batch a.jpg b.png --format csv --output results.csv
  docscan batch photos/ --detect-only --overlay-dir overlays/`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, state, args)
		},
	}

	cmd.Flags().IntP("workers", "w", 0, "number of parallel workers (default from config)")
	cmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	cmd.Flags().StringSlice("extensions", nil, "image extensions to include (default from config)")
	cmd.Flags().StringSlice("include", nil, "only include file names matching these glob patterns")
	cmd.Flags().StringSlice("exclude", nil, "skip file names matching these glob patterns")
	cmd.Flags().String("output-dir", "", "write rectified pages to this directory")
	cmd.Flags().String("image-format", "png", "format of the rectified pages: png or jpeg")
	cmd.Flags().Int("quality", 0, "JPEG quality 1-100 (default from config)")
	cmd.Flags().String("overlay-dir", "", "write overlay images with the detected corners to this directory")
	cmd.Flags().String("overlay-color", "", "overlay colour as hex (default from config)")
	cmd.Flags().StringP("format", "f", "", "result format: text, json or csv (default from config)")
	cmd.Flags().StringP("output", "o", "", "write results to this file instead of stdout")
	cmd.Flags().Bool("detect-only", false, "only detect corners, do not rectify")
	cmd.Flags().Bool("continue-on-error", true, "keep going when a file fails")
	cmd.Flags().Bool("progress", false, "show a progress bar on stderr")
	cmd.Flags().BoolP("quiet", "q", false, "suppress progress and statistics")
	cmd.Flags().Bool("stats", false, "print processing statistics")
	addDetectionFlags(cmd)
	return cmd
}

// configToBatchConfig maps the loaded configuration and the changed flags
// onto batch.Config.
func configToBatchConfig(cmd *cobra.Command, cfg *config.Config) *batch.Config {
	bc := batch.DefaultConfig()
	bc.Pipeline = cfg.ToPipelineConfig()
	bc.Format = cfg.Output.Format
	bc.OutputFile = cfg.Output.File
	bc.OverlayDir = cfg.Output.OverlayDir
	bc.OverlayColor = cfg.Output.OverlayColor
	bc.JPEGQuality = cfg.Output.JPEGQuality
	bc.Workers = cfg.Batch.Workers
	bc.OutputDir = cfg.Batch.OutputDir
	bc.Recursive = cfg.Batch.Recursive
	bc.Extensions = cfg.Batch.Extensions
	bc.ContinueOnError = cfg.Batch.ContinueOnError
	bc.DetectOnly = cfg.Batch.DetectOnly

	flags := cmd.Flags()
	if flags.Changed("workers") {
		bc.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("recursive") {
		bc.Recursive, _ = flags.GetBool("recursive")
	}
	if flags.Changed("extensions") {
		bc.Extensions, _ = flags.GetStringSlice("extensions")
	}
	bc.IncludePatterns, _ = flags.GetStringSlice("include")
	bc.ExcludePatterns, _ = flags.GetStringSlice("exclude")
	if flags.Changed("output-dir") {
		bc.OutputDir, _ = flags.GetString("output-dir")
	}
	bc.ImageFormat, _ = flags.GetString("image-format")
	if flags.Changed("quality") {
		bc.JPEGQuality, _ = flags.GetInt("quality")
	}
	if flags.Changed("overlay-dir") {
		bc.OverlayDir, _ = flags.GetString("overlay-dir")
	}
	if flags.Changed("overlay-color") {
		bc.OverlayColor, _ = flags.GetString("overlay-color")
	}
	if flags.Changed("format") {
		bc.Format, _ = flags.GetString("format")
	}
	if flags.Changed("output") {
		bc.OutputFile, _ = flags.GetString("output")
	}
	if flags.Changed("detect-only") {
		bc.DetectOnly, _ = flags.GetBool("detect-only")
	}
	if flags.Changed("continue-on-error") {
		bc.ContinueOnError, _ = flags.GetBool("continue-on-error")
	}
	bc.ShowProgress, _ = flags.GetBool("progress")
	bc.Quiet, _ = flags.GetBool("quiet")
	bc.ShowStats, _ = flags.GetBool("stats")
	return bc
}

func runBatch(cmd *cobra.Command, state *cliState, args []string) error {
	cfg := *state.cfg
	applyDetectionFlags(cmd, &cfg)
	bc := configToBatchConfig(cmd, &cfg)

	res, err := batch.ProcessBatch(cmd.Context(), args, bc, cmd.ErrOrStderr())
	if res == nil {
		return err
	}
	if saveErr := res.SaveResults(cmd.OutOrStdout(), bc.Format, bc.OutputFile, bc.Quiet); saveErr != nil {
		return saveErr
	}
	if bc.ShowStats {
		res.PrintStats(cmd.ErrOrStderr(), bc.Quiet)
	}
	return err
}
