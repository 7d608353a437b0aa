// Package batch scans many images in one run: it discovers the input files,
// runs them through the pipeline worker pool and writes the rectified pages
// and overlays.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// ErrNoImages is returned when discovery finds nothing to scan.
var ErrNoImages = errors.New("no image files found")

// ProcessBatch scans the images named by paths (files or directories).
// Progress is drawn on progress when enabled. With ContinueOnError unset the
// first failed file fails the batch after all files were attempted; the
// partial result is returned alongside the error.
func ProcessBatch(ctx context.Context, paths []string, config *Config, progress io.Writer) (*Result, error) {
	switch strings.ToLower(config.ImageFormat) {
	case "", "png", "jpg", "jpeg":
	default:
		return nil, fmt.Errorf("unsupported image format: %s", config.ImageFormat)
	}

	files, err := discoverImageFiles(paths, config.Recursive, config.Extensions, config.IncludePatterns, config.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoImages
	}

	pl, err := buildPipeline(config)
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	pc := parallelConfig(config, progress)
	pc.ErrorHandler = func(i int, err error) {
		slog.Warn("Scan failed", "file", files[i], "error", err)
	}

	startTime := time.Now()
	results, err := pl.ProcessFiles(ctx, files, pc)
	if err != nil {
		return nil, fmt.Errorf("batch processing failed: %w", err)
	}
	res := &Result{
		Files:       results,
		Duration:    time.Since(startTime),
		WorkerCount: pc.MaxWorkers,
	}

	written, err := writeRectified(results, config)
	res.Written = written
	if err != nil {
		return res, err
	}
	if err := writeOverlays(results, config); err != nil {
		return res, err
	}

	slog.Info("Batch finished",
		"files", len(results),
		"failed", res.Failed(),
		"fallbacks", res.Fallbacks(),
		"duration_ms", res.Duration.Milliseconds())

	if !config.ContinueOnError {
		for _, r := range results {
			if r.Err != nil {
				return res, fmt.Errorf("%s: %w", r.Path, r.Err)
			}
		}
	}
	return res, nil
}
