// Package pipeline ties detection and rectification together: a one-shot
// Process call, an interactive Session state machine and a worker pool for
// batches.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/MeKo-Tech/docscan/internal/common"
	"github.com/MeKo-Tech/docscan/internal/detector"
	"github.com/MeKo-Tech/docscan/internal/rectify"
	"github.com/MeKo-Tech/docscan/internal/utils"
)

// Config holds configuration for the scanning pipeline and its components.
type Config struct {
	Detector  detector.Config
	Rectifier rectify.Config

	// Parallel processing configuration
	Parallel ParallelConfig
}

// DefaultConfig returns a default pipeline config with component defaults.
func DefaultConfig() Config {
	return Config{
		Detector:  detector.DefaultConfig(),
		Rectifier: rectify.DefaultConfig(),
		Parallel:  DefaultParallelConfig(),
	}
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg Config
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithBackend selects the edge-map backend.
func (b *Builder) WithBackend(name string) *Builder {
	if name != "" {
		b.cfg.Detector.Backend = name
	}
	return b
}

// WithMaxDimension sets the working resolution of both pre-processing passes.
func (b *Builder) WithMaxDimension(n int) *Builder {
	if n > 0 {
		b.cfg.Detector.Primary.MaxDimension = n
		b.cfg.Detector.Retry.MaxDimension = n
	}
	return b
}

// WithValidation toggles the plausibility gate of the primary contour pass.
func (b *Builder) WithValidation(enabled bool) *Builder {
	b.cfg.Detector.Contour.Validate = enabled
	return b
}

// WithDebugDir makes detector and rectifier write intermediate images.
func (b *Builder) WithDebugDir(dir string) *Builder {
	b.cfg.Detector.DebugDir = dir
	b.cfg.Rectifier.DebugDir = dir
	return b
}

// WithInterpolation sets the rectifier sampling method.
func (b *Builder) WithInterpolation(interp rectify.Interpolation) *Builder {
	if interp != "" {
		b.cfg.Rectifier.Interpolation = interp
	}
	return b
}

// WithWorkers sets the number of parallel workers for batches.
func (b *Builder) WithWorkers(n int) *Builder {
	b.cfg.Parallel.MaxWorkers = n
	return b
}

// Config returns the configuration that Build will use.
func (b *Builder) Config() Config { return b.cfg }

// Build creates the pipeline.
func (b *Builder) Build() (*Pipeline, error) { return New(b.cfg) }

// Pipeline runs detection and rectification. It keeps no per-image state, so
// one Pipeline can serve concurrent callers.
type Pipeline struct {
	Detector  *detector.Detector
	Rectifier *rectify.Rectifier
	cfg       Config
}

// New creates a pipeline from cfg.
func New(cfg Config) (*Pipeline, error) {
	det, err := detector.New(cfg.Detector)
	if err != nil {
		return nil, fmt.Errorf("failed to create detector: %w", err)
	}
	rect, err := rectify.New(cfg.Rectifier)
	if err != nil {
		return nil, fmt.Errorf("failed to create rectifier: %w", err)
	}
	slog.Debug("Pipeline initialized",
		"backend", cfg.Detector.Backend,
		"max_dimension", cfg.Detector.Primary.MaxDimension,
		"interpolation", cfg.Rectifier.Interpolation)
	return &Pipeline{Detector: det, Rectifier: rect, cfg: cfg}, nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Detect locates the document corners in img.
func (p *Pipeline) Detect(ctx context.Context, img image.Image) (*detector.Result, error) {
	if p == nil || p.Detector == nil {
		return nil, errors.New("pipeline not initialized")
	}
	return p.Detector.Detect(ctx, img)
}

// Rectify warps img onto the rectangle spanned by corners.
func (p *Pipeline) Rectify(img image.Image, corners []utils.Point) (*image.NRGBA, error) {
	if p == nil || p.Rectifier == nil {
		return nil, errors.New("pipeline not initialized")
	}
	return p.Rectifier.Rectify(img, corners)
}

// Result is the outcome of a one-shot scan.
type Result struct {
	Detection *detector.Result `json:"detection"`
	Image     *image.NRGBA     `json:"-"`
	Width     int              `json:"width"`
	Height    int              `json:"height"`
	Timing    struct {
		DetectNs  int64 `json:"detect_ns"`
		RectifyNs int64 `json:"rectify_ns"`
		TotalNs   int64 `json:"total_ns"`
	} `json:"timing"`
}

// Process detects the document and rectifies it with the detected corners.
// Cancellation is honoured up to the start of rectification.
func (p *Pipeline) Process(ctx context.Context, img image.Image) (*Result, error) {
	sw := common.StartStopwatch()
	det, err := p.Detect(ctx, img)
	if err != nil {
		return nil, err
	}
	sw.Lap("detect")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := p.Rectify(img, det.Corners.Points())
	if err != nil {
		return nil, fmt.Errorf("rectify: %w", err)
	}
	sw.Lap("rectify")
	res := &Result{Detection: det, Image: out, Width: out.Rect.Dx(), Height: out.Rect.Dy()}
	res.Timing.DetectNs = sw.LapDuration("detect").Nanoseconds()
	res.Timing.RectifyNs = sw.LapDuration("rectify").Nanoseconds()
	res.Timing.TotalNs = sw.Elapsed().Nanoseconds()
	return res, nil
}
