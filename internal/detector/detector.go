// Package detector locates the four corners of a document in a photograph.
//
// Detection runs an ordered chain of strategies and stops at the first one
// that yields a quadrilateral:
//
//  1. contour: largest four-vertex external contour of the closed edge map,
//     checked for physical plausibility;
//  2. hough: boundary lines from straight segments of the raw edge map;
//  3. retry-contour: the contour search on an edge map computed with looser
//     pre-processing parameters;
//  4. fallback-default: a centred inset rectangle.
//
// The chain never fails to produce corners; misses are recorded on the
// result for diagnostics.
package detector

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/docscan/internal/common"
	"github.com/MeKo-Tech/docscan/internal/geometry"
	"github.com/MeKo-Tech/docscan/internal/preprocess"
)

// Strategy names the method that produced a set of corners.
type Strategy string

const (
	StrategyContour      Strategy = "contour"
	StrategyHough        Strategy = "hough"
	StrategyRetryContour Strategy = "retry-contour"
	StrategyFallback     Strategy = "fallback-default"
)

// Strategies lists every strategy in priority order.
func Strategies() []Strategy {
	return []Strategy{StrategyContour, StrategyHough, StrategyRetryContour, StrategyFallback}
}

// Config holds detector configuration.
type Config struct {
	Primary      preprocess.Config // edge map for contour and hough
	Retry        preprocess.Config // edge map for retry-contour
	Contour      ContourOptions
	RetryContour ContourOptions
	Hough        HoughConfig
	InsetRatio   float64 // fallback margin as a fraction of the image width
	Backend      string  // pre-processing backend name
	DebugDir     string  // when set, edge maps and overlays are written here
}

// DefaultConfig returns the default detector configuration.
func DefaultConfig() Config {
	return Config{
		Primary:      preprocess.PrimaryConfig(),
		Retry:        preprocess.RetryConfig(),
		Contour:      DefaultContourOptions(),
		RetryContour: RetryContourOptions(),
		Hough:        DefaultHoughConfig(),
		InsetRatio:   DefaultInsetRatio,
		Backend:      preprocess.DefaultBackendName,
	}
}

// Validate checks the configuration for values the strategies cannot use.
func (c Config) Validate() error {
	if err := c.Primary.Validate(); err != nil {
		return fmt.Errorf("primary preprocessing: %w", err)
	}
	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("retry preprocessing: %w", err)
	}
	if c.Contour.EpsilonRatio <= 0 || c.RetryContour.EpsilonRatio <= 0 {
		return errors.New("contour epsilon ratio must be positive")
	}
	if c.Hough.Rho <= 0 || c.Hough.Theta <= 0 {
		return errors.New("hough resolution must be positive")
	}
	if c.Hough.Threshold < 1 {
		return fmt.Errorf("hough threshold must be at least 1, got %d", c.Hough.Threshold)
	}
	if c.InsetRatio < 0 || c.InsetRatio >= 0.5 {
		return fmt.Errorf("inset ratio must be in [0, 0.5), got %g", c.InsetRatio)
	}
	return nil
}

// Attempt records a strategy that did not produce corners.
type Attempt struct {
	Strategy Strategy `json:"strategy"`
	Reason   string   `json:"reason"`
	Err      error    `json:"-"`
}

// Result is the outcome of one detection.
type Result struct {
	Corners  geometry.Quad `json:"corners"`
	Strategy Strategy      `json:"strategy"`
	Width    int           `json:"width"`
	Height   int           `json:"height"`
	Attempts []Attempt     `json:"attempts,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// IsFallback reports whether no strategy found the document.
func (r *Result) IsFallback() bool { return r.Strategy == StrategyFallback }

// Detector runs the strategy chain. It holds no per-image state and is safe
// for concurrent use.
type Detector struct {
	config  Config
	backend preprocess.Backend
}

// New creates a detector with the given configuration.
func New(config Config) (*Detector, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detector config: %w", err)
	}
	name := config.Backend
	if name == "" {
		name = preprocess.DefaultBackendName
	}
	backend, err := preprocess.NewBackend(name)
	if err != nil {
		return nil, err
	}
	slog.Debug("Detector initialized", "backend", backend.Name(), "debug_dir", config.DebugDir)
	return &Detector{config: config, backend: backend}, nil
}

// Config returns a copy of the detector configuration.
func (d *Detector) Config() Config { return d.config }

// Detect locates the document in img. It only returns an error for an empty
// image or a cancelled context; every detection miss ends in the fallback
// corners.
func (d *Detector) Detect(ctx context.Context, img image.Image) (*Result, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, preprocess.ErrEmptyImage
	}
	sw := common.StartStopwatch()
	b := img.Bounds()
	res := &Result{Width: b.Dx(), Height: b.Dy()}
	run := &detection{d: d, img: img}

	for _, st := range d.strategies() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		q, err := st.run(run)
		sw.Lap(string(st.name))
		if err != nil {
			slog.Debug("Detection strategy missed", "strategy", st.name, "error", err)
			res.Attempts = append(res.Attempts, Attempt{Strategy: st.name, Reason: err.Error(), Err: err})
			continue
		}
		res.Corners = q
		res.Strategy = st.name
		break
	}
	if res.Strategy == "" {
		res.Corners = InsetCorners(res.Width, res.Height, d.config.InsetRatio)
		res.Strategy = StrategyFallback
	}
	res.Duration = sw.Elapsed()

	if d.config.DebugDir != "" {
		run.dumpDebug(res)
	}
	slog.Debug("Detection finished",
		"strategy", res.Strategy,
		"misses", len(res.Attempts),
		"timing", sw.String())
	return res, nil
}

type strategy struct {
	name Strategy
	run  func(*detection) (geometry.Quad, error)
}

func (d *Detector) strategies() []strategy {
	return []strategy{
		{StrategyContour, func(s *detection) (geometry.Quad, error) {
			em, err := s.primaryMap()
			if err != nil {
				return geometry.Quad{}, err
			}
			return DetectByContour(em, d.config.Contour)
		}},
		{StrategyHough, func(s *detection) (geometry.Quad, error) {
			em, err := s.primaryMap()
			if err != nil {
				return geometry.Quad{}, err
			}
			return DetectByLines(em, d.config.Hough)
		}},
		{StrategyRetryContour, func(s *detection) (geometry.Quad, error) {
			em, err := s.retryMap()
			if err != nil {
				return geometry.Quad{}, err
			}
			return DetectByContour(em, d.config.RetryContour)
		}},
	}
}

// detection carries the edge maps of one Detect call so the first two
// strategies share a single pre-processing pass.
type detection struct {
	d   *Detector
	img image.Image

	primary, retry       *preprocess.EdgeMap
	primaryErr, retryErr error
	primaryDone          bool
	retryDone            bool
}

func (s *detection) primaryMap() (*preprocess.EdgeMap, error) {
	if !s.primaryDone {
		s.primary, s.primaryErr = s.edgeMap(s.d.config.Primary)
		s.primaryDone = true
	}
	return s.primary, s.primaryErr
}

func (s *detection) retryMap() (*preprocess.EdgeMap, error) {
	if !s.retryDone {
		s.retry, s.retryErr = s.edgeMap(s.d.config.Retry)
		s.retryDone = true
	}
	return s.retry, s.retryErr
}

func (s *detection) edgeMap(cfg preprocess.Config) (*preprocess.EdgeMap, error) {
	em, err := s.d.backend.EdgeMap(s.img, cfg)
	if err != nil {
		slog.Warn("Edge map computation failed", "backend", s.d.backend.Name(), "error", err)
		return nil, fmt.Errorf("edge map: %w", err)
	}
	return em, nil
}
