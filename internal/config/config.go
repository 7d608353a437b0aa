package config

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/MeKo-Tech/docscan/internal/detector"
	"github.com/MeKo-Tech/docscan/internal/pipeline"
	"github.com/MeKo-Tech/docscan/internal/preprocess"
	"github.com/MeKo-Tech/docscan/internal/rectify"
	"github.com/MeKo-Tech/docscan/internal/utils"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel:  "info",
		Verbose:   false,
		Detection: defaultDetectionConfig(),
		Rectify:   defaultRectifyConfig(),
		Output: OutputConfig{
			Format:       "text",
			OverlayColor: "#FF0000",
			JPEGQuality:  utils.DefaultJPEGQuality,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
			OverlayEnabled:  true,
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerMinute: 60,
				Burst:             10,
			},
		},
		Batch: BatchConfig{
			Workers:         4,
			Recursive:       false,
			Extensions:      slices.Clone(utils.SupportedImageExtensions),
			ContinueOnError: true,
		},
	}
}

// defaultDetectionConfig mirrors detector.DefaultConfig.
func defaultDetectionConfig() DetectionConfig {
	d := detector.DefaultConfig()
	v := d.Contour.Validation
	return DetectionConfig{
		Backend:      d.Backend,
		MaxDimension: d.Primary.MaxDimension,
		InsetRatio:   d.InsetRatio,
		EpsilonRatio: d.Contour.EpsilonRatio,
		Preprocess: PreprocessConfig{
			Equalize:     d.Primary.Equalize,
			BlurKernel:   d.Primary.BlurKernel,
			MedianKernel: d.Primary.MedianKernel,
			LowRatio:     d.Primary.LowRatio,
			HighRatio:    d.Primary.HighRatio,
			MinLow:       d.Primary.MinLow,
			MaxHigh:      d.Primary.MaxHigh,
			CloseKernel:  d.Primary.CloseKernel,
		},
		Validation: ValidationConfig{
			Enabled:            d.Contour.Validate,
			MinAspect:          v.MinAspect,
			MaxAspect:          v.MaxAspect,
			MaxWidthAsymmetry:  v.MaxWidthAsymmetry,
			MaxHeightAsymmetry: v.MaxHeightAsymmetry,
			MaxAngleDeviation:  v.MaxAngleDeviation,
		},
		Hough: HoughConfig{
			Rho:                d.Hough.Rho,
			ThetaDegrees:       math.Round(d.Hough.Theta*180/math.Pi*1e6) / 1e6,
			Threshold:          d.Hough.Threshold,
			MinLineLengthRatio: d.Hough.MinLineLengthRatio,
			MaxLineGap:         d.Hough.MaxLineGap,
			MaxPeaks:           d.Hough.MaxPeaks,
			ClusterMinLines:    d.Hough.ClusterMinLines,
		},
		Retry: RetryConfig{
			BlurKernel:    d.Retry.BlurKernel,
			LowThreshold:  d.Retry.LowThreshold,
			HighThreshold: d.Retry.HighThreshold,
			MinAreaRatio:  d.RetryContour.MinAreaRatio,
		},
	}
}

func defaultRectifyConfig() RectifyConfig {
	r := rectify.DefaultConfig()
	return RectifyConfig{
		Interpolation:   string(r.Interpolation),
		Fill:            r.Fill,
		MaxOutputPixels: r.MaxOutputPixels,
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	// Validate log level
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	// Validate output format
	validFormats := []string{"text", "json", "csv"}
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}
	if c.Output.OverlayColor != "" {
		if _, err := utils.ParseColor(c.Output.OverlayColor); err != nil {
			return fmt.Errorf("invalid output.overlay_color: %w", err)
		}
	}
	if c.Output.JPEGQuality < 1 || c.Output.JPEGQuality > 100 {
		return fmt.Errorf("invalid jpeg quality: %d (must be between 1 and 100)", c.Output.JPEGQuality)
	}

	// Validate ratios
	if err := validateRatio(c.Detection.InsetRatio, "detection.inset_ratio"); err != nil {
		return err
	}
	if err := validateRatio(c.Detection.EpsilonRatio, "detection.epsilon_ratio"); err != nil {
		return err
	}
	if err := validateRatio(c.Detection.Retry.MinAreaRatio, "detection.retry.min_area_ratio"); err != nil {
		return err
	}
	if err := validateRatio(c.Detection.Hough.MinLineLengthRatio, "detection.hough.min_line_length_ratio"); err != nil {
		return err
	}

	// Validate positive integers
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("invalid rate limit: %d (must be positive)", c.Server.RateLimit.RequestsPerMinute)
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}

	// Validate backend
	if c.Detection.Backend != "" && !slices.Contains(preprocess.AvailableBackends(), c.Detection.Backend) {
		return fmt.Errorf("invalid detection backend: %s (available: %s)",
			c.Detection.Backend, strings.Join(preprocess.AvailableBackends(), ", "))
	}

	// The component configs carry their own range checks.
	pc := c.ToPipelineConfig()
	if err := pc.Detector.Validate(); err != nil {
		return fmt.Errorf("invalid detection settings: %w", err)
	}
	if err := pc.Rectifier.Validate(); err != nil {
		return fmt.Errorf("invalid rectify settings: %w", err)
	}
	return nil
}

// ToPipelineConfig converts the config to the internal pipeline configuration format.
func (c *Config) ToPipelineConfig() pipeline.Config {
	return pipeline.Config{
		Detector:  c.toDetectorConfig(),
		Rectifier: c.toRectifyConfig(),
		Parallel: pipeline.ParallelConfig{
			MaxWorkers: c.Batch.Workers,
			DetectOnly: c.Batch.DetectOnly,
		},
	}
}

// toDetectorConfig converts to detector.Config.
func (c *Config) toDetectorConfig() detector.Config {
	d := c.Detection
	cfg := detector.DefaultConfig()
	if d.Backend != "" {
		cfg.Backend = d.Backend
	}
	cfg.DebugDir = d.DebugDir
	cfg.InsetRatio = d.InsetRatio

	cfg.Primary.MaxDimension = d.MaxDimension
	cfg.Primary.Equalize = d.Preprocess.Equalize
	cfg.Primary.BlurKernel = d.Preprocess.BlurKernel
	cfg.Primary.MedianKernel = d.Preprocess.MedianKernel
	cfg.Primary.LowRatio = d.Preprocess.LowRatio
	cfg.Primary.HighRatio = d.Preprocess.HighRatio
	cfg.Primary.MinLow = d.Preprocess.MinLow
	cfg.Primary.MaxHigh = d.Preprocess.MaxHigh
	cfg.Primary.CloseKernel = d.Preprocess.CloseKernel

	cfg.Contour.EpsilonRatio = d.EpsilonRatio
	cfg.Contour.Validate = d.Validation.Enabled
	cfg.Contour.Validation = detector.ValidationConfig{
		MinAspect:          d.Validation.MinAspect,
		MaxAspect:          d.Validation.MaxAspect,
		MaxWidthAsymmetry:  d.Validation.MaxWidthAsymmetry,
		MaxHeightAsymmetry: d.Validation.MaxHeightAsymmetry,
		MaxAngleDeviation:  d.Validation.MaxAngleDeviation,
	}

	cfg.Hough = detector.HoughConfig{
		Rho:                d.Hough.Rho,
		Theta:              d.Hough.ThetaDegrees * math.Pi / 180,
		Threshold:          d.Hough.Threshold,
		MinLineLengthRatio: d.Hough.MinLineLengthRatio,
		MaxLineGap:         d.Hough.MaxLineGap,
		MaxPeaks:           d.Hough.MaxPeaks,
		ClusterMinLines:    d.Hough.ClusterMinLines,
	}

	cfg.Retry.MaxDimension = d.MaxDimension
	cfg.Retry.BlurKernel = d.Retry.BlurKernel
	cfg.Retry.LowThreshold = d.Retry.LowThreshold
	cfg.Retry.HighThreshold = d.Retry.HighThreshold
	cfg.RetryContour.EpsilonRatio = d.EpsilonRatio
	cfg.RetryContour.MinAreaRatio = d.Retry.MinAreaRatio
	return cfg
}

// toRectifyConfig converts to rectify.Config.
func (c *Config) toRectifyConfig() rectify.Config {
	cfg := rectify.DefaultConfig()
	if c.Rectify.Interpolation != "" {
		cfg.Interpolation = rectify.Interpolation(c.Rectify.Interpolation)
	}
	if c.Rectify.Fill != "" {
		cfg.Fill = c.Rectify.Fill
	}
	cfg.MaxOutputPixels = c.Rectify.MaxOutputPixels
	cfg.DebugDir = c.Rectify.DebugDir
	return cfg
}

// validateRatio validates that a value is between 0.0 and 1.0.
func validateRatio(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}
