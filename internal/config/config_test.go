package config

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/docscan/internal/detector"
	"github.com/MeKo-Tech/docscan/internal/rectify"
)

const infoLevel = "info"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, infoLevel, cfg.LogLevel)
	assert.Equal(t, "go", cfg.Detection.Backend)
	assert.Equal(t, 1000, cfg.Detection.MaxDimension)
	assert.InDelta(t, 0.1, cfg.Detection.InsetRatio, 1e-12)
	assert.InDelta(t, 0.02, cfg.Detection.EpsilonRatio, 1e-12)
	assert.True(t, cfg.Detection.Validation.Enabled)
	assert.InDelta(t, 2.5, cfg.Detection.Validation.MaxAspect, 1e-12)
	assert.InDelta(t, 0.30, cfg.Detection.Validation.MaxWidthAsymmetry, 1e-12)
	assert.InDelta(t, 30, cfg.Detection.Validation.MaxAngleDeviation, 1e-12)
	assert.InDelta(t, 1, cfg.Detection.Hough.ThetaDegrees, 1e-12)
	assert.Equal(t, 50, cfg.Detection.Hough.Threshold)
	assert.InDelta(t, 0.1, cfg.Detection.Retry.MinAreaRatio, 1e-12)
	assert.Equal(t, "bilinear", cfg.Rectify.Interpolation)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Contains(t, cfg.Batch.Extensions, ".png")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"log level", func(c *Config) { c.LogLevel = "verbose" }, "invalid log level"},
		{"output format", func(c *Config) { c.Output.Format = "xml" }, "invalid output format"},
		{"overlay colour", func(c *Config) { c.Output.OverlayColor = "reddish" }, "overlay_color"},
		{"jpeg quality", func(c *Config) { c.Output.JPEGQuality = 0 }, "jpeg quality"},
		{"inset ratio range", func(c *Config) { c.Detection.InsetRatio = 1.5 }, "inset_ratio"},
		{"inset ratio too wide", func(c *Config) { c.Detection.InsetRatio = 0.5 }, "detection settings"},
		{"epsilon", func(c *Config) { c.Detection.EpsilonRatio = -0.1 }, "epsilon_ratio"},
		{"zero epsilon", func(c *Config) { c.Detection.EpsilonRatio = 0 }, "detection settings"},
		{"min area", func(c *Config) { c.Detection.Retry.MinAreaRatio = 2 }, "min_area_ratio"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "server port"},
		{"upload", func(c *Config) { c.Server.MaxUploadMB = 0 }, "max upload"},
		{"timeout", func(c *Config) { c.Server.TimeoutSec = 0 }, "timeout"},
		{"rate limit", func(c *Config) {
			c.Server.RateLimit.Enabled = true
			c.Server.RateLimit.RequestsPerMinute = 0
		}, "rate limit"},
		{"workers", func(c *Config) { c.Batch.Workers = 0 }, "batch workers"},
		{"backend", func(c *Config) { c.Detection.Backend = "cuda" }, "backend"},
		{"blur kernel", func(c *Config) { c.Detection.Preprocess.BlurKernel = 4 }, "detection settings"},
		{"hough threshold", func(c *Config) { c.Detection.Hough.Threshold = 0 }, "detection settings"},
		{"interpolation", func(c *Config) { c.Rectify.Interpolation = "cubic" }, "rectify settings"},
		{"fill", func(c *Config) { c.Rectify.Fill = "#12" }, "rectify settings"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestToPipelineConfigDefaultsMatchComponents(t *testing.T) {
	cfg := DefaultConfig()
	pc := cfg.ToPipelineConfig()

	want := detector.DefaultConfig()
	assert.Equal(t, want.Primary, pc.Detector.Primary)
	assert.Equal(t, want.Retry, pc.Detector.Retry)
	assert.Equal(t, want.Contour, pc.Detector.Contour)
	assert.Equal(t, want.RetryContour, pc.Detector.RetryContour)
	assert.InDelta(t, want.Hough.Theta, pc.Detector.Hough.Theta, 1e-9)
	assert.Equal(t, want.Hough.Threshold, pc.Detector.Hough.Threshold)
	assert.Equal(t, rectify.DefaultConfig(), pc.Rectifier)
	assert.Equal(t, cfg.Batch.Workers, pc.Parallel.MaxWorkers)
}

func TestToPipelineConfigOverrides(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Detection.MaxDimension = 640
	cfg.Detection.Validation.Enabled = false
	cfg.Detection.Validation.MaxAspect = 3
	cfg.Detection.Hough.ThetaDegrees = 0.5
	cfg.Detection.Retry.LowThreshold = 10
	cfg.Detection.DebugDir = "/tmp/debug"
	cfg.Rectify.Interpolation = "nearest"
	cfg.Rectify.Fill = "#ffffff"
	cfg.Batch.DetectOnly = true

	pc := cfg.ToPipelineConfig()
	assert.Equal(t, 640, pc.Detector.Primary.MaxDimension)
	assert.Equal(t, 640, pc.Detector.Retry.MaxDimension)
	assert.False(t, pc.Detector.Contour.Validate)
	assert.InDelta(t, 3, pc.Detector.Contour.Validation.MaxAspect, 1e-12)
	assert.InDelta(t, math.Pi/360, pc.Detector.Hough.Theta, 1e-12)
	assert.InDelta(t, 10, pc.Detector.Retry.LowThreshold, 1e-12)
	assert.Equal(t, "/tmp/debug", pc.Detector.DebugDir)
	assert.Equal(t, rectify.InterpolationNearest, pc.Rectifier.Interpolation)
	assert.Equal(t, "#ffffff", pc.Rectifier.Fill)
	assert.True(t, pc.Parallel.DetectOnly)
}
