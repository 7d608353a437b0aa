package detector

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/docscan/internal/geometry"
	"github.com/MeKo-Tech/docscan/internal/preprocess"
	"github.com/MeKo-Tech/docscan/internal/testutil"
	"github.com/MeKo-Tech/docscan/internal/utils"
)

func uniformImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	return img
}

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	d, err := New(DefaultConfig())
	require.NoError(t, err)
	return d
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, preprocess.DefaultBackendName, cfg.Backend)
	assert.InDelta(t, 0.1, cfg.InsetRatio, 1e-12)
	assert.InDelta(t, 0.02, cfg.Contour.EpsilonRatio, 1e-12)
	assert.True(t, cfg.Contour.Validate)
	assert.False(t, cfg.RetryContour.Validate)
	assert.Equal(t, 50, cfg.Hough.Threshold)
	assert.Equal(t, 1000, cfg.Primary.MaxDimension)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad primary", func(c *Config) { c.Primary.BlurKernel = 2 }},
		{"bad retry", func(c *Config) { c.Retry.MaxDimension = -5 }},
		{"zero epsilon", func(c *Config) { c.Contour.EpsilonRatio = 0 }},
		{"zero theta", func(c *Config) { c.Hough.Theta = 0 }},
		{"zero threshold", func(c *Config) { c.Hough.Threshold = 0 }},
		{"inset too large", func(c *Config) { c.InsetRatio = 0.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			require.Error(t, cfg.Validate())
			_, err := New(cfg)
			require.Error(t, err)
		})
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = "does-not-exist"
	_, err := New(cfg)
	require.ErrorIs(t, err, preprocess.ErrNoBackend)
}

func TestDetect_Scenes(t *testing.T) {
	d := newTestDetector(t)

	for _, scene := range testutil.Scenes() {
		t.Run(scene.Name, func(t *testing.T) {
			res, err := d.Detect(context.Background(), scene.Render())
			require.NoError(t, err)

			assert.False(t, res.IsFallback(), "attempts: %+v", res.Attempts)
			assert.Equal(t, scene.Width, res.Width)
			assert.Equal(t, scene.Height, res.Height)

			tol := 0.01*float64(max(scene.Width, scene.Height)) + 4
			assertQuadNear(t, geometry.Quad(scene.Corners), res.Corners, tol)
		})
	}
}

func TestDetect_BlankImageFallsBack(t *testing.T) {
	d := newTestDetector(t)

	res, err := d.Detect(context.Background(), uniformImage(400, 300, color.RGBA{128, 128, 128, 255}))
	require.NoError(t, err)

	assert.Equal(t, StrategyFallback, res.Strategy)
	assert.True(t, res.IsFallback())
	assert.Equal(t, DefaultCorners(400, 300), res.Corners)

	require.Len(t, res.Attempts, 3)
	assert.Equal(t, StrategyContour, res.Attempts[0].Strategy)
	assert.Equal(t, StrategyHough, res.Attempts[1].Strategy)
	assert.Equal(t, StrategyRetryContour, res.Attempts[2].Strategy)
	require.ErrorIs(t, res.Attempts[0].Err, ErrNoQuadrilateral)
	require.ErrorIs(t, res.Attempts[1].Err, ErrTooFewLines)
	assert.NotEmpty(t, res.Attempts[2].Reason)
}

func TestDetect_TrapezoidFallsThroughToHough(t *testing.T) {
	d := newTestDetector(t)
	scene := testutil.Scene{
		Name:   "trapezoid",
		Width:  800,
		Height: 700,
		Corners: [4]utils.Point{
			{X: 250, Y: 100}, {X: 550, Y: 100}, {X: 700, Y: 600}, {X: 100, Y: 600},
		},
	}

	res, err := d.Detect(context.Background(), scene.Render())
	require.NoError(t, err)

	assert.Equal(t, StrategyHough, res.Strategy)
	require.Len(t, res.Attempts, 1)
	assert.Equal(t, StrategyContour, res.Attempts[0].Strategy)
	assertQuadNear(t, geometry.Quad(scene.Corners), res.Corners, 4)
}

func TestDetect_Errors(t *testing.T) {
	d := newTestDetector(t)

	_, err := d.Detect(context.Background(), nil)
	require.ErrorIs(t, err, preprocess.ErrEmptyImage)

	_, err = d.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 0, 0)))
	require.ErrorIs(t, err, preprocess.ErrEmptyImage)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = d.Detect(ctx, testutil.AxisAlignedScene().Render())
	require.ErrorIs(t, err, context.Canceled)
}

func TestDetect_DebugDump(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.DebugDir = filepath.Join(dir, "debug")
	d, err := New(cfg)
	require.NoError(t, err)

	_, err = d.Detect(context.Background(), testutil.AxisAlignedScene().Render())
	require.NoError(t, err)

	entries, err := os.ReadDir(cfg.DebugDir)
	require.NoError(t, err)
	// canny and closed planes of the primary map plus the overlay
	assert.Len(t, entries, 3)
}

func TestRenderOverlay(t *testing.T) {
	src := uniformImage(200, 200, color.White)
	res := &Result{
		Corners:  geometry.Quad{{X: 20, Y: 20}, {X: 180, Y: 20}, {X: 180, Y: 180}, {X: 20, Y: 180}},
		Strategy: StrategyContour,
	}
	out := RenderOverlay(src, res)
	assert.Equal(t, overlayColor, out.RGBAAt(100, 20))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, out.RGBAAt(100, 100))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, src.RGBAAt(100, 20), "source untouched")

	res.Strategy = StrategyFallback
	out = RenderOverlay(src, res)
	assert.Equal(t, fallbackColor, out.RGBAAt(100, 20))
}
