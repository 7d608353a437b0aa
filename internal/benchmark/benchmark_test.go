package benchmark

import (
	"bytes"
	"context"
	"errors"
	"image"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/docscan/internal/detector"
	"github.com/MeKo-Tech/docscan/internal/geometry"
	"github.com/MeKo-Tech/docscan/internal/pipeline"
	"github.com/MeKo-Tech/docscan/internal/preprocess"
	"github.com/MeKo-Tech/docscan/internal/testutil"
)

func TestSuiteRun(t *testing.T) {
	suite := NewSuite()
	calls := 0
	suite.Add("success", func() error {
		calls++
		time.Sleep(time.Millisecond)
		return nil
	})
	suite.Add("failing", func() error { return errors.New("test error") })

	res := suite.Run("success", 5)
	require.NoError(t, res.Error)
	assert.Equal(t, 5, calls)
	assert.Equal(t, 5, res.Iterations)
	assert.GreaterOrEqual(t, res.Duration, 5*time.Millisecond)
	assert.GreaterOrEqual(t, res.Avg(), time.Millisecond)

	res = suite.Run("failing", 3)
	require.Error(t, res.Error)
	assert.Zero(t, res.Iterations)
	assert.Contains(t, res.String(), "ERROR - test error")

	res = suite.Run("missing", 1)
	require.Error(t, res.Error)
	assert.Contains(t, res.Error.Error(), "not found")
}

func TestSuiteRunAll(t *testing.T) {
	suite := NewSuite()
	suite.Add("a", func() error { return nil })
	suite.Add("b", func() error { return nil })

	results, err := suite.RunAll(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, results, suite.Results())

	var buf bytes.Buffer
	suite.Print(&buf)
	assert.Contains(t, buf.String(), "Benchmark Results:")
	assert.Contains(t, buf.String(), "a: 2 iterations")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err = suite.RunAll(ctx, 1)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestResultAvgWithoutIterations(t *testing.T) {
	assert.Zero(t, Result{Duration: time.Second}.Avg())
}

func TestDetectionBench(t *testing.T) {
	images := SceneImages()[:1]
	bench, err := NewDetectionBench(t.Context(), pipeline.DefaultConfig(), []string{preprocess.DefaultBackendName}, images)
	require.NoError(t, err)

	results, err := bench.RunAll(t.Context(), 2)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Error)
	assert.Equal(t, "go/axis-aligned", results[0].Name)

	acc := bench.Accuracy()
	require.Len(t, acc, 1, "accuracy is recorded once per case")
	assert.NotEqual(t, detector.StrategyFallback, acc[0].Strategy)
	assert.Less(t, acc[0].MaxCornerError, 6.0)

	var buf bytes.Buffer
	bench.PrintAccuracy(&buf)
	assert.Contains(t, buf.String(), "go/axis-aligned")
	assert.Contains(t, buf.String(), "max corner error")
}

func TestDetectionBenchUnknownBackend(t *testing.T) {
	_, err := NewDetectionBench(t.Context(), pipeline.DefaultConfig(), []string{"magic"}, SceneImages())
	require.ErrorIs(t, err, preprocess.ErrNoBackend)
}

func TestLoadImages(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	path := filepath.Join(dir, "page.png")
	testutil.SaveImage(t, image.NewGray(image.Rect(0, 0, 20, 10)), path)

	images, err := LoadImages([]string{path})
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Nil(t, images[0].Corners)
	assert.Equal(t, -1.0, cornerError(geometry.Quad{}, images[0].Corners))

	_, err = LoadImages([]string{filepath.Join(dir, "missing.png")})
	require.Error(t, err)
}
