package pipeline

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/docscan/internal/testutil"
	"github.com/MeKo-Tech/docscan/internal/utils"
)

type recordingProgress struct {
	mu        sync.Mutex
	started   int
	progress  []int
	errors    int
	completed bool
}

func (r *recordingProgress) OnStart(total int) { r.started = total }

func (r *recordingProgress) OnProgress(current, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, current)
}

func (r *recordingProgress) OnComplete() { r.completed = true }

func (r *recordingProgress) OnError(int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors++
}

func TestProcessImagesParallel(t *testing.T) {
	p := newTestPipeline(t)
	images := []image.Image{
		testutil.AxisAlignedScene().Render(),
		blankImage(300, 200),
		testutil.AxisAlignedScene().Render(),
	}
	rec := &recordingProgress{}
	cfg := DefaultParallelConfig()
	cfg.MaxWorkers = 2
	cfg.ProgressCallback = rec

	results, err := p.ProcessImagesParallel(context.Background(), images, cfg)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.False(t, results[0].Detection.IsFallback())
	assert.True(t, results[1].Detection.IsFallback())
	assert.Equal(t, 300, results[1].Detection.Width)
	assert.Equal(t, results[0].Width, results[2].Width)

	assert.Equal(t, 3, rec.started)
	assert.Equal(t, []int{1, 2, 3}, rec.progress)
	assert.Zero(t, rec.errors)
	assert.True(t, rec.completed)
}

func TestProcessImagesParallelReportsErrors(t *testing.T) {
	p := newTestPipeline(t)
	images := []image.Image{
		blankImage(50, 50),
		image.NewRGBA(image.Rectangle{}),
	}
	var failed []int
	cfg := ParallelConfig{
		MaxWorkers:   1,
		ErrorHandler: func(i int, _ error) { failed = append(failed, i) },
	}

	results, err := p.ProcessImagesParallel(context.Background(), images, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "image 1")
	require.Len(t, results, 2)
	assert.NotNil(t, results[0])
	assert.Nil(t, results[1])
	assert.Equal(t, []int{1}, failed)
}

func TestProcessImagesParallelDetectOnly(t *testing.T) {
	p := newTestPipeline(t)
	results, err := p.ProcessImagesParallel(context.Background(),
		[]image.Image{testutil.AxisAlignedScene().Render()},
		ParallelConfig{DetectOnly: true})
	require.NoError(t, err)
	require.NotNil(t, results[0].Detection)
	assert.Nil(t, results[0].Image)
	assert.Zero(t, results[0].Width)
}

func TestProcessImagesParallelCancelled(t *testing.T) {
	p := newTestPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.ProcessImagesParallel(ctx, []image.Image{blankImage(20, 20), blankImage(20, 20)}, DefaultParallelConfig())
	require.ErrorIs(t, err, context.Canceled)
}

func TestProcessFiles(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "scan.png")
	require.NoError(t, utils.SaveImage(good, testutil.AxisAlignedScene().Render()))
	missing := filepath.Join(dir, "missing.png")

	p := newTestPipeline(t)
	var (
		mu      sync.Mutex
		handled []int
	)
	cfg := ParallelConfig{MaxWorkers: 2, ErrorHandler: func(i int, _ error) {
		mu.Lock()
		defer mu.Unlock()
		handled = append(handled, i)
	}}

	results, err := p.ProcessFiles(context.Background(), []string{good, missing}, cfg)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, good, results[0].Path)
	require.NoError(t, results[0].Err)
	assert.False(t, results[0].Result.Detection.IsFallback())

	assert.Equal(t, missing, results[1].Path)
	require.Error(t, results[1].Err)
	assert.Nil(t, results[1].Result)
	assert.Equal(t, []int{1}, handled)
}

func TestRunPoolVisitsEveryIndexOnce(t *testing.T) {
	p := newTestPipeline(t)
	var mu sync.Mutex
	seen := map[int]int{}
	sentinel := errors.New("odd")

	err := p.runPool(context.Background(), 25, ParallelConfig{MaxWorkers: 4}, func(_ context.Context, i int) error {
		mu.Lock()
		seen[i]++
		mu.Unlock()
		if i%2 == 1 {
			return sentinel
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 25)
	for i, n := range seen {
		assert.Equal(t, 1, n, "index %d", i)
	}
}
