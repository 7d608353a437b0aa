package pipeline

import (
	"context"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/docscan/internal/detector"
	"github.com/MeKo-Tech/docscan/internal/rectify"
	"github.com/MeKo-Tech/docscan/internal/testutil"
	"github.com/MeKo-Tech/docscan/internal/utils"
)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := NewBuilder().Build()
	require.NoError(t, err)
	return p
}

func blankImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	return img
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateAwaitingInput, "awaiting-input"},
		{StateDetecting, "detecting"},
		{StateCornersReady, "corners-ready"},
		{StateRectifying, "rectifying"},
		{StateDone, "done"},
		{State(42), "state(42)"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.String())
		})
	}
}

func TestSessionHappyPath(t *testing.T) {
	p := newTestPipeline(t)
	s := p.NewSession()
	assert.Equal(t, StateAwaitingInput, s.State())

	scene := testutil.AxisAlignedScene()
	res, err := s.Detect(context.Background(), scene.Render())
	require.NoError(t, err)
	assert.Equal(t, detector.StrategyContour, res.Strategy)
	assert.Equal(t, StateCornersReady, s.State())
	assert.Same(t, res, s.Detection())

	q, src, err := s.Corners()
	require.NoError(t, err)
	assert.Equal(t, CornersAuto, src)
	assert.Equal(t, res.Corners, q)

	out, err := s.Rectify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDone, s.State())
	assert.InDelta(t, 400, out.Rect.Dx(), 4)
	assert.InDelta(t, 600, out.Rect.Dy(), 4)

	got, err := s.Output()
	require.NoError(t, err)
	assert.Same(t, out, got)

	// Corners stay readable after rectification.
	_, _, err = s.Corners()
	require.NoError(t, err)
}

func TestSessionInvalidTransitions(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()
	s := p.NewSession()

	_, err := s.Rectify(ctx)
	require.ErrorIs(t, err, ErrInvalidTransition)
	_, err = s.Retry(ctx)
	require.ErrorIs(t, err, ErrInvalidTransition)
	_, _, err = s.Corners()
	require.ErrorIs(t, err, ErrInvalidTransition)
	_, err = s.Output()
	require.ErrorIs(t, err, ErrInvalidTransition)
	_, err = s.MoveCorner(0, utils.Point{})
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = s.Detect(ctx, blankImage(100, 80))
	require.NoError(t, err)
	_, err = s.Detect(ctx, blankImage(100, 80))
	require.ErrorIs(t, err, ErrInvalidTransition)
	_, err = s.Output()
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = s.Rectify(ctx)
	require.NoError(t, err)
	_, err = s.Rectify(ctx)
	require.ErrorIs(t, err, ErrInvalidTransition)
	err = s.SetCorners(detector.DefaultCorners(100, 80).Points())
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSessionBlankImageFallsBack(t *testing.T) {
	p := newTestPipeline(t)
	s := p.NewSession()
	res, err := s.Detect(context.Background(), blankImage(300, 200))
	require.NoError(t, err)
	assert.True(t, res.IsFallback())

	q, src, err := s.Corners()
	require.NoError(t, err)
	assert.Equal(t, CornersAuto, src)
	assert.Equal(t, detector.DefaultCorners(300, 200), q)
}

// gatedImage blocks every pixel read until release is closed and reports
// the first read on started.
type gatedImage struct {
	*image.RGBA
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func newGatedImage(img *image.RGBA) *gatedImage {
	return &gatedImage{RGBA: img, started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedImage) At(x, y int) color.Color {
	g.once.Do(func() { close(g.started) })
	<-g.release
	return g.RGBA.At(x, y)
}

func TestSessionOverlappingDetectIsRejected(t *testing.T) {
	p := newTestPipeline(t)
	s := p.NewSession()
	ctx := context.Background()

	first := newGatedImage(testutil.AxisAlignedScene().Render())
	done := make(chan error, 1)
	go func() {
		_, err := s.Detect(ctx, first)
		done <- err
	}()

	select {
	case <-first.started:
	case <-time.After(10 * time.Second):
		t.Fatal("detection never read the image")
	}
	assert.Equal(t, StateDetecting, s.State())

	_, err := s.Detect(ctx, blankImage(100, 80))
	require.ErrorIs(t, err, ErrInvalidTransition)
	_, err = s.Retry(ctx)
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.ErrorIs(t, s.Reset(), ErrInvalidTransition)

	close(first.release)
	require.NoError(t, <-done)
	assert.Equal(t, StateCornersReady, s.State())

	res := s.Detection()
	require.NotNil(t, res)
	assert.Equal(t, 500, res.Width)
	assert.Equal(t, 700, res.Height)
}

func TestSessionDetectErrors(t *testing.T) {
	p := newTestPipeline(t)

	t.Run("cancelled", func(t *testing.T) {
		s := p.NewSession()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := s.Detect(ctx, blankImage(50, 50))
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, StateAwaitingInput, s.State())
	})

	t.Run("empty image", func(t *testing.T) {
		s := p.NewSession()
		_, err := s.Detect(context.Background(), image.NewRGBA(image.Rectangle{}))
		require.Error(t, err)
		assert.Equal(t, StateAwaitingInput, s.State())
	})
}

func TestSessionRetry(t *testing.T) {
	p := newTestPipeline(t)
	s := p.NewSession()
	scene := testutil.AxisAlignedScene()
	_, err := s.Detect(context.Background(), scene.Render())
	require.NoError(t, err)

	_, err = s.MoveCorner(0, utils.Point{X: 5, Y: 5})
	require.NoError(t, err)
	_, src, err := s.Corners()
	require.NoError(t, err)
	assert.Equal(t, CornersUserAdjusted, src)

	res, err := s.Retry(context.Background())
	require.NoError(t, err)
	q, src, err := s.Corners()
	require.NoError(t, err)
	assert.Equal(t, CornersAuto, src)
	assert.Equal(t, res.Corners, q)

	_, err = s.Rectify(context.Background())
	require.NoError(t, err)
	_, err = s.Retry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateCornersReady, s.State())
	_, err = s.Output()
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSessionRetryCancelledUsesDefaultCorners(t *testing.T) {
	p := newTestPipeline(t)
	s := p.NewSession()
	_, err := s.Detect(context.Background(), testutil.AxisAlignedScene().Render())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Retry(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateCornersReady, s.State())
	assert.Nil(t, s.Detection())

	q, src, err := s.Corners()
	require.NoError(t, err)
	assert.Equal(t, CornersAuto, src)
	assert.Equal(t, detector.DefaultCorners(500, 700), q)
}

func TestSessionCornerEditing(t *testing.T) {
	p := newTestPipeline(t)
	s := p.NewSession()
	_, err := s.Detect(context.Background(), blankImage(200, 100))
	require.NoError(t, err)

	// Fallback corners for 200x100 are inset by 20px.
	i, ok := s.NearestCorner(utils.Point{X: 178, Y: 22}, 10)
	require.True(t, ok)
	assert.Equal(t, 1, i)

	_, ok = s.NearestCorner(utils.Point{X: 100, Y: 50}, 10)
	assert.False(t, ok)

	got, err := s.MoveCorner(2, utils.Point{X: 500, Y: -3})
	require.NoError(t, err)
	assert.Equal(t, utils.Point{X: 199, Y: 0}, got)
	q, src, err := s.Corners()
	require.NoError(t, err)
	assert.Equal(t, CornersUserAdjusted, src)
	assert.Equal(t, got, q[2])

	_, err = s.MoveCorner(4, utils.Point{})
	require.Error(t, err)

	err = s.SetCorners([]utils.Point{{X: 1, Y: 1}})
	require.ErrorIs(t, err, rectify.ErrInvalidCorners)

	corners := []utils.Point{{X: 10, Y: 10}, {X: 190, Y: 10}, {X: 190, Y: 90}, {X: 10, Y: 90}}
	require.NoError(t, s.SetCorners(corners))
	out, err := s.Rectify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 180, out.Rect.Dx())
	assert.Equal(t, 80, out.Rect.Dy())
}

func TestSessionRectifyFailureKeepsCorners(t *testing.T) {
	p := newTestPipeline(t)
	s := p.NewSession()
	_, err := s.Detect(context.Background(), blankImage(100, 100))
	require.NoError(t, err)

	same := utils.Point{X: 30, Y: 30}
	require.NoError(t, s.SetCorners([]utils.Point{same, same, same, same}))
	_, err = s.Rectify(context.Background())
	require.ErrorIs(t, err, rectify.ErrDegenerateCorners)
	assert.Equal(t, StateCornersReady, s.State())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Rectify(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateCornersReady, s.State())
}

func TestSessionReset(t *testing.T) {
	p := newTestPipeline(t)
	s := p.NewSession()
	_, err := s.Detect(context.Background(), testutil.DocumentImage(
		120, 120,
		[4]utils.Point{{X: 20, Y: 20}, {X: 100, Y: 20}, {X: 100, Y: 100}, {X: 20, Y: 100}},
		color.Black, color.White))
	require.NoError(t, err)

	require.NoError(t, s.Reset())
	assert.Equal(t, StateAwaitingInput, s.State())
	assert.Nil(t, s.Detection())
	_, _, err = s.Corners()
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = s.Detect(context.Background(), blankImage(40, 40))
	require.NoError(t, err)
}
