package server

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/docscan/internal/detector"
	"github.com/MeKo-Tech/docscan/internal/pipeline"
	"github.com/MeKo-Tech/docscan/internal/testutil"
	"github.com/MeKo-Tech/docscan/internal/utils"
)

// mockPipeline returns canned results for handler tests.
type mockPipeline struct {
	detectErr  error
	rectifyErr error
	result     *detector.Result
}

func (m *mockPipeline) Detect(_ context.Context, img image.Image) (*detector.Result, error) {
	if m.detectErr != nil {
		return nil, m.detectErr
	}
	if m.result != nil {
		return m.result, nil
	}
	b := img.Bounds()
	return &detector.Result{
		Corners:  detector.DefaultCorners(b.Dx(), b.Dy()),
		Strategy: detector.StrategyFallback,
		Width:    b.Dx(),
		Height:   b.Dy(),
	}, nil
}

func (m *mockPipeline) Rectify(_ image.Image, _ []utils.Point) (*image.NRGBA, error) {
	if m.rectifyErr != nil {
		return nil, m.rectifyErr
	}
	return image.NewNRGBA(image.Rect(0, 0, 10, 20)), nil
}

func newTestServer(t *testing.T, mutate func(*Config)) *Server {
	t.Helper()
	cfg := Config{
		CORSOrigin:     "*",
		MaxUploadMB:    10,
		TimeoutSec:     30,
		OverlayEnabled: true,
		OverlayColor:   "#FF0000",
		PipelineConfig: pipeline.DefaultConfig(),
		Version:        "test",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := NewServer(cfg)
	require.NoError(t, err)
	return s
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func sceneImage() image.Image { return testutil.AxisAlignedScene().Render() }

// multipartRequest builds a POST with an optional "image" file and form fields.
func multipartRequest(t *testing.T, target string, imageData []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if imageData != nil {
		fw, err := mw.CreateFormFile("image", "scan.png")
		require.NoError(t, err)
		_, err = fw.Write(imageData)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, r io.Reader) image.Image {
	t.Helper()
	img, _, err := image.Decode(r)
	require.NoError(t, err)
	return img
}

var errBoom = errors.New("boom")
