package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/MeKo-Tech/docscan/internal/detector"
	"github.com/MeKo-Tech/docscan/internal/rectify"
	"github.com/MeKo-Tech/docscan/internal/utils"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: s.version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// detectHandler locates the document in an uploaded image and answers with
// the corners as JSON, or with an overlay PNG when format=overlay.
func (s *Server) detectHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	img, ok := s.parseImageUpload(w, r)
	if !ok {
		scanRequestsTotal.WithLabelValues("detect", "error").Inc()
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	res, err := s.detect(ctx, img, "detect")
	if err != nil {
		s.writeProcessingError(w, "detection", err)
		return
	}

	if requestValue(r, "format") == "overlay" || requestValue(r, "overlay") == "1" {
		s.handleOverlayOutput(w, r, img, res)
		return
	}
	s.writeJSON(w, http.StatusOK, newDetectResponse(res))
}

// rectifyHandler warps an uploaded image. Corners come from the optional
// "corners" field; without it the document is detected first.
func (s *Server) rectifyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.pipeline == nil {
		s.writeProcessingError(w, "rectification", errPipelineUnavailable)
		return
	}
	img, ok := s.parseImageUpload(w, r)
	if !ok {
		scanRequestsTotal.WithLabelValues("rectify", "error").Inc()
		return
	}

	format := strings.ToLower(requestValue(r, "format"))
	if format == "" {
		format = "png"
	}
	if format != "png" && format != "jpeg" && format != "jpg" {
		s.writeErrorResponse(w, "Unsupported output format: "+format, http.StatusBadRequest)
		return
	}

	var corners []utils.Point
	if raw := requestValue(r, "corners"); raw != "" {
		pts, err := parseCorners(raw)
		if err != nil {
			scanRequestsTotal.WithLabelValues("rectify", "error").Inc()
			s.writeErrorResponse(w, fmt.Sprintf("Invalid corners: %v", err), http.StatusBadRequest)
			return
		}
		corners = pts
	} else {
		ctx, cancel := s.requestContext(r)
		res, err := s.detect(ctx, img, "detect")
		cancel()
		if err != nil {
			s.writeProcessingError(w, "detection", err)
			return
		}
		corners = res.Corners.Points()
		w.Header().Set("X-Docscan-Strategy", string(res.Strategy))
	}

	start := time.Now()
	out, err := s.pipeline.Rectify(img, corners)
	if err != nil {
		scanRequestsTotal.WithLabelValues("rectify", "error").Inc()
		s.writeProcessingError(w, "rectification", err)
		return
	}
	scanRequestsTotal.WithLabelValues("rectify", "success").Inc()
	scanProcessingDuration.WithLabelValues("rectify").Observe(time.Since(start).Seconds())

	var buf bytes.Buffer
	if err := utils.EncodeImageQuality(&buf, out, format, s.jpegQuality); err != nil {
		s.writeErrorResponse(w, "Failed to encode image", http.StatusInternalServerError)
		return
	}
	if format == "png" {
		w.Header().Set("Content-Type", "image/png")
	} else {
		w.Header().Set("Content-Type", "image/jpeg")
	}
	w.Header().Set("X-Docscan-Size", fmt.Sprintf("%dx%d", out.Rect.Dx(), out.Rect.Dy()))
	_, _ = w.Write(buf.Bytes())
}

// detect runs detection and records metrics under the given request type.
func (s *Server) detect(ctx context.Context, img image.Image, kind string) (*detector.Result, error) {
	if s.pipeline == nil {
		return nil, errPipelineUnavailable
	}
	start := time.Now()
	res, err := s.pipeline.Detect(ctx, img)
	if err != nil {
		scanRequestsTotal.WithLabelValues(kind, "error").Inc()
		return nil, err
	}
	scanRequestsTotal.WithLabelValues(kind, "success").Inc()
	scanProcessingDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	detectionStrategyTotal.WithLabelValues(string(res.Strategy)).Inc()
	return res, nil
}

var errPipelineUnavailable = errors.New("scan pipeline not initialized")

// parseImageUpload reads the multipart "image" field. On failure the error
// response is already written.
func (s *Server) parseImageUpload(w http.ResponseWriter, r *http.Request) (image.Image, bool) {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		}
		return nil, false
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, "No image file provided", http.StatusBadRequest)
		return nil, false
	}
	defer func() { _ = file.Close() }()
	uploadSizeBytes.Observe(float64(header.Size))

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, "Failed to read image data", http.StatusInternalServerError)
		return nil, false
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		s.writeErrorResponse(w, "Invalid image format", http.StatusBadRequest)
		return nil, false
	}
	return img, true
}

// parseCorners accepts either four {"x":..,"y":..} objects or eight numbers.
func parseCorners(raw string) ([]utils.Point, error) {
	var pts []utils.Point
	if err := json.Unmarshal([]byte(raw), &pts); err == nil {
		if len(pts) != 4 {
			return nil, fmt.Errorf("need 4 corners, got %d", len(pts))
		}
		return pts, nil
	}
	var flat []float64
	if err := json.Unmarshal([]byte(raw), &flat); err != nil {
		return nil, errors.New("expected a JSON array of points or numbers")
	}
	if len(flat) != 8 {
		return nil, fmt.Errorf("need 8 coordinates, got %d", len(flat))
	}
	pts = make([]utils.Point, 4)
	for i := range pts {
		pts[i] = utils.Point{X: flat[2*i], Y: flat[2*i+1]}
	}
	return pts, nil
}

// handleOverlayOutput renders the detected quadrilateral onto the image.
func (s *Server) handleOverlayOutput(w http.ResponseWriter, r *http.Request, img image.Image, res *detector.Result) {
	if !s.overlayEnabled {
		s.writeErrorResponse(w, "overlay output disabled", http.StatusForbidden)
		return
	}

	var ov *image.RGBA
	hex := requestValue(r, "color")
	if hex == "" && !res.IsFallback() {
		hex = s.overlayColor
	}
	if hex != "" {
		col, err := utils.ParseColor(hex)
		if err != nil {
			s.writeErrorResponse(w, fmt.Sprintf("Invalid color: %s", hex), http.StatusBadRequest)
			return
		}
		ov = detector.RenderOverlayColor(img, res, col)
	} else {
		ov = detector.RenderOverlay(img, res)
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Docscan-Strategy", string(res.Strategy))
	if err := png.Encode(w, ov); err != nil {
		slog.Error("Failed to encode overlay", "error", err)
	}
}

// writeProcessingError maps pipeline errors to status codes.
func (s *Server) writeProcessingError(w http.ResponseWriter, stage string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errPipelineUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.Is(err, rectify.ErrInvalidCorners):
		status = http.StatusBadRequest
	case errors.Is(err, rectify.ErrDegenerateCorners):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, rectify.ErrOutputTooLarge):
		status = http.StatusRequestEntityTooLarge
	}
	slog.Warn("Request processing failed", "stage", stage, "status", status, "error", err)
	s.writeErrorResponse(w, fmt.Sprintf("%s failed: %v", stage, err), status)
}

// requestValue reads a form field, falling back to the query string.
func requestValue(r *http.Request, key string) string {
	if v := r.FormValue(key); v != "" {
		return v
	}
	return r.URL.Query().Get(key)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{Success: false, Error: message})
}
