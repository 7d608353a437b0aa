package server

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/docscan/internal/detector"
	"github.com/MeKo-Tech/docscan/internal/pipeline"
	"github.com/MeKo-Tech/docscan/internal/utils"
)

// pipelineInterface defines the methods needed by the server from a pipeline.
type pipelineInterface interface {
	Detect(ctx context.Context, img image.Image) (*detector.Result, error)
	Rectify(img image.Image, corners []utils.Point) (*image.NRGBA, error)
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline       pipelineInterface
	corsOrigin     string
	maxUploadMB    int64
	timeout        time.Duration
	overlayEnabled bool
	overlayColor   string
	jpegQuality    int
	rateLimiter    *RateLimiter
	version        string
}

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	CORSOrigin     string
	MaxUploadMB    int64
	TimeoutSec     int
	PipelineConfig pipeline.Config
	OverlayEnabled bool
	OverlayColor   string
	JPEGQuality    int
	Version        string

	// Per-client token bucket; zero RequestsPerMinute disables limiting.
	RequestsPerMinute int
	Burst             int
}

// Addr returns the listen address.
func (c Config) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// DetectResponse is the JSON body of /detect and of websocket results.
type DetectResponse struct {
	Success    bool               `json:"success"`
	Strategy   detector.Strategy  `json:"strategy"`
	Fallback   bool               `json:"fallback"`
	Corners    []utils.Point      `json:"corners"`
	Width      int                `json:"width"`
	Height     int                `json:"height"`
	Attempts   []detector.Attempt `json:"attempts,omitempty"`
	DurationMs float64            `json:"duration_ms"`
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func newDetectResponse(res *detector.Result) DetectResponse {
	return DetectResponse{
		Success:    true,
		Strategy:   res.Strategy,
		Fallback:   res.IsFallback(),
		Corners:    res.Corners.Points(),
		Width:      res.Width,
		Height:     res.Height,
		Attempts:   res.Attempts,
		DurationMs: float64(res.Duration.Microseconds()) / 1000,
	}
}

// NewServer creates a new scanning server instance.
func NewServer(config Config) (*Server, error) {
	pl, err := pipeline.New(config.PipelineConfig)
	if err != nil {
		return nil, err
	}
	return newServer(pl, config), nil
}

func newServer(p pipelineInterface, config Config) *Server {
	s := &Server{
		pipeline:       p,
		corsOrigin:     config.CORSOrigin,
		maxUploadMB:    config.MaxUploadMB,
		timeout:        time.Duration(config.TimeoutSec) * time.Second,
		overlayEnabled: config.OverlayEnabled,
		overlayColor:   config.OverlayColor,
		jpegQuality:    config.JPEGQuality,
		version:        config.Version,
	}
	if s.maxUploadMB <= 0 {
		s.maxUploadMB = 50
	}
	if s.jpegQuality <= 0 {
		s.jpegQuality = utils.DefaultJPEGQuality
	}
	if config.RequestsPerMinute > 0 {
		s.rateLimiter = NewRateLimiter(config.RequestsPerMinute, config.Burst)
	}
	return s
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/detect", s.corsMiddleware(s.rateLimitMiddleware(s.detectHandler)))
	mux.HandleFunc("/rectify", s.corsMiddleware(s.rateLimitMiddleware(s.rectifyHandler)))
	mux.HandleFunc("/ws/detect", s.rateLimitMiddleware(s.detectWebSocketHandler))
	mux.Handle("/metrics", promhttp.Handler())
}

// Handler returns a mux with all routes installed.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

// RunMaintenance evicts idle rate limiter clients until ctx is done. It
// returns at once when rate limiting is off.
func (s *Server) RunMaintenance(ctx context.Context) {
	if s.rateLimiter == nil {
		return
	}
	s.rateLimiter.RunCleanup(ctx, time.Minute, 10*time.Minute)
}

// requestContext bounds request processing by the configured timeout.
func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), s.timeout)
}

func (s *Server) websocketContext() (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), s.timeout)
}
