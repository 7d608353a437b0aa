package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/docscan/internal/config"
	"github.com/MeKo-Tech/docscan/internal/server"
	"github.com/MeKo-Tech/docscan/internal/version"
)

func newServeCmd(state *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP scanning API",
		Long: `Start an HTTP server that detects and rectifies uploaded documents.

The server provides the following endpoints:
  GET  /health     - Health check endpoint
  POST /detect     - Detect corners in an uploaded image (JSON or overlay PNG)
  POST /rectify    - Rectify an uploaded image (PNG or JPEG)
  GET  /ws/detect  - WebSocket streaming detection
  GET  /metrics    - Prometheus metrics

Examples:
  docscan serve
  docscan serve --port 8080
  docscan serve --host 0.0.0.0 --port 3000 --rate-limit-enabled`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, state)
		},
	}

	cmd.Flags().StringP("host", "H", "localhost", "server host")
	cmd.Flags().IntP("port", "p", 8080, "server port")
	cmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	cmd.Flags().Int("max-upload-size", 50, "maximum upload size in MB")
	cmd.Flags().Int("timeout", 30, "request timeout in seconds")
	cmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	cmd.Flags().Bool("overlay-enable", true, "enable overlay image responses")
	cmd.Flags().String("overlay-color", "#FF0000", "overlay colour (hex)")
	cmd.Flags().Bool("rate-limit-enabled", false, "enable per-client rate limiting")
	cmd.Flags().Int("requests-per-minute", 60, "requests per minute per client")
	cmd.Flags().Int("burst", 10, "requests a client may make at once")
	addDetectionFlags(cmd)
	return cmd
}

// serverConfigFromFlags merges the changed serve flags into the server
// section of cfg.
func serverConfigFromFlags(cmd *cobra.Command, cfg *config.Config) config.ServerConfig {
	sc := cfg.Server
	flags := cmd.Flags()
	if flags.Changed("host") {
		sc.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		sc.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("cors-origin") {
		sc.CORSOrigin, _ = flags.GetString("cors-origin")
	}
	if flags.Changed("max-upload-size") {
		sc.MaxUploadMB, _ = flags.GetInt("max-upload-size")
	}
	if flags.Changed("timeout") {
		sc.TimeoutSec, _ = flags.GetInt("timeout")
	}
	if flags.Changed("shutdown-timeout") {
		sc.ShutdownTimeout, _ = flags.GetInt("shutdown-timeout")
	}
	if flags.Changed("overlay-enable") {
		sc.OverlayEnabled, _ = flags.GetBool("overlay-enable")
	}
	if flags.Changed("rate-limit-enabled") {
		sc.RateLimit.Enabled, _ = flags.GetBool("rate-limit-enabled")
	}
	if flags.Changed("requests-per-minute") {
		sc.RateLimit.RequestsPerMinute, _ = flags.GetInt("requests-per-minute")
	}
	if flags.Changed("burst") {
		sc.RateLimit.Burst, _ = flags.GetInt("burst")
	}
	return sc
}

func buildServerConfig(cmd *cobra.Command, cfg *config.Config) (server.Config, error) {
	sc := serverConfigFromFlags(cmd, cfg)
	if sc.Port < 1 || sc.Port > 65535 {
		return server.Config{}, fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", sc.Port)
	}
	overlayColor := cfg.Output.OverlayColor
	if cmd.Flags().Changed("overlay-color") {
		overlayColor, _ = cmd.Flags().GetString("overlay-color")
	}

	serverConfig := server.Config{
		Host:           sc.Host,
		Port:           sc.Port,
		CORSOrigin:     sc.CORSOrigin,
		MaxUploadMB:    int64(sc.MaxUploadMB),
		TimeoutSec:     sc.TimeoutSec,
		PipelineConfig: cfg.ToPipelineConfig(),
		OverlayEnabled: sc.OverlayEnabled,
		OverlayColor:   overlayColor,
		JPEGQuality:    cfg.Output.JPEGQuality,
		Version:        version.Version,
	}
	if sc.RateLimit.Enabled {
		serverConfig.RequestsPerMinute = sc.RateLimit.RequestsPerMinute
		serverConfig.Burst = sc.RateLimit.Burst
	}
	return serverConfig, nil
}

func runServe(cmd *cobra.Command, state *cliState) error {
	cfg := *state.cfg
	applyDetectionFlags(cmd, &cfg)
	serverConfig, err := buildServerConfig(cmd, &cfg)
	if err != nil {
		return err
	}
	shutdownTimeout := serverConfigFromFlags(cmd, &cfg).ShutdownTimeout

	scanServer, err := server.NewServer(serverConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go scanServer.RunMaintenance(ctx)

	httpServer := &http.Server{
		Addr:              serverConfig.Addr(),
		Handler:           scanServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(serverConfig.TimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(serverConfig.TimeoutSec) * time.Second,
	}

	go func() {
		slog.Info("Starting scan server", "host", serverConfig.Host, "port", serverConfig.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		slog.Info("Context cancelled, initiating shutdown")
	}

	slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", shutdownTimeout))
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(shutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
		return err
	}
	slog.Info("Graceful shutdown completed")
	return nil
}
