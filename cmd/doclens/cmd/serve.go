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

	"github.com/doclens/doclens/internal/pipeline"
	"github.com/doclens/doclens/internal/server"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP extraction server",
	Long: `Start an HTTP server that provides REST API endpoints for document OCR.

The server provides the following endpoints:
  POST /v1/extract        - Full extraction (text, layout, markdown, metrics)
  POST /v1/extract/simple - Plain-text extraction
  GET  /v1/extract/stream - WebSocket streaming extraction
  GET  /health            - Health check endpoint
  GET  /metrics           - Prometheus metrics

Examples:
  doclens serve
  doclens serve --port 8080
  doclens serve --host 0.0.0.0 --port 3000 --mount-dir /mnt/ocr-outputs`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		// Server configuration with CLI flag overrides.
		host := cfg.Server.Host
		if cmd.Flags().Changed("host") {
			host, _ = cmd.Flags().GetString("host")
		}

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}

		corsOrigin := cfg.Server.CORSOrigin
		if cmd.Flags().Changed("cors-origin") {
			corsOrigin, _ = cmd.Flags().GetString("cors-origin")
		}

		maxUploadSize := cfg.Server.MaxUploadMB
		if cmd.Flags().Changed("max-upload-size") {
			maxUploadSize, _ = cmd.Flags().GetInt("max-upload-size")
		}

		timeout := cfg.Server.TimeoutSec
		if cmd.Flags().Changed("timeout") {
			timeout, _ = cmd.Flags().GetInt("timeout")
		}

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if cmd.Flags().Changed("shutdown-timeout") {
			shutdownTimeout, _ = cmd.Flags().GetInt("shutdown-timeout")
		}

		// Mount configuration with CLI flag overrides.
		mountDir := cfg.Mount.Dir
		if cmd.Flags().Changed("mount-dir") {
			mountDir, _ = cmd.Flags().GetString("mount-dir")
		}

		uploadsDir := cfg.Mount.UploadsDir
		if cmd.Flags().Changed("uploads-dir") {
			uploadsDir, _ = cmd.Flags().GetString("uploads-dir")
		}

		// Engine configuration with CLI flag overrides.
		engineURL := cfg.Engine.URL
		if cmd.Flags().Changed("engine-url") {
			engineURL, _ = cmd.Flags().GetString("engine-url")
		}

		orientation := cfg.Engine.UseDocOrientationClassify
		if cmd.Flags().Changed("doc-orientation") {
			orientation, _ = cmd.Flags().GetBool("doc-orientation")
		}

		unwarping := cfg.Engine.UseDocUnwarping
		if cmd.Flags().Changed("doc-unwarping") {
			unwarping, _ = cmd.Flags().GetBool("doc-unwarping")
		}

		layout := cfg.Engine.UseLayoutDetection
		if cmd.Flags().Changed("layout-detection") {
			layout, _ = cmd.Flags().GetBool("layout-detection")
		}

		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", port)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		serverConfig := server.Config{
			Host:        host,
			Port:        port,
			CORSOrigin:  corsOrigin,
			MaxUploadMB: int64(maxUploadSize),
			TimeoutSec:  timeout,
			MountDir:    mountDir,
			UploadsDir:  uploadsDir,
			Pipeline: pipeline.Config{
				EngineURL:                 engineURL,
				AuthToken:                 cfg.Engine.AuthToken,
				RequestTimeoutSec:         cfg.Engine.RequestTimeoutSec,
				UseDocOrientationClassify: orientation,
				UseDocUnwarping:           unwarping,
				UseLayoutDetection:        layout,
			},
		}

		extractServer := server.NewServer(serverConfig)

		mux := http.NewServeMux()
		extractServer.SetupRoutes(mux)

		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       time.Duration(timeout) * time.Second,
			WriteTimeout:      time.Duration(timeout) * time.Second,
		}

		go func() {
			slog.Info("Starting extraction server",
				"host", host, "port", port,
				"engine_url", engineURL,
				"mount_dir", mountDir,
				"uploads_dir", uploadsDir)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Server error", "error", err)
				cancel()
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal", "signal", sig.String())
		case <-ctx.Done():
			slog.Info("Context cancelled, initiating shutdown")
		}

		slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", shutdownTimeout))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
			time.Duration(shutdownTimeout)*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server shutdown completed")
		}

		slog.Info("Graceful shutdown completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "0.0.0.0", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 50, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 600, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 30, "shutdown timeout in seconds")
	serveCmd.Flags().String("mount-dir", "", "override output mount directory")
	serveCmd.Flags().String("uploads-dir", "", "override uploads mount directory")
	serveCmd.Flags().String("engine-url", "", "override OCR serving endpoint URL")
	serveCmd.Flags().Bool("doc-orientation", true, "enable document orientation correction")
	serveCmd.Flags().Bool("doc-unwarping", true, "enable document unwarping")
	serveCmd.Flags().Bool("layout-detection", true, "enable layout detection")
}
