package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/wolfeidau/gravitypreview/internal/assets"
	httpmiddleware "github.com/wolfeidau/gravitypreview/internal/http"
	"github.com/wolfeidau/gravitypreview/internal/logger"
	"github.com/wolfeidau/gravitypreview/internal/preview"
	"github.com/wolfeidau/gravitypreview/internal/server"
	"github.com/wolfeidau/gravitypreview/internal/telemetry"
)

type ServeCmd struct {
	Listen       string   `help:"HTTP server listen address" default:"127.0.0.1:8080" env:"PREVIEW_LISTEN"`
	CORSOrigins  []string `help:"allowed CORS origins for browser clients" default:"http://localhost:3000" env:"PREVIEW_CORS_ORIGINS"`
	CacheSize    int      `help:"number of normalized bundles to memoize" default:"128" env:"PREVIEW_CACHE_SIZE"`
	MaxBodyBytes int64    `help:"largest accepted bundle document in bytes" default:"4194304" env:"PREVIEW_MAX_BODY_BYTES"`
	Minify       bool     `help:"minify when verifying bundles" default:"false" env:"PREVIEW_MINIFY"`
	Telemetry    bool     `help:"export traces and metrics over OTLP" default:"false" env:"PREVIEW_TELEMETRY"`
}

func (s *ServeCmd) Validate() error {
	if s.CacheSize < 1 {
		return errors.New("cache size must be at least 1 (--cache-size or PREVIEW_CACHE_SIZE)")
	}
	if s.MaxBodyBytes < 1 {
		return errors.New("max body bytes must be positive (--max-body-bytes or PREVIEW_MAX_BODY_BYTES)")
	}
	return nil
}

func (s *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx = log.WithContext(ctx)

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting preview server")

	if s.Telemetry {
		shutdown, err := telemetry.Init(ctx, "gravitypreview", globals.Version)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without it")
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("Failed to shutdown telemetry")
				}
			}()
		}
	}

	memo, err := preview.NewMemo(s.CacheSize)
	if err != nil {
		return err
	}

	config := assets.DefaultConfig()
	config.Minify = s.Minify

	srv := server.NewServer(memo, assets.New(config))
	handler := s.middleware(log, srv.Handler())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpServer := configureHTTPServer(s.Listen, handler)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.Listen).Strs("cors_origins", s.CORSOrigins).Int("cache_size", s.CacheSize).Msg("Starting HTTP server")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return httpServer.Shutdown(shutdownCtx)
}

// middleware wraps h with CORS, compression, body limits and request logging,
// outermost first
func (s *ServeCmd) middleware(log zerolog.Logger, h http.Handler) http.Handler {
	h = httpmiddleware.MaxBodyBytes(s.MaxBodyBytes)(h)
	h = httpmiddleware.RequestLogger(log)(h)
	h = gzhttp.GzipHandler(h)
	return withCORS(s.CORSOrigins, h)
}

func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", httpmiddleware.RequestIDHeader},
		ExposedHeaders: []string{httpmiddleware.RequestIDHeader},
	})
	return middleware.Handler(h)
}
