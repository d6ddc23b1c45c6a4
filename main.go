package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"

	appLogger "github.com/FACorreiaa/go-vacation-agent/app/logger"
	"github.com/FACorreiaa/go-vacation-agent/app/observability/metrics"
	"github.com/FACorreiaa/go-vacation-agent/app/tracer"
	"github.com/FACorreiaa/go-vacation-agent/config"
	"github.com/FACorreiaa/go-vacation-agent/internal/container"
	"github.com/FACorreiaa/go-vacation-agent/internal/router"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found or error loading:", err)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("FATAL: Error initializing config: %v", err)
	}

	logger := setupLogger(cfg.Mode)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Application exited with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Application shut down complete.")
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	telemetry, err := tracer.InitTracingAndMetrics(cfg.Metrics.ServiceName)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	appMetrics, err := metrics.New(telemetry.Meter)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	c, err := container.NewContainer(ctx, &cfg, appMetrics, logger)
	if err != nil {
		return fmt.Errorf("init container: %w", err)
	}
	defer c.Close()

	// applyDefaults keeps this above the worst-case pipeline budget.
	handlerTimeout := cfg.Server.Timeout
	r := newHandler(c, telemetry.Handler, handlerTimeout, logger)

	serverAddress := fmt.Sprintf(":%s", cfg.Server.HTTPPort)
	srv := &http.Server{
		Addr:              serverAddress,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      handlerTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", serverAddress))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received, starting graceful shutdown...")

		// In-flight plans may be waiting on the model, so allow them the full handler budget.
		shutdownCtx, done := context.WithTimeout(context.Background(), handlerTimeout)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		logger.Info("HTTP server gracefully stopped")
		return nil
	})

	return g.Wait()
}

// newHandler mounts the API routes behind the server-wide middleware stack.
func newHandler(c *container.Container, metricsHandler http.Handler, timeout time.Duration, logger *slog.Logger) http.Handler {
	mainRouter := router.SetupRouter(&router.Config{
		PlanHandler:    c.PlanHandler,
		MetricsHandler: metricsHandler,
		Logger:         logger,
	})

	r := chi.NewMux()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appLogger.StructuredLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5, "application/json"))
	r.Mount("/", mainRouter)
	return r
}

// setupLogger returns a coloured tint logger in development and JSON otherwise.
func setupLogger(mode string) *slog.Logger {
	if env := os.Getenv("APP_ENV"); env != "" {
		mode = env
	}

	if mode == "development" || mode == "" {
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
