package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scholarscout/scraper/api"
	"github.com/scholarscout/scraper/app"
	"github.com/scholarscout/scraper/scheduler"
	"github.com/scholarscout/scraper/tracing"
)

func main() {
	// Setup structured logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("scholarship service initializing", "version", "1.0.0")

	// Initialize tracing
	tp, err := tracing.InitTracer("scholarship-triage")
	if err != nil {
		logger.Warn("failed to initialize tracer, continuing without tracing", "error", err)
	} else {
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Error("error shutting down tracer", "error", err)
			}
		}()
		logger.Info("tracing initialized successfully")
	}

	config := app.ConfigFromEnv()
	config.Logger = logger

	// Command-line flags (override environment variables)
	port := flag.String("port", app.GetEnv("PORT", "8000"), "Server port")
	rulesPath := flag.String("rules", config.RulesPath, "Path to a json5 triage rules file")
	failOpen := flag.Bool("fail-open", config.FailOpen, "Save candidates whose validation verdict is UNKNOWN")
	enrichLimit := flag.Int("enrich-limit", config.EnrichLimit, "Records sampled per enrichment run")
	disableCORS := flag.Bool("disable-cors", false, "Disable CORS")
	disableScheduler := flag.Bool("disable-scheduler", false, "Do not run the RSS and enrichment jobs")
	flag.Parse()

	config.RulesPath = *rulesPath
	config.FailOpen = *failOpen
	config.EnrichLimit = *enrichLimit

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	service, err := app.New(ctx, config)
	if err != nil {
		logger.Error("failed to initialize service", "error", err)
		os.Exit(1)
	}
	logger.Info("database ready", "driver", service.DB.Driver())

	server := api.NewServer(api.Config{
		Addr:        ":" + *port,
		CORSEnabled: !*disableCORS,
		Logger:      logger,
	}, service)

	// Refresh store gauges
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := service.UpdateStats(ctx); err != nil {
					logger.Warn("failed to update metrics", "error", err)
				}
			}
		}
	}()
	logger.Info("database metrics initialized")

	if !*disableScheduler {
		sched := scheduler.New(logger)
		for _, task := range service.Tasks() {
			if err := sched.Add(task); err != nil {
				logger.Error("failed to register task", "task", task.Name, "error", err)
				os.Exit(1)
			}
		}
		go func() {
			if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("scheduler stopped", "error", err)
			}
		}()
		logger.Info("scheduler started", "tasks", sched.Tasks())
	}

	// Start server in a goroutine
	go func() {
		logger.Info("scholarship service starting",
			"port", *port,
			"rules", config.RulesPath,
			"ai_enabled", config.LLM.APIKey != "",
			"ai_model", config.LLM.Model,
			"fail_open", config.FailOpen,
			"snapshot_backend", config.Snapshots.Backend,
			"enrich_limit", config.EnrichLimit,
		)

		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	logger.Info("shutting down gracefully")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
