package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Ajamillion/receptive/internal/asr"
	"github.com/Ajamillion/receptive/internal/booking"
	"github.com/Ajamillion/receptive/internal/config"
	"github.com/Ajamillion/receptive/internal/enrich"
	"github.com/Ajamillion/receptive/internal/metrics"
	"github.com/Ajamillion/receptive/internal/server"
	"github.com/Ajamillion/receptive/internal/session"
	"github.com/Ajamillion/receptive/internal/statesink"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "receptive"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.Int("input_sample_rate", cfg.Audio.InputSampleRate),
		slog.Int("target_sample_rate", cfg.Audio.TargetSampleRate),
		slog.Int("max_engines", cfg.ASR.MaxEngines),
		slog.Float64("endpoint_duration", cfg.ASR.EndpointDuration),
		slog.String("enrichment_model", cfg.Enrichment.Model),
		slog.Float64("enrichment_min_interval", cfg.Enrichment.MinInterval),
		slog.Bool("guard_enabled", cfg.Guard.Enabled),
		slog.Bool("booking_enabled", cfg.Booking.CalendarID != ""),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Initialize speech engine pool
	factory := asr.NewCheetahFactory(cfg.ASR.AccessKey, cfg.ASR.GetEndpointDuration(), cfg.ASR.AutoPunctuation)
	pool := asr.NewPool(factory, cfg.ASR.MaxEngines)
	logger.Info("Speech engine pool initialized",
		slog.Int("max_engines", cfg.ASR.MaxEngines),
	)

	// Initialize AI summarizer
	summarizer, err := enrich.NewGeminiSummarizer(ctx, cfg.Enrichment.APIKey, cfg.Enrichment.Model)
	if err != nil {
		logger.Error("Failed to create summarizer", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Summarizer initialized", slog.String("model", cfg.Enrichment.Model))

	// Initialize state sink recorder
	sinkClient := statesink.NewClient(cfg.StateSink.BaseURL, cfg.StateSink.Secret, cfg.StateSink.GetTimeoutDuration())
	recorder := statesink.NewRecorder(sinkClient, logger)
	logger.Info("State sink initialized")

	// Initialize session manager
	sessionMgr := session.NewManager(session.Config{
		InputSampleRate:  cfg.Audio.InputSampleRate,
		TargetSampleRate: cfg.Audio.TargetSampleRate,
		Guard: session.GuardPolicy{
			Enabled:     cfg.Guard.Enabled,
			MaxDuration: cfg.Guard.GetMaxDuration(),
		},
		EnrichInterval: cfg.Enrichment.GetMinInterval(),
		EnrichTimeout:  cfg.Enrichment.GetTimeoutDuration(),
	}, pool, enrich.Instrument(summarizer, appMetrics), recorder, appMetrics, logger)
	logger.Info("Session manager initialized")

	// Initialize booking service (if configured)
	var bookings server.BookingService
	if cfg.Booking.CalendarID != "" {
		scheduler, err := booking.NewCalendarScheduler(ctx, booking.Config{
			CalendarID:      cfg.Booking.CalendarID,
			CredentialsJSON: cfg.Booking.CredentialsJSON,
			CredentialsFile: cfg.Booking.CredentialsFile,
			TimeZone:        cfg.Booking.TimeZone,
		})
		if err != nil {
			logger.Error("Failed to create calendar scheduler", slog.String("error", err.Error()))
			os.Exit(1)
		}
		bookings = booking.NewService(scheduler, recorder, appMetrics, logger)
		logger.Info("Booking service initialized",
			slog.String("calendar_id", cfg.Booking.CalendarID),
		)
	}

	// Initialize and start HTTP server
	httpServer := server.NewHTTPServer(&cfg.Server, logger, sessionMgr, bookings, appMetrics)
	if err := httpServer.Start(); err != nil {
		logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("address", fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)),
	)

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new connections)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	// Complete remaining sessions so engines are released and call
	// documents reach a terminal status
	sessionMgr.Shutdown(shutdownCtx)

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	// Configure handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		// Default to text format
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
