package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lperezmo/sms-helper/internal/config"
	"github.com/lperezmo/sms-helper/pkg/logger"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to a JSON config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	if cfg.Telemetry.SentryDSN != "" {
		if err := logger.InitSentry(cfg.Telemetry.SentryDSN, cfg.Telemetry.Environment, cfg.Telemetry.TracesSampleRate); err != nil {
			panic(err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	// Initialize logger
	if err := logger.Init(logger.Options{
		Path:    cfg.Logging.Path,
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		Sentry:  cfg.Telemetry.SentryDSN != "",
	}); err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded",
		zap.String("version", version),
		zap.String("mode", cfg.Assistant.Mode),
		zap.Bool("validate_signature", cfg.Twilio.ValidateSignature),
	)

	// Setup and start server
	srv, err := SetupServer(cfg)
	if err != nil {
		logger.Fatal("Failed to setup server", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := StartServerWithContext(ctx, srv); err != nil {
		logger.Error("Server error", zap.Error(err))
		stop()
		sentry.Flush(2 * time.Second)
		os.Exit(1)
	}
	logger.Info("Server stopped")
}
