package main

import (
	"log/slog"
	"os"

	"github.com/itsDrac/e-auc-bidding/cmd/server"
	"github.com/itsDrac/e-auc-bidding/pkg/config"
	"github.com/itsDrac/e-auc-bidding/pkg/logger"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file found or error loading it", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler

	// Configure structured logging with slog
	logOptions := &slog.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelInfo,
	}
	if cfg.Env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, logOptions)
	} else {
		handler = slog.NewTextHandler(os.Stdout, logOptions)
	}
	slog.SetDefault(slog.New(handler))

	log := logger.NewLogger(cfg.Env)
	defer log.Sync()

	// Service initialization
	slog.Info("Initializing bidding service...", "instance_id", cfg.InstanceID)

	server := server.New(cfg, log)
	if err := server.Run(); err != nil {
		slog.Error("server failed to run", "error", err)
		os.Exit(1)
	}
}
