// Command server runs the parking places web app: the page, the JSON API
// and /metrics. Configuration comes from .env and the environment; see
// internal/config.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/sakif/park-places/internal/config"
	"github.com/sakif/park-places/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	srv, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("server setup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Blocks until SIGINT/SIGTERM and a graceful shutdown.
	if err := srv.Start(); err != nil {
		logger.Error("server stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
