// Package backend opens the PlaceStore backend named by PLACE_BACKEND.
//
// The server and placectl share it, so both always agree on where places live.
// Users and the local backend's key/value table always live in the sqlite
// database the caller already opened; only places move between backends.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/park-places/internal/config"
	"github.com/sakif/park-places/internal/repository"
	"github.com/sakif/park-places/internal/repository/local"
	"github.com/sakif/park-places/internal/repository/postgres"
	"github.com/sakif/park-places/internal/repository/redis"
	"github.com/sakif/park-places/internal/repository/sqlite"
)

// Backend is an open place store plus what it takes to check and close it.
type Backend struct {
	Name   string
	Stores repository.PlaceStores

	ping  func(ctx context.Context) error
	close func() error
}

// Open connects the backend selected by cfg.PlaceBackend.
func Open(ctx context.Context, cfg config.Config, db *sqlite.DB, logger *slog.Logger) (*Backend, error) {
	logger = logger.With(slog.String("backend", cfg.PlaceBackend))
	dbPing := func(context.Context) error { return db.Ping() }
	noClose := func() error { return nil }

	switch cfg.PlaceBackend {
	case config.BackendLocal:
		return &Backend{
			Name:   cfg.PlaceBackend,
			Stores: local.New(db, logger),
			ping:   dbPing,
			close:  noClose,
		}, nil

	case config.BackendSQLite:
		return &Backend{
			Name:   cfg.PlaceBackend,
			Stores: db,
			ping:   dbPing,
			close:  noClose,
		}, nil

	case config.BackendRedis:
		client, err := redis.Open(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("backend: %w", err)
		}
		logger.Info("place store connected", slog.String("addr", cfg.RedisAddr))
		return &Backend{
			Name:   cfg.PlaceBackend,
			Stores: redis.New(client, logger),
			ping:   func(ctx context.Context) error { return client.Ping(ctx).Err() },
			close:  client.Close,
		}, nil

	case config.BackendPostgres:
		pool, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("backend: %w", err)
		}
		logger.Info("place store connected")
		return &Backend{
			Name:   cfg.PlaceBackend,
			Stores: postgres.New(pool, logger),
			ping:   pool.Ping,
			close: func() error {
				pool.Close()
				return nil
			},
		}, nil

	default:
		return nil, fmt.Errorf("backend: unknown place backend %q", cfg.PlaceBackend)
	}
}

// Ping checks the backend is reachable.
func (b *Backend) Ping(ctx context.Context) error {
	return b.ping(ctx)
}

// Close releases the backend's connections. The sqlite DB is the caller's.
func (b *Backend) Close() error {
	return b.close()
}
