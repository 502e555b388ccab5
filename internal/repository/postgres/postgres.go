// Package postgres is a document-store PlaceStore backend on Postgres JSONB.
//
// Places are kept the way a hosted document database keeps them: one row per
// document in a generic documents table, grouped by collection, with the
// payload in a JSONB body. created_at and seq are real columns so the
// newest-first query can use an index.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/xid"

	"github.com/sakif/park-places/internal/model"
	"github.com/sakif/park-places/internal/repository"
)

// Collection is the collection every place document belongs to.
const Collection = "RegisterPlaces"

var (
	_ repository.PlaceStores = (*Stores)(nil)
	_ repository.PlaceStore  = (*Store)(nil)
)

// body is the JSONB payload. Lat/Lng are both present or both null.
type body struct {
	Color   string   `json:"Color"`
	Section string   `json:"Section"`
	Number  string   `json:"Number"`
	Lat     *float64 `json:"Lat"`
	Lng     *float64 `json:"Lng"`
}

// Open connects a pool to databaseURL and ensures the schema exists.
func Open(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: pinging: %w", err)
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// EnsureSchema creates the documents table and its index if missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
            collection TEXT NOT NULL,
            id TEXT NOT NULL,
            owner TEXT NOT NULL,
            body JSONB NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            seq BIGSERIAL,
            PRIMARY KEY (collection, id)
        )`,
		`CREATE INDEX IF NOT EXISTS documents_owner_created_idx
            ON documents (collection, owner, created_at DESC, seq ASC)`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: ensuring schema: %w", err)
		}
	}
	return nil
}

// Stores hands out per-owner stores sharing one pool.
type Stores struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New wraps an open pool.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Stores {
	return &Stores{pool: pool, logger: logger}
}

// ForOwner returns the store of one owner.
func (s *Stores) ForOwner(owner string) repository.PlaceStore {
	return &Store{pool: s.pool, logger: s.logger, owner: owner}
}

// Store is the PlaceStore of a single owner.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	owner  string
}

// Create inserts a document. Postgres assigns seq; created_at is set here
// so the returned place matches what List will read back.
func (s *Store) Create(ctx context.Context, draft model.PlaceDraft) (*model.Place, error) {
	place := &model.Place{
		ID:         xid.New().String(),
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
		Color:      draft.Color,
		Section:    draft.Section,
		Number:     draft.Number,
		Coordinate: draft.Coordinate,
	}

	b := body{Color: string(draft.Color), Section: draft.Section, Number: draft.Number}
	if c := draft.Coordinate; c != nil {
		lat, lng := c.Lat, c.Lng
		b.Lat, b.Lng = &lat, &lng
	}
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("postgres: encoding place: %w", err)
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO documents (collection, id, owner, body, created_at)
         VALUES ($1, $2, $3, $4, $5)
         RETURNING seq`,
		Collection, place.ID, s.owner, raw, place.CreatedAt,
	)
	if err := row.Scan(&place.Seq); err != nil {
		return nil, fmt.Errorf("postgres: creating place: %w", err)
	}
	return place, nil
}

// List returns the owner's documents, newest first.
func (s *Store) List(ctx context.Context) ([]model.Place, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, body, created_at, seq FROM documents
         WHERE collection = $1 AND owner = $2
         ORDER BY created_at DESC, seq ASC`,
		Collection, s.owner,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing places: %w", err)
	}
	defer rows.Close()

	places := make([]model.Place, 0)
	for rows.Next() {
		var (
			p   model.Place
			raw []byte
		)
		if err := rows.Scan(&p.ID, &raw, &p.CreatedAt, &p.Seq); err != nil {
			return nil, fmt.Errorf("postgres: scanning place: %w", err)
		}
		var b body
		if err := json.Unmarshal(raw, &b); err != nil {
			s.logger.Warn("skipping malformed place document",
				slog.String("id", p.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		p.Color = model.Color(b.Color)
		p.Section = b.Section
		p.Number = b.Number
		if c, err := model.CoordinateFrom(b.Lat, b.Lng); err == nil {
			p.Coordinate = c
		}
		places = append(places, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating places: %w", err)
	}

	model.SortNewestFirst(places)
	return places, nil
}

// Delete removes a document. Unknown ids are a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND owner = $2 AND id = $3`,
		Collection, s.owner, id,
	)
	if err != nil {
		return fmt.Errorf("postgres: deleting place %s: %w", id, err)
	}
	return nil
}
