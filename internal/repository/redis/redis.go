// Package redis is the remote document-store PlaceStore backend.
//
// Layout per owner:
//
//	places:<owner>:seq        INCR counter, the insertion sequence
//	places:<owner>:index      ZSET of place ids, scored by seq
//	places:<owner>:doc:<id>   HASH with the place fields
//
// Ordering is NOT delegated to the zset score: List reads every document and
// orders by created_at then seq with model.SortNewestFirst, the same rule as
// every other backend.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/xid"

	"github.com/sakif/park-places/internal/model"
	"github.com/sakif/park-places/internal/repository"
)

var (
	_ repository.PlaceStores = (*Stores)(nil)
	_ repository.PlaceStore  = (*Store)(nil)
)

// Open creates a client for addr and verifies it answers PING.
func Open(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: pinging %s: %w", addr, err)
	}
	return client, nil
}

// Stores hands out per-owner stores sharing one client.
type Stores struct {
	client goredis.UniversalClient
	logger *slog.Logger
}

// New wraps an existing client.
func New(client goredis.UniversalClient, logger *slog.Logger) *Stores {
	return &Stores{client: client, logger: logger}
}

// ForOwner returns the store of one owner.
func (s *Stores) ForOwner(owner string) repository.PlaceStore {
	prefix := "places:" + owner
	return &Store{
		client: s.client,
		logger: s.logger,
		seqKey: prefix + ":seq",
		idxKey: prefix + ":index",
		docKey: prefix + ":doc:",
	}
}

// Store is the PlaceStore of a single owner.
type Store struct {
	client goredis.UniversalClient
	logger *slog.Logger
	seqKey string
	idxKey string
	docKey string
}

// Create writes the document and its index entry in one MULTI/EXEC.
func (s *Store) Create(ctx context.Context, draft model.PlaceDraft) (*model.Place, error) {
	seq, err := s.client.Incr(ctx, s.seqKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: allocating sequence: %w", err)
	}

	place := &model.Place{
		ID:         xid.New().String(),
		CreatedAt:  time.Now().UTC(),
		Color:      draft.Color,
		Section:    draft.Section,
		Number:     draft.Number,
		Coordinate: draft.Coordinate,
		Seq:        seq,
	}

	fields := map[string]any{
		"id":         place.ID,
		"created_at": place.CreatedAt.Format(time.RFC3339Nano),
		"seq":        seq,
		"color":      string(place.Color),
		"section":    place.Section,
		"number":     place.Number,
	}
	if c := place.Coordinate; c != nil {
		fields["lat"] = strconv.FormatFloat(c.Lat, 'f', -1, 64)
		fields["lng"] = strconv.FormatFloat(c.Lng, 'f', -1, 64)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, s.docKey+place.ID, fields)
		pipe.ZAdd(ctx, s.idxKey, goredis.Z{Score: float64(seq), Member: place.ID})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis: creating place: %w", err)
	}

	return place, nil
}

// List reads the index then every document in one pipeline.
// Index entries whose document vanished are skipped.
func (s *Store) List(ctx context.Context) ([]model.Place, error) {
	ids, err := s.client.ZRange(ctx, s.idxKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: reading index: %w", err)
	}

	places := make([]model.Place, 0, len(ids))
	if len(ids) == 0 {
		return places, nil
	}

	cmds := make([]*goredis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.docKey+id)
		}
		return nil
	})
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("redis: reading places: %w", err)
	}

	for i, cmd := range cmds {
		doc, err := cmd.Result()
		if err != nil {
			return nil, fmt.Errorf("redis: reading place %s: %w", ids[i], err)
		}
		if len(doc) == 0 {
			s.logger.Warn("dangling place index entry", slog.String("id", ids[i]))
			continue
		}
		places = append(places, fromHash(doc))
	}

	model.SortNewestFirst(places)
	return places, nil
}

// Delete removes the document and its index entry. Unknown ids are a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, s.docKey+id)
		pipe.ZRem(ctx, s.idxKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: deleting place %s: %w", id, err)
	}
	return nil
}

func fromHash(doc map[string]string) model.Place {
	p := model.Place{
		ID:      doc["id"],
		Color:   model.Color(doc["color"]),
		Section: doc["section"],
		Number:  doc["number"],
	}
	if t, err := time.Parse(time.RFC3339Nano, doc["created_at"]); err == nil {
		p.CreatedAt = t
	}
	if n, err := strconv.ParseInt(doc["seq"], 10, 64); err == nil {
		p.Seq = n
	}
	lat, latErr := strconv.ParseFloat(doc["lat"], 64)
	lng, lngErr := strconv.ParseFloat(doc["lng"], 64)
	if latErr == nil && lngErr == nil {
		if c, err := model.CoordinateFrom(&lat, &lng); err == nil {
			p.Coordinate = c
		}
	}
	return p
}
