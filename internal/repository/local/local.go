// Package local is the persisted-list PlaceStore backend.
//
// Each owner's places live as ONE JSON array under one key of a
// repository.KeyValue, exactly the shape a browser keeps in localStorage:
//
//	savedParkingPlaces:<owner> → [{"id":..,"date":"2025-05-01T10:00:00Z","color":..,"section":..,"number":..,"lat":..,"lng":..}, ...]
//
// The array is kept in insertion order (new records are appended); List sorts
// it newest first. Every mutation is read-modify-write of the whole array, so
// writes for the same key are serialised with a per-key mutex.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/park-places/internal/apperror"
	"github.com/sakif/park-places/internal/model"
	"github.com/sakif/park-places/internal/repository"
)

// KeyPrefix is the storage key every owner key is derived from.
const KeyPrefix = "savedParkingPlaces"

var (
	_ repository.PlaceStores = (*Stores)(nil)
	_ repository.PlaceStore  = (*Store)(nil)
)

// record is the persisted form of a place. lat/lng are pointers so a place
// without a location serialises as null rather than 0,0.
type record struct {
	ID      string   `json:"id"`
	Date    string   `json:"date"`
	Color   string   `json:"color"`
	Section string   `json:"section"`
	Number  string   `json:"number"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
}

// Stores hands out per-owner stores backed by the same KeyValue.
type Stores struct {
	kv     repository.KeyValue
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Stores over kv.
func New(kv repository.KeyValue, logger *slog.Logger) *Stores {
	return &Stores{
		kv:     kv,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// ForOwner returns the store of one owner.
func (s *Stores) ForOwner(owner string) repository.PlaceStore {
	key := KeyPrefix + ":" + owner
	return &Store{parent: s, key: key, lock: s.lockFor(key)}
}

func (s *Stores) lockFor(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// Store is the PlaceStore of a single owner.
type Store struct {
	parent *Stores
	key    string
	lock   *sync.Mutex
}

// Create appends a new record.
func (s *Store) Create(ctx context.Context, draft model.PlaceDraft) (*model.Place, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rec := record{
		ID:      xid.New().String(),
		Date:    now.Format(time.RFC3339Nano),
		Color:   string(draft.Color),
		Section: draft.Section,
		Number:  draft.Number,
	}
	if c := draft.Coordinate; c != nil {
		lat, lng := c.Lat, c.Lng
		rec.Lat, rec.Lng = &lat, &lng
	}
	records = append(records, rec)

	if err := s.save(ctx, records); err != nil {
		return nil, err
	}

	place := rec.toPlace(len(records))
	return &place, nil
}

// List returns the owner's places, newest first.
func (s *Store) List(ctx context.Context) ([]model.Place, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	places := make([]model.Place, 0, len(records))
	for i, rec := range records {
		places = append(places, rec.toPlace(i+1))
	}
	model.SortNewestFirst(places)
	return places, nil
}

// Delete removes the record with the given id. An unknown id is a no-op and
// leaves the stored array untouched.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return err
	}

	kept := records[:0]
	for _, rec := range records {
		if rec.ID != id {
			kept = append(kept, rec)
		}
	}
	if len(kept) == len(records) {
		s.parent.logger.Debug("place not found for deletion", slog.String("id", id))
		return nil
	}

	return s.save(ctx, kept)
}

// load reads and decodes the array.
//
// Malformed JSON is not an error for the caller: it is logged as
// ErrCorruptState, the key is removed and the list is treated as empty, so
// one bad write can't brick the user's list forever.
func (s *Store) load(ctx context.Context) ([]record, error) {
	raw, ok, err := s.parent.kv.GetItem(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("local: reading %s: %w", s.key, err)
	}
	if !ok || raw == "" || raw == "null" {
		return nil, nil
	}

	var records []record
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		s.parent.logger.Warn("discarding corrupt saved places",
			slog.String("key", s.key),
			slog.String("error", fmt.Errorf("%w: %v", apperror.ErrCorruptState, err).Error()),
		)
		if rmErr := s.parent.kv.RemoveItem(ctx, s.key); rmErr != nil {
			return nil, fmt.Errorf("local: removing corrupt %s: %w", s.key, rmErr)
		}
		return nil, nil
	}
	return records, nil
}

func (s *Store) save(ctx context.Context, records []record) error {
	if records == nil {
		records = []record{}
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("local: encoding places: %w", err)
	}
	if err := s.parent.kv.SetItem(ctx, s.key, string(raw)); err != nil {
		return fmt.Errorf("local: writing %s: %w", s.key, err)
	}
	return nil
}

// toPlace converts a record; seq is its 1-based position in the array.
// An unparseable date yields a zero CreatedAt, which renders as "Invalid date".
// A half-present or out-of-range coordinate is dropped.
func (r record) toPlace(seq int) model.Place {
	p := model.Place{
		ID:      r.ID,
		Color:   model.Color(r.Color),
		Section: r.Section,
		Number:  r.Number,
		Seq:     int64(seq),
	}
	if t, err := time.Parse(time.RFC3339Nano, r.Date); err == nil {
		p.CreatedAt = t
	}
	if c, err := model.CoordinateFrom(r.Lat, r.Lng); err == nil {
		p.Coordinate = c
	}
	return p
}
