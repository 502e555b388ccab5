package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/sakif/park-places/internal/apperror"
	"github.com/sakif/park-places/internal/auth"
	"github.com/sakif/park-places/internal/model"
	"github.com/sakif/park-places/internal/repository"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

var _ repository.PlaceStore = (*fakePlaceStore)(nil)

// baseTime is the CreatedAt of the first place a fakePlaceStore creates.
// Later places are one minute apart.
var baseTime = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

// fakePlaceStore is an in-memory PlaceStore with knobs for failures and
// for holding calls open.
type fakePlaceStore struct {
	mu     sync.Mutex
	places []model.Place
	seq    int64

	createErr error
	listErr   error
	deleteErr error

	createCalls int
	listCalls   int
	deleteCalls int

	// When createHold is set, Create signals createEntered and then waits
	// on createHold before doing anything.
	createEntered chan struct{}
	createHold    chan struct{}

	// listHook runs at the start of every List with the 1-based call number.
	listHook func(call int)
}

func newFakePlaceStore() *fakePlaceStore {
	return &fakePlaceStore{}
}

func (f *fakePlaceStore) Create(ctx context.Context, draft model.PlaceDraft) (*model.Place, error) {
	if f.createHold != nil {
		f.createEntered <- struct{}{}
		<-f.createHold
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}

	f.seq++
	p := model.Place{
		ID:        fmt.Sprintf("p%d", f.seq),
		CreatedAt: baseTime.Add(time.Duration(f.seq-1) * time.Minute),
		Color:     draft.Color,
		Section:   draft.Section,
		Number:    draft.Number,
		Seq:       f.seq,
	}
	if draft.Coordinate != nil {
		c := *draft.Coordinate
		p.Coordinate = &c
	}
	f.places = append(f.places, p)
	return &p, nil
}

func (f *fakePlaceStore) List(ctx context.Context) ([]model.Place, error) {
	f.mu.Lock()
	f.listCalls++
	call := f.listCalls
	hook := f.listHook
	f.mu.Unlock()

	if hook != nil {
		hook(call)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]model.Place, len(f.places))
	copy(out, f.places)
	model.SortNewestFirst(out)
	return out, nil
}

func (f *fakePlaceStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for i, p := range f.places {
		if p.ID == id {
			f.places = append(f.places[:i], f.places[i+1:]...)
			return nil
		}
	}
	return apperror.NotFound("place", id)
}

// add inserts a ready-made place, bypassing Create.
func (f *fakePlaceStore) add(p model.Place) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.places = append(f.places, p)
}

func (f *fakePlaceStore) calls() (create, list, del int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createCalls, f.listCalls, f.deleteCalls
}

// fakeStores hands out one fakePlaceStore per owner.
type fakeStores struct {
	mu     sync.Mutex
	stores map[string]*fakePlaceStore
}

func (s *fakeStores) ForOwner(owner string) repository.PlaceStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stores == nil {
		s.stores = make(map[string]*fakePlaceStore)
	}
	st, ok := s.stores[owner]
	if !ok {
		st = newFakePlaceStore()
		s.stores[owner] = st
	}
	return st
}

var (
	allowAll = auth.GateFunc(func(context.Context) bool { return true })
	denyAll  = auth.GateFunc(func(context.Context) bool { return false })
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func fp(f float64) *float64 { return &f }
