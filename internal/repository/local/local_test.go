package local

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/park-places/internal/model"
	"github.com/sakif/park-places/internal/repository/sqlite"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// memKV is an in-memory repository.KeyValue.
type memKV struct {
	mu     sync.Mutex
	items  map[string]string
	getErr error
	writes int
}

func newMemKV() *memKV { return &memKV{items: make(map[string]string)} }

func (m *memKV) GetItem(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *memKV) SetItem(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	m.writes++
	return nil
}

func (m *memKV) RemoveItem(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func newTestStores(kv *memKV) *Stores {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(kv, logger)
}

func draft(section string, c *model.Coordinate) model.PlaceDraft {
	return model.PlaceDraft{Color: model.ColorYellow, Section: section, Number: "7", Coordinate: c}
}

// =========================================================================
// CREATE / LIST TESTS
// =========================================================================

func TestCreateAndList(t *testing.T) {
	kv := newMemKV()
	store := newTestStores(kv).ForOwner("u1")
	ctx := context.Background()

	a, err := store.Create(ctx, draft("A", &model.Coordinate{Lat: 41.1, Lng: -8.6}))
	require.NoError(t, err)
	b, err := store.Create(ctx, draft("B", nil))
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Contains(t, kv.items, "savedParkingPlaces:u1")

	places, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, places, 2)

	byID := map[string]model.Place{places[0].ID: places[0], places[1].ID: places[1]}
	assert.Nil(t, byID[b.ID].Coordinate)
	require.NotNil(t, byID[a.ID].Coordinate)
	assert.Equal(t, 41.1, byID[a.ID].Coordinate.Lat)
}

func TestList_NewestFirst(t *testing.T) {
	kv := newMemKV()
	kv.items["savedParkingPlaces:u1"] = `[
		{"id":"p1","date":"2025-05-01T10:00:00Z","color":"Red","section":"A","number":"1","lat":null,"lng":null},
		{"id":"p2","date":"2025-05-03T10:00:00Z","color":"Red","section":"A","number":"2","lat":null,"lng":null},
		{"id":"p3","date":"2025-05-02T10:00:00Z","color":"Red","section":"A","number":"3","lat":null,"lng":null},
		{"id":"p4","date":"2025-05-03T10:00:00Z","color":"Red","section":"A","number":"4","lat":null,"lng":null}
	]`
	store := newTestStores(kv).ForOwner("u1")

	places, err := store.List(context.Background())
	require.NoError(t, err)

	var ids []string
	for _, p := range places {
		ids = append(ids, p.ID)
	}
	// p2 and p4 share a timestamp; insertion order breaks the tie.
	assert.Equal(t, []string{"p2", "p4", "p3", "p1"}, ids)
}

func TestList_EmptyWhenKeyMissing(t *testing.T) {
	store := newTestStores(newMemKV()).ForOwner("u1")

	places, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, places)
}

func TestList_RecordWithoutLocationStoresNulls(t *testing.T) {
	kv := newMemKV()
	store := newTestStores(kv).ForOwner("u1")

	_, err := store.Create(context.Background(), draft("A", nil))
	require.NoError(t, err)

	assert.Contains(t, kv.items["savedParkingPlaces:u1"], `"lat":null`)
	assert.Contains(t, kv.items["savedParkingPlaces:u1"], `"lng":null`)
}

func TestList_ToleratesBadRecords(t *testing.T) {
	kv := newMemKV()
	kv.items["savedParkingPlaces:u1"] = `[
		{"id":"old","date":"2024-01-01T00:00:00Z","color":"Red","section":"A","number":"1","lat":41,"lng":null},
		{"id":"bad-date","date":"yesterday","color":"Blue","section":"B","number":"2","lat":null,"lng":null}
	]`
	store := newTestStores(kv).ForOwner("u1")

	places, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, places, 2)

	assert.Equal(t, "old", places[0].ID)
	assert.Nil(t, places[0].Coordinate, "half coordinate is dropped")
	assert.Equal(t, "bad-date", places[1].ID)
	assert.True(t, places[1].CreatedAt.IsZero())
}

func TestList_CorruptStateSelfHeals(t *testing.T) {
	kv := newMemKV()
	kv.items["savedParkingPlaces:u1"] = `{not json`
	store := newTestStores(kv).ForOwner("u1")

	places, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, places)
	assert.NotContains(t, kv.items, "savedParkingPlaces:u1", "corrupt key removed")

	_, err = store.Create(context.Background(), draft("A", nil))
	require.NoError(t, err)
	places, err = store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, places, 1)
}

func TestList_BackendFailure(t *testing.T) {
	kv := newMemKV()
	kv.getErr = errors.New("disk gone")
	store := newTestStores(kv).ForOwner("u1")

	_, err := store.List(context.Background())
	assert.ErrorIs(t, err, kv.getErr)
}

func TestOwnersAreIsolated(t *testing.T) {
	stores := newTestStores(newMemKV())
	ctx := context.Background()

	_, err := stores.ForOwner("alice").Create(ctx, draft("A", nil))
	require.NoError(t, err)

	places, err := stores.ForOwner("bob").List(ctx)
	require.NoError(t, err)
	assert.Empty(t, places)
}

// =========================================================================
// DELETE TESTS
// =========================================================================

func TestDelete(t *testing.T) {
	store := newTestStores(newMemKV()).ForOwner("u1")
	ctx := context.Background()

	a, _ := store.Create(ctx, draft("A", nil))
	b, _ := store.Create(ctx, draft("B", nil))

	require.NoError(t, store.Delete(ctx, a.ID))

	places, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, b.ID, places[0].ID)
}

func TestDelete_MissingIDIsSilent(t *testing.T) {
	kv := newMemKV()
	store := newTestStores(kv).ForOwner("u1")
	ctx := context.Background()

	_, _ = store.Create(ctx, draft("A", nil))
	writes := kv.writes

	assert.NoError(t, store.Delete(ctx, "does-not-exist"))
	assert.Equal(t, writes, kv.writes, "nothing written back")
}

// =========================================================================
// SQLITE KV INTEGRATION
// =========================================================================

func TestWithSQLiteKeyValue(t *testing.T) {
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	store := New(db, logger).ForOwner("u1")
	ctx := context.Background()

	p, err := store.Create(ctx, draft("A", &model.Coordinate{Lat: 1, Lng: 2}))
	require.NoError(t, err)

	places, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, p.ID, places[0].ID)
	assert.Equal(t, &model.Coordinate{Lat: 1, Lng: 2}, places[0].Coordinate)
}
