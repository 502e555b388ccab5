package redis

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/park-places/internal/model"
)

func newTestStores(t *testing.T) (*Stores, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(client, logger), mr
}

func TestOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()

	client, err := Open(context.Background(), addr, "", 0)
	require.NoError(t, err)
	client.Close()

	// Addr is only valid while the server runs.
	mr.Close()
	_, err = Open(context.Background(), addr, "", 0)
	assert.Error(t, err)
}

func TestCreateAndList(t *testing.T) {
	stores, mr := newTestStores(t)
	store := stores.ForOwner("u1")
	ctx := context.Background()

	a, err := store.Create(ctx, model.PlaceDraft{
		Color: model.ColorGreen, Section: "C", Number: "3",
		Coordinate: &model.Coordinate{Lat: 38.72, Lng: -9.14},
	})
	require.NoError(t, err)
	b, err := store.Create(ctx, model.PlaceDraft{Color: model.ColorRed, Section: "D", Number: "4"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), a.Seq)
	assert.Equal(t, int64(2), b.Seq)
	assert.True(t, mr.Exists("places:u1:doc:"+a.ID))

	places, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, places, 2)

	byID := map[string]model.Place{places[0].ID: places[0], places[1].ID: places[1]}
	require.NotNil(t, byID[a.ID].Coordinate)
	assert.Equal(t, model.Coordinate{Lat: 38.72, Lng: -9.14}, *byID[a.ID].Coordinate)
	assert.Nil(t, byID[b.ID].Coordinate)
	assert.WithinDuration(t, a.CreatedAt, byID[a.ID].CreatedAt, time.Microsecond)
}

func TestList_OrdersByCreatedAtNotScore(t *testing.T) {
	stores, mr := newTestStores(t)
	store := stores.ForOwner("u1")

	// Seq 1 is the newest document; the zset score must not decide order.
	mr.HSet("places:u1:doc:x", "id", "x", "created_at", "2025-06-02T00:00:00Z", "seq", "1", "color", "Red", "section", "A", "number", "1")
	mr.HSet("places:u1:doc:y", "id", "y", "created_at", "2025-06-01T00:00:00Z", "seq", "2", "color", "Red", "section", "A", "number", "2")
	mr.ZAdd("places:u1:index", 1, "x")
	mr.ZAdd("places:u1:index", 2, "y")

	places, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, places, 2)
	assert.Equal(t, "x", places[0].ID)
	assert.Equal(t, "y", places[1].ID)
}

func TestList_SkipsDanglingIndex(t *testing.T) {
	stores, mr := newTestStores(t)
	mr.ZAdd("places:u1:index", 1, "ghost")

	places, err := stores.ForOwner("u1").List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, places)
}

func TestDelete(t *testing.T) {
	stores, mr := newTestStores(t)
	store := stores.ForOwner("u1")
	ctx := context.Background()

	p, err := store.Create(ctx, model.PlaceDraft{Color: model.ColorBlue, Section: "A", Number: "1"})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, p.ID))
	assert.False(t, mr.Exists("places:u1:doc:"+p.ID))

	places, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, places)

	// Unknown ids are accepted silently.
	assert.NoError(t, store.Delete(ctx, "nope"))
}

func TestBackendFailure(t *testing.T) {
	stores, mr := newTestStores(t)
	store := stores.ForOwner("u1")
	mr.SetError("LOADING")

	_, err := store.List(context.Background())
	assert.Error(t, err)
	_, err = store.Create(context.Background(), model.PlaceDraft{Color: model.ColorBlue, Section: "A", Number: "1"})
	assert.Error(t, err)
}

func TestOwnersAreIsolated(t *testing.T) {
	stores, _ := newTestStores(t)
	ctx := context.Background()

	_, err := stores.ForOwner("alice").Create(ctx, model.PlaceDraft{Color: model.ColorBlue, Section: "A", Number: "1"})
	require.NoError(t, err)

	places, err := stores.ForOwner("bob").List(ctx)
	require.NoError(t, err)
	assert.Empty(t, places)
}
