package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/park-places/internal/auth"
	"github.com/sakif/park-places/internal/geo"
)

func newTestSessions(stores *fakeStores) *Sessions {
	return NewSessions(SessionsConfig{
		Stores:  stores,
		Locator: geo.ReportedLocator{},
	}, newTestLogger())
}

func TestSessions_OnePerUser(t *testing.T) {
	s := newTestSessions(&fakeStores{})

	a1, err := s.For("alice")
	require.NoError(t, err)
	a2, err := s.For("alice")
	require.NoError(t, err)
	b, err := s.For("bob")
	require.NoError(t, err)

	assert.Same(t, a1, a2)
	assert.NotSame(t, a1, b)
	assert.Equal(t, 2, s.Len())
}

func TestSessions_DisplayIsMounted(t *testing.T) {
	s := newTestSessions(&fakeStores{})

	sess, err := s.For("alice")
	require.NoError(t, err)

	snap := sess.Display.Snapshot()
	assert.True(t, snap.Attached)
	assert.Equal(t, DisplayMount, snap.MountID)
	assert.False(t, sess.Input.Attached(), "the input map opens on demand")
}

func TestSessions_UsersDoNotSeeEachOthersPlaces(t *testing.T) {
	stores := &fakeStores{}
	s := newTestSessions(stores)

	alice, err := s.For("alice")
	require.NoError(t, err)
	bob, err := s.For("bob")
	require.NoError(t, err)

	// The default gate reads the user id RequireAuth puts in the context.
	aliceCtx := auth.WithUserID(context.Background(), "alice")
	bobCtx := auth.WithUserID(context.Background(), "bob")

	_, err = alice.Registration.Register(aliceCtx, validForm)
	require.NoError(t, err)

	aliceList, err := alice.Listing.Refresh(aliceCtx)
	require.NoError(t, err)
	bobList, err := bob.Listing.Refresh(bobCtx)
	require.NoError(t, err)

	assert.Equal(t, 1, aliceList.Count)
	assert.Zero(t, bobList.Count)
}

func TestSessions_DefaultGateRejectsAnonymous(t *testing.T) {
	s := newTestSessions(&fakeStores{})
	sess, err := s.For("alice")
	require.NoError(t, err)

	_, err = sess.Listing.Refresh(context.Background())

	assert.Error(t, err)
}

func TestSessions_End(t *testing.T) {
	s := newTestSessions(&fakeStores{})

	sess, err := s.For("alice")
	require.NoError(t, err)
	require.NoError(t, sess.Registration.AttachInput(InputMount))
	lat, lng := 41.15, -8.61
	_, err = sess.Registration.Pick(&lat, &lng)
	require.NoError(t, err)
	require.NotNil(t, sess.Registration.State().Draft)

	s.End("alice")

	state := sess.Registration.State()
	assert.Nil(t, state.Draft)
	assert.False(t, state.InputOpen)
	assert.False(t, sess.Input.Attached())
	assert.False(t, sess.Display.Snapshot().Attached)
	assert.Zero(t, s.Len())

	fresh, err := s.For("alice")
	require.NoError(t, err)
	assert.NotSame(t, sess, fresh)
	assert.Nil(t, fresh.Registration.State().Draft)
}

func TestSessions_EndUnknownUser(t *testing.T) {
	s := newTestSessions(&fakeStores{})
	_, err := s.For("alice")
	require.NoError(t, err)

	s.End("bob")

	assert.Equal(t, 1, s.Len())
}
