package model

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(f float64) *float64 { return &f }

func TestCoordinateValidate(t *testing.T) {
	tests := []struct {
		name    string
		c       Coordinate
		wantErr bool
	}{
		{"porto", Coordinate{Lat: 41.14961, Lng: -8.61099}, false},
		{"north pole", Coordinate{Lat: 90, Lng: 0}, false},
		{"south pole", Coordinate{Lat: -90, Lng: 0}, false},
		{"antimeridian west edge", Coordinate{Lat: 0, Lng: -180}, false},
		{"antimeridian east edge is excluded", Coordinate{Lat: 0, Lng: 180}, true},
		{"latitude too high", Coordinate{Lat: 90.0001, Lng: 0}, true},
		{"latitude too low", Coordinate{Lat: -91, Lng: 0}, true},
		{"NaN latitude", Coordinate{Lat: math.NaN(), Lng: 0}, true},
		{"infinite longitude", Coordinate{Lat: 0, Lng: math.Inf(1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCoordinate)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCoordinateFrom(t *testing.T) {
	t.Run("both absent", func(t *testing.T) {
		c, err := CoordinateFrom(nil, nil)
		require.NoError(t, err)
		assert.Nil(t, c)
	})

	t.Run("latitude only is normalised to absent", func(t *testing.T) {
		c, err := CoordinateFrom(ptr(41.15), nil)
		require.NoError(t, err)
		assert.Nil(t, c)
	})

	t.Run("longitude only is normalised to absent", func(t *testing.T) {
		c, err := CoordinateFrom(nil, ptr(-8.6))
		require.NoError(t, err)
		assert.Nil(t, c)
	})

	t.Run("both present", func(t *testing.T) {
		c, err := CoordinateFrom(ptr(41.15), ptr(-8.6))
		require.NoError(t, err)
		require.NotNil(t, c)
		assert.Equal(t, Coordinate{Lat: 41.15, Lng: -8.6}, *c)
	})

	t.Run("present but invalid", func(t *testing.T) {
		c, err := CoordinateFrom(ptr(123), ptr(0))
		assert.Nil(t, c)
		assert.True(t, errors.Is(err, ErrInvalidCoordinate))
	})
}

func TestSortNewestFirst(t *testing.T) {
	t1 := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)
	t3 := t2.Add(time.Minute)

	places := []Place{
		{ID: "a", CreatedAt: t1, Seq: 1},
		{ID: "b", CreatedAt: t2, Seq: 2},
		{ID: "c", CreatedAt: t3, Seq: 3},
		{ID: "d", CreatedAt: t2, Seq: 4}, // same instant as b
	}

	SortNewestFirst(places)

	var ids []string
	for _, p := range places {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"c", "b", "d", "a"}, ids)
}

func TestHasLocation(t *testing.T) {
	assert.False(t, Place{}.HasLocation())
	assert.True(t, Place{Coordinate: &Coordinate{Lat: 1, Lng: 2}}.HasLocation())
	assert.False(t, Place{Coordinate: &Coordinate{Lat: 100, Lng: 2}}.HasLocation())
}
