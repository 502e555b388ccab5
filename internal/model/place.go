// Package model defines the data structures used throughout the application.
package model

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// Color is the painted colour label of a parking section.
type Color string

// Known labels. The set is open-ended on input (unknown labels are stored
// as given and presented in grey), but ColorUnselected is never valid.
const (
	ColorUnselected Color = "..."
	ColorYellow     Color = "Yellow"
	ColorRed        Color = "Red"
	ColorGreen      Color = "Green"
	ColorBlue       Color = "Blue"
	ColorOrange     Color = "Orange"
)

// Colors lists the labels offered by the registration form, in display order.
var Colors = []Color{ColorYellow, ColorRed, ColorGreen, ColorBlue, ColorOrange}

// ErrInvalidCoordinate is returned for a coordinate pair that is present
// but not a real position on the globe.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Coordinate is a WGS84 position.
type Coordinate struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Validate requires finite values with lat in [-90, 90] and lng in [-180, 180).
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || math.IsNaN(c.Lng) || math.IsInf(c.Lng, 0) {
		return fmt.Errorf("%w: non-finite value", ErrInvalidCoordinate)
	}
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidCoordinate, c.Lat)
	}
	if c.Lng < -180 || c.Lng >= 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidCoordinate, c.Lng)
	}
	return nil
}

// CoordinateFrom builds an optional coordinate from two optional components.
//
// A coordinate is all-or-nothing: if either component is missing the result
// is "absent" (nil, nil), never a half-filled pair. Both present but invalid
// is an error.
func CoordinateFrom(lat, lng *float64) (*Coordinate, error) {
	if lat == nil || lng == nil {
		return nil, nil
	}
	c := Coordinate{Lat: *lat, Lng: *lng}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Place is a saved parking place.
//
// ID and CreatedAt are assigned by the store on creation and never change.
// Coordinate is nil when no location was picked.
type Place struct {
	ID         string      `json:"id"         yaml:"id"`
	CreatedAt  time.Time   `json:"createdAt"  yaml:"createdAt"`
	Color      Color       `json:"color"      yaml:"color"`
	Section    string      `json:"section"    yaml:"section"`
	Number     string      `json:"number"     yaml:"number"`
	Coordinate *Coordinate `json:"coordinate" yaml:"coordinate,omitempty"`

	// Seq is the store's insertion counter; it only breaks CreatedAt ties.
	Seq int64 `json:"-" yaml:"-"`
}

// HasLocation reports whether the place carries a usable coordinate.
func (p Place) HasLocation() bool {
	return p.Coordinate != nil && p.Coordinate.Validate() == nil
}

// PlaceDraft is a validated place that has not been persisted yet.
type PlaceDraft struct {
	Color      Color
	Section    string
	Number     string
	Coordinate *Coordinate
}

// SortNewestFirst orders places by CreatedAt descending. Places created at
// the same instant keep insertion order (lower Seq first).
func SortNewestFirst(places []Place) {
	sort.SliceStable(places, func(i, j int) bool {
		a, b := places[i], places[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.Seq < b.Seq
	})
}
