// Package mapview holds the server-side state of the two maps a session shows:
// the input map the user picks a location on, and the display map with one
// marker per saved place.
//
// The browser renders these with Leaflet; this package decides WHAT it shows.
// Canvases keep their state in-process and expose a JSON snapshot the
// front-end polls after every change.
package mapview

import (
	"errors"
	"sync"

	"github.com/sakif/park-places/internal/model"
)

// Defaults carried over from the original map setup.
var (
	DefaultCenter = model.Coordinate{Lat: 41.14961, Lng: -8.61099}
)

const (
	DefaultInputZoom   = 13
	DefaultDisplayZoom = 7
	LocatedZoom        = 16
	BoundsPadding      = 0.2

	Placeholder = "No locations with coordinates to display on the map."
)

// ErrNotAttached is returned by operations that need a mounted widget.
var ErrNotAttached = errors.New("mapview: widget not attached")

// Marker is one pin on the display map.
type Marker struct {
	ID         string           `json:"id"`
	Coordinate model.Coordinate `json:"coordinate"`
	Popup      string           `json:"popup"`
	Color      string           `json:"color"`
}

// Bounds is a lat/lng rectangle.
type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// InputMap is the widget a location is picked on.
type InputMap interface {
	Attach(mountID string, center model.Coordinate, zoom int) error
	// OnPick registers the callback fired when the user clicks or drags the marker.
	OnPick(fn func(model.Coordinate))
	// Pick delivers a user click or marker drag at c: the marker moves there
	// and the OnPick callback fires.
	Pick(c model.Coordinate) error
	SetMarker(c model.Coordinate) error
	ClearMarker()
	SetView(center model.Coordinate, zoom int) error
	Detach()
}

// DisplayMap is the widget that shows saved places.
type DisplayMap interface {
	Attach(mountID string) error
	// Display replaces every marker. An empty slice shows the placeholder.
	Display(markers []Marker)
	Detach()
}

// widget is anything Mounts can evict.
type widget interface {
	Detach()
}

// Mounts guarantees at most one live widget per mount id. Claiming a mount
// detaches whatever held it before, so re-opening a view never stacks two
// maps in the same container.
type Mounts struct {
	mu     sync.Mutex
	owners map[string]widget
}

// NewMounts creates an empty registry.
func NewMounts() *Mounts {
	return &Mounts{owners: make(map[string]widget)}
}

// Claim makes w the owner of mountID, detaching the previous owner if any.
func (m *Mounts) Claim(mountID string, w widget) {
	m.mu.Lock()
	prev := m.owners[mountID]
	m.owners[mountID] = w
	m.mu.Unlock()

	if prev != nil && prev != w {
		prev.Detach()
	}
}

// Release frees mountID if w still owns it.
func (m *Mounts) Release(mountID string, w widget) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owners[mountID] == w {
		delete(m.owners, mountID)
	}
}

// Owner reports whether mountID is currently claimed.
func (m *Mounts) Owner(mountID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.owners[mountID]
	return ok
}

// Pad grows b by ratio of its height and width on every side, like
// Leaflet's LatLngBounds.pad.
func (b Bounds) Pad(ratio float64) Bounds {
	h := (b.North - b.South) * ratio
	w := (b.East - b.West) * ratio
	return Bounds{
		South: b.South - h,
		West:  b.West - w,
		North: b.North + h,
		East:  b.East + w,
	}
}

// BoundsOf returns the smallest rectangle holding every marker.
// ok is false for an empty slice.
func BoundsOf(markers []Marker) (b Bounds, ok bool) {
	for i, m := range markers {
		c := m.Coordinate
		if i == 0 {
			b = Bounds{South: c.Lat, West: c.Lng, North: c.Lat, East: c.Lng}
			continue
		}
		b.South = min(b.South, c.Lat)
		b.North = max(b.North, c.Lat)
		b.West = min(b.West, c.Lng)
		b.East = max(b.East, c.Lng)
	}
	return b, len(markers) > 0
}
