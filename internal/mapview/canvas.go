package mapview

import (
	"sync"

	"github.com/sakif/park-places/internal/model"
)

var (
	_ InputMap   = (*InputCanvas)(nil)
	_ DisplayMap = (*DisplayCanvas)(nil)
)

// InputSnapshot is what the front-end draws for the input map.
type InputSnapshot struct {
	Attached bool              `json:"attached"`
	MountID  string            `json:"mountId,omitempty"`
	Center   model.Coordinate  `json:"center"`
	Zoom     int               `json:"zoom"`
	Marker   *model.Coordinate `json:"marker"`
}

// InputCanvas is an in-process InputMap.
type InputCanvas struct {
	mounts *Mounts

	mu       sync.Mutex
	attached bool
	mountID  string
	center   model.Coordinate
	zoom     int
	marker   *model.Coordinate
	onPick   func(model.Coordinate)
}

// NewInputCanvas creates a detached input canvas.
func NewInputCanvas(mounts *Mounts) *InputCanvas {
	return &InputCanvas{mounts: mounts}
}

func (c *InputCanvas) Attach(mountID string, center model.Coordinate, zoom int) error {
	if err := center.Validate(); err != nil {
		return err
	}
	// Re-attaching starts from a fresh widget.
	c.Detach()
	// Claim outside our own lock: it may Detach a previous owner.
	c.mounts.Claim(mountID, c)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.attached = true
	c.mountID = mountID
	c.center = center
	c.zoom = zoom
	c.marker = nil
	return nil
}

func (c *InputCanvas) OnPick(fn func(model.Coordinate)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPick = fn
}

func (c *InputCanvas) SetMarker(coord model.Coordinate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.attached {
		return ErrNotAttached
	}
	c.marker = &coord
	return nil
}

func (c *InputCanvas) ClearMarker() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.marker = nil
}

func (c *InputCanvas) SetView(center model.Coordinate, zoom int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.attached {
		return ErrNotAttached
	}
	c.center = center
	c.zoom = zoom
	return nil
}

// Pick simulates a click (or marker drag end) at coord: the marker moves
// there and the OnPick callback fires.
func (c *InputCanvas) Pick(coord model.Coordinate) error {
	c.mu.Lock()
	if !c.attached {
		c.mu.Unlock()
		return ErrNotAttached
	}
	c.marker = &coord
	fn := c.onPick
	c.mu.Unlock()

	if fn != nil {
		fn(coord)
	}
	return nil
}

// Detach tears the widget down. Safe to call when already detached.
func (c *InputCanvas) Detach() {
	c.mu.Lock()
	mountID, was := c.mountID, c.attached
	c.attached = false
	c.mountID = ""
	c.marker = nil
	c.mu.Unlock()

	if was {
		c.mounts.Release(mountID, c)
	}
}

// Attached reports whether the canvas is mounted.
func (c *InputCanvas) Attached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attached
}

// Snapshot returns a copy of the current state.
func (c *InputCanvas) Snapshot() InputSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := InputSnapshot{
		Attached: c.attached,
		MountID:  c.mountID,
		Center:   c.center,
		Zoom:     c.zoom,
	}
	if c.marker != nil {
		m := *c.marker
		s.Marker = &m
	}
	return s
}

// DisplaySnapshot is what the front-end draws for the display map.
type DisplaySnapshot struct {
	Attached    bool             `json:"attached"`
	MountID     string           `json:"mountId,omitempty"`
	Center      model.Coordinate `json:"center"`
	Zoom        int              `json:"zoom"`
	Markers     []Marker         `json:"markers"`
	Bounds      *Bounds          `json:"bounds"`
	Placeholder string           `json:"placeholder,omitempty"`
}

// DisplayCanvas is an in-process DisplayMap.
//
// Display works whether or not the canvas is attached: the latest markers
// are kept and shown as soon as a mount claims it.
type DisplayCanvas struct {
	mounts *Mounts

	mu       sync.Mutex
	attached bool
	mountID  string
	markers  []Marker
	renders  int
}

// NewDisplayCanvas creates a detached display canvas.
func NewDisplayCanvas(mounts *Mounts) *DisplayCanvas {
	return &DisplayCanvas{mounts: mounts}
}

func (c *DisplayCanvas) Attach(mountID string) error {
	c.Detach()
	c.mounts.Claim(mountID, c)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.attached = true
	c.mountID = mountID
	return nil
}

func (c *DisplayCanvas) Display(markers []Marker) {
	cp := make([]Marker, len(markers))
	copy(cp, markers)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.markers = cp
	c.renders++
}

func (c *DisplayCanvas) Detach() {
	c.mu.Lock()
	mountID, was := c.mountID, c.attached
	c.attached = false
	c.mountID = ""
	c.mu.Unlock()

	if was {
		c.mounts.Release(mountID, c)
	}
}

// Renders counts Display calls.
func (c *DisplayCanvas) Renders() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renders
}

// Snapshot returns the view the front-end should draw: the padded bounds of
// every marker, or the default view plus the placeholder when there are none.
func (c *DisplayCanvas) Snapshot() DisplaySnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := DisplaySnapshot{
		Attached: c.attached,
		MountID:  c.mountID,
		Center:   DefaultCenter,
		Zoom:     DefaultDisplayZoom,
		Markers:  make([]Marker, len(c.markers)),
	}
	copy(s.Markers, c.markers)

	if b, ok := BoundsOf(c.markers); ok {
		padded := b.Pad(BoundsPadding)
		s.Bounds = &padded
		s.Center = model.Coordinate{
			Lat: (padded.South + padded.North) / 2,
			Lng: (padded.West + padded.East) / 2,
		}
	} else {
		s.Placeholder = Placeholder
	}
	return s
}
