package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/park-places/internal/apperror"
	"github.com/sakif/park-places/internal/auth"
	"github.com/sakif/park-places/internal/mapview"
	"github.com/sakif/park-places/internal/model"
	"github.com/sakif/park-places/internal/palette"
	"github.com/sakif/park-places/internal/repository"
)

// DateLayout is how a place's creation time is shown.
const DateLayout = "Jan 2, 2006, 3:04 PM"

// DeletePrompt is the question a Confirmer is asked before a delete.
const DeletePrompt = "Are you sure you want to delete this parking place entry?"

// Row is one rendered place.
type Row struct {
	ID           string               `json:"id"`
	When         string               `json:"when"`
	Color        string               `json:"color"`
	Presentation palette.Presentation `json:"presentation"`
	Section      string               `json:"section"`
	Number       string               `json:"number"`
	HasLocation  bool                 `json:"hasLocation"`
}

// RenderedList is the listing view: rows newest first, plus a marker for
// every row that has a location.
type RenderedList struct {
	Generation uint64           `json:"generation"`
	Count      int              `json:"count"`
	Rows       []Row            `json:"rows"`
	Markers    []mapview.Marker `json:"markers"`
	Error      string           `json:"error,omitempty"`
}

// Confirmer asks the user to approve a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// Confirmed is a Confirmer with a fixed answer, e.g. from ?confirm=true.
type Confirmed bool

func (c Confirmed) Confirm(context.Context, string) bool { return bool(c) }

// ListingFlow drives the "saved places" view of one session.
//
// LAST WRITE WINS:
// Every Refresh takes a generation number before reading the store. A render
// is only published (and only drives the display map) if its generation is
// newer than the one on screen. A slow refresh that started before a delete
// can therefore never overwrite the list the delete's own refresh produced.
type ListingFlow struct {
	store   repository.PlaceStore
	gate    auth.Gate
	display mapview.DisplayMap
	loc     *time.Location
	logger  *slog.Logger

	mu        sync.Mutex
	issued    uint64
	published uint64
	last      *RenderedList
}

// NewListingFlow wires a flow. A nil loc means UTC.
func NewListingFlow(
	store repository.PlaceStore,
	gate auth.Gate,
	display mapview.DisplayMap,
	loc *time.Location,
	logger *slog.Logger,
) *ListingFlow {
	if loc == nil {
		loc = time.UTC
	}
	return &ListingFlow{
		store:   store,
		gate:    gate,
		display: display,
		loc:     loc,
		logger:  logger,
		last:    &RenderedList{Rows: []Row{}, Markers: []mapview.Marker{}},
	}
}

// Refresh reloads the list from the store and redraws the display map.
//
// On a store failure the map is still redrawn (empty) and ListFailed is
// returned, unless a newer refresh has already been published: a stale
// render, empty or not, never reaches the display map. The RenderedList returned on success is the newest published one,
// which may belong to a later concurrent refresh.
func (f *ListingFlow) Refresh(ctx context.Context) (*RenderedList, error) {
	if !f.gate.IsAuthenticated(ctx) {
		return nil, apperror.Unauthorized()
	}

	f.mu.Lock()
	f.issued++
	gen := f.issued
	f.mu.Unlock()

	places, err := f.store.List(ctx)
	if err != nil {
		f.logger.Error("loading places failed", slog.String("error", err.Error()))
		f.publish(&RenderedList{
			Generation: gen,
			Rows:       []Row{},
			Markers:    []mapview.Marker{},
			Error:      "Error loading saved data.",
		})
		return nil, apperror.ListFailed(err)
	}

	return f.publish(f.render(gen, places)), nil
}

// Delete removes a place after confirmation, then refreshes.
//
// Without confirmation nothing is touched. A store failure leaves the
// current render as it is. An id the store no longer has counts as deleted.
func (f *ListingFlow) Delete(ctx context.Context, id string, confirm Confirmer) (*RenderedList, error) {
	if !f.gate.IsAuthenticated(ctx) {
		return nil, apperror.Unauthorized()
	}
	if confirm == nil || !confirm.Confirm(ctx, DeletePrompt) {
		return nil, apperror.ConfirmationRequired(DeletePrompt)
	}

	if err := f.store.Delete(ctx, id); err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			f.logger.Error("deleting place failed",
				slog.String("id", id),
				slog.String("error", err.Error()),
			)
			return nil, apperror.DeleteFailed(err)
		}
		f.logger.Debug("place already gone", slog.String("id", id))
	} else {
		f.logger.Info("place deleted", slog.String("id", id))
	}

	return f.Refresh(ctx)
}

// Last returns the render currently on screen.
func (f *ListingFlow) Last() *RenderedList {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

// publish installs r if it is newer than what is shown and returns whatever
// is shown afterwards.
func (f *ListingFlow) publish(r *RenderedList) *RenderedList {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Generation <= f.published {
		f.logger.Debug("dropping stale render",
			slog.Uint64("generation", r.Generation),
			slog.Uint64("published", f.published),
		)
		return f.last
	}
	f.published = r.Generation
	f.last = r
	// Under the lock so displays happen in generation order.
	f.display.Display(r.Markers)
	return r
}

func (f *ListingFlow) render(gen uint64, places []model.Place) *RenderedList {
	r := &RenderedList{
		Generation: gen,
		Count:      len(places),
		Rows:       make([]Row, 0, len(places)),
		Markers:    make([]mapview.Marker, 0),
	}
	for _, p := range places {
		pres := palette.Present(string(p.Color))
		r.Rows = append(r.Rows, Row{
			ID:           p.ID,
			When:         FormatWhen(p.CreatedAt, f.loc),
			Color:        string(p.Color),
			Presentation: pres,
			Section:      p.Section,
			Number:       p.Number,
			HasLocation:  p.HasLocation(),
		})
		if p.HasLocation() {
			r.Markers = append(r.Markers, mapview.Marker{
				ID:         p.ID,
				Coordinate: *p.Coordinate,
				Popup:      popup(p),
				Color:      pres.Background,
			})
		}
	}
	return r
}

// FormatWhen renders a creation time, or "Invalid date" for a zero time.
func FormatWhen(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "Invalid date"
	}
	return t.In(loc).Format(DateLayout)
}

func popup(p model.Place) string {
	return fmt.Sprintf("Color: %s\nSec: %s, No: %s", orNA(string(p.Color)), orNA(p.Section), orNA(p.Number))
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
