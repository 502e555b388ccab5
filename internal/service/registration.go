package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/sakif/park-places/internal/apperror"
	"github.com/sakif/park-places/internal/auth"
	"github.com/sakif/park-places/internal/geo"
	"github.com/sakif/park-places/internal/mapview"
	"github.com/sakif/park-places/internal/model"
	"github.com/sakif/park-places/internal/repository"
)

// Form is the registration form as the user filled it in.
type Form struct {
	Color   string `json:"color"`
	Section string `json:"section"`
	Number  string `json:"number"`
}

// blankForm is the form after a successful save: colour back on the placeholder.
var blankForm = Form{Color: string(model.ColorUnselected)}

// RegistrationState is what the client needs to redraw the form.
type RegistrationState struct {
	Form       Form              `json:"form"`
	Draft      *model.Coordinate `json:"draft"`
	InputOpen  bool              `json:"inputOpen"`
	Submitting bool              `json:"submitting"`
}

// GeoResult is the outcome of a successful Geolocate. Applied is false when
// the input map was closed, in which case only the coordinate is reported.
type GeoResult struct {
	Coordinate model.Coordinate `json:"coordinate"`
	Applied    bool             `json:"applied"`
}

// RegistrationFlow drives the "register a place" view of one session.
//
// It owns the form, the draft coordinate (the location picked on the input
// map, if any) and the input map itself. Register is guarded so a double
// submit can't create two places.
type RegistrationFlow struct {
	store    repository.PlaceStore
	gate     auth.Gate
	input    mapview.InputMap
	capturer *geo.Capturer
	logger   *slog.Logger

	mu       sync.Mutex
	form     Form
	draft    *model.Coordinate
	attached bool
	inFlight bool
}

// NewRegistrationFlow wires a flow to its collaborators.
func NewRegistrationFlow(
	store repository.PlaceStore,
	gate auth.Gate,
	input mapview.InputMap,
	capturer *geo.Capturer,
	logger *slog.Logger,
) *RegistrationFlow {
	f := &RegistrationFlow{
		store:    store,
		gate:     gate,
		input:    input,
		capturer: capturer,
		logger:   logger,
		form:     blankForm,
	}
	input.OnPick(f.setDraft)
	return f
}

// Register validates the form and saves the place.
//
// Order of checks: auth gate, in-flight guard, validation, then the store.
// On any failure the form and draft are left as they were, so the user can
// fix and resubmit. On success the form is reset, the draft is cleared and the
// input marker removed, all before Register returns.
func (f *RegistrationFlow) Register(ctx context.Context, form Form) (*model.Place, error) {
	if !f.gate.IsAuthenticated(ctx) {
		return nil, apperror.Unauthorized()
	}

	f.mu.Lock()
	if f.inFlight {
		f.mu.Unlock()
		return nil, apperror.Busy("place registration")
	}
	f.inFlight = true
	f.form = form
	var coord *model.Coordinate
	if f.draft != nil {
		c := *f.draft
		coord = &c
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight = false
		f.mu.Unlock()
	}()

	draft, err := ValidatePlace(form.Color, form.Section, form.Number)
	if err != nil {
		return nil, err
	}
	draft.Coordinate = coord

	place, err := f.store.Create(ctx, draft)
	if err != nil {
		f.logger.Error("saving place failed", slog.String("error", err.Error()))
		return nil, apperror.StoreFailed(err)
	}

	f.mu.Lock()
	f.form = blankForm
	f.draft = nil
	f.mu.Unlock()
	f.input.ClearMarker()

	f.logger.Info("place registered",
		slog.String("id", place.ID),
		slog.Bool("hasLocation", place.Coordinate != nil),
	)
	return place, nil
}

// State returns a snapshot of the form.
func (f *RegistrationFlow) State() RegistrationState {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := RegistrationState{
		Form:       f.form,
		InputOpen:  f.attached,
		Submitting: f.inFlight,
	}
	if f.draft != nil {
		c := *f.draft
		s.Draft = &c
	}
	return s
}

// AttachInput opens the input map in mountID with no location selected.
// A map already open is torn down first.
func (f *RegistrationFlow) AttachInput(mountID string) error {
	f.input.Detach()
	f.clearDraft()

	if err := f.input.Attach(mountID, mapview.DefaultCenter, mapview.DefaultInputZoom); err != nil {
		return err
	}
	f.mu.Lock()
	f.attached = true
	f.mu.Unlock()
	return nil
}

// DetachInput closes the input map. The picked location goes with it.
func (f *RegistrationFlow) DetachInput() {
	f.input.Detach()
	f.mu.Lock()
	f.attached = false
	f.draft = nil
	f.mu.Unlock()
}

// Pick is a click or drag on the input map. A partial coordinate clears the
// selection; an invalid one is a validation error and changes nothing.
func (f *RegistrationFlow) Pick(lat, lng *float64) (*model.Coordinate, error) {
	c, err := model.CoordinateFrom(lat, lng)
	if err != nil {
		return nil, apperror.ValidationFailed("coordinate", err.Error())
	}
	if c == nil {
		f.ClearDraft()
		return nil, nil
	}

	// OnPick (setDraft) runs from inside Pick, so no lock may be held here.
	if err := f.input.Pick(*c); err != nil {
		if errors.Is(err, mapview.ErrNotAttached) {
			return nil, &apperror.AppError{Err: apperror.ErrConflict, Message: "the input map is not open"}
		}
		return nil, err
	}
	return c, nil
}

// ClearDraft drops the selected location and its marker.
func (f *RegistrationFlow) ClearDraft() {
	f.clearDraft()
	f.input.ClearMarker()
}

// Geolocate captures the current position. When the input map is open the
// map is centred on it, the marker moved there and the draft set.
func (f *RegistrationFlow) Geolocate(ctx context.Context, req geo.Request) (*GeoResult, error) {
	res := &GeoResult{}
	coord, err := f.capturer.Capture(ctx, req, func(c model.Coordinate) {
		f.mu.Lock()
		attached := f.attached
		f.mu.Unlock()
		if !attached {
			return
		}
		if err := f.input.SetView(c, mapview.LocatedZoom); err != nil {
			return
		}
		if err := f.input.SetMarker(c); err != nil {
			return
		}
		f.setDraft(c)
		res.Applied = true
	})
	if err != nil {
		return nil, err
	}
	res.Coordinate = coord
	return res, nil
}

func (f *RegistrationFlow) setDraft(c model.Coordinate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft = &c
}

func (f *RegistrationFlow) clearDraft() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft = nil
}
