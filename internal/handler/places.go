package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/park-places/internal/apperror"
	"github.com/sakif/park-places/internal/auth"
	"github.com/sakif/park-places/internal/metrics"
	"github.com/sakif/park-places/internal/service"
)

// PlacesHandler serves the saved-places list: register, list, delete.
//
// Every route runs behind auth.RequireAuth, so the user id is always in the
// request context. The handler turns it into that user's Session and hands
// the request to the session's flows; it never touches a store itself.
type PlacesHandler struct {
	sessions *service.Sessions
	logger   *slog.Logger
}

func NewPlacesHandler(sessions *service.Sessions, logger *slog.Logger) *PlacesHandler {
	return &PlacesHandler{sessions: sessions, logger: logger}
}

// HandleList renders the current user's places.
//
// HTTP: GET /api/places
func (h *PlacesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	list, err := sess.Listing.Refresh(r.Context())
	if err != nil {
		countStoreFailure(err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleCreate registers a place from the form, with the picked location if any.
//
// HTTP: POST /api/places
// REQUEST BODY: {"color": "Red", "section": "B", "number": "12"}
func (h *PlacesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	var form service.Form
	if err := decodeJSON(w, r, &form); err != nil {
		writeError(w, err)
		return
	}

	place, err := sess.Registration.Register(r.Context(), form)
	if err != nil {
		countStoreFailure(err)
		writeError(w, err)
		return
	}

	located := "false"
	if place.HasLocation() {
		located = "true"
	}
	metrics.PlacesCreatedTotal.WithLabelValues(located).Inc()

	writeJSON(w, http.StatusCreated, place)
}

// HandleDelete removes a place. The caller confirms with ?confirm=true;
// without it the answer is 428 carrying the question to ask the user.
//
// HTTP: DELETE /api/places/{id}?confirm=true
func (h *PlacesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, apperror.ValidationFailed("id", "place id is required"))
		return
	}

	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	confirmed := service.Confirmed(strings.EqualFold(r.URL.Query().Get("confirm"), "true"))
	list, err := sess.Listing.Delete(r.Context(), id, confirmed)
	if err != nil {
		countStoreFailure(err)
		writeError(w, err)
		return
	}

	metrics.PlacesDeletedTotal.Inc()
	h.logger.Info("place delete confirmed", slog.String("id", id))
	writeJSON(w, http.StatusOK, list)
}

// sessionFor resolves the signed-in user's session, writing the error
// response itself when it can't.
func sessionFor(w http.ResponseWriter, r *http.Request, sessions *service.Sessions) (*service.Session, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized())
		return nil, false
	}
	sess, err := sessions.For(userID)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	metrics.SessionsActive.Set(float64(sessions.Len()))
	return sess, true
}

func countStoreFailure(err error) {
	switch {
	case errors.Is(err, apperror.ErrStore):
		metrics.StoreFailuresTotal.WithLabelValues("create").Inc()
	case errors.Is(err, apperror.ErrList):
		metrics.StoreFailuresTotal.WithLabelValues("list").Inc()
	case errors.Is(err, apperror.ErrDelete):
		metrics.StoreFailuresTotal.WithLabelValues("delete").Inc()
	}
}
