package handler

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/sakif/park-places/internal/geo"
	"github.com/sakif/park-places/internal/mapview"
	"github.com/sakif/park-places/internal/metrics"
	"github.com/sakif/park-places/internal/service"
)

// SessionHandler exposes the registration view's state: the form, the
// picked location and both maps. The front-end calls these as the user
// toggles views, clicks the map or asks for the current position, and
// redraws from the snapshot each call returns.
type SessionHandler struct {
	sessions *service.Sessions
	logger   *slog.Logger
}

func NewSessionHandler(sessions *service.Sessions, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

// InputView is the registration view: form state plus the input map.
type InputView struct {
	Registration service.RegistrationState `json:"registration"`
	Map          mapview.InputSnapshot     `json:"map"`
}

func inputView(sess *service.Session) InputView {
	return InputView{
		Registration: sess.Registration.State(),
		Map:          sess.Input.Snapshot(),
	}
}

// HandleGetInput: GET /api/session/input
func (h *SessionHandler) HandleGetInput(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, inputView(sess))
}

// HandleOpenInput mounts the input map; the registration view was opened.
//
// HTTP: PUT /api/session/input
func (h *SessionHandler) HandleOpenInput(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}
	if err := sess.Registration.AttachInput(service.InputMount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inputView(sess))
}

// HandleCloseInput tears the input map down; the view was left.
//
// HTTP: DELETE /api/session/input
func (h *SessionHandler) HandleCloseInput(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}
	sess.Registration.DetachInput()
	writeJSON(w, http.StatusOK, inputView(sess))
}

type pickRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// HandlePick is a click or marker drag on the input map.
//
// HTTP: PUT /api/session/draft
// REQUEST BODY: {"lat": 41.15, "lng": -8.61}
func (h *SessionHandler) HandlePick(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	var req pickRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if _, err := sess.Registration.Pick(req.Lat, req.Lng); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inputView(sess))
}

// HandleClearDraft drops the picked location.
//
// HTTP: DELETE /api/session/draft
func (h *SessionHandler) HandleClearDraft(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}
	sess.Registration.ClearDraft()
	writeJSON(w, http.StatusOK, inputView(sess))
}

type geolocateRequest struct {
	TimeoutMs    int         `json:"timeoutMs"`
	HighAccuracy bool        `json:"highAccuracy"`
	Reported     *geo.Report `json:"reported"`
}

// GeolocateResponse is the capture result plus the view it produced.
type GeolocateResponse struct {
	Result service.GeoResult `json:"result"`
	View   InputView         `json:"view"`
}

// HandleGeolocate captures the current position.
//
// The client either posts what the browser measured ("reported") or nothing,
// in which case the server falls back to an IP lookup when one is configured.
//
// HTTP: POST /api/session/geolocate
// REQUEST BODY: {"timeoutMs": 10000, "highAccuracy": true, "reported": {"lat": .., "lng": .., "code": 0}}
func (h *SessionHandler) HandleGeolocate(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	var req geolocateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := sess.Registration.Geolocate(r.Context(), geo.Request{
		Timeout:      time.Duration(req.TimeoutMs) * time.Millisecond,
		HighAccuracy: req.HighAccuracy,
		ClientIP:     clientIP(r),
		Reported:     req.Reported,
	})
	if err != nil {
		metrics.GeoCapturesTotal.WithLabelValues(geoOutcome(err)).Inc()
		h.logger.Info("geolocation failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	metrics.GeoCapturesTotal.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, GeolocateResponse{Result: *res, View: inputView(sess)})
}

// HandleGetDisplay: GET /api/session/display
func (h *SessionHandler) HandleGetDisplay(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Display.Snapshot())
}

// clientIP strips the port chi's RealIP middleware may leave in RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func geoOutcome(err error) string {
	var geoErr *geo.Error
	switch {
	case errors.As(err, &geoErr):
		return geoErr.Kind.String()
	case errors.Is(err, geo.ErrSuperseded):
		return "superseded"
	default:
		return "error"
	}
}
