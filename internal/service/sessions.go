package service

import (
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/park-places/internal/auth"
	"github.com/sakif/park-places/internal/geo"
	"github.com/sakif/park-places/internal/mapview"
	"github.com/sakif/park-places/internal/repository"
)

// Mount ids used by a session's two widgets.
const (
	InputMount   = "mapInput"
	DisplayMount = "mapDisplay"
)

// Session is one signed-in user's view state: both flows and both maps.
type Session struct {
	UserID       string
	Registration *RegistrationFlow
	Listing      *ListingFlow
	Input        *mapview.InputCanvas
	Display      *mapview.DisplayCanvas
}

// SessionsConfig carries what every session is built from.
type SessionsConfig struct {
	Stores     repository.PlaceStores
	Gate       auth.Gate
	Locator    geo.Locator
	GeoTimeout time.Duration
	Location   *time.Location
}

// Sessions hands out one Session per user, created on first use.
//
// Sessions live for the process lifetime. A user signed in from two tabs
// shares one session, the same way two tabs share one browser profile.
type Sessions struct {
	cfg    SessionsConfig
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessions(cfg SessionsConfig, logger *slog.Logger) *Sessions {
	if cfg.Gate == nil {
		cfg.Gate = auth.ContextGate{}
	}
	return &Sessions{
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// For returns userID's session, creating it if needed.
func (s *Sessions) For(userID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[userID]; ok {
		return sess, nil
	}

	logger := s.logger.With(slog.String("userID", userID))
	store := s.cfg.Stores.ForOwner(userID)
	mounts := mapview.NewMounts()
	input := mapview.NewInputCanvas(mounts)
	display := mapview.NewDisplayCanvas(mounts)
	if err := display.Attach(DisplayMount); err != nil {
		return nil, err
	}

	sess := &Session{
		UserID:       userID,
		Registration: NewRegistrationFlow(store, s.cfg.Gate, input, geo.NewCapturer(s.cfg.Locator, s.cfg.GeoTimeout, logger), logger),
		Listing:      NewListingFlow(store, s.cfg.Gate, display, s.cfg.Location, logger),
		Input:        input,
		Display:      display,
	}
	s.sessions[userID] = sess
	logger.Debug("session created")
	return sess, nil
}

// End closes userID's session: the input map is detached, the draft
// location dropped and the session forgotten, so the next sign-in starts
// from a clean registration view. Ending an unknown user is a no-op.
func (s *Sessions) End(userID string) {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	delete(s.sessions, userID)
	s.mu.Unlock()
	if !ok {
		return
	}

	sess.Registration.DetachInput()
	sess.Display.Detach()
	s.logger.Debug("session ended", slog.String("userID", userID))
}

// Len reports how many sessions are live.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
