package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sakif/park-places/internal/auth"
	"github.com/sakif/park-places/internal/geo"
	"github.com/sakif/park-places/internal/repository/sqlite"
	"github.com/sakif/park-places/internal/service"
)

// fixture is a fully wired stack over an in-memory sqlite database:
// users and places both live there, exactly as with PLACE_BACKEND=sqlite.
type fixture struct {
	db       *sqlite.DB
	tokens   *auth.TokenService
	authSvc  *service.AuthService
	sessions *service.Sessions
	logger   *slog.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("sqlite.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("test-secret-that-is-long-enough-for-hs256")
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	return &fixture{
		db:      db,
		tokens:  tokens,
		authSvc: service.NewAuthService(db, tokens, auth.NewPasswordServiceForTest(4), logger),
		sessions: service.NewSessions(service.SessionsConfig{
			Stores:     db,
			Gate:       auth.ContextGate{},
			Locator:    geo.ReportedLocator{},
			GeoTimeout: time.Second,
			Location:   time.UTC,
		}, logger),
		logger: logger,
	}
}

// request builds a request signed in as userID ("" for anonymous).
func request(t *testing.T, method, target, userID string, body any) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req = req.WithContext(auth.WithUserID(context.Background(), userID))
	}
	return req
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), "body: %s", rr.Body.String())
	return v
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field"`
}

func mustField(t *testing.T, body []byte, name string) json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &m))
	v, ok := m[name]
	require.True(t, ok, "missing field %q in %s", name, body)
	return v
}
