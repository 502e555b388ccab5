package handler

import (
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/park-places/internal/apperror"
	"github.com/sakif/park-places/internal/auth"
	"github.com/sakif/park-places/internal/model"
	"github.com/sakif/park-places/internal/service"
)

const (
	stateCookieName = "oauth_state"
	stateCookieTTL  = 600 // seconds
)

// AuthHandler serves account routes. Every successful sign-in ends with a
// JWT in the auth.CookieName cookie.
type AuthHandler struct {
	service      *service.AuthService
	github       *auth.GitHubProvider // nil when GitHub sign-in is off
	sessions     *service.Sessions    // nil when no view state is kept
	cookieSecure bool
	logger       *slog.Logger
}

// NewAuthHandler creates an AuthHandler. github and sessions may be nil.
func NewAuthHandler(
	svc *service.AuthService,
	github *auth.GitHubProvider,
	sessions *service.Sessions,
	cookieSecure bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		service:      svc,
		github:       github,
		sessions:     sessions,
		cookieSecure: cookieSecure,
		logger:       logger,
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleRegister handles POST /auth/register.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.service.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setCookie(w, auth.CookieName, result.Token, int(auth.TokenTTL.Seconds()))
	writeJSON(w, http.StatusCreated, result.User)
}

// HandleLogin handles POST /auth/login.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setCookie(w, auth.CookieName, result.Token, int(auth.TokenTTL.Seconds()))
	writeJSON(w, http.StatusOK, result.User)
}

// HandleLogout handles POST /auth/logout behind OptionalAuth. The caller's
// session is ended, which closes the input map and drops the draft location.
// Tokens are stateless, so a copied token stays valid until it expires.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if userID, ok := auth.UserIDFromContext(r.Context()); ok && h.sessions != nil {
		h.sessions.End(userID)
		h.logger.Info("user logged out", slog.String("userID", userID))
	}
	h.setCookie(w, auth.CookieName, "", -1)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// setCookie writes an HttpOnly, SameSite=Lax cookie. maxAge < 0 deletes it.
func (h *AuthHandler) setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// HandleGitHubLogin handles GET /auth/github/login. The random state is
// parked in a short-lived cookie and checked again on the callback.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()
	h.setCookie(w, stateCookieName, state, stateCookieTTL)
	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback handles GET /auth/github/callback?code=..&state=..
// and redirects back to the page once the account is signed in.
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || q.Get("state") != stateCookie.Value {
		h.logger.Warn("github callback rejected: state mismatch")
		writeError(w, apperror.ValidationFailed("state", "Invalid sign-in state. Please try again."))
		return
	}
	h.setCookie(w, stateCookieName, "", -1)

	if reason := q.Get("error"); reason != "" {
		h.logger.Info("github sign-in denied", slog.String("reason", reason))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := q.Get("code")
	if code == "" {
		writeError(w, apperror.ValidationFailed("code", "Missing sign-in code."))
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("github exchange failed", slog.String("error", err.Error()))
		http.Redirect(w, r, "/?auth=failed", http.StatusSeeOther)
		return
	}

	result, err := h.service.LoginOrRegisterGitHub(r.Context(), ghUser)
	if err != nil {
		h.logger.Error("github sign-in failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		http.Redirect(w, r, "/?auth=failed", http.StatusSeeOther)
		return
	}

	h.setCookie(w, auth.CookieName, result.Token, int(auth.TokenTTL.Seconds()))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type meResponse struct {
	*model.User
	GitHubEnabled bool `json:"githubEnabled"`
}

// HandleMe handles GET /api/me behind RequireAuth.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized())
		return
	}

	user, err := h.service.GetUserByID(r.Context(), userID)
	if err != nil {
		h.logger.Warn("me: user lookup failed", slog.String("userID", userID), slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{User: user, GitHubEnabled: h.github != nil})
}
