package server

import (
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/modercon/auth-front/internal/backend"
	"github.com/modercon/auth-front/internal/config"
	"github.com/modercon/auth-front/internal/cookie"
	"github.com/modercon/auth-front/internal/json"
	"github.com/modercon/auth-front/internal/log"
	"github.com/modercon/auth-front/internal/origin"
	"github.com/modercon/auth-front/internal/provider"
	"github.com/modercon/auth-front/internal/state"
)

const callbackPath = "/oauth-callback"

// AuthHandlers serves the login, callback, logout, and auth-status endpoints
type AuthHandlers struct {
	cfg      *config.Config
	provider *provider.Client
	backend  *backend.Client
	jar      *cookie.Jar
	states   *state.Store
}

// NewAuthHandlers wires the auth endpoints
func NewAuthHandlers(cfg *config.Config, prov *provider.Client, back *backend.Client, jar *cookie.Jar, states *state.Store) *AuthHandlers {
	return &AuthHandlers{
		cfg:      cfg,
		provider: prov,
		backend:  back,
		jar:      jar,
		states:   states,
	}
}

// Login starts the authorization-code flow with a redirect to the provider
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	o := origin.Resolve(r)

	// Canonicalize loopback first so state cookies land on the host the
	// callback will arrive on
	if canonical, changed := origin.CanonicalHost(o.Host); changed {
		target := o.Scheme + "://" + canonical + r.URL.RequestURI()
		http.Redirect(w, r, target, http.StatusFound)
		return
	}

	if !h.provider.Configured() {
		log.LogError("login attempted but provider client credentials are not configured")
		json.WriteInternalServerError(w, "OAuth client is not configured")
		return
	}

	token, err := h.states.Issue()
	if err != nil {
		log.LogError("generating state token: %v", err)
		json.WriteInternalServerError(w, "Failed to start login")
		return
	}
	h.states.Remember(w, r, token)

	redirectURI := origin.RedirectURI(o, h.cfg.Provider.RedirectURI, callbackPath)
	h.jar.Set(w, r, h.jar.RedirectURIName(), url.QueryEscape(redirectURI), cookie.StateTTL)

	authURL := h.provider.AuthCodeURL(token, redirectURI)
	log.LogDebugWithFields("auth", "starting login", map[string]any{
		"provider":     h.provider.Name(),
		"redirect_uri": redirectURI,
	})
	http.Redirect(w, r, authURL, http.StatusFound)
}

// Logout ends the session by clearing every auth cookie
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.jar.ClearAll(w, r)
	json.Write(w, map[string]bool{"success": true})
}

// Status reports whether the browser holds a live application session. The
// token's signature belongs to the backend; here only the expiry claim is
// inspected.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	token := h.jar.Get(r, cookie.AuthTokenCookie)
	if token == "" {
		json.Write(w, map[string]any{"authenticated": false})
		return
	}

	email := h.jar.Get(r, h.jar.EmailName())

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil && exp.Before(time.Now()) {
			json.Write(w, map[string]any{"authenticated": false})
			return
		}
	}

	json.Write(w, map[string]any{
		"authenticated": true,
		"email":         email,
	})
}
