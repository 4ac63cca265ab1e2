// Package cookie owns every cookie the broker reads or writes. All login
// state lives in the browser; the server holds nothing between requests.
package cookie

import (
	"net/http"
	"time"

	"github.com/modercon/auth-front/internal/origin"
)

// AuthTokenCookie carries the backend application session token
const AuthTokenCookie = "auth_token"

const (
	// DefaultSessionTTL applies when the backend omits expires_in
	DefaultSessionTTL = time.Hour
	// DefaultAccessTTL applies when the provider omits token expiry
	DefaultAccessTTL = time.Hour
	// RefreshTTL is how long the refresh token cookie survives
	RefreshTTL = 30 * 24 * time.Hour
	// StateTTL bounds how long a pending login attempt stays valid
	StateTTL = 10 * time.Minute
)

// Jar names and writes the provider-scoped cookie set. The secure flag is
// decided per request so loopback development works without TLS.
type Jar struct {
	provider string
}

// NewJar creates a Jar for the given provider name, which prefixes all
// provider cookie names
func NewJar(provider string) *Jar {
	return &Jar{provider: provider}
}

func (j *Jar) AccessName() string      { return j.provider + "_oauth_access" }
func (j *Jar) RefreshName() string     { return j.provider + "_oauth_refresh" }
func (j *Jar) EmailName() string       { return j.provider + "_oauth_email" }
func (j *Jar) StateName() string       { return j.provider + "_oauth_state" }
func (j *Jar) StatesName() string      { return j.provider + "_oauth_states" }
func (j *Jar) RedirectURIName() string { return j.provider + "_oauth_redirect_uri" }

// Session is everything written to the browser after a successful login
type Session struct {
	AppToken     string
	AppTTL       time.Duration
	AccessToken  string
	AccessTTL    time.Duration
	RefreshToken string
	Email        string
}

// Set writes a cookie with the broker's standard attributes
func (j *Jar) Set(w http.ResponseWriter, r *http.Request, name, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secureFor(r),
		SameSite: http.SameSiteLaxMode,
	})
}

// Get returns the named cookie's value, or empty if absent
func (j *Jar) Get(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// Clear expires the named cookie immediately
func (j *Jar) Clear(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secureFor(r),
		SameSite: http.SameSiteLaxMode,
	})
}

// Establish writes the full success cookie set and removes the transient
// login-attempt cookies in the same response
func (j *Jar) Establish(w http.ResponseWriter, r *http.Request, s Session) {
	appTTL := s.AppTTL
	if appTTL <= 0 {
		appTTL = DefaultSessionTTL
	}
	accessTTL := s.AccessTTL
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}

	j.Set(w, r, AuthTokenCookie, s.AppToken, appTTL)
	j.Set(w, r, j.AccessName(), s.AccessToken, accessTTL)
	if s.RefreshToken != "" {
		j.Set(w, r, j.RefreshName(), s.RefreshToken, RefreshTTL)
	}
	j.Set(w, r, j.EmailName(), s.Email, appTTL)

	j.Clear(w, r, j.StateName())
	j.Clear(w, r, j.StatesName())
	j.Clear(w, r, j.RedirectURIName())
}

// RotateTokens replaces the provider token cookies after a refresh
func (j *Jar) RotateTokens(w http.ResponseWriter, r *http.Request, access string, accessTTL time.Duration, refresh string) {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	j.Set(w, r, j.AccessName(), access, accessTTL)
	if refresh != "" {
		j.Set(w, r, j.RefreshName(), refresh, RefreshTTL)
	}
}

// ClearAll expires every cookie the broker ever sets
func (j *Jar) ClearAll(w http.ResponseWriter, r *http.Request) {
	j.Clear(w, r, AuthTokenCookie)
	j.Clear(w, r, j.AccessName())
	j.Clear(w, r, j.RefreshName())
	j.Clear(w, r, j.EmailName())
	j.Clear(w, r, j.StateName())
	j.Clear(w, r, j.StatesName())
	j.Clear(w, r, j.RedirectURIName())
}

// secureFor decides the Secure flag: off only when the browser reached us on
// loopback over plain http
func secureFor(r *http.Request) bool {
	o := origin.Resolve(r)
	if o.Scheme == "https" {
		return true
	}
	return !origin.IsLoopback(o.Host)
}
