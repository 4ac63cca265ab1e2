package server

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/modercon/auth-front/internal/backend"
	"github.com/modercon/auth-front/internal/cookie"
	"github.com/modercon/auth-front/internal/emailutil"
	"github.com/modercon/auth-front/internal/json"
	"github.com/modercon/auth-front/internal/log"
	"github.com/modercon/auth-front/internal/origin"
	"github.com/modercon/auth-front/internal/provider"
)

// Callback finishes the authorization-code flow. The handler is a linear
// state machine: each step either advances or ends the request, and no step
// makes more than one network call.
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	flow := &callbackFlow{h: h, w: w, r: r}

	steps := []struct {
		name string
		run  func() stepResult
	}{
		{"host_check", flow.checkHost},
		{"provider_error", flow.checkProviderError},
		{"missing_code", flow.checkCode},
		{"state_validation", flow.validateState},
		{"code_exchange", flow.exchangeCode},
		{"identity_resolution", flow.resolveIdentity},
		{"backend_registration", flow.registerBackend},
		{"session_establishment", flow.establishSession},
	}

	for _, step := range steps {
		if step.run() == halt {
			log.LogDebugWithFields("auth", "callback ended", map[string]any{
				"step": step.name,
			})
			return
		}
	}
}

type stepResult int

const (
	advance stepResult = iota
	halt
)

type callbackFlow struct {
	h *AuthHandlers
	w http.ResponseWriter
	r *http.Request

	pair    *provider.TokenPair
	email   string
	session *backend.Session
}

// checkHost restarts the callback on the canonical loopback host so the
// state cookies written at login time are visible
func (f *callbackFlow) checkHost() stepResult {
	o := origin.Resolve(f.r)
	canonical, changed := origin.CanonicalHost(o.Host)
	if !changed {
		return advance
	}
	target := o.Scheme + "://" + canonical + f.r.URL.RequestURI()
	http.Redirect(f.w, f.r, target, http.StatusFound)
	return halt
}

func (f *callbackFlow) checkProviderError() stepResult {
	code := f.r.URL.Query().Get("error")
	if code == "" {
		return advance
	}
	desc := f.r.URL.Query().Get("error_description")
	log.LogWarnWithFields("auth", "provider denied authorization", map[string]any{
		"provider": f.h.provider.Name(),
		"error":    code,
	})
	f.failLogin(providerErrorMessage(code), desc)
	return halt
}

func (f *callbackFlow) checkCode() stepResult {
	if f.r.URL.Query().Get("code") != "" {
		return advance
	}
	json.WriteBadRequest(f.w, "No authorization code received")
	return halt
}

// validateState is the CSRF gate: an unknown or replayed state token stops
// the flow before any call to the provider
func (f *callbackFlow) validateState() stepResult {
	token := f.r.URL.Query().Get("state")
	if !f.h.states.Consume(f.w, f.r, token) {
		log.LogWarnWithFields("auth", "state validation failed", map[string]any{
			"provider": f.h.provider.Name(),
		})
		json.WriteBadRequest(f.w, "Invalid state parameter")
		return halt
	}
	return advance
}

func (f *callbackFlow) exchangeCode() stepResult {
	code := f.r.URL.Query().Get("code")
	pair, err := f.h.provider.Exchange(f.r.Context(), code, f.redirectURI())
	if err != nil {
		log.LogError("code exchange failed: %v", err)
		f.failLogin("Authorization failed. Please try again.", "")
		return halt
	}
	f.pair = pair
	return advance
}

// resolveIdentity gets the email behind the token. No session is ever
// created without one.
func (f *callbackFlow) resolveIdentity() stepResult {
	email, err := f.h.provider.Identity(f.r.Context(), f.pair.AccessToken)
	if err != nil {
		log.LogError("identity resolution failed: %v", err)
		f.failLogin("Could not retrieve your email address. Please check your account permissions and try again.", "")
		return halt
	}
	f.email = email
	return advance
}

func (f *callbackFlow) registerBackend() stepResult {
	session, err := f.h.backend.Register(f.r.Context(), f.email, *f.pair)
	if err != nil {
		log.LogError("backend registration failed: %v", err)
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) && apiErr.Detail != "" {
			f.failLogin(apiErr.Detail, "")
		} else {
			f.failLogin("Login failed. Please try again.", "")
		}
		return halt
	}
	f.session = session
	return advance
}

func (f *callbackFlow) establishSession() stepResult {
	f.h.jar.Establish(f.w, f.r, cookie.Session{
		AppToken:     f.session.AccessToken,
		AppTTL:       f.session.TTL(),
		AccessToken:  f.pair.AccessToken,
		AccessTTL:    f.pair.TTL,
		RefreshToken: f.pair.RefreshToken,
		Email:        f.email,
	})

	landing := f.h.cfg.Session.CabinetPath
	if f.h.cfg.Session.MasterEmail != "" && f.email == emailutil.Normalize(f.h.cfg.Session.MasterEmail) {
		landing = f.h.cfg.Session.ModeratorPath
	}

	log.LogInfoWithFields("auth", "login completed", map[string]any{
		"provider":     f.h.provider.Name(),
		"email_domain": emailutil.ExtractDomain(f.email),
		"landing":      landing,
	})
	http.Redirect(f.w, f.r, landing, http.StatusFound)
	return halt
}

// redirectURI reads back the URI persisted at login time, so the exchange
// uses the same value the authorization request carried
func (f *callbackFlow) redirectURI() string {
	if raw := f.h.jar.Get(f.r, f.h.jar.RedirectURIName()); raw != "" {
		if uri, err := url.QueryUnescape(raw); err == nil && uri != "" {
			return uri
		}
	}
	o := origin.Resolve(f.r)
	return origin.RedirectURI(o, f.h.cfg.Provider.RedirectURI, callbackPath)
}

// failLogin sends the browser back to the login page with a machine-readable
// error code and a human-readable message. Details carry the provider's own
// description when there is one; tokens and secrets never appear here.
func (f *callbackFlow) failLogin(message, details string) {
	q := url.Values{}
	q.Set("error", f.h.provider.Name()+"_oauth_failed")
	q.Set("message", message)
	if details != "" {
		q.Set("details", details)
	}
	http.Redirect(f.w, f.r, f.h.cfg.Session.LoginPath+"?"+q.Encode(), http.StatusFound)
}

// providerErrorMessage maps OAuth error codes to messages a person can act on
func providerErrorMessage(code string) string {
	switch code {
	case "invalid_scope":
		return "The requested permissions are not available for this application."
	case "access_denied":
		return "Access was denied. Please grant the requested permissions to sign in."
	case "unauthorized_client":
		return "This application is not authorized to sign you in. Please contact support."
	case "unsupported_response_type":
		return "The sign-in request was malformed. Please contact support."
	case "server_error":
		return "The sign-in provider encountered an error. Please try again later."
	case "temporarily_unavailable":
		return "The sign-in provider is temporarily unavailable. Please try again later."
	default:
		return "Sign-in failed. Please try again."
	}
}
