package cookie

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findCookie(t *testing.T, cookies []*http.Cookie, name string) *http.Cookie {
	t.Helper()
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestCookieNames(t *testing.T) {
	j := NewJar("mailru")
	assert.Equal(t, "mailru_oauth_access", j.AccessName())
	assert.Equal(t, "mailru_oauth_refresh", j.RefreshName())
	assert.Equal(t, "mailru_oauth_email", j.EmailName())
	assert.Equal(t, "mailru_oauth_state", j.StateName())
	assert.Equal(t, "mailru_oauth_states", j.StatesName())
	assert.Equal(t, "mailru_oauth_redirect_uri", j.RedirectURIName())
}

func TestSetAttributes(t *testing.T) {
	j := NewJar("mailru")

	t.Run("secure on real host", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "http://console.example.com/", nil)
		j.Set(w, r, "x", "y", time.Hour)

		c := findCookie(t, w.Result().Cookies(), "x")
		require.NotNil(t, c)
		assert.True(t, c.Secure)
		assert.True(t, c.HttpOnly)
		assert.Equal(t, "/", c.Path)
		assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
		assert.Equal(t, 3600, c.MaxAge)
	})

	t.Run("secure off on loopback", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "http://localhost:8080/", nil)
		j.Set(w, r, "x", "y", time.Hour)

		c := findCookie(t, w.Result().Cookies(), "x")
		require.NotNil(t, c)
		assert.False(t, c.Secure)
		assert.True(t, c.HttpOnly)
	})

	t.Run("secure on loopback behind https proxy", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "http://localhost:8080/", nil)
		r.Header.Set("X-Forwarded-Proto", "https")
		j.Set(w, r, "x", "y", time.Hour)

		c := findCookie(t, w.Result().Cookies(), "x")
		require.NotNil(t, c)
		assert.True(t, c.Secure)
	})
}

func TestEstablish(t *testing.T) {
	j := NewJar("mailru")
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "http://console.example.com/oauth-callback", nil)

	j.Establish(w, r, Session{
		AppToken:     "app-jwt",
		AppTTL:       30 * time.Minute,
		AccessToken:  "prov-access",
		AccessTTL:    45 * time.Minute,
		RefreshToken: "prov-refresh",
		Email:        "user@corp.example",
	})

	cookies := w.Result().Cookies()

	auth := findCookie(t, cookies, AuthTokenCookie)
	require.NotNil(t, auth)
	assert.Equal(t, "app-jwt", auth.Value)
	assert.Equal(t, 1800, auth.MaxAge)

	access := findCookie(t, cookies, "mailru_oauth_access")
	require.NotNil(t, access)
	assert.Equal(t, "prov-access", access.Value)
	assert.Equal(t, 2700, access.MaxAge)

	refresh := findCookie(t, cookies, "mailru_oauth_refresh")
	require.NotNil(t, refresh)
	assert.Equal(t, int(RefreshTTL.Seconds()), refresh.MaxAge)

	email := findCookie(t, cookies, "mailru_oauth_email")
	require.NotNil(t, email)
	assert.Equal(t, "user@corp.example", email.Value)

	// Transient login cookies removed
	for _, name := range []string{"mailru_oauth_state", "mailru_oauth_states", "mailru_oauth_redirect_uri"} {
		c := findCookie(t, cookies, name)
		require.NotNil(t, c, name)
		assert.Equal(t, -1, c.MaxAge, name)
	}
}

func TestEstablishDefaults(t *testing.T) {
	j := NewJar("mailru")
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "http://console.example.com/", nil)

	j.Establish(w, r, Session{AppToken: "t", AccessToken: "a", Email: "e@x.com"})

	cookies := w.Result().Cookies()
	assert.Equal(t, int(DefaultSessionTTL.Seconds()), findCookie(t, cookies, AuthTokenCookie).MaxAge)
	assert.Equal(t, int(DefaultAccessTTL.Seconds()), findCookie(t, cookies, "mailru_oauth_access").MaxAge)
	// No refresh token, no refresh cookie
	assert.Nil(t, findCookie(t, cookies, "mailru_oauth_refresh"))
}

func TestRotateTokens(t *testing.T) {
	j := NewJar("mailru")
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "http://console.example.com/", nil)

	j.RotateTokens(w, r, "new-access", 20*time.Minute, "new-refresh")

	cookies := w.Result().Cookies()
	access := findCookie(t, cookies, "mailru_oauth_access")
	require.NotNil(t, access)
	assert.Equal(t, "new-access", access.Value)
	assert.Equal(t, 1200, access.MaxAge)

	refresh := findCookie(t, cookies, "mailru_oauth_refresh")
	require.NotNil(t, refresh)
	assert.Equal(t, "new-refresh", refresh.Value)
}

func TestRotateTokensKeepsRefreshWhenAbsent(t *testing.T) {
	j := NewJar("mailru")
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "http://console.example.com/", nil)

	j.RotateTokens(w, r, "new-access", 0, "")

	cookies := w.Result().Cookies()
	assert.Nil(t, findCookie(t, cookies, "mailru_oauth_refresh"))
	assert.Equal(t, int(DefaultAccessTTL.Seconds()), findCookie(t, cookies, "mailru_oauth_access").MaxAge)
}

func TestClearAll(t *testing.T) {
	j := NewJar("mailru")
	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "http://console.example.com/logout", nil)

	j.ClearAll(w, r)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 7)
	for _, c := range cookies {
		assert.Equal(t, -1, c.MaxAge, c.Name)
		assert.Empty(t, c.Value, c.Name)
	}
}
