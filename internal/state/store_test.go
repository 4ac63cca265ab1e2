package state

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modercon/auth-front/internal/cookie"
)

func newStore() *Store {
	return NewStore(cookie.NewJar("mailru"))
}

// carry copies cookies from a recorded response onto a fresh request, the way
// a browser would between redirects
func carry(t *testing.T, w *httptest.ResponseRecorder, target string) *http.Request {
	t.Helper()
	r := httptest.NewRequest("GET", target, nil)
	for _, c := range w.Result().Cookies() {
		if c.MaxAge >= 0 {
			r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
		}
	}
	return r
}

func statesCookie(t *testing.T, w *httptest.ResponseRecorder) []string {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == "mailru_oauth_states" && c.MaxAge >= 0 {
			decoded, err := url.QueryUnescape(c.Value)
			require.NoError(t, err)
			var states []string
			require.NoError(t, json.Unmarshal([]byte(decoded), &states))
			return states
		}
	}
	return nil
}

func TestIssueUnique(t *testing.T) {
	s := newStore()
	a, err := s.Issue()
	require.NoError(t, err)
	b, err := s.Issue()
	require.NoError(t, err)
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestRememberPrependsNewest(t *testing.T) {
	s := newStore()

	w1 := httptest.NewRecorder()
	r1 := httptest.NewRequest("GET", "http://localhost/login-start", nil)
	s.Remember(w1, r1, "tok1")

	w2 := httptest.NewRecorder()
	r2 := carry(t, w1, "http://localhost/login-start")
	s.Remember(w2, r2, "tok2")

	assert.Equal(t, []string{"tok2", "tok1"}, statesCookie(t, w2))
}

func TestRememberBoundsList(t *testing.T) {
	s := newStore()

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "http://localhost/login-start", nil)
	for i := 0; i < MaxPending+2; i++ {
		next := httptest.NewRecorder()
		s.Remember(next, r, fmt.Sprintf("tok%d", i))
		r = carry(t, next, "http://localhost/login-start")
		w = next
	}

	states := statesCookie(t, w)
	require.Len(t, states, MaxPending)
	// Newest kept, oldest evicted
	assert.Equal(t, "tok6", states[0])
	assert.NotContains(t, states, "tok0")
	assert.NotContains(t, states, "tok1")
}

func TestConsumeRemovesToken(t *testing.T) {
	s := newStore()

	w1 := httptest.NewRecorder()
	s.Remember(w1, httptest.NewRequest("GET", "http://localhost/", nil), "tok1")

	w2 := httptest.NewRecorder()
	r2 := carry(t, w1, "http://localhost/oauth-callback")
	assert.True(t, s.Consume(w2, r2, "tok1"))

	// Replaying the consumed token fails
	r3 := carry(t, w2, "http://localhost/oauth-callback")
	w3 := httptest.NewRecorder()
	assert.False(t, s.Consume(w3, r3, "tok1"))
}

func TestConsumeKeepsSiblings(t *testing.T) {
	s := newStore()

	w1 := httptest.NewRecorder()
	r1 := httptest.NewRequest("GET", "http://localhost/", nil)
	s.Remember(w1, r1, "tab1")
	w2 := httptest.NewRecorder()
	s.Remember(w2, carry(t, w1, "http://localhost/"), "tab2")

	w3 := httptest.NewRecorder()
	assert.True(t, s.Consume(w3, carry(t, w2, "http://localhost/"), "tab1"))
	assert.Equal(t, []string{"tab2"}, statesCookie(t, w3))
}

func TestConsumeRejectsUnknown(t *testing.T) {
	s := newStore()

	w1 := httptest.NewRecorder()
	s.Remember(w1, httptest.NewRequest("GET", "http://localhost/", nil), "tok1")

	w2 := httptest.NewRecorder()
	assert.False(t, s.Consume(w2, carry(t, w1, "http://localhost/"), "forged"))
}

func TestConsumeRejectsEmpty(t *testing.T) {
	s := newStore()
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "http://localhost/", nil)
	assert.False(t, s.Consume(w, r, ""))
}

func TestConsumeLegacyScalarCookie(t *testing.T) {
	s := newStore()

	r := httptest.NewRequest("GET", "http://localhost/oauth-callback", nil)
	r.AddCookie(&http.Cookie{Name: "mailru_oauth_state", Value: "old-style"})

	w := httptest.NewRecorder()
	assert.True(t, s.Consume(w, r, "old-style"))

	// Scalar cookie cleared after use
	for _, c := range w.Result().Cookies() {
		if c.Name == "mailru_oauth_state" {
			assert.Equal(t, -1, c.MaxAge)
		}
	}
}

func TestCorruptStatesCookieTreatedAsEmpty(t *testing.T) {
	s := newStore()

	r := httptest.NewRequest("GET", "http://localhost/oauth-callback", nil)
	r.AddCookie(&http.Cookie{Name: "mailru_oauth_states", Value: "not-json-at-all"})

	w := httptest.NewRecorder()
	assert.False(t, s.Consume(w, r, "anything"))

	// Remember still works on top of the corrupt cookie
	w2 := httptest.NewRecorder()
	s.Remember(w2, r, "fresh")
	assert.Equal(t, []string{"fresh"}, statesCookie(t, w2))
}
