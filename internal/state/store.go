// Package state issues and validates the anti-CSRF state tokens that tie an
// OAuth callback to a login attempt started in the same browser. Tokens live
// in a bounded cookie list so several tabs can run logins concurrently.
package state

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/modercon/auth-front/internal/cookie"
	"github.com/modercon/auth-front/internal/crypto"
	"github.com/modercon/auth-front/internal/log"
)

// MaxPending bounds how many concurrent login attempts a browser can hold.
// Older attempts fall off the end.
const MaxPending = 5

// Store keeps pending state tokens in the browser's cookies
type Store struct {
	jar *cookie.Jar
}

// NewStore creates a Store writing through the given cookie jar
func NewStore(jar *cookie.Jar) *Store {
	return &Store{jar: jar}
}

// Issue generates a fresh state token
func (s *Store) Issue() (string, error) {
	return crypto.GenerateSecureToken()
}

// Remember records a newly issued token as the most recent pending attempt,
// evicting the oldest once the list is full. The legacy scalar cookie is
// mirrored for sessions started before the list existed.
func (s *Store) Remember(w http.ResponseWriter, r *http.Request, token string) {
	states := s.pending(r)
	states = append([]string{token}, states...)
	if len(states) > MaxPending {
		states = states[:MaxPending]
	}
	s.writePending(w, r, states)
	s.jar.Set(w, r, s.jar.StateName(), token, cookie.StateTTL)
}

// Consume validates a returned state token against the pending list (or the
// legacy scalar cookie) and removes it so it cannot be replayed. Returns
// false for unknown, reused, or missing tokens.
func (s *Store) Consume(w http.ResponseWriter, r *http.Request, token string) bool {
	if token == "" {
		return false
	}

	states := s.pending(r)
	matched := -1
	for i, st := range states {
		if crypto.ConstantTimeEquals(st, token) {
			matched = i
			break
		}
	}

	legacy := s.jar.Get(r, s.jar.StateName())
	legacyMatch := legacy != "" && crypto.ConstantTimeEquals(legacy, token)

	if matched < 0 && !legacyMatch {
		return false
	}

	if matched >= 0 {
		states = append(states[:matched], states[matched+1:]...)
	}
	s.writePending(w, r, states)
	s.jar.Clear(w, r, s.jar.StateName())
	return true
}

// pending reads the state-token list. A cookie that fails to decode is
// treated as empty rather than blocking login.
func (s *Store) pending(r *http.Request) []string {
	raw := s.jar.Get(r, s.jar.StatesName())
	if raw == "" {
		return nil
	}
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		log.LogDebugWithFields("state", "discarding undecodable states cookie", map[string]any{
			"error": err.Error(),
		})
		return nil
	}
	var states []string
	if err := json.Unmarshal([]byte(decoded), &states); err != nil {
		log.LogDebugWithFields("state", "discarding malformed states cookie", map[string]any{
			"error": err.Error(),
		})
		return nil
	}
	return states
}

// writePending stores the list URL-encoded: raw JSON contains quotes and
// commas, which are not valid in cookie values
func (s *Store) writePending(w http.ResponseWriter, r *http.Request, states []string) {
	if len(states) == 0 {
		s.jar.Clear(w, r, s.jar.StatesName())
		return
	}
	data, err := json.Marshal(states)
	if err != nil {
		log.LogError("marshaling state list: %v", err)
		return
	}
	s.jar.Set(w, r, s.jar.StatesName(), url.QueryEscape(string(data)), cookie.StateTTL)
}
