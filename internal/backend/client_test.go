package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modercon/auth-front/internal/config"
	"github.com/modercon/auth-front/internal/provider"
)

func newTestClient(baseURL string) *Client {
	return NewClient(config.BackendConfig{BaseURL: baseURL, Timeout: 5 * time.Second}, "mailru")
}

func TestRegister(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"access_token": "app-jwt", "expires_in": 3600})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	session, err := c.Register(context.Background(), "user@corp.example", provider.TokenPair{
		AccessToken:  "prov-access",
		RefreshToken: "prov-refresh",
		TTL:          time.Hour,
	})
	require.NoError(t, err)

	assert.Equal(t, "/api/auth/mailru-oauth", gotPath)
	assert.Equal(t, "user@corp.example", gotBody["email"])
	assert.Equal(t, "prov-access", gotBody["access_token"])
	assert.Equal(t, "prov-refresh", gotBody["refresh_token"])
	assert.Equal(t, float64(3600), gotBody["expires_in"])

	assert.Equal(t, "app-jwt", session.AccessToken)
	assert.Equal(t, time.Hour, session.TTL())
}

func TestRegisterRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"detail": "supplier account suspended"})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Register(context.Background(), "user@corp.example", provider.TokenPair{AccessToken: "a"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "supplier account suspended", apiErr.Detail)
}

func TestRegisterRejectionErrorField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "email domain not allowed"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Register(context.Background(), "user@other.example", provider.TokenPair{AccessToken: "a"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "email domain not allowed", apiErr.Detail)
}

func TestRegisterRejectionPlainBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream unavailable"))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Register(context.Background(), "u@x.com", provider.TokenPair{AccessToken: "a"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "upstream unavailable", apiErr.Detail)
}

func TestRegisterMissingToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"expires_in": 3600}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Register(context.Background(), "u@x.com", provider.TokenPair{AccessToken: "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no access token")
}
