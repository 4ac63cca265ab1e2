// Package backend registers authenticated identities with the console
// backend and receives the application session token in return.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/modercon/auth-front/internal/config"
	"github.com/modercon/auth-front/internal/ioutil"
	"github.com/modercon/auth-front/internal/log"
	"github.com/modercon/auth-front/internal/provider"
)

// Session is the backend's answer to a successful registration
type Session struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// TTL returns the session lifetime, or zero when the backend omitted it
func (s Session) TTL() time.Duration {
	return time.Duration(s.ExpiresIn) * time.Second
}

// APIError is a non-2xx answer from the backend, carrying its own message so
// the browser sees what the backend said
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Detail)
}

// Client talks to the console backend
type Client struct {
	baseURL    string
	provider   string
	httpClient *http.Client
}

// NewClient creates a backend client for the given provider name
func NewClient(cfg config.BackendConfig, providerName string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		provider: providerName,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Register reports a verified provider identity to the backend, which creates
// or finds the user and mints an application session token
func (c *Client) Register(ctx context.Context, email string, pair provider.TokenPair) (*Session, error) {
	payload := map[string]any{
		"email":         email,
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"expires_in":    int(pair.TTL.Seconds()),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling registration payload: %w", err)
	}

	url := c.baseURL + "/api/auth/" + c.provider + "-oauth"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building registration request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registering user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw := ioutil.ReadLimited(resp.Body, 4096)
		detail := extractDetail(raw)
		log.LogWarnWithFields("backend", "registration rejected", map[string]any{
			"status": resp.StatusCode,
			"detail": detail,
		})
		return nil, &APIError{Status: resp.StatusCode, Detail: detail}
	}

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("decoding registration response: %w", err)
	}
	if session.AccessToken == "" {
		return nil, fmt.Errorf("backend registration response has no access token")
	}
	return &session, nil
}

// extractDetail pulls the backend's message out of an error body, falling
// back to the raw body for non-JSON answers
func extractDetail(raw string) string {
	var parsed struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
		if parsed.Detail != "" {
			return parsed.Detail
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	return raw
}
