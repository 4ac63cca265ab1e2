// Package provider talks to the third-party OAuth provider: authorization
// URLs, code exchange, identity lookup, and token refresh.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/modercon/auth-front/internal/config"
	"github.com/modercon/auth-front/internal/emailutil"
	"github.com/modercon/auth-front/internal/ioutil"
	"github.com/modercon/auth-front/internal/log"
)

// TokenPair is the provider-token half of a login: the access token with its
// remaining lifetime, plus the refresh token if the provider issued one
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TTL          time.Duration
}

// Client runs the OAuth flows against one configured provider
type Client struct {
	cfg        config.ProviderConfig
	httpClient *http.Client
}

// NewClient creates a provider client
func NewClient(cfg config.ProviderConfig) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name returns the configured provider name
func (c *Client) Name() string {
	return c.cfg.Name
}

// Configured reports whether client credentials are present. Without them
// login endpoints answer 500 instead of starting a flow that cannot finish.
func (c *Client) Configured() bool {
	return c.cfg.ClientID != "" && c.cfg.ClientSecret != ""
}

func (c *Client) oauth2Config(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: string(c.cfg.ClientSecret),
		RedirectURL:  redirectURI,
		Scopes:       []string{c.cfg.Scope},
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.cfg.AuthURL,
			TokenURL:  c.cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthCodeURL builds the provider authorization URL for a login attempt
func (c *Client) AuthCodeURL(state, redirectURI string) string {
	return c.oauth2Config(redirectURI).AuthCodeURL(state)
}

// Exchange trades an authorization code for provider tokens. redirectURI must
// match the one used in the authorization request.
func (c *Client) Exchange(ctx context.Context, code, redirectURI string) (*TokenPair, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := c.oauth2Config(redirectURI).Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}
	return pairFromToken(token), nil
}

// Refresh obtains a new access token using the refresh_token grant
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	src := c.oauth2Config("").TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("refreshing access token: %w", err)
	}
	pair := pairFromToken(token)
	if pair.RefreshToken == refreshToken {
		// Provider did not rotate it, nothing to rewrite
		pair.RefreshToken = ""
	}
	return pair, nil
}

// Identity resolves the email behind an access token
func (c *Client) Identity(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.IdentityURL+"?format=json", nil)
	if err != nil {
		return "", fmt.Errorf("building identity request: %w", err)
	}
	req.Header.Set("Authorization", "OAuth "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching identity: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := ioutil.ReadLimited(resp.Body, 4096)
		log.LogWarnWithFields("provider", "identity request failed", map[string]any{
			"provider": c.cfg.Name,
			"status":   resp.StatusCode,
		})
		return "", &StatusError{Status: resp.StatusCode, Body: body}
	}

	var identity struct {
		Email        string `json:"email"`
		DefaultEmail string `json:"default_email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return "", fmt.Errorf("decoding identity response: %w", err)
	}

	email := identity.Email
	if email == "" {
		email = identity.DefaultEmail
	}
	if email == "" {
		return "", ErrNoEmail
	}
	return emailutil.Normalize(email), nil
}

func pairFromToken(token *oauth2.Token) *TokenPair {
	pair := &TokenPair{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if !token.Expiry.IsZero() {
		pair.TTL = time.Until(token.Expiry)
	}
	return pair
}
