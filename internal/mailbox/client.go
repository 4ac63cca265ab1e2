// Package mailbox reads the moderation mailbox through the provider's mail
// API using the session's provider access token.
package mailbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/modercon/auth-front/internal/ioutil"
	"github.com/modercon/auth-front/internal/provider"
)

// Message is one mailbox entry as the provider reports it
type Message struct {
	ID      string `json:"id"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Date    string `json:"date"`
	Unread  bool   `json:"unread"`
}

// Client fetches mailbox data from the provider's mail API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a mailbox client for the given mail API base URL
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// List returns up to limit recent messages. A 401 comes back as a
// *provider.StatusError so callers can run the refresh-and-retry path.
func (c *Client) List(ctx context.Context, accessToken string, limit int) ([]Message, error) {
	url := c.baseURL + "/v1/messages?limit=" + strconv.Itoa(limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building mailbox request: %w", err)
	}
	req.Header.Set("Authorization", "OAuth "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := ioutil.ReadLimited(resp.Body, 4096)
		return nil, &provider.StatusError{Status: resp.StatusCode, Body: body}
	}

	var payload struct {
		Messages []Message `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding mailbox response: %w", err)
	}
	return payload.Messages, nil
}
