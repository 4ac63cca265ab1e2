package provider

import (
	"context"

	"github.com/modercon/auth-front/internal/log"
)

// WithRefresh runs call with the pair's access token, and on a 401 refreshes
// the token and retries exactly once. The returned pair is non-nil only when
// a refresh happened and the retry succeeded, so callers know to rewrite
// token cookies. Any other failure surfaces the original error untouched.
func (c *Client) WithRefresh(ctx context.Context, pair TokenPair, call func(accessToken string) error) (*TokenPair, error) {
	err := call(pair.AccessToken)
	if err == nil {
		return nil, nil
	}
	if !IsAuthError(err) || pair.RefreshToken == "" {
		return nil, err
	}

	log.LogDebugWithFields("provider", "access token rejected, attempting refresh", map[string]any{
		"provider": c.cfg.Name,
	})

	fresh, refreshErr := c.Refresh(ctx, pair.RefreshToken)
	if refreshErr != nil {
		log.LogWarnWithFields("provider", "token refresh failed", map[string]any{
			"provider": c.cfg.Name,
			"error":    refreshErr.Error(),
		})
		return nil, err
	}

	if retryErr := call(fresh.AccessToken); retryErr != nil {
		return nil, retryErr
	}
	return fresh, nil
}
