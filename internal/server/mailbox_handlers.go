package server

import (
	"net/http"
	"strconv"

	"github.com/modercon/auth-front/internal/cookie"
	"github.com/modercon/auth-front/internal/json"
	"github.com/modercon/auth-front/internal/log"
	"github.com/modercon/auth-front/internal/mailbox"
	"github.com/modercon/auth-front/internal/provider"
)

const defaultMessageLimit = 25

// MailboxHandlers serves mailbox data through the provider, refreshing the
// access token on the fly when it has expired
type MailboxHandlers struct {
	provider *provider.Client
	mailbox  *mailbox.Client
	jar      *cookie.Jar
}

// NewMailboxHandlers wires the mailbox endpoints
func NewMailboxHandlers(prov *provider.Client, mail *mailbox.Client, jar *cookie.Jar) *MailboxHandlers {
	return &MailboxHandlers{provider: prov, mailbox: mail, jar: jar}
}

// List returns recent mailbox messages for the signed-in user
func (h *MailboxHandlers) List(w http.ResponseWriter, r *http.Request) {
	access := h.jar.Get(r, h.jar.AccessName())
	if access == "" {
		json.WriteUnauthorized(w, "Not authenticated")
		return
	}

	limit := defaultMessageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			json.WriteBadRequest(w, "limit must be between 1 and 200")
			return
		}
		limit = n
	}

	pair := provider.TokenPair{
		AccessToken:  access,
		RefreshToken: h.jar.Get(r, h.jar.RefreshName()),
	}

	var messages []mailbox.Message
	fresh, err := h.provider.WithRefresh(r.Context(), pair, func(token string) error {
		var callErr error
		messages, callErr = h.mailbox.List(r.Context(), token, limit)
		return callErr
	})
	if err != nil {
		if provider.IsAuthError(err) {
			json.WriteUnauthorized(w, "Session expired. Please sign in again.")
			return
		}
		log.LogError("mailbox listing failed: %v", err)
		json.WriteBadGateway(w, "Mailbox is unavailable right now")
		return
	}

	// Rotated tokens are persisted only on the success response
	if fresh != nil {
		h.jar.RotateTokens(w, r, fresh.AccessToken, fresh.TTL, fresh.RefreshToken)
	}

	json.Write(w, map[string]any{"messages": messages})
}
