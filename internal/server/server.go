// Package server assembles the broker's HTTP surface.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/modercon/auth-front/internal/backend"
	"github.com/modercon/auth-front/internal/config"
	"github.com/modercon/auth-front/internal/cookie"
	"github.com/modercon/auth-front/internal/json"
	"github.com/modercon/auth-front/internal/log"
	"github.com/modercon/auth-front/internal/mailbox"
	"github.com/modercon/auth-front/internal/provider"
	"github.com/modercon/auth-front/internal/state"
)

// NewRouter builds the full route table
func NewRouter(cfg *config.Config) http.Handler {
	jar := cookie.NewJar(cfg.Provider.Name)
	states := state.NewStore(jar)
	prov := provider.NewClient(cfg.Provider)
	back := backend.NewClient(cfg.Backend, cfg.Provider.Name)

	auth := NewAuthHandlers(cfg, prov, back, jar, states)

	r := chi.NewRouter()
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		json.Write(w, map[string]string{"status": "ok"})
	})

	r.Get("/login-start", auth.Login)
	r.Get("/oauth-callback", auth.Callback)
	r.Post("/logout", auth.Logout)
	r.Get("/api/auth/status", auth.Status)

	if cfg.Provider.MailAPIURL != "" {
		mail := NewMailboxHandlers(prov, mailbox.NewClient(cfg.Provider.MailAPIURL), jar)
		r.Get("/api/mailbox/messages", mail.List)
	}

	return r
}

// HTTPServer wraps http.Server with lifecycle management
type HTTPServer struct {
	server *http.Server
}

// NewHTTPServer creates the broker's HTTP server
func NewHTTPServer(addr string, handler http.Handler) *HTTPServer {
	return &HTTPServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start serves until the listener closes. Returns nil on graceful shutdown.
func (s *HTTPServer) Start() error {
	log.LogInfoWithFields("server", "listening", map[string]any{
		"addr": s.server.Addr,
	})
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully
func (s *HTTPServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
