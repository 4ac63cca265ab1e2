// Package internal wires the auth-front application together.
package internal

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/modercon/auth-front/internal/config"
	"github.com/modercon/auth-front/internal/log"
	"github.com/modercon/auth-front/internal/server"
)

const shutdownTimeout = 10 * time.Second

// AuthFront is the assembled login broker
type AuthFront struct {
	cfg        *config.Config
	httpServer *server.HTTPServer
}

// New builds the broker from config
func New(cfg *config.Config) *AuthFront {
	addr := cfg.Server.Addr
	return &AuthFront{
		cfg:        cfg,
		httpServer: server.NewHTTPServer(addr, server.NewRouter(cfg)),
	}
}

// Run serves until ctx is canceled, then shuts down gracefully
func (a *AuthFront) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.httpServer.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		log.LogInfoWithFields("server", "shutting down", nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.httpServer.Stop(shutdownCtx)
	})

	return g.Wait()
}
