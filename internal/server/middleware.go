package server

import (
	"net/http"
	"time"

	"github.com/modercon/auth-front/internal/json"
	"github.com/modercon/auth-front/internal/log"
)

type responseWriterDelegator struct {
	http.ResponseWriter
	status int
}

func (d *responseWriterDelegator) WriteHeader(code int) {
	d.status = code
	d.ResponseWriter.WriteHeader(code)
}

func (d *responseWriterDelegator) Write(b []byte) (int, error) {
	if d.status == 0 {
		d.status = http.StatusOK
	}
	return d.ResponseWriter.Write(b)
}

// loggingMiddleware records one line per request at debug level
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		delegator := &responseWriterDelegator{ResponseWriter: w}
		next.ServeHTTP(delegator, r)
		log.LogDebugWithFields("http", "request handled", map[string]any{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   delegator.status,
			"duration": time.Since(start).String(),
		})
	})
}

// recoverMiddleware turns handler panics into 500s instead of dropped
// connections
func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.LogErrorWithFields("http", "handler panic", map[string]any{
					"method": r.Method,
					"path":   r.URL.Path,
					"panic":  rec,
				})
				json.WriteInternalServerError(w, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
