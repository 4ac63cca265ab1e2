// Package origin resolves the browser-facing origin of a request and
// normalizes loopback hosts so OAuth redirect URIs stay consistent across
// 127.0.0.1 and localhost.
package origin

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

// Origin is the scheme and host the browser used to reach us
type Origin struct {
	Scheme string
	Host   string
}

// Resolve determines the request origin, honoring X-Forwarded-Proto when the
// broker sits behind a TLS-terminating proxy
func Resolve(r *http.Request) Origin {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "https" {
		scheme = "https"
	}
	return Origin{Scheme: scheme, Host: r.Host}
}

// URL renders the origin as a base URL without trailing slash
func (o Origin) URL() string {
	return o.Scheme + "://" + o.Host
}

// IsLoopback reports whether host (with optional port) refers to the local
// machine by name or address
func IsLoopback(host string) bool {
	h := hostname(host)
	if strings.EqualFold(h, "localhost") {
		return true
	}
	if ip := net.ParseIP(h); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// CanonicalHost maps loopback addresses to the "localhost" spelling, keeping
// any port. The second return reports whether the host changed.
func CanonicalHost(host string) (string, bool) {
	h, port := splitHostPort(host)
	if strings.EqualFold(h, "localhost") {
		return host, false
	}
	ip := net.ParseIP(h)
	if ip == nil || !ip.IsLoopback() {
		return host, false
	}
	if port == "" {
		return "localhost", true
	}
	return net.JoinHostPort("localhost", port), true
}

// RedirectURI picks the OAuth redirect URI for this request. The configured
// URI wins unless it points at loopback while the request arrived on a real
// host, in which case the request origin takes over so the provider sends the
// browser back to where it actually is.
func RedirectURI(o Origin, configured, callbackPath string) string {
	if configured != "" {
		u, err := url.Parse(configured)
		if err == nil && !(IsLoopback(u.Host) && !IsLoopback(o.Host)) {
			return configured
		}
	}
	return o.URL() + callbackPath
}

func hostname(host string) string {
	h, _ := splitHostPort(host)
	return h
}

func splitHostPort(host string) (string, string) {
	h, port, err := net.SplitHostPort(host)
	if err != nil {
		return host, ""
	}
	return h, port
}
