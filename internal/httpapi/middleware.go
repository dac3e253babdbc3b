package httpapi

import (
	"net"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// Browser-facing pages authenticate client-side (token kept in
// localStorage), so they pass through the middleware when no URL token is
// present. A wrong URL token is still rejected.
var browserPaths = map[string]bool{
	"/admin":  true,
	"/qr":     true,
	"/qr.png": true,
}

// auth enforces the bearer-or-query token and the per-client rate limit.
// With no token configured everything is open.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiters.allow(clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, "rate limited")
			return
		}

		if s.cfg.Token == "" {
			next(w, r)
			return
		}

		urlToken := r.URL.Query().Get("token")
		if browserPaths[r.URL.Path] {
			if urlToken == "" || urlToken == s.cfg.Token {
				next(w, r)
				return
			}
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		token := urlToken
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimPrefix(h, "Bearer ")
		}
		if token != s.cfg.Token {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// maxTrackedClients caps the limiter map so rotating source addresses
// cannot exhaust memory.
const maxTrackedClients = 4096

// clientLimiters holds one token bucket per client address.
type clientLimiters struct {
	mu sync.Mutex
	m  map[string]*rate.Limiter
}

func newClientLimiters() *clientLimiters {
	return &clientLimiters{m: make(map[string]*rate.Limiter)}
}

func (c *clientLimiters) allow(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	lim, ok := c.m[key]
	if !ok {
		if len(c.m) >= maxTrackedClients {
			for k := range c.m {
				delete(c.m, k)
				break
			}
		}
		lim = rate.NewLimiter(rate.Limit(10), 30)
		c.m[key] = lim
	}
	return lim.Allow()
}
