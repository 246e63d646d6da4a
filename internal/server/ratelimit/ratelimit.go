// Package ratelimit provides fixed-window rate limiting for HTTP endpoints.
package ratelimit

import (
	"context"
	"log"
	"net"
	"net/http"
	"strings"
	"time"
)

// Info contains information about rate limit status.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Limiter applies endpoint configurations to a FixedWindow.
type Limiter struct {
	config *Config
	window FixedWindow
	now    func() time.Time
}

// NewLimiter creates a limiter. A nil window uses a MemoryWindow with the
// configured cleanup interval.
func NewLimiter(config *Config, window FixedWindow) *Limiter {
	if config == nil {
		config = &Config{
			Enabled:         true,
			CleanupInterval: 5 * time.Minute,
			Whitelist:       make(map[string]bool),
			Blacklist:       make(map[string]bool),
		}
	}
	if window == nil {
		interval := config.CleanupInterval
		if !config.Enabled {
			interval = 0
		}
		window = NewMemoryWindow(interval)
	}

	return &Limiter{config: config, window: window, now: time.Now}
}

// Allow checks if a request from the given client is allowed for the specified endpoint.
// Returns true if allowed, false if rate limited, along with rate limit information.
// A window backend error admits the request.
func (l *Limiter) Allow(ctx context.Context, clientID, path, method string) (bool, Info) {
	if !l.config.Enabled || l.config.Whitelist[clientID] {
		return true, Info{Allowed: true}
	}

	if l.config.Blacklist[clientID] {
		return false, Info{Allowed: false}
	}

	endpointConfig := MatchEndpoint(path, method, l.config.EndpointConfigs)
	if endpointConfig == nil || endpointConfig.Limit <= 0 {
		return true, Info{Allowed: true}
	}

	// One bucket per client and configured endpoint, so "/messages" and
	// "/messages/" count together.
	key := clientID + ":" + endpointConfig.Method + ":" + endpointConfig.Path
	decision, err := l.window.Admit(ctx, key, endpointConfig.Limit, endpointConfig.Window)
	if err != nil {
		log.Printf("[rate-limit] window backend failed, admitting %s: %v", clientID, err)
		return true, Info{Allowed: true}
	}

	var retryAfter time.Duration
	if !decision.Allowed {
		retryAfter = decision.ResetAt.Sub(l.now())
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
	}

	return decision.Allowed, Info{
		Allowed:    decision.Allowed,
		Limit:      decision.Limit,
		Remaining:  decision.Remaining(),
		ResetTime:  decision.ResetAt,
		RetryAfter: retryAfter,
	}
}

// Stop releases the window's background resources, if any.
func (l *Limiter) Stop() {
	if s, ok := l.window.(interface{ Stop() }); ok {
		s.Stop()
	}
}

// ClientID extracts the client identifier from the request: the remote IP,
// or the first X-Forwarded-For hop when trustProxy is set.
func ClientID(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
