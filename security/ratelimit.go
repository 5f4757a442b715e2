/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package security

import (
	"net"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig controls the per-client fixed-window limiter.
type RateLimitConfig struct {
	Enabled bool
	// MaxRequests is the number of requests a single client may make within
	// Window before further requests are rejected.
	MaxRequests int
	Window      time.Duration
	// CleanupInterval sets how often stale per-client windows are swept.
	// Zero disables the background sweep (entries still expire lazily on
	// their next Allow call).
	CleanupInterval time.Duration
	// WhitelistIPs bypass the limiter entirely, as bare addresses.
	WhitelistIPs []string
	// TrustedProxies are addresses whose X-Forwarded-For is trusted when
	// resolving the client to key the limiter on; unused when empty.
	TrustedProxies []string
}

// DefaultRateLimitConfig enables a conservative limit that is generous
// enough not to trip on normal traffic while still bounding abuse, with
// loopback addresses exempted so local health checks are never throttled.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:         true,
		MaxRequests:     100,
		Window:          time.Minute,
		CleanupInterval: 5 * time.Minute,
		WhitelistIPs:    []string{"127.0.0.1", "::1"},
	}
}

type rateWindow struct {
	count   int
	resetAt time.Time
}

// RateLimiter is a concurrency-safe, per-client fixed-window request counter.
// A window resets to zero the instant it expires rather than decaying
// gradually — simpler to reason about than a token bucket and a closer match
// to the "N requests per window, then a hard Retry-After" contract the
// gateway's X-RateLimit-* response headers advertise.
type RateLimiter struct {
	mu        sync.Mutex
	cfg       RateLimitConfig
	whitelist map[string]struct{}
	windows   map[string]*rateWindow
	stop      chan struct{}
}

// NewRateLimiter builds a limiter from cfg and, when cfg is enabled with a
// positive CleanupInterval, starts its cleanup sweep.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	r := &RateLimiter{windows: make(map[string]*rateWindow)}
	r.Reconfigure(cfg)
	return r
}

// Reconfigure atomically replaces the limiter's configuration, clears the
// whitelist and per-client windows, and restarts the cleanup sweep with the
// new interval — an in-flight sweep goroutine from a prior configuration is
// always stopped first so two sweepers never race over the same map.
func (r *RateLimiter) Reconfigure(cfg RateLimitConfig) {
	r.mu.Lock()
	if r.stop != nil {
		close(r.stop)
		r.stop = nil
	}
	wl := make(map[string]struct{}, len(cfg.WhitelistIPs))
	for _, ip := range cfg.WhitelistIPs {
		wl[ip] = struct{}{}
	}
	r.cfg = cfg
	r.whitelist = wl
	r.windows = make(map[string]*rateWindow)

	var stop chan struct{}
	if cfg.Enabled && cfg.CleanupInterval > 0 {
		stop = make(chan struct{})
		r.stop = stop
	}
	r.mu.Unlock()

	if stop != nil {
		go r.cleanupLoop(cfg.CleanupInterval, stop)
	}
}

func (r *RateLimiter) cleanupLoop(interval time.Duration, stop chan struct{}) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-t.C:
			r.sweep(now)
		}
	}
}

func (r *RateLimiter) sweep(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, w := range r.windows {
		if now.After(w.resetAt) {
			delete(r.windows, key)
		}
	}
}

// Config returns the limiter's current configuration.
func (r *RateLimiter) Config() RateLimitConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// Result carries the outcome of an Allow call, enough to populate the
// gateway's X-RateLimit-* and Retry-After response headers.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Allow registers one request from key (typically a client IP, pre-resolved
// through TrustedProxies by the caller) and reports whether it may proceed.
func (r *RateLimiter) Allow(key string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.cfg.Enabled {
		return Result{Allowed: true}
	}
	if _, ok := r.whitelist[key]; ok {
		return Result{Allowed: true, Limit: r.cfg.MaxRequests, Remaining: r.cfg.MaxRequests}
	}

	now := time.Now()
	w, ok := r.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &rateWindow{count: 0, resetAt: now.Add(r.cfg.Window)}
		r.windows[key] = w
	}

	if w.count >= r.cfg.MaxRequests {
		return Result{
			Allowed:    false,
			Limit:      r.cfg.MaxRequests,
			Remaining:  0,
			RetryAfter: w.resetAt.Sub(now),
		}
	}

	w.count++
	return Result{
		Allowed:   true,
		Limit:     r.cfg.MaxRequests,
		Remaining: r.cfg.MaxRequests - w.count,
	}
}

// IsLimited reports whether key is currently out of budget, without
// consuming a slot from its window.
func (r *RateLimiter) IsLimited(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.cfg.Enabled {
		return false
	}
	if _, ok := r.whitelist[key]; ok {
		return false
	}
	w, ok := r.windows[key]
	if !ok {
		return false
	}
	if time.Now().After(w.resetAt) {
		return false
	}
	return w.count >= r.cfg.MaxRequests
}

// Reset clears any window tracked for key.
func (r *RateLimiter) Reset(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.windows, key)
}

// ClientKey resolves the key a request should be rate-limited on: remoteAddr
// unless it appears in trustedProxies, in which case the left-most address
// in forwardedFor (the original client, per the usual X-Forwarded-For
// convention) is used instead.
func ClientKey(remoteAddr string, forwardedFor string, trustedProxies []string) string {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}

	trusted := false
	for _, p := range trustedProxies {
		if p == host {
			trusted = true
			break
		}
	}
	if !trusted || forwardedFor == "" {
		return host
	}

	first, _, _ := strings.Cut(forwardedFor, ",")
	if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
		return ip.String()
	}
	return host
}
