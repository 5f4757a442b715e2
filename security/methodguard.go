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
	"net/http"
	"strings"
	"sync"

	"github.com/nabbar/golib/errors"
)

// MethodGuardConfig is a global HTTP method allowlist applied before a
// request fingerprint ever reaches the router's own per-route Methods
// condition. It exists as a defense-in-depth floor: even a route with no
// method condition at all never lets through a method this guard denies.
type MethodGuardConfig struct {
	Enabled bool
	Allowed []string
}

// DefaultMethodGuardConfig permits the methods any HTTP reverse proxy needs
// to pass through (including WebDAV's PATCH and CORS preflight's OPTIONS)
// while rejecting TRACE and CONNECT, the two methods most commonly abused
// for request smuggling and cross-protocol probing.
func DefaultMethodGuardConfig() MethodGuardConfig {
	return MethodGuardConfig{
		Enabled: true,
		Allowed: []string{
			http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
	}
}

// MethodGuard is a concurrency-safe, reconfigurable method allowlist.
type MethodGuard struct {
	mu      sync.RWMutex
	cfg     MethodGuardConfig
	allowed map[string]struct{}
}

// NewMethodGuard compiles cfg into a ready-to-use MethodGuard.
func NewMethodGuard(cfg MethodGuardConfig) (*MethodGuard, errors.Error) {
	g := &MethodGuard{}
	if err := g.Reconfigure(cfg); err != nil {
		return nil, err
	}
	return g, nil
}

// Reconfigure atomically replaces the allowlist.
func (g *MethodGuard) Reconfigure(cfg MethodGuardConfig) errors.Error {
	allowed := make(map[string]struct{}, len(cfg.Allowed))
	for _, m := range cfg.Allowed {
		m = strings.ToUpper(strings.TrimSpace(m))
		if m == "" {
			return ErrorInvalidMethod.Error()
		}
		allowed[m] = struct{}{}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.cfg = cfg
	g.allowed = allowed
	return nil
}

// Allowed reports whether method may proceed.
func (g *MethodGuard) Allowed(method string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.cfg.Enabled {
		return true
	}
	_, ok := g.allowed[strings.ToUpper(method)]
	return ok
}
