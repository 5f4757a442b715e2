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

package upstream

import (
	"context"
	"net/http"
	"time"

	"github/sabouaram/golib/runner/ticker"
)

// Probe is the function an active health checker runs against one server;
// it reports whether the server should be considered up.
type Probe func(ctx context.Context, s *Server) bool

// HTTPProbe builds a Probe that issues a GET to spec.Path against the
// server's address and accepts any status in spec.ExpectStatus (or any 2xx
// if the set is empty).
func HTTPProbe(client *http.Client, spec Prober) Probe {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context, s *Server) bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+s.Spec.Address+spec.Path, nil)
		if err != nil {
			return false
		}
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		defer resp.Body.Close()

		if len(spec.ExpectStatus) == 0 {
			return resp.StatusCode >= 200 && resp.StatusCode < 300
		}
		return spec.ExpectStatus[resp.StatusCode]
	}
}

// Checker runs an active Probe against every server in a Group on a fixed
// interval, driven by the same ticker idiom the rest of the codebase uses
// for background timers.
type Checker struct {
	group  *Group
	probe  Probe
	tick   ticker.Ticker
}

// NewChecker wires an active prober for g. It never touches the
// concurrency counters Select/Lease manage.
func NewChecker(g *Group, spec Prober, probe Probe) *Checker {
	c := &Checker{group: g, probe: probe}
	c.tick = ticker.New(spec.Interval, func(ctx context.Context, _ *time.Ticker) error {
		c.runOnce(ctx, spec.Timeout)
		return nil
	})
	return c
}

func (c *Checker) runOnce(ctx context.Context, timeout time.Duration) {
	for _, s := range c.group.Servers() {
		probeCtx := ctx
		var cancel context.CancelFunc
		if timeout > 0 {
			probeCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		up := c.probe(probeCtx, s)
		if cancel != nil {
			cancel()
		}
		s.setActiveHealth(up)
	}
}

// Start begins periodic probing in the background.
func (c *Checker) Start(ctx context.Context) error { return c.tick.Start(ctx) }

// Stop halts periodic probing.
func (c *Checker) Stop(ctx context.Context) error { return c.tick.Stop(ctx) }
