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
	"sync/atomic"
	"time"
)

// Algorithm selects which load-balancing strategy a Group uses.
type Algorithm uint8

const (
	RoundRobin Algorithm = iota
	LeastConnections
	IPHash
	WeightedRoundRobin
	WeightedLeastConnections
)

// ServerSpec is the static, operator-declared description of one backend
// endpoint within a group.
type ServerSpec struct {
	Address string
	Weight  int // virtual slot count for WeightedRoundRobin; <=0 treated as 1
}

// Server is the runtime state for one upstream endpoint: its static spec
// plus the atomic liveness and concurrency counters the balancer and health
// checker both read and mutate.
type Server struct {
	Spec ServerSpec

	active     atomic.Int64
	alive      atomic.Bool
	consecFail atomic.Int32
}

func newServer(spec ServerSpec) *Server {
	if spec.Weight <= 0 {
		spec.Weight = 1
	}
	s := &Server{Spec: spec}
	s.alive.Store(true)
	return s
}

// Active returns the current in-flight request count.
func (s *Server) Active() int64 { return s.active.Load() }

// Alive reports the server's current liveness flag.
func (s *Server) Alive() bool { return s.alive.Load() }

func (s *Server) acquire() int64 { return s.active.Add(1) }
func (s *Server) release()       { s.active.Add(-1) }

// reportFailure applies the passive-health rule: two consecutive qualifying
// failures mark the server unhealthy.
func (s *Server) reportFailure() {
	if s.consecFail.Add(1) >= 2 {
		s.alive.Store(false)
	}
}

// reportSuccess resets the failure streak and restores liveness.
func (s *Server) reportSuccess() {
	s.consecFail.Store(0)
	s.alive.Store(true)
}

// setActiveHealth is called only by the active prober; it never touches the
// concurrency counter.
func (s *Server) setActiveHealth(up bool) {
	s.alive.Store(up)
	if up {
		s.consecFail.Store(0)
	}
}

// Prober describes an optional active health check for a Group.
type Prober struct {
	Interval       time.Duration
	Path           string
	ExpectStatus   map[int]bool
	Timeout        time.Duration
}

// Lease is returned by Select and must be released on every exit path.
type Lease struct {
	Server *Server
}

// Release decrements the server's concurrency counter. Calling Release more
// than once on the same Lease is a caller bug; it is not guarded against, in
// keeping with the scoped-guard contract the caller is expected to hold
// (e.g. via defer immediately after Select returns).
func (l Lease) Release() {
	if l.Server != nil {
		l.Server.release()
	}
}

// ReportSuccess records a passive-health success against the leased server.
func (l Lease) ReportSuccess() {
	if l.Server != nil {
		l.Server.reportSuccess()
	}
}

// ReportFailure records a passive-health failure against the leased server.
func (l Lease) ReportFailure() {
	if l.Server != nil {
		l.Server.reportFailure()
	}
}
