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

	"github.com/cespare/xxhash/v2"
	"github.com/nabbar/golib/errors"
)

// Group is an ordered set of Servers dispatched under one Algorithm. Groups
// are immutable once built: a config reload builds a fresh Group rather than
// mutating one in place, matching the atomic-snapshot model the rest of the
// gateway follows.
type Group struct {
	servers   []*Server
	algorithm Algorithm
	rrCounter atomic.Uint64
	// slots is the weighted virtual-slot expansion: slots[i] is an index
	// into servers. Only WeightedRoundRobin selection reads it.
	slots []int
}

// NewGroup builds a Group from specs. Every element of specs becomes the
// group's fixed server list; weights are expanded into virtual slots for the
// weighted algorithms only. WeightedLeastConnections selects exactly as
// LeastConnections does: weights have no effect on it.
func NewGroup(specs []ServerSpec, algo Algorithm) (*Group, errors.Error) {
	if len(specs) == 0 {
		return nil, ErrorGroupEmpty.Error(nil)
	}

	g := &Group{algorithm: algo}
	for _, s := range specs {
		g.servers = append(g.servers, newServer(s))
	}

	switch algo {
	case RoundRobin, LeastConnections, IPHash, WeightedRoundRobin, WeightedLeastConnections:
	default:
		return nil, ErrorUnknownAlgorithm.Error(nil)
	}

	if algo == WeightedRoundRobin || algo == WeightedLeastConnections {
		for i, s := range g.servers {
			for w := 0; w < s.Spec.Weight; w++ {
				g.slots = append(g.slots, i)
			}
		}
	}

	return g, nil
}

// Servers returns the group's fixed server list, in declared order.
func (g *Group) Servers() []*Server { return g.servers }

// Select chooses a live, under-cap server according to the group's
// algorithm and returns a Lease holding an already-acquired slot.
// capPerServer is the per-server concurrency ceiling; <=0 means unbounded.
func (g *Group) Select(sourceIP string, capPerServer int64) (Lease, errors.Error) {
	switch g.algorithm {
	case LeastConnections, WeightedLeastConnections:
		return g.selectLeastConnections(capPerServer)
	case IPHash:
		return g.selectIPHash(sourceIP, capPerServer)
	default:
		return g.selectRoundRobin(capPerServer)
	}
}

func (g *Group) order() []int {
	if len(g.slots) > 0 {
		return g.slots
	}
	order := make([]int, len(g.servers))
	for i := range order {
		order[i] = i
	}
	return order
}

func (g *Group) selectRoundRobin(capPerServer int64) (Lease, errors.Error) {
	order := g.order()
	n := uint64(len(order))
	start := g.rrCounter.Add(1) - 1

	for i := uint64(0); i < n; i++ {
		idx := order[(start+i)%n]
		s := g.servers[idx]
		if g.tryAcquire(s, capPerServer) {
			return Lease{Server: s}, nil
		}
	}
	return Lease{}, g.failureCode()
}

func (g *Group) selectLeastConnections(capPerServer int64) (Lease, errors.Error) {
	var best *Server
	var bestActive int64 = -1

	for _, s := range g.servers {
		if !s.Alive() {
			continue
		}
		if capPerServer > 0 && s.Active() >= capPerServer {
			continue
		}
		a := s.Active()
		if best == nil || a < bestActive {
			best = s
			bestActive = a
		}
	}

	if best == nil {
		return Lease{}, g.failureCode()
	}
	best.acquire()
	return Lease{Server: best}, nil
}

func (g *Group) selectIPHash(sourceIP string, capPerServer int64) (Lease, errors.Error) {
	if len(g.servers) == 0 {
		return Lease{}, ErrorGroupEmpty.Error(nil)
	}

	h := xxhash.Sum64String(sourceIP)
	start := int(h % uint64(len(g.servers)))

	for i := 0; i < len(g.servers); i++ {
		s := g.servers[(start+i)%len(g.servers)]
		if g.tryAcquire(s, capPerServer) {
			return Lease{Server: s}, nil
		}
	}
	return Lease{}, g.failureCode()
}

func (g *Group) tryAcquire(s *Server, capPerServer int64) bool {
	if !s.Alive() {
		return false
	}
	if capPerServer <= 0 {
		s.acquire()
		return true
	}
	// Optimistic acquire-then-check: acquire first so the cap comparison is
	// against the post-increment count, then release if it overshot.
	if n := s.acquire(); n <= capPerServer {
		return true
	}
	s.release()
	return false
}

// failureCode distinguishes "all down" from "all saturated" for the caller's
// 502 vs backpressure handling.
func (g *Group) failureCode() errors.Error {
	for _, s := range g.servers {
		if s.Alive() {
			return ErrorAllServersSaturated.Error(nil)
		}
	}
	return ErrorAllServersDown.Error(nil)
}
