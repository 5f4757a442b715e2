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

package wasmengine

import (
	"sync"
	"time"

	"github.com/nabbar/golib/errors"
)

// storeKey identifies a suspended context by the module that owns it and
// the context id the module assigned it.
type storeKey struct {
	module    string
	contextID int32
}

// storeEntry is one parked HTTP context, retained while it has pending
// host calls outstanding or is paused awaiting a queue/tick callback.
type storeEntry struct {
	ctx      *HTTPContext
	parkedAt time.Time
}

// ContextStore is the process-wide table of contexts parked mid-request
// because a filter hook returned Pause or issued an async host call. It
// is the single piece of WASM engine state shared across workers, so
// every access goes through a RWMutex rather than per-worker ownership.
type ContextStore struct {
	mu      sync.RWMutex
	entries map[storeKey]*storeEntry
	idleTTL time.Duration
}

// NewContextStore creates a store that expires parked contexts after
// idleTTL of inactivity (a cancelled or forgotten request must not pin
// memory forever).
func NewContextStore(idleTTL time.Duration) *ContextStore {
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &ContextStore{
		entries: make(map[storeKey]*storeEntry),
		idleTTL: idleTTL,
	}
}

// Park retains ctx under (module, contextID) until Resume or Drop removes
// it, or it is reaped by Sweep after idling past idleTTL.
func (s *ContextStore) Park(module string, contextID int32, ctx *HTTPContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[storeKey{module: module, contextID: contextID}] = &storeEntry{ctx: ctx, parkedAt: time.Now()}
}

// Resume removes and returns a parked context so the engine can re-enter
// the filter hook that paused it.
func (s *ContextStore) Resume(module string, contextID int32) (*HTTPContext, errors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := storeKey{module: module, contextID: contextID}
	e, ok := s.entries[key]
	if !ok {
		return nil, ErrorUnknownContext.Error(nil)
	}
	delete(s.entries, key)
	return e.ctx, nil
}

// Drop discards a parked context without resuming it, for a request
// whose deadline expired while its filter was paused; per-context
// pending host calls are abandoned and their callbacks never fire.
func (s *ContextStore) Drop(module string, contextID int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, storeKey{module: module, contextID: contextID})
}

// Len reports how many contexts are currently parked, across all
// modules.
func (s *ContextStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Sweep drops every entry parked longer than idleTTL and returns how many
// were reaped. Intended to run periodically from a worker's tick loop.
func (s *ContextStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	reaped := 0
	for k, e := range s.entries {
		if now.Sub(e.parkedAt) > s.idleTTL {
			delete(s.entries, k)
			reaped++
		}
	}
	return reaped
}
