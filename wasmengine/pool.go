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
	"sync/atomic"

	"github.com/nabbar/golib/errors"
)

// ContextPool hands out HTTPContext values for a single compiled module,
// reusing freed contexts instead of allocating one per request.
type ContextPool struct {
	mu       sync.Mutex
	caps     Capabilities
	rootID   int32
	free     []*HTTPContext
	nextID   atomic.Int32
	inFlight map[int32]*HTTPContext
	maxSize  int
}

// NewContextPool creates a pool bound to a module's root context id and
// capability set. maxSize bounds how many contexts may be in flight at
// once; 0 means unbounded.
func NewContextPool(rootID int32, caps Capabilities, maxSize int) *ContextPool {
	p := &ContextPool{
		caps:     caps,
		rootID:   rootID,
		inFlight: make(map[int32]*HTTPContext),
		maxSize:  maxSize,
	}
	p.nextID.Store(1)
	return p
}

// Acquire returns a fresh or recycled HTTPContext, or
// ErrorContextPoolExhausted once maxSize in-flight contexts are held.
func (p *ContextPool) Acquire() (*HTTPContext, errors.Error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.maxSize > 0 && len(p.inFlight) >= p.maxSize {
		return nil, ErrorContextPoolExhausted.Error(nil)
	}

	var ctx *HTTPContext
	if n := len(p.free); n > 0 {
		ctx = p.free[n-1]
		p.free = p.free[:n-1]
		ctx.Reset()
	} else {
		id := p.nextID.Add(1) - 1
		ctx = NewHTTPContext(id, p.rootID, p.caps)
	}

	p.inFlight[ctx.ContextID] = ctx
	return ctx, nil
}

// Release returns a finished context to the free list for reuse.
func (p *ContextPool) Release(ctx *HTTPContext) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.inFlight, ctx.ContextID)
	p.free = append(p.free, ctx)
}

// Lookup finds an in-flight context by id, for resuming an async host
// call (HTTP call response, gRPC call response, tick) against the
// correct request state.
func (p *ContextPool) Lookup(contextID int32) (*HTTPContext, errors.Error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, ok := p.inFlight[contextID]
	if !ok {
		return nil, ErrorUnknownContext.Error(nil)
	}
	return ctx, nil
}

// InFlight reports how many contexts are currently checked out.
func (p *ContextPool) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inFlight)
}
