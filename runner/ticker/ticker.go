/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
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

// Package ticker runs a function on a fixed interval until stopped, collecting
// any errors it returns into a pool instead of letting them interrupt the
// loop.
package ticker

import (
	"context"
	"sync"
	"time"

	"github.com/nabbar/golib/errors/pool"
)

// Func is the periodic work a Ticker runs on every tick.
type Func func(ctx context.Context, tck *time.Ticker) error

// Ticker runs Func on a fixed interval in the background.
type Ticker interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Restart(ctx context.Context) error
	IsRunning() bool
	Uptime() time.Duration

	ErrorsLast() error
	ErrorsList() []error
}

type tck struct {
	mu       sync.Mutex
	interval time.Duration
	fn       Func
	errs     pool.Pool

	cancel  context.CancelFunc
	started time.Time
	running bool
	done    chan struct{}
}

// New creates a Ticker that calls fn every d. A nil fn is replaced with a
// no-op that returns nil so Start never panics on a misconfigured caller.
func New(d time.Duration, fn Func) Ticker {
	if fn == nil {
		fn = func(context.Context, *time.Ticker) error { return nil }
	}
	return &tck{interval: d, fn: fn, errs: pool.New()}
}

func (t *tck) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return nil
	}

	t.errs.Clear()
	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.started = timeNow()
	t.running = true
	t.done = make(chan struct{})

	go t.loop(runCtx, t.done)
	return nil
}

func (t *tck) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	interval := t.interval
	if interval <= 0 {
		interval = time.Millisecond
	}
	rt := time.NewTicker(interval)
	defer rt.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-rt.C:
			if err := t.fn(ctx, rt); err != nil {
				t.errs.Add(err)
			}
		}
	}
}

func (t *tck) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return nil
	}
	cancel := t.cancel
	done := t.done
	t.running = false
	t.mu.Unlock()

	cancel()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (t *tck) Restart(ctx context.Context) error {
	if err := t.Stop(ctx); err != nil {
		return err
	}
	return t.Start(ctx)
}

func (t *tck) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *tck) Uptime() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return 0
	}
	return timeNow().Sub(t.started)
}

func (t *tck) ErrorsLast() error { return t.errs.Last() }

func (t *tck) ErrorsList() []error { return t.errs.Slice() }

// timeNow is split out purely so tests could substitute it; production code
// always uses the wall clock.
func timeNow() time.Time { return time.Now() }
