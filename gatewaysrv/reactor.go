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

package gatewaysrv

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/nabbar/golib/errors"

	ctxcfg "github/sabouaram/golib/context"
)

// workerStats is the per-worker state a Reactor keeps in its keyed
// context.Config, readable concurrently for introspection without any
// worker goroutine taking a lock of its own.
type workerStats struct {
	acceptedTotal int64
	startedAt     time.Time
}

// Reactor runs one logical listener (a single "host:port") as N worker
// goroutines, each with its own accept loop. On a platform with
// SO_REUSEPORT the kernel binds every worker's listener to the same port
// and load-balances new connections across them — N independent acceptors
// instead of N goroutines contending on one. Where that isn't available,
// Reactor falls back to exactly one listener shared by one Serve call.
type Reactor struct {
	addr      string
	tlsConfig *tls.Config
	handler   http.Handler
	workers   int

	state ctxcfg.Config[string]

	mu        sync.Mutex
	listeners []net.Listener
	servers   []*http.Server
	errCh     chan error
}

// NewReactor builds a Reactor for addr with workers accept loops (clamped
// to 1 when the platform cannot SO_REUSEPORT). tlsConfig may be nil for a
// plain-HTTP listener.
func NewReactor(addr string, tlsConfig *tls.Config, handler http.Handler, workers int) *Reactor {
	if workers < 1 || !reusePortSupported {
		workers = 1
	}
	return &Reactor{
		addr:      addr,
		tlsConfig: tlsConfig,
		handler:   handler,
		workers:   workers,
		state:     ctxcfg.NewConfig[string](context.Background),
	}
}

// Start binds every worker's listener and begins serving. It returns once
// all listeners are bound; Shutdown collects each worker's Serve return
// value and discards it.
func (rx *Reactor) Start() errors.Error {
	rx.mu.Lock()
	defer rx.mu.Unlock()

	lc := net.ListenConfig{Control: reusePortControl}
	rx.errCh = make(chan error, rx.workers)

	for i := 0; i < rx.workers; i++ {
		ln, err := lc.Listen(context.Background(), "tcp", rx.addr)
		if err != nil {
			rx.closeLocked()
			return ErrorListen.Error(err)
		}
		if rx.tlsConfig != nil {
			ln = tls.NewListener(ln, rx.tlsConfig)
		}

		srv := &http.Server{Handler: rx.handler}
		rx.listeners = append(rx.listeners, ln)
		rx.servers = append(rx.servers, srv)

		workerID := strconv.Itoa(i)
		rx.state.Store(workerID, &workerStats{startedAt: time.Now()})

		go func(id string, s *http.Server, l net.Listener) {
			rx.errCh <- s.Serve(l)
		}(workerID, srv, ln)
	}

	return nil
}

// Shutdown drains every worker's in-flight connections for at most timeout.
func (rx *Reactor) Shutdown(timeout time.Duration) errors.Error {
	rx.mu.Lock()
	servers := rx.servers
	n := len(servers)
	rx.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var firstErr error
	for _, s := range servers {
		if err := s.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for i := 0; i < n; i++ {
		<-rx.errCh
	}

	if firstErr != nil {
		return ErrorListen.Error(firstErr)
	}
	return nil
}

func (rx *Reactor) closeLocked() {
	for _, ln := range rx.listeners {
		_ = ln.Close()
	}
	rx.listeners = nil
	rx.servers = nil
}

// WorkerCount reports how many accept loops are actually running (after
// the reusePortSupported clamp in NewReactor).
func (rx *Reactor) WorkerCount() int {
	rx.mu.Lock()
	defer rx.mu.Unlock()
	return rx.workers
}
