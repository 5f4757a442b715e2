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

package http2core

import (
	"context"
	"net"
	"sync"
	"time"

	"golang.org/x/net/http2"

	"github.com/nabbar/golib/errors"
)

// ConnConfig governs how the pool dials and bounds each backend connection.
type ConnConfig struct {
	DialTimeout          time.Duration
	MaxConcurrentStreams uint32
	ReadIdleTimeout      time.Duration
	PingTimeout          time.Duration
}

// DefaultConnConfig matches the settings RFC 7540 §6.5.2 recommends a
// well-behaved peer start from.
func DefaultConnConfig() ConnConfig {
	return ConnConfig{
		DialTimeout:          5 * time.Second,
		MaxConcurrentStreams: 100,
		ReadIdleTimeout:      30 * time.Second,
		PingTimeout:          10 * time.Second,
	}
}

// Pool multiplexes h2c (HTTP/2 prior-knowledge cleartext) connections to
// backend addresses: one shared *http2.Transport for dialing, and one
// cached *http2.ClientConn per address, reused across requests the way
// the gateway's upstream selection reuses TCP connections for HTTP/1.1
// backends.
type Pool struct {
	mu   sync.Mutex
	cfg  ConnConfig
	t    *http2.Transport
	conn map[string]*http2.ClientConn
}

// NewPool creates an empty connection pool.
func NewPool(cfg ConnConfig) *Pool {
	return &Pool{
		cfg: cfg,
		t: &http2.Transport{
			AllowHTTP:       true,
			ReadIdleTimeout: cfg.ReadIdleTimeout,
			PingTimeout:     cfg.PingTimeout,
		},
		conn: make(map[string]*http2.ClientConn),
	}
}

// ClientConn returns the pooled *http2.ClientConn for address, dialing and
// performing the h2c handshake on first use. A connection that can no
// longer take new requests (GOAWAY received, stream-id space exhausted) is
// transparently redialed.
func (p *Pool) ClientConn(ctx context.Context, address string) (*http2.ClientConn, errors.Error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cc, ok := p.conn[address]; ok && cc.CanTakeNewRequest() {
		return cc, nil
	}

	d := net.Dialer{Timeout: p.cfg.DialTimeout}
	nc, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, ErrorDialFailed.Error(err)
	}

	cc, err := p.t.NewClientConn(nc)
	if err != nil {
		_ = nc.Close()
		return nil, ErrorDialFailed.Error(err)
	}

	p.conn[address] = cc
	return cc, nil
}

// State reports the connection-level bookkeeping golang.org/x/net/http2
// tracks for an address's pooled connection: active/pending/reserved
// stream counts and whether it is closing. ok is false if no connection
// has been dialed yet.
func (p *Pool) State(address string) (state http2.ClientConnState, ok bool) {
	p.mu.Lock()
	cc, found := p.conn[address]
	p.mu.Unlock()
	if !found {
		return http2.ClientConnState{}, false
	}
	return cc.State(), true
}

// CanDial reports whether address has headroom for another stream under
// the pool's configured concurrency bound.
func (p *Pool) CanDial(address string) errors.Error {
	state, ok := p.State(address)
	if !ok {
		return nil
	}
	if state.Closed || state.Closing {
		return ErrorConnectionClosed.Error(nil)
	}
	if state.StreamsActive >= p.cfg.MaxConcurrentStreams {
		return ErrorStreamLimitReached.Error(nil)
	}
	return nil
}

// Close tears down every pooled connection.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for addr, cc := range p.conn {
		_ = cc.Close()
		delete(p.conn, addr)
	}
}
