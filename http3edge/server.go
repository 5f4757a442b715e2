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

package http3edge

import (
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nabbar/golib/errors"
	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
)

// Config describes one HTTP/3 listener. It mirrors the subset of
// listener settings that have a meaningful QUIC-transport equivalent; everything else (route table, backend
// dispatch, security gates) lives in the Handler the caller supplies.
type Config struct {
	// Addr is the UDP "host:port" the listener binds.
	Addr string
	// TLSConfig must advertise "h3" in NextProtos; New rejects a config
	// that doesn't.
	TLSConfig *tls.Config
	// Handler receives every HTTP/3 request as a standard *http.Request,
	// indistinguishable from one arriving over HTTP/1.1.
	Handler http.Handler
	// MaxIdleTimeout bounds how long an idle QUIC connection is kept open;
	// zero uses quic-go's own default.
	MaxIdleTimeout time.Duration
	// MaxHeaderBytes caps the decoded QPACK header block size; zero uses
	// http3's own default.
	MaxHeaderBytes int
	// AdvertisePort is written into the Alt-Svc header SetAltSvc adds to
	// responses from a sibling TCP listener; zero reuses Addr's port.
	AdvertisePort int
}

// Server runs one HTTP/3 listener. The zero value is not usable; build one
// with New.
type Server struct {
	cfg Config

	mu      sync.Mutex
	inner   *http3.Server
	errCh   chan error
	running bool
}

// New validates cfg and builds a Server ready for Start.
func New(cfg Config) (*Server, errors.Error) {
	if cfg.TLSConfig == nil || !hasALPN(cfg.TLSConfig, http3.NextProtoH3) {
		return nil, ErrorMissingTLSConfig.Error(nil)
	}
	if cfg.Handler == nil {
		return nil, ErrorMissingHandler.Error(nil)
	}

	return &Server{cfg: cfg}, nil
}

func hasALPN(cfg *tls.Config, proto string) bool {
	for _, p := range cfg.NextProtos {
		if p == proto {
			return true
		}
	}
	return false
}

// Start binds the UDP socket and begins serving in the background. It
// returns once the listener is bound; Serve runs in a background goroutine
// whose return value Shutdown waits for and discards.
func (s *Server) Start() errors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	quicCfg := &quic.Config{}
	if s.cfg.MaxIdleTimeout > 0 {
		quicCfg.MaxIdleTimeout = s.cfg.MaxIdleTimeout
	}

	s.inner = &http3.Server{
		Addr:           s.cfg.Addr,
		TLSConfig:      s.cfg.TLSConfig,
		Handler:        s.cfg.Handler,
		QUICConfig:     quicCfg,
		MaxHeaderBytes: s.cfg.MaxHeaderBytes,
		Port:           s.cfg.AdvertisePort,
	}

	udpAddr, err := net.ResolveUDPAddr("udp", s.cfg.Addr)
	if err != nil {
		return ErrorListen.Error(err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return ErrorListen.Error(err)
	}

	s.errCh = make(chan error, 1)
	s.running = true

	go func() {
		s.errCh <- s.inner.Serve(conn)
	}()

	return nil
}

// SetAltSvc writes the Alt-Svc response header a sibling TCP/TLS listener
// should add so clients learn this port advertises HTTP/3.
func (s *Server) SetAltSvc(h http.Header) errors.Error {
	s.mu.Lock()
	inner := s.inner
	s.mu.Unlock()

	if inner == nil {
		return ErrorMissingHandler.Error(nil)
	}
	if err := inner.SetQUICHeaders(h); err != nil {
		return ErrorServe.Error(err)
	}
	return nil
}

// Shutdown drains in-flight streams for at most timeout before forcing the
// listener closed.
func (s *Server) Shutdown(timeout time.Duration) errors.Error {
	s.mu.Lock()
	inner := s.inner
	errCh := s.errCh
	s.running = false
	s.mu.Unlock()

	if inner == nil {
		return nil
	}

	var err error
	if timeout > 0 {
		err = inner.CloseGracefully(timeout)
	} else {
		err = inner.Close()
	}
	if err != nil {
		return ErrorShutdown.Error(err)
	}

	if errCh != nil {
		<-errCh
	}
	return nil
}

// IsRunning reports whether Start succeeded and Shutdown has not yet run.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
