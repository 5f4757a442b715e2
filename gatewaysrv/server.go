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
	"fmt"
	"net/http"
	"time"

	"github.com/nabbar/golib/errors"

	"github/sabouaram/golib/config"
	"github/sabouaram/golib/http3edge"
)

// Server ties together every listener this gateway exposes on top of one
// shared Pipeline handler: a plaintext HTTP reactor (if config.ServerConfig
// names a port), a TLS reactor for HTTP/1.1+HTTP/2, an HTTP/3 listener when
// the TLS config advertises "h3", and the Prometheus metrics endpoint.
// Every listener reads the same config.Manager, so a hot reload updates
// all of them at once with no restart.
type Server struct {
	mgr      *config.Manager
	pipeline *Pipeline

	plain *Reactor
	tls   *Reactor
	h3    *http3edge.Server

	metricsAddr string
	metricsSrv  *http.Server
}

// NewServer builds a Server from mgr's current snapshot. The TLS
// certificate and worker count are read once, at construction: picking up
// a changed cert file or worker count requires restarting the process,
// same as the teacher's own httpserver lifecycle — only route/backend/
// security/wasm changes apply without a restart, via Pipeline reading
// mgr.Current() fresh per request.
func NewServer(mgr *config.Manager, metricsAddr string) (*Server, errors.Error) {
	snap := mgr.Current()
	if snap == nil {
		return nil, ErrorNoTLSCertificate.Error(nil)
	}

	pipeline := NewPipeline(mgr)
	srv := &Server{mgr: mgr, pipeline: pipeline, metricsAddr: metricsAddr}

	workers := snap.Server.Workers
	if workers < 1 {
		workers = 1
	}

	if snap.Server.HTTPPort > 0 {
		srv.plain = NewReactor(fmt.Sprintf(":%d", snap.Server.HTTPPort), nil, pipeline, workers)
	}

	if snap.Server.HTTPSPort > 0 {
		tlsCfg, terr := buildTLSConfig(snap.TLS)
		if terr != nil {
			return nil, terr
		}
		srv.tls = NewReactor(fmt.Sprintf(":%d", snap.Server.HTTPSPort), tlsCfg, pipeline, workers)

		if hasProto(snap.TLS.ALPN, "h3") {
			h3Cfg := http3edge.Config{
				Addr:           fmt.Sprintf(":%d", snap.Server.HTTPSPort),
				TLSConfig:      tlsCfg,
				Handler:        pipeline,
				AdvertisePort:  snap.Server.HTTPSPort,
				MaxIdleTimeout: 30 * time.Second,
			}
			h3, herr := http3edge.New(h3Cfg)
			if herr != nil {
				return nil, herr
			}
			srv.h3 = h3
		}
	}

	return srv, nil
}

// buildTLSConfig loads the configured certificate/key pair directly via the
// standard library rather than the teacher's certificates package: this
// gateway only ever needs one key pair plus a literal ALPN list, and
// certificates' PKI/rotation/multi-store machinery has no caller here.
func buildTLSConfig(tc config.TLSConfig) (*tls.Config, errors.Error) {
	if tc.CertFile == "" || tc.KeyFile == "" {
		return nil, ErrorNoTLSCertificate.Error(nil)
	}

	cert, err := tls.LoadX509KeyPair(tc.CertFile, tc.KeyFile)
	if err != nil {
		return nil, ErrorNoTLSCertificate.Error(err)
	}

	alpn := tc.ALPN
	if len(alpn) == 0 {
		alpn = []string{"h2", "http/1.1"}
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   alpn,
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func hasProto(protos []string, want string) bool {
	for _, p := range protos {
		if p == want {
			return true
		}
	}
	return false
}

// Start binds every configured listener. It returns the first bind error
// encountered; listeners started before the failure are left running and
// should be torn down via Shutdown by the caller.
func (s *Server) Start() errors.Error {
	if s.plain != nil {
		if err := s.plain.Start(); err != nil {
			return err
		}
	}
	if s.tls != nil {
		if err := s.tls.Start(); err != nil {
			return err
		}
	}
	if s.h3 != nil {
		if err := s.h3.Start(); err != nil {
			return err
		}
		if s.tls != nil {
			altSvc := make(http.Header)
			_ = s.h3.SetAltSvc(altSvc)
		}
	}
	if s.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/__metrics", MetricsHandler())
		s.metricsSrv = &http.Server{Addr: s.metricsAddr, Handler: mux}
		go func() { _ = s.metricsSrv.ListenAndServe() }()
	}
	return nil
}

// Shutdown drains every listener for at most timeout, then releases the
// most recent config snapshot's wasm engine.
func (s *Server) Shutdown(timeout time.Duration) errors.Error {
	var first errors.Error

	if s.plain != nil {
		if err := s.plain.Shutdown(timeout); err != nil && first == nil {
			first = err
		}
	}
	if s.tls != nil {
		if err := s.tls.Shutdown(timeout); err != nil && first == nil {
			first = err
		}
	}
	if s.h3 != nil {
		if err := s.h3.Shutdown(timeout); err != nil && first == nil {
			first = err
		}
	}
	if s.metricsSrv != nil {
		_ = s.metricsSrv.Close()
	}

	if snap := s.mgr.Current(); snap != nil {
		_ = snap.Close(context.Background())
	}

	return first
}
