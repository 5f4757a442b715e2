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
	"net"
	"net/http"
	"strconv"
	"time"

	"github/sabouaram/golib/backend"
	"github/sabouaram/golib/config"
	"github/sabouaram/golib/routing"
	"github/sabouaram/golib/security"
	"github/sabouaram/golib/wasmengine"
)

// Pipeline is the single http.Handler shared by every listener (the TCP
// reactor's HTTP/1.1 and HTTP/2 workers, and http3edge's QUIC handler): it
// reads the live config.Snapshot from mgr.Current() fresh on every request,
// so a config reload takes effect for the very next request with no
// listener restart.
type Pipeline struct {
	mgr *config.Manager
}

// NewPipeline builds a Pipeline backed by mgr.
func NewPipeline(mgr *config.Manager) *Pipeline {
	return &Pipeline{mgr: mgr}
}

func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	snap := p.mgr.Current()
	if snap == nil {
		http.Error(w, "gateway not configured", http.StatusServiceUnavailable)
		return
	}

	clientIP := remoteIP(r.RemoteAddr)
	clientKey := security.ClientKey(r.RemoteAddr, r.Header.Get("X-Forwarded-For"), snap.RateLimiter.Config().TrustedProxies)

	if ip := net.ParseIP(clientIP); ip != nil && snap.ACL != nil && !snap.ACL.Allowed(ip) {
		snap.Reporter.Report(security.Event{
			EventType: security.EventACLDenied, Severity: security.SeverityMedium,
			Blocked: true, ClientIP: clientIP, Path: r.URL.Path, Method: r.Method, Time: start,
		})
		http.Error(w, "forbidden", statusFor(denialACL))
		return
	}

	if snap.MethodGuard != nil && !snap.MethodGuard.Allowed(r.Method) {
		snap.Reporter.Report(security.Event{
			EventType: security.EventMethodDenied, Severity: security.SeverityLow,
			Blocked: true, ClientIP: clientIP, Path: r.URL.Path, Method: r.Method, Time: start,
		})
		http.Error(w, "method not allowed", statusFor(denialMethod))
		return
	}

	if snap.RateLimiter != nil {
		res := snap.RateLimiter.Allow(clientKey)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
			snap.Reporter.Report(security.Event{
				EventType: security.EventRateLimited, Severity: security.SeverityMedium,
				Blocked: true, ClientIP: clientIP, Path: r.URL.Path, Method: r.Method, Time: start,
			})
			http.Error(w, "too many requests", statusFor(denialRateLimit))
			return
		}
	}

	fp := routing.Fingerprint{
		Host:      routing.NormalizeHost(r.Host),
		Path:      r.URL.Path,
		Method:    r.Method,
		Headers:   r.Header,
		Query:     r.URL.Query(),
		SourceIP:  net.ParseIP(clientIP),
		Transport: transportOf(r),
	}

	idx, ok := snap.Table.Match(fp)
	if !ok {
		http.Error(w, "no route matches this request", statusFor(denialRouteMiss))
		return
	}

	route := snap.Routes[idx]

	if len(route.Wasm) > 0 {
		if lr, handled := p.runRequestFilters(r, route.Wasm); handled {
			writeLocalResponse(w, lr)
			return
		}
	}

	rec := newRecorder(w)
	if err := backend.Dispatch(r.Context(), &route.Backend, rec, r); err != nil {
		status := statusForBackendError(err)
		rec.WriteHeader(status)
		return
	}

	if len(route.Wasm) > 0 {
		p.runResponseFilters(r, route.Wasm, rec)
	}

	recordRequestMetric(route.Name, r.Method, rec.status, time.Since(start))
}

// runRequestFilters dispatches HookRequestHeaders through every wasm
// instance bound to the route, in declaration order. A filter asking for a
// local response short-circuits the remaining filters and the backend
// entirely.
func (p *Pipeline) runRequestFilters(r *http.Request, instances []*wasmengine.Instance) (*wasmengine.LocalResponse, bool) {
	for _, inst := range instances {
		pool := inst.Pool()
		httpCtx, aerr := pool.Acquire()
		if aerr != nil {
			continue
		}
		httpCtx.SetRequest(r.Method, r.URL.RequestURI(), headerPairs(r.Header), remoteIP(r.RemoteAddr))

		_, derr := inst.Dispatch(r.Context(), wasmengine.HookRequestHeaders, httpCtx, 1, 0, true)
		if derr == nil && httpCtx.ShouldSendLocalResponse() {
			lr := httpCtx.LocalResponse
			pool.Release(httpCtx)
			return lr, true
		}
		pool.Release(httpCtx)
	}
	return nil, false
}

// runResponseFilters dispatches HookResponseHeaders through every wasm
// instance bound to the route, against the status/headers the backend
// actually produced. A filter error is not logged; its text is set as an
// X-Wasm-Error header on rec, and status and body are left unchanged.
func (p *Pipeline) runResponseFilters(r *http.Request, instances []*wasmengine.Instance, rec *recorder) {
	for _, inst := range instances {
		pool := inst.Pool()
		httpCtx, aerr := pool.Acquire()
		if aerr != nil {
			continue
		}
		httpCtx.ResponseStatus = uint32(rec.status)
		httpCtx.ResponseHeaders = headerPairs(rec.Header())

		if _, derr := inst.Dispatch(r.Context(), wasmengine.HookResponseHeaders, httpCtx, 1, 0, true); derr != nil {
			rec.Header().Set("X-Wasm-Error", derr.Error())
		}
		pool.Release(httpCtx)
	}
}

func writeLocalResponse(w http.ResponseWriter, lr *wasmengine.LocalResponse) {
	for _, h := range lr.Headers {
		w.Header().Add(h.Name, h.Value)
	}
	status := int(lr.Status)
	if status == 0 {
		status = http.StatusForbidden
	}
	w.WriteHeader(status)
	if len(lr.Body) > 0 {
		_, _ = w.Write(lr.Body)
	}
}

func headerPairs(h http.Header) []wasmengine.HeaderPair {
	out := make([]wasmengine.HeaderPair, 0, len(h))
	for name, values := range h {
		for _, v := range values {
			out = append(out, wasmengine.HeaderPair{Name: name, Value: v})
		}
	}
	return out
}

func transportOf(r *http.Request) routing.Transport {
	switch r.ProtoMajor {
	case 3:
		return routing.TransportHTTP3
	case 2:
		return routing.TransportHTTP2
	default:
		return routing.TransportHTTP1
	}
}

func remoteIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// recorder captures the status code a backend wrote, so the post-dispatch
// wasm response hook and the request metric both see it without either one
// forcing a response buffer the backend's own streaming path doesn't need.
type recorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func newRecorder(w http.ResponseWriter) *recorder {
	return &recorder{ResponseWriter: w, status: http.StatusOK}
}

func (r *recorder) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.wroteHeader = true
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(p []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(p)
}

func (d denialReason) String() string {
	switch d {
	case denialACL:
		return "acl"
	case denialRateLimit:
		return "rate_limit"
	case denialMethod:
		return "method"
	case denialRouteMiss:
		return "route_miss"
	}
	return "none"
}
