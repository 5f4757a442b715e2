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

package backend

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"

	"github.com/nabbar/golib/errors"

	"github/sabouaram/golib/buffering"
)

// dispatchProxy selects a live upstream from b.Proxy.Group, forwards the
// request and relays the response back through w, honoring Backend's buffer
// mode for the response body.
func dispatchProxy(ctx context.Context, b *Backend, w http.ResponseWriter, r *http.Request) errors.Error {
	p := b.Proxy

	lease, selErr := p.Group.Select(clientIP(r), 0)
	if selErr != nil {
		return ErrorUpstreamUnavailable.Error(selErr)
	}
	defer lease.Release()

	path := r.URL.Path
	if p.TargetRewrite != nil {
		path = p.TargetRewrite(path)
	}

	scheme := p.Scheme
	if scheme == "" {
		scheme = "http"
	}

	outURL := scheme + "://" + lease.Server.Spec.Address + path
	if r.URL.RawQuery != "" {
		outURL += "?" + r.URL.RawQuery
	}

	outReq, err := http.NewRequestWithContext(ctx, r.Method, outURL, r.Body)
	if err != nil {
		lease.ReportFailure()
		return ErrorUpstreamRequest.Error(err)
	}
	outReq.Header = r.Header.Clone()
	outReq.Host = r.Host

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(outReq)
	if err != nil {
		lease.ReportFailure()
		return ErrorUpstreamRequest.Error(err)
	}
	defer resp.Body.Close()

	lease.ReportSuccess()

	for k, vv := range resp.Header {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)

	return relayBody(resp.Body, resp.ContentLength, w, b.BufferOptions)
}

// clientIP extracts the dial-in address used for IPHash upstream selection.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// relayBody streams src to w under opt's buffering mode, resolving Adaptive
// against contentLength exactly as DecideMode documents.
func relayBody(src io.Reader, contentLength int64, w http.ResponseWriter, opt buffering.Options) errors.Error {
	dw := newDeadlineWriter(w)

	mode := buffering.DecideMode(modeFromOptions(opt), contentLength, opt.AdaptiveThreshold)
	if mode == buffering.Streaming {
		_, err := buffering.Stream(dw, src, opt.ClientWriteTimeout)
		return err
	}

	buf := buffering.NewBuffer(opt)
	chunk := make([]byte, 32*1024)
	var rest []byte
	for {
		n, rerr := src.Read(chunk)
		if n > 0 {
			wn, werr := buf.Write(chunk[:n])
			if werr != nil {
				return werr
			}
			if buf.IsStreamingFallback() {
				rest = chunk[wn:n]
				break
			}
		}
		if rerr != nil {
			break
		}
	}

	rc, rerr := buf.Reader()
	if rerr != nil {
		return rerr
	}
	defer rc.Close()

	var body io.Reader = rc
	if buf.IsStreamingFallback() {
		// Memory filled with no disk path: after the buffered bytes, relay the
		// unbuffered tail of the last chunk and then the rest of src directly.
		body = io.MultiReader(rc, bytes.NewReader(rest), src)
	}

	_, serr := buffering.Stream(dw, body, opt.ClientWriteTimeout)
	return serr
}

// modeFromOptions recovers the operator-configured Mode from Options; the
// gateway always fills AdaptiveThreshold when Adaptive mode is meant, and
// leaves it zero for a forced Full or Streaming choice carried separately
// by the route's own configuration. Proxy and SendFile backends both default
// to Adaptive when a threshold is present.
func modeFromOptions(opt buffering.Options) buffering.Mode {
	if opt.AdaptiveThreshold > 0 {
		return buffering.Adaptive
	}
	if opt.MaxMemoryBuffer > 0 || opt.DiskBufferPath != "" {
		return buffering.Full
	}
	return buffering.Streaming
}
