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
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github/sabouaram/golib/upstream"
)

func TestDispatch_Proxy_ForwardsAndRelays(t *testing.T) {
	upstreamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/hello" {
			t.Errorf("upstream got path %q, want /hello", r.URL.Path)
		}
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("upstream body"))
	}))
	defer upstreamSrv.Close()

	addr := strings.TrimPrefix(upstreamSrv.URL, "http://")
	group, gerr := upstream.NewGroup([]upstream.ServerSpec{{Address: addr}}, upstream.RoundRobin)
	if gerr != nil {
		t.Fatalf("NewGroup: %v", gerr)
	}

	b := &Backend{
		Kind: KindProxy,
		Proxy: &ProxyBackend{
			Group:  group,
			Scheme: "http",
			Client: upstreamSrv.Client(),
		},
	}

	r := httptest.NewRequest(http.MethodGet, "/hello", nil)
	w := httptest.NewRecorder()

	if err := Dispatch(r.Context(), b, w, r); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Body.String() != "upstream body" {
		t.Fatalf("body = %q", w.Body.String())
	}
	if got := w.Header().Get("X-Upstream"); got != "yes" {
		t.Fatalf("X-Upstream header = %q", got)
	}
}

func TestDispatch_Proxy_TargetRewrite(t *testing.T) {
	var gotPath string
	upstreamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer upstreamSrv.Close()

	addr := strings.TrimPrefix(upstreamSrv.URL, "http://")
	group, _ := upstream.NewGroup([]upstream.ServerSpec{{Address: addr}}, upstream.RoundRobin)

	b := &Backend{
		Kind: KindProxy,
		Proxy: &ProxyBackend{
			Group:  group,
			Scheme: "http",
			Client: upstreamSrv.Client(),
			TargetRewrite: func(path string) string {
				return "/rewritten" + path
			},
		},
	}

	r := httptest.NewRequest(http.MethodGet, "/original", nil)
	w := httptest.NewRecorder()

	if err := Dispatch(r.Context(), b, w, r); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if gotPath != "/rewritten/original" {
		t.Fatalf("upstream saw path %q", gotPath)
	}
}

func TestDispatch_Proxy_NoLiveServer(t *testing.T) {
	group, _ := upstream.NewGroup([]upstream.ServerSpec{{Address: "127.0.0.1:1"}}, upstream.RoundRobin)

	lease, lerr := group.Select("", 0)
	if lerr != nil {
		t.Fatalf("Select: %v", lerr)
	}
	lease.ReportFailure()
	lease.ReportFailure()
	lease.Release()

	b := &Backend{
		Kind:  KindProxy,
		Proxy: &ProxyBackend{Group: group, Scheme: "http"},
	}

	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()

	if err := Dispatch(r.Context(), b, w, r); err == nil {
		t.Fatal("expected error when every server is down")
	}
}
