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

package config

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/nabbar/golib/errors"
	"github.com/nabbar/golib/logger"

	"github/sabouaram/golib/backend"
	"github/sabouaram/golib/buffering"
	"github/sabouaram/golib/routing"
	"github/sabouaram/golib/security"
	"github/sabouaram/golib/upstream"
	"github/sabouaram/golib/wasmengine"
)

// RouteEntry pairs a compiled Backend with the route it came from, at the
// same index routing.Table.Match resolves against, plus the wasm instances
// bound to it in declaration order.
type RouteEntry struct {
	Name    string
	Backend backend.Backend
	Wasm    []*wasmengine.Instance
}

// Snapshot is the fully compiled, immutable result of one configuration
// load: a route table and its parallel backend list, every named upstream
// group, the default buffering policy and the four security components.
// A Manager never mutates a Snapshot after Build returns it; a reload
// always builds a brand new one and swaps the pointer.
type Snapshot struct {
	Table     *routing.Table
	Routes    []RouteEntry
	Upstreams map[string]*upstream.Group

	Buffering buffering.Options

	ACL         *security.ACL
	RateLimiter *security.RateLimiter
	MethodGuard *security.MethodGuard
	Reporter    *security.Reporter

	Wasm *wasmengine.Engine

	Server ServerConfig
	TLS    TLSConfig
}

// Close releases everything a Snapshot owns that outlives a single request
// (right now, only the wasm runtime). Manager never calls it, neither on the
// Snapshot a Reload replaces nor on the live one; it is not safe to call
// while requests may still be dispatching through it.
func (s *Snapshot) Close(ctx context.Context) error {
	if s.Wasm == nil {
		return nil
	}
	return s.Wasm.Close(ctx)
}

// Build compiles a parsed File into a Snapshot. Any error aborts the whole
// build; Build never returns a partially populated Snapshot. log receives
// wasm module log/error output, if any module is configured; it may be nil.
func Build(ctx context.Context, f *File, log logger.FuncLog) (*Snapshot, errors.Error) {
	upstreams, uerr := buildUpstreams(f.Upstreams)
	if uerr != nil {
		return nil, uerr
	}

	engine := wasmengine.NewEngine(ctx)
	modules, werr := buildWasm(ctx, engine, log, f.Wasm)
	if werr != nil {
		_ = engine.Close(ctx)
		return nil, werr
	}

	conditions := make([]routing.Condition, 0, len(f.Routes))
	entries := make([]RouteEntry, 0, len(f.Routes))

	for _, rt := range f.Routes {
		conditions = append(conditions, routing.Condition{
			Host:    rt.Match.Host,
			Path:    rt.Match.Path,
			Methods: rt.Match.Methods,
			Headers: rt.Match.Headers,
			Query:   rt.Match.Query,
			CIDRs:   rt.Match.CIDRs,
		})

		be, berr := buildBackend(rt.Backend, upstreams, f.Buffering)
		if berr != nil {
			_ = engine.Close(ctx)
			return nil, berr
		}

		var bound []*wasmengine.Instance
		for _, name := range rt.Wasm {
			inst, ok := modules[name]
			if !ok {
				_ = engine.Close(ctx)
				return nil, ErrorBuildWasm.Error(nil)
			}
			bound = append(bound, inst)
		}

		entries = append(entries, RouteEntry{Name: rt.Name, Backend: be, Wasm: bound})
	}

	table, terr := routing.NewTable(conditions)
	if terr != nil {
		_ = engine.Close(ctx)
		return nil, ErrorBuildRoutes.Error(terr)
	}

	acl, aerr := security.NewACL(f.Security.ACL)
	if aerr != nil {
		_ = engine.Close(ctx)
		return nil, ErrorBuildSecurity.Error(aerr)
	}
	guard, gerr := security.NewMethodGuard(f.Security.MethodGuard)
	if gerr != nil {
		_ = engine.Close(ctx)
		return nil, ErrorBuildSecurity.Error(gerr)
	}

	return &Snapshot{
		Table:       table,
		Routes:      entries,
		Upstreams:   upstreams,
		Buffering:   f.Buffering,
		ACL:         acl,
		RateLimiter: security.NewRateLimiter(f.Security.RateLimit),
		MethodGuard: guard,
		Reporter:    security.NewReporter(f.Security.Reporting),
		Wasm:        engine,
		Server:      f.Server,
		TLS:         f.TLS,
	}, nil
}

func buildUpstreams(cfgs []UpstreamConfig) (map[string]*upstream.Group, errors.Error) {
	groups := make(map[string]*upstream.Group, len(cfgs))

	for _, u := range cfgs {
		algo, aerr := parseAlgorithm(u.Algorithm)
		if aerr != nil {
			return nil, aerr
		}

		specs := make([]upstream.ServerSpec, 0, len(u.Servers))
		for _, s := range u.Servers {
			specs = append(specs, upstream.ServerSpec{Address: s.Address, Weight: s.Weight})
		}

		grp, gerr := upstream.NewGroup(specs, algo)
		if gerr != nil {
			return nil, ErrorBuildUpstream.Error(gerr)
		}
		groups[u.Name] = grp
	}

	return groups, nil
}

func parseAlgorithm(name string) (upstream.Algorithm, errors.Error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "round_robin":
		return upstream.RoundRobin, nil
	case "least_connections":
		return upstream.LeastConnections, nil
	case "ip_hash":
		return upstream.IPHash, nil
	case "weighted_round_robin":
		return upstream.WeightedRoundRobin, nil
	case "weighted_least_connections":
		return upstream.WeightedLeastConnections, nil
	}
	return 0, ErrorUnknownAlgorithm.Error(nil)
}

func buildBackend(cfg BackendConfig, upstreams map[string]*upstream.Group, defaultBuf buffering.Options) (backend.Backend, errors.Error) {
	buf := defaultBuf
	if cfg.Buffering != nil {
		buf = *cfg.Buffering
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "proxy":
		if cfg.Proxy == nil {
			return backend.Backend{}, ErrorBuildBackend.Error(nil)
		}
		grp, ok := upstreams[cfg.Proxy.Upstream]
		if !ok {
			return backend.Backend{}, ErrorBuildBackend.Error(nil)
		}
		scheme := cfg.Proxy.Scheme
		if scheme == "" {
			scheme = "http"
		}
		return backend.Backend{
			Kind: backend.KindProxy,
			Proxy: &backend.ProxyBackend{
				Group:         grp,
				Scheme:        scheme,
				TargetRewrite: buildRewrite(cfg.Proxy.StripPrefix, cfg.Proxy.AddPrefix),
				Client:        httpClientFor(cfg.Proxy.ClientTimeout),
			},
			BufferOptions: buf,
		}, nil

	case "memory_file":
		if cfg.MemoryFile == nil {
			return backend.Backend{}, ErrorBuildBackend.Error(nil)
		}
		data, err := os.ReadFile(cfg.MemoryFile.File)
		if err != nil {
			return backend.Backend{}, ErrorBuildBackend.Error(err)
		}
		return backend.Backend{
			Kind: backend.KindMemoryFile,
			MemoryFile: &backend.MemoryFileBackend{
				Bytes: data,
				MIME:  cfg.MemoryFile.MIME,
				ETag:  cfg.MemoryFile.ETag,
			},
			BufferOptions: buf,
		}, nil

	case "send_file":
		if cfg.SendFile == nil {
			return backend.Backend{}, ErrorBuildBackend.Error(nil)
		}
		sec := backend.DefaultPathSecurityConfig()
		if cfg.PathSecure != nil {
			sec = *cfg.PathSecure
		}
		return backend.Backend{
			Kind: backend.KindSendFile,
			SendFile: &backend.SendFileBackend{
				BasePath:     cfg.SendFile.BasePath,
				IsDir:        cfg.SendFile.IsDir,
				IndexName:    cfg.SendFile.IndexName,
				PathSecurity: sec,
			},
			BufferOptions: buf,
		}, nil

	case "redirect":
		if cfg.Redirect == nil {
			return backend.Backend{}, ErrorBuildBackend.Error(nil)
		}
		return backend.Backend{
			Kind: backend.KindRedirect,
			Redirect: &backend.RedirectBackend{
				URLTemplate:  cfg.Redirect.URLTemplate,
				StatusCode:   cfg.Redirect.StatusCode,
				PreservePath: cfg.Redirect.PreservePath,
			},
		}, nil
	}

	return backend.Backend{}, ErrorUnknownBackendKind.Error(nil)
}

// httpClientFor returns a client with timeout applied, or http.DefaultClient
// when none is configured so proxy backends share one connection pool by
// default.
func httpClientFor(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		return http.DefaultClient
	}
	return &http.Client{Timeout: timeout}
}

// buildRewrite compiles a strip/add prefix pair into the TargetRewrite
// closure ProxyBackend calls on the outbound path; nil when neither is set
// so Dispatch's "nil leaves it unchanged" contract still holds.
func buildRewrite(strip, add string) func(string) string {
	if strip == "" && add == "" {
		return nil
	}
	return func(path string) string {
		if strip != "" {
			path = strings.TrimPrefix(path, strip)
			if !strings.HasPrefix(path, "/") {
				path = "/" + path
			}
		}
		return add + path
	}
}
