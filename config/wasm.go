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

	"github/sabouaram/golib/wasmengine"
)

// httpCaller dispatches a module's proxy_http_call as a plain outbound HTTP
// request. It treats PendingHTTPCall.Upstream as a fully-qualified URL
// rather than routing it through a named upstream.Group: Proxy-Wasm's ABI
// gives filters no host-resolution concept beyond the literal string they
// pass, so there is no group name to look up here the way ProxyBackend has
// one from its route.
type httpCaller struct {
	client *http.Client
}

func newHTTPCaller(timeout time.Duration) *httpCaller {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &httpCaller{client: &http.Client{Timeout: timeout}}
}

func (c *httpCaller) Call(ctx context.Context, call wasmengine.PendingHTTPCall) (wasmengine.HTTPCallResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, call.Upstream, strings.NewReader(string(call.Body)))
	if err != nil {
		return wasmengine.HTTPCallResponse{Status: 504}, nil
	}
	for _, h := range call.Headers {
		req.Header.Add(h.Name, h.Value)
	}

	resp, derr := c.client.Do(req)
	if derr != nil {
		return wasmengine.HTTPCallResponse{Status: 504}, nil
	}
	defer resp.Body.Close()

	out := wasmengine.HTTPCallResponse{Status: uint32(resp.StatusCode)}
	for k, vs := range resp.Header {
		for _, v := range vs {
			out.Headers = append(out.Headers, wasmengine.HeaderPair{Name: k, Value: v})
		}
	}
	return out, nil
}

func parseCapabilities(name string) wasmengine.Capabilities {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "standard":
		return wasmengine.PresetStandard.ToCapabilities()
	case "extended":
		return wasmengine.PresetExtended.ToCapabilities()
	default:
		return wasmengine.PresetMinimal.ToCapabilities()
	}
}

// buildWasm loads every configured module into engine and instantiates one
// Instance per module, keyed by module name. A module present in File.Wasm
// but never referenced by a route's Wasm list is still loaded: the reload
// contract only unloads a module once it disappears from the file
// entirely, not when the last route stops referencing it.
func buildWasm(ctx context.Context, engine *wasmengine.Engine, log logger.FuncLog, cfgs []WasmModuleConfig) (map[string]*wasmengine.Instance, errors.Error) {
	instances := make(map[string]*wasmengine.Instance, len(cfgs))

	for _, c := range cfgs {
		data, err := os.ReadFile(c.File)
		if err != nil {
			return nil, ErrorBuildWasm.Error(err)
		}

		caps := parseCapabilities(c.Capabilities)
		mod, merr := engine.LoadModule(ctx, c.Name, data, caps, []byte(c.VMConfig), []byte(c.PluginConfig))
		if merr != nil {
			return nil, ErrorBuildWasm.Error(merr)
		}

		caller := newHTTPCaller(0)
		inst, ierr := engine.NewInstance(ctx, mod, caller, log, c.MaxContexts)
		if ierr != nil {
			return nil, ErrorBuildWasm.Error(ierr)
		}

		instances[c.Name] = inst
	}

	return instances, nil
}
