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

package wasmengine

import "sync"

// HeaderPair is a single HTTP header as the proxy-wasm ABI passes it: a
// flat name/value pair, case preserved.
type HeaderPair struct {
	Name  string
	Value string
}

// LocalResponse is the response a filter asks the gateway to send in
// place of continuing the filter chain.
type LocalResponse struct {
	Status  uint32
	Headers []HeaderPair
	Body    []byte
}

// PendingHTTPCall is an outstanding proxy_http_call dispatched on behalf
// of a filter, awaiting its async resume.
type PendingHTTPCall struct {
	Upstream string
	Headers  []HeaderPair
	Body     []byte
	TimeoutMs uint32
}

// HTTPCallResponse is the result delivered back to a filter once a
// PendingHTTPCall completes.
type HTTPCallResponse struct {
	Status  uint32
	Headers []HeaderPair
	Body    []byte
}

// Metric is one proxy_define_metric counter/gauge/histogram a module has
// registered.
type Metric struct {
	Name  string
	Kind  MetricKind
	Value uint64
}

// MetricKind mirrors the proxy-wasm ABI's three metric types.
type MetricKind uint8

const (
	MetricCounter MetricKind = iota
	MetricGauge
	MetricHistogram
)

// HTTPContext holds everything the ABI exposes for one in-flight request,
// pulled from a Pool and returned once the response finishes (or a local
// response ends the exchange early).
type HTTPContext struct {
	mu sync.Mutex

	ContextID     int32
	RootContextID int32

	RequestHeaders       []HeaderPair
	RequestBody          []byte
	RequestTrailers      []HeaderPair
	RequestPath          string
	RequestMethod        string
	RequestQuery         string
	RequestBodyComplete  bool

	ResponseStatus       uint32
	ResponseHeaders      []HeaderPair
	ResponseBody         []byte
	ResponseTrailers     []HeaderPair
	ResponseBodyComplete bool

	ClientIP string

	RequestHeadersModified   bool
	RequestBodyModified      bool
	ResponseHeadersModified  bool
	ResponseBodyModified     bool

	LocalResponse *LocalResponse

	PendingHTTPCalls   map[uint32]PendingHTTPCall
	nextHTTPCallToken  uint32
	HTTPCallResponses  map[uint32]HTTPCallResponse

	Metrics       map[int32]*Metric
	nextMetricID  int32

	CustomProperties map[string][]byte

	Capabilities Capabilities

	TickPeriodMs uint32
}

// NewHTTPContext allocates a context in its zero (pre-request) state.
func NewHTTPContext(contextID, rootContextID int32, caps Capabilities) *HTTPContext {
	return &HTTPContext{
		ContextID:         contextID,
		RootContextID:     rootContextID,
		PendingHTTPCalls:  make(map[uint32]PendingHTTPCall),
		nextHTTPCallToken: 1,
		HTTPCallResponses: make(map[uint32]HTTPCallResponse),
		Metrics:           make(map[int32]*Metric),
		nextMetricID:      1,
		CustomProperties:  make(map[string][]byte),
		Capabilities:      caps,
	}
}

// Reset clears per-request state so the context can be returned to a Pool
// and reused for a later, unrelated request. Capabilities survive reset
// since they belong to the module, not the request.
func (c *HTTPContext) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	caps := c.Capabilities
	id, root := c.ContextID, c.RootContextID
	*c = *NewHTTPContext(id, root, caps)
}

// SetRequest records the inbound request line and headers, splitting the
// query string out of path the way the ABI's :path pseudo-header does.
func (c *HTTPContext) SetRequest(method, path string, headers []HeaderPair, clientIP string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.RequestMethod = method
	c.RequestPath = path
	c.RequestHeaders = headers
	c.ClientIP = clientIP

	for i := 0; i < len(path); i++ {
		if path[i] == '?' {
			c.RequestQuery = path[i+1:]
			break
		}
	}
}

// AllocateHTTPCallToken returns the next token for a proxy_http_call,
// monotonically increasing within the context's lifetime.
func (c *HTTPContext) AllocateHTTPCallToken() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.nextHTTPCallToken
	c.nextHTTPCallToken++
	return t
}

// AllocateMetricID returns the next id for a proxy_define_metric call.
func (c *HTTPContext) AllocateMetricID() int32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextMetricID
	c.nextMetricID++
	return id
}

// HasRequestModifications reports whether a filter changed the request on
// its way to the selected backend.
func (c *HTTPContext) HasRequestModifications() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.RequestHeadersModified || c.RequestBodyModified
}

// HasResponseModifications reports whether a filter changed the response
// on its way back to the client.
func (c *HTTPContext) HasResponseModifications() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ResponseHeadersModified || c.ResponseBodyModified
}

// ShouldSendLocalResponse reports whether a filter asked to short-circuit
// the exchange with a locally generated response.
func (c *HTTPContext) ShouldSendLocalResponse() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.LocalResponse != nil
}

// TakePendingHTTPCalls drains and returns the calls queued this hook
// invocation, for the engine to actually dispatch.
func (c *HTTPContext) TakePendingHTTPCalls() map[uint32]PendingHTTPCall {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.PendingHTTPCalls
	c.PendingHTTPCalls = make(map[uint32]PendingHTTPCall)
	return out
}
