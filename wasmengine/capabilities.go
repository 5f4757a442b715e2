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

import "strings"

// Capabilities is a module's permission set. Every field defaults to
// false: a module must be explicitly granted access to each host
// function group before it can use it.
type Capabilities struct {
	AllowLogging    bool
	AllowMetrics    bool
	AllowSharedData bool

	AllowRequestHeadersRead  bool
	AllowRequestHeadersWrite bool
	AllowRequestBodyRead     bool
	AllowRequestBodyWrite    bool

	AllowResponseHeadersRead  bool
	AllowResponseHeadersWrite bool
	AllowResponseBodyRead     bool
	AllowResponseBodyWrite    bool

	AllowSendLocalResponse bool

	AllowHTTPCalls     bool
	AllowedUpstreams   []string
	MaxHTTPCalls       int
	AllowedProperties  []string
	MaxSharedDataSize  int
	MaxExecutionTimeMs uint64
}

// DefaultCapabilities returns the deny-by-default set with only the
// resource-limit fields populated.
func DefaultCapabilities() Capabilities {
	return Capabilities{
		MaxHTTPCalls:       10,
		MaxSharedDataSize:  1048576,
		MaxExecutionTimeMs: 100,
	}
}

// Preset is a named capability bundle for common filter trust levels.
type Preset uint8

const (
	PresetMinimal Preset = iota
	PresetStandard
	PresetExtended
)

// ToCapabilities expands a preset into a concrete Capabilities value.
func (p Preset) ToCapabilities() Capabilities {
	c := DefaultCapabilities()

	switch p {
	case PresetMinimal:
		c.AllowLogging = true
		c.AllowRequestHeadersRead = true
		c.AllowResponseHeadersRead = true
		c.AllowedProperties = []string{"request.path", "request.method", "source.address"}
	case PresetStandard:
		c.AllowLogging = true
		c.AllowMetrics = true
		c.AllowRequestHeadersRead = true
		c.AllowRequestHeadersWrite = true
		c.AllowResponseHeadersRead = true
		c.AllowResponseHeadersWrite = true
		c.AllowSendLocalResponse = true
		c.AllowedProperties = []string{"request.*", "response.*", "source.address"}
	case PresetExtended:
		c.AllowLogging = true
		c.AllowMetrics = true
		c.AllowSharedData = true
		c.AllowRequestHeadersRead = true
		c.AllowRequestHeadersWrite = true
		c.AllowRequestBodyRead = true
		c.AllowRequestBodyWrite = true
		c.AllowResponseHeadersRead = true
		c.AllowResponseHeadersWrite = true
		c.AllowResponseBodyRead = true
		c.AllowResponseBodyWrite = true
		c.AllowSendLocalResponse = true
		c.AllowHTTPCalls = true
		c.AllowedProperties = []string{"*"}
	}

	return c
}

// IsPropertyAllowed checks path against the allow-list: an exact match, a
// "prefix.*" wildcard, or the catch-all "*".
func (c Capabilities) IsPropertyAllowed(path string) bool {
	if len(c.AllowedProperties) == 0 {
		return false
	}

	for _, pattern := range c.AllowedProperties {
		switch {
		case pattern == "*":
			return true
		case strings.HasSuffix(pattern, ".*") && strings.HasPrefix(path, pattern[:len(pattern)-2]):
			return true
		case pattern == path:
			return true
		}
	}

	return false
}

// IsUpstreamAllowed checks whether a module may issue an HTTP call to the
// given upstream name: calls must be enabled, and an empty allow-list
// means any upstream is reachable once calls are enabled at all.
func (c Capabilities) IsUpstreamAllowed(upstream string) bool {
	if !c.AllowHTTPCalls {
		return false
	}
	if len(c.AllowedUpstreams) == 0 {
		return true
	}
	for _, u := range c.AllowedUpstreams {
		if u == upstream {
			return true
		}
	}
	return false
}
