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

package routing

import (
	"net"
	"strings"
)

// Transport identifies the protocol a request fingerprint was observed over.
type Transport uint8

const (
	TransportHTTP1 Transport = iota
	TransportHTTP2
	TransportHTTP3
)

// Fingerprint is the tuple the router consumes for a single request. It is
// stable for the lifetime of the request it describes.
type Fingerprint struct {
	// Host is case-insensitive and has its port stripped.
	Host      string
	Path      string
	Method    string
	Headers   map[string][]string
	Query     map[string][]string
	SourceIP  net.IP
	Transport Transport
}

// NormalizeHost lowercases host and strips a trailing ":port", matching the
// normalization the router applies before any index lookup.
func NormalizeHost(host string) string {
	host = strings.ToLower(host)
	if i := strings.LastIndexByte(host, ':'); i >= 0 {
		// Guard against bracketed IPv6 literals ("[::1]:8443"); only strip
		// the port when the colon is not part of the address itself.
		if strings.HasPrefix(host, "[") {
			if end := strings.IndexByte(host, ']'); end >= 0 && i > end {
				return host[:i]
			}
			return host
		}
		return host[:i]
	}
	return host
}

// HeaderGet returns the canonical value set for a case-insensitive header
// name. Returns nil if the key is absent.
func (f Fingerprint) HeaderGet(name string) []string {
	if f.Headers == nil {
		return nil
	}
	for k, v := range f.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return nil
}

// Condition is a declarative predicate evaluated as a conjunction over every
// dimension it sets. A zero-value Condition matches every request (the
// default route).
type Condition struct {
	// Host is a pattern: "" (any host), an exact lowercase host, "*.suffix"
	// or "prefix.*".
	Host string
	// Path is a pattern: "" (any path), an exact path, or "prefix/*".
	Path string
	// Methods is a set of accepted HTTP methods; empty means any.
	Methods []string
	// Headers maps a header name to the set of values that satisfy the
	// condition (OR semantics within one key); comparisons are
	// case-insensitive on the name and exact on the value.
	Headers map[string][]string
	// Query maps a query key to the set of values that satisfy the
	// condition (OR semantics within one key).
	Query map[string][]string
	// CIDRs is a list of "addr/prefix" or bare address strings; the source
	// IP must fall in at least one of them.
	CIDRs []string
}

func (c Condition) hasHost() bool    { return c.Host != "" }
func (c Condition) hasPath() bool    { return c.Path != "" }
func (c Condition) hasCIDR() bool    { return len(c.CIDRs) > 0 }
func (c Condition) hasMethod() bool  { return len(c.Methods) > 0 }
func (c Condition) hasHeader() bool  { return len(c.Headers) > 0 }
func (c Condition) hasQuery() bool   { return len(c.Query) > 0 }
