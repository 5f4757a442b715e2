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

import "strings"

// hostRule is one compiled host pattern bucketed by shape.
type hostRule struct {
	idx     int
	pattern string
}

// hostIndex buckets route indices by host pattern shape so a lookup never
// scans every route.
type hostIndex struct {
	exact    map[string][]int
	suffix   []hostRule // "*.example.com" -> suffix "example.com"
	prefix   []hostRule // "api.*"         -> prefix "api."
	anyHost  []int      // no host constraint
}

func newHostIndex() *hostIndex {
	return &hostIndex{exact: make(map[string][]int)}
}

func (h *hostIndex) add(idx int, pattern string) {
	switch {
	case pattern == "":
		h.anyHost = append(h.anyHost, idx)
	case strings.HasPrefix(pattern, "*."):
		h.suffix = append(h.suffix, hostRule{idx: idx, pattern: strings.TrimPrefix(pattern, "*.")})
	case strings.HasSuffix(pattern, ".*"):
		h.prefix = append(h.prefix, hostRule{idx: idx, pattern: strings.TrimSuffix(pattern, "*")})
	default:
		h.exact[pattern] = append(h.exact[pattern], idx)
	}
}

// candidates returns every route index whose host pattern can match host,
// in no particular order; callers must still verify with matchesHost.
func (h *hostIndex) candidates(host string) []int {
	var out []int
	out = append(out, h.exact[host]...)

	for _, r := range h.suffix {
		if hostMatchesSuffix(host, r.pattern) {
			out = append(out, r.idx)
		}
	}
	for _, r := range h.prefix {
		if hostMatchesPrefix(host, r.pattern) {
			out = append(out, r.idx)
		}
	}
	out = append(out, h.anyHost...)
	return out
}

// hostMatchesSuffix implements "*.example.com": matches exactly one label
// prepended to suffix, so foo.example.com matches but example.com and
// bar.foo.example.com do not.
func hostMatchesSuffix(host, suffix string) bool {
	if host == suffix || !strings.HasSuffix(host, "."+suffix) {
		return false
	}
	remainder := strings.TrimSuffix(host, "."+suffix)
	return !strings.Contains(remainder, ".")
}

func hostMatchesPrefix(host, prefix string) bool {
	return strings.HasPrefix(host, prefix)
}

// matchesHost re-verifies a single pattern against a host exactly, used both
// by the index candidate list and by conditions carrying no host pattern.
func matchesHost(host, pattern string) bool {
	switch {
	case pattern == "":
		return true
	case strings.HasPrefix(pattern, "*."):
		return hostMatchesSuffix(host, strings.TrimPrefix(pattern, "*."))
	case strings.HasSuffix(pattern, ".*"):
		return hostMatchesPrefix(host, strings.TrimSuffix(pattern, "*"))
	default:
		return host == pattern
	}
}
