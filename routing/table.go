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
	"encoding/binary"
	"net"

	"github.com/nabbar/golib/errors"
)

const defaultCacheSize = 4096

// Table is an immutable, built-once router over an ordered list of
// Condition values. Earlier conditions take priority on a tie.
type Table struct {
	conditions []Condition
	hosts      *hostIndex
	paths      *pathIndex
	cidrs      *cidrIndex
	cache      *resultCache
}

// Option configures NewTable.
type Option func(*tableOptions)

type tableOptions struct {
	cacheSize int
}

// WithCacheSize overrides the default route-result cache capacity.
func WithCacheSize(size int) Option {
	return func(o *tableOptions) { o.cacheSize = size }
}

// NewTable compiles an ordered list of conditions into a Table. The slice
// index of each condition is its route index, returned by Match.
func NewTable(conditions []Condition, opts ...Option) (*Table, errors.Error) {
	if len(conditions) == 0 {
		return nil, ErrorTableEmpty.Error(nil)
	}

	o := tableOptions{cacheSize: defaultCacheSize}
	for _, fn := range opts {
		fn(&o)
	}
	if o.cacheSize <= 0 {
		return nil, ErrorCacheSize.Error(nil)
	}

	t := &Table{
		conditions: conditions,
		hosts:      newHostIndex(),
		paths:      newPathIndex(),
		cidrs:      newCIDRIndex(),
	}

	for i, c := range conditions {
		if err := validateHostPattern(c.Host); err != nil {
			return nil, err
		}

		t.hosts.add(i, c.Host)
		t.paths.add(i, c.Path)

		if c.hasCIDR() {
			for _, cidr := range c.CIDRs {
				if err := t.cidrs.add(i, cidr); err != nil {
					return nil, err
				}
			}
		} else {
			t.cidrs.addUnconstrained(i)
		}
	}
	t.cidrs.finalize()

	cache, err := newResultCache(o.cacheSize)
	if err != nil {
		return nil, ErrorCacheSize.Error(err)
	}
	t.cache = cache

	return t, nil
}

func validateHostPattern(pattern string) errors.Error {
	if pattern == "" {
		return nil
	}
	if pattern == "*" || pattern == "*.*" {
		return ErrorInvalidHostPattern.Error(nil)
	}
	return nil
}

// Match finds the highest-priority route whose Condition is satisfied by f.
// It returns the route index into the conditions slice passed to NewTable,
// or false if no route matches.
//
// Lookup: probe the cache, else intersect the host/path/cidr candidate sets,
// verify each surviving candidate against the dimensions the indices cannot
// decide (method, header, query), in ascending index order, and memoize the
// first hit.
func (t *Table) Match(f Fingerprint) (int, bool) {
	if idx, ok := t.cache.get(f); ok {
		if idx >= 0 {
			return idx, true
		}
		return 0, false
	}

	idx, ok := t.match(f)
	if ok {
		t.cache.put(f, idx)
	} else {
		t.cache.put(f, -1)
	}
	return idx, ok
}

func (t *Table) match(f Fingerprint) (int, bool) {
	hostCand := t.hosts.candidates(f.Host)
	pathCand := t.paths.candidates(f.Path)
	cidrCand := t.cidrs.candidates(f.SourceIP)

	hostSet := toSet(hostCand)
	pathSet := toSet(pathCand)
	cidrSet := toSet(cidrCand)

	best := -1
	for idx := range hostSet {
		if !pathSet[idx] || !cidrSet[idx] {
			continue
		}
		if !t.verify(idx, f) {
			continue
		}
		if best == -1 || idx < best {
			best = idx
		}
	}

	if best == -1 {
		return 0, false
	}
	return best, true
}

// verify checks the dimensions the three indices do not encode: method,
// required headers, required query parameters, and a final authoritative
// host/path pattern re-check (the indices only produce a safe candidate
// superset).
func (t *Table) verify(idx int, f Fingerprint) bool {
	c := t.conditions[idx]

	if !matchesHost(f.Host, c.Host) || !matchesPath(f.Path, c.Path) {
		return false
	}

	if c.hasMethod() {
		ok := false
		for _, m := range c.Methods {
			if m == f.Method {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}

	if c.hasHeader() {
		for name, wanted := range c.Headers {
			got := f.HeaderGet(name)
			if !anyOverlap(got, wanted) {
				return false
			}
		}
	}

	if c.hasQuery() {
		for key, wanted := range c.Query {
			got := f.Query[key]
			if !anyOverlap(got, wanted) {
				return false
			}
		}
	}

	return true
}

func anyOverlap(got, wanted []string) bool {
	for _, w := range wanted {
		for _, g := range got {
			if g == w {
				return true
			}
		}
	}
	return false
}

func toSet(idxs []int) map[int]bool {
	m := make(map[int]bool, len(idxs))
	for _, i := range idxs {
		m[i] = true
	}
	return m
}

// ContainsIP reports whether ip falls within cidr; exposed for callers (e.g.
// the security package's ACL) that need a one-off CIDR test outside a Table.
func ContainsIP(cidr string, ip net.IP) (bool, errors.Error) {
	r, err := parseCIDRRange(0, cidr)
	if err != nil {
		return false, err
	}
	if r.isV6 {
		if v6 := ip.To16(); v6 != nil && ip.To4() == nil {
			return v6Contains(r, binary.BigEndian.Uint64(v6[0:8]), binary.BigEndian.Uint64(v6[8:16])), nil
		}
		return false, nil
	}
	if v4 := ip.To4(); v4 != nil {
		return v4Contains(r, binary.BigEndian.Uint32(v4)), nil
	}
	return false, nil
}
