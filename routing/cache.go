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
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// cacheKey is the 4-tuple a repeat traffic shape is memoized under.
type cacheKey string

func makeCacheKey(f Fingerprint) cacheKey {
	var b strings.Builder
	b.WriteString(f.Host)
	b.WriteByte('|')
	b.WriteString(f.Path)
	b.WriteByte('|')
	b.WriteString(f.Method)
	b.WriteByte('|')
	if f.SourceIP != nil {
		b.WriteString(f.SourceIP.String())
	}
	return cacheKey(b.String())
}

// resultCache memoizes the outcome of a full Match so repeat traffic shapes
// skip host/path/cidr intersection entirely.
type resultCache struct {
	lru *lru.Cache[cacheKey, int]
}

func newResultCache(size int) (*resultCache, error) {
	c, err := lru.New[cacheKey, int](size)
	if err != nil {
		return nil, err
	}
	return &resultCache{lru: c}, nil
}

func (c *resultCache) get(f Fingerprint) (int, bool) {
	if c == nil || c.lru == nil {
		return 0, false
	}
	return c.lru.Get(makeCacheKey(f))
}

func (c *resultCache) put(f Fingerprint, routeIdx int) {
	if c == nil || c.lru == nil {
		return
	}
	c.lru.Add(makeCacheKey(f), routeIdx)
}
