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

type pathRule struct {
	idx    int
	prefix string
}

// pathIndex buckets route indices by path pattern shape: exact paths,
// "prefix/*" catch-alls, and the any-path fallback.
type pathIndex struct {
	exact   map[string][]int
	catchAll []pathRule
	anyPath []int
}

func newPathIndex() *pathIndex {
	return &pathIndex{exact: make(map[string][]int)}
}

func (p *pathIndex) add(idx int, pattern string) {
	switch {
	case pattern == "":
		p.anyPath = append(p.anyPath, idx)
	case strings.HasSuffix(pattern, "/*"):
		p.catchAll = append(p.catchAll, pathRule{idx: idx, prefix: strings.TrimSuffix(pattern, "/*")})
	default:
		p.exact[pattern] = append(p.exact[pattern], idx)
	}
}

func (p *pathIndex) candidates(path string) []int {
	var out []int
	out = append(out, p.exact[path]...)

	for _, r := range p.catchAll {
		if pathMatchesCatchAll(path, r.prefix) {
			out = append(out, r.idx)
		}
	}
	out = append(out, p.anyPath...)
	return out
}

// pathMatchesCatchAll implements "prefix/*": matches prefix itself, prefix
// with a trailing slash, and anything nested below it, but not a sibling
// that merely shares the prefix as a string ("/a/*" must not match "/ab").
func pathMatchesCatchAll(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// matchesPath re-verifies a single pattern against a path exactly.
func matchesPath(path, pattern string) bool {
	switch {
	case pattern == "":
		return true
	case strings.HasSuffix(pattern, "/*"):
		return pathMatchesCatchAll(path, strings.TrimSuffix(pattern, "/*"))
	default:
		return path == pattern
	}
}
