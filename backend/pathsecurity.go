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

import "strings"

// PathSecurityConfig governs what a SendFileBackend will serve beneath its
// jailed root, independent of the root-escape check Dispatch always applies.
type PathSecurityConfig struct {
	Enabled bool
	// AllowDotFiles permits serving paths with a dot-prefixed component
	// (".git", ".env", ...) when true.
	AllowDotFiles bool
	// MaxPathDepth bounds the number of path components after the root;
	// zero means unbounded.
	MaxPathDepth int
	// BlockedPatterns reject any path containing one of these substrings.
	BlockedPatterns []string
}

// DefaultPathSecurityConfig blocks the handful of paths that should never
// be served from under a web root regardless of operator configuration.
func DefaultPathSecurityConfig() PathSecurityConfig {
	return PathSecurityConfig{
		Enabled:         true,
		AllowDotFiles:   false,
		MaxPathDepth:    10,
		BlockedPatterns: []string{".git", ".env"},
	}
}

// checkPathSecurity reports whether relPath (already cleaned, root-relative,
// slash-separated) may be served under cfg.
func checkPathSecurity(cfg PathSecurityConfig, relPath string) bool {
	if !cfg.Enabled {
		return true
	}

	segments := strings.Split(relPath, "/")
	depth := 0
	for _, seg := range segments {
		if seg == "" || seg == "." {
			continue
		}
		depth++
		if !cfg.AllowDotFiles && strings.HasPrefix(seg, ".") {
			return false
		}
	}
	if cfg.MaxPathDepth > 0 && depth > cfg.MaxPathDepth {
		return false
	}

	for _, pattern := range cfg.BlockedPatterns {
		if pattern != "" && strings.Contains(relPath, pattern) {
			return false
		}
	}

	return true
}
