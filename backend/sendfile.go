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

import (
	"context"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/nabbar/golib/errors"
)

// dispatchSendFile serves a file from disk under a jailed root. The request
// path is cleaned and resolved relative to BasePath; any result that escapes
// BasePath, or that PathSecurity rejects, is refused before the filesystem
// is ever touched again.
func dispatchSendFile(_ context.Context, b *Backend, w http.ResponseWriter, r *http.Request) errors.Error {
	s := b.SendFile

	rel := filepath.Clean("/" + r.URL.Path)
	rel = strings.TrimPrefix(rel, "/")

	if !checkPathSecurity(s.PathSecurity, rel) {
		return ErrorPathTraversal.Error(nil)
	}

	full := filepath.Join(s.BasePath, rel)
	if !isWithinRoot(s.BasePath, full) {
		return ErrorPathTraversal.Error(nil)
	}

	info, err := os.Stat(full)
	if err != nil {
		return ErrorPathNotFound.Error(err)
	}

	if info.IsDir() {
		if !s.IsDir {
			return ErrorPathNotFound.Error(nil)
		}
		index := s.IndexName
		if index == "" {
			index = "index.html"
		}
		full = filepath.Join(full, index)
		info, err = os.Stat(full)
		if err != nil {
			return ErrorPathNotFound.Error(err)
		}
	}

	f, err := os.Open(full)
	if err != nil {
		return ErrorPathNotFound.Error(err)
	}
	defer f.Close()

	h := w.Header()
	if ct := mime.TypeByExtension(filepath.Ext(full)); ct != "" {
		h.Set("Content-Type", ct)
	}
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return nil
	}

	return relayBody(f, info.Size(), w, b.BufferOptions)
}

// isWithinRoot reports whether full, after resolution, still sits under
// root; filepath.Join alone does not stop a cleaned ".." sequence from an
// absolute path escaping it on every OS, so this is checked independently
// of rel's own AllowDotFiles/BlockedPatterns checks.
func isWithinRoot(root, full string) bool {
	root = filepath.Clean(root)
	full = filepath.Clean(full)
	if full == root {
		return true
	}
	return strings.HasPrefix(full, root+string(filepath.Separator))
}
