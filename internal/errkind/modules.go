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

// Package errkind extends the upstream errors package's code ranges with
// package bases for every package this tree adds on top of it. Each base
// starts at errors.MinAvailable, the first code the upstream module
// guarantees it will never itself hand out, so these ranges never collide
// with MinPkgArchive..MinPkgViper regardless of which upstream version is
// vendored.
package errkind

import "github.com/nabbar/golib/errors"

const (
	MinPkgRouting errors.CodeError = errors.MinAvailable + 100*iota
	MinPkgUpstream
	MinPkgBuffering
	MinPkgHttp2Core
	MinPkgGrpc
	MinPkgWasm
	MinPkgConfig
	MinPkgSecurity
	MinPkgBackend
	MinPkgHttp3
	MinPkgGateway
)
