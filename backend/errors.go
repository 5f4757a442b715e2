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
	"github.com/nabbar/golib/errors"

	"github/sabouaram/golib/internal/errkind"
)

const (
	ErrorUnknownKind errors.CodeError = iota + errkind.MinPkgBackend
	ErrorUpstreamUnavailable
	ErrorUpstreamRequest
	ErrorPathTraversal
	ErrorPathNotFound
	ErrorInvalidRedirectTemplate
)

func init() {
	errors.RegisterIdFctMessage(ErrorUnknownKind, getMessage)
}

func getMessage(code errors.CodeError) (message string) {
	switch code {
	case ErrorUnknownKind:
		return "backend carries an unrecognized kind tag"
	case ErrorUpstreamUnavailable:
		return "no live upstream server could be selected for this request"
	case ErrorUpstreamRequest:
		return "request to the selected upstream server failed"
	case ErrorPathTraversal:
		return "requested path escapes the backend's jailed root"
	case ErrorPathNotFound:
		return "requested path does not exist under the backend's root"
	case ErrorInvalidRedirectTemplate:
		return "redirect backend carries a malformed status code"
	}

	return ""
}
