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
	"github.com/nabbar/golib/errors"

	"github/sabouaram/golib/internal/errkind"
)

const (
	ErrorTableEmpty errors.CodeError = iota + errkind.MinPkgRouting
	ErrorInvalidCIDR
	ErrorInvalidHostPattern
	ErrorCacheSize
)

func init() {
	errors.RegisterIdFctMessage(ErrorTableEmpty, getMessage)
}

func getMessage(code errors.CodeError) (message string) {
	switch code {
	case ErrorTableEmpty:
		return "routing table has no routes"
	case ErrorInvalidCIDR:
		return "route condition carries a malformed CIDR"
	case ErrorInvalidHostPattern:
		return "route condition carries a malformed host pattern"
	case ErrorCacheSize:
		return "route cache size must be strictly positive"
	}

	return ""
}
