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

package security

import (
	"github.com/nabbar/golib/errors"

	"github/sabouaram/golib/internal/errkind"
)

const (
	ErrorInvalidCIDR errors.CodeError = iota + errkind.MinPkgSecurity
	ErrorInvalidMethod
	ErrorWebhookDispatch
	ErrorWebhookStatus
)

func init() {
	errors.RegisterIdFctMessage(ErrorInvalidCIDR, getMessage)
}

func getMessage(code errors.CodeError) (message string) {
	switch code {
	case ErrorInvalidCIDR:
		return "ACL rule carries a malformed CIDR or IP address"
	case ErrorInvalidMethod:
		return "method allowlist entry is not a valid HTTP method token"
	case ErrorWebhookDispatch:
		return "security event webhook request could not be sent"
	case ErrorWebhookStatus:
		return "security event webhook responded with a non-2xx status"
	}

	return ""
}
