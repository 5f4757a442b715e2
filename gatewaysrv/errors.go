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

package gatewaysrv

import (
	"github.com/nabbar/golib/errors"

	"github/sabouaram/golib/internal/errkind"
)

const (
	ErrorNoTLSCertificate errors.CodeError = iota + errkind.MinPkgGateway
	ErrorListen
	ErrorReusePort
	ErrorWasmDispatch
)

func init() {
	errors.RegisterIdFctMessage(ErrorNoTLSCertificate, getMessage)
}

func getMessage(code errors.CodeError) (message string) {
	switch code {
	case ErrorNoTLSCertificate:
		return "no TLS certificate configured for the HTTPS listener"
	case ErrorListen:
		return "reactor worker could not bind its listener"
	case ErrorReusePort:
		return "SO_REUSEPORT could not be set on the listening socket"
	case ErrorWasmDispatch:
		return "a bound wasm filter failed during dispatch"
	}
	return ""
}
