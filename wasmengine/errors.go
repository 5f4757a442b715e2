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

package wasmengine

import (
	"github.com/nabbar/golib/errors"

	"github/sabouaram/golib/internal/errkind"
)

const (
	ErrorModuleCompile errors.CodeError = iota + errkind.MinPkgWasm
	ErrorModuleInstantiate
	ErrorContextPoolExhausted
	ErrorCapabilityDenied
	ErrorUnknownContext
	ErrorExecutionTimeout
	ErrorUnknownQueue
	ErrorQueueFull
	ErrorSharedDataCASMismatch
	ErrorHostCallLimitReached
)

func init() {
	errors.RegisterIdFctMessage(ErrorModuleCompile, getMessage)
}

func getMessage(code errors.CodeError) (message string) {
	switch code {
	case ErrorModuleCompile:
		return "failed to compile the wasm module"
	case ErrorModuleInstantiate:
		return "failed to instantiate the wasm module"
	case ErrorContextPoolExhausted:
		return "no free HTTP context available in the module's pool"
	case ErrorCapabilityDenied:
		return "host call denied: module lacks the required capability"
	case ErrorUnknownContext:
		return "referenced context id does not exist"
	case ErrorExecutionTimeout:
		return "module execution exceeded its configured time budget"
	case ErrorUnknownQueue:
		return "referenced shared queue does not exist"
	case ErrorQueueFull:
		return "shared queue has reached its bounded capacity"
	case ErrorSharedDataCASMismatch:
		return "shared data compare-and-swap token is stale"
	case ErrorHostCallLimitReached:
		return "module reached its configured concurrent host-call limit"
	}

	return ""
}
