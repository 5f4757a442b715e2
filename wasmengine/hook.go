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

// Action is a hook's return value: whether the gateway should continue
// processing the request/response immediately or pause it pending an
// async callback (an HTTP call response, a gRPC call response, or a
// buffered-body wait).
type Action uint8

const (
	ActionContinue Action = iota
	ActionPause
)

func (a Action) String() string {
	if a == ActionPause {
		return "pause"
	}
	return "continue"
}

// Hook identifies one of the four proxy-wasm ABI request/response hook
// points a filter may implement.
type Hook uint8

const (
	HookRequestHeaders Hook = iota
	HookRequestBody
	HookResponseHeaders
	HookResponseBody
)

func (h Hook) String() string {
	switch h {
	case HookRequestHeaders:
		return guestExportRequestHeaders
	case HookRequestBody:
		return guestExportRequestBody
	case HookResponseHeaders:
		return guestExportResponseHeaders
	case HookResponseBody:
		return guestExportResponseBody
	default:
		return "unknown_hook"
	}
}
