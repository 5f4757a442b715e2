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

// Status is a Proxy-Wasm ABI v0.2.1 host-call return code. Every host
// function returns one of these instead of panicking or trapping the
// guest, so a denied or malformed call is always observable to the
// module.
type Status int32

const (
	StatusOK Status = iota
	StatusNotFound
	StatusBadArgument
	StatusSerializationFailure
	StatusParseFailure
	StatusBadExpression
	StatusInvalidMemoryAccess
	StatusEmpty
	StatusCasMismatch
	StatusResultMismatch
	StatusInternalFailure
	StatusUnimplemented
	StatusNotAllowed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotFound:
		return "not_found"
	case StatusBadArgument:
		return "bad_argument"
	case StatusSerializationFailure:
		return "serialization_failure"
	case StatusParseFailure:
		return "parse_failure"
	case StatusBadExpression:
		return "bad_expression"
	case StatusInvalidMemoryAccess:
		return "invalid_memory_access"
	case StatusEmpty:
		return "empty"
	case StatusCasMismatch:
		return "cas_mismatch"
	case StatusResultMismatch:
		return "result_mismatch"
	case StatusInternalFailure:
		return "internal_failure"
	case StatusUnimplemented:
		return "unimplemented"
	case StatusNotAllowed:
		return "not_allowed"
	default:
		return "unknown"
	}
}

// BufferType identifies which byte buffer a proxy_get_buffer_bytes /
// proxy_set_buffer_bytes call addresses.
type BufferType int32

const (
	BufferHTTPRequestBody BufferType = iota
	BufferHTTPResponseBody
	BufferDownstreamData
	BufferUpstreamData
	BufferHTTPCallResponseBody
	BufferGRPCReceiveBuffer
	BufferVMConfiguration
	BufferPluginConfiguration
	BufferCallData
)

// MapType identifies which header/trailer map a proxy_get_header_map_pairs
// / proxy_add_header_map_value call addresses.
type MapType int32

const (
	MapHTTPRequestHeaders MapType = iota
	MapHTTPRequestTrailers
	MapHTTPResponseHeaders
	MapHTTPResponseTrailers
	MapGRPCReceiveInitialMetadata
	MapGRPCReceiveTrailingMetadata
	MapHTTPCallResponseHeaders
	MapHTTPCallResponseTrailers
)

// LogLevel mirrors the proxy_log severities a guest may use.
type LogLevel int32

const (
	LogLevelTrace LogLevel = iota
	LogLevelDebug
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelCritical
)

// guest export names the engine looks up and calls, in Proxy-Wasm v0.2.1
// ordering. Not every module implements every one; a missing export is
// simply skipped at the corresponding lifecycle point.
const (
	guestExportInitialize         = "_initialize"
	guestExportVMStart            = "proxy_on_vm_start"
	guestExportConfigure          = "proxy_on_configure"
	guestExportContextCreate      = "proxy_on_context_create"
	guestExportRequestHeaders     = "proxy_on_request_headers"
	guestExportRequestBody        = "proxy_on_request_body"
	guestExportResponseHeaders    = "proxy_on_response_headers"
	guestExportResponseBody       = "proxy_on_response_body"
	guestExportHTTPCallResponse   = "proxy_on_http_call_response"
	guestExportQueueReady         = "proxy_on_queue_ready"
	guestExportTick               = "proxy_on_tick"
	guestExportLog                = "proxy_on_log"
	guestExportDone               = "proxy_on_done"
	guestExportDelete             = "proxy_on_delete"
	guestExportGRPCInitialMeta    = "proxy_on_grpc_receive_initial_metadata"
	guestExportGRPCReceive        = "proxy_on_grpc_receive"
	guestExportGRPCTrailingMeta   = "proxy_on_grpc_receive_trailing_metadata"
	guestExportGRPCClose          = "proxy_on_grpc_close"
)
