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
	"context"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// readString pulls a UTF-8 string out of guest memory, the way every
// proxy-wasm host function that takes a (ptr, size) pair needs to.
func readString(m api.Module, ptr, size uint32) (string, bool) {
	data, ok := m.Memory().Read(ptr, size)
	if !ok {
		return "", false
	}
	return string(data), true
}

func headersByMap(ctx *HTTPContext, mt MapType) *[]HeaderPair {
	switch mt {
	case MapHTTPRequestHeaders:
		return &ctx.RequestHeaders
	case MapHTTPRequestTrailers:
		return &ctx.RequestTrailers
	case MapHTTPResponseHeaders:
		return &ctx.ResponseHeaders
	case MapHTTPResponseTrailers:
		return &ctx.ResponseTrailers
	default:
		return nil
	}
}

// registerHostFunctions builds the "env" host module every Proxy-Wasm
// guest imports from, wiring each function through the instance's
// current HTTPContext and its module's Capabilities. A denied call
// never touches state; it returns StatusNotAllowed immediately.
func registerHostFunctions(ctx context.Context, rt wazero.Runtime, st *hostState) error {
	b := rt.NewHostModuleBuilder("env")

	// --- logging ---
	b.NewFunctionBuilder().WithFunc(func(_ context.Context, m api.Module, level, msgPtr, msgSize uint32) uint32 {
		if !st.caps.AllowLogging {
			return uint32(StatusNotAllowed)
		}
		msg, ok := readString(m, msgPtr, msgSize)
		if !ok {
			return uint32(StatusInvalidMemoryAccess)
		}
		st.logf(LogLevel(level), msg)
		return uint32(StatusOK)
	}).Export("proxy_log")

	// --- properties ---
	b.NewFunctionBuilder().WithFunc(func(_ context.Context, m api.Module, pathPtr, pathSize, returnPtr, returnSizePtr uint32) uint32 {
		path, ok := readString(m, pathPtr, pathSize)
		if !ok {
			return uint32(StatusInvalidMemoryAccess)
		}
		if !st.caps.IsPropertyAllowed(path) {
			return uint32(StatusNotAllowed)
		}
		if st.current == nil {
			return uint32(StatusNotFound)
		}
		value, ok := st.current.CustomProperties[path]
		if !ok {
			return uint32(StatusNotFound)
		}
		if !writeReturnBuffer(m, returnPtr, returnSizePtr, value) {
			return uint32(StatusInvalidMemoryAccess)
		}
		return uint32(StatusOK)
	}).Export("proxy_get_property")

	b.NewFunctionBuilder().WithFunc(func(_ context.Context, m api.Module, pathPtr, pathSize, valPtr, valSize uint32) uint32 {
		path, ok := readString(m, pathPtr, pathSize)
		if !ok {
			return uint32(StatusInvalidMemoryAccess)
		}
		if !st.caps.IsPropertyAllowed(path) {
			return uint32(StatusNotAllowed)
		}
		value, ok := m.Memory().Read(valPtr, valSize)
		if !ok {
			return uint32(StatusInvalidMemoryAccess)
		}
		if st.current == nil {
			return uint32(StatusNotFound)
		}
		cp := make([]byte, len(value))
		copy(cp, value)
		st.current.CustomProperties[path] = cp
		return uint32(StatusOK)
	}).Export("proxy_set_property")

	// --- headers: count/value/add/remove across the four HTTP maps ---
	b.NewFunctionBuilder().WithFunc(func(_ context.Context, m api.Module, mapType, returnPtr, returnSizePtr uint32) uint32 {
		if !headerReadAllowed(st, MapType(mapType)) {
			return uint32(StatusNotAllowed)
		}
		pairs := currentHeaders(st, MapType(mapType))
		if pairs == nil {
			return uint32(StatusNotFound)
		}
		if !writeReturnBuffer(m, returnPtr, returnSizePtr, EncodeHeaderMap(*pairs)) {
			return uint32(StatusInvalidMemoryAccess)
		}
		return uint32(StatusOK)
	}).Export("proxy_get_header_map_pairs")

	b.NewFunctionBuilder().WithFunc(func(_ context.Context, m api.Module, mapType, dataPtr, dataSize uint32) uint32 {
		if !headerWriteAllowed(st, MapType(mapType)) {
			return uint32(StatusNotAllowed)
		}
		buf, ok := m.Memory().Read(dataPtr, dataSize)
		if !ok {
			return uint32(StatusInvalidMemoryAccess)
		}
		pairs, status := DecodeHeaderMap(buf)
		if status != StatusOK {
			return uint32(status)
		}
		target := headersByMap(st.current, MapType(mapType))
		if target == nil {
			return uint32(StatusNotFound)
		}
		*target = pairs
		markModified(st.current, MapType(mapType))
		return uint32(StatusOK)
	}).Export("proxy_set_header_map_pairs")

	b.NewFunctionBuilder().WithFunc(func(_ context.Context, m api.Module, mapType, keyPtr, keySize, valPtr, valSize uint32) uint32 {
		if !headerWriteAllowed(st, MapType(mapType)) {
			return uint32(StatusNotAllowed)
		}
		key, ok1 := readString(m, keyPtr, keySize)
		val, ok2 := readString(m, valPtr, valSize)
		if !ok1 || !ok2 {
			return uint32(StatusInvalidMemoryAccess)
		}
		target := headersByMap(st.current, MapType(mapType))
		if target == nil {
			return uint32(StatusNotFound)
		}
		*target = append(*target, HeaderPair{Name: key, Value: val})
		markModified(st.current, MapType(mapType))
		return uint32(StatusOK)
	}).Export("proxy_add_header_map_value")

	b.NewFunctionBuilder().WithFunc(func(_ context.Context, m api.Module, mapType, keyPtr, keySize uint32) uint32 {
		if !headerWriteAllowed(st, MapType(mapType)) {
			return uint32(StatusNotAllowed)
		}
		key, ok := readString(m, keyPtr, keySize)
		if !ok {
			return uint32(StatusInvalidMemoryAccess)
		}
		target := headersByMap(st.current, MapType(mapType))
		if target == nil {
			return uint32(StatusNotFound)
		}
		filtered := (*target)[:0]
		for _, p := range *target {
			if p.Name != key {
				filtered = append(filtered, p)
			}
		}
		*target = filtered
		markModified(st.current, MapType(mapType))
		return uint32(StatusOK)
	}).Export("proxy_remove_header_map_value")

	// --- buffers ---
	b.NewFunctionBuilder().WithFunc(func(_ context.Context, m api.Module, bufType, offset, maxSize, returnPtr, returnSizePtr uint32) uint32 {
		buf, allowed := currentBuffer(st, BufferType(bufType))
		if !allowed {
			return uint32(StatusNotAllowed)
		}
		if int(offset) > len(buf) {
			return uint32(StatusBadArgument)
		}
		end := offset + maxSize
		if end > uint32(len(buf)) {
			end = uint32(len(buf))
		}
		if !writeReturnBuffer(m, returnPtr, returnSizePtr, buf[offset:end]) {
			return uint32(StatusInvalidMemoryAccess)
		}
		return uint32(StatusOK)
	}).Export("proxy_get_buffer_bytes")

	// The ABI allows a splice at [start, start+length) within the target
	// buffer; filters almost always replace the whole thing in one call,
	// so a full overwrite covers every real guest SDK's common path.
	b.NewFunctionBuilder().WithFunc(func(_ context.Context, m api.Module, bufType, _, _, dataPtr, dataSize uint32) uint32 {
		if !bufferWriteAllowed(st, BufferType(bufType)) {
			return uint32(StatusNotAllowed)
		}
		data, ok := m.Memory().Read(dataPtr, dataSize)
		if !ok {
			return uint32(StatusInvalidMemoryAccess)
		}
		cp := make([]byte, len(data))
		copy(cp, data)
		setBuffer(st.current, BufferType(bufType), cp)
		return uint32(StatusOK)
	}).Export("proxy_set_buffer_bytes")

	// --- local response ---
	b.NewFunctionBuilder().WithFunc(func(_ context.Context, m api.Module, status, bodyPtr, bodySize, headersPtr, headersSize, grpcStatus uint32) uint32 {
		if !st.caps.AllowSendLocalResponse || st.current == nil {
			return uint32(StatusNotAllowed)
		}
		body, ok := m.Memory().Read(bodyPtr, bodySize)
		if !ok {
			return uint32(StatusInvalidMemoryAccess)
		}
		hdrBuf, ok := m.Memory().Read(headersPtr, headersSize)
		if !ok {
			return uint32(StatusInvalidMemoryAccess)
		}
		headers, hstatus := DecodeHeaderMap(hdrBuf)
		if hstatus != StatusOK {
			return uint32(hstatus)
		}
		bodyCopy := make([]byte, len(body))
		copy(bodyCopy, body)
		st.current.LocalResponse = &LocalResponse{Status: status, Headers: headers, Body: bodyCopy}
		_ = grpcStatus
		return uint32(StatusOK)
	}).Export("proxy_send_local_response")

	// --- HTTP calls ---
	b.NewFunctionBuilder().WithFunc(func(_ context.Context, m api.Module, upstreamPtr, upstreamSize, headersPtr, headersSize, bodyPtr, bodySize, _, _, timeoutMs, returnTokenPtr uint32) uint32 {
		if st.current == nil {
			return uint32(StatusInternalFailure)
		}
		if !st.caps.AllowHTTPCalls {
			return uint32(StatusNotAllowed)
		}
		upstream, ok := readString(m, upstreamPtr, upstreamSize)
		if !ok {
			return uint32(StatusInvalidMemoryAccess)
		}
		if !st.caps.IsUpstreamAllowed(upstream) {
			return uint32(StatusNotAllowed)
		}
		if st.caps.MaxHTTPCalls > 0 && len(st.current.PendingHTTPCalls) >= st.caps.MaxHTTPCalls {
			return uint32(StatusInternalFailure)
		}

		hdrBuf, ok := m.Memory().Read(headersPtr, headersSize)
		if !ok {
			return uint32(StatusInvalidMemoryAccess)
		}
		headers, hstatus := DecodeHeaderMap(hdrBuf)
		if hstatus != StatusOK {
			return uint32(hstatus)
		}
		body, ok := m.Memory().Read(bodyPtr, bodySize)
		if !ok {
			return uint32(StatusInvalidMemoryAccess)
		}
		bodyCopy := make([]byte, len(body))
		copy(bodyCopy, body)

		token := st.current.AllocateHTTPCallToken()
		st.current.PendingHTTPCalls[token] = PendingHTTPCall{
			Upstream:  upstream,
			Headers:   headers,
			Body:      bodyCopy,
			TimeoutMs: timeoutMs,
		}
		if !m.Memory().WriteUint32Le(returnTokenPtr, token) {
			return uint32(StatusInvalidMemoryAccess)
		}
		return uint32(StatusOK)
	}).Export("proxy_http_call")

	// --- shared data ---
	b.NewFunctionBuilder().WithFunc(func(_ context.Context, m api.Module, keyPtr, keySize, returnPtr, returnSizePtr, returnCasPtr uint32) uint32 {
		if !st.caps.AllowSharedData {
			return uint32(StatusNotAllowed)
		}
		key, ok := readString(m, keyPtr, keySize)
		if !ok {
			return uint32(StatusInvalidMemoryAccess)
		}
		value, cas, found := st.engine.Shared.Get(key)
		if !found {
			return uint32(StatusNotFound)
		}
		if !writeReturnBuffer(m, returnPtr, returnSizePtr, value) {
			return uint32(StatusInvalidMemoryAccess)
		}
		if !m.Memory().WriteUint32Le(returnCasPtr, cas) {
			return uint32(StatusInvalidMemoryAccess)
		}
		return uint32(StatusOK)
	}).Export("proxy_get_shared_data")

	b.NewFunctionBuilder().WithFunc(func(_ context.Context, m api.Module, keyPtr, keySize, valPtr, valSize, cas uint32) uint32 {
		if !st.caps.AllowSharedData {
			return uint32(StatusNotAllowed)
		}
		key, ok := readString(m, keyPtr, keySize)
		if !ok {
			return uint32(StatusInvalidMemoryAccess)
		}
		if st.caps.MaxSharedDataSize > 0 && int(valSize) > st.caps.MaxSharedDataSize {
			return uint32(StatusBadArgument)
		}
		value, ok := m.Memory().Read(valPtr, valSize)
		if !ok {
			return uint32(StatusInvalidMemoryAccess)
		}
		cp := make([]byte, len(value))
		copy(cp, value)
		if !st.engine.Shared.Set(key, cp, cas) {
			return uint32(StatusCasMismatch)
		}
		return uint32(StatusOK)
	}).Export("proxy_set_shared_data")

	// --- shared queues ---
	b.NewFunctionBuilder().WithFunc(func(_ context.Context, m api.Module, namePtr, nameSize, returnIDPtr uint32) uint32 {
		name, ok := readString(m, namePtr, nameSize)
		if !ok {
			return uint32(StatusInvalidMemoryAccess)
		}
		id := st.engine.Queues.Register(name)
		if st.current != nil {
			st.engine.Queues.Subscribe(id, st.current.ContextID)
		}
		if !m.Memory().WriteUint32Le(returnIDPtr, id) {
			return uint32(StatusInvalidMemoryAccess)
		}
		return uint32(StatusOK)
	}).Export("proxy_register_shared_queue")

	b.NewFunctionBuilder().WithFunc(func(_ context.Context, m api.Module, _, namePtr, nameSize, returnIDPtr uint32) uint32 {
		name, ok := readString(m, namePtr, nameSize)
		if !ok {
			return uint32(StatusInvalidMemoryAccess)
		}
		id, ok := st.engine.Queues.Resolve(name)
		if !ok {
			return uint32(StatusNotFound)
		}
		if !m.Memory().WriteUint32Le(returnIDPtr, id) {
			return uint32(StatusInvalidMemoryAccess)
		}
		return uint32(StatusOK)
	}).Export("proxy_resolve_shared_queue")

	b.NewFunctionBuilder().WithFunc(func(_ context.Context, m api.Module, id, dataPtr, dataSize uint32) uint32 {
		data, ok := m.Memory().Read(dataPtr, dataSize)
		if !ok {
			return uint32(StatusInvalidMemoryAccess)
		}
		cp := make([]byte, len(data))
		copy(cp, data)
		if _, ok := st.engine.Queues.Enqueue(id, cp); !ok {
			return uint32(StatusInternalFailure)
		}
		return uint32(StatusOK)
	}).Export("proxy_enqueue_shared_queue")

	b.NewFunctionBuilder().WithFunc(func(_ context.Context, m api.Module, id, returnPtr, returnSizePtr uint32) uint32 {
		data, empty, ok := st.engine.Queues.Dequeue(id)
		if !ok {
			return uint32(StatusNotFound)
		}
		if empty {
			return uint32(StatusEmpty)
		}
		if !writeReturnBuffer(m, returnPtr, returnSizePtr, data) {
			return uint32(StatusInvalidMemoryAccess)
		}
		return uint32(StatusOK)
	}).Export("proxy_dequeue_shared_queue")

	// --- metrics ---
	b.NewFunctionBuilder().WithFunc(func(_ context.Context, m api.Module, kind, namePtr, nameSize, returnIDPtr uint32) uint32 {
		if !st.caps.AllowMetrics || st.current == nil {
			return uint32(StatusNotAllowed)
		}
		name, ok := readString(m, namePtr, nameSize)
		if !ok {
			return uint32(StatusInvalidMemoryAccess)
		}
		id := st.current.AllocateMetricID()
		st.current.Metrics[id] = &Metric{Name: name, Kind: MetricKind(kind)}
		if !m.Memory().WriteUint32Le(returnIDPtr, uint32(id)) {
			return uint32(StatusInvalidMemoryAccess)
		}
		return uint32(StatusOK)
	}).Export("proxy_define_metric")

	b.NewFunctionBuilder().WithFunc(func(_ context.Context, _ api.Module, id uint32, delta int64) uint32 {
		if !st.caps.AllowMetrics || st.current == nil {
			return uint32(StatusNotAllowed)
		}
		metric, ok := st.current.Metrics[int32(id)]
		if !ok {
			return uint32(StatusNotFound)
		}
		metric.Value = uint64(int64(metric.Value) + delta)
		return uint32(StatusOK)
	}).Export("proxy_increment_metric")

	b.NewFunctionBuilder().WithFunc(func(_ context.Context, _ api.Module, id uint32, value uint64) uint32 {
		if !st.caps.AllowMetrics || st.current == nil {
			return uint32(StatusNotAllowed)
		}
		metric, ok := st.current.Metrics[int32(id)]
		if !ok {
			return uint32(StatusNotFound)
		}
		metric.Value = value
		return uint32(StatusOK)
	}).Export("proxy_record_metric")

	b.NewFunctionBuilder().WithFunc(func(_ context.Context, m api.Module, id, returnValuePtr uint32) uint32 {
		if !st.caps.AllowMetrics || st.current == nil {
			return uint32(StatusNotAllowed)
		}
		metric, ok := st.current.Metrics[int32(id)]
		if !ok {
			return uint32(StatusNotFound)
		}
		if !m.Memory().WriteUint64Le(returnValuePtr, metric.Value) {
			return uint32(StatusInvalidMemoryAccess)
		}
		return uint32(StatusOK)
	}).Export("proxy_get_metric")

	// --- ticks ---
	b.NewFunctionBuilder().WithFunc(func(_ context.Context, _ api.Module, periodMs uint32) uint32 {
		if st.current == nil {
			return uint32(StatusInternalFailure)
		}
		st.current.TickPeriodMs = periodMs
		return uint32(StatusOK)
	}).Export("proxy_set_tick_period_milliseconds")

	// --- gRPC call (feature-gated; not wired to a real gRPC client yet) ---
	b.NewFunctionBuilder().WithFunc(func(_ context.Context, _ api.Module,
		upstreamPtr, upstreamSize, servicePtr, serviceSize, methodPtr, methodSize,
		metadataPtr, metadataSize, messagePtr, messageSize, timeoutMs, returnCallIDPtr uint32) uint32 {
		return uint32(StatusUnimplemented)
	}).Export("proxy_grpc_call")
	b.NewFunctionBuilder().WithFunc(func(_ context.Context, _ api.Module, callID uint32) uint32 {
		return uint32(StatusUnimplemented)
	}).Export("proxy_grpc_cancel")

	// --- foreign functions: advertised, never implemented ---
	b.NewFunctionBuilder().WithFunc(func(_ context.Context, _ api.Module, _, _, _, _, _, _ uint32) uint32 {
		return uint32(StatusUnimplemented)
	}).Export("proxy_call_foreign_function")

	_, err := b.Instantiate(ctx)
	return err
}

func headerReadAllowed(st *hostState, mt MapType) bool {
	switch mt {
	case MapHTTPRequestHeaders, MapHTTPRequestTrailers:
		return st.caps.AllowRequestHeadersRead
	case MapHTTPResponseHeaders, MapHTTPResponseTrailers:
		return st.caps.AllowResponseHeadersRead
	default:
		return true
	}
}

func headerWriteAllowed(st *hostState, mt MapType) bool {
	switch mt {
	case MapHTTPRequestHeaders, MapHTTPRequestTrailers:
		return st.caps.AllowRequestHeadersWrite
	case MapHTTPResponseHeaders, MapHTTPResponseTrailers:
		return st.caps.AllowResponseHeadersWrite
	default:
		return false
	}
}

func currentHeaders(st *hostState, mt MapType) *[]HeaderPair {
	if st.current == nil {
		return nil
	}
	switch mt {
	case MapHTTPCallResponseHeaders:
		return nil // not stored as a live map; a read of this map reports NotFound
	default:
		return headersByMap(st.current, mt)
	}
}

func markModified(ctx *HTTPContext, mt MapType) {
	switch mt {
	case MapHTTPRequestHeaders, MapHTTPRequestTrailers:
		ctx.RequestHeadersModified = true
	case MapHTTPResponseHeaders, MapHTTPResponseTrailers:
		ctx.ResponseHeadersModified = true
	}
}

func currentBuffer(st *hostState, bt BufferType) ([]byte, bool) {
	if st.current == nil {
		return nil, false
	}
	switch bt {
	case BufferHTTPRequestBody:
		return st.current.RequestBody, st.caps.AllowRequestBodyRead
	case BufferHTTPResponseBody:
		return st.current.ResponseBody, st.caps.AllowResponseBodyRead
	case BufferVMConfiguration:
		return st.engine.vmConfigFor(st.moduleName), true
	case BufferPluginConfiguration:
		return st.engine.pluginConfigFor(st.moduleName), true
	default:
		return nil, false
	}
}

func bufferWriteAllowed(st *hostState, bt BufferType) bool {
	switch bt {
	case BufferHTTPRequestBody:
		return st.caps.AllowRequestBodyWrite
	case BufferHTTPResponseBody:
		return st.caps.AllowResponseBodyWrite
	default:
		return false
	}
}

func setBuffer(ctx *HTTPContext, bt BufferType, data []byte) {
	switch bt {
	case BufferHTTPRequestBody:
		ctx.RequestBody = data
		ctx.RequestBodyModified = true
	case BufferHTTPResponseBody:
		ctx.ResponseBody = data
		ctx.ResponseBodyModified = true
	}
}

// writeReturnBuffer allocates nothing on the guest's behalf: Proxy-Wasm
// expects the host to call back into the guest's own allocator
// (proxy_on_memory_allocate) for return buffers. wazero guests built
// against the standard SDKs export this allocator; we call it here and
// copy data into the space it hands back the way the real ABI expects.
func writeReturnBuffer(m api.Module, returnPtr, returnSizePtr uint32, data []byte) bool {
	if !m.Memory().WriteUint32Le(returnSizePtr, uint32(len(data))) {
		return false
	}
	if len(data) == 0 {
		return m.Memory().WriteUint32Le(returnPtr, 0)
	}

	alloc := m.ExportedFunction("proxy_on_memory_allocate")
	if alloc == nil {
		return m.Memory().WriteUint32Le(returnPtr, 0)
	}

	results, err := alloc.Call(context.Background(), uint64(len(data)))
	if err != nil || len(results) == 0 {
		return false
	}
	ptr := uint32(results[0])
	if !m.Memory().Write(ptr, data) {
		return false
	}
	return m.Memory().WriteUint32Le(returnPtr, ptr)
}

var _ = time.Now
