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
	"encoding/binary"
	"strings"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// wasi errno values this shim actually returns. The full WASI errno set is
// much larger; modules built against Proxy-Wasm only ever touch the stdio
// and clock corners of it.
const (
	wasiErrnoSuccess = 0
	wasiErrnoBadf    = 8
	wasiErrnoInval   = 28
)

// addWASIShims registers the minimal wasi_snapshot_preview1 subset a
// Proxy-Wasm guest toolchain (typically a Rust target built against the
// wasm32-wasip1 target) references even though it never drives real I/O:
// fd_write is redirected into the module's log sink, the clock and RNG
// calls return real values, fd_seek and the preopen calls report EBADF,
// and fd_read and fd_close succeed without doing anything, so none of
// them traps the instantiation.
func addWASIShims(ctx context.Context, rt wazero.Runtime, moduleName string, logf func(level LogLevel, msg string)) error {
	b := rt.NewHostModuleBuilder("wasi_snapshot_preview1")

	b.NewFunctionBuilder().WithFunc(func(_ context.Context, m api.Module, fd, iovsPtr, iovsLen, nwrittenPtr uint32) uint32 {
		if fd != 1 && fd != 2 {
			return wasiErrnoBadf
		}
		mem := m.Memory()

		var total uint32
		var sb strings.Builder
		for i := uint32(0); i < iovsLen; i++ {
			iov, ok := mem.Read(iovsPtr+i*8, 8)
			if !ok {
				return wasiErrnoInval
			}
			bufPtr := binary.LittleEndian.Uint32(iov[0:4])
			bufLen := binary.LittleEndian.Uint32(iov[4:8])

			data, ok := mem.Read(bufPtr, bufLen)
			if !ok {
				return wasiErrnoInval
			}
			sb.Write(data)
			total += bufLen
		}

		if text := strings.TrimRight(sb.String(), "\n"); text != "" {
			level := LogLevelInfo
			if fd == 2 {
				level = LogLevelError
			}
			logf(level, text)
		}

		if !mem.WriteUint32Le(nwrittenPtr, total) {
			return wasiErrnoInval
		}
		return wasiErrnoSuccess
	}).Export("fd_write")

	b.NewFunctionBuilder().WithFunc(func(_ context.Context, _ api.Module, _, _, _, _ uint32) uint32 {
		return wasiErrnoSuccess
	}).Export("fd_read")

	b.NewFunctionBuilder().WithFunc(func(_ context.Context, _ api.Module, _ uint32) uint32 {
		return wasiErrnoSuccess
	}).Export("fd_close")

	b.NewFunctionBuilder().WithFunc(func(_ context.Context, _ api.Module, _ uint32, _ int64, _ uint32, _ uint32) uint32 {
		return wasiErrnoBadf
	}).Export("fd_seek")

	b.NewFunctionBuilder().WithFunc(func(_ context.Context, m api.Module, fd, statPtr uint32) uint32 {
		mem := m.Memory()
		filetype := byte(0)
		if fd <= 2 {
			filetype = 2 // character device
		}
		buf := make([]byte, 24)
		buf[0] = filetype
		if !mem.Write(statPtr, buf) {
			return wasiErrnoInval
		}
		return wasiErrnoSuccess
	}).Export("fd_fdstat_get")

	b.NewFunctionBuilder().WithFunc(func(_ context.Context, _ api.Module, _, _ uint32) uint32 {
		return wasiErrnoBadf
	}).Export("fd_prestat_get")

	b.NewFunctionBuilder().WithFunc(func(_ context.Context, _ api.Module, _, _, _ uint32) uint32 {
		return wasiErrnoBadf
	}).Export("fd_prestat_dir_name")

	zeroPair := func(_ context.Context, m api.Module, countPtr, sizePtr uint32) uint32 {
		mem := m.Memory()
		if !mem.WriteUint32Le(countPtr, 0) || !mem.WriteUint32Le(sizePtr, 0) {
			return wasiErrnoInval
		}
		return wasiErrnoSuccess
	}
	b.NewFunctionBuilder().WithFunc(zeroPair).Export("environ_sizes_get")
	b.NewFunctionBuilder().WithFunc(zeroPair).Export("args_sizes_get")

	noop := func(_ context.Context, _ api.Module, _, _ uint32) uint32 { return wasiErrnoSuccess }
	b.NewFunctionBuilder().WithFunc(noop).Export("environ_get")
	b.NewFunctionBuilder().WithFunc(noop).Export("args_get")

	b.NewFunctionBuilder().WithFunc(func(_ context.Context, _ api.Module, exitCode uint32) {
		logf(LogLevelWarn, "module called proc_exit")
		_ = exitCode
	}).Export("proc_exit")

	b.NewFunctionBuilder().WithFunc(func(_ context.Context, m api.Module, _ uint32, _ int64, timePtr uint32) uint32 {
		now := uint64(time.Now().UnixNano())
		if !m.Memory().WriteUint64Le(timePtr, now) {
			return wasiErrnoInval
		}
		return wasiErrnoSuccess
	}).Export("clock_time_get")

	b.NewFunctionBuilder().WithFunc(func(_ context.Context, m api.Module, bufPtr, bufLen uint32) uint32 {
		mem := m.Memory()
		seed := uint64(time.Now().UnixNano())
		buf := make([]byte, bufLen)
		for i := range buf {
			seed = seed*6364136223846793005 + 1
			buf[i] = byte(seed >> 32)
		}
		if !mem.Write(bufPtr, buf) {
			return wasiErrnoInval
		}
		return wasiErrnoSuccess
	}).Export("random_get")

	_, err := b.Instantiate(ctx)
	return err
}
