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

package buffering

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/nabbar/golib/errors"
	"github.com/nabbar/golib/ioutils"
)

// Buffer accumulates a Full/Adaptive-mode response, spilling to disk once
// MaxMemoryBuffer is exceeded. Streaming mode never allocates a Buffer; see
// Stream in copy.go for that path.
type Buffer struct {
	opt Options

	mu        sync.Mutex
	mem       bytes.Buffer
	spill     *os.File
	spillPath string
	diskUsed  int64
	streaming bool // true once memory is exhausted with no disk configured
}

// NewBuffer creates an empty Buffer for Full/Adaptive mode under opt.
func NewBuffer(opt Options) *Buffer {
	return &Buffer{opt: opt}
}

// Write accumulates p, spilling to disk once the memory ceiling is crossed.
// It never blocks on the client; pacing to the client happens on Reader's
// consumer side.
func (b *Buffer) Write(p []byte) (int, errors.Error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.streaming {
		// Memory cap was hit with no disk path configured; the caller (the
		// dispatcher) is expected to have fallen back to direct streaming
		// for the remainder and must not call Write again.
		return 0, nil
	}

	room := b.opt.MaxMemoryBuffer - int64(b.mem.Len())
	if room < 0 {
		room = 0
	}

	if int64(len(p)) <= room || b.opt.MaxMemoryBuffer <= 0 {
		b.mem.Write(p)
		return len(p), nil
	}

	// Memory ceiling crossed partway through p: keep what fits in memory,
	// spill the remainder.
	head, tail := p[:room], p[room:]
	b.mem.Write(head)

	if b.opt.DiskBufferPath == "" {
		b.streaming = true
		return len(head), nil
	}

	if err := b.ensureSpill(); err != nil {
		return len(head), err
	}

	if b.diskUsed+int64(len(tail)) > b.opt.MaxDiskBuffer && b.opt.MaxDiskBuffer > 0 {
		return len(head), ErrorDiskBufferExceeded.Error(nil)
	}

	n, werr := b.spill.Write(tail)
	b.diskUsed += int64(n)
	if werr != nil {
		return len(head) + n, ErrorSpillFileCreate.Error(werr)
	}
	return len(head) + n, nil
}

// IsStreamingFallback reports whether Write hit the memory cap with no disk
// path configured, meaning the caller must switch to direct streaming for
// any remaining upstream bytes.
func (b *Buffer) IsStreamingFallback() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.streaming
}

func (b *Buffer) ensureSpill() errors.Error {
	if b.spill != nil {
		return nil
	}

	name := filepath.Join(b.opt.DiskBufferPath, uuid.NewString())
	f, err := os.Create(name)
	if err != nil {
		return ErrorSpillFileCreate.Error(err)
	}
	b.spill = f
	b.spillPath = name
	return nil
}

// Reader returns a fresh reader over the buffered content: memory bytes
// first, then the spill file if one was created, in the exact order they
// were written — the ordering invariant Full-mode buffering must preserve.
// The returned ReadCloser deletes the spill file on Close.
func (b *Buffer) Reader() (io.ReadCloser, errors.Error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	memReader := ioutils.NewBufferReadCloser(bytes.NewBuffer(b.mem.Bytes()))

	if b.spill == nil {
		return memReader, nil
	}

	if _, err := b.spill.Seek(0, io.SeekStart); err != nil {
		return nil, ErrorSpillFileCreate.Error(err)
	}

	return &spilledReader{
		mem:  memReader,
		file: b.spill,
		path: b.spillPath,
	}, nil
}

// spilledReader chains the in-memory prefix with the on-disk remainder and
// removes the file once fully consumed or explicitly closed.
type spilledReader struct {
	mem      io.ReadCloser
	file     *os.File
	path     string
	memDone  bool
	finished bool
}

func (r *spilledReader) Read(p []byte) (int, error) {
	if !r.memDone {
		n, err := r.mem.Read(p)
		if err == io.EOF {
			r.memDone = true
			_ = r.mem.Close()
		} else {
			return n, err
		}
		if n > 0 {
			return n, nil
		}
	}

	n, err := r.file.Read(p)
	if err == io.EOF {
		r.finished = true
		_ = r.Close()
	}
	return n, err
}

func (r *spilledReader) Close() error {
	if r.finished {
		return nil
	}
	r.finished = true
	if !r.memDone {
		_ = r.mem.Close()
	}
	_ = r.file.Close()
	return os.Remove(r.path)
}
