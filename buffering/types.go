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

import "time"

// Mode selects how a response is decoupled from the upstream read.
type Mode uint8

const (
	Streaming Mode = iota
	Full
	Adaptive
)

// Options configures a Buffer's memory/disk ceilings and client pacing.
type Options struct {
	AdaptiveThreshold  int64
	MaxMemoryBuffer    int64
	MaxDiskBuffer      int64
	DiskBufferPath     string
	ClientWriteTimeout time.Duration
	HeaderBuffering    bool
}

// DecideMode resolves Adaptive into a concrete Full-or-Streaming choice
// given what the upstream declared. contentLength < 0 means unknown
// (chunked), which always streams.
func DecideMode(configured Mode, contentLength int64, threshold int64) Mode {
	if configured != Adaptive {
		return configured
	}
	if contentLength < 0 {
		return Streaming
	}
	if contentLength <= threshold {
		return Full
	}
	return Streaming
}
