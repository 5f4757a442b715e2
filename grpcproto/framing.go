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

package grpcproto

import (
	"encoding/binary"

	"github.com/nabbar/golib/errors"
)

// FrameHeaderSize is the fixed 5-byte gRPC message header: 1 byte of flags
// followed by a 4-byte big-endian length.
const FrameHeaderSize = 5

// DefaultMaxMessageSize is the default gRPC message size ceiling (4 MiB).
const DefaultMaxMessageSize = 4 * 1024 * 1024

const flagCompressed = 0x1

// Frame is one decoded gRPC message: its compression flag and payload.
type Frame struct {
	Compressed bool
	Data       []byte
}

// Encode renders the frame as header+payload, ready to write to the wire.
func (f Frame) Encode() []byte {
	out := make([]byte, FrameHeaderSize+len(f.Data))
	if f.Compressed {
		out[0] = flagCompressed
	}
	binary.BigEndian.PutUint32(out[1:5], uint32(len(f.Data)))
	copy(out[5:], f.Data)
	return out
}

// Decode reads one frame from buf. It returns the frame, the number of bytes
// consumed, and an error. ErrorFrameTruncated (not a hard failure) means buf
// does not yet hold a whole frame; the caller should read more and retry.
// maxSize is checked against the declared length BEFORE the payload slice
// is read, so an oversized claim never allocates the buffer.
func Decode(buf []byte, maxSize int) (Frame, int, errors.Error) {
	if len(buf) < FrameHeaderSize {
		return Frame{}, 0, ErrorFrameTruncated.Error(nil)
	}

	length := binary.BigEndian.Uint32(buf[1:5])
	if maxSize > 0 && int(length) > maxSize {
		return Frame{}, 0, ErrorFrameTooLarge.Error(nil)
	}

	total := FrameHeaderSize + int(length)
	if len(buf) < total {
		return Frame{}, 0, ErrorFrameTruncated.Error(nil)
	}

	data := make([]byte, length)
	copy(data, buf[FrameHeaderSize:total])

	return Frame{Compressed: buf[0]&flagCompressed != 0, Data: data}, total, nil
}

// Decoder is a streaming gRPC frame decoder: feed it bytes as they arrive
// over HTTP/2 DATA frames and drain whole messages as they become
// available.
type Decoder struct {
	buf     []byte
	maxSize int
}

// NewDecoder creates a Decoder that rejects frames over maxSize (0 means
// DefaultMaxMessageSize).
func NewDecoder(maxSize int) *Decoder {
	if maxSize <= 0 {
		maxSize = DefaultMaxMessageSize
	}
	return &Decoder{maxSize: maxSize}
}

// Feed appends newly-received bytes to the decoder's internal buffer.
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Next pulls the next complete frame out of the buffer, if one is ready.
func (d *Decoder) Next() (Frame, bool, errors.Error) {
	f, n, err := Decode(d.buf, d.maxSize)
	if err != nil {
		if err.IsCode(ErrorFrameTruncated) {
			return Frame{}, false, nil
		}
		return Frame{}, false, err
	}
	d.buf = d.buf[n:]
	return f, true, nil
}
