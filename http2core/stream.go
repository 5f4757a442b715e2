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

package http2core

import (
	"sync"

	"github.com/nabbar/golib/errors"
)

// StreamState is a simplified RFC 7540 §5.1 stream state, collapsed to the
// transitions a proxying gateway actually drives (it never sends PUSH_PROMISE
// and never reserves a stream locally or remotely).
type StreamState uint8

const (
	StreamIdle StreamState = iota
	StreamOpen
	StreamHalfClosedLocal
	StreamHalfClosedRemote
	StreamClosed
)

func (s StreamState) String() string {
	switch s {
	case StreamIdle:
		return "idle"
	case StreamOpen:
		return "open"
	case StreamHalfClosedLocal:
		return "half-closed-local"
	case StreamHalfClosedRemote:
		return "half-closed-remote"
	case StreamClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Stream tracks one proxied request's HTTP/2 stream state on top of the
// underlying connection, independent of whatever internal bookkeeping
// golang.org/x/net/http2 itself performs for flow control and HPACK.
type Stream struct {
	mu    sync.Mutex
	id    uint32
	state StreamState
}

// NewStream starts a stream in the Idle state for the given stream id.
func NewStream(id uint32) *Stream {
	return &Stream{id: id, state: StreamIdle}
}

// ID returns the stream's id (odd for client-initiated streams, per RFC
// 7540 §5.1.1).
func (s *Stream) ID() uint32 {
	return s.id
}

// State returns the current stream state.
func (s *Stream) State() StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OpenLocal transitions Idle -> Open when the gateway sends HEADERS
// without END_STREAM.
func (s *Stream) OpenLocal() errors.Error {
	return s.transition(StreamIdle, StreamOpen)
}

// HalfCloseLocal transitions Open -> HalfClosedLocal (the gateway has sent
// its last frame with END_STREAM but the backend may still send data), or
// Idle -> HalfClosedLocal directly for a request sent with END_STREAM set
// on the initial HEADERS frame.
func (s *Stream) HalfCloseLocal() errors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StreamOpen:
		s.state = StreamHalfClosedLocal
		return nil
	case StreamIdle:
		s.state = StreamHalfClosedLocal
		return nil
	default:
		return ErrorInvalidStreamTransition.Error(nil)
	}
}

// HalfCloseRemote transitions Open -> HalfClosedRemote when the backend's
// response carries END_STREAM before the gateway has finished its request
// body (rare, but legal: a backend that rejects the request early).
func (s *Stream) HalfCloseRemote() errors.Error {
	return s.transition(StreamOpen, StreamHalfClosedRemote)
}

// Close transitions any state other than Closed, Idle included, to Closed,
// once both sides have sent END_STREAM or either side has sent RST_STREAM.
// Closing an already Closed stream is an error.
func (s *Stream) Close() errors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StreamClosed:
		return ErrorInvalidStreamTransition.Error(nil)
	default:
		s.state = StreamClosed
		return nil
	}
}

func (s *Stream) transition(from, to StreamState) errors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != from {
		return ErrorInvalidStreamTransition.Error(nil)
	}
	s.state = to
	return nil
}

// StreamIDAllocator hands out client-initiated stream ids (odd, strictly
// increasing) and enforces RFC 7540 §5.1.1's exhaustion limit.
type StreamIDAllocator struct {
	mu   sync.Mutex
	next uint32
}

// NewStreamIDAllocator starts allocation at stream id 1.
func NewStreamIDAllocator() *StreamIDAllocator {
	return &StreamIDAllocator{next: 1}
}

// Next returns the next odd stream id, or ErrorStreamLimitReached once the
// 31-bit stream-id space is exhausted and the connection must be retired.
func (a *StreamIDAllocator) Next() (uint32, errors.Error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.next > 0x7FFFFFFF-2 {
		return 0, ErrorStreamLimitReached.Error(nil)
	}

	id := a.next
	a.next += 2
	return id, nil
}
