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
	"io"
	"net"
	"time"

	"github.com/nabbar/golib/errors"
)

// DeadlineWriter is the subset of net.Conn that Stream needs to enforce a
// per-write client timeout; *net.TCPConn, *tls.Conn and http.ResponseController
// wrappers all satisfy it.
type DeadlineWriter interface {
	io.Writer
	SetWriteDeadline(t time.Time) error
}

// Stream copies src to dst, resetting the write-timeout deadline after every
// successful write. Streaming mode and the pass-through leg of Full/Adaptive
// mode both funnel through this so the client-write-timeout contract is
// enforced uniformly regardless of buffering mode.
func Stream(dst DeadlineWriter, src io.Reader, timeout time.Duration) (int64, errors.Error) {
	buf := make([]byte, 32*1024)
	var total int64

	for {
		nr, rerr := src.Read(buf)
		if nr > 0 {
			if timeout > 0 {
				if err := dst.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
					return total, ErrorWriteTimeout.Error(err)
				}
			}

			nw, werr := dst.Write(buf[:nr])
			total += int64(nw)

			if werr != nil {
				if ne, ok := werr.(net.Error); ok && ne.Timeout() {
					return total, ErrorWriteTimeout.Error(werr)
				}
				return total, ErrorWriteTimeout.Error(werr)
			}
			if nw != nr {
				return total, ErrorWriteTimeout.Error(io.ErrShortWrite)
			}
		}

		if rerr == io.EOF {
			return total, nil
		}
		if rerr != nil {
			return total, ErrorWriteTimeout.Error(rerr)
		}
	}
}
