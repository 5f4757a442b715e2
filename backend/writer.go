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

package backend

import (
	"net/http"
	"time"
)

// deadlineWriter adapts an http.ResponseWriter into buffering.DeadlineWriter
// via http.ResponseController, so the client-write-timeout contract applies
// uniformly whether the response came from a Proxy, MemoryFile or SendFile
// backend.
type deadlineWriter struct {
	w http.ResponseWriter
	c *http.ResponseController
}

func newDeadlineWriter(w http.ResponseWriter) *deadlineWriter {
	return &deadlineWriter{w: w, c: http.NewResponseController(w)}
}

func (d *deadlineWriter) Write(p []byte) (int, error) { return d.w.Write(p) }

func (d *deadlineWriter) SetWriteDeadline(t time.Time) error {
	err := d.c.SetWriteDeadline(t)
	if err == http.ErrNotSupported {
		// The underlying writer doesn't support deadlines (e.g. in tests
		// using httptest.ResponseRecorder); treat as a no-op rather than a
		// transfer failure.
		return nil
	}
	return err
}
