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
	"strconv"
	"time"

	"github.com/nabbar/golib/errors"
)

// ParseTimeout decodes a grpc-timeout header value: a decimal magnitude
// followed by a single unit byte (H hours, M minutes, S seconds, m
// milliseconds, u microseconds, n nanoseconds).
func ParseTimeout(value string) (time.Duration, errors.Error) {
	if value == "" {
		return 0, ErrorInvalidTimeout.Error(nil)
	}

	unit := value[len(value)-1]
	num, err := strconv.ParseUint(value[:len(value)-1], 10, 64)
	if err != nil {
		return 0, ErrorInvalidTimeout.Error(err)
	}

	switch unit {
	case 'H':
		return time.Duration(num) * time.Hour, nil
	case 'M':
		return time.Duration(num) * time.Minute, nil
	case 'S':
		return time.Duration(num) * time.Second, nil
	case 'm':
		return time.Duration(num) * time.Millisecond, nil
	case 'u':
		return time.Duration(num) * time.Microsecond, nil
	case 'n':
		return time.Duration(num), nil
	default:
		return 0, ErrorInvalidTimeout.Error(nil)
	}
}

// FormatTimeout renders a duration as a grpc-timeout header value, choosing
// the largest unit that represents it exactly so the header stays short.
func FormatTimeout(d time.Duration) string {
	if d == 0 {
		return "0n"
	}

	if d%time.Hour == 0 {
		return strconv.FormatInt(int64(d/time.Hour), 10) + "H"
	}
	if d%time.Minute == 0 {
		return strconv.FormatInt(int64(d/time.Minute), 10) + "M"
	}
	if d%time.Second == 0 {
		return strconv.FormatInt(int64(d/time.Second), 10) + "S"
	}
	if d%time.Millisecond == 0 {
		return strconv.FormatInt(int64(d/time.Millisecond), 10) + "m"
	}
	if d%time.Microsecond == 0 {
		return strconv.FormatInt(int64(d/time.Microsecond), 10) + "u"
	}
	return strconv.FormatInt(int64(d), 10) + "n"
}
