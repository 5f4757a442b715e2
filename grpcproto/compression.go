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
	"bytes"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"

	"github.com/nabbar/golib/errors"
)

// Encoding is a grpc-encoding / grpc-accept-encoding value.
type Encoding uint8

const (
	Identity Encoding = iota
	Gzip
	Deflate
)

// EncodingFromString parses a grpc-encoding header value.
func EncodingFromString(s string) (Encoding, bool) {
	switch {
	case strings.EqualFold(s, "identity"):
		return Identity, true
	case strings.EqualFold(s, "gzip"):
		return Gzip, true
	case strings.EqualFold(s, "deflate"):
		return Deflate, true
	default:
		return 0, false
	}
}

func (e Encoding) String() string {
	switch e {
	case Gzip:
		return "gzip"
	case Deflate:
		return "deflate"
	default:
		return "identity"
	}
}

// IsCompressed reports whether e requires a decompression step.
func (e Encoding) IsCompressed() bool {
	return e != Identity
}

// CompressionConfig governs which encodings a gateway offers and at what
// size messages become worth compressing.
type CompressionConfig struct {
	Enabled   []Encoding
	Preferred Encoding
	Level     int
	MinSize   int
}

// DefaultCompressionConfig enables identity and gzip, preferring gzip for
// payloads over 1KB.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		Enabled:   []Encoding{Identity, Gzip},
		Preferred: Gzip,
		Level:     6,
		MinSize:   1024,
	}
}

// IdentityOnlyCompressionConfig disables compression entirely.
func IdentityOnlyCompressionConfig() CompressionConfig {
	return CompressionConfig{Enabled: []Encoding{Identity}, Preferred: Identity}
}

func (c CompressionConfig) supports(e Encoding) bool {
	for _, v := range c.Enabled {
		if v == e {
			return true
		}
	}
	return false
}

// Negotiate picks the encoding to use for a response, given the client's
// accepted list: the preferred encoding wins if the client accepts it,
// otherwise the first mutually supported one, otherwise identity.
func (c CompressionConfig) Negotiate(accept []Encoding) Encoding {
	if c.supports(c.Preferred) {
		for _, a := range accept {
			if a == c.Preferred {
				return c.Preferred
			}
		}
	}

	for _, a := range accept {
		if c.supports(a) {
			return a
		}
	}

	return Identity
}

// AcceptEncodingHeader renders the enabled list as a grpc-accept-encoding
// header value.
func (c CompressionConfig) AcceptEncodingHeader() string {
	parts := make([]string, len(c.Enabled))
	for i, e := range c.Enabled {
		parts[i] = e.String()
	}
	return strings.Join(parts, ",")
}

// Compress encodes data per e. Identity is a no-op copy.
func Compress(e Encoding, data []byte, level int) ([]byte, errors.Error) {
	switch e {
	case Identity:
		return data, nil
	case Gzip:
		var buf bytes.Buffer
		w, err := gzip.NewWriterLevel(&buf, level)
		if err != nil {
			return nil, ErrorUnknownCompression.Error(err)
		}
		if _, err = w.Write(data); err != nil {
			return nil, ErrorUnknownCompression.Error(err)
		}
		if err = w.Close(); err != nil {
			return nil, ErrorUnknownCompression.Error(err)
		}
		return buf.Bytes(), nil
	case Deflate:
		var buf bytes.Buffer
		w, err := flate.NewWriter(&buf, level)
		if err != nil {
			return nil, ErrorUnknownCompression.Error(err)
		}
		if _, err = w.Write(data); err != nil {
			return nil, ErrorUnknownCompression.Error(err)
		}
		if err = w.Close(); err != nil {
			return nil, ErrorUnknownCompression.Error(err)
		}
		return buf.Bytes(), nil
	default:
		return nil, ErrorUnknownCompression.Error(nil)
	}
}

// Decompress reverses Compress.
func Decompress(e Encoding, data []byte) ([]byte, errors.Error) {
	switch e {
	case Identity:
		return data, nil
	case Gzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, ErrorUnknownCompression.Error(err)
		}
		defer func() { _ = r.Close() }()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, ErrorUnknownCompression.Error(err)
		}
		return out, nil
	case Deflate:
		r := flate.NewReader(bytes.NewReader(data))
		defer func() { _ = r.Close() }()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, ErrorUnknownCompression.Error(err)
		}
		return out, nil
	default:
		return nil, ErrorUnknownCompression.Error(nil)
	}
}
