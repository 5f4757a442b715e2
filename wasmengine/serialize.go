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

import "encoding/binary"

// EncodeHeaderMap serializes a header list the way the ABI passes it to a
// guest: a little-endian u32 pair count, then for each pair a u32 key
// length, the key bytes, a u32 value length, and the value bytes.
func EncodeHeaderMap(pairs []HeaderPair) []byte {
	size := 4
	for _, p := range pairs {
		size += 4 + len(p.Name) + 4 + len(p.Value)
	}

	buf := make([]byte, size)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(pairs)))
	off := 4
	for _, p := range pairs {
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(len(p.Name)))
		off += 4
		off += copy(buf[off:], p.Name)
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(len(p.Value)))
		off += 4
		off += copy(buf[off:], p.Value)
	}
	return buf
}

// DecodeHeaderMap parses a guest-supplied buffer in the same layout, for
// host functions like proxy_set_header_map_pairs, proxy_send_local_response
// and proxy_http_call that take a whole header map at once.
func DecodeHeaderMap(buf []byte) ([]HeaderPair, Status) {
	if len(buf) == 0 {
		return nil, StatusOK
	}
	if len(buf) < 4 {
		return nil, StatusBadArgument
	}

	count := binary.LittleEndian.Uint32(buf[0:4])
	pairs := make([]HeaderPair, 0, count)
	off := 4

	for i := uint32(0); i < count; i++ {
		if off+4 > len(buf) {
			return nil, StatusBadArgument
		}
		keyLen := int(binary.LittleEndian.Uint32(buf[off : off+4]))
		off += 4
		if off+keyLen > len(buf) {
			return nil, StatusBadArgument
		}
		key := string(buf[off : off+keyLen])
		off += keyLen

		if off+4 > len(buf) {
			return nil, StatusBadArgument
		}
		valLen := int(binary.LittleEndian.Uint32(buf[off : off+4]))
		off += 4
		if off+valLen > len(buf) {
			return nil, StatusBadArgument
		}
		value := string(buf[off : off+valLen])
		off += valLen

		pairs = append(pairs, HeaderPair{Name: key, Value: value})
	}

	return pairs, StatusOK
}
