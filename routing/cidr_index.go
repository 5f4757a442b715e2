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

package routing

import (
	"encoding/binary"
	"net"
	"sort"

	"github.com/nabbar/golib/errors"
)

// cidrRange is a single network expressed as a fixed-width integer plus a
// prefix length, matching the bit-level representation the router's data
// model calls for instead of leaning on net.IPNet.Contains at lookup time.
type cidrRange struct {
	idx      int
	isV6     bool
	v4Net    uint32
	v6Hi     uint64
	v6Lo     uint64
	prefix   int
}

// cidrIndex holds every CIDR-constrained route, sorted so that more-specific
// ranges (longer prefixes) are always tested before less-specific ones.
type cidrIndex struct {
	v4 []cidrRange
	v6 []cidrRange
	// unconstrained carries route indices with no CIDR condition at all.
	unconstrained []int
}

func newCIDRIndex() *cidrIndex {
	return &cidrIndex{}
}

func (c *cidrIndex) addUnconstrained(idx int) {
	c.unconstrained = append(c.unconstrained, idx)
}

func (c *cidrIndex) add(idx int, cidr string) errors.Error {
	r, err := parseCIDRRange(idx, cidr)
	if err != nil {
		return err
	}
	if r.isV6 {
		c.v6 = append(c.v6, r)
	} else {
		c.v4 = append(c.v4, r)
	}
	return nil
}

func (c *cidrIndex) finalize() {
	sort.SliceStable(c.v4, func(i, j int) bool { return c.v4[i].prefix > c.v4[j].prefix })
	sort.SliceStable(c.v6, func(i, j int) bool { return c.v6[i].prefix > c.v6[j].prefix })
}

// candidates returns every route index whose CIDR ranges contain ip, most
// specific (longest prefix) first, followed by every unconstrained route.
func (c *cidrIndex) candidates(ip net.IP) []int {
	var out []int

	if v4 := ip.To4(); v4 != nil {
		addr := binary.BigEndian.Uint32(v4)
		for _, r := range c.v4 {
			if v4Contains(r, addr) {
				out = append(out, r.idx)
			}
		}
	} else if v6 := ip.To16(); v6 != nil {
		hi := binary.BigEndian.Uint64(v6[0:8])
		lo := binary.BigEndian.Uint64(v6[8:16])
		for _, r := range c.v6 {
			if v6Contains(r, hi, lo) {
				out = append(out, r.idx)
			}
		}
	}

	out = append(out, c.unconstrained...)
	return out
}

func v4Contains(r cidrRange, addr uint32) bool {
	if r.prefix == 0 {
		return true
	}
	mask := uint32(0xFFFFFFFF) << (32 - uint(r.prefix))
	return addr&mask == r.v4Net&mask
}

func v6Contains(r cidrRange, hi, lo uint64) bool {
	switch {
	case r.prefix == 0:
		return true
	case r.prefix <= 64:
		mask := uint64(0xFFFFFFFFFFFFFFFF) << (64 - uint(r.prefix))
		return hi&mask == r.v6Hi&mask
	default:
		if hi != r.v6Hi {
			return false
		}
		mask := uint64(0xFFFFFFFFFFFFFFFF) << (128 - uint(r.prefix))
		return lo&mask == r.v6Lo&mask
	}
}

func parseCIDRRange(idx int, cidr string) (cidrRange, errors.Error) {
	ip, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		// Accept a bare address as a /32 or /128 host route.
		if bare := net.ParseIP(cidr); bare != nil {
			ip = bare
			if v4 := bare.To4(); v4 != nil {
				ipNet = &net.IPNet{IP: v4, Mask: net.CIDRMask(32, 32)}
			} else {
				ipNet = &net.IPNet{IP: bare.To16(), Mask: net.CIDRMask(128, 128)}
			}
		} else {
			return cidrRange{}, ErrorInvalidCIDR.Error(err)
		}
	}

	ones, bits := ipNet.Mask.Size()
	r := cidrRange{idx: idx, prefix: ones}

	if bits == 32 || ip.To4() != nil {
		r.v4Net = binary.BigEndian.Uint32(ipNet.IP.To4())
		return r, nil
	}

	r.isV6 = true
	raw := ipNet.IP.To16()
	r.v6Hi = binary.BigEndian.Uint64(raw[0:8])
	r.v6Lo = binary.BigEndian.Uint64(raw[8:16])
	return r, nil
}
