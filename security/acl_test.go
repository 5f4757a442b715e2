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

package security

import (
	"net"
	"testing"
)

func TestACL_DisabledAllowsEverything(t *testing.T) {
	a, err := NewACL(DefaultACLConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.Allowed(net.ParseIP("203.0.113.5")) {
		t.Fatalf("expected disabled ACL to allow any address")
	}
}

func TestACL_DenyWinsOverAllow(t *testing.T) {
	a, err := NewACL(ACLConfig{
		Enabled: true,
		Mode:    ACLModeDenyAll,
		Allow:   []string{"10.0.0.0/8"},
		Deny:    []string{"10.1.0.0/16"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !a.Allowed(net.ParseIP("10.2.3.4")) {
		t.Fatalf("expected 10.2.3.4 to be allowed by the broader allow rule")
	}
	if a.Allowed(net.ParseIP("10.1.3.4")) {
		t.Fatalf("expected 10.1.3.4 to be denied by the narrower deny rule")
	}
}

func TestACL_DefaultModeGovernsUnmatchedAddresses(t *testing.T) {
	denyAll, _ := NewACL(ACLConfig{Enabled: true, Mode: ACLModeDenyAll})
	if denyAll.Allowed(net.ParseIP("198.51.100.1")) {
		t.Fatalf("expected deny-all default to reject an unmatched address")
	}

	allowAll, _ := NewACL(ACLConfig{Enabled: true, Mode: ACLModeAllowAll})
	if !allowAll.Allowed(net.ParseIP("198.51.100.1")) {
		t.Fatalf("expected allow-all default to accept an unmatched address")
	}
}

func TestACL_BareAddressAcceptedAsHostRoute(t *testing.T) {
	a, err := NewACL(ACLConfig{
		Enabled: true,
		Mode:    ACLModeDenyAll,
		Allow:   []string{"192.168.1.50"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.Allowed(net.ParseIP("192.168.1.50")) {
		t.Fatalf("expected bare address to match as a /32 host route")
	}
	if a.Allowed(net.ParseIP("192.168.1.51")) {
		t.Fatalf("expected neighboring address not to match the host route")
	}
}

func TestACL_InvalidCIDRRejected(t *testing.T) {
	if _, err := NewACL(ACLConfig{Enabled: true, Allow: []string{"not-an-address"}}); err == nil {
		t.Fatalf("expected an error for a malformed CIDR entry")
	}
}

func TestACL_Reconfigure(t *testing.T) {
	a, _ := NewACL(ACLConfig{Enabled: true, Mode: ACLModeDenyAll})
	if a.Allowed(net.ParseIP("10.0.0.1")) {
		t.Fatalf("expected initial deny-all to reject")
	}

	if err := a.Reconfigure(ACLConfig{Enabled: true, Mode: ACLModeAllowAll}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.Allowed(net.ParseIP("10.0.0.1")) {
		t.Fatalf("expected reconfigured allow-all to accept")
	}
}
