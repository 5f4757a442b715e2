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
	"sync"

	"github.com/nabbar/golib/errors"
)

// ACLMode controls what happens to an address that matches no rule at all.
type ACLMode uint8

const (
	// ACLModeAllowAll lets through anything not explicitly denied.
	ACLModeAllowAll ACLMode = iota
	// ACLModeDenyAll rejects anything not explicitly allowed.
	ACLModeDenyAll
)

// ACLConfig is the declarative shape of an access control list: a set of
// allow and deny networks (their order is not significant) plus a default
// for addresses matching neither.
type ACLConfig struct {
	Enabled bool
	Mode    ACLMode
	Allow   []string
	Deny    []string
}

// DefaultACLConfig disables the ACL outright, matching the deny-by-default
// posture everywhere else in this tree without breaking a fresh install
// that hasn't configured any rule yet.
func DefaultACLConfig() ACLConfig {
	return ACLConfig{
		Enabled: false,
		Mode:    ACLModeAllowAll,
	}
}

type aclRule struct {
	net *net.IPNet
}

// ACL is a compiled, concurrency-safe access control list. Deny rules are
// always checked before allow rules regardless of declaration order, so a
// narrower deny can carve an exception out of a broader allow.
type ACL struct {
	mu    sync.RWMutex
	cfg   ACLConfig
	allow []aclRule
	deny  []aclRule
}

// NewACL compiles cfg into a ready-to-use ACL.
func NewACL(cfg ACLConfig) (*ACL, errors.Error) {
	a := &ACL{}
	if err := a.Reconfigure(cfg); err != nil {
		return nil, err
	}
	return a, nil
}

// Reconfigure atomically replaces the compiled rule set.
func (a *ACL) Reconfigure(cfg ACLConfig) errors.Error {
	allow, err := compileRules(cfg.Allow)
	if err != nil {
		return err
	}
	deny, err := compileRules(cfg.Deny)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg = cfg
	a.allow = allow
	a.deny = deny
	return nil
}

func compileRules(entries []string) ([]aclRule, errors.Error) {
	out := make([]aclRule, 0, len(entries))
	for _, e := range entries {
		n, err := parseNetwork(e)
		if err != nil {
			return nil, ErrorInvalidCIDR.Error(err)
		}
		out = append(out, aclRule{net: n})
	}
	return out, nil
}

// parseNetwork accepts both a CIDR block and a bare address, treating the
// latter as a host route — the same convenience the router's CIDR index
// offers for single-IP rules.
func parseNetwork(value string) (*net.IPNet, error) {
	if _, n, err := net.ParseCIDR(value); err == nil {
		return n, nil
	}
	ip := net.ParseIP(value)
	if ip == nil {
		return nil, &net.ParseError{Type: "CIDR address", Text: value}
	}
	if v4 := ip.To4(); v4 != nil {
		return &net.IPNet{IP: v4, Mask: net.CIDRMask(32, 32)}, nil
	}
	return &net.IPNet{IP: ip.To16(), Mask: net.CIDRMask(128, 128)}, nil
}

// Allowed reports whether remote is permitted to reach the gateway. Deny
// rules win over allow rules; an address matching neither falls back to
// the configured Mode.
func (a *ACL) Allowed(remote net.IP) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.cfg.Enabled {
		return true
	}
	for _, r := range a.deny {
		if r.net.Contains(remote) {
			return false
		}
	}
	for _, r := range a.allow {
		if r.net.Contains(remote) {
			return true
		}
	}
	return a.cfg.Mode == ACLModeAllowAll
}
