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

package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nabbar/golib/errors"

	"github/sabouaram/golib/backend"
	"github/sabouaram/golib/buffering"
	"github/sabouaram/golib/security"
)

// File is the root of the YAML configuration document: the declarative,
// uncompiled shape an operator edits on disk.
type File struct {
	Server    ServerConfig      `yaml:"server"`
	TLS       TLSConfig         `yaml:"tls"`
	Routes    []RouteConfig     `yaml:"routes"`
	Upstreams []UpstreamConfig  `yaml:"upstreams"`
	Buffering buffering.Options `yaml:"buffering"`
	Security  SecuritySection   `yaml:"security"`
	Wasm      []WasmModuleConfig `yaml:"wasm,omitempty"`
}

// ServerConfig describes the listener ports and worker count.
type ServerConfig struct {
	HTTPSPort int `yaml:"https_port"`
	HTTPPort  int `yaml:"http_port,omitempty"`
	Workers   int `yaml:"workers,omitempty"`
}

// TLSConfig names the certificate/key pair and the ALPN protocols the TLS
// listener advertises; "h3" additionally turns on the UDP/QUIC listener on
// the same port number as HTTPSPort.
type TLSConfig struct {
	CertFile string   `yaml:"cert_file"`
	KeyFile  string   `yaml:"key_file"`
	ALPN     []string `yaml:"alpn,omitempty"`
}

// MatchConfig is the YAML shape of a routing.Condition.
type MatchConfig struct {
	Host    string              `yaml:"host,omitempty"`
	Path    string              `yaml:"path,omitempty"`
	Methods []string            `yaml:"methods,omitempty"`
	Headers map[string][]string `yaml:"headers,omitempty"`
	Query   map[string][]string `yaml:"query,omitempty"`
	CIDRs   []string            `yaml:"cidrs,omitempty"`
}

// RouteConfig is one ordered entry in the route list. Name is for
// diagnostics only; it has no effect on matching.
type RouteConfig struct {
	Name    string        `yaml:"name,omitempty"`
	Match   MatchConfig   `yaml:"match"`
	Backend BackendConfig `yaml:"backend"`
	// Wasm names File.Wasm modules, by Name, bound to this route in
	// declaration order. A module bound to no route is still loaded (and
	// still counted for reload purposes) but never dispatched.
	Wasm []string `yaml:"wasm,omitempty"`
}

// WasmModuleConfig names one Proxy-Wasm filter binary and the capability
// preset it runs under.
type WasmModuleConfig struct {
	Name         string `yaml:"name"`
	File         string `yaml:"file"`
	Capabilities string `yaml:"capabilities,omitempty"`
	VMConfig     string `yaml:"vm_config,omitempty"`
	PluginConfig string `yaml:"plugin_config,omitempty"`
	MaxContexts  int    `yaml:"max_contexts,omitempty"`
}

// BackendConfig is a kind-tagged union: only the field named by Kind is
// read by Build.
type BackendConfig struct {
	Kind       string                    `yaml:"kind"`
	Proxy      *ProxyBackendConfig       `yaml:"proxy,omitempty"`
	MemoryFile *MemoryFileBackendConfig  `yaml:"memory_file,omitempty"`
	SendFile   *SendFileBackendConfig    `yaml:"send_file,omitempty"`
	Redirect   *RedirectBackendConfig    `yaml:"redirect,omitempty"`
	Buffering  *buffering.Options        `yaml:"buffering,omitempty"`
	PathSecure *backend.PathSecurityConfig `yaml:"path_security,omitempty"`
}

// ProxyBackendConfig forwards to a named entry in File.Upstreams.
type ProxyBackendConfig struct {
	Upstream      string        `yaml:"upstream"`
	Scheme        string        `yaml:"scheme,omitempty"`
	StripPrefix   string        `yaml:"strip_prefix,omitempty"`
	AddPrefix     string        `yaml:"add_prefix,omitempty"`
	ClientTimeout time.Duration `yaml:"client_timeout,omitempty"`
}

// MemoryFileBackendConfig is read from disk once, at Build time, into an
// in-process byte slab; File is relative to the process working directory.
type MemoryFileBackendConfig struct {
	File string `yaml:"file"`
	MIME string `yaml:"mime,omitempty"`
	ETag string `yaml:"etag,omitempty"`
}

// SendFileBackendConfig serves files from BasePath at request time.
type SendFileBackendConfig struct {
	BasePath  string `yaml:"base_path"`
	IsDir     bool   `yaml:"is_dir,omitempty"`
	IndexName string `yaml:"index_name,omitempty"`
}

// RedirectBackendConfig answers with a templated 3xx.
type RedirectBackendConfig struct {
	URLTemplate  string `yaml:"url_template"`
	StatusCode   int    `yaml:"status_code,omitempty"`
	PreservePath bool   `yaml:"preserve_path,omitempty"`
}

// ServerEntry is one member of an upstream group.
type ServerEntry struct {
	Address string `yaml:"address"`
	Weight  int    `yaml:"weight,omitempty"`
}

// UpstreamConfig names a load-balanced group of backend servers; routes
// reference it by Name.
type UpstreamConfig struct {
	Name      string        `yaml:"name"`
	Algorithm string        `yaml:"algorithm,omitempty"`
	Servers   []ServerEntry `yaml:"servers"`
}

// SecuritySection groups the four independent security components; each
// reuses its package's own Config type rather than a duplicated YAML shape.
type SecuritySection struct {
	ACL         security.ACLConfig         `yaml:"acl"`
	RateLimit   security.RateLimitConfig   `yaml:"rate_limit"`
	MethodGuard security.MethodGuardConfig `yaml:"method_guard"`
	Reporting   security.SecurityConfig    `yaml:"reporting"`
}

// LoadFile reads and parses path into a File. It does not compile or
// validate cross-references (upstream names, backend kinds); that happens
// in Build.
func LoadFile(path string) (*File, errors.Error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, ErrorReadFile.Error(err)
	}

	f := &File{}
	if err := yaml.Unmarshal(raw, f); err != nil {
		return nil, ErrorParseYAML.Error(err)
	}

	return f, nil
}
