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

package http3edge

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net/http"
	"testing"
	"time"

	"github.com/quic-go/quic-go/http3"
)

func selfSignedTLSConfig(t *testing.T) *tls.Config {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}

	cert := tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{http3.NextProtoH3},
	}
}

func TestNew_RejectsMissingALPN(t *testing.T) {
	_, err := New(Config{
		Addr:      "127.0.0.1:0",
		TLSConfig: &tls.Config{},
		Handler:   http.NotFoundHandler(),
	})
	if err == nil {
		t.Fatal("expected error for TLS config missing h3 ALPN")
	}
}

func TestNew_RejectsMissingHandler(t *testing.T) {
	_, err := New(Config{
		Addr:      "127.0.0.1:0",
		TLSConfig: selfSignedTLSConfig(t),
	})
	if err == nil {
		t.Fatal("expected error for missing handler")
	}
}

func TestServer_StartShutdown(t *testing.T) {
	srv, err := New(Config{
		Addr:           "127.0.0.1:0",
		TLSConfig:      selfSignedTLSConfig(t),
		Handler:        http.NotFoundHandler(),
		MaxIdleTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if serr := srv.Start(); serr != nil {
		t.Fatalf("Start: %v", serr)
	}
	if !srv.IsRunning() {
		t.Fatal("expected IsRunning after Start")
	}

	if serr := srv.Shutdown(time.Second); serr != nil {
		t.Fatalf("Shutdown: %v", serr)
	}
	if srv.IsRunning() {
		t.Fatal("expected IsRunning false after Shutdown")
	}
}
