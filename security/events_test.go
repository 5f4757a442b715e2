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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestReporter_SuppressesBelowMinSeverity(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewReporter(SecurityConfig{
		Enabled:        true,
		WebhookURL:     srv.URL,
		WebhookAsync:   false,
		WebhookTimeout: time.Second,
		MinSeverity:    "critical",
	})

	r.Report(Event{EventType: EventRateLimited, Severity: SeverityMedium, Time: time.Now()})
	if hits.Load() != 0 {
		t.Fatalf("expected medium-severity event to be suppressed under a critical floor")
	}

	r.Report(Event{EventType: EventRateLimited, Severity: SeverityCritical, Time: time.Now()})
	if hits.Load() != 1 {
		t.Fatalf("expected critical event to reach the webhook, got %d hits", hits.Load())
	}
}

func TestReporter_SendsJSONPayload(t *testing.T) {
	var body string
	var mu sync.Mutex

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(b)
		mu.Lock()
		body = string(b)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewReporter(SecurityConfig{
		Enabled:        true,
		WebhookURL:     srv.URL,
		WebhookAsync:   false,
		WebhookTimeout: time.Second,
		MinSeverity:    "low",
	})
	r.Report(Event{EventType: EventPathTraversal, Severity: SeverityHigh, Blocked: true, Time: time.Now()})

	mu.Lock()
	defer mu.Unlock()
	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(body), &decoded); err != nil {
		t.Fatalf("expected valid JSON body, got %q: %v", body, err)
	}
	if decoded["event_type"] != string(EventPathTraversal) {
		t.Fatalf("expected event_type %q, got %v", EventPathTraversal, decoded["event_type"])
	}
	if decoded["blocked"] != true {
		t.Fatalf("expected blocked=true in payload")
	}
}

func TestReporter_CallbacksFireRegardlessOfWebhook(t *testing.T) {
	var called int32
	r := NewReporter(SecurityConfig{
		Enabled:     true,
		MinSeverity: "low",
		Callbacks: []SecuEvtCallback{
			func(ev Event) { called++ },
		},
	})
	r.Report(Event{EventType: EventMethodDenied, Severity: SeverityMedium, Time: time.Now()})

	if called != 1 {
		t.Fatalf("expected the callback to run exactly once, got %d", called)
	}
}

func TestReporter_BatchFlushesAtSize(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewReporter(SecurityConfig{
		Enabled:        true,
		WebhookURL:     srv.URL,
		WebhookAsync:   false,
		WebhookTimeout: time.Second,
		MinSeverity:    "low",
		BatchSize:      3,
		BatchTimeout:   5 * time.Second,
	})

	for i := 0; i < 3; i++ {
		r.Report(Event{EventType: EventACLDenied, Severity: SeverityMedium, Time: time.Now()})
	}

	if hits.Load() != 1 {
		t.Fatalf("expected exactly one batched webhook call, got %d", hits.Load())
	}
}

func TestReporter_BatchFlushesOnTimeout(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewReporter(SecurityConfig{
		Enabled:        true,
		WebhookURL:     srv.URL,
		WebhookAsync:   false,
		WebhookTimeout: time.Second,
		MinSeverity:    "low",
		BatchSize:      10,
		BatchTimeout:   50 * time.Millisecond,
	})

	r.Report(Event{EventType: EventACLDenied, Severity: SeverityMedium, Time: time.Now()})
	time.Sleep(150 * time.Millisecond)

	if hits.Load() < 1 {
		t.Fatalf("expected the batch timeout to flush a partial batch")
	}
}

func TestReporter_CEFFormat(t *testing.T) {
	var body string
	var contentType string
	var mu sync.Mutex

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(b)
		mu.Lock()
		body = string(b)
		contentType = r.Header.Get("Content-Type")
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewReporter(SecurityConfig{
		Enabled:         true,
		WebhookURL:      srv.URL,
		WebhookAsync:    false,
		WebhookTimeout:  time.Second,
		MinSeverity:     "low",
		EnableCEFFormat: true,
	})
	r.Report(Event{EventType: EventPathTraversal, Severity: SeverityHigh, Blocked: true, Time: time.Now()})

	mu.Lock()
	defer mu.Unlock()
	if contentType != "text/plain" {
		t.Fatalf("expected text/plain content type for CEF, got %q", contentType)
	}
	if !strings.Contains(body, "CEF:0") || !strings.Contains(body, "golib") {
		t.Fatalf("expected a CEF-formatted line, got %q", body)
	}
}

func TestReporter_CustomWebhookHeaders(t *testing.T) {
	var got http.Header
	var mu sync.Mutex

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		got = r.Header.Clone()
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewReporter(SecurityConfig{
		Enabled:        true,
		WebhookURL:     srv.URL,
		WebhookAsync:   false,
		WebhookTimeout: time.Second,
		MinSeverity:    "low",
		WebhookHeaders: map[string]string{"Authorization": "Bearer secret-token"},
	})
	r.Report(Event{EventType: EventACLDenied, Severity: SeverityMedium, Time: time.Now()})

	mu.Lock()
	defer mu.Unlock()
	if got.Get("Authorization") != "Bearer secret-token" {
		t.Fatalf("expected custom Authorization header to reach the webhook")
	}
}
