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
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nabbar/golib/errors"
	"github.com/nabbar/golib/httpcli"
)

// Severity orders the blocked-request events this package can raise, low to
// high. String values are what SecurityConfig.MinSeverity compares against.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// EventType names the gate that rejected a request.
type EventType string

const (
	EventACLDenied      EventType = "acl_denied"
	EventRateLimited    EventType = "rate_limit"
	EventMethodDenied   EventType = "method_denied"
	EventPathTraversal  EventType = "path_traversal"
	EventMimeTypeDenied EventType = "mime_type_denied"
)

// Event is one blocked-request occurrence, shaped so it serializes directly
// to the JSON payload a webhook receiver expects.
type Event struct {
	EventType EventType `json:"event_type"`
	Severity  Severity  `json:"severity"`
	Blocked   bool      `json:"blocked"`
	ClientIP  string    `json:"client_ip,omitempty"`
	Path      string    `json:"path,omitempty"`
	Method    string    `json:"method,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Time      time.Time `json:"time"`
}

// SecuEvtCallback is invoked synchronously, in addition to any configured
// webhook, for every event that clears MinSeverity.
type SecuEvtCallback func(Event)

// SecurityConfig controls how blocked-request events are reported.
type SecurityConfig struct {
	Enabled bool

	WebhookURL     string
	WebhookTimeout time.Duration
	// WebhookAsync dispatches the webhook call off the request goroutine.
	// Tests that need to observe the call before asserting should disable it.
	WebhookAsync   bool
	WebhookHeaders map[string]string

	// MinSeverity suppresses events below this level ("low", "medium",
	// "high", "critical").
	MinSeverity string

	// BatchSize/BatchTimeout, when BatchSize > 0, accumulate events and
	// flush them as a single array payload once either bound is hit instead
	// of firing one webhook call per event.
	BatchSize    int
	BatchTimeout time.Duration

	// EnableCEFFormat posts ArcSight Common Event Format text instead of
	// JSON (Content-Type: text/plain), one line per event, batch or not.
	EnableCEFFormat bool

	Callbacks []SecuEvtCallback
}

// DefaultSecurityConfig disables reporting by default — a fresh install
// should not start POSTing to an unconfigured URL — with a "medium" floor
// and asynchronous, unbatched delivery once enabled.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		Enabled:      false,
		WebhookAsync: true,
		MinSeverity:  "medium",
		BatchSize:    0,
	}
}

// Reporter dispatches Event values to Go callbacks and an optional webhook,
// batching and formatting them per its current SecurityConfig.
type Reporter struct {
	mu      sync.Mutex
	cfg     SecurityConfig
	client  httpcli.Request
	batch   []Event
	timer   *time.Timer
	lastErr errors.Error
}

// NewReporter builds a Reporter from cfg.
func NewReporter(cfg SecurityConfig) *Reporter {
	r := &Reporter{}
	r.Reconfigure(cfg)
	return r
}

// Reconfigure atomically replaces the reporter's configuration, flushing any
// batch accumulated under the previous configuration first.
func (r *Reporter) Reconfigure(cfg SecurityConfig) {
	r.mu.Lock()
	pending := r.batch
	r.batch = nil
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.cfg = cfg
	r.client = httpcli.New(func() *http.Client {
		return &http.Client{Timeout: cfg.WebhookTimeout}
	})
	r.mu.Unlock()

	if len(pending) > 0 {
		r.send(pending)
	}
}

// Config returns the reporter's current configuration.
func (r *Reporter) Config() SecurityConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// Report raises ev through every configured callback and the webhook (batched
// or immediate), unless ev's severity falls below MinSeverity or reporting is
// disabled entirely.
func (r *Reporter) Report(ev Event) {
	r.mu.Lock()
	cfg := r.cfg
	if !cfg.Enabled || severityRank[Severity(cfg.MinSeverity)] > severityRank[ev.Severity] {
		r.mu.Unlock()
		return
	}
	callbacks := cfg.Callbacks
	r.mu.Unlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(ev)
		}
	}

	if cfg.WebhookURL == "" {
		return
	}

	if cfg.BatchSize > 0 {
		r.enqueue(ev)
		return
	}

	if cfg.WebhookAsync {
		go r.send([]Event{ev})
	} else {
		r.send([]Event{ev})
	}
}

func (r *Reporter) enqueue(ev Event) {
	r.mu.Lock()
	cfg := r.cfg
	r.batch = append(r.batch, ev)
	flush := len(r.batch) >= cfg.BatchSize
	var due []Event
	if flush {
		due = r.batch
		r.batch = nil
		if r.timer != nil {
			r.timer.Stop()
			r.timer = nil
		}
	} else if r.timer == nil && cfg.BatchTimeout > 0 {
		r.timer = time.AfterFunc(cfg.BatchTimeout, r.flushTimedOut)
	}
	r.mu.Unlock()

	if flush {
		if cfg.WebhookAsync {
			go r.send(due)
		} else {
			r.send(due)
		}
	}
}

func (r *Reporter) flushTimedOut() {
	r.mu.Lock()
	due := r.batch
	r.batch = nil
	r.timer = nil
	cfg := r.cfg
	r.mu.Unlock()

	if len(due) == 0 {
		return
	}
	if cfg.WebhookAsync {
		go r.send(due)
	} else {
		r.send(due)
	}
}

func (r *Reporter) send(events []Event) {
	if len(events) == 0 {
		return
	}

	r.mu.Lock()
	cfg := r.cfg
	req := r.client.New()
	r.mu.Unlock()

	req.Method(http.MethodPost)
	if err := req.Endpoint(cfg.WebhookURL); err != nil {
		r.setLastErr(ErrorWebhookDispatch.Error(err))
		return
	}
	for k, v := range cfg.WebhookHeaders {
		req.Header(k, v)
	}

	if cfg.EnableCEFFormat {
		req.ContentType("text/plain")
		req.RequestReader(cefBody(events))
	} else {
		req.ContentType("application/json")
		if len(events) == 1 {
			_ = req.RequestJson(events[0])
		} else {
			_ = req.RequestJson(map[string]interface{}{
				"count":  len(events),
				"events": events,
			})
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), webhookDeadline(cfg.WebhookTimeout))
	defer cancel()

	resp, err := req.Do(ctx)
	if err != nil {
		r.setLastErr(ErrorWebhookDispatch.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		r.setLastErr(ErrorWebhookStatus.Error(fmt.Errorf("status %s", resp.Status)))
		return
	}
	r.setLastErr(nil)
}

func webhookDeadline(configured time.Duration) time.Duration {
	if configured <= 0 {
		return 5 * time.Second
	}
	return configured
}

func (r *Reporter) setLastErr(err errors.Error) {
	r.mu.Lock()
	r.lastErr = err
	r.mu.Unlock()
}

// LastError returns the outcome of the most recent webhook dispatch, nil if
// it succeeded or none has been attempted yet.
func (r *Reporter) LastError() errors.Error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}
