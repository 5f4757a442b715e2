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
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/nabbar/golib/errors"
	"github.com/nabbar/golib/logger"
	loglvl "github.com/nabbar/golib/logger/level"

	libatm "github/sabouaram/golib/atomic"
)

// Manager owns the live Snapshot for one configuration file: an atomic
// pointer readers load without ever blocking, and a reload path (explicit
// call, fsnotify event or SIGHUP) that only ever replaces the pointer on a
// fully successful build. It never applies a partial update: a Snapshot is
// either entirely the old one or entirely the new one.
type Manager struct {
	ctx  context.Context
	path string
	log  logger.FuncLog

	snap libatm.Value[*Snapshot]

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	sigCh   chan os.Signal
	stopCh  chan struct{}
}

// NewManager loads path once and returns a Manager ready to serve Current.
// It fails the same way Reload would on a malformed file, since there is no
// previous Snapshot yet to fall back on. ctx bounds the lifetime of wasm
// module compilation and instantiation performed during Build; the Manager
// keeps it and passes it to every later Reload as well.
func NewManager(ctx context.Context, path string, log logger.FuncLog) (*Manager, errors.Error) {
	m := &Manager{
		ctx:  ctx,
		path: path,
		log:  log,
		snap: libatm.NewValue[*Snapshot](),
	}

	if err := m.Reload(); err != nil {
		return nil, err
	}
	return m, nil
}

// Current returns the live Snapshot. It is safe to call from any number of
// goroutines concurrently with Reload.
func (m *Manager) Current() *Snapshot {
	return m.snap.Load()
}

// Reload reads, parses and compiles m.path into a new Snapshot and swaps it
// in. On any error the previously loaded Snapshot (if any) is left in
// place, and the error is both returned and logged.
func (m *Manager) Reload() errors.Error {
	f, err := LoadFile(m.path)
	if err != nil {
		m.logReload(err)
		return err
	}

	snap, berr := Build(m.ctx, f, m.log)
	if berr != nil {
		m.logReload(berr)
		return berr
	}

	m.snap.Store(snap)
	m.logReloadOK()
	return nil
}

// Watch starts an fsnotify watch on m.path's directory plus a SIGHUP
// handler; either one triggers Reload in the background. Watch returns once
// the watcher goroutine is running; it does not block for the caller's
// lifetime. Call Close to stop it.
func (m *Manager) Watch(ctx context.Context) errors.Error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.watcher != nil {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return ErrorWatch.Error(err)
	}
	if err := w.Add(filepath.Dir(m.path)); err != nil {
		_ = w.Close()
		return ErrorWatch.Error(err)
	}

	m.watcher = w
	m.sigCh = make(chan os.Signal, 1)
	m.stopCh = make(chan struct{})
	signal.Notify(m.sigCh, syscall.SIGHUP)

	go m.watchLoop(ctx, w, m.sigCh, m.stopCh)
	return nil
}

func (m *Manager) watchLoop(ctx context.Context, w *fsnotify.Watcher, sigCh chan os.Signal, stopCh chan struct{}) {
	base := filepath.Base(m.path)

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			_ = m.Reload()
		case <-sigCh:
			_ = m.Reload()
		case _, ok := <-w.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close stops the watcher and signal handler started by Watch. It is a
// no-op if Watch was never called.
func (m *Manager) Close() errors.Error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.watcher == nil {
		return nil
	}

	close(m.stopCh)
	signal.Stop(m.sigCh)

	err := m.watcher.Close()
	m.watcher = nil

	if err != nil {
		return ErrorWatch.Error(err)
	}
	return nil
}

func (m *Manager) logReload(err errors.Error) {
	if m.log == nil {
		return
	}
	l := m.log()
	if l == nil {
		return
	}
	l.Entry(loglvl.ErrorLevel, "configuration reload of %s failed: %s", m.path, err.Error()).Log()
}

func (m *Manager) logReloadOK() {
	if m.log == nil {
		return
	}
	l := m.log()
	if l == nil {
		return
	}
	l.Entry(loglvl.InfoLevel, "configuration reloaded from %s", m.path).Log()
}
