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

// Package wasmengine runs operator-supplied Proxy-Wasm v0.2.1 filter
// modules on wazero, enforcing a deny-by-default capability set per
// module and exposing the async host-call surface (HTTP calls, shared
// queues, shared data, ticks) the ABI's Pause/resume model needs.
package wasmengine

import (
	"context"
	"sync"

	"github.com/nabbar/golib/errors"
	"github.com/nabbar/golib/logger"
	loglvl "github.com/nabbar/golib/logger/level"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// HTTPCaller dispatches a proxy_http_call on behalf of a module. The
// gateway's upstream package supplies the real implementation (load
// balancer pick, dial, send, read); a synthetic 504 is expected on any
// transport failure so the module's callback always fires.
type HTTPCaller interface {
	Call(ctx context.Context, call PendingHTTPCall) (HTTPCallResponse, error)
}

// Module is one compiled filter: its wazero artifact plus the
// configuration attached at registration time.
type Module struct {
	Name         string
	Capabilities Capabilities
	VMConfig     []byte
	PluginConfig []byte

	compiled wazero.CompiledModule
}

// Engine owns the wazero runtime and the process-wide state every
// module instance shares: the persistent context store, shared data,
// and shared queues.
type Engine struct {
	mu      sync.Mutex
	runtime wazero.Runtime
	modules map[string]*Module

	Store   *ContextStore
	Shared  *SharedDataStore
	Queues  *QueueRegistry
}

// NewEngine creates an engine with a fresh wazero runtime in its default
// configuration; no compilation cache is set up.
func NewEngine(ctx context.Context) *Engine {
	return &Engine{
		runtime: wazero.NewRuntime(ctx),
		modules: make(map[string]*Module),
		Store:   NewContextStore(0),
		Shared:  NewSharedDataStore(),
		Queues:  NewQueueRegistry(),
	}
}

// vmConfigFor returns a registered module's vm_config bytes, for
// proxy_get_buffer_bytes(BufferVMConfiguration, ...).
func (e *Engine) vmConfigFor(name string) []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	if m, ok := e.modules[name]; ok {
		return m.VMConfig
	}
	return nil
}

// pluginConfigFor returns a registered module's plugin_config bytes, for
// proxy_get_buffer_bytes(BufferPluginConfiguration, ...).
func (e *Engine) pluginConfigFor(name string) []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	if m, ok := e.modules[name]; ok {
		return m.PluginConfig
	}
	return nil
}

// Close tears down the runtime and every compiled module it holds.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, m := range e.modules {
		_ = m.compiled.Close(ctx)
	}
	return e.runtime.Close(ctx)
}

// LoadModule compiles wasmBytes and registers it under name. Compile
// failure leaves the engine's existing module set untouched, matching
// the gateway's full-replace reload semantics one level down.
func (e *Engine) LoadModule(ctx context.Context, name string, wasmBytes []byte, caps Capabilities, vmConfig, pluginConfig []byte) (*Module, errors.Error) {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, ErrorModuleCompile.Error(err)
	}

	m := &Module{
		Name:         name,
		Capabilities: caps,
		VMConfig:     vmConfig,
		PluginConfig: pluginConfig,
		compiled:     compiled,
	}

	e.mu.Lock()
	e.modules[name] = m
	e.mu.Unlock()

	return m, nil
}

// hostState is the per-instance data the registered host functions close
// over. Proxy-Wasm guarantees the engine never enters two hook bodies
// for the same context concurrently, so current is safe to mutate
// without its own lock beyond what callers already hold.
type hostState struct {
	engine     *Engine
	moduleName string
	caps       Capabilities
	pool       *ContextPool
	caller     HTTPCaller
	logf       func(level LogLevel, msg string)

	current *HTTPContext
}

// Instance is one instantiated filter: a root context shared by every
// request the instance serves, plus the per-request context pool.
type Instance struct {
	engine *Engine
	module *Module
	guest  api.Module
	state  *hostState
	pool   *ContextPool

	rootContextID int32
}

// toGolibLevel maps a Proxy-Wasm log severity onto the gateway's own
// logger.Level scale, which runs the opposite direction (0 is most
// severe) and has no Trace rung of its own.
func toGolibLevel(l LogLevel) loglvl.Level {
	switch l {
	case LogLevelTrace, LogLevelDebug:
		return loglvl.DebugLevel
	case LogLevelInfo:
		return loglvl.InfoLevel
	case LogLevelWarn:
		return loglvl.WarnLevel
	case LogLevelError:
		return loglvl.ErrorLevel
	case LogLevelCritical:
		return loglvl.PanicLevel
	default:
		return loglvl.InfoLevel
	}
}

// moduleLogf adapts a module's proxy_log / fd_write traffic into the
// gateway's structured logger, tagging every entry with the module name
// so filter output is distinguishable from gateway's own log lines. A
// nil log function (no logger wired, as in unit tests) is a silent
// no-op rather than falling back to stdout.
func moduleLogf(moduleName string, log logger.FuncLog) func(LogLevel, string) {
	return func(level LogLevel, msg string) {
		if log == nil {
			return
		}
		l := log()
		if l == nil {
			return
		}
		l.Entry(toGolibLevel(level), "[wasm:%s] %s", moduleName, msg).Log()
	}
}

// NewInstance instantiates module against a fresh WASI + host function
// environment, then runs the root-context lifecycle: proxy_on_vm_start
// followed by proxy_on_configure. Failure in either aborts the load, per
// the module-lifecycle contract.
func (e *Engine) NewInstance(ctx context.Context, mod *Module, caller HTTPCaller, log logger.FuncLog, maxContexts int) (*Instance, errors.Error) {
	rootID := int32(1)

	st := &hostState{
		engine:     e,
		moduleName: mod.Name,
		caps:       mod.Capabilities,
		caller:     caller,
		logf:       moduleLogf(mod.Name, log),
	}
	st.pool = NewContextPool(rootID, mod.Capabilities, maxContexts)

	if err := addWASIShims(ctx, e.runtime, mod.Name, st.logf); err != nil {
		return nil, ErrorModuleInstantiate.Error(err)
	}
	if err := registerHostFunctions(ctx, e.runtime, st); err != nil {
		return nil, ErrorModuleInstantiate.Error(err)
	}

	cfg := wazero.NewModuleConfig().WithName(mod.Name)
	guest, err := e.runtime.InstantiateModule(ctx, mod.compiled, cfg)
	if err != nil {
		return nil, ErrorModuleInstantiate.Error(err)
	}

	inst := &Instance{
		engine:        e,
		module:        mod,
		guest:         guest,
		state:         st,
		pool:          st.pool,
		rootContextID: rootID,
	}

	if fn := guest.ExportedFunction(guestExportInitialize); fn != nil {
		if _, err := fn.Call(ctx); err != nil {
			return nil, ErrorModuleInstantiate.Error(err)
		}
	}
	if fn := guest.ExportedFunction(guestExportVMStart); fn != nil {
		if err := writeConfigBuffer(guest, mod.VMConfig); err != nil {
			return nil, ErrorModuleInstantiate.Error(err)
		}
		if _, err := fn.Call(ctx, uint64(rootID), uint64(len(mod.VMConfig))); err != nil {
			return nil, ErrorModuleInstantiate.Error(err)
		}
	}
	if fn := guest.ExportedFunction(guestExportConfigure); fn != nil {
		if err := writeConfigBuffer(guest, mod.PluginConfig); err != nil {
			return nil, ErrorModuleInstantiate.Error(err)
		}
		if _, err := fn.Call(ctx, uint64(rootID), uint64(len(mod.PluginConfig))); err != nil {
			return nil, ErrorModuleInstantiate.Error(err)
		}
	}

	return inst, nil
}

// writeConfigBuffer is a placeholder hook point: a guest that wants its
// vm/plugin configuration pulls it via proxy_get_buffer_bytes against
// BufferVMConfiguration/BufferPluginConfiguration, which hostfuncs.go
// serves directly from the Module; nothing needs copying into guest
// memory up front.
func writeConfigBuffer(_ api.Module, _ []byte) error {
	return nil
}

// Close releases the guest instance. The module's compiled artifact
// stays cached in the engine for later instances.
func (i *Instance) Close(ctx context.Context) error {
	return i.guest.Close(ctx)
}

// Dispatch invokes one of the four request/response hooks for httpCtx,
// reporting whether the module wants the pipeline to continue or pause.
// A module with no export for the hook is treated as Continue.
func (i *Instance) Dispatch(ctx context.Context, hook Hook, httpCtx *HTTPContext, count, size int, endOfStream bool) (Action, errors.Error) {
	fn := i.guest.ExportedFunction(hook.String())
	if fn == nil {
		return ActionContinue, nil
	}

	i.state.current = httpCtx

	eos := uint64(0)
	if endOfStream {
		eos = 1
	}

	var arg uint64
	switch hook {
	case HookRequestHeaders, HookResponseHeaders:
		arg = uint64(count)
	case HookRequestBody, HookResponseBody:
		arg = uint64(size)
	}

	results, err := fn.Call(ctx, uint64(httpCtx.ContextID), arg, eos)
	if err != nil {
		return ActionContinue, ErrorExecutionTimeout.Error(err)
	}
	if len(results) == 0 {
		return ActionContinue, nil
	}
	if Action(results[0]) == ActionPause {
		return ActionPause, nil
	}
	return ActionContinue, nil
}

// DeliverHTTPCallResponse resumes a module paused on a proxy_http_call
// by recording the response and invoking proxy_on_http_call_response.
func (i *Instance) DeliverHTTPCallResponse(ctx context.Context, httpCtx *HTTPContext, token uint32, resp HTTPCallResponse) errors.Error {
	httpCtx.HTTPCallResponses[token] = resp

	fn := i.guest.ExportedFunction(guestExportHTTPCallResponse)
	if fn == nil {
		return nil
	}

	i.state.current = httpCtx
	_, err := fn.Call(ctx, uint64(httpCtx.ContextID), uint64(token), uint64(len(resp.Headers)), uint64(len(resp.Body)), 0)
	if err != nil {
		return ErrorExecutionTimeout.Error(err)
	}
	return nil
}

// DeliverQueueReady invokes proxy_on_queue_ready for every subscriber of
// a queue that just received a message.
func (i *Instance) DeliverQueueReady(ctx context.Context, httpCtx *HTTPContext, queueID uint32) errors.Error {
	fn := i.guest.ExportedFunction(guestExportQueueReady)
	if fn == nil {
		return nil
	}
	i.state.current = httpCtx
	if _, err := fn.Call(ctx, uint64(httpCtx.ContextID), uint64(queueID)); err != nil {
		return ErrorExecutionTimeout.Error(err)
	}
	return nil
}

// DeliverTick invokes proxy_on_tick for the module's root context.
func (i *Instance) DeliverTick(ctx context.Context) errors.Error {
	fn := i.guest.ExportedFunction(guestExportTick)
	if fn == nil {
		return nil
	}
	if _, err := fn.Call(ctx, uint64(i.rootContextID)); err != nil {
		return ErrorExecutionTimeout.Error(err)
	}
	return nil
}

// Pool exposes the instance's per-request context pool so the pipeline
// can acquire/release contexts around a request's lifetime.
func (i *Instance) Pool() *ContextPool {
	return i.pool
}

// HTTPCaller exposes the dispatcher a worker's event loop should use to
// actually execute the calls TakePendingHTTPCalls drains from a paused
// context.
func (i *Instance) HTTPCaller() HTTPCaller {
	return i.state.caller
}
