// Package jshost provides an in-process host connection backed by a goja
// JavaScript VM. It serves batch round-trips against registered builtin
// functions and host.eval/host.exec, and direct dispatch against loaded
// plugins. Intended for tests, demos, and embedding without a remote host.
package jshost

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dop251/goja"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"rpcaccum/internal/host"
)

// DefaultProgramCacheSize bounds the cache of compiled eval programs.
const DefaultProgramCacheSize = 256

// BuiltinFunc is a Go-implemented host function.
type BuiltinFunc func(args []interface{}) (interface{}, error)

// Host is an in-process host.Conn. Calls in a batch are executed in order
// under the VM lock; the first failing call aborts the batch and reports
// the successfully completed prefix via *host.BatchError.
type Host struct {
	vm       *goja.Runtime
	vmMu     sync.Mutex
	programs *lru.Cache[string, *goja.Program]
	builtins map[string]BuiltinFunc
	plugins  map[string]*goja.Object

	table   host.DispatchTable
	tableMu sync.RWMutex

	channelID int
	metadata  map[string]interface{}
	logger    zerolog.Logger
}

var _ host.Conn = (*Host)(nil)

// New creates a Host with the default builtins registered. cacheSize bounds
// the compiled-program cache; 0 means DefaultProgramCacheSize.
func New(logger zerolog.Logger, cacheSize int) (*Host, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultProgramCacheSize
	}
	programs, err := lru.New[string, *goja.Program](cacheSize)
	if err != nil {
		return nil, err
	}

	h := &Host{
		vm:        goja.New(),
		programs:  programs,
		builtins:  make(map[string]BuiltinFunc),
		plugins:   make(map[string]*goja.Object),
		table:     make(host.DispatchTable),
		channelID: 1,
		metadata: map[string]interface{}{
			"name":    "jshost",
			"version": "0.1.0",
		},
		logger: logger.With().Str("component", "jshost").Logger(),
	}
	h.setupConsole()
	h.registerDefaults()
	return h, nil
}

// Register adds or replaces a builtin host function.
func (h *Host) Register(name string, fn BuiltinFunc) {
	h.vmMu.Lock()
	h.builtins[name] = fn
	h.vmMu.Unlock()
}

// registerDefaults installs the stock string builtins.
func (h *Host) registerDefaults() {
	h.builtins["strlen"] = func(args []interface{}) (interface{}, error) {
		s, err := argString(args, 0)
		if err != nil {
			return nil, err
		}
		return int64(len(s)), nil
	}
	h.builtins["stridx"] = func(args []interface{}) (interface{}, error) {
		s, err := argString(args, 0)
		if err != nil {
			return nil, err
		}
		sub, err := argString(args, 1)
		if err != nil {
			return nil, err
		}
		return int64(strings.Index(s, sub)), nil
	}
	h.builtins["concat"] = func(args []interface{}) (interface{}, error) {
		var b strings.Builder
		for _, a := range args {
			fmt.Fprint(&b, a)
		}
		return b.String(), nil
	}
}

// setupConsole routes console output from plugins and eval'd code to the
// host logger.
func (h *Host) setupConsole() {
	console := h.vm.NewObject()
	log := func(event func() *zerolog.Event) func(call goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			args := make([]interface{}, len(call.Arguments))
			for i, arg := range call.Arguments {
				args[i] = arg.Export()
			}
			event().Msgf("[js] %v", args)
			return goja.Undefined()
		}
	}
	console.Set("log", log(func() *zerolog.Event { return h.logger.Info() }))
	console.Set("warn", log(func() *zerolog.Event { return h.logger.Warn() }))
	console.Set("error", log(func() *zerolog.Event { return h.logger.Error() }))
	console.Set("debug", log(func() *zerolog.Event { return h.logger.Debug() }))
	h.vm.Set("console", console)
}

// BatchExecute implements host.Conn.
func (h *Host) BatchExecute(ctx context.Context, calls []host.Call) ([]interface{}, error) {
	h.vmMu.Lock()
	defer h.vmMu.Unlock()

	results := make([]interface{}, 0, len(calls))
	for i, call := range calls {
		if err := ctx.Err(); err != nil {
			return nil, &host.BatchError{Index: i, Partial: results, Err: err}
		}
		v, err := h.execute(call)
		if err != nil {
			h.logger.Debug().
				Str("call", call.Name).
				Int("index", i).
				Err(err).
				Msg("batch call failed")
			return nil, &host.BatchError{Index: i, Partial: results, Err: err}
		}
		results = append(results, v)
	}
	return results, nil
}

// execute runs one call. The VM lock must be held.
func (h *Host) execute(call host.Call) (interface{}, error) {
	switch call.Name {
	case host.MethodEval:
		return h.runSource(call.Args, false)
	case host.MethodExec:
		return h.runSource(call.Args, true)
	}
	if fn, ok := h.builtins[call.Name]; ok {
		return fn(call.Args)
	}
	return nil, fmt.Errorf("unknown host function %q", call.Name)
}

// runSource evaluates args[0] as JavaScript with args[1] (if present) bound
// as globals. With discard set the completion value is dropped.
func (h *Host) runSource(args []interface{}, discard bool) (interface{}, error) {
	src, err := argString(args, 0)
	if err != nil {
		return nil, err
	}
	if len(args) > 1 && args[1] != nil {
		env, ok := args[1].(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("env must be a map, got %T", args[1])
		}
		// Bindings persist as globals for the rest of the session, which
		// lets a host.exec assignment be observed by a later host.eval.
		for k, v := range env {
			h.vm.Set(k, v)
		}
	}

	prog, err := h.program(src)
	if err != nil {
		return nil, err
	}
	val, err := h.vm.RunProgram(prog)
	if err != nil {
		return nil, err
	}
	if discard || val == nil {
		return nil, nil
	}
	return val.Export(), nil
}

// program returns the compiled form of src, compiling on cache miss.
func (h *Host) program(src string) (*goja.Program, error) {
	if prog, ok := h.programs.Get(src); ok {
		return prog, nil
	}
	prog, err := goja.Compile("<accum>", src, false)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	h.programs.Add(src, prog)
	return prog, nil
}

// Dispatch implements host.Conn. The dispatch table takes precedence over
// loaded plugins.
func (h *Host) Dispatch(ctx context.Context, plugin, method string, args ...interface{}) (interface{}, error) {
	key := plugin + "." + method
	h.tableMu.RLock()
	handler := h.table[key]
	h.tableMu.RUnlock()
	if handler != nil {
		return handler(ctx, args)
	}

	h.vmMu.Lock()
	defer h.vmMu.Unlock()

	obj, ok := h.plugins[plugin]
	if !ok {
		return nil, fmt.Errorf("unknown plugin %q", plugin)
	}
	fn, ok := goja.AssertFunction(obj.Get(method))
	if !ok {
		return nil, fmt.Errorf("plugin %q has no method %q", plugin, method)
	}

	jsArgs := make([]goja.Value, len(args))
	for i, a := range args {
		jsArgs[i] = h.vm.ToValue(a)
	}
	val, err := fn(obj, jsArgs...)
	if err != nil {
		return nil, fmt.Errorf("dispatch %s: %w", key, err)
	}
	return val.Export(), nil
}

// ChannelID implements host.Conn.
func (h *Host) ChannelID() int {
	return h.channelID
}

// Metadata implements host.Conn.
func (h *Host) Metadata() map[string]interface{} {
	return h.metadata
}

// DispatchTable implements host.Conn.
func (h *Host) DispatchTable() host.DispatchTable {
	h.tableMu.RLock()
	defer h.tableMu.RUnlock()
	return h.table
}

// SetDispatchTable implements host.Conn.
func (h *Host) SetDispatchTable(table host.DispatchTable) {
	h.tableMu.Lock()
	h.table = table
	h.tableMu.Unlock()
}

// argString extracts a required string argument.
func argString(args []interface{}, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("missing argument %d", i)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("argument %d must be a string, got %T", i, args[i])
	}
	return s, nil
}
