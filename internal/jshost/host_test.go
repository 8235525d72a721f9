package jshost

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"rpcaccum/internal/accum"
	"rpcaccum/internal/host"
)

func newTestHost(t *testing.T) *Host {
	t.Helper()
	h, err := New(zerolog.Nop(), 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return h
}

func TestHost_BatchExecuteBuiltins(t *testing.T) {
	h := newTestHost(t)

	results, err := h.BatchExecute(context.Background(), []host.Call{
		host.NewCall("strlen", "foo"),
		host.NewCall("stridx", "bar", "a"),
		host.NewCall("concat", "x", "y"),
	})
	if err != nil {
		t.Fatalf("BatchExecute: %v", err)
	}
	want := []interface{}{int64(3), int64(1), "xy"}
	if !reflect.DeepEqual(results, want) {
		t.Errorf("results = %v, want %v", results, want)
	}
}

func TestHost_EvalWithEnv(t *testing.T) {
	h := newTestHost(t)

	results, err := h.BatchExecute(context.Background(), []host.Call{
		host.NewCall(host.MethodEval, "x + y", map[string]interface{}{"x": 2, "y": 3}),
	})
	if err != nil {
		t.Fatalf("BatchExecute: %v", err)
	}
	if results[0] != int64(5) {
		t.Errorf("result = %v (%T), want 5", results[0], results[0])
	}
}

func TestHost_ExecDiscardsValueButKeepsState(t *testing.T) {
	h := newTestHost(t)

	results, err := h.BatchExecute(context.Background(), []host.Call{
		host.NewCall(host.MethodExec, "counter = n", map[string]interface{}{"n": 21}),
		host.NewCall(host.MethodEval, "counter * 2", nil),
	})
	if err != nil {
		t.Fatalf("BatchExecute: %v", err)
	}
	if results[0] != nil {
		t.Errorf("exec result = %v, want nil", results[0])
	}
	if results[1] != int64(42) {
		t.Errorf("eval result = %v, want 42", results[1])
	}
}

func TestHost_PartialFailure(t *testing.T) {
	h := newTestHost(t)

	_, err := h.BatchExecute(context.Background(), []host.Call{
		host.NewCall("strlen", "foo"),
		host.NewCall("nosuch"),
		host.NewCall("strlen", "baz"),
	})
	var be *host.BatchError
	if !errors.As(err, &be) {
		t.Fatalf("err = %T (%v), want *host.BatchError", err, err)
	}
	if be.Index != 1 {
		t.Errorf("Index = %d, want 1", be.Index)
	}
	if !reflect.DeepEqual(be.Partial, []interface{}{int64(3)}) {
		t.Errorf("Partial = %v, want [3]", be.Partial)
	}
}

func TestHost_RegisterBuiltin(t *testing.T) {
	h := newTestHost(t)
	h.Register("double", func(args []interface{}) (interface{}, error) {
		n, ok := args[0].(int)
		if !ok {
			return nil, errors.New("want int")
		}
		return n * 2, nil
	})

	results, err := h.BatchExecute(context.Background(), []host.Call{host.NewCall("double", 4)})
	if err != nil {
		t.Fatalf("BatchExecute: %v", err)
	}
	if results[0] != 8 {
		t.Errorf("result = %v, want 8", results[0])
	}
}

func TestHost_ProgramCacheReusesCompiledEval(t *testing.T) {
	h := newTestHost(t)

	for i := 0; i < 3; i++ {
		if _, err := h.BatchExecute(context.Background(), []host.Call{
			host.NewCall(host.MethodEval, "1 + 1", nil),
		}); err != nil {
			t.Fatalf("BatchExecute: %v", err)
		}
	}
	if got := h.programs.Len(); got != 1 {
		t.Errorf("cached programs = %d, want 1", got)
	}
}

func TestHost_PluginDispatch(t *testing.T) {
	h := newTestHost(t)
	src := `// @plugin strutil
({
	reverse: function(s) {
		return s.split('').reverse().join('');
	}
})`
	if err := h.RegisterPlugin("strutil", src); err != nil {
		t.Fatalf("RegisterPlugin: %v", err)
	}

	v, err := h.Dispatch(context.Background(), "strutil", "reverse", "abc")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if v != "cba" {
		t.Errorf("result = %v, want cba", v)
	}

	if _, err := h.Dispatch(context.Background(), "strutil", "missing"); err == nil {
		t.Error("Dispatch of missing method succeeded")
	}
	if _, err := h.Dispatch(context.Background(), "nosuch", "reverse"); err == nil {
		t.Error("Dispatch to unknown plugin succeeded")
	}
}

func TestHost_DispatchTableOverridesPlugins(t *testing.T) {
	h := newTestHost(t)
	h.SetDispatchTable(host.DispatchTable{
		"custom.echo": func(ctx context.Context, args []interface{}) (interface{}, error) {
			return args[0], nil
		},
	})

	v, err := h.Dispatch(context.Background(), "custom", "echo", "hi")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if v != "hi" {
		t.Errorf("result = %v", v)
	}
}

func TestHost_LoadPluginsMissingDir(t *testing.T) {
	h := newTestHost(t)
	if err := h.LoadPlugins("does/not/exist"); err != nil {
		t.Fatalf("LoadPlugins: %v", err)
	}
}

// End-to-end: the accumulator driving the in-process host.
func TestHost_WithInvoke(t *testing.T) {
	h := newTestHost(t)

	result, err := accum.Invoke(context.Background(), h, func(a *accum.Helper) (interface{}, error) {
		return map[string]interface{}{
			"len":  a.Call("strlen", "hello"),
			"expr": a.Eval("a * b", map[string]interface{}{"a": 6, "b": 7}),
		}, nil
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	want := map[string]interface{}{"len": int64(5), "expr": int64(42)}
	if !reflect.DeepEqual(result, want) {
		t.Errorf("result = %v, want %v", result, want)
	}
}
