package accum

import (
	"context"
	"errors"

	"rpcaccum/internal/host"
)

// Helper is the accumulate façade handed to an executor. Every call made
// through it while the helper is open is recorded as a pending call and
// coalesced with the other calls of the same tick into one round-trip.
//
// Helper itself implements host.Conn: an executor may layer a nested Invoke
// on top of its helper, and the inner invocation's round-trips are then
// recorded as contiguous blocks in the outer pending list, flattening into
// the outer batches.
type Helper struct {
	core *core
}

var _ host.Conn = (*Helper)(nil)

// Call records a pending call for name(args...) and returns its eventual
// value. Awaiting the future suspends the caller until the engine has
// resolved that position. After the helper closes, the returned future is
// already failed with ErrHelperClosed and the engine is not contacted.
func (h *Helper) Call(name string, args ...interface{}) *Future {
	fut, err := h.core.record(host.NewCall(name, args...))
	if err != nil {
		return failedFuture(err)
	}
	return fut
}

// Batch records calls as one contiguous block and returns a future that
// resolves to the list of their values, in call order. With zero calls it
// resolves immediately to an empty list without involving the engine. If
// any call fails, the future fails with a *PartialBatchError carrying the
// successfully resolved prefix.
func (h *Helper) Batch(calls ...host.Call) *Future {
	if len(calls) == 0 {
		return resolvedFuture([]interface{}{})
	}
	futs, err := h.core.recordBlock(calls)
	if err != nil {
		return failedFuture(err)
	}

	out := newFuture()
	go func() {
		results := make([]interface{}, 0, len(futs))
		for _, f := range futs {
			// Every recorded future is eventually completed by the
			// engine, so awaiting without a deadline cannot leak.
			v, err := f.Await(context.Background())
			if err != nil {
				out.complete(nil, &PartialBatchError{Results: results, Err: err})
				return
			}
			results = append(results, v)
		}
		out.complete(results, nil)
	}()
	return out
}

// Eval records an accumulated host.eval call evaluating expr with the named
// env bindings.
func (h *Helper) Eval(expr string, env map[string]interface{}) *Future {
	return h.Call(host.MethodEval, expr, env)
}

// Command records an accumulated host.exec call running stmt with the named
// env bindings. The resolved value is discarded; failure still propagates.
func (h *Helper) Command(stmt string, env map[string]interface{}) *Future {
	inner := h.Call(host.MethodExec, stmt, env)
	out := newFuture()
	go func() {
		_, err := inner.Await(context.Background())
		out.complete(nil, err)
	}()
	return out
}

// Dispatch forwards a plugin method call directly to the host connection.
// It bypasses accumulation entirely and is not blocked by the engine.
func (h *Helper) Dispatch(ctx context.Context, plugin, method string, args ...interface{}) (interface{}, error) {
	return h.core.conn.Dispatch(ctx, plugin, method, args...)
}

// Redraw always fails: redrawing has no meaning while accumulating and the
// request is never forwarded to the host.
func (h *Helper) Redraw(force bool) error {
	return ErrRedrawUnsupported
}

// ChannelID passes through to the host connection.
func (h *Helper) ChannelID() int {
	return h.core.conn.ChannelID()
}

// Metadata passes through to the host connection.
func (h *Helper) Metadata() map[string]interface{} {
	return h.core.conn.Metadata()
}

// DispatchTable passes through to the host connection.
func (h *Helper) DispatchTable() host.DispatchTable {
	return h.core.conn.DispatchTable()
}

// SetDispatchTable passes through to the host connection.
func (h *Helper) SetDispatchTable(table host.DispatchTable) {
	h.core.conn.SetDispatchTable(table)
}

// BatchExecute implements host.Conn by recording calls as one contiguous
// block and awaiting them. A nested invocation layered on this helper sends
// its round-trips here, so inner batches coalesce with the outer tick's
// calls into a single host round-trip.
func (h *Helper) BatchExecute(ctx context.Context, calls []host.Call) ([]interface{}, error) {
	v, err := h.Batch(calls...).Await(ctx)
	if err != nil {
		var pe *PartialBatchError
		if errors.As(err, &pe) {
			return nil, &host.BatchError{Index: len(pe.Results), Partial: pe.Results, Err: pe.Err}
		}
		return nil, err
	}
	return v.([]interface{}), nil
}
