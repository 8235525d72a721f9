package host

import (
	"context"
	"fmt"
)

// Well-known remote function names understood by hosts.
const (
	// MethodEval evaluates an expression with named env bindings.
	MethodEval = "host.eval"
	// MethodExec runs a statement with named env bindings; the result is
	// not meaningful.
	MethodExec = "host.exec"
	// MethodBatchExecute is the wire name of the batch round-trip.
	MethodBatchExecute = "host.batchExecute"
	// MethodDispatch is the wire name of the direct plugin dispatch.
	MethodDispatch = "host.dispatch"
	// MethodInfo returns channel identity and metadata.
	MethodInfo = "host.info"
)

// Call is a single remote invocation: a function name and its ordered
// argument list. Once recorded by the accumulator a Call is never mutated.
type Call struct {
	Name string        `json:"name"`
	Args []interface{} `json:"args"`
}

// NewCall builds a Call from a name and arguments.
func NewCall(name string, args ...interface{}) Call {
	return Call{Name: name, Args: args}
}

// DispatchHandler handles one dispatched plugin method.
type DispatchHandler func(ctx context.Context, args []interface{}) (interface{}, error)

// DispatchTable maps "plugin.method" keys to handlers. It is a mutable
// property of a connection; replacing it affects subsequent dispatches only.
type DispatchTable map[string]DispatchHandler

// Conn is the host connection capability consumed by the accumulator.
//
// The accumulator treats a Conn as opaque: it only ever issues batch
// round-trips, direct plugin dispatches, and identity/metadata reads
// through this interface. A Conn may be shared between concurrent or
// nested invocations; implementations must be safe for concurrent use.
type Conn interface {
	// BatchExecute performs one round-trip: it executes calls in order and
	// returns a same-length list of results. On total failure it returns a
	// plain error. If the host supports partial failure it returns a
	// *BatchError identifying the first failing call and carrying the
	// results of the calls that succeeded before it.
	BatchExecute(ctx context.Context, calls []Call) ([]interface{}, error)

	// Dispatch forwards a single plugin method call directly to the host,
	// bypassing batching entirely.
	Dispatch(ctx context.Context, plugin, method string, args ...interface{}) (interface{}, error)

	// ChannelID returns the host-assigned channel identity.
	ChannelID() int

	// Metadata returns host identity metadata.
	Metadata() map[string]interface{}

	// DispatchTable returns the current dispatch table.
	DispatchTable() DispatchTable

	// SetDispatchTable replaces the dispatch table.
	SetDispatchTable(table DispatchTable)
}

// BatchError reports a failed batch round-trip.
//
// Index is the position of the first failing call within the submitted
// batch and Partial holds the results of the Index calls that completed
// before it. A total failure is Index 0 with no partial results.
type BatchError struct {
	Index   int
	Partial []interface{}
	Err     error
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	return fmt.Sprintf("batch failed at call %d: %v", e.Index, e.Err)
}

// Unwrap returns the underlying failure.
func (e *BatchError) Unwrap() error {
	return e.Err
}
