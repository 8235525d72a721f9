package accum

import (
	"errors"
	"fmt"
	"time"

	"rpcaccum/internal/host"
)

// DefaultSettleInterval is the quiescence window used to decide that the
// current tick has settled: if no new call is recorded for this long and at
// least one is pending, the batch is dispatched.
const DefaultSettleInterval = 2 * time.Millisecond

var (
	// ErrHelperClosed is returned by every call-recording method invoked
	// after the helper has closed. The engine is never contacted.
	ErrHelperClosed = errors.New("accumulator helper is closed")

	// ErrRedrawUnsupported is returned by Redraw; redraw has no meaning in
	// an accumulated context and is never sent to the host.
	ErrRedrawUnsupported = errors.New("redraw is not supported while accumulating")
)

// PartialBatchError is the failure observed by a Batch caller when some of
// the batched calls succeeded before one failed. Results holds the resolved
// prefix, in call order.
type PartialBatchError struct {
	Results []interface{}
	Err     error
}

// Error implements the error interface.
func (e *PartialBatchError) Error() string {
	return fmt.Sprintf("batch failed after %d results: %v", len(e.Results), e.Err)
}

// Unwrap returns the underlying failure.
func (e *PartialBatchError) Unwrap() error {
	return e.Err
}

// pendingCall is one recorded, not-yet-resolved remote invocation. Its
// position and call are immutable once recorded; fut is completed exactly
// once by the engine.
type pendingCall struct {
	pos  int
	call host.Call
	fut  *Future
}
