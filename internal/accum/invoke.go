// Package accum implements call accumulation against a host connection.
//
// An executor issues remote calls through a Helper and receives eventual
// values back. The engine watches the executor's progress: every call that
// is recorded within one tick (a stretch of progress with no suspension on
// an unresolved call) is coalesced into a single round-trip, results are
// fanned back out to the waiting futures, and the cycle repeats until the
// executor's returned value is fully resolved.
//
//	result, err := accum.Invoke(ctx, conn, func(h *accum.Helper) (interface{}, error) {
//		return map[string]interface{}{
//			"a": h.Call("strlen", "foo"),
//			"b": h.Call("stridx", "bar", "a"),
//		}, nil
//	})
//
// Both calls above are sent in one round-trip, and Invoke returns the map
// with both entries resolved.
package accum

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"rpcaccum/internal/host"
)

// Executor is the caller-supplied computation. It may await futures, fire
// calls without awaiting them, and return any value; futures embedded
// anywhere in the returned value are resolved before Invoke returns.
type Executor func(h *Helper) (interface{}, error)

type options struct {
	settle time.Duration
	logger zerolog.Logger
}

// Option configures an invocation.
type Option func(*options)

// WithSettleInterval sets the quiescence window used to decide that a tick
// has settled and its batch can be dispatched.
func WithSettleInterval(d time.Duration) Option {
	return func(o *options) { o.settle = d }
}

// WithLogger sets the logger used by the engine.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Invoke runs executor against conn with call accumulation.
//
// It constructs the helper, starts the engine, runs the executor, deep
// resolves the value the executor returned, drains any calls that were
// fired without being awaited, closes the helper, and returns the fully
// resolved value. The first failure encountered anywhere (executor error,
// round-trip failure) rejects the invocation; round-trips already in
// flight at that point finish but their results are discarded.
//
// conn may itself be an open *Helper, in which case the nested invocation's
// batches flatten into the outer invocation's round-trips.
func Invoke(ctx context.Context, conn host.Conn, executor Executor, opts ...Option) (interface{}, error) {
	o := options{
		settle: DefaultSettleInterval,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := newCore(conn, o)
	h := &Helper{core: c}
	go c.run(ctx)
	defer c.close()

	value, err := executor(h)
	if err != nil {
		c.fail(err)
		return nil, err
	}

	resolved, err := Resolve(ctx, value)
	if err != nil {
		c.fail(err)
		return nil, err
	}

	// Drain fire-and-forget calls before reporting the outcome; a failure
	// during the final flush still rejects the invocation.
	c.close()
	if err := c.failureErr(); err != nil {
		return nil, err
	}
	return resolved, nil
}
