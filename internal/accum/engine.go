package accum

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"rpcaccum/internal/host"
)

// core owns the pending-call queue and result slots for one invocation and
// runs the accumulation engine: it watches for the current tick to settle,
// dispatches the accumulated calls as one round-trip, distributes results,
// and repeats until the invocation closes.
//
// The queue is append-only between flush cutoffs and every future is
// completed exactly once, by the engine goroutine or by fail.
type core struct {
	conn   host.Conn
	logger zerolog.Logger
	settle time.Duration

	mu      sync.Mutex
	queue   []*pendingCall // recorded but not yet sent
	next    int            // ordinal of the next recorded call
	closed  bool
	failure error

	arrived   chan struct{} // coalesced "new call recorded" signal
	quit      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

func newCore(conn host.Conn, opts options) *core {
	return &core{
		conn:    conn,
		logger:  opts.logger.With().Str("component", "accumulator").Logger(),
		settle:  opts.settle,
		arrived: make(chan struct{}, 1),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// record appends one pending call at the next ordinal position and signals
// the engine. It fails with ErrHelperClosed once the helper has closed.
func (c *core) record(call host.Call) (*Future, error) {
	futs, err := c.recordBlock([]host.Call{call})
	if err != nil {
		return nil, err
	}
	return futs[0], nil
}

// recordBlock appends calls as one contiguous block under a single lock
// acquisition, preserving their relative order against concurrent recorders.
func (c *core) recordBlock(calls []host.Call) ([]*Future, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrHelperClosed
	}
	futs := make([]*Future, len(calls))
	for i, call := range calls {
		pc := &pendingCall{pos: c.next, call: call, fut: newFuture()}
		c.next++
		c.queue = append(c.queue, pc)
		futs[i] = pc.fut
	}
	c.mu.Unlock()

	select {
	case c.arrived <- struct{}{}:
	default:
	}
	return futs, nil
}

// run is the engine loop: collecting -> sending -> collecting -> ... ->
// draining. It exits once the invocation closes or ctx ends.
func (c *core) run(ctx context.Context) {
	defer close(c.stopped)
	for {
		select {
		case <-c.arrived:
		case <-c.quit:
			c.flush(ctx) // drain calls fired without being awaited
			return
		case <-ctx.Done():
			c.fail(ctx.Err())
			return
		}

		if !c.waitSettled(ctx) {
			c.fail(ctx.Err())
			return
		}
		c.flush(ctx)
	}
}

// waitSettled debounces the arrival signal: it returns once no new call has
// been recorded for one settle interval. The current tick of the executor's
// progress has then contributed everything it synchronously can.
func (c *core) waitSettled(ctx context.Context) bool {
	timer := time.NewTimer(c.settle)
	defer timer.Stop()
	for {
		select {
		case <-c.arrived:
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(c.settle)
		case <-timer.C:
			return true
		case <-c.quit:
			// Closing flushes immediately; nothing new can arrive.
			return true
		case <-ctx.Done():
			return false
		}
	}
}

// flush takes every call recorded since the previous cutoff and performs one
// round-trip. At most one round-trip is in flight per helper; batch N+1 is
// not sent until batch N's results are fully distributed.
func (c *core) flush(ctx context.Context) {
	c.mu.Lock()
	if c.failure != nil || len(c.queue) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.queue
	c.queue = nil
	c.mu.Unlock()

	calls := make([]host.Call, len(batch))
	for i, pc := range batch {
		calls[i] = pc.call
	}

	c.logger.Debug().
		Int("calls", len(calls)).
		Int("first", batch[0].pos).
		Msg("dispatching batch")

	results, err := c.conn.BatchExecute(ctx, calls)

	if failure := c.failureErr(); failure != nil {
		// The invocation failed while this round-trip was in flight. The
		// round-trip was allowed to finish but its results are discarded;
		// waiters observe the recorded failure.
		for _, pc := range batch {
			pc.fut.complete(nil, failure)
		}
		return
	}

	if err == nil {
		if len(results) != len(batch) {
			c.failBatch(batch, fmt.Errorf("host returned %d results for %d calls", len(results), len(batch)))
			return
		}
		for i, pc := range batch {
			pc.fut.complete(results[i], nil)
		}
		return
	}

	var be *host.BatchError
	if errors.As(err, &be) && be.Index > 0 {
		// Partial failure: the succeeded prefix resolves normally; the
		// failing call and every later call in the same round-trip fail
		// with the same reason.
		c.logger.Debug().
			Int("calls", len(batch)).
			Int("failedAt", be.Index).
			Err(be.Err).
			Msg("batch partially failed")
		for i, pc := range batch {
			if i < be.Index && i < len(be.Partial) {
				pc.fut.complete(be.Partial[i], nil)
			} else {
				pc.fut.complete(nil, err)
			}
		}
		c.fail(err)
		return
	}

	c.logger.Debug().Int("calls", len(batch)).Err(err).Msg("batch failed")
	c.failBatch(batch, err)
}

// failBatch fails every call of an in-flight batch and short-circuits the
// invocation.
func (c *core) failBatch(batch []*pendingCall, err error) {
	for _, pc := range batch {
		pc.fut.complete(nil, err)
	}
	c.fail(err)
}

// fail records the first failure, closes the helper, and fails every still
// queued call so that no waiter hangs. Later failures are ignored.
func (c *core) fail(err error) {
	c.mu.Lock()
	if c.failure != nil {
		c.mu.Unlock()
		return
	}
	c.failure = err
	c.closed = true
	orphaned := c.queue
	c.queue = nil
	c.mu.Unlock()

	for _, pc := range orphaned {
		pc.fut.complete(nil, err)
	}
}

// failureErr returns the recorded first failure, if any.
func (c *core) failureErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failure
}

// close marks the helper closed, lets the engine drain any unsent calls,
// and waits for the engine goroutine to stop. Safe to call more than once.
func (c *core) close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.quit)
	})
	<-c.stopped
}
