package accum

import (
	"context"
	"sync"
)

// Future is an eventual value: the placeholder returned immediately by a
// call-recording method. It is completed exactly once by the engine, with
// either a value or a failure.
type Future struct {
	done  chan struct{}
	once  sync.Once
	value interface{}
	err   error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// resolvedFuture returns a future already completed with value.
func resolvedFuture(value interface{}) *Future {
	f := newFuture()
	f.complete(value, nil)
	return f
}

// failedFuture returns a future already completed with err.
func failedFuture(err error) *Future {
	f := newFuture()
	f.complete(nil, err)
	return f
}

// complete records the outcome. Later calls are ignored; a result slot is
// written exactly once.
func (f *Future) complete(value interface{}, err error) {
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
	})
}

// Done returns a channel closed when the future has been completed.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Await suspends the caller until the future is completed, then returns its
// value or failure. It returns ctx.Err if the context ends first; the future
// itself stays pending and may still be awaited again.
func (f *Future) Await(ctx context.Context) (interface{}, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
