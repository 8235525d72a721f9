package accum

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFuture_AwaitBlocksUntilComplete(t *testing.T) {
	f := newFuture()
	go func() {
		time.Sleep(5 * time.Millisecond)
		f.complete("late", nil)
	}()

	v, err := f.Await(context.Background())
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if v != "late" {
		t.Errorf("value = %v", v)
	}
}

func TestFuture_CompleteIsWriteOnce(t *testing.T) {
	f := newFuture()
	f.complete(1, nil)
	f.complete(2, errors.New("ignored"))

	v, err := f.Await(context.Background())
	if err != nil || v != 1 {
		t.Errorf("Await = %v, %v; want 1, nil", v, err)
	}
}

func TestFuture_AwaitHonorsContext(t *testing.T) {
	f := newFuture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.Await(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	// The future is still pending and can be completed and awaited later.
	f.complete("eventually", nil)
	v, err := f.Await(context.Background())
	if err != nil || v != "eventually" {
		t.Errorf("Await = %v, %v", v, err)
	}
}
