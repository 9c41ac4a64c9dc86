package binding

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSubscription_DeliverAndCancel(t *testing.T) {
	var got []any
	sub := NewSubscription(context.Background(), func(v any) { got = append(got, v) })

	if !sub.Deliver(1) {
		t.Fatal("Deliver() = false on active subscription")
	}
	sub.Cancel()
	if sub.Deliver(2) {
		t.Error("Deliver() = true after Cancel()")
	}
	if len(got) != 1 || got[0] != 1 {
		t.Errorf("delivered %v, want [1]", got)
	}
	if sub.Active() {
		t.Error("Active() = true after Cancel()")
	}
	if sub.Context().Err() == nil {
		t.Error("Context() not canceled")
	}
	select {
	case <-sub.Done():
	default:
		t.Error("Done() not closed")
	}

	// Idempotent.
	sub.Cancel()
}

func TestSubscription_NoDeliveryAfterCancelReturns(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	var afterCancel atomic.Bool
	var canceled atomic.Bool

	sub := NewSubscription(context.Background(), func(any) {
		if canceled.Load() {
			afterCancel.Store(true)
		}
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
	})

	// A delivery is in flight when Cancel is called.
	go sub.Deliver("in-flight")
	<-entered

	cancelDone := make(chan struct{})
	go func() {
		sub.Cancel()
		canceled.Store(true)
		close(cancelDone)
	}()

	select {
	case <-cancelDone:
		t.Fatal("Cancel() returned while a delivery was running")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	<-cancelDone

	// Deliveries racing with or following Cancel are discarded.
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub.Deliver("late")
		}()
	}
	wg.Wait()

	if afterCancel.Load() {
		t.Error("delivery callback ran after Cancel() returned")
	}
}

func TestSubscription_ParentCancellationDetached(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	sub := NewSubscription(parent, nil)
	cancel()

	if sub.Context().Err() != nil {
		t.Error("subscription context canceled with its parent")
	}
	if !sub.Deliver("x") {
		t.Error("Deliver() with nil callback should still report delivery")
	}
	sub.Cancel()
}

func TestSubscription_OnCancel(t *testing.T) {
	sub := NewSubscription(context.Background(), nil)
	var calls atomic.Int32
	sub.OnCancel(func() { calls.Add(1) })

	sub.Cancel()
	sub.Cancel()
	if calls.Load() != 1 {
		t.Errorf("hook ran %d times, want 1", calls.Load())
	}

	// Registered after cancel: runs immediately.
	sub.OnCancel(func() { calls.Add(1) })
	if calls.Load() != 2 {
		t.Errorf("late hook did not run")
	}
}
