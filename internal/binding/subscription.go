package binding

import (
	"context"
	"sync"
	"sync/atomic"
)

// Subscription is a cancelable live feed.
//
// Deliveries are serialised. Cancel waits for a delivery in progress, so once
// Cancel returns the callback never runs again; later deliveries are dropped.
// The callback must not call Cancel on its own subscription.
type Subscription struct {
	active  atomic.Bool
	mu      sync.Mutex // held for the duration of each delivery
	deliver DeliverFunc

	ctx    context.Context
	cancel context.CancelFunc

	hookMu   sync.Mutex
	onCancel []func()
	done     chan struct{}
}

// NewSubscription returns an active subscription. Its Context is derived
// from parent without parent's cancellation, and is canceled by Cancel.
func NewSubscription(parent context.Context, deliver DeliverFunc) *Subscription {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	s := &Subscription{
		deliver: deliver,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	s.active.Store(true)
	return s
}

// Deliver passes v to the callback if the subscription is still active.
// It reports whether the value was delivered.
func (s *Subscription) Deliver(v any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active.Load() {
		return false
	}
	if s.deliver != nil {
		s.deliver(v)
	}
	return true
}

// Active reports whether Cancel has not been called.
func (s *Subscription) Active() bool {
	return s.active.Load()
}

// Context is canceled when the subscription is canceled. Transports use it
// for in-flight requests.
func (s *Subscription) Context() context.Context {
	return s.ctx
}

// Done is closed once Cancel has completed.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// OnCancel registers f to run during Cancel. If the subscription is already
// canceled f runs immediately.
func (s *Subscription) OnCancel(f func()) {
	s.hookMu.Lock()
	if s.active.Load() {
		s.onCancel = append(s.onCancel, f)
		s.hookMu.Unlock()
		return
	}
	s.hookMu.Unlock()
	f()
}

// Cancel stops delivery. It is idempotent.
func (s *Subscription) Cancel() {
	s.mu.Lock()
	if !s.active.Load() {
		s.mu.Unlock()
		return
	}
	s.hookMu.Lock()
	s.active.Store(false)
	hooks := s.onCancel
	s.onCancel = nil
	s.hookMu.Unlock()
	s.mu.Unlock()

	s.cancel()
	for _, f := range hooks {
		f()
	}
	close(s.done)
}
