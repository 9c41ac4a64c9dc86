package wot

import (
	"context"
	"sync"
	"time"
)

// repeatingTask runs fn, waits interval(), and repeats until stopped.
// The stop flag is checked at the start of every iteration, so a run in
// progress when Stop is called is the last one.
type repeatingTask struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// startRepeating runs fn immediately on a new goroutine. ctx is passed to
// fn and canceled by Stop.
func startRepeating(ctx context.Context, interval func() time.Duration, fn func(ctx context.Context)) *repeatingTask {
	ctx, cancel := context.WithCancel(ctx)
	t := &repeatingTask{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(t.done)
		for {
			if ctx.Err() != nil {
				return
			}
			fn(ctx)

			timer := time.NewTimer(interval())
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}()
	return t
}

// Stop cancels the task and waits for a run in progress to return.
// Safe to call more than once.
func (t *repeatingTask) Stop() {
	t.once.Do(t.cancel)
	<-t.done
}
