package binding

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeConn struct {
	mu     sync.Mutex
	closed int
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func TestConnectionPool_ReusesConnection(t *testing.T) {
	pool := NewConnectionPool(time.Second)
	var dials atomic.Int32
	dial := func(context.Context) (Connection, error) {
		dials.Add(1)
		return &fakeConn{}, nil
	}

	a, err := pool.GetOrCreate(context.Background(), "tcp://b:1883", dial)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	b, err := pool.GetOrCreate(context.Background(), "tcp://b:1883", dial)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if a != b {
		t.Error("second GetOrCreate() returned a different connection")
	}
	if dials.Load() != 1 {
		t.Errorf("dialled %d times, want 1", dials.Load())
	}
}

func TestConnectionPool_ConcurrentFirstUse(t *testing.T) {
	pool := NewConnectionPool(time.Second)
	var dials atomic.Int32
	gate := make(chan struct{})
	dial := func(context.Context) (Connection, error) {
		dials.Add(1)
		<-gate
		return &fakeConn{}, nil
	}

	const callers = 8
	results := make([]Connection, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := pool.GetOrCreate(context.Background(), "key", dial)
			if err != nil {
				t.Errorf("GetOrCreate() error = %v", err)
			}
			results[i] = c
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	if dials.Load() != 1 {
		t.Errorf("dialled %d times, want exactly 1", dials.Load())
	}
	for i := 1; i < callers; i++ {
		if results[i] != results[0] {
			t.Fatalf("caller %d got a different connection", i)
		}
	}
	if pool.Len() != 1 {
		t.Errorf("Len() = %d, want 1", pool.Len())
	}
}

func TestConnectionPool_FailureNotCached(t *testing.T) {
	pool := NewConnectionPool(time.Second)
	boom := errors.New("refused")

	_, err := pool.GetOrCreate(context.Background(), "key", func(context.Context) (Connection, error) {
		return nil, boom
	})
	if !errors.Is(err, ErrConnectionEstablish) || !errors.Is(err, boom) {
		t.Fatalf("GetOrCreate() error = %v, want ErrConnectionEstablish wrapping cause", err)
	}

	c, err := pool.GetOrCreate(context.Background(), "key", func(context.Context) (Connection, error) {
		return &fakeConn{}, nil
	})
	if err != nil || c == nil {
		t.Fatalf("retry GetOrCreate() = %v, %v", c, err)
	}
}

func TestConnectionPool_Timeout(t *testing.T) {
	pool := NewConnectionPool(30 * time.Millisecond)

	_, err := pool.GetOrCreate(context.Background(), "slow", func(ctx context.Context) (Connection, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if !errors.Is(err, ErrConnectionEstablish) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("GetOrCreate() error = %v, want timeout", err)
	}
}

func TestConnectionPool_CallerGivesUp(t *testing.T) {
	pool := NewConnectionPool(time.Second)
	gate := make(chan struct{})
	dial := func(context.Context) (Connection, error) {
		<-gate
		return &fakeConn{}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := pool.GetOrCreate(ctx, "key", dial)
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("abandoned GetOrCreate() error = %v, want context.Canceled", err)
	}

	// The establishment carries on for other callers.
	close(gate)
	c, err := pool.GetOrCreate(context.Background(), "key", dial)
	if err != nil || c == nil {
		t.Errorf("GetOrCreate() = %v, %v", c, err)
	}
}

func TestConnectionPool_Close(t *testing.T) {
	pool := NewConnectionPool(time.Second)
	conn := &fakeConn{}
	if _, err := pool.GetOrCreate(context.Background(), "a", func(context.Context) (Connection, error) {
		return conn, nil
	}); err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	if err := pool.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := pool.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if conn.closeCount() != 1 {
		t.Errorf("connection closed %d times, want 1", conn.closeCount())
	}

	_, err := pool.GetOrCreate(context.Background(), "b", func(context.Context) (Connection, error) {
		return &fakeConn{}, nil
	})
	if !errors.Is(err, ErrPoolClosed) {
		t.Errorf("GetOrCreate() after Close() error = %v, want ErrPoolClosed", err)
	}
}

func TestConnectionPool_LateEstablishmentClosed(t *testing.T) {
	pool := NewConnectionPool(time.Second)
	gate := make(chan struct{})
	late := &fakeConn{}

	errCh := make(chan error, 1)
	go func() {
		_, err := pool.GetOrCreate(context.Background(), "key", func(context.Context) (Connection, error) {
			<-gate
			return late, nil
		})
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)

	pool.Close()
	close(gate)

	if err := <-errCh; !errors.Is(err, ErrPoolClosed) {
		t.Errorf("GetOrCreate() error = %v, want ErrPoolClosed", err)
	}
	if late.closeCount() != 1 {
		t.Error("session established after Close() was not released")
	}
}

func TestConnectionPool_Adopt(t *testing.T) {
	pool := NewConnectionPool(0)
	first, dup := &fakeConn{}, &fakeConn{}

	pool.Adopt("k", first)
	pool.Adopt("k", dup)
	if dup.closeCount() != 1 || first.closeCount() != 0 {
		t.Error("duplicate adopted session should be closed, original kept")
	}

	c, err := pool.GetOrCreate(context.Background(), "k", func(context.Context) (Connection, error) {
		t.Fatal("dial called for adopted key")
		return nil, nil
	})
	if err != nil || c != first {
		t.Errorf("GetOrCreate() = %v, %v; want adopted session", c, err)
	}

	pool.Close()
	after := &fakeConn{}
	pool.Adopt("x", after)
	if after.closeCount() != 1 {
		t.Error("session adopted after Close() was not released")
	}
}
