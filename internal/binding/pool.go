package binding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultConnectTimeout bounds session establishment when the pool is
// created without a timeout.
const DefaultConnectTimeout = 5 * time.Second

// Connection is a transport session shared by the bindings of one device.
type Connection interface {
	Close() error
}

// DialFunc establishes a new session. ctx carries the connect timeout.
type DialFunc func(ctx context.Context) (Connection, error)

// ConnectionPool owns a device's sessions, keyed by endpoint.
//
// Concurrent first use of a key shares a single establishment; its result,
// success or failure, reaches every waiter. Failures are not cached.
type ConnectionPool struct {
	timeout time.Duration

	mu     sync.Mutex
	conns  map[string]Connection
	closed bool

	group singleflight.Group
}

// NewConnectionPool creates an empty pool. A non-positive timeout selects
// DefaultConnectTimeout.
func NewConnectionPool(timeout time.Duration) *ConnectionPool {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	return &ConnectionPool{
		timeout: timeout,
		conns:   make(map[string]Connection),
	}
}

// GetOrCreate returns the session for key, establishing it with dial if the
// pool has none.
//
// The establishment runs detached from ctx so that one caller giving up does
// not fail the others; ctx only bounds how long this caller waits.
//
// Returns:
//   - Connection: The shared session
//   - error: ErrConnectionEstablish, ErrPoolClosed or ctx.Err()
func (p *ConnectionPool) GetOrCreate(ctx context.Context, key string, dial DialFunc) (Connection, error) {
	if c, err := p.lookup(key); c != nil || err != nil {
		return c, err
	}

	ch := p.group.DoChan(key, func() (any, error) {
		if c, err := p.lookup(key); c != nil || err != nil {
			return c, err
		}

		dialCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
		defer cancel()

		c, err := dial(dialCtx)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrConnectionEstablish, key, err)
		}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			c.Close() //nolint:errcheck // pool already torn down
			return nil, ErrPoolClosed
		}
		p.conns[key] = c
		p.mu.Unlock()
		return c, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Connection), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *ConnectionPool) lookup(key string) (Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPoolClosed
	}
	return p.conns[key], nil
}

// Adopt stores an already established session under key. If the pool already
// holds one, or has been closed, c is closed instead.
func (p *ConnectionPool) Adopt(key string, c Connection) {
	p.mu.Lock()
	if _, exists := p.conns[key]; exists || p.closed {
		p.mu.Unlock()
		c.Close() //nolint:errcheck // duplicate session
		return
	}
	p.conns[key] = c
	p.mu.Unlock()
}

// Len returns the number of established sessions.
func (p *ConnectionPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// Close releases every session exactly once and refuses new ones.
// Establishments completing after Close are closed immediately.
func (p *ConnectionPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	conns := p.conns
	p.conns = make(map[string]Connection)
	p.mu.Unlock()

	var errs []error
	for key, c := range conns {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}
