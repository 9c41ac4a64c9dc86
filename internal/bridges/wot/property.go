package wot

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-wot/internal/binding"
	"github.com/nerrad567/gray-logic-wot/internal/thing"
)

// PropertyBinding pairs one property with its handlers and cached value.
//
// At most one handler of each kind is bound: the first form, in
// declaration order, that a registered implementation accepts. The cache
// changes only on successful reads, observed deliveries and successful
// writes; each change calls onChange.
type PropertyBinding struct {
	name string

	reader   binding.PropertyReader
	writer   binding.PropertyWriter
	observer binding.PropertyObserver

	value    any
	valueMu  sync.RWMutex
	onChange func(name string, value any)

	sub      *binding.Subscription
	canceled bool
	subMu    sync.Mutex
}

// NewPropertyBinding binds prop's forms with reg. The cache starts at the
// value the description advertises.
//
// Parameters:
//   - name: Property name
//   - prop: The property description
//   - reg: Handler implementations to choose from
//   - env: Passed to handler constructors
//   - onChange: Called after every cache update; may be nil
func NewPropertyBinding(name string, prop *thing.Property, reg *binding.Registry, env binding.Env, onChange func(name string, value any)) *PropertyBinding {
	log := env.Log()
	p := &PropertyBinding{
		name:     name,
		value:    prop.Value,
		onChange: onChange,
	}
	p.reader = bindOne(reg.Readers, env, prop.FormsFor(thing.OpReadProperty), log, name, thing.OpReadProperty)
	p.writer = bindOne(reg.Writers, env, prop.FormsFor(thing.OpWriteProperty), log, name, thing.OpWriteProperty)
	p.observer = bindOne(reg.Observers, env, prop.FormsFor(thing.OpObserveProperty), log, name, thing.OpObserveProperty)
	return p
}

// Name returns the property name.
func (p *PropertyBinding) Name() string { return p.name }

// Readable reports whether a read handler is bound.
func (p *PropertyBinding) Readable() bool { return p.reader != nil }

// Writable reports whether a write handler is bound.
func (p *PropertyBinding) Writable() bool { return p.writer != nil }

// Observable reports whether an observe handler is bound.
func (p *PropertyBinding) Observable() bool { return p.observer != nil }

// Value returns the cached value.
func (p *PropertyBinding) Value() any {
	p.valueMu.RLock()
	defer p.valueMu.RUnlock()
	return p.value
}

func (p *PropertyBinding) update(v any) {
	p.valueMu.Lock()
	p.value = v
	p.valueMu.Unlock()

	if p.onChange != nil {
		p.onChange(p.name, v)
	}
}

// Start opens the observe subscription, if an observer is bound. Calling it
// again, or after CancelSubscriptions, does nothing.
func (p *PropertyBinding) Start(ctx context.Context) error {
	if p.observer == nil {
		return nil
	}

	p.subMu.Lock()
	defer p.subMu.Unlock()
	if p.sub != nil || p.canceled {
		return nil
	}

	sub, err := p.observer.ObserveProperty(ctx, p.update)
	if err != nil {
		return fmt.Errorf("observing %s: %w", p.name, err)
	}
	p.sub = sub
	return nil
}

// Poll reads the property once and updates the cache. Without a read
// handler it does nothing. On failure the cache is kept.
func (p *PropertyBinding) Poll(ctx context.Context) error {
	if p.reader == nil {
		return nil
	}
	v, err := p.reader.ReadProperty(ctx)
	if err != nil {
		return fmt.Errorf("reading %s: %w", p.name, err)
	}
	p.update(v)
	return nil
}

// SetValue writes v. On success the cache is set to v whatever the device
// acknowledged; the next poll or push corrects any difference. On failure
// the cache is kept and its value returned with the error.
func (p *PropertyBinding) SetValue(ctx context.Context, v any) (any, error) {
	if p.writer == nil {
		return p.Value(), fmt.Errorf("%w: %s is not writable", binding.ErrNoApplicableHandler, p.name)
	}
	if _, err := p.writer.WriteProperty(ctx, v); err != nil {
		return p.Value(), fmt.Errorf("writing %s: %w", p.name, err)
	}
	p.update(v)
	return v, nil
}

// CancelSubscriptions cancels the observe subscription. It is idempotent and
// prevents later Start calls from subscribing again.
func (p *PropertyBinding) CancelSubscriptions() {
	p.subMu.Lock()
	sub := p.sub
	p.sub = nil
	p.canceled = true
	p.subMu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
}
