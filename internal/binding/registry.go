package binding

import (
	"context"
	"fmt"
	"net/url"

	"github.com/nerrad567/gray-logic-wot/internal/thing"
)

// Impl is one transport implementation of handler contract H.
type Impl[H any] struct {
	// Name identifies the implementation in logs, e.g. "http", "http-longpoll".
	Name string

	// Applies reports whether this implementation handles the form.
	Applies func(form thing.Form) bool

	// Build binds a handler to the form.
	Build func(env Env, form thing.Form) (H, error)
}

// Registry holds the ordered implementations for every operation.
// The zero value has no implementations.
type Registry struct {
	Readers     []Impl[PropertyReader]
	Writers     []Impl[PropertyWriter]
	Observers   []Impl[PropertyObserver]
	Invokers    []Impl[ActionInvoker]
	Subscribers []Impl[EventSubscriber]
	Loaders     []LoaderImpl
}

// Resolve returns the name of the first implementation of op that accepts
// form, or false when none does.
func (r *Registry) Resolve(op thing.Op, form thing.Form) (string, bool) {
	switch op {
	case thing.OpReadProperty:
		return resolveName(r.Readers, form)
	case thing.OpWriteProperty:
		return resolveName(r.Writers, form)
	case thing.OpObserveProperty:
		return resolveName(r.Observers, form)
	case thing.OpInvokeAction:
		return resolveName(r.Invokers, form)
	case thing.OpSubscribeEvent:
		return resolveName(r.Subscribers, form)
	default:
		return "", false
	}
}

func resolveName[H any](impls []Impl[H], form thing.Form) (string, bool) {
	impl, ok := Resolve(impls, form)
	return impl.Name, ok
}

// Resolve returns the first implementation accepting form.
func Resolve[H any](impls []Impl[H], form thing.Form) (Impl[H], bool) {
	for _, impl := range impls {
		if impl.Applies(form) {
			return impl, true
		}
	}
	return Impl[H]{}, false
}

// Bind builds a handler for the first form, in declaration order, that some
// implementation accepts.
//
// Returns:
//   - H: The built handler
//   - thing.Form: The form it is bound to
//   - error: ErrNoApplicableHandler when no form is accepted, or the
//     implementation's build error
func Bind[H any](impls []Impl[H], env Env, forms []thing.Form) (H, thing.Form, error) {
	var zero H
	for _, form := range forms {
		impl, ok := Resolve(impls, form)
		if !ok {
			continue
		}
		h, err := impl.Build(env, form)
		if err != nil {
			return zero, form, fmt.Errorf("building %s handler for %s: %w", impl.Name, form.Href, err)
		}
		return h, form, nil
	}
	return zero, thing.Form{}, ErrNoApplicableHandler
}

// Fetched is a description document returned by a loader.
type Fetched struct {
	Raw []byte

	// Conns are sessions opened while loading, keyed like ConnectionPool
	// keys. The caller adopts them into the device's pool or closes them.
	Conns map[string]Connection
}

// Close releases every session in Conns.
func (f *Fetched) Close() {
	for key, c := range f.Conns {
		c.Close() //nolint:errcheck // best effort
		delete(f.Conns, key)
	}
}

// LoaderImpl fetches description documents for the URLs it applies to.
type LoaderImpl struct {
	Name    string
	Applies func(u *url.URL) bool
	Load    func(ctx context.Context, env Env, u *url.URL) (*Fetched, error)
}

// Load fetches rawURL with the first loader that applies to it.
func (r *Registry) Load(ctx context.Context, env Env, rawURL string) (*Fetched, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrUnsupportedScheme, rawURL, err)
	}
	for _, l := range r.Loaders {
		if l.Applies(u) {
			return l.Load(ctx, env, u)
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
}
