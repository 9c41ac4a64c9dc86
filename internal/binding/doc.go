// Package binding selects and drives transport handlers for the forms of a
// Thing description.
//
// # Handlers
//
// Each operation has its own handler contract: PropertyReader,
// PropertyWriter, PropertyObserver, ActionInvoker (optionally
// ActionCanceller) and EventSubscriber. Transports (see the httpbinding and
// mqttbinding packages) provide implementations as Impl values: a name, an
// applicability predicate over a form, and a constructor.
//
// # Selection
//
// A Registry holds an ordered list of implementations per operation. For a
// list of forms, Bind walks the forms in declaration order and, for each,
// the implementations in registration order; the first implementation that
// applies to a form is built. Registration order is the only tie-break, so
// sub-protocol specific implementations must be registered before generic
// ones for the same scheme.
//
// # Lifecycle
//
// Observe and subscribe handlers return a Subscription. Once Cancel returns
// no delivery callback runs again. Stateful transports share sessions
// through the device-owned ConnectionPool, which establishes each endpoint
// at most once at a time and releases everything on Close.
//
// # Loading
//
// Description documents are fetched by LoaderImpl values chosen the same
// way, by first match on the document URL.
package binding
