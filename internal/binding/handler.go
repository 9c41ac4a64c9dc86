package binding

import (
	"context"
	"net/http"
	"time"
)

// DeliverFunc receives one value from an observed property or subscribed event.
type DeliverFunc func(value any)

// PropertyReader reads a property once. Failures are terminal for the call.
type PropertyReader interface {
	ReadProperty(ctx context.Context) (any, error)
}

// PropertyWriter writes a property and returns the acknowledged value.
type PropertyWriter interface {
	WriteProperty(ctx context.Context, value any) (any, error)
}

// PropertyObserver starts a continuous feed of property values.
type PropertyObserver interface {
	ObserveProperty(ctx context.Context, deliver DeliverFunc) (*Subscription, error)
}

// ActionInvoker invokes an action. uriVariables fill URI templates in the
// form's href.
type ActionInvoker interface {
	InvokeAction(ctx context.Context, input any, uriVariables map[string]string) (Invocation, error)
}

// ActionCanceller is implemented by invokers whose transport can cancel a
// pending invocation.
type ActionCanceller interface {
	CancelAction(ctx context.Context, ref string) error
}

// EventSubscriber starts a continuous feed of event payloads.
type EventSubscriber interface {
	SubscribeEvent(ctx context.Context, deliver DeliverFunc) (*Subscription, error)
}

// Invocation is the outcome of a successful InvokeAction.
type Invocation struct {
	// Output is the decoded response, or nil for publish-and-forget transports.
	Output any
	// Ref identifies the pending action at the remote end, when the transport
	// reports one (for HTTP, the Location header or an href in the body).
	Ref string
}

// RetryPolicy bounds the delay between re-issued long-running requests.
type RetryPolicy struct {
	Initial time.Duration
	Max     time.Duration
}

// Env carries what handler constructors need from the owning device.
type Env struct {
	// Conns is the owning device's session pool.
	Conns *ConnectionPool

	// HTTP is used for request/response operations.
	HTTP *http.Client

	// Streaming is used for long-poll requests; it must not impose a total
	// request timeout.
	Streaming *http.Client

	// Retry paces re-issued long-poll requests after failures.
	Retry RetryPolicy

	// ConnectTimeout bounds session establishment done outside the pool
	// (description loaders).
	ConnectTimeout time.Duration

	// ClientID prefixes client identifiers presented to brokers.
	ClientID string

	Logger Logger
}

// httpClient returns c, or http.DefaultClient when c is nil.
func httpClient(c *http.Client) *http.Client {
	if c == nil {
		return http.DefaultClient
	}
	return c
}

// HTTPClient returns the request/response client.
func (e Env) HTTPClient() *http.Client {
	return httpClient(e.HTTP)
}

// StreamingClient returns the long-poll client.
func (e Env) StreamingClient() *http.Client {
	return httpClient(e.Streaming)
}

// Log returns the configured logger or a no-op logger.
func (e Env) Log() Logger {
	if e.Logger == nil {
		return noopLogger{}
	}
	return e.Logger
}

// Logger is the logging interface used by bindings.
// Compatible with *logging.Logger and *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
