package binding

import "errors"

// Sentinel errors for binding operations. Check them with errors.Is.
var (
	// ErrTransport covers network failures, timeouts and non-success statuses.
	ErrTransport = errors.New("binding: transport failure")

	// ErrParse is returned when a payload cannot be decoded.
	ErrParse = errors.New("binding: malformed payload")

	// ErrNoApplicableHandler means no registered implementation accepts any
	// of the forms. The operation is unavailable; retrying will not help.
	ErrNoApplicableHandler = errors.New("binding: no applicable handler")

	// ErrConnectionEstablish is returned when a shared session cannot be
	// established within the connect timeout.
	ErrConnectionEstablish = errors.New("binding: connection establishment failed")

	// ErrPoolClosed is returned by a ConnectionPool after Close.
	ErrPoolClosed = errors.New("binding: connection pool closed")

	// ErrCancelUnsupported is returned when the transport cannot cancel a
	// pending action.
	ErrCancelUnsupported = errors.New("binding: action cancellation not supported by transport")

	// ErrBodyTooLarge is returned alongside ErrParse when a response body
	// exceeds the read limit. Re-fetching the same resource will not help.
	ErrBodyTooLarge = errors.New("binding: response body too large")

	// ErrUnsupportedScheme is returned when no loader accepts a URL.
	ErrUnsupportedScheme = errors.New("binding: unsupported URL scheme")
)
