// Package httpbinding implements the HTTP protocol binding.
//
// Forms with an http or https href and no sub-protocol are served by the
// request/response handlers:
//
//	readproperty    GET    body is the value
//	writeproperty   PUT    body is the value; the response acknowledges it
//	invokeaction    POST   href may be an RFC 6570 template filled from
//	                       the invocation's uriVariables
//
// Forms with subprotocol "longpoll" are served only by the long-poll
// handlers (observeproperty, subscribeevent): a GET is held open by the
// Thing until a value is available, delivered, and immediately re-issued.
// Failed requests are re-issued after an exponential backoff delay.
//
// Every form may override the method with htv:methodName.
package httpbinding
