package httpbinding

import (
	"github.com/nerrad567/gray-logic-wot/internal/binding"
	"github.com/nerrad567/gray-logic-wot/internal/thing"
)

// Implementation names.
const (
	Name         = "http"
	NameLongPoll = "http-longpoll"
)

// Generic reports whether form is a plain HTTP form. Forms naming any
// sub-protocol are left to the handlers that understand it.
func Generic(form thing.Form) bool {
	return form.HasScheme("http", "https") && form.Subprotocol == ""
}

// LongPoll reports whether form is an HTTP long-poll form.
func LongPoll(form thing.Form) bool {
	return form.HasScheme("http", "https") && form.Subprotocol == thing.SubprotocolLongPoll
}

// Reader is the request/response readproperty implementation.
var Reader = binding.Impl[binding.PropertyReader]{
	Name:    Name,
	Applies: Generic,
	Build: func(env binding.Env, form thing.Form) (binding.PropertyReader, error) {
		return NewPropertyHandler(env.HTTPClient(), form), nil
	},
}

// Writer is the request/response writeproperty implementation.
var Writer = binding.Impl[binding.PropertyWriter]{
	Name:    Name,
	Applies: Generic,
	Build: func(env binding.Env, form thing.Form) (binding.PropertyWriter, error) {
		return NewPropertyHandler(env.HTTPClient(), form), nil
	},
}

// Invoker is the request/response invokeaction implementation.
var Invoker = binding.Impl[binding.ActionInvoker]{
	Name:    Name,
	Applies: Generic,
	Build: func(env binding.Env, form thing.Form) (binding.ActionInvoker, error) {
		return NewActionHandler(env.HTTPClient(), form)
	},
}

// LongPollObserver is the long-poll observeproperty implementation.
var LongPollObserver = binding.Impl[binding.PropertyObserver]{
	Name:    NameLongPoll,
	Applies: LongPoll,
	Build: func(env binding.Env, form thing.Form) (binding.PropertyObserver, error) {
		return NewLongPollHandler(env, form), nil
	},
}

// LongPollSubscriber is the long-poll subscribeevent implementation.
var LongPollSubscriber = binding.Impl[binding.EventSubscriber]{
	Name:    NameLongPoll,
	Applies: LongPoll,
	Build: func(env binding.Env, form thing.Form) (binding.EventSubscriber, error) {
		return NewLongPollHandler(env, form), nil
	},
}

// Loader fetches http and https description URLs.
var Loader = binding.LoaderImpl{
	Name:    Name,
	Applies: isHTTPURL,
	Load:    Load,
}
