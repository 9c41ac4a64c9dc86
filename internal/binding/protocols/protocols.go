// Package protocols assembles the default binding registry.
package protocols

import (
	"github.com/nerrad567/gray-logic-wot/internal/binding"
	"github.com/nerrad567/gray-logic-wot/internal/binding/httpbinding"
	"github.com/nerrad567/gray-logic-wot/internal/binding/mqttbinding"
)

// Default returns the registry of every built-in binding.
//
// HTTP long-poll handlers are registered ahead of the generic HTTP handlers;
// the two never accept the same form, so the order only documents intent.
func Default() *binding.Registry {
	return &binding.Registry{
		Readers: []binding.Impl[binding.PropertyReader]{
			httpbinding.Reader,
		},
		Writers: []binding.Impl[binding.PropertyWriter]{
			httpbinding.Writer,
			mqttbinding.Writer,
		},
		Observers: []binding.Impl[binding.PropertyObserver]{
			httpbinding.LongPollObserver,
			mqttbinding.Observer,
		},
		Invokers: []binding.Impl[binding.ActionInvoker]{
			httpbinding.Invoker,
			mqttbinding.Invoker,
		},
		Subscribers: []binding.Impl[binding.EventSubscriber]{
			httpbinding.LongPollSubscriber,
			mqttbinding.Subscriber,
		},
		Loaders: []binding.LoaderImpl{
			httpbinding.Loader,
			mqttbinding.Loader,
		},
	}
}
