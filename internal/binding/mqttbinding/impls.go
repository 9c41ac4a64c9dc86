package mqttbinding

import (
	"github.com/nerrad567/gray-logic-wot/internal/binding"
	"github.com/nerrad567/gray-logic-wot/internal/thing"
)

// Name identifies the MQTT implementations.
const Name = "mqtt"

// Applies reports whether form addresses an MQTT broker.
func Applies(form thing.Form) bool {
	return form.HasScheme("mqtt", "mqtts")
}

// Writer is the writeproperty implementation.
var Writer = binding.Impl[binding.PropertyWriter]{
	Name:    Name,
	Applies: Applies,
	Build: func(env binding.Env, form thing.Form) (binding.PropertyWriter, error) {
		return NewHandler(env, form)
	},
}

// Invoker is the invokeaction implementation.
var Invoker = binding.Impl[binding.ActionInvoker]{
	Name:    Name,
	Applies: Applies,
	Build: func(env binding.Env, form thing.Form) (binding.ActionInvoker, error) {
		return NewHandler(env, form)
	},
}

// Observer is the observeproperty implementation.
var Observer = binding.Impl[binding.PropertyObserver]{
	Name:    Name,
	Applies: Applies,
	Build: func(env binding.Env, form thing.Form) (binding.PropertyObserver, error) {
		return NewHandler(env, form)
	},
}

// Subscriber is the subscribeevent implementation.
var Subscriber = binding.Impl[binding.EventSubscriber]{
	Name:    Name,
	Applies: Applies,
	Build: func(env binding.Env, form thing.Form) (binding.EventSubscriber, error) {
		return NewHandler(env, form)
	},
}

// Loader fetches mqtt and mqtts description URLs.
var Loader = binding.LoaderImpl{
	Name:    Name,
	Applies: isMQTTURL,
	Load:    Load,
}
