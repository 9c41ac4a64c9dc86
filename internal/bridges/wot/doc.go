// Package wot keeps a live model of Web of Things devices in sync with the
// devices themselves.
//
// The Adapter loads Thing descriptions from URLs, detects unchanged reloads
// by content digest, and reconciles the set of known devices. Each Device
// binds its properties, events and actions to transport handlers chosen
// from a binding.Registry, polls readable properties on a repeating task,
// keeps observe and event subscriptions open, and records action
// invocations.
//
// Every change is reported through a Notifier. BusNotifier publishes on the
// Gray Logic MQTT bus and TelemetryNotifier records into InfluxDB; Notifiers
// fans out to several.
//
// Thread Safety: Adapter, Device and PropertyBinding are safe for concurrent
// use. Teardown is safe while polls and subscriptions are in flight.
package wot
