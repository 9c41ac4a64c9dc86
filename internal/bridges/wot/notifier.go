package wot

import "time"

// Notifier receives every change in the device model.
//
// Implementations are called synchronously from polls, subscription
// deliveries and action invocations and should not block for long.
type Notifier interface {
	// PropertyChanged reports a new cached value.
	PropertyChanged(deviceID, property string, value any)

	// EventOccurred reports an event delivered by the device.
	EventOccurred(deviceID string, event EventRecord)

	// ActionStatus reports an action status transition.
	ActionStatus(deviceID string, action ActionRecord)

	// DeviceAdded reports a device that joined the model.
	DeviceAdded(info DeviceInfo)

	// DeviceRemoved reports a device that left the model.
	DeviceRemoved(deviceID string)
}

// EventRecord is one event occurrence.
type EventRecord struct {
	Name      string    `json:"name"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// DeviceInfo describes a device in notifications.
type DeviceInfo struct {
	ID         string   `json:"id"`
	Title      string   `json:"title,omitempty"`
	URL        string   `json:"url"`
	Origin     string   `json:"origin"`
	Properties []string `json:"properties,omitempty"`
	Actions    []string `json:"actions,omitempty"`
	Events     []string `json:"events,omitempty"`
}

// Notifiers fans every notification out to each element in order.
type Notifiers []Notifier

// PropertyChanged implements Notifier.
func (n Notifiers) PropertyChanged(deviceID, property string, value any) {
	for _, x := range n {
		x.PropertyChanged(deviceID, property, value)
	}
}

// EventOccurred implements Notifier.
func (n Notifiers) EventOccurred(deviceID string, event EventRecord) {
	for _, x := range n {
		x.EventOccurred(deviceID, event)
	}
}

// ActionStatus implements Notifier.
func (n Notifiers) ActionStatus(deviceID string, action ActionRecord) {
	for _, x := range n {
		x.ActionStatus(deviceID, action)
	}
}

// DeviceAdded implements Notifier.
func (n Notifiers) DeviceAdded(info DeviceInfo) {
	for _, x := range n {
		x.DeviceAdded(info)
	}
}

// DeviceRemoved implements Notifier.
func (n Notifiers) DeviceRemoved(deviceID string) {
	for _, x := range n {
		x.DeviceRemoved(deviceID)
	}
}

type noopNotifier struct{}

func (noopNotifier) PropertyChanged(string, string, any) {}
func (noopNotifier) EventOccurred(string, EventRecord)   {}
func (noopNotifier) ActionStatus(string, ActionRecord)   {}
func (noopNotifier) DeviceAdded(DeviceInfo)              {}
func (noopNotifier) DeviceRemoved(string)                {}
