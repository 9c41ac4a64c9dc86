package wot

import (
	"time"

	"github.com/nerrad567/gray-logic-wot/internal/infrastructure/mqtt"
)

// BusPublisher publishes JSON on the Gray Logic bus.
// Satisfied by *mqtt.Client.
type BusPublisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// BusNotifier publishes the device model on the Gray Logic MQTT bus:
//
//	graylogic/state/wot/{device}/{property}   retained property values
//	graylogic/event/wot/{device}/{event}      event occurrences
//	graylogic/action/wot/{device}/{action}    action status
//	graylogic/device/wot/{device}             retained device announcements
type BusNotifier struct {
	bus    BusPublisher
	topics mqtt.Topics
	log    Logger
	now    func() time.Time
}

// NewBusNotifier creates a notifier publishing on bus. logger may be nil.
func NewBusNotifier(bus BusPublisher, logger Logger) *BusNotifier {
	if logger == nil {
		logger = noopLogger{}
	}
	return &BusNotifier{bus: bus, log: logger, now: time.Now}
}

// StateMessage is published for every property value.
type StateMessage struct {
	DeviceID  string `json:"device_id"`
	Property  string `json:"property"`
	Value     any    `json:"value"`
	Timestamp string `json:"timestamp"`
}

// EventMessage is published for every event occurrence.
type EventMessage struct {
	DeviceID  string `json:"device_id"`
	Event     string `json:"event"`
	Data      any    `json:"data,omitempty"`
	Timestamp string `json:"timestamp"`
}

// DeviceMessage announces a device joining or leaving.
type DeviceMessage struct {
	Status string      `json:"status"`
	Device *DeviceInfo `json:"device,omitempty"`
	ID     string      `json:"device_id"`
}

func (n *BusNotifier) publish(topic string, v any, retained bool) {
	if err := n.bus.PublishJSON(topic, v, retained); err != nil {
		n.log.Warn("bus publish failed", "topic", topic, "error", err)
	}
}

// PropertyChanged implements Notifier.
func (n *BusNotifier) PropertyChanged(deviceID, property string, value any) {
	n.publish(n.topics.PropertyState(deviceID, property), StateMessage{
		DeviceID:  deviceID,
		Property:  property,
		Value:     value,
		Timestamp: n.now().UTC().Format(time.RFC3339),
	}, true)
}

// EventOccurred implements Notifier.
func (n *BusNotifier) EventOccurred(deviceID string, event EventRecord) {
	n.publish(n.topics.Event(deviceID, event.Name), EventMessage{
		DeviceID:  deviceID,
		Event:     event.Name,
		Data:      event.Data,
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
	}, false)
}

// ActionStatus implements Notifier.
func (n *BusNotifier) ActionStatus(deviceID string, action ActionRecord) {
	n.publish(n.topics.ActionStatus(deviceID, action.Name), action, false)
}

// DeviceAdded implements Notifier.
func (n *BusNotifier) DeviceAdded(info DeviceInfo) {
	n.publish(n.topics.Device(info.ID), DeviceMessage{Status: "added", Device: &info, ID: info.ID}, true)
}

// DeviceRemoved implements Notifier.
func (n *BusNotifier) DeviceRemoved(deviceID string) {
	n.publish(n.topics.Device(deviceID), DeviceMessage{Status: "removed", ID: deviceID}, true)
}

// TelemetryWriter records device history.
// Satisfied by *influxdb.Client.
type TelemetryWriter interface {
	WriteProperty(deviceID, property string, value any, at time.Time)
	WriteEvent(deviceID, event string, at time.Time)
	WriteActionStatus(deviceID, action, status string, at time.Time)
}

// TelemetryNotifier records property values, events and action status
// changes as time series. Device membership is not recorded.
type TelemetryNotifier struct {
	w   TelemetryWriter
	now func() time.Time
}

// NewTelemetryNotifier creates a notifier writing to w.
func NewTelemetryNotifier(w TelemetryWriter) *TelemetryNotifier {
	return &TelemetryNotifier{w: w, now: time.Now}
}

// PropertyChanged implements Notifier.
func (n *TelemetryNotifier) PropertyChanged(deviceID, property string, value any) {
	n.w.WriteProperty(deviceID, property, value, n.now())
}

// EventOccurred implements Notifier.
func (n *TelemetryNotifier) EventOccurred(deviceID string, event EventRecord) {
	n.w.WriteEvent(deviceID, event.Name, event.Timestamp)
}

// ActionStatus implements Notifier.
func (n *TelemetryNotifier) ActionStatus(deviceID string, action ActionRecord) {
	n.w.WriteActionStatus(deviceID, action.Name, string(action.Status), n.now())
}

// DeviceAdded implements Notifier.
func (n *TelemetryNotifier) DeviceAdded(DeviceInfo) {}

// DeviceRemoved implements Notifier.
func (n *TelemetryNotifier) DeviceRemoved(string) {}
