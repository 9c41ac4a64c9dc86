package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes on the Gray Logic bus.
//
// WoT devices follow the flat bridge scheme used across Gray Logic:
// graylogic/{category}/wot/{device_id}/{name}
const (
	TopicPrefix       = "graylogic"
	TopicPrefixSystem = "graylogic/system"

	// Protocol is the protocol segment for every WoT topic.
	Protocol = "wot"
)

// Topics provides builders for Gray Logic MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.PropertyState("http---lamp.local", "brightness")
//	// Returns: "graylogic/state/wot/http---lamp.local/brightness"
type Topics struct{}

// PropertyState is where property value changes are published (retained).
func (Topics) PropertyState(deviceID, property string) string {
	return fmt.Sprintf("%s/state/%s/%s/%s", TopicPrefix, Protocol, segment(deviceID), segment(property))
}

// Event is where event occurrences are published.
func (Topics) Event(deviceID, event string) string {
	return fmt.Sprintf("%s/event/%s/%s/%s", TopicPrefix, Protocol, segment(deviceID), segment(event))
}

// ActionStatus is where action status transitions are published.
func (Topics) ActionStatus(deviceID, action string) string {
	return fmt.Sprintf("%s/action/%s/%s/%s", TopicPrefix, Protocol, segment(deviceID), segment(action))
}

// Device is where device added/removed announcements are published (retained).
func (Topics) Device(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/%s", TopicPrefix, Protocol, segment(deviceID))
}

// SystemStatus is the service online/offline topic, also used as Last Will.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// AllStates matches every WoT property state topic.
func (Topics) AllStates() string {
	return fmt.Sprintf("%s/state/%s/#", TopicPrefix, Protocol)
}

// AllEvents matches every WoT event topic.
func (Topics) AllEvents() string {
	return fmt.Sprintf("%s/event/%s/#", TopicPrefix, Protocol)
}

var segmentReplacer = strings.NewReplacer("/", "_", "+", "_", "#", "_")

// segment makes a name safe as a single topic level.
func segment(s string) string {
	return segmentReplacer.Replace(s)
}
