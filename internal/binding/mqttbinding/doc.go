// Package mqttbinding implements the MQTT protocol binding.
//
// A form href such as mqtt://broker:1883/lamp/level names a broker
// (mqtt://broker:1883) and a topic (lamp/level). Sessions are shared per
// broker through the device's binding.ConnectionPool, so every form pointing
// at one broker uses a single client.
//
//	writeproperty    publish the JSON value, acknowledged optimistically
//	invokeaction     publish the JSON input, no output
//	observeproperty  subscribe, each JSON message is a value
//	subscribeevent   subscribe, each JSON message is an event payload
//
// readproperty is not offered; MQTT has no request/response exchange.
// Pending invocations cannot be canceled.
//
// Descriptions published on a topic are loaded with Load: the first message
// received after subscribing is the document, and the session used to fetch
// it is handed over to the new device.
package mqttbinding
