package influxdb

import (
	"encoding/json"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by this package.
const (
	MeasurementProperty = "wot_property"
	MeasurementEvent    = "wot_event"
	MeasurementAction   = "wot_action"
)

// WriteProperty records a property value. Only scalar values are stored:
// numbers and booleans as "value" and strings as "text". Objects, arrays and
// nil are skipped.
//
// Parameters:
//   - deviceID: Device identifier (e.g., "http---lamp.local-things-lamp")
//   - property: Property name
//   - value: The decoded JSON value
//   - at: Observation time
func (c *Client) WriteProperty(deviceID, property string, value any, at time.Time) {
	fields, ok := PropertyFields(value)
	if !ok || !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(
		MeasurementProperty,
		map[string]string{"device_id": deviceID, "property": property},
		fields,
		at,
	))
}

// WriteEvent counts one occurrence of an event.
func (c *Client) WriteEvent(deviceID, event string, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(
		MeasurementEvent,
		map[string]string{"device_id": deviceID, "event": event},
		map[string]any{"count": 1},
		at,
	))
}

// WriteActionStatus records an action status transition.
func (c *Client) WriteActionStatus(deviceID, action, status string, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(
		MeasurementAction,
		map[string]string{"device_id": deviceID, "action": action, "status": status},
		map[string]any{"count": 1},
		at,
	))
}

// PropertyFields converts a decoded JSON value into InfluxDB fields.
// It reports false for values that have no scalar representation.
func PropertyFields(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case float64:
		return map[string]any{"value": v}, true
	case float32:
		return map[string]any{"value": float64(v)}, true
	case int:
		return map[string]any{"value": float64(v)}, true
	case int64:
		return map[string]any{"value": float64(v)}, true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, false
		}
		return map[string]any{"value": f}, true
	case bool:
		n := 0.0
		if v {
			n = 1
		}
		return map[string]any{"value": n}, true
	case string:
		return map[string]any{"text": v}, true
	default:
		return nil, false
	}
}
