package wot

import (
	"encoding/json"
	"strconv"
	"time"
)

// ActionStatus is the lifecycle state of an action invocation.
type ActionStatus string

// Action statuses.
const (
	ActionCreated   ActionStatus = "created"
	ActionPending   ActionStatus = "pending"
	ActionCompleted ActionStatus = "completed"
	ActionError     ActionStatus = "error"
	ActionCancelled ActionStatus = "cancelled"
)

// maxActionRecords bounds the per-device action table. The oldest finished
// records are dropped first.
const maxActionRecords = 64

// ActionRecord is one invocation of an action.
type ActionRecord struct {
	// ID keys the device's action table: the transport's reference for the
	// pending action when it reports one, otherwise a generated UUID.
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Input  any          `json:"input,omitempty"`
	Output any          `json:"output,omitempty"`
	Status ActionStatus `json:"status"`
	Error  string       `json:"error,omitempty"`

	// Ref is the transport's reference used for cancellation.
	Ref string `json:"href,omitempty"`

	TimeRequested time.Time  `json:"timeRequested"`
	TimeCompleted *time.Time `json:"timeCompleted,omitempty"`
}

func (r *ActionRecord) finished() bool {
	switch r.Status {
	case ActionCompleted, ActionError, ActionCancelled:
		return true
	}
	return false
}

func (r *ActionRecord) finish(status ActionStatus, at time.Time) {
	r.Status = status
	r.TimeCompleted = &at
}

// uriVariables flattens an object input into template variables. Strings
// are used as is; other values use their JSON text. Non-object inputs
// yield no variables.
func uriVariables(input any) map[string]string {
	obj, ok := input.(map[string]any)
	if !ok || len(obj) == 0 {
		return nil
	}
	vars := make(map[string]string, len(obj))
	for name, v := range obj {
		switch val := v.(type) {
		case string:
			vars[name] = val
		case float64:
			vars[name] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			vars[name] = strconv.FormatBool(val)
		case nil:
			continue
		default:
			data, err := json.Marshal(val)
			if err != nil {
				continue
			}
			vars[name] = string(data)
		}
	}
	return vars
}
