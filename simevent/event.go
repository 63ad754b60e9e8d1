// Package simevent carries abstract simulation events between connectors and
// the rest of the HIL system.
package simevent

import (
	"fmt"
	"time"
)

// Event is one abstract simulation event. Value holds a scalar or a blob.
type Event struct {
	Operation string
	Value     any
	Origin    string
	Timestamp time.Time
}

// New stamps an event with the current time.
func New(operation string, value any, origin string) Event {
	return Event{
		Operation: operation,
		Value:     value,
		Origin:    origin,
		Timestamp: time.Now(),
	}
}

func (e Event) String() string {
	return fmt.Sprintf("%s=%v (%s)", e.Operation, e.Value, e.Origin)
}

// Float64 converts numeric event values. Strings and blobs are rejected.
func (e Event) Float64() (float64, bool) {
	switch v := e.Value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
