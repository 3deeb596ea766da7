package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EventType classifies a webhook notification. The service sends it either
// as a number or as its name.
type EventType int

const (
	EventTypeNone EventType = iota
	EventTypeJobStateChange
	EventTypeNotificationEndPointRegistration
	EventTypeNotificationEndPointUnregistration
	EventTypeTaskStateChange
	EventTypeTaskProgress
)

var eventTypeNames = [...]string{
	EventTypeNone:                               "None",
	EventTypeJobStateChange:                     "JobStateChange",
	EventTypeNotificationEndPointRegistration:   "NotificationEndPointRegistration",
	EventTypeNotificationEndPointUnregistration: "NotificationEndPointUnregistration",
	EventTypeTaskStateChange:                    "TaskStateChange",
	EventTypeTaskProgress:                       "TaskProgress",
}

func (t EventType) String() string {
	if t >= 0 && int(t) < len(eventTypeNames) {
		return eventTypeNames[t]
	}
	return "EventType(" + strconv.Itoa(int(t)) + ")"
}

func (t *EventType) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*t = EventTypeNone
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var name string
		if err := json.Unmarshal(b, &name); err != nil {
			return err
		}
		for i, n := range eventTypeNames {
			if strings.EqualFold(n, name) {
				*t = EventType(i)
				return nil
			}
		}
		return fmt.Errorf("unknown notification event type %q", name)
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("notification event type: %w", err)
	}
	*t = EventType(n)
	return nil
}

// Timestamp accepts the service's round-trip timestamps, with or without a
// zone designator. Missing or null values leave it zero.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
}

func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("notification timestamp: %w", err)
	}
	if raw == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			ts.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("notification timestamp: unrecognised value %q", raw)
}

// Event is the body the media service posts to a webhook endpoint.
type Event struct {
	MessageVersion string            `json:"MessageVersion"`
	ETag           string            `json:"ETag"`
	EventType      EventType         `json:"EventType"`
	TimeStamp      Timestamp         `json:"TimeStamp"`
	Properties     map[string]string `json:"Properties"`
}

// Property returns the named property, or "" when it is absent.
func (e Event) Property(key string) string {
	return e.Properties[key]
}

func (e Event) JobID() string { return e.Property("JobId") }
func (e Event) NewState() string { return e.Property("NewState") }
