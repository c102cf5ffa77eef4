package webhook

import "time"

// Recognised event types. Webhooks may only subscribe to these, and the
// WebSocket hub broadcasts on the same channel names.
const (
	EventAppLaunched        = "app_launched"
	EventAppStopped         = "app_stopped"
	EventIntentSent         = "intent_sent"
	EventPropertySet        = "property_set"
	EventContainerRestarted = "container_restarted"
	EventScreenshotCaptured = "screenshot_captured"
)

// knownEvents is the set of recognised event type strings.
var knownEvents = map[string]struct{}{
	EventAppLaunched:        {},
	EventAppStopped:         {},
	EventIntentSent:         {},
	EventPropertySet:        {},
	EventContainerRestarted: {},
	EventScreenshotCaptured: {},
}

// KnownEvent reports whether eventType is a recognised event type.
func KnownEvent(eventType string) bool {
	_, ok := knownEvents[eventType]
	return ok
}

// KnownEvents returns the recognised event types, for documentation and
// validation error details.
func KnownEvents() []string {
	return []string{
		EventAppLaunched,
		EventAppStopped,
		EventIntentSent,
		EventPropertySet,
		EventContainerRestarted,
		EventScreenshotCaptured,
	}
}

// Event is a runtime occurrence delivered to subscribed webhooks. Events are
// constructed in memory when a state-changing operation succeeds and are
// never persisted.
type Event struct {
	Type      string         `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"data"`
}
