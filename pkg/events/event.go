package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "RESEARCH_COMPLETED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent is the generic event carrier used when reconstructing events off
// the wire.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string               { return e.Type }
func (e BaseEvent) Payload() map[string]interface{} { return e.Data }
func (e BaseEvent) Timestamp() time.Time            { return e.OccurredAt }

// EventTypeResearchCompleted is published once a session's background
// research run has durable results.
const EventTypeResearchCompleted = "RESEARCH_COMPLETED"

// ResearchCompletedEvent announces that a session's background research
// execution finished and its results are durable.
type ResearchCompletedEvent struct {
	SessionID   string
	Topic       string
	PaperCount  int
	CompletedAt time.Time
}

func (e ResearchCompletedEvent) EventType() string { return EventTypeResearchCompleted }

func (e ResearchCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"session_id":  e.SessionID,
		"topic":       e.Topic,
		"paper_count": e.PaperCount,
	}
}

func (e ResearchCompletedEvent) Timestamp() time.Time { return e.CompletedAt }
