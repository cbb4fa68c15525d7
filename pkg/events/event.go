package events

import (
	"context"
	"time"
)

// Event defines the contract for all assistant events.
type Event interface {
	// EventType returns the subject suffix for this event (e.g. "question.answered").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]any

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Publisher sends events to a bus.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// BaseEvent is the plain Event implementation used across the service.
type BaseEvent struct {
	Type       string
	Data       map[string]any
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]any {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// New builds a BaseEvent stamped with the current time.
func New(eventType string, data map[string]any) BaseEvent {
	return BaseEvent{Type: eventType, Data: data, OccurredAt: time.Now().UTC()}
}

// Event types emitted by the assistant.
const (
	TypeQuestionAnswered = "question.answered"
	TypeQuestionFailed   = "question.failed"
	TypeDocumentUploaded = "document.uploaded"
	TypeSessionCleared   = "session.cleared"
	TypeSessionRenamed   = "session.renamed"
	TypeDebateFinished   = "debate.finished"
)

// NoopPublisher drops every event. Used when no bus is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
