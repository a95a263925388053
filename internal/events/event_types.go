package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSessionEstablished EventType = "session_established"
	EventSessionRefreshed   EventType = "session_refreshed"
	EventSessionExpired     EventType = "session_expired"
	EventSessionEnded       EventType = "session_ended"
)

// Event represents a session lifecycle change.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Subject   string    `json:"subject,omitempty"`
	Method    string    `json:"method,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent stamps an event with a fresh id.
func NewEvent(eventType EventType, subject, method string, at time.Time) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Subject:   subject,
		Method:    method,
		Timestamp: at.UTC(),
	}
}
