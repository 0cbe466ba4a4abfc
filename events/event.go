// Package events carries application-level signals about the session, such
// as "the user has to log in again", to whoever owns the UI.
package events

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeAuthRequired     Type = "auth.required"
	TypeSessionStarted   Type = "session.started"
	TypeSessionRefreshed Type = "session.refreshed"
	TypeSessionCleared   Type = "session.cleared"
	TypeProfileUpdated   Type = "profile.updated"
)

type Event struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	Payload   any    `json:"payload,omitempty"`
	Timestamp string `json:"timestamp"`
}

// New builds an event stamped with a fresh id and the current UTC time.
func New(t Type, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func()) // Returns channel and unsubscribe function
}
