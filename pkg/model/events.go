package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionEventType names a session lifecycle transition.
type SessionEventType string

const (
	EventSignedIn         SessionEventType = "session.signed_in"
	EventSignedOut        SessionEventType = "session.signed_out"
	EventRefreshSucceeded SessionEventType = "session.refresh_succeeded"
	EventRefreshFailed    SessionEventType = "session.refresh_failed"
	EventAccessDenied     SessionEventType = "session.access_denied"
)

// SessionEvent is the envelope published for every session transition.
type SessionEvent struct {
	ID        uuid.UUID        `json:"id"`
	Type      SessionEventType `json:"type"`
	Workspace string           `json:"workspace,omitempty"`
	UserID    string           `json:"user_id,omitempty"`
	Role      Role             `json:"role,omitempty"`
	Path      string           `json:"path,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewSessionEvent stamps a new event with an id and the current UTC time.
func NewSessionEvent(typ SessionEventType, workspace string) SessionEvent {
	return SessionEvent{
		ID:        uuid.New(),
		Type:      typ,
		Workspace: workspace,
		Timestamp: time.Now().UTC(),
	}
}
