package chat

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is the per-session dialogue record the host loads before and
// persists after every message.
type Conversation struct {
	SessionID string
	State     State
	Draft     Draft
	PatientID *uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewConversation(sessionID string, now time.Time) *Conversation {
	return &Conversation{
		SessionID: sessionID,
		State:     StateStart,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Reset returns the conversation to start with an empty draft.
func (c *Conversation) Reset() {
	c.State = StateStart
	c.Draft = nil
}

// Clone returns a deep copy; handlers work on the copy so a failed turn
// leaves the original untouched.
func (c *Conversation) Clone() *Conversation {
	out := *c
	if c.Draft != nil {
		out.Draft = c.Draft.clone()
	}
	if c.PatientID != nil {
		id := *c.PatientID
		out.PatientID = &id
	}
	return &out
}

func (c *Conversation) booking() *BookingDraft {
	d, _ := c.Draft.(*BookingDraft)
	return d
}
