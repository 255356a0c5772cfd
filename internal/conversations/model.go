// Package conversations persists the message threads between a tenant and its
// customers: one conversation per (tenant, customer phone), ordered messages
// inside it.
package conversations

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Message directions.
const (
	DirectionReceived = "received"
	DirectionSent     = "sent"
)

var (
	ErrConversationNotFound = errors.New("conversations: conversation not found")
	ErrInvalidDirection     = errors.New("conversations: invalid message direction")
)

// Conversation is the thread with one customer phone number.
type Conversation struct {
	ID            uuid.UUID `json:"id"`
	TenantID      uuid.UUID `json:"tenant_id"`
	CustomerPhone string    `json:"customer_phone"`
	CustomerName  string    `json:"customer_name"`
	LastMessageAt time.Time `json:"last_message_at"`
	UnreadCount   int       `json:"unread_count"`
	Archived      bool      `json:"archived"`
	CreatedAt     time.Time `json:"created_at"`
}

// Message is a single text sent or received. Immutable once created.
type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	TenantID       uuid.UUID `json:"tenant_id"`
	CustomerPhone  string    `json:"customer_phone"`
	Body           string    `json:"body"`
	Direction      string    `json:"direction"`
	ExternalID     string    `json:"external_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// MessageRecord carries the fields for a message insert.
type MessageRecord struct {
	ConversationID uuid.UUID
	TenantID       uuid.UUID
	CustomerPhone  string
	Body           string
	Direction      string
	ExternalID     string
}

func (r *MessageRecord) validate() error {
	if r.Direction != DirectionReceived && r.Direction != DirectionSent {
		return ErrInvalidDirection
	}
	return nil
}
