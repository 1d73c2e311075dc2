package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Message status values, in lifecycle order. "sending" and "read" only ever
// appear on the client side; the server broadcasts messages as "delivered".
const (
	StatusSending   = "sending"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
	StatusFailed    = "failed"
)

// MaxMessageLen bounds the trimmed message text, in runes.
const MaxMessageLen = 1000

// ChatMessage is the wire form of a message as it travels over the socket.
// MessageID is generated by the sending client and is the dedup handle until
// DurableID is assigned by persistence.
type ChatMessage struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Message   string    `json:"message"`
	Time      time.Time `json:"time"`
	MessageID string    `json:"messageId,omitempty"`
	DurableID string    `json:"_id,omitempty"`
	Status    string    `json:"status,omitempty"`
}

// MessageRecord is the persisted form of a chat message in PostgreSQL.
// The embedded gorm.Model provides ID, which becomes the durable id on the wire.
type MessageRecord struct {
	gorm.Model

	// RoomID is the canonical identifier of the conversation the message belongs to.
	RoomID string `gorm:"type:text;not null;index:idx_room_sent"`
	// SenderID and ReceiverID are the opaque user identifiers of the two parties.
	SenderID   string `gorm:"type:text;not null"`
	ReceiverID string `gorm:"type:text;not null"`
	// Content is the message text, trimmed and length-bounded before it gets here.
	Content string `gorm:"type:text;not null"`
	// ClientMessageID is the client-generated id carried for traceability; the
	// gateway does not deduplicate on it.
	ClientMessageID string `gorm:"type:text;index"`
	// SentAt is the client-reported send time.
	SentAt time.Time `gorm:"not null;index:idx_room_sent"`
}

// Conversation records the participants behind a room id. Created lazily on the
// first persisted message of a pair.
type Conversation struct {
	// RoomID is the canonical identifier derived from the participant pair.
	RoomID string `gorm:"primaryKey"`
	// Participants holds both user ids, sorted.
	Participants pq.StringArray `gorm:"type:text[]"`
	// StartedAt is the timestamp of the first message in the conversation.
	StartedAt time.Time
}
