package models

import (
	"encoding/json"
	"time"
)

// Event names for the bidirectional socket protocol.
const (
	// Client -> server.
	EventUserOnline  = "user_online"
	EventJoinRoom    = "join_room"
	EventLeaveRoom   = "leave_room"
	EventSendMessage = "send_message"
	EventTyping      = "typing"
	EventMarkAsRead  = "mark_as_read"

	// Server -> client.
	EventOnlineUsers         = "online_users"
	EventReceiveMessage      = "receive_message"
	EventMessageSaved        = "message_saved"
	EventNewNotification     = "new_notification"
	EventBrowserNotification = "browser_notification"
	EventMessageRead         = "message_read"
)

// Event is the JSON envelope every socket frame is wrapped in.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewEvent marshals payload into an envelope.
func NewEvent(name string, payload interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Event: name, Data: data}, nil
}

// RoomRequest identifies the unordered user pair of a join_room / leave_room event.
// User1 is the requesting user.
type RoomRequest struct {
	User1 string `json:"user1"`
	User2 string `json:"user2"`
}

// TypingSignal is the ephemeral typing indicator. To is only set client -> server;
// the relayed form carries just From and IsTyping.
type TypingSignal struct {
	From     string `json:"from"`
	To       string `json:"to,omitempty"`
	IsTyping bool   `json:"isTyping"`
}

// SaveAck is the direct, sender-only acknowledgement of a send_message event.
type SaveAck struct {
	MessageID string `json:"messageId"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	DurableID string `json:"_id,omitempty"`
}

// Notification is the in-app alert delivered to an online recipient.
type Notification struct {
	From       string    `json:"from"`
	Message    string    `json:"message"`
	Time       time.Time `json:"time"`
	InSameRoom bool      `json:"inSameRoom"`
}

// BrowserNotification is the out-of-band alert delivered when the recipient is
// online but not viewing the conversation.
type BrowserNotification struct {
	From    string    `json:"from"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// ReadReceipt reports that a persisted message has been read. UserID is set by
// the reporting client; the relayed form carries ReadBy instead.
type ReadReceipt struct {
	MessageID string `json:"messageId"`
	UserID    string `json:"userId,omitempty"`
	ReadBy    string `json:"readBy,omitempty"`
}
