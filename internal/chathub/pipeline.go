package chathub

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"

	"pairchat/backend/internal/models"
)

// persistResult carries the outcome of one persistence call back onto the hub
// event loop.
type persistResult struct {
	sender    Client
	msg       models.ChatMessage
	roomID    string
	durableID string
	err       error
}

// handleSend runs the send pipeline: validate, resolve the room, persist, and
// let completeSend broadcast/ack/notify once the gateway answers. Between the
// persistence call and its completion other events, including disconnects of
// either party, may be processed.
func (m *ManagerService) handleSend(sender Client, msg models.ChatMessage) {
	msg.Message = strings.TrimSpace(msg.Message)

	if reason := validateSend(sender, msg); reason != "" {
		log.Printf("Rejecting send_message from conn %s: %s", sender.GetConnID(), reason)
		// No trusted sender context on malformed input, so no ack unless the
		// client supplied its own message id.
		if msg.MessageID != "" {
			m.ackFailure(sender, msg.MessageID, reason)
		}
		return
	}

	if msg.MessageID == "" {
		msg.MessageID = fallbackMessageID()
	}
	if msg.Time.IsZero() {
		msg.Time = time.Now().UTC()
	}

	roomID := ResolveRoomID(msg.From, msg.To)
	log.Printf("Processing message %s from %s to %s in room %s", msg.MessageID, msg.From, msg.To, roomID)

	go func() {
		durableID, err := m.Storage.SaveMessage(roomID, msg)
		m.persistedCh <- persistResult{
			sender:    sender,
			msg:       msg,
			roomID:    roomID,
			durableID: durableID,
			err:       err,
		}
	}()
}

// completeSend finishes the pipeline on the hub loop. Persistence success is a
// precondition for any broadcast; on failure the sender gets a failure ack and
// no partial state is left in the room.
func (m *ManagerService) completeSend(result persistResult) {
	if result.err != nil {
		log.Printf("ERROR: Failed to persist message %s: %v", result.msg.MessageID, result.err)
		m.ackFailure(result.sender, result.msg.MessageID, result.err.Error())
		return
	}

	enriched := result.msg
	enriched.DurableID = result.durableID
	enriched.Status = models.StatusDelivered

	// Fan out through the broadcast channel so every instance, this one
	// included, delivers to its local room members. If the channel is down,
	// deliver locally so a single-instance deployment keeps working.
	if err := m.Storage.PublishMessage(enriched); err != nil {
		log.Printf("WARNING: Broadcast publish failed, delivering locally: %v", err)
		m.deliverBroadcast(enriched)
	}

	ack, err := models.NewEvent(models.EventMessageSaved, models.SaveAck{
		MessageID: result.msg.MessageID,
		Success:   true,
		DurableID: result.durableID,
	})
	if err != nil {
		log.Printf("Error encoding message_saved ack: %v", err)
	} else {
		// Direct to the sending connection only, independent of room
		// membership, so the sender resolves its optimistic entry even after
		// leaving the room.
		m.sendIfConnected(result.sender, ack)
	}

	m.routeNotification(result.msg.To, result.roomID, enriched)
}

func (m *ManagerService) ackFailure(sender Client, messageID, reason string) {
	ack, err := models.NewEvent(models.EventMessageSaved, models.SaveAck{
		MessageID: messageID,
		Success:   false,
		Error:     reason,
	})
	if err != nil {
		log.Printf("Error encoding failure ack: %v", err)
		return
	}
	m.sendIfConnected(sender, ack)
}

func validateSend(sender Client, msg models.ChatMessage) string {
	switch {
	case msg.From == "" || msg.To == "":
		return "from and to are required"
	case msg.From == msg.To:
		return "sender and recipient must differ"
	case msg.From != sender.GetUserID():
		return "sender does not match connection identity"
	case msg.Message == "":
		return "empty message"
	case utf8.RuneCountInString(msg.Message) > models.MaxMessageLen:
		return "message too long"
	}
	return ""
}

// fallbackMessageID generates a client message id for senders that did not
// supply one: time-based prefix plus random suffix, unique with overwhelming
// probability within a sender session.
func fallbackMessageID() string {
	return fmt.Sprintf("msg_%d_%06d", time.Now().UnixMilli(), rand.Intn(1000000))
}
