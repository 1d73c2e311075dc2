package chathub

import (
	"log"

	"pairchat/backend/internal/models"
)

// handleTyping re-emits a typing signal to every room member except the sender.
// Nothing is stored: last write observed is the only guarantee, and clients
// expire stale indicators on their own.
func (m *ManagerService) handleTyping(sender Client, signal models.TypingSignal) {
	if signal.From == "" || signal.To == "" || signal.From != sender.GetUserID() {
		log.Printf("Dropping malformed typing signal from conn %s", sender.GetConnID())
		return
	}

	roomID := ResolveRoomID(signal.From, signal.To)
	relay, err := models.NewEvent(models.EventTyping, models.TypingSignal{
		From:     signal.From,
		IsTyping: signal.IsTyping,
	})
	if err != nil {
		log.Printf("Error encoding typing relay: %v", err)
		return
	}

	for _, member := range m.Presence.RoomMembers(roomID) {
		if member.GetConnID() == sender.GetConnID() {
			continue
		}
		m.trySend(member, relay)
	}
}

// handleMarkAsRead relays a read receipt to every other connection. The reader
// reports the durable id; the original sender transitions its local copy.
func (m *ManagerService) handleMarkAsRead(sender Client, receipt models.ReadReceipt) {
	if receipt.MessageID == "" || receipt.UserID != sender.GetUserID() {
		log.Printf("Dropping malformed read receipt from conn %s", sender.GetConnID())
		return
	}

	relay, err := models.NewEvent(models.EventMessageRead, models.ReadReceipt{
		MessageID: receipt.MessageID,
		ReadBy:    receipt.UserID,
	})
	if err != nil {
		log.Printf("Error encoding message_read relay: %v", err)
		return
	}

	for _, client := range m.Connections {
		if client.GetConnID() == sender.GetConnID() {
			continue
		}
		m.trySend(client, relay)
	}
}
