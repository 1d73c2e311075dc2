package chathub

import (
	"log"

	"pairchat/backend/internal/models"
)

// ExternalNotifier delivers out-of-band alerts through a channel other than the
// user's socket (e.g., a linked Telegram chat). Implementations decide whether
// the user has such a channel; delivery is fire-and-forget with no retry.
type ExternalNotifier interface {
	Notify(userID string, alert models.BrowserNotification) error
}

// routeNotification evaluates notification routing for one persisted message.
// Offline recipients get nothing: delivery is deferred to the next history
// fetch. Online recipients always get an in-app notification; recipients not
// currently viewing the conversation additionally get a browser alert.
func (m *ManagerService) routeNotification(recipientID, roomID string, msg models.ChatMessage) {
	entry, ok := m.Presence.Get(recipientID)
	if !ok {
		log.Printf("Recipient %s is offline - no notification sent", recipientID)
		return
	}

	inSameRoom := entry.RoomID == roomID

	inApp, err := models.NewEvent(models.EventNewNotification, models.Notification{
		From:       msg.From,
		Message:    msg.Message,
		Time:       msg.Time,
		InSameRoom: inSameRoom,
	})
	if err != nil {
		log.Printf("Error encoding new_notification: %v", err)
		return
	}
	m.trySend(entry.Client, inApp)

	if inSameRoom {
		// Actively viewing the conversation: the room broadcast is enough, no
		// out-of-band interruption.
		return
	}

	alert := models.BrowserNotification{
		From:    msg.From,
		Message: msg.Message,
		Time:    msg.Time,
	}
	browser, err := models.NewEvent(models.EventBrowserNotification, alert)
	if err != nil {
		log.Printf("Error encoding browser_notification: %v", err)
		return
	}
	m.trySend(entry.Client, browser)

	if m.Notifier != nil {
		go func() {
			if err := m.Notifier.Notify(recipientID, alert); err != nil {
				log.Printf("WARNING: External alert for %s failed: %v", recipientID, err)
			}
		}()
	}
}
