package chathub

import (
	"encoding/json"
	"log"

	"pairchat/backend/internal/models"
	"pairchat/backend/internal/storage"
)

// InboundEvent pairs a decoded socket frame with the connection it arrived on.
type InboundEvent struct {
	Client Client
	Event  models.Event
}

// ManagerService is the hub: a single goroutine that owns all presence state
// and processes every connection event to completion before the next one. The
// only suspension point is the persistence call inside the send pipeline, which
// runs on its own goroutine and reports back through persistedCh.
type ManagerService struct {
	Presence *PresenceRegistry
	// Connections holds every open connection by handle, including ones that
	// have not announced a user yet.
	Connections map[string]Client

	RegisterCh   chan Client
	UnregisterCh chan Client
	IncomingCh   chan InboundEvent
	// PubSubCh receives persisted messages from the broadcast channel, possibly
	// published by another instance.
	PubSubCh chan models.ChatMessage

	persistedCh chan persistResult

	Storage  storage.Storage
	Notifier ExternalNotifier
}

// NewManagerService builds a hub around the given storage collaborator.
func NewManagerService(s storage.Storage) *ManagerService {
	return &ManagerService{
		Presence:     NewPresenceRegistry(),
		Connections:  make(map[string]Client),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		IncomingCh:   make(chan InboundEvent),
		PubSubCh:     make(chan models.ChatMessage),
		persistedCh:  make(chan persistResult),
		Storage:      s,
	}
}

// SetNotifier installs the external alert sink. Optional; without it browser
// notifications are socket-only.
func (m *ManagerService) SetNotifier(n ExternalNotifier) {
	m.Notifier = n
}

// StartPubSubListener feeds cross-instance broadcasts into PubSubCh. Called
// from main before Run; tests push into PubSubCh directly.
func (m *ManagerService) StartPubSubListener(s *storage.Service) {
	go func() {
		pubsub := s.SubscribeBroadcast()
		defer pubsub.Close()

		for raw := range pubsub.Channel() {
			var msg models.ChatMessage
			if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
				log.Printf("Error unmarshalling broadcast payload: %v", err)
				continue
			}
			m.PubSubCh <- msg
		}
	}()
}

// Run is the hub event loop.
func (m *ManagerService) Run() {
	for {
		select {
		case client := <-m.RegisterCh:
			m.Connections[client.GetConnID()] = client

		case client := <-m.UnregisterCh:
			m.handleDisconnect(client)

		case inbound := <-m.IncomingCh:
			m.dispatch(inbound)

		case result := <-m.persistedCh:
			m.completeSend(result)

		case msg := <-m.PubSubCh:
			m.deliverBroadcast(msg)
		}
	}
}

func (m *ManagerService) dispatch(inbound InboundEvent) {
	client, ev := inbound.Client, inbound.Event

	switch ev.Event {
	case models.EventUserOnline:
		var userID string
		if err := json.Unmarshal(ev.Data, &userID); err != nil || userID == "" {
			log.Printf("Dropping malformed user_online from conn %s", client.GetConnID())
			return
		}
		m.handleUserOnline(client, userID)

	case models.EventJoinRoom:
		if req, ok := decodeRoomRequest(ev.Data, client); ok {
			m.Presence.SetRoom(req.User1, ResolveRoomID(req.User1, req.User2))
		}

	case models.EventLeaveRoom:
		if req, ok := decodeRoomRequest(ev.Data, client); ok {
			m.Presence.SetRoom(req.User1, "")
		}

	case models.EventSendMessage:
		var msg models.ChatMessage
		if err := json.Unmarshal(ev.Data, &msg); err != nil {
			log.Printf("Dropping undecodable send_message from conn %s: %v", client.GetConnID(), err)
			return
		}
		m.handleSend(client, msg)

	case models.EventTyping:
		var signal models.TypingSignal
		if err := json.Unmarshal(ev.Data, &signal); err != nil {
			log.Printf("Dropping undecodable typing signal from conn %s: %v", client.GetConnID(), err)
			return
		}
		m.handleTyping(client, signal)

	case models.EventMarkAsRead:
		var receipt models.ReadReceipt
		if err := json.Unmarshal(ev.Data, &receipt); err != nil {
			log.Printf("Dropping undecodable read receipt from conn %s: %v", client.GetConnID(), err)
			return
		}
		m.handleMarkAsRead(client, receipt)

	default:
		log.Printf("Unknown event %q from conn %s", ev.Event, client.GetConnID())
	}
}

func decodeRoomRequest(data json.RawMessage, client Client) (models.RoomRequest, bool) {
	var req models.RoomRequest
	if err := json.Unmarshal(data, &req); err != nil || req.User1 == "" || req.User2 == "" {
		log.Printf("Dropping malformed room request from conn %s", client.GetConnID())
		return req, false
	}
	if req.User1 != client.GetUserID() {
		log.Printf("Room request user %s does not match conn identity %s", req.User1, client.GetUserID())
		return req, false
	}
	return req, true
}

func (m *ManagerService) handleUserOnline(client Client, userID string) {
	if userID != client.GetUserID() {
		log.Printf("user_online for %s rejected on conn authenticated as %s", userID, client.GetUserID())
		return
	}

	if previous := m.Presence.SetOnline(userID, client); previous != nil && previous.ConnID != client.GetConnID() {
		// Known limitation: the older connection stays open but loses its
		// registration and room membership.
		log.Printf("User %s re-registered; conn %s superseded by %s", userID, previous.ConnID, client.GetConnID())
	}

	if err := m.Storage.AddOnlineUser(userID); err != nil {
		log.Printf("WARNING: Failed to mirror online state for %s: %v", userID, err)
	}

	m.broadcastOnlineUsers()
	log.Printf("User %s is now online (conn %s)", userID, client.GetConnID())
}

func (m *ManagerService) handleDisconnect(client Client) {
	connID := client.GetConnID()
	if _, ok := m.Connections[connID]; !ok {
		return
	}
	delete(m.Connections, connID)

	if m.Presence.Remove(client.GetUserID(), connID) {
		if err := m.Storage.RemoveOnlineUser(client.GetUserID()); err != nil {
			log.Printf("WARNING: Failed to clear online state for %s: %v", client.GetUserID(), err)
		}
		m.broadcastOnlineUsers()
	}

	client.Close()
	log.Printf("Conn %s disconnected", connID)
}

// broadcastOnlineUsers pushes the full online id set to every open connection.
// Full snapshot over incremental diffing: simpler, and cheap at this scale.
func (m *ManagerService) broadcastOnlineUsers() {
	ev, err := models.NewEvent(models.EventOnlineUsers, m.Presence.SnapshotIDs())
	if err != nil {
		log.Printf("Error encoding online_users: %v", err)
		return
	}
	for _, client := range m.Connections {
		m.trySend(client, ev)
	}
}

// deliverBroadcast fans a persisted message out to the local members of its
// room. A room with no local members is a no-op, not an error.
func (m *ManagerService) deliverBroadcast(msg models.ChatMessage) {
	roomID := ResolveRoomID(msg.From, msg.To)
	members := m.Presence.RoomMembers(roomID)
	if len(members) == 0 {
		return
	}

	ev, err := models.NewEvent(models.EventReceiveMessage, msg)
	if err != nil {
		log.Printf("Error encoding receive_message: %v", err)
		return
	}
	for _, member := range members {
		m.trySend(member, ev)
	}
}

// trySend delivers without blocking the event loop. A slow client with a full
// buffer loses the event rather than stalling everyone else.
func (m *ManagerService) trySend(client Client, ev models.Event) {
	select {
	case client.GetSendChannel() <- ev:
	default:
		log.Printf("WARNING: Dropping %s event for slow conn %s", ev.Event, client.GetConnID())
	}
}

// sendIfConnected delivers only when the connection is still registered, so a
// send completing after a disconnect does not write to a closed channel.
func (m *ManagerService) sendIfConnected(client Client, ev models.Event) {
	if _, ok := m.Connections[client.GetConnID()]; !ok {
		return
	}
	m.trySend(client, ev)
}
