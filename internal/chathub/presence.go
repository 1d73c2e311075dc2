package chathub

// PresenceEntry is the live record of one online user. Entries are owned
// exclusively by the hub goroutine; no other component mutates them.
type PresenceEntry struct {
	UserID string
	Client Client
	ConnID string
	// RoomID is the room the user is currently viewing, or "" when outside any
	// conversation.
	RoomID string
}

// PresenceRegistry maps user ids to their connection and current room. It is
// not safe for concurrent use: all calls happen on the hub's event loop.
type PresenceRegistry struct {
	entries map[string]*PresenceEntry
}

func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{entries: make(map[string]*PresenceEntry)}
}

// SetOnline registers a user's connection. A prior entry for the same user is
// overwritten: last connect wins, since the system assumes one active session
// per user. The replaced entry, if any, is returned so the caller can decide
// what to do with the orphaned connection.
func (r *PresenceRegistry) SetOnline(userID string, client Client) *PresenceEntry {
	previous := r.entries[userID]
	r.entries[userID] = &PresenceEntry{
		UserID: userID,
		Client: client,
		ConnID: client.GetConnID(),
	}
	return previous
}

// SetRoom updates the user's current room. A miss is ignored: join/leave from a
// connection that never announced itself online carries no presence to update.
func (r *PresenceRegistry) SetRoom(userID, roomID string) {
	if entry, ok := r.entries[userID]; ok {
		entry.RoomID = roomID
	}
}

// Get returns the presence entry for a user, if online.
func (r *PresenceRegistry) Get(userID string) (*PresenceEntry, bool) {
	entry, ok := r.entries[userID]
	return entry, ok
}

// Remove deletes the entry for userID only if it still belongs to connID.
// Reports whether an entry was removed. A disconnect of an old connection never
// evicts the newer registration that already replaced it.
func (r *PresenceRegistry) Remove(userID, connID string) bool {
	entry, ok := r.entries[userID]
	if !ok || entry.ConnID != connID {
		return false
	}
	delete(r.entries, userID)
	return true
}

// SnapshotIDs returns a point-in-time copy of the online user ids. A copy, not
// a live view, so disconnects mid-broadcast cannot invalidate iteration.
func (r *PresenceRegistry) SnapshotIDs() []string {
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}

// RoomMembers returns the clients of every user currently joined to roomID.
func (r *PresenceRegistry) RoomMembers(roomID string) []Client {
	var members []Client
	for _, entry := range r.entries {
		if entry.RoomID == roomID {
			members = append(members, entry.Client)
		}
	}
	return members
}
