package chathub_test

import (
	"testing"

	"pairchat/backend/internal/chathub"

	"github.com/stretchr/testify/assert"
)

func TestPresenceLastConnectWins(t *testing.T) {
	registry := chathub.NewPresenceRegistry()

	oldConn := newMockClient("user_A", "conn_1")
	newConn := newMockClient("user_A", "conn_2")

	previous := registry.SetOnline("user_A", oldConn)
	assert.Nil(t, previous)

	previous = registry.SetOnline("user_A", newConn)
	assert.NotNil(t, previous)
	assert.Equal(t, "conn_1", previous.ConnID)

	entry, ok := registry.Get("user_A")
	assert.True(t, ok)
	assert.Equal(t, "conn_2", entry.ConnID)
}

func TestPresenceRemoveIsKeyedByConnection(t *testing.T) {
	registry := chathub.NewPresenceRegistry()

	oldConn := newMockClient("user_A", "conn_1")
	newConn := newMockClient("user_A", "conn_2")
	registry.SetOnline("user_A", oldConn)
	registry.SetOnline("user_A", newConn)

	// The stale connection disconnects after being superseded: the newer
	// registration must survive.
	assert.False(t, registry.Remove("user_A", "conn_1"))
	_, ok := registry.Get("user_A")
	assert.True(t, ok)

	assert.True(t, registry.Remove("user_A", "conn_2"))
	_, ok = registry.Get("user_A")
	assert.False(t, ok)
}

func TestPresenceCardinality(t *testing.T) {
	registry := chathub.NewPresenceRegistry()

	registry.SetOnline("user_A", newMockClient("user_A", "conn_1"))
	registry.SetOnline("user_B", newMockClient("user_B", "conn_2"))
	registry.SetOnline("user_A", newMockClient("user_A", "conn_3")) // reconnect
	registry.SetOnline("user_C", newMockClient("user_C", "conn_4"))

	registry.Remove("user_A", "conn_1") // stale, no-op
	registry.Remove("user_C", "conn_4")

	ids := registry.SnapshotIDs()
	assert.Len(t, ids, 2)
	assert.ElementsMatch(t, []string{"user_A", "user_B"}, ids)
}

func TestPresenceSnapshotIsACopy(t *testing.T) {
	registry := chathub.NewPresenceRegistry()
	registry.SetOnline("user_A", newMockClient("user_A", "conn_1"))

	ids := registry.SnapshotIDs()
	registry.Remove("user_A", "conn_1")

	assert.Equal(t, []string{"user_A"}, ids, "snapshot must not track later mutations")
}

func TestPresenceRoomMembers(t *testing.T) {
	registry := chathub.NewPresenceRegistry()

	clientA := newMockClient("user_A", "conn_1")
	clientB := newMockClient("user_B", "conn_2")
	clientC := newMockClient("user_C", "conn_3")
	registry.SetOnline("user_A", clientA)
	registry.SetOnline("user_B", clientB)
	registry.SetOnline("user_C", clientC)

	registry.SetRoom("user_A", "user_A_user_B")
	registry.SetRoom("user_B", "user_A_user_B")

	members := registry.RoomMembers("user_A_user_B")
	assert.Len(t, members, 2)

	registry.SetRoom("user_B", "")
	members = registry.RoomMembers("user_A_user_B")
	assert.Len(t, members, 1)

	assert.Empty(t, registry.RoomMembers("no_such_room"))
}

func TestPresenceSetRoomUnknownUserIsNoop(t *testing.T) {
	registry := chathub.NewPresenceRegistry()
	registry.SetRoom("ghost", "some_room")
	_, ok := registry.Get("ghost")
	assert.False(t, ok)
}
