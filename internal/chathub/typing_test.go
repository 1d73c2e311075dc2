package chathub_test

import (
	"testing"
	"time"

	"pairchat/backend/internal/chathub"
	"pairchat/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypingRelayExcludesSender(t *testing.T) {
	storageMock := new(MockStorage)
	hub, clientA, clientB, _ := setupRoom(storageMock)

	hub.IncomingCh <- chathub.InboundEvent{Client: clientA, Event: mustEvent(t, models.EventTyping, models.TypingSignal{
		From: "user_A", To: "user_B", IsTyping: true,
	})}
	time.Sleep(100 * time.Millisecond)

	assert.Empty(t, clientA.drain()[models.EventTyping], "sender must not receive its own signal")

	relayed := clientB.drain()[models.EventTyping]
	require.Len(t, relayed, 1)

	var signal models.TypingSignal
	decodeData(t, relayed[0], &signal)
	assert.Equal(t, "user_A", signal.From)
	assert.True(t, signal.IsTyping)
	assert.Empty(t, signal.To, "relay carries only from and isTyping")
}

func TestTypingSignalForWrongIdentityDropped(t *testing.T) {
	storageMock := new(MockStorage)
	hub, clientA, clientB, _ := setupRoom(storageMock)

	hub.IncomingCh <- chathub.InboundEvent{Client: clientA, Event: mustEvent(t, models.EventTyping, models.TypingSignal{
		From: "user_B", To: "user_A", IsTyping: true,
	})}
	time.Sleep(100 * time.Millisecond)

	assert.Empty(t, clientB.drain()[models.EventTyping])
}

func TestMarkAsReadRelay(t *testing.T) {
	storageMock := new(MockStorage)
	hub, clientA, clientB, _ := setupRoom(storageMock)

	hub.IncomingCh <- chathub.InboundEvent{Client: clientB, Event: mustEvent(t, models.EventMarkAsRead, models.ReadReceipt{
		MessageID: "p1", UserID: "user_B",
	})}
	time.Sleep(100 * time.Millisecond)

	assert.Empty(t, clientB.drain()[models.EventMessageRead], "reader must not receive its own receipt")

	relayed := clientA.drain()[models.EventMessageRead]
	require.Len(t, relayed, 1)

	var receipt models.ReadReceipt
	decodeData(t, relayed[0], &receipt)
	assert.Equal(t, "p1", receipt.MessageID)
	assert.Equal(t, "user_B", receipt.ReadBy)
}
