package client_test

import (
	"testing"
	"time"

	"pairchat/backend/client"
	"pairchat/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupKeyPriority(t *testing.T) {
	base := models.ChatMessage{From: "a", To: "b", Message: "hi", Time: time.Unix(1000, 0)}

	withDurable := base
	withDurable.DurableID = "p1"
	withDurable.MessageID = "c1"
	assert.Equal(t, "id:p1", client.DedupKey(withDurable))

	withClientID := base
	withClientID.MessageID = "c1"
	assert.Equal(t, "cid:c1", client.DedupKey(withClientID))

	// Content fallback buckets the timestamp to 2 seconds.
	sameBucket := base
	sameBucket.Time = base.Time.Add(time.Second)
	assert.Equal(t, client.DedupKey(base), client.DedupKey(sameBucket))

	nextBucket := base
	nextBucket.Time = base.Time.Add(2 * client.DedupBucket)
	assert.NotEqual(t, client.DedupKey(base), client.DedupKey(nextBucket))
}

func TestOptimisticSendDedupesServerEcho(t *testing.T) {
	conv := client.NewConversation("a", "b")

	sent := conv.AppendLocal("hello", time.Now().UTC())
	assert.Equal(t, models.StatusSending, sent.Status)
	assert.NotEmpty(t, sent.MessageID)
	assert.Equal(t, 1, conv.Len())

	// The room broadcast echoes the same client id back, enriched.
	echo := sent
	echo.DurableID = "p1"
	echo.Status = models.StatusDelivered
	assert.False(t, conv.MergeBroadcast(echo), "echo must be discarded")
	assert.Equal(t, 1, conv.Len())
}

func TestMergeBroadcastIsIdempotent(t *testing.T) {
	conv := client.NewConversation("a", "b")

	incoming := models.ChatMessage{
		From: "b", To: "a", Message: "hi", Time: time.Now().UTC(),
		MessageID: "c1", DurableID: "p1", Status: models.StatusDelivered,
	}

	assert.True(t, conv.MergeBroadcast(incoming))
	assert.False(t, conv.MergeBroadcast(incoming))
	assert.Equal(t, 1, conv.Len())
}

func TestApplyAckSuccess(t *testing.T) {
	conv := client.NewConversation("a", "b")
	sent := conv.AppendLocal("hello", time.Now().UTC())

	changed := conv.ApplyAck(models.SaveAck{MessageID: sent.MessageID, Success: true, DurableID: "p1"})
	assert.True(t, changed)

	msgs := conv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, models.StatusSent, msgs[0].Status)
	assert.Equal(t, "p1", msgs[0].DurableID)

	// A late echo racing in is now recognized by durable id alone, even with a
	// different client id.
	echo := models.ChatMessage{
		From: "a", To: "b", Message: "hello", Time: time.Now().UTC().Add(5 * time.Second),
		MessageID: "other", DurableID: "p1", Status: models.StatusDelivered,
	}
	assert.False(t, conv.MergeBroadcast(echo))
	assert.Equal(t, 1, conv.Len())
}

func TestApplyAckFailurePreservesText(t *testing.T) {
	conv := client.NewConversation("a", "b")
	sent := conv.AppendLocal("hello", time.Now().UTC())

	changed := conv.ApplyAck(models.SaveAck{MessageID: sent.MessageID, Success: false, Error: "db down"})
	assert.True(t, changed)

	msgs := conv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, models.StatusFailed, msgs[0].Status)
	assert.Equal(t, "hello", msgs[0].Message, "text kept for resend")
}

func TestApplyAckUnknownMessage(t *testing.T) {
	conv := client.NewConversation("a", "b")
	assert.False(t, conv.ApplyAck(models.SaveAck{MessageID: "nope", Success: true}))
}

func TestWatchdogFlipsOnlySending(t *testing.T) {
	conv := client.NewConversation("a", "b")
	sent := conv.AppendLocal("hello", time.Now().UTC())

	assert.True(t, conv.MarkSentIfSending(sent.MessageID))
	assert.Equal(t, models.StatusSent, conv.Messages()[0].Status)

	// Second firing or a post-ack firing changes nothing.
	assert.False(t, conv.MarkSentIfSending(sent.MessageID))
	assert.False(t, conv.MarkSentIfSending("unknown"))
}

func TestApplyRead(t *testing.T) {
	conv := client.NewConversation("a", "b")
	sent := conv.AppendLocal("hello", time.Now().UTC())
	conv.ApplyAck(models.SaveAck{MessageID: sent.MessageID, Success: true, DurableID: "p1"})

	assert.True(t, conv.ApplyRead("p1"))
	assert.Equal(t, models.StatusRead, conv.Messages()[0].Status)
	assert.False(t, conv.ApplyRead("p2"))
}

func TestMergeHistoryNoDuplicatesAndOrdered(t *testing.T) {
	conv := client.NewConversation("a", "b")
	now := time.Now().UTC()

	live := models.ChatMessage{
		From: "b", To: "a", Message: "second", Time: now,
		MessageID: "c2", DurableID: "p2", Status: models.StatusDelivered,
	}
	require.True(t, conv.MergeBroadcast(live))

	history := []models.ChatMessage{
		{From: "a", To: "b", Message: "first", Time: now.Add(-time.Minute), DurableID: "p1", Status: models.StatusDelivered},
		{From: "b", To: "a", Message: "second", Time: now, MessageID: "c2", DurableID: "p2", Status: models.StatusDelivered},
	}

	added := conv.MergeHistory(history)
	assert.Equal(t, 1, added, "already-seen message must not duplicate")

	msgs := conv.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Message, "history merge restores chronological order")
	assert.Equal(t, "second", msgs[1].Message)

	// Re-fetch after reconnect: nothing new.
	assert.Equal(t, 0, conv.MergeHistory(history))
	assert.Equal(t, 2, conv.Len())
}

func TestMergeHistoryContentFallback(t *testing.T) {
	conv := client.NewConversation("a", "b")
	at := time.Unix(2000, 0)

	// Neither copy carries any id: the content tuple is the only identity.
	first := models.ChatMessage{From: "a", To: "b", Message: "hi", Time: at}
	require.True(t, conv.MergeBroadcast(first))

	dup := models.ChatMessage{From: "a", To: "b", Message: "hi", Time: at.Add(time.Second)}
	assert.Equal(t, 0, conv.MergeHistory([]models.ChatMessage{dup}))
}
