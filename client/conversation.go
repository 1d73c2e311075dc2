// Package client implements the connecting side of the chat protocol: a
// websocket client plus the local message state that reconciles optimistic
// sends against server echoes and fetched history.
package client

import (
	"fmt"
	"sort"
	"time"

	"pairchat/backend/internal/models"

	"github.com/google/uuid"
)

// DedupBucket is the rounding window of the content-based fallback dedup key.
// Two identical texts sent within the same bucket collide; the fallback is
// acknowledged as lossy and only used when no id is available.
const DedupBucket = 2 * time.Second

// Conversation is the ordered local view of a two-party chat plus the set of
// dedup keys already represented in it. It is not safe for concurrent use; the
// owning Client serializes access.
type Conversation struct {
	selfID string
	peerID string

	messages   []models.ChatMessage
	known      map[string]struct{}
	byClientID map[string]int
}

func NewConversation(selfID, peerID string) *Conversation {
	return &Conversation{
		selfID:     selfID,
		peerID:     peerID,
		known:      make(map[string]struct{}),
		byClientID: make(map[string]int),
	}
}

// DedupKey returns the strongest identity of a message: durable id, else
// client-generated id, else the content tuple.
func DedupKey(msg models.ChatMessage) string {
	if msg.DurableID != "" {
		return "id:" + msg.DurableID
	}
	if msg.MessageID != "" {
		return "cid:" + msg.MessageID
	}
	return contentKey(msg)
}

func contentKey(msg models.ChatMessage) string {
	bucket := msg.Time.UnixMilli() / DedupBucket.Milliseconds()
	return fmt.Sprintf("tuple:%s|%s|%s|%d", msg.From, msg.To, msg.Message, bucket)
}

// keysOf lists every identity the message is known under.
func keysOf(msg models.ChatMessage) []string {
	keys := make([]string, 0, 3)
	if msg.DurableID != "" {
		keys = append(keys, "id:"+msg.DurableID)
	}
	if msg.MessageID != "" {
		keys = append(keys, "cid:"+msg.MessageID)
	}
	keys = append(keys, contentKey(msg))
	return keys
}

func (c *Conversation) isKnown(msg models.ChatMessage) bool {
	for _, key := range keysOf(msg) {
		if _, ok := c.known[key]; ok {
			return true
		}
	}
	return false
}

func (c *Conversation) register(msg models.ChatMessage) {
	for _, key := range keysOf(msg) {
		c.known[key] = struct{}{}
	}
}

func (c *Conversation) append(msg models.ChatMessage) {
	c.register(msg)
	c.messages = append(c.messages, msg)
	if msg.MessageID != "" {
		c.byClientID[msg.MessageID] = len(c.messages) - 1
	}
}

// AppendLocal creates the optimistic entry for an outgoing text and returns
// the wire message to emit. The entry starts in status "sending" and is
// registered under its dedup keys immediately, so the server echo is
// recognized as a duplicate.
func (c *Conversation) AppendLocal(text string, now time.Time) models.ChatMessage {
	msg := models.ChatMessage{
		From:      c.selfID,
		To:        c.peerID,
		Message:   text,
		Time:      now,
		MessageID: newMessageID(now),
		Status:    models.StatusSending,
	}
	c.append(msg)
	return msg
}

// MergeBroadcast merges a room broadcast. Reports whether the message was new;
// a known dedup key is discarded without touching the existing entry.
func (c *Conversation) MergeBroadcast(msg models.ChatMessage) bool {
	if c.isKnown(msg) {
		return false
	}
	msg.Status = models.StatusDelivered
	c.append(msg)
	return true
}

// ApplyAck resolves the optimistic entry the ack refers to. On success the
// entry moves to "sent" and gains the durable id, so a racing broadcast echo
// is recognized by it. On failure the entry moves to "failed" with its text
// preserved for resend.
func (c *Conversation) ApplyAck(ack models.SaveAck) bool {
	i, ok := c.byClientID[ack.MessageID]
	if !ok {
		return false
	}

	if !ack.Success {
		c.messages[i].Status = models.StatusFailed
		return true
	}

	c.messages[i].Status = models.StatusSent
	if ack.DurableID != "" {
		c.messages[i].DurableID = ack.DurableID
		c.known["id:"+ack.DurableID] = struct{}{}
	}
	return true
}

// MarkSentIfSending is the watchdog transition: a message still "sending" is
// optimistically flipped to "sent". Best effort against ack loss, not a
// persistence confirmation.
func (c *Conversation) MarkSentIfSending(clientMessageID string) bool {
	i, ok := c.byClientID[clientMessageID]
	if !ok || c.messages[i].Status != models.StatusSending {
		return false
	}
	c.messages[i].Status = models.StatusSent
	return true
}

// ApplyRead transitions the message with the given durable id to "read".
func (c *Conversation) ApplyRead(durableID string) bool {
	for i := range c.messages {
		if c.messages[i].DurableID == durableID {
			c.messages[i].Status = models.StatusRead
			return true
		}
	}
	return false
}

// MergeHistory folds a fetched history into the sequence through the same
// dedup logic, then restores chronological order. Reconnection therefore never
// produces visual duplicates of already-seen messages. Returns the number of
// messages added.
func (c *Conversation) MergeHistory(history []models.ChatMessage) int {
	added := 0
	for _, msg := range history {
		if c.isKnown(msg) {
			continue
		}
		c.append(msg)
		added++
	}
	if added > 0 {
		c.sortByTime()
	}
	return added
}

func (c *Conversation) sortByTime() {
	sort.SliceStable(c.messages, func(i, j int) bool {
		return c.messages[i].Time.Before(c.messages[j].Time)
	})
	for i, msg := range c.messages {
		if msg.MessageID != "" {
			c.byClientID[msg.MessageID] = i
		}
	}
}

// Messages returns a copy of the current sequence.
func (c *Conversation) Messages() []models.ChatMessage {
	out := make([]models.ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Conversation) Len() int { return len(c.messages) }

func newMessageID(now time.Time) string {
	return fmt.Sprintf("msg_%d_%s", now.UnixMilli(), uuid.New().String()[:8])
}
