package handler

import (
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"pairchat/backend/internal/chathub"
	"pairchat/backend/internal/models"

	"github.com/gin-gonic/gin"
)

// GetMessages returns the conversation history between two users, oldest
// first. Reconnecting clients fetch through here and merge the result into
// their local state.
func (h *Handler) GetMessages(c *gin.Context) {
	user1 := c.Param("user1")
	user2 := c.Param("user2")
	if user1 == "" || user2 == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "both user ids are required"})
		return
	}

	messages, err := h.Storage.GetConversation(user1, user2)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}
	c.JSON(http.StatusOK, messages)
}

// SaveMessage persists a message outside the socket pipeline. No broadcast and
// no notification routing happen here; the room learns about it on the next
// history fetch.
func (h *Handler) SaveMessage(c *gin.Context) {
	var msg models.ChatMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg.Message = strings.TrimSpace(msg.Message)
	if msg.From == "" || msg.To == "" || msg.From == msg.To || msg.Message == "" ||
		utf8.RuneCountInString(msg.Message) > models.MaxMessageLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message"})
		return
	}
	if msg.Time.IsZero() {
		msg.Time = time.Now().UTC()
	}

	roomID := chathub.ResolveRoomID(msg.From, msg.To)
	durableID, err := h.Storage.SaveMessage(roomID, msg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	msg.DurableID = durableID
	msg.Status = models.StatusDelivered
	c.JSON(http.StatusCreated, msg)
}

// GetOnline returns the shared online user set, as mirrored in Redis across
// all instances.
func (h *Handler) GetOnline(c *gin.Context) {
	users, err := h.Storage.GetOnlineUsers()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, users)
}

type notifyTargetRequest struct {
	UserID string `json:"user_id" binding:"required"`
	ChatID int64  `json:"chat_id" binding:"required"`
}

// SetNotifyTarget links a user to a Telegram chat id so browser-style alerts
// can also reach them out of band.
func (h *Handler) SetNotifyTarget(c *gin.Context) {
	var req notifyTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.Storage.SetNotificationTarget(req.UserID, req.ChatID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "linked"})
}
