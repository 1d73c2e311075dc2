package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sort"
	"strconv"
	"time"

	"pairchat/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// BroadcastChannel is the Redis Pub/Sub channel every server instance publishes
// persisted messages to and subscribes on.
const BroadcastChannel = "chat:broadcast"

const (
	onlineSetKey     = "online_users"
	notifyTargetsKey = "notify:telegram"
)

// Storage is the persistence and fan-out collaborator consumed by the hub and
// the HTTP handlers.
type Storage interface {
	SaveMessage(roomID string, msg models.ChatMessage) (string, error)
	GetConversation(userA, userB string) ([]models.ChatMessage, error)

	PublishMessage(msg models.ChatMessage) error

	AddOnlineUser(userID string) error
	RemoveOnlineUser(userID string) error
	GetOnlineUsers() ([]string, error)

	SetNotificationTarget(userID string, chatID int64) error
	GetNotificationTarget(userID string) (int64, error)
}

// Service implements Storage on top of PostgreSQL (via GORM) and Redis.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
	}
}

// SaveMessage persists one message and returns its durable id. The conversation
// record for the pair is created on first contact.
func (s *Service) SaveMessage(roomID string, msg models.ChatMessage) (string, error) {
	record := models.MessageRecord{
		RoomID:          roomID,
		SenderID:        msg.From,
		ReceiverID:      msg.To,
		Content:         msg.Message,
		ClientMessageID: msg.MessageID,
		SentAt:          msg.Time,
	}

	if err := s.DB.Create(&record).Error; err != nil {
		log.Printf("ERROR: Failed to save message for room %s: %v", roomID, err)
		return "", err
	}

	if err := s.ensureConversation(roomID, msg.From, msg.To, msg.Time); err != nil {
		// The message itself is durable; a missing conversation row is repaired
		// on the next save.
		log.Printf("WARNING: Failed to upsert conversation %s: %v", roomID, err)
	}

	return strconv.FormatUint(uint64(record.ID), 10), nil
}

func (s *Service) ensureConversation(roomID, userA, userB string, startedAt time.Time) error {
	participants := []string{userA, userB}
	sort.Strings(participants)

	conv := models.Conversation{
		RoomID:       roomID,
		Participants: participants,
		StartedAt:    startedAt,
	}
	return s.DB.Where("room_id = ?", roomID).FirstOrCreate(&conv).Error
}

// GetConversation returns the full history between two users, oldest first.
// Both directions of the pair are covered by the canonical room id.
func (s *Service) GetConversation(userA, userB string) ([]models.ChatMessage, error) {
	var records []models.MessageRecord
	err := s.DB.
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userA, userB, userB, userA).
		Order("sent_at asc").
		Find(&records).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		log.Printf("ERROR: Failed to get conversation %s/%s: %v", userA, userB, err)
		return nil, err
	}

	messages := make([]models.ChatMessage, 0, len(records))
	for _, r := range records {
		messages = append(messages, models.ChatMessage{
			From:      r.SenderID,
			To:        r.ReceiverID,
			Message:   r.Content,
			Time:      r.SentAt,
			MessageID: r.ClientMessageID,
			DurableID: strconv.FormatUint(uint64(r.ID), 10),
			Status:    models.StatusDelivered,
		})
	}
	return messages, nil
}

// PublishMessage publishes a persisted message to the broadcast channel so every
// instance can fan it out to its local room members.
func (s *Service) PublishMessage(msg models.ChatMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.Redis.Publish(s.Ctx, BroadcastChannel, payload).Err()
}

// SubscribeBroadcast subscribes to the cross-instance broadcast channel.
func (s *Service) SubscribeBroadcast() *redis.PubSub {
	return s.Redis.Subscribe(s.Ctx, BroadcastChannel)
}

// AddOnlineUser mirrors a presence registration into the shared online set.
func (s *Service) AddOnlineUser(userID string) error {
	return s.Redis.SAdd(s.Ctx, onlineSetKey, userID).Err()
}

// RemoveOnlineUser removes a user from the shared online set.
func (s *Service) RemoveOnlineUser(userID string) error {
	return s.Redis.SRem(s.Ctx, onlineSetKey, userID).Err()
}

// GetOnlineUsers returns the shared online set across all instances.
func (s *Service) GetOnlineUsers() ([]string, error) {
	return s.Redis.SMembers(s.Ctx, onlineSetKey).Result()
}

// SetNotificationTarget links a user to a Telegram chat id for external alerts.
func (s *Service) SetNotificationTarget(userID string, chatID int64) error {
	return s.Redis.HSet(s.Ctx, notifyTargetsKey, userID, chatID).Err()
}

// GetNotificationTarget returns the linked Telegram chat id, or 0 when the user
// has no linked chat.
func (s *Service) GetNotificationTarget(userID string) (int64, error) {
	val, err := s.Redis.HGet(s.Ctx, notifyTargetsKey, userID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}
