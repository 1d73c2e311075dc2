package chathub_test

import (
	"encoding/json"
	"testing"

	"pairchat/backend/internal/models"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStorage is a mock implementation of the storage.Storage interface,
// using testify/mock for flexible expectation setting.
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) SaveMessage(roomID string, msg models.ChatMessage) (string, error) {
	args := m.Called(roomID, msg)
	return args.String(0), args.Error(1)
}

func (m *MockStorage) GetConversation(userA, userB string) ([]models.ChatMessage, error) {
	args := m.Called(userA, userB)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ChatMessage), args.Error(1)
}

func (m *MockStorage) PublishMessage(msg models.ChatMessage) error {
	args := m.Called(msg)
	return args.Error(0)
}

func (m *MockStorage) AddOnlineUser(userID string) error {
	args := m.Called(userID)
	return args.Error(0)
}

func (m *MockStorage) RemoveOnlineUser(userID string) error {
	args := m.Called(userID)
	return args.Error(0)
}

func (m *MockStorage) GetOnlineUsers() ([]string, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStorage) SetNotificationTarget(userID string, chatID int64) error {
	args := m.Called(userID, chatID)
	return args.Error(0)
}

func (m *MockStorage) GetNotificationTarget(userID string) (int64, error) {
	args := m.Called(userID)
	return args.Get(0).(int64), args.Error(1)
}

// mockClient is a test double for the chathub.Client interface. Events the hub
// sends to it land in RecvChannel.
type mockClient struct {
	userID      string
	connID      string
	RecvChannel chan models.Event
	closed      bool
}

func newMockClient(userID, connID string) *mockClient {
	return &mockClient{
		userID:      userID,
		connID:      connID,
		RecvChannel: make(chan models.Event, 16), // Buffered to prevent blocking in tests
	}
}

func (c *mockClient) GetUserID() string                   { return c.userID }
func (c *mockClient) GetConnID() string                   { return c.connID }
func (c *mockClient) GetSendChannel() chan<- models.Event { return c.RecvChannel }
func (c *mockClient) Run()                                {}
func (c *mockClient) Close()                              { c.closed = true }

// drain empties the receive channel and groups the events by name.
func (c *mockClient) drain() map[string][]models.Event {
	byName := make(map[string][]models.Event)
	for {
		select {
		case ev := <-c.RecvChannel:
			byName[ev.Event] = append(byName[ev.Event], ev)
		default:
			return byName
		}
	}
}

func mustEvent(t *testing.T, name string, payload interface{}) models.Event {
	t.Helper()
	ev, err := models.NewEvent(name, payload)
	require.NoError(t, err)
	return ev
}

func decodeData(t *testing.T, ev models.Event, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(ev.Data, out))
}
