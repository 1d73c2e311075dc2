package client

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"pairchat/backend/internal/models"

	"github.com/gorilla/websocket"
)

// AckTimeout is the watchdog deadline: a message still "sending" this long
// after emission is optimistically flipped to "sent".
const AckTimeout = 2 * time.Second

// Callbacks surface server events to the embedding UI. Any field may be nil.
type Callbacks struct {
	OnMessage      func(models.ChatMessage)
	OnStatusChange func()
	OnNotification func(models.Notification)
	OnBrowserAlert func(models.BrowserNotification)
	OnTyping       func(bool)
	OnOnlineUsers  func([]string)
}

// Client is one user's connection to the chat service, scoped to a single
// conversation. It owns the reconciliation state: all access to the
// Conversation and TypingTracker goes through its mutex, since the read loop
// and the caller's goroutine both touch them.
type Client struct {
	UserID  string
	PeerID  string
	BaseURL string

	conn       *websocket.Conn
	httpClient *http.Client
	callbacks  Callbacks

	mu          sync.Mutex
	conv        *Conversation
	typing      *TypingTracker
	onlineUsers []string
	ackTimers   map[string]*time.Timer
	stopTimer   *time.Timer
	expireTimer *time.Timer

	writeMu sync.Mutex
	done    chan struct{}
}

// Dial connects and authenticates a client for the conversation between userID
// and peerID. baseURL is the service's HTTP base (http:// or https://).
func Dial(baseURL, token, userID, peerID string, callbacks Callbacks) (*Client, error) {
	wsURL := strings.Replace(strings.Replace(baseURL, "https://", "wss://", 1), "http://", "ws://", 1)
	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("%s/ws?token=%s", wsURL, token), nil)
	if err != nil {
		return nil, err
	}

	return &Client{
		UserID:     userID,
		PeerID:     peerID,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		conn:       conn,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		callbacks:  callbacks,
		conv:       NewConversation(userID, peerID),
		typing:     &TypingTracker{},
		ackTimers:  make(map[string]*time.Timer),
		done:       make(chan struct{}),
	}, nil
}

// Start announces presence, joins the room, loads history, and begins reading
// server events.
func (c *Client) Start() error {
	if err := c.emit(models.EventUserOnline, c.UserID); err != nil {
		return err
	}
	if err := c.emit(models.EventJoinRoom, models.RoomRequest{User1: c.UserID, User2: c.PeerID}); err != nil {
		return err
	}
	if err := c.FetchHistory(); err != nil {
		// History is retried implicitly on the next reconnect; live traffic
		// still flows.
		log.Printf("history fetch failed: %v", err)
	}
	go c.readLoop()
	return nil
}

// Send appends an optimistic entry, arms its watchdog, and emits the message.
func (c *Client) Send(text string) (models.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.ChatMessage{}, fmt.Errorf("empty message")
	}

	c.mu.Lock()
	msg := c.conv.AppendLocal(text, time.Now().UTC())
	id := msg.MessageID
	c.ackTimers[id] = time.AfterFunc(AckTimeout, func() { c.expireAck(id) })
	c.mu.Unlock()

	if err := c.emit(models.EventSendMessage, msg); err != nil {
		return msg, err
	}
	return msg, nil
}

func (c *Client) expireAck(messageID string) {
	c.mu.Lock()
	delete(c.ackTimers, messageID)
	changed := c.conv.MarkSentIfSending(messageID)
	c.mu.Unlock()
	if changed {
		c.statusChanged()
	}
}

// Keystroke reports local input. Emits isTyping=true on the first keystroke
// after idle and schedules the debounced isTyping=false.
func (c *Client) Keystroke() {
	now := time.Now()

	c.mu.Lock()
	announce := c.typing.Keystroke(now)
	if c.stopTimer == nil {
		c.stopTimer = time.AfterFunc(TypingIdle, c.maybeStopTyping)
	} else {
		c.stopTimer.Reset(TypingIdle)
	}
	c.mu.Unlock()

	if announce {
		c.emitTyping(true)
	}
}

func (c *Client) maybeStopTyping() {
	c.mu.Lock()
	stop := c.typing.ShouldStop(time.Now())
	c.mu.Unlock()
	if stop {
		c.emitTyping(false)
	}
}

func (c *Client) emitTyping(isTyping bool) {
	err := c.emit(models.EventTyping, models.TypingSignal{
		From:     c.UserID,
		To:       c.PeerID,
		IsTyping: isTyping,
	})
	if err != nil {
		log.Printf("typing emit failed: %v", err)
	}
}

// MarkRead reports that a received message has been read.
func (c *Client) MarkRead(durableID string) error {
	return c.emit(models.EventMarkAsRead, models.ReadReceipt{
		MessageID: durableID,
		UserID:    c.UserID,
	})
}

// FetchHistory loads the full conversation history over HTTP and merges it
// into local state.
func (c *Client) FetchHistory() error {
	url := fmt.Sprintf("%s/api/messages/%s/%s", c.BaseURL, c.UserID, c.PeerID)
	resp, err := c.httpClient.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("history fetch: unexpected status %d", resp.StatusCode)
	}

	var history []models.ChatMessage
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return err
	}

	c.mu.Lock()
	added := c.conv.MergeHistory(history)
	c.mu.Unlock()
	if added > 0 {
		c.statusChanged()
	}
	return nil
}

// Messages returns a copy of the reconciled sequence.
func (c *Client) Messages() []models.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conv.Messages()
}

// PeerTyping reports whether the peer's typing indicator should be shown.
func (c *Client) PeerTyping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.typing.PeerTyping(time.Now())
}

// OnlineUsers returns the last presence snapshot received.
func (c *Client) OnlineUsers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.onlineUsers))
	copy(out, c.onlineUsers)
	return out
}

// LeaveRoom clears the current-room association without disconnecting, so
// subsequent messages from the peer raise browser-style alerts.
func (c *Client) LeaveRoom() error {
	return c.emit(models.EventLeaveRoom, models.RoomRequest{User1: c.UserID, User2: c.PeerID})
}

// Close tears the connection down.
func (c *Client) Close() error {
	close(c.done)
	return c.conn.Close()
}

func (c *Client) emit(event string, payload interface{}) error {
	ev, err := models.NewEvent(event, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				log.Printf("read loop closed: %v", err)
			}
			return
		}

		var ev models.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Printf("undecodable frame: %v", err)
			continue
		}
		c.handleEvent(ev)
	}
}

func (c *Client) handleEvent(ev models.Event) {
	switch ev.Event {
	case models.EventReceiveMessage:
		var msg models.ChatMessage
		if json.Unmarshal(ev.Data, &msg) != nil {
			return
		}
		c.mu.Lock()
		appended := c.conv.MergeBroadcast(msg)
		c.mu.Unlock()
		if appended && c.callbacks.OnMessage != nil {
			c.callbacks.OnMessage(msg)
		}

	case models.EventMessageSaved:
		var ack models.SaveAck
		if json.Unmarshal(ev.Data, &ack) != nil {
			return
		}
		c.mu.Lock()
		if timer, ok := c.ackTimers[ack.MessageID]; ok {
			timer.Stop()
			delete(c.ackTimers, ack.MessageID)
		}
		changed := c.conv.ApplyAck(ack)
		c.mu.Unlock()
		if changed {
			c.statusChanged()
		}

	case models.EventTyping:
		var signal models.TypingSignal
		if json.Unmarshal(ev.Data, &signal) != nil || signal.From != c.PeerID {
			return
		}
		now := time.Now()
		c.mu.Lock()
		c.typing.ObservePeer(signal.IsTyping, now)
		if signal.IsTyping {
			if c.expireTimer == nil {
				c.expireTimer = time.AfterFunc(IndicatorExpiry, c.expireIndicator)
			} else {
				c.expireTimer.Reset(IndicatorExpiry)
			}
		} else if c.expireTimer != nil {
			c.expireTimer.Stop()
		}
		c.mu.Unlock()
		if c.callbacks.OnTyping != nil {
			c.callbacks.OnTyping(signal.IsTyping)
		}

	case models.EventOnlineUsers:
		var users []string
		if json.Unmarshal(ev.Data, &users) != nil {
			return
		}
		c.mu.Lock()
		c.onlineUsers = users
		c.mu.Unlock()
		if c.callbacks.OnOnlineUsers != nil {
			c.callbacks.OnOnlineUsers(users)
		}

	case models.EventNewNotification:
		var n models.Notification
		if json.Unmarshal(ev.Data, &n) != nil {
			return
		}
		if c.callbacks.OnNotification != nil {
			c.callbacks.OnNotification(n)
		}

	case models.EventBrowserNotification:
		var n models.BrowserNotification
		if json.Unmarshal(ev.Data, &n) != nil {
			return
		}
		if c.callbacks.OnBrowserAlert != nil {
			c.callbacks.OnBrowserAlert(n)
		}

	case models.EventMessageRead:
		var receipt models.ReadReceipt
		if json.Unmarshal(ev.Data, &receipt) != nil {
			return
		}
		c.mu.Lock()
		changed := c.conv.ApplyRead(receipt.MessageID)
		c.mu.Unlock()
		if changed {
			c.statusChanged()
		}
	}
}

func (c *Client) expireIndicator() {
	c.mu.Lock()
	stillShown := c.typing.PeerTyping(time.Now())
	c.mu.Unlock()
	if !stillShown && c.callbacks.OnTyping != nil {
		c.callbacks.OnTyping(false)
	}
}

func (c *Client) statusChanged() {
	if c.callbacks.OnStatusChange != nil {
		c.callbacks.OnStatusChange()
	}
}
