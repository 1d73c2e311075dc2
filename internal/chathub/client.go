package chathub

import "pairchat/backend/internal/models"

// Client is the interface for one active connection (e.g., WebSocket). It
// abstracts the underlying transport, allowing the hub to manage different
// client types uniformly.
type Client interface {
	// GetUserID returns the user identifier the connection was authenticated as.
	GetUserID() string
	// GetConnID returns the unique handle of this particular connection. The
	// presence registry evicts entries by handle equality, never by user id
	// alone, so a stale disconnect cannot remove a newer registration.
	GetConnID() string

	// GetSendChannel returns the channel the hub writes outbound events to.
	GetSendChannel() chan<- models.Event

	// Run starts the client's read and write pumps.
	Run()
	// Close shuts down the client's outbound channel, stopping its write pump.
	// Only the hub goroutine may call it.
	Close()
}
