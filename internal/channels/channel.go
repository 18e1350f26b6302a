// Package channels provides the transport abstraction for messaging platforms.
// A channel turns platform updates into bus.InboundMessage values for the
// dispatcher and delivers bus.OutboundMessage replies back to users.
package channels

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/nextlevelbuilder/supportdesk/internal/bus"
)

// Channel defines the interface that all channel implementations must satisfy.
type Channel interface {
	// Name returns the channel identifier (e.g., "telegram").
	Name() string

	// Start begins listening for messages. Should be non-blocking after setup.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the channel.
	Stop(ctx context.Context) error

	// Send delivers an outbound message to the channel.
	Send(ctx context.Context, msg bus.OutboundMessage) error
}

// BaseChannel provides shared functionality for all channel implementations.
// Channel implementations should embed this struct.
type BaseChannel struct {
	name      string
	handler   bus.MessageHandler
	running   atomic.Bool
	allowList []string
}

// NewBaseChannel creates a new BaseChannel with the given parameters.
func NewBaseChannel(name string, handler bus.MessageHandler, allowList []string) *BaseChannel {
	return &BaseChannel{
		name:      name,
		handler:   handler,
		allowList: allowList,
	}
}

// Name returns the channel name.
func (c *BaseChannel) Name() string { return c.name }

// IsRunning returns whether the channel is running.
func (c *BaseChannel) IsRunning() bool { return c.running.Load() }

// SetRunning updates the running state.
func (c *BaseChannel) SetRunning(running bool) { c.running.Store(running) }

// IsAllowed checks if a sender is permitted by the allowlist.
// Supports compound senderID format: "123456|username".
// Empty allowlist means all senders are allowed.
func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.allowList) == 0 {
		return true
	}

	idPart, userPart := SplitSenderID(senderID)
	for _, allowed := range c.allowList {
		trimmed := strings.TrimPrefix(strings.TrimSpace(allowed), "@")
		if trimmed == "" {
			continue
		}
		if senderID == trimmed || idPart == trimmed || (userPart != "" && userPart == trimmed) {
			return true
		}
	}
	return false
}

// HandleMessage forwards an inbound message to the handler, dropping senders
// rejected by the allowlist. UserID defaults to the numeric part of SenderID.
func (c *BaseChannel) HandleMessage(ctx context.Context, msg bus.InboundMessage) {
	if !c.IsAllowed(msg.SenderID) {
		return
	}
	msg.Channel = c.name
	if msg.UserID == "" {
		msg.UserID, _ = SplitSenderID(msg.SenderID)
	}
	if c.handler != nil {
		c.handler(ctx, msg)
	}
}

// SplitSenderID splits "123456|username" into its id and username parts.
func SplitSenderID(senderID string) (id, username string) {
	if idx := strings.IndexByte(senderID, '|'); idx > 0 {
		return senderID[:idx], senderID[idx+1:]
	}
	return senderID, ""
}

// Truncate shortens a string to maxLen runes, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
