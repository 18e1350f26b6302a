package bus

import "context"

// InboundMessage represents a message received from a channel (Telegram, etc.)
type InboundMessage struct {
	Channel    string            `json:"channel"`
	SenderID   string            `json:"sender_id"`            // "123456|username" on Telegram
	ChatID     string            `json:"chat_id"`
	UserID     string            `json:"user_id"`              // session key: sender id without the username suffix
	Content    string            `json:"content"`
	MessageID  int               `json:"message_id,omitempty"` // platform message id, used to reply in-thread
	IsOutbound bool              `json:"is_outbound"`          // sent by this bot; never routed
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// OutboundMessage represents a message to be sent to a channel.
type OutboundMessage struct {
	Channel   string            `json:"channel"`
	ChatID    string            `json:"chat_id"`
	Content   string            `json:"content"`
	ReplyToID int               `json:"reply_to_id,omitempty"` // 0 = plain message
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// MessageHandler handles an inbound message from a specific channel.
type MessageHandler func(ctx context.Context, msg InboundMessage)

// Sender delivers outbound messages to a channel.
type Sender interface {
	Send(ctx context.Context, msg OutboundMessage) error
}
