package telegram

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/mymmrac/telego"

	"github.com/nextlevelbuilder/supportdesk/internal/bus"
	"github.com/nextlevelbuilder/supportdesk/internal/channels"
)

// handleMessage processes an incoming Telegram message.
// Only private chats reach the support pipeline; group traffic (including the
// operator group) is used solely to learn chat titles for alert routing.
func (c *Channel) handleMessage(ctx context.Context, message *telego.Message) {
	if message == nil {
		return
	}

	if message.Chat.Type != telego.ChatTypePrivate {
		c.rememberChat(message.Chat)
		return
	}

	user := message.From
	if user == nil {
		return
	}

	userID := strconv.FormatInt(user.ID, 10)
	senderID := userID
	if user.Username != "" {
		senderID = userID + "|" + user.Username
	}

	content := message.Text
	if content == "" {
		content = message.Caption
	}

	slog.Debug("telegram message received",
		"chat_id", message.Chat.ID,
		"user_id", user.ID,
		"username", user.Username,
		"text_preview", channels.Truncate(content, 60),
	)

	c.HandleMessage(ctx, bus.InboundMessage{
		SenderID:   senderID,
		ChatID:     strconv.FormatInt(message.Chat.ID, 10),
		UserID:     userID,
		Content:    content,
		MessageID:  message.MessageID,
		IsOutbound: c.selfID != 0 && user.ID == c.selfID,
		Metadata: map[string]string{
			"username":   user.Username,
			"first_name": user.FirstName,
		},
	})
}

// rememberChat records a group title so the operator group can be found by
// name when direct lookup by ID fails.
func (c *Channel) rememberChat(chat telego.Chat) {
	if chat.Title == "" {
		return
	}
	c.chatTitles.Store(chat.Title, strconv.FormatInt(chat.ID, 10))
}
