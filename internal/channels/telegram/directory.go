package telegram

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/nextlevelbuilder/supportdesk/internal/bus"
)

// Lookup resolves the operator group by chat ID via getChat.
func (c *Channel) Lookup(ctx context.Context, id string) (string, error) {
	chatID, err := parseChatID(id)
	if err != nil {
		return "", fmt.Errorf("invalid telegram chat id %q: %w", id, err)
	}
	chat, err := c.bot.GetChat(ctx, &telego.GetChatParams{ChatID: tu.ID(chatID)})
	if err != nil {
		return "", fmt.Errorf("get telegram chat %d: %w", chatID, err)
	}
	return strconv.FormatInt(chat.ID, 10), nil
}

// FindByName returns a group the bot has seen with exactly this title.
// The Bot API cannot list dialogs, so only chats observed in updates count.
func (c *Channel) FindByName(_ context.Context, name string) (string, bool) {
	v, ok := c.chatTitles.Load(name)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// SendAlert posts an operator alert to a resolved chat.
func (c *Channel) SendAlert(ctx context.Context, target, text string) error {
	return c.Send(ctx, bus.OutboundMessage{Channel: c.Name(), ChatID: target, Content: text})
}
