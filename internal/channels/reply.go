package channels

import (
	"context"
	"errors"
	"fmt"

	"github.com/nextlevelbuilder/supportdesk/internal/bus"
)

// ErrNotRunning is returned when replying through a stopped channel.
var ErrNotRunning = errors.New("channel not running")

// Replier answers an inbound message in the chat it came from, threaded as a
// reply to it.
type Replier struct {
	channels map[string]bus.Sender
}

// NewReplier routes replies by channel name.
func NewReplier(chs ...Channel) *Replier {
	r := &Replier{channels: make(map[string]bus.Sender, len(chs))}
	for _, ch := range chs {
		r.channels[ch.Name()] = ch
	}
	return r
}

// Reply sends text back to the chat of msg.
func (r *Replier) Reply(ctx context.Context, msg bus.InboundMessage, text string) error {
	ch, ok := r.channels[msg.Channel]
	if !ok {
		return fmt.Errorf("no channel %q registered for reply", msg.Channel)
	}
	if rc, ok := ch.(interface{ IsRunning() bool }); ok && !rc.IsRunning() {
		return fmt.Errorf("reply via %s: %w", msg.Channel, ErrNotRunning)
	}
	return ch.Send(ctx, bus.OutboundMessage{
		Channel:   msg.Channel,
		ChatID:    msg.ChatID,
		Content:   text,
		ReplyToID: msg.MessageID,
	})
}
