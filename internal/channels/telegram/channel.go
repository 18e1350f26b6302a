package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/supportdesk/internal/bus"
	"github.com/nextlevelbuilder/supportdesk/internal/channels"
	"github.com/nextlevelbuilder/supportdesk/internal/config"
)

// Bot API allows about 30 messages per second per bot.
const defaultSendRPS = 25

// Channel connects to Telegram via the Bot API using long polling.
type Channel struct {
	*channels.BaseChannel
	bot        *telego.Bot
	config     config.TelegramConfig
	limiter    *rate.Limiter
	selfID     int64
	chatTitles sync.Map           // title string → chat ID string (groups the bot has seen)
	pollCancel context.CancelFunc // cancels the long polling context
	pollDone   chan struct{}      // closed when polling goroutine exits
}

// New creates a new Telegram channel from config.
// Inbound private messages are passed to handler.
func New(cfg config.TelegramConfig, handler bus.MessageHandler, opts ...telego.BotOption) (*Channel, error) {
	if cfg.Proxy != "" {
		proxyURL, parseErr := url.Parse(cfg.Proxy)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", cfg.Proxy, parseErr)
		}
		opts = append(opts, telego.WithHTTPClient(&http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyURL(proxyURL),
			},
		}))
	}

	bot, err := telego.NewBot(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	rps := cfg.SendRPS
	if rps <= 0 {
		rps = defaultSendRPS
	}

	return &Channel{
		BaseChannel: channels.NewBaseChannel("telegram", handler, cfg.AllowFrom),
		bot:         bot,
		config:      cfg,
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
	}, nil
}

// Start begins long polling for Telegram updates.
func (c *Channel) Start(ctx context.Context) error {
	slog.Info("starting telegram bot (polling mode)")

	me, err := c.bot.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("fetch telegram bot identity: %w", err)
	}
	c.selfID = me.ID

	// Stop() cancels this context to cleanly shut down long polling.
	pollCtx, cancel := context.WithCancel(ctx)
	c.pollCancel = cancel
	c.pollDone = make(chan struct{})

	updates, err := c.bot.UpdatesViaLongPolling(pollCtx, &telego.GetUpdatesParams{
		Timeout: 30,
		AllowedUpdates: []string{
			"message",
			"my_chat_member",
		},
	})
	if err != nil {
		cancel()
		return fmt.Errorf("start long polling: %w", err)
	}

	c.SetRunning(true)
	slog.Info("telegram bot connected", "username", me.Username)

	go func() {
		defer close(c.pollDone)
		for {
			select {
			case <-pollCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					slog.Info("telegram updates channel closed")
					return
				}
				switch {
				case update.Message != nil:
					c.handleMessage(pollCtx, update.Message)
				case update.MyChatMember != nil:
					c.rememberChat(update.MyChatMember.Chat)
				default:
					slog.Debug("telegram update skipped", "update_id", update.UpdateID)
				}
			}
		}
	}()

	return nil
}

// Stop shuts down the Telegram bot by cancelling the long polling context
// and waiting for the polling goroutine to exit.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping telegram bot")
	c.SetRunning(false)

	if c.pollCancel != nil {
		c.pollCancel()
	}

	// Wait so Telegram releases the getUpdates lock before a new instance starts.
	if c.pollDone != nil {
		select {
		case <-c.pollDone:
			slog.Info("telegram bot stopped")
		case <-time.After(10 * time.Second):
			slog.Warn("telegram polling goroutine did not exit within timeout")
		}
	}

	return nil
}

// Send delivers an outbound message, threaded as a reply when ReplyToID is set.
func (c *Channel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	chatID, err := parseChatID(msg.ChatID)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", msg.ChatID, err)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	params := tu.Message(tu.ID(chatID), msg.Content)
	if msg.ReplyToID > 0 {
		params.ReplyParameters = &telego.ReplyParameters{
			MessageID:                msg.ReplyToID,
			AllowSendingWithoutReply: true,
		}
	}
	if _, err := c.bot.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// parseChatID converts a string chat ID to int64.
func parseChatID(chatIDStr string) (int64, error) {
	return strconv.ParseInt(chatIDStr, 10, 64)
}
