// Package escalation alerts human operators when a conversation is handed over.
package escalation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/mattn/go-runewidth"
)

// ErrOperatorNotFound is returned by a Directory when the operator channel
// cannot be located.
var ErrOperatorNotFound = errors.New("operator channel not found")

// Directory locates the operator channel on some platform and posts to it.
type Directory interface {
	// Lookup resolves a channel by its fixed identifier.
	Lookup(ctx context.Context, id string) (target string, err error)
	// FindByName resolves a channel by display name.
	FindByName(ctx context.Context, name string) (target string, ok bool)
	// SendAlert posts text to a resolved target.
	SendAlert(ctx context.Context, target, text string) error
}

// Config identifies the operator channel.
type Config struct {
	ChannelID   string
	ChannelName string
	MaxTextCols int // truncate the user's text in alerts; 0 = no limit
}

// Result describes one notification attempt.
type Result struct {
	TicketID string
	Target   string
	Err      error
}

// Notifier sends handover alerts. It never surfaces errors to its caller:
// by the time it runs the user-facing handover reply is already decided.
type Notifier struct {
	dir     Directory
	cfg     Config
	onAlert func(Result) // metrics hook, may be nil
}

// NewNotifier creates a notifier over dir.
func NewNotifier(dir Directory, cfg Config) *Notifier {
	return &Notifier{dir: dir, cfg: cfg}
}

// OnAlert registers a hook called after every attempt.
func (n *Notifier) OnAlert(fn func(Result)) { n.onAlert = fn }

// Notify alerts operators that userID needs a human, quoting the message
// that triggered the handover. Failures are logged only.
func (n *Notifier) Notify(ctx context.Context, userID, text string) {
	res := n.notify(ctx, userID, text)
	if res.Err != nil {
		slog.Error("operator notification failed",
			"user_id", userID, "ticket", res.TicketID, "error", res.Err)
	} else {
		slog.Info("operator notified", "user_id", userID, "ticket", res.TicketID, "target", res.Target)
	}
	if n.onAlert != nil {
		n.onAlert(res)
	}
}

func (n *Notifier) notify(ctx context.Context, userID, text string) (res Result) {
	res.TicketID = uuid.NewString()
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("notifier panic: %v", r)
		}
	}()

	target, err := n.resolve(ctx)
	if err != nil {
		res.Err = err
		return res
	}
	res.Target = target

	if err := n.dir.SendAlert(ctx, target, FormatAlert(res.TicketID, userID, text, n.cfg.MaxTextCols)); err != nil {
		res.Err = fmt.Errorf("send alert: %w", err)
	}
	return res
}

// resolve tries the fixed identifier first and falls back to the display name.
func (n *Notifier) resolve(ctx context.Context) (string, error) {
	var lookupErr error
	if n.cfg.ChannelID != "" {
		target, err := n.dir.Lookup(ctx, n.cfg.ChannelID)
		if err == nil {
			return target, nil
		}
		lookupErr = err
		slog.Debug("operator channel lookup by id failed, trying name",
			"channel_id", n.cfg.ChannelID, "error", err)
	}
	if n.cfg.ChannelName != "" {
		if target, ok := n.dir.FindByName(ctx, n.cfg.ChannelName); ok {
			return target, nil
		}
	}
	if lookupErr != nil {
		return "", fmt.Errorf("%w: id %s: %v", ErrOperatorNotFound, n.cfg.ChannelID, lookupErr)
	}
	return "", ErrOperatorNotFound
}

// FormatAlert renders the operator alert.
func FormatAlert(ticketID, userID, text string, maxCols int) string {
	if maxCols > 0 {
		text = runewidth.Truncate(text, maxCols, "…")
	}
	var b strings.Builder
	b.WriteString("⚠️ Conversation handed over to an operator\n")
	fmt.Fprintf(&b, "User: `%s`\n", userID)
	fmt.Fprintf(&b, "Ticket: %s\n", ticketID)
	b.WriteString(text)
	return b.String()
}
