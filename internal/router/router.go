// Package router decides how the bot answers one inbound message.
//
// Each user's conversation moves through four states (see sessions.State):
// a new user is greeted, a greeted user gets up to ReplyCap automated
// answers from the knowledge base or the completion service, and the next
// message after that is handed to a human operator. Once handed over the
// bot stays silent until the session expires or a gratitude match at the cap
// re-opens the automated window.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/supportdesk/internal/bus"
	"github.com/nextlevelbuilder/supportdesk/internal/knowledge"
	"github.com/nextlevelbuilder/supportdesk/internal/metrics"
	"github.com/nextlevelbuilder/supportdesk/internal/sessions"
	"github.com/nextlevelbuilder/supportdesk/internal/tracing"
)

// Defaults match the production policy.
const (
	DefaultReplyCap  = 3
	DefaultThreshold = 60
)

var errNoCompleter = errors.New("completion service not configured")

// Store holds per-user sessions.
type Store interface {
	GetOrCreate(userID string) sessions.Session
	Save(sess sessions.Session)
	Len() int
}

// Matcher finds the closest canned answer for a query.
type Matcher interface {
	Best(query string) (knowledge.Match, bool, error)
}

// Completer generates a reply when no canned answer fits.
type Completer interface {
	Complete(ctx context.Context, userText string) (string, error)
}

// Notifier alerts operators about a handover. It must not fail the caller.
type Notifier interface {
	Notify(ctx context.Context, userID, text string)
}

// Pacer gates every outbound send.
type Pacer interface {
	Acquire(ctx context.Context) error
}

// Replier sends text back to the chat a message came from.
type Replier interface {
	Reply(ctx context.Context, msg bus.InboundMessage, text string) error
}

// GratitudePredicate reports whether a canned answer closes a conversation
// politely, which re-opens the automated window instead of escalating.
type GratitudePredicate func(answer string) bool

// MarkerPredicate matches answers containing marker, ignoring case.
// An empty marker never matches.
func MarkerPredicate(marker string) GratitudePredicate {
	folded := knowledge.Fold(marker)
	return func(answer string) bool {
		return folded != "" && strings.Contains(knowledge.Fold(answer), folded)
	}
}

// Config wires the router's collaborators and policy.
type Config struct {
	Store     Store
	Matcher   Matcher
	Completer Completer // optional: nil sends FallbackText instead
	Notifier  Notifier
	Pacer     Pacer
	Replier   Replier
	Metrics   *metrics.Metrics // optional

	ReplyCap  int
	Threshold float64 // a score equal to the threshold matches
	Gratitude GratitudePredicate

	WelcomeText  string
	HandoverText string
	FallbackText string

	Now func() time.Time // defaults to time.Now
}

// Action is what the router did with a message.
type Action string

const (
	ActionWelcome    Action = "welcome"
	ActionKnowledge  Action = "knowledge"
	ActionCompletion Action = "completion"
	ActionFallback   Action = "fallback"
	ActionGratitude  Action = "gratitude"
	ActionHandover   Action = "handover"
	ActionSilent     Action = "silent"
)

// tier maps an action to its metrics label.
func (a Action) tier() string {
	switch a {
	case ActionWelcome:
		return metrics.TierWelcome
	case ActionKnowledge:
		return metrics.TierKnowledge
	case ActionCompletion:
		return metrics.TierCompletion
	case ActionFallback:
		return metrics.TierFallback
	case ActionGratitude:
		return metrics.TierGratitude
	case ActionHandover:
		return metrics.TierHandover
	}
	return ""
}

// Outcome describes the handling of one message.
type Outcome struct {
	Action  Action
	Reply   string           // text sent (or attempted); empty when silent
	Session sessions.Session // state after handling
	SendErr error            // delivery failure, already logged
}

// Router applies the conversation policy to inbound messages.
// Callers must not run Handle concurrently for the same user.
type Router struct {
	cfg Config
}

// New creates a router. Store, Matcher, Notifier, Pacer and Replier are required.
func New(cfg Config) (*Router, error) {
	switch {
	case cfg.Store == nil:
		return nil, fmt.Errorf("router: store is required")
	case cfg.Matcher == nil:
		return nil, fmt.Errorf("router: matcher is required")
	case cfg.Notifier == nil:
		return nil, fmt.Errorf("router: notifier is required")
	case cfg.Pacer == nil:
		return nil, fmt.Errorf("router: pacer is required")
	case cfg.Replier == nil:
		return nil, fmt.Errorf("router: replier is required")
	}
	if cfg.ReplyCap <= 0 {
		cfg.ReplyCap = DefaultReplyCap
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Gratitude == nil {
		cfg.Gratitude = func(string) bool { return false }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Router{cfg: cfg}, nil
}

// Handle processes msg against the sender's session and saves the result.
// It never returns an error: every failure is logged and folded into the
// outcome so that one user's trouble cannot stop the others.
func (r *Router) Handle(ctx context.Context, msg bus.InboundMessage) Outcome {
	ctx, span := tracing.Tracer().Start(ctx, "router.handle",
		trace.WithAttributes(
			attribute.String("user_id", msg.UserID),
			attribute.String("channel", msg.Channel),
		))
	defer span.End()

	sess := r.cfg.Store.GetOrCreate(msg.UserID)
	state := sess.State(r.cfg.ReplyCap)
	span.SetAttributes(attribute.String("session.state", string(state)))

	var out Outcome
	switch state {
	case sessions.StateHandedOver:
		// Silent: last_activity is not refreshed, so the TTL reset still fires.
		r.cfg.Metrics.Silenced()
		slog.Debug("session handed over, ignoring message", "user_id", msg.UserID)
		span.SetAttributes(attribute.String("router.action", string(ActionSilent)))
		return Outcome{Action: ActionSilent, Session: sess}
	case sessions.StateNew:
		out = r.welcome(ctx, msg, &sess)
	case sessions.StateAtCap:
		out = r.atCap(ctx, msg, &sess)
	default:
		out = r.automated(ctx, msg, &sess)
	}

	r.cfg.Store.Save(sess)
	r.cfg.Metrics.SetSessions(r.cfg.Store.Len())
	out.Session = sess

	span.SetAttributes(
		attribute.String("router.action", string(out.Action)),
		attribute.Int("session.reply_count", sess.ReplyCount),
	)
	if out.SendErr != nil {
		span.RecordError(out.SendErr)
		span.SetStatus(codes.Error, "reply not delivered")
	}
	slog.Info("message handled",
		"user_id", msg.UserID,
		"state", state,
		"action", out.Action,
		"reply_count", sess.ReplyCount,
	)
	return out
}

func (r *Router) welcome(ctx context.Context, msg bus.InboundMessage, sess *sessions.Session) Outcome {
	err := r.send(ctx, msg, r.cfg.WelcomeText, ActionWelcome)
	sess.Greeted = true
	sess.Touch(r.cfg.Now())
	return Outcome{Action: ActionWelcome, Reply: r.cfg.WelcomeText, SendErr: err}
}

func (r *Router) atCap(ctx context.Context, msg bus.InboundMessage, sess *sessions.Session) Outcome {
	if m, ok := r.lookup(msg); ok && r.cfg.Gratitude(m.Answer) {
		err := r.send(ctx, msg, m.Answer, ActionGratitude)
		sess.SoftReset(r.cfg.Now())
		return Outcome{Action: ActionGratitude, Reply: m.Answer, SendErr: err}
	}

	r.cfg.Notifier.Notify(ctx, msg.UserID, msg.Content)
	r.cfg.Metrics.Escalation()
	err := r.send(ctx, msg, r.cfg.HandoverText, ActionHandover)
	sess.HandedOver = true
	sess.Touch(r.cfg.Now())
	return Outcome{Action: ActionHandover, Reply: r.cfg.HandoverText, SendErr: err}
}

func (r *Router) automated(ctx context.Context, msg bus.InboundMessage, sess *sessions.Session) Outcome {
	action, reply := ActionKnowledge, ""
	if m, ok := r.lookup(msg); ok {
		reply = m.Answer
	} else {
		action, reply = r.complete(ctx, msg)
	}

	err := r.send(ctx, msg, reply, action)
	// A failed completion still counts, so one user cannot retry forever.
	sess.ReplyCount++
	sess.Touch(r.cfg.Now())
	return Outcome{Action: action, Reply: reply, SendErr: err}
}

// lookup returns the best canned answer at or above the threshold.
// Matcher errors count as no match.
func (r *Router) lookup(msg bus.InboundMessage) (knowledge.Match, bool) {
	m, ok, err := r.cfg.Matcher.Best(msg.Content)
	if err != nil {
		slog.Warn("knowledge lookup failed", "user_id", msg.UserID, "error", err)
		return knowledge.Match{}, false
	}
	if !ok || m.Score < r.cfg.Threshold {
		return knowledge.Match{}, false
	}
	slog.Debug("knowledge match", "user_id", msg.UserID, "question", m.Question, "score", m.Score)
	return m, true
}

func (r *Router) complete(ctx context.Context, msg bus.InboundMessage) (Action, string) {
	var (
		reply string
		err   = errNoCompleter
	)
	if r.cfg.Completer != nil {
		reply, err = r.cfg.Completer.Complete(ctx, msg.Content)
	}
	if err != nil {
		r.cfg.Metrics.CompletionFailure()
		slog.Warn("completion failed, sending fallback", "user_id", msg.UserID, "error", err)
		return ActionFallback, r.cfg.FallbackText
	}
	return ActionCompletion, reply
}

// send paces and delivers one reply. Failures are logged and returned for
// the outcome; the caller updates the session regardless.
func (r *Router) send(ctx context.Context, msg bus.InboundMessage, text string, action Action) error {
	start := time.Now()
	if err := r.cfg.Pacer.Acquire(ctx); err != nil {
		r.cfg.Metrics.SendFailure()
		slog.Warn("pacer interrupted, reply dropped", "user_id", msg.UserID, "error", err)
		return fmt.Errorf("pace reply: %w", err)
	}
	r.cfg.Metrics.PacerWait(time.Since(start))

	if err := r.cfg.Replier.Reply(ctx, msg, text); err != nil {
		r.cfg.Metrics.SendFailure()
		slog.Warn("reply failed", "user_id", msg.UserID, "channel", msg.Channel, "error", err)
		return fmt.Errorf("send reply: %w", err)
	}
	r.cfg.Metrics.Reply(action.tier())
	return nil
}
