// Package dispatch feeds inbound messages to the router, one worker per user.
//
// Messages from the same user are handled strictly in arrival order and never
// concurrently; different users proceed in parallel. A worker exists only
// while its user has pending messages.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/nextlevelbuilder/supportdesk/internal/bus"
)

// Handler processes one message. It is never called concurrently for the
// same UserID.
type Handler func(ctx context.Context, msg bus.InboundMessage)

type job struct {
	ctx context.Context
	msg bus.InboundMessage
}

type queue struct {
	pending []job
}

// Dispatcher serializes handling per user.
type Dispatcher struct {
	handler Handler

	mu     sync.Mutex
	queues map[string]*queue // user ID → queue with a live worker
	closed bool

	wg sync.WaitGroup
}

// New creates a dispatcher that runs handler for each accepted message.
func New(handler Handler) *Dispatcher {
	return &Dispatcher{
		handler: handler,
		queues:  make(map[string]*queue),
	}
}

// Submit enqueues msg for its user. Self-sent messages, messages without a
// user and messages with no text are dropped. The text is trimmed before
// handling. ctx is passed to the handler and should outlive the call.
// Submit never blocks on handling and reports whether msg was accepted.
func (d *Dispatcher) Submit(ctx context.Context, msg bus.InboundMessage) bool {
	if msg.IsOutbound {
		return false
	}
	msg.Content = strings.TrimSpace(msg.Content)
	if msg.Content == "" || msg.UserID == "" {
		slog.Debug("dispatch: dropping empty message", "user_id", msg.UserID, "channel", msg.Channel)
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		slog.Warn("dispatch: closed, dropping message", "user_id", msg.UserID)
		return false
	}

	j := job{ctx: ctx, msg: msg}
	if q, ok := d.queues[msg.UserID]; ok {
		q.pending = append(q.pending, j)
		return true
	}
	q := &queue{pending: []job{j}}
	d.queues[msg.UserID] = q
	d.wg.Add(1)
	go d.run(msg.UserID, q)
	return true
}

// run drains one user's queue and exits when it is empty.
func (d *Dispatcher) run(userID string, q *queue) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		if len(q.pending) == 0 {
			delete(d.queues, userID)
			d.mu.Unlock()
			return
		}
		j := q.pending[0]
		q.pending[0] = job{}
		q.pending = q.pending[1:]
		d.mu.Unlock()

		if err := d.process(j); err != nil {
			slog.Error("dispatch: message failed", "user_id", userID, "error", err)
		}
	}
}

func (d *Dispatcher) process(j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v\n%s", r, debug.Stack())
		}
	}()
	d.handler(j.ctx, j.msg)
	return nil
}

// Active returns the number of users with a running worker.
func (d *Dispatcher) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queues)
}

// Close stops accepting messages. Queued messages are still handled.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
}

// Wait blocks until every queued message has been handled.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Shutdown closes the dispatcher and waits for the queues to drain or ctx to
// expire, whichever comes first.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.Close()
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatch drain: %w", ctx.Err())
	}
}
