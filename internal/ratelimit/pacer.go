// Package ratelimit paces outbound replies so automated answers arrive with a
// human-like cadence and stay clear of platform abuse heuristics.
package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

const (
	// DefaultWindow is the sliding window over which send timestamps are kept.
	DefaultWindow = 60 * time.Second

	// DefaultMaxEntries bounds the timestamp log.
	DefaultMaxEntries = 10

	// DefaultMinDelay and DefaultMaxDelay bound the mandatory per-send delay.
	DefaultMinDelay = 3200 * time.Millisecond
	DefaultMaxDelay = 6700 * time.Millisecond
)

// Config holds pacer bounds. Zero fields take the defaults.
type Config struct {
	Window     time.Duration
	MaxEntries int
	MinDelay   time.Duration
	MaxDelay   time.Duration
}

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = DefaultMaxEntries
	}
	if c.MinDelay <= 0 && c.MaxDelay <= 0 {
		c.MinDelay, c.MaxDelay = DefaultMinDelay, DefaultMaxDelay
	}
	if c.MaxDelay < c.MinDelay {
		c.MaxDelay = c.MinDelay
	}
	return c
}

// Pacer is the single process-wide gate every outbound send passes through.
// It keeps a bounded, time-ordered log of recent sends and imposes a uniformly
// random delay on every Acquire. Only one caller holds the gate at a time, so
// consecutive Acquire returns are at least MinDelay apart across all users.
// Safe for concurrent use.
type Pacer struct {
	cfg  Config
	gate chan struct{} // 1-slot semaphore held for the whole Acquire

	mu    sync.Mutex // guards sends
	sends []time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	rand  func() float64 // [0,1)
}

// Option customises a Pacer.
type Option func(*Pacer)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pacer) { p.now = now }
}

// WithSleep overrides the delay implementation.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Pacer) { p.sleep = sleep }
}

// WithRand overrides the jitter source; fn must return values in [0,1).
func WithRand(fn func() float64) Option {
	return func(p *Pacer) { p.rand = fn }
}

// New creates a pacer.
func New(cfg Config, opts ...Option) *Pacer {
	cfg = cfg.withDefaults()
	p := &Pacer{
		cfg:   cfg,
		gate:  make(chan struct{}, 1),
		sends: make([]time.Time, 0, cfg.MaxEntries),
		now:   time.Now,
		sleep: sleepCtx,
		rand:  rand.Float64,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Acquire records a send and blocks for the jitter delay before returning.
// It is called exactly once per outbound message, immediately before the
// transport call. The only way out early is ctx cancellation (shutdown).
func (p *Pacer) Acquire(ctx context.Context) error {
	select {
	case p.gate <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.gate }()

	p.record(p.now())
	return p.sleep(ctx, p.delay())
}

func (p *Pacer) record(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Evict entries older than the window from the front.
	cut := 0
	for cut < len(p.sends) && now.Sub(p.sends[cut]) > p.cfg.Window {
		cut++
	}
	p.sends = p.sends[cut:]

	// Bounded like a ring: the oldest entry falls off when full.
	if len(p.sends) >= p.cfg.MaxEntries {
		p.sends = p.sends[len(p.sends)-p.cfg.MaxEntries+1:]
	}
	p.sends = append(p.sends, now)
}

func (p *Pacer) delay() time.Duration {
	span := p.cfg.MaxDelay - p.cfg.MinDelay
	return p.cfg.MinDelay + time.Duration(p.rand()*float64(span))
}

// Len returns the number of timestamps currently held.
func (p *Pacer) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sends)
}

// Recent returns a copy of the held timestamps, oldest first.
func (p *Pacer) Recent() []time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]time.Time, len(p.sends))
	copy(out, p.sends)
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
