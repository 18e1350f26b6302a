package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/nextlevelbuilder/supportdesk/internal/bus"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func msg(user, text string) bus.InboundMessage {
	return bus.InboundMessage{Channel: "telegram", ChatID: user, UserID: user, Content: text}
}

func TestSubmitFilters(t *testing.T) {
	var (
		mu  sync.Mutex
		got []bus.InboundMessage
	)
	d := New(func(_ context.Context, m bus.InboundMessage) {
		mu.Lock()
		got = append(got, m)
		mu.Unlock()
	})
	ctx := context.Background()

	tests := []struct {
		name string
		msg  bus.InboundMessage
		want bool
	}{
		{"plain", msg("1", "hello"), true},
		{"outbound", bus.InboundMessage{UserID: "1", Content: "echo", IsOutbound: true}, false},
		{"whitespace only", msg("1", "  \n\t"), false},
		{"no user", bus.InboundMessage{Content: "orphan"}, false},
		{"padded", msg("1", "  spaced out  "), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if accepted := d.Submit(ctx, tt.msg); accepted != tt.want {
				t.Fatalf("Submit = %v, want %v", accepted, tt.want)
			}
		})
	}
	d.Wait()

	if len(got) != 2 {
		t.Fatalf("handled %d messages, want 2", len(got))
	}
	if got[1].Content != "spaced out" {
		t.Fatalf("content not trimmed: %q", got[1].Content)
	}
}

func TestPerUserOrderAndExclusion(t *testing.T) {
	const users, perUser = 8, 25

	var (
		mu       sync.Mutex
		seen     = map[string][]int{}
		inFlight = map[string]int{}
		overlap  atomic.Bool
	)
	d := New(func(_ context.Context, m bus.InboundMessage) {
		mu.Lock()
		inFlight[m.UserID]++
		if inFlight[m.UserID] > 1 {
			overlap.Store(true)
		}
		mu.Unlock()

		time.Sleep(time.Millisecond)

		var n int
		fmt.Sscanf(m.Content, "msg %d", &n)
		mu.Lock()
		seen[m.UserID] = append(seen[m.UserID], n)
		inFlight[m.UserID]--
		mu.Unlock()
	})

	ctx := context.Background()
	for i := 0; i < perUser; i++ {
		for u := 0; u < users; u++ {
			d.Submit(ctx, msg(fmt.Sprint(u), fmt.Sprintf("msg %d", i)))
		}
	}
	d.Wait()

	if overlap.Load() {
		t.Fatal("two messages of one user ran concurrently")
	}
	for u := 0; u < users; u++ {
		got := seen[fmt.Sprint(u)]
		if len(got) != perUser {
			t.Fatalf("user %d handled %d messages, want %d", u, len(got), perUser)
		}
		for i, n := range got {
			if n != i {
				t.Fatalf("user %d order = %v", u, got)
			}
		}
	}
	if d.Active() != 0 {
		t.Fatalf("workers still active: %d", d.Active())
	}
}

func TestUsersRunConcurrently(t *testing.T) {
	release := make(chan struct{})
	started := make(chan string, 2)
	d := New(func(_ context.Context, m bus.InboundMessage) {
		started <- m.UserID
		<-release
	})

	d.Submit(context.Background(), msg("a", "slow"))
	d.Submit(context.Background(), msg("b", "also slow"))

	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatal("second user blocked behind the first")
		}
	}
	close(release)
	d.Wait()
}

func TestPanicIsolated(t *testing.T) {
	var handled atomic.Int32
	d := New(func(_ context.Context, m bus.InboundMessage) {
		if m.Content == "boom" {
			panic("router exploded")
		}
		handled.Add(1)
	})

	ctx := context.Background()
	d.Submit(ctx, msg("1", "boom"))
	d.Submit(ctx, msg("1", "after"))
	d.Submit(ctx, msg("2", "other user"))
	d.Wait()

	if got := handled.Load(); got != 2 {
		t.Fatalf("handled %d messages after panic, want 2", got)
	}
}

func TestShutdown(t *testing.T) {
	release := make(chan struct{})
	d := New(func(context.Context, bus.InboundMessage) { <-release })
	d.Submit(context.Background(), msg("1", "pending"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := d.Shutdown(ctx); err == nil {
		t.Fatal("expected drain timeout")
	}
	if d.Submit(context.Background(), msg("2", "late")) {
		t.Fatal("accepted a message after shutdown")
	}

	close(release)
	if err := d.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
