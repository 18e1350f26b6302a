package sessions

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore() (*Store, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewStore(24*time.Hour, WithClock(clock.Now)), clock
}

func TestState(t *testing.T) {
	tests := []struct {
		name string
		sess Session
		want State
	}{
		{"initial", Session{}, StateNew},
		{"greeted", Session{Greeted: true}, StateAutomated},
		{"below cap", Session{Greeted: true, ReplyCount: 2}, StateAutomated},
		{"at cap", Session{Greeted: true, ReplyCount: 3}, StateAtCap},
		{"handed over", Session{Greeted: true, ReplyCount: 3, HandedOver: true}, StateHandedOver},
		{"handed over wins over not greeted", Session{HandedOver: true}, StateHandedOver},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sess.State(3); got != tt.want {
				t.Errorf("State(3) = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetOrCreate_NewUser(t *testing.T) {
	s, _ := newTestStore()

	got := s.GetOrCreate("42")
	if got != New("42") {
		t.Fatalf("GetOrCreate = %+v, want initial state", got)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
}

func TestGetOrCreate_KeepsRecentSession(t *testing.T) {
	s, clock := newTestStore()

	sess := s.GetOrCreate("42")
	sess.Greeted = true
	sess.ReplyCount = 2
	sess.Touch(clock.Now())
	s.Save(sess)

	clock.Advance(24 * time.Hour) // exactly the TTL is not "more than"
	got := s.GetOrCreate("42")
	if got.ReplyCount != 2 || !got.Greeted {
		t.Fatalf("session reset too early: %+v", got)
	}
}

func TestGetOrCreate_ResetsAfterTTL(t *testing.T) {
	s, clock := newTestStore()

	sess := s.GetOrCreate("42")
	sess.Greeted = true
	sess.ReplyCount = 3
	sess.HandedOver = true
	sess.Touch(clock.Now())
	s.Save(sess)

	clock.Advance(24*time.Hour + time.Second)
	got := s.GetOrCreate("42")
	if got != New("42") {
		t.Fatalf("expired session not reset: %+v", got)
	}

	// The reset is applied in place.
	stored, ok := s.Snapshot("42")
	if !ok || stored != New("42") {
		t.Fatalf("stored session not reset: %+v ok=%v", stored, ok)
	}
}

func TestGetOrCreate_ResetMatchesBrandNewUser(t *testing.T) {
	s, clock := newTestStore()

	old := s.GetOrCreate("old")
	old.Greeted = true
	old.ReplyCount = 1
	old.Touch(clock.Now())
	s.Save(old)

	clock.Advance(48 * time.Hour)
	reset := s.GetOrCreate("old")
	fresh := s.GetOrCreate("fresh")

	reset.UserID, fresh.UserID = "", ""
	if reset != fresh {
		t.Fatalf("reset session %+v differs from new session %+v", reset, fresh)
	}
}

func TestGetOrCreate_NoActivityIsFresh(t *testing.T) {
	s, _ := newTestStore()

	// A greeted session without a timestamp cannot be trusted.
	s.Save(Session{UserID: "42", Greeted: true, ReplyCount: 1})
	if got := s.GetOrCreate("42"); got != New("42") {
		t.Fatalf("session without activity not reset: %+v", got)
	}
}

func TestSnapshot_Unknown(t *testing.T) {
	s, _ := newTestStore()
	if _, ok := s.Snapshot("nobody"); ok {
		t.Fatal("Snapshot found a session that was never created")
	}
}

func TestStore_ConcurrentUsers(t *testing.T) {
	s, clock := newTestStore()

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				sess := s.GetOrCreate(id)
				sess.Greeted = true
				sess.ReplyCount++
				sess.Touch(clock.Now())
				s.Save(sess)
			}
		}(fmt.Sprintf("user-%d", i))
	}
	wg.Wait()

	if s.Len() != 64 {
		t.Fatalf("Len = %d, want 64", s.Len())
	}
	for i := 0; i < 64; i++ {
		got, _ := s.Snapshot(fmt.Sprintf("user-%d", i))
		if got.ReplyCount != 50 {
			t.Errorf("user-%d ReplyCount = %d, want 50", i, got.ReplyCount)
		}
	}
}
