package knowledge

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestTokenSetRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "vpn does not connect", "vpn does not connect", 100},
		{"word order ignored", "connect does not vpn", "vpn does not connect", 100},
		{"subset scores full", "vpn not working", "vpn not working at all", 100},
		{"duplicates ignored", "vpn vpn slow", "slow vpn", 100},
		{"disjoint", "abc", "xyz", 0},
		{"empty left", "", "vpn", 0},
		{"empty right", "vpn", "   ", 0},
		{"partial overlap", "hello world", "hello there", 100 * (1 - 8.0/22.0)},
		{"cyrillic", "не работает впн", "впн не работает", 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TokenSetRatio(tt.a, tt.b)
			if math.Abs(got-tt.want) > 0.01 {
				t.Errorf("TokenSetRatio(%q, %q) = %.2f, want %.2f", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestTokenSetRatio_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"how do i pay", "payment methods"},
		{"hello world", "hello there"},
		{"the app crashes on start", "app crash"},
	}
	for _, p := range pairs {
		if a, b := TokenSetRatio(p[0], p[1]), TokenSetRatio(p[1], p[0]); math.Abs(a-b) > 1e-9 {
			t.Errorf("asymmetric score for %q/%q: %.4f vs %.4f", p[0], p[1], a, b)
		}
	}
}

func TestIndelDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"abc", "abc", 0},
		{"world", "there", 8},
		{"kitten", "sitting", 5},
	}
	for _, tt := range tests {
		if got := indelDistance([]rune(tt.a), []rune(tt.b)); got != tt.want {
			t.Errorf("indelDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestFold(t *testing.T) {
	if got := Fold("ПРИВЕТ VPN"); got != "привет vpn" {
		t.Fatalf("Fold = %q", got)
	}
}

func TestBest(t *testing.T) {
	b := FromMap(map[string]string{
		"vpn does not connect": "Restart the app and pick another server.",
		"how to pay":           "We accept cards and crypto.",
		"Thank you":            "Glad I could help!",
	})

	m, ok, err := b.Best("My VPN does not connect")
	if err != nil || !ok {
		t.Fatalf("Best: ok=%v err=%v", ok, err)
	}
	if m.Question != "vpn does not connect" || m.Score != 100 {
		t.Fatalf("Best = %+v", m)
	}

	m, _, _ = b.Best("THANK YOU")
	if m.Answer != "Glad I could help!" {
		t.Fatalf("case-insensitive lookup failed: %+v", m)
	}
}

func TestBest_TieResolvesToFirstQuestion(t *testing.T) {
	b := FromMap(map[string]string{
		"vpn slow": "slow answer",
		"vpn down": "down answer",
	})
	for i := 0; i < 10; i++ {
		m, _, _ := b.Best("vpn")
		if m.Question != "vpn down" {
			t.Fatalf("tie resolved to %q, want %q", m.Question, "vpn down")
		}
	}
}

func TestBest_EmptyAndUnloaded(t *testing.T) {
	if _, ok, err := FromMap(nil).Best("anything"); ok || err != nil {
		t.Fatalf("empty base: ok=%v err=%v", ok, err)
	}
	if _, _, err := NewBase("unused.json").Best("anything"); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("unloaded base err = %v, want ErrNotLoaded", err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "solutions.json")
	writeFile(t, path, `{
		// JSON5 comments are allowed
		"how to pay": "Cards and crypto."
	}`)

	b, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b.Len() != 1 {
		t.Fatalf("Len = %d, want 1", b.Len())
	}

	writeFile(t, path, `{not json`)
	if err := b.Reload(); err == nil {
		t.Fatal("expected parse error")
	}
	if b.Len() != 1 {
		t.Fatalf("failed reload dropped entries: Len = %d", b.Len())
	}

	writeFile(t, path, `{"a": "1", "b": "2"}`)
	if err := b.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if b.Len() != 2 {
		t.Fatalf("Len = %d, want 2", b.Len())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "solutions.json")
	writeFile(t, path, `{"a": "1"}`)
	b, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Watch(ctx) }()

	// The watcher registers asynchronously; rewrite (slower than the debounce)
	// until it notices.
	deadline := time.Now().Add(5 * time.Second)
	var lastWrite time.Time
	for b.Len() != 3 && time.Now().Before(deadline) {
		if time.Since(lastWrite) > 3*reloadDebounce {
			writeFile(t, path, `{"a": "1", "b": "2", "c": "3"}`)
			lastWrite = time.Now()
		}
		time.Sleep(20 * time.Millisecond)
	}
	if b.Len() != 3 {
		t.Fatalf("watcher did not reload: Len = %d", b.Len())
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Watch returned %v", err)
	}
}
