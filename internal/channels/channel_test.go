package channels

import (
	"context"
	"errors"
	"testing"

	"github.com/nextlevelbuilder/supportdesk/internal/bus"
)

func TestIsAllowed(t *testing.T) {
	tests := []struct {
		name      string
		allowList []string
		senderID  string
		want      bool
	}{
		{"empty list allows all", nil, "1|bob", true},
		{"numeric id", []string{"1"}, "1|bob", true},
		{"username with at", []string{"@bob"}, "1|bob", true},
		{"full compound", []string{"1|bob"}, "1|bob", true},
		{"other user", []string{"2", "@alice"}, "1|bob", false},
		{"blank entries ignored", []string{" ", ""}, "1", false},
		{"no username part", []string{"@bob"}, "1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewBaseChannel("telegram", nil, tt.allowList)
			if got := c.IsAllowed(tt.senderID); got != tt.want {
				t.Errorf("IsAllowed(%q) = %v, want %v", tt.senderID, got, tt.want)
			}
		})
	}
}

func TestHandleMessage(t *testing.T) {
	var got []bus.InboundMessage
	c := NewBaseChannel("telegram", func(_ context.Context, msg bus.InboundMessage) {
		got = append(got, msg)
	}, []string{"1"})

	c.HandleMessage(context.Background(), bus.InboundMessage{SenderID: "1|bob", ChatID: "1", Content: "hi"})
	c.HandleMessage(context.Background(), bus.InboundMessage{SenderID: "2|eve", ChatID: "2", Content: "hi"})

	if len(got) != 1 {
		t.Fatalf("handled %d messages, want 1", len(got))
	}
	if got[0].Channel != "telegram" || got[0].UserID != "1" {
		t.Fatalf("message = %+v", got[0])
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("привет мир", 6); got != "привет..." {
		t.Fatalf("Truncate = %q", got)
	}
	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("Truncate = %q", got)
	}
}

type recordingChannel struct {
	name string
	sent []bus.OutboundMessage
	err  error
}

func (r *recordingChannel) Name() string                  { return r.name }
func (r *recordingChannel) Start(context.Context) error    { return nil }
func (r *recordingChannel) Stop(context.Context) error     { return nil }
func (r *recordingChannel) Send(_ context.Context, msg bus.OutboundMessage) error {
	r.sent = append(r.sent, msg)
	return r.err
}

func TestReplier(t *testing.T) {
	tg := &recordingChannel{name: "telegram"}
	r := NewReplier(tg)

	in := bus.InboundMessage{Channel: "telegram", ChatID: "42", MessageID: 7}
	if err := r.Reply(context.Background(), in, "hello"); err != nil {
		t.Fatalf("Reply: %v", err)
	}
	want := bus.OutboundMessage{Channel: "telegram", ChatID: "42", Content: "hello", ReplyToID: 7}
	if len(tg.sent) != 1 || tg.sent[0].ChatID != want.ChatID || tg.sent[0].Content != want.Content || tg.sent[0].ReplyToID != want.ReplyToID {
		t.Fatalf("sent = %+v", tg.sent)
	}

	if err := r.Reply(context.Background(), bus.InboundMessage{Channel: "discord"}, "x"); err == nil {
		t.Fatal("expected error for unknown channel")
	}

	tg.err = errors.New("blocked by user")
	if err := r.Reply(context.Background(), in, "again"); err == nil {
		t.Fatal("send error not propagated")
	}
}

type stoppedChannel struct {
	recordingChannel
}

func (stoppedChannel) IsRunning() bool { return false }

func TestReplierStoppedChannel(t *testing.T) {
	ch := &stoppedChannel{recordingChannel{name: "telegram"}}
	r := NewReplier(ch)
	err := r.Reply(context.Background(), bus.InboundMessage{Channel: "telegram", ChatID: "1"}, "hi")
	if !errors.Is(err, ErrNotRunning) {
		t.Fatalf("err = %v, want ErrNotRunning", err)
	}
	if len(ch.sent) != 0 {
		t.Fatal("sent through a stopped channel")
	}
}
