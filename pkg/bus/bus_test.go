package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/groupwarden/groupwarden/pkg/moderation"
)

func TestPublishConsume(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()
	ctx := context.Background()

	ev := Event{Message: &moderation.Message{ChatID: -1, MessageID: 5}}
	if err := mb.Publish(ctx, ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	got, ok := mb.Consume(ctx)
	if !ok {
		t.Fatal("Consume returned not ok")
	}
	if got.Message == nil || got.Message.MessageID != 5 {
		t.Errorf("got %+v", got)
	}
}

func TestNotifyNotices(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()
	ctx := context.Background()

	if err := mb.Notify(ctx, Notice{ChatID: 42, Text: "digest"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	n, ok := mb.Notices(ctx)
	if !ok || n.ChatID != 42 || n.Text != "digest" {
		t.Errorf("got (%+v, %v)", n, ok)
	}
}

func TestPublishAfterClose(t *testing.T) {
	mb := NewMessageBus()
	mb.Close()

	if err := mb.Publish(context.Background(), Event{}); !errors.Is(err, ErrBusClosed) {
		t.Errorf("expected ErrBusClosed, got %v", err)
	}
	if err := mb.Notify(context.Background(), Notice{}); !errors.Is(err, ErrBusClosed) {
		t.Errorf("expected ErrBusClosed, got %v", err)
	}
}

func TestConsumeUnblocksOnClose(t *testing.T) {
	mb := NewMessageBus()

	done := make(chan bool)
	go func() {
		_, ok := mb.Consume(context.Background())
		done <- ok
	}()

	mb.Close()
	select {
	case ok := <-done:
		if ok {
			t.Error("Consume after close should report not ok")
		}
	case <-time.After(time.Second):
		t.Fatal("Consume did not unblock on Close")
	}
}

func TestConsumeRespectsContext(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, ok := mb.Consume(ctx); ok {
		t.Error("cancelled context should end Consume")
	}
}

func TestCloseIdempotent(t *testing.T) {
	mb := NewMessageBus()
	mb.Close()
	mb.Close()
}
