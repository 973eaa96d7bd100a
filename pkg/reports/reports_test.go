package reports

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/groupwarden/groupwarden/pkg/bus"
)

func TestRecorderStats(t *testing.T) {
	r := NewRecorder()
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	r.RecordBan(-1, "群A", 100, "@a")
	r.RecordBan(-1, "群A", 101, "@b")
	r.RecordBan(-2, "群B", 100, "@a")

	// One old record outside the window.
	old := now.Add(-48 * time.Hour)
	r.bans = append(r.bans, banRecord{chatID: -1, chatTitle: "群A", userID: 999, at: old})

	s := r.Stats(24 * time.Hour)
	if s.TotalBans != 3 {
		t.Errorf("total: got %d, want 3", s.TotalBans)
	}
	if s.UniqueAccounts != 2 {
		t.Errorf("unique: got %d, want 2", s.UniqueAccounts)
	}
	if len(s.ByChat) != 2 || s.ByChat[0].ChatID != -1 || s.ByChat[0].Bans != 2 {
		t.Errorf("by chat: %+v", s.ByChat)
	}
}

func TestRecorderPrune(t *testing.T) {
	r := NewRecorder()
	now := time.Now()
	r.now = func() time.Time { return now }

	r.bans = []banRecord{
		{userID: 1, at: now.Add(-10 * 24 * time.Hour)},
		{userID: 2, at: now.Add(-time.Hour)},
	}
	r.Prune(7 * 24 * time.Hour)
	if len(r.bans) != 1 || r.bans[0].userID != 2 {
		t.Errorf("after prune: %+v", r.bans)
	}
}

func TestFormatDigest(t *testing.T) {
	s := Stats{
		Window:         24 * time.Hour,
		TotalBans:      5,
		UniqueAccounts: 4,
		ByChat: []ChatStats{
			{ChatID: -1, ChatTitle: "技术群", Bans: 3},
			{ChatID: -2, Bans: 2},
		},
	}
	text := FormatDigest(s)
	for _, want := range []string{"最近24小时", "封禁总数: 5", "涉及账号: 4", "技术群: 3", "chat -2: 2"} {
		if !strings.Contains(text, want) {
			t.Errorf("digest missing %q:\n%s", want, text)
		}
	}
}

func TestFormatDigest_Empty(t *testing.T) {
	text := FormatDigest(Stats{Window: 24 * time.Hour})
	if strings.Contains(text, "各群组明细") {
		t.Error("empty stats should omit the per-chat section")
	}
}

func TestNewDigest_ValidatesCron(t *testing.T) {
	r := NewRecorder()
	mb := bus.NewMessageBus()
	defer mb.Close()

	if _, err := NewDigest(r, mb, "not a cron", 24*time.Hour, nil); err == nil {
		t.Error("invalid cron should be rejected")
	}
	if _, err := NewDigest(r, mb, "0 9 * * *", 24*time.Hour, nil); err != nil {
		t.Errorf("valid cron rejected: %v", err)
	}
}

func TestDigestSend(t *testing.T) {
	r := NewRecorder()
	r.RecordBan(-1, "群A", 100, "@a")

	mb := bus.NewMessageBus()
	defer mb.Close()

	d, err := NewDigest(r, mb, "0 9 * * *", 24*time.Hour, []int64{7, 8})
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	d.send(ctx)

	for _, wantChat := range []int64{7, 8} {
		n, ok := mb.Notices(ctx)
		if !ok {
			t.Fatal("expected a notice")
		}
		if n.ChatID != wantChat {
			t.Errorf("notice chat: got %d, want %d", n.ChatID, wantChat)
		}
		if !strings.Contains(n.Text, "封禁总数: 1") {
			t.Errorf("notice text: %q", n.Text)
		}
	}
}
