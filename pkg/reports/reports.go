// Package reports keeps an in-memory record of moderation bans and
// posts periodic digests to admin chats. Records live only for the
// process lifetime; there is no persistence layer.
package reports

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/groupwarden/groupwarden/pkg/bus"
	"github.com/groupwarden/groupwarden/pkg/logger"
)

type banRecord struct {
	chatID    int64
	chatTitle string
	userID    int64
	username  string
	at        time.Time
}

// Recorder collects confirmed bans. Safe for concurrent use; the
// enforcer records from per-message goroutines.
type Recorder struct {
	mu   sync.Mutex
	bans []banRecord
	now  func() time.Time
}

func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

func (r *Recorder) RecordBan(chatID int64, chatTitle string, userID int64, username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bans = append(r.bans, banRecord{
		chatID:    chatID,
		chatTitle: chatTitle,
		userID:    userID,
		username:  username,
		at:        r.now(),
	})
}

// ChatStats is the per-chat slice of a report window.
type ChatStats struct {
	ChatID    int64
	ChatTitle string
	Bans      int
}

// Stats summarizes bans inside the window ending now.
type Stats struct {
	Window         time.Duration
	TotalBans      int
	UniqueAccounts int
	ByChat         []ChatStats
}

// Stats aggregates bans within the trailing window, chats sorted by
// ban count descending.
func (r *Recorder) Stats(window time.Duration) Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-window)
	users := make(map[int64]bool)
	chats := make(map[int64]*ChatStats)
	total := 0

	for _, b := range r.bans {
		if b.at.Before(cutoff) {
			continue
		}
		total++
		users[b.userID] = true
		cs, ok := chats[b.chatID]
		if !ok {
			cs = &ChatStats{ChatID: b.chatID, ChatTitle: b.chatTitle}
			chats[b.chatID] = cs
		}
		cs.Bans++
	}

	byChat := make([]ChatStats, 0, len(chats))
	for _, cs := range chats {
		byChat = append(byChat, *cs)
	}
	sort.Slice(byChat, func(i, j int) bool {
		if byChat[i].Bans != byChat[j].Bans {
			return byChat[i].Bans > byChat[j].Bans
		}
		return byChat[i].ChatID < byChat[j].ChatID
	})

	return Stats{
		Window:         window,
		TotalBans:      total,
		UniqueAccounts: len(users),
		ByChat:         byChat,
	}
}

// Prune drops records older than keep, bounding memory on long runs.
func (r *Recorder) Prune(keep time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-keep)
	kept := r.bans[:0]
	for _, b := range r.bans {
		if !b.at.Before(cutoff) {
			kept = append(kept, b)
		}
	}
	r.bans = kept
}

// FormatDigest renders the stats as the digest notice text.
func FormatDigest(s Stats) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 群组安全日报（最近%d小时）\n", int(s.Window.Hours()))
	fmt.Fprintf(&sb, "🚫 封禁总数: %d\n", s.TotalBans)
	fmt.Fprintf(&sb, "👥 涉及账号: %d\n", s.UniqueAccounts)
	if len(s.ByChat) > 0 {
		sb.WriteString("\n各群组明细:\n")
		for _, cs := range s.ByChat {
			title := cs.ChatTitle
			if title == "" {
				title = fmt.Sprintf("chat %d", cs.ChatID)
			}
			fmt.Fprintf(&sb, "- %s: %d\n", title, cs.Bans)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Digest posts the recorder's stats to admin chats on a cron schedule.
type Digest struct {
	recorder *Recorder
	mb       *bus.MessageBus
	cron     string
	window   time.Duration
	admins   []int64
}

func NewDigest(recorder *Recorder, mb *bus.MessageBus, cron string, window time.Duration, admins []int64) (*Digest, error) {
	if !gronx.New().IsValid(cron) {
		return nil, fmt.Errorf("invalid report cron expression %q", cron)
	}
	return &Digest{
		recorder: recorder,
		mb:       mb,
		cron:     cron,
		window:   window,
		admins:   admins,
	}, nil
}

// Run blocks until ctx is done, firing a digest at each cron tick.
func (d *Digest) Run(ctx context.Context) {
	for {
		next, err := gronx.NextTick(d.cron, false)
		if err != nil {
			logger.ErrorCF("reports", "cron schedule failed", map[string]any{"error": err.Error()})
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}

		d.send(ctx)
		d.recorder.Prune(7 * 24 * time.Hour)
	}
}

func (d *Digest) send(ctx context.Context) {
	stats := d.recorder.Stats(d.window)
	text := FormatDigest(stats)
	for _, admin := range d.admins {
		if err := d.mb.Notify(ctx, bus.Notice{ChatID: admin, Text: text}); err != nil {
			logger.WarnCF("reports", "digest notice dropped", map[string]any{
				"admin": admin,
				"error": err.Error(),
			})
			return
		}
	}
	logger.InfoCF("reports", "digest sent", map[string]any{
		"total_bans": stats.TotalBans,
		"admins":     len(d.admins),
	})
}
