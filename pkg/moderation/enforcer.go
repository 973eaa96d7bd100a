package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/groupwarden/groupwarden/pkg/logger"
)

// Recorder receives confirmed bans for later reporting.
type Recorder interface {
	RecordBan(chatID int64, chatTitle string, userID int64, username string)
}

// EnforceResult reports what each independent enforcement action did.
// A failed delete never prevents the ban attempt and vice versa.
type EnforceResult struct {
	Deleted   bool
	Banned    bool
	Notified  bool
	DeleteErr error
	BanErr    error
	NotifyErr error
}

// Enforcer executes moderation decisions against the chat platform.
// Transient notices are removed after notifyTTL by a detached timer so
// the pipeline never waits on cleanup.
type Enforcer struct {
	actions   ChatActions
	notifyTTL time.Duration
	recorder  Recorder

	// replaced in tests to avoid real timers
	schedule func(d time.Duration, f func())
}

func NewEnforcer(actions ChatActions, notifyTTL time.Duration) *Enforcer {
	return &Enforcer{
		actions:   actions,
		notifyTTL: notifyTTL,
		schedule: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// SetRecorder attaches a ban recorder. Optional; nil disables recording.
func (e *Enforcer) SetRecorder(r Recorder) {
	e.recorder = r
}

// Enforce applies the decision for a classified message. Delete, ban
// and notify are attempted independently; permission failures are
// logged for operators and never reach chat members.
func (e *Enforcer) Enforce(ctx context.Context, msg Message, dec Decision, v Verdict) EnforceResult {
	var res EnforceResult

	if !dec.ShouldDelete && !dec.ShouldBan {
		return res
	}

	if dec.ShouldDelete {
		if err := e.actions.DeleteMessage(ctx, msg.ChatID, msg.MessageID); err != nil {
			res.DeleteErr = err
			e.logActionError("delete message", msg.ChatID, msg.Sender.ID, err)
		} else {
			res.Deleted = true
			logger.InfoCF("enforcer", "deleted spam message", map[string]any{
				"chat_id":    msg.ChatID,
				"message_id": msg.MessageID,
				"user_id":    msg.Sender.ID,
				"category":   v.Category,
				"confidence": v.Confidence,
			})
		}
	}

	if dec.ShouldBan {
		if err := e.actions.BanMember(ctx, msg.ChatID, msg.Sender.ID); err != nil {
			res.BanErr = err
			e.logActionError("ban member", msg.ChatID, msg.Sender.ID, err)
		} else {
			res.Banned = true
			logger.InfoCF("enforcer", "banned spam sender", map[string]any{
				"chat_id": msg.ChatID,
				"user_id": msg.Sender.ID,
			})
			if e.recorder != nil {
				e.recorder.RecordBan(msg.ChatID, msg.ChatTitle, msg.Sender.ID, msg.Sender.DisplayName())
			}
		}
	}

	if res.Deleted || res.Banned {
		text := notificationText(msg.Sender, v)
		noticeID, err := e.actions.SendMessage(ctx, msg.ChatID, text)
		if err != nil {
			res.NotifyErr = err
			e.logActionError("send notice", msg.ChatID, msg.Sender.ID, err)
		} else {
			res.Notified = true
			e.scheduleCleanup(msg.ChatID, noticeID)
		}
	}

	return res
}

// EnforceJoin handles a username violation on join: ban plus transient
// notice, no message to delete.
func (e *Enforcer) EnforceJoin(ctx context.Context, join JoinEvent, v Verdict) EnforceResult {
	var res EnforceResult

	if err := e.actions.BanMember(ctx, join.ChatID, join.User.ID); err != nil {
		res.BanErr = err
		e.logActionError("ban joining user", join.ChatID, join.User.ID, err)
		return res
	}
	res.Banned = true
	logger.InfoCF("enforcer", "banned user for violating username", map[string]any{
		"chat_id":  join.ChatID,
		"user_id":  join.User.ID,
		"username": join.User.Username,
	})
	if e.recorder != nil {
		e.recorder.RecordBan(join.ChatID, join.ChatTitle, join.User.ID, join.User.DisplayName())
	}

	text := fmt.Sprintf("⚠️ 检测到违规用户名，已移除用户\n👤 用户: %s\n💬 理由: %s",
		join.User.DisplayName(), v.Reason)
	noticeID, err := e.actions.SendMessage(ctx, join.ChatID, text)
	if err != nil {
		res.NotifyErr = err
		e.logActionError("send notice", join.ChatID, join.User.ID, err)
		return res
	}
	res.Notified = true
	e.scheduleCleanup(join.ChatID, noticeID)
	return res
}

// scheduleCleanup removes the transient notice after the TTL. Fire and
// forget: the cleanup uses its own context and failures are only logged.
func (e *Enforcer) scheduleCleanup(chatID int64, messageID int) {
	e.schedule(e.notifyTTL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.actions.DeleteMessage(ctx, chatID, messageID); err != nil {
			logger.WarnCF("enforcer", "failed to remove transient notice", map[string]any{
				"chat_id":    chatID,
				"message_id": messageID,
				"error":      err.Error(),
			})
		}
	})
}

func (e *Enforcer) logActionError(action string, chatID, userID int64, err error) {
	fields := map[string]any{
		"chat_id": chatID,
		"user_id": userID,
		"error":   err.Error(),
	}
	if errors.Is(err, ErrPermissionDenied) {
		logger.ErrorCF("enforcer", "cannot "+action+": missing chat permissions, promote the bot to admin", fields)
		return
	}
	logger.ErrorCF("enforcer", "failed to "+action, fields)
}

func notificationText(sender Sender, v Verdict) string {
	return fmt.Sprintf("⚠️ 检测到垃圾消息并已处理\n👤 用户: %s\n📋 类型: %s\n📊 置信度: %.2f\n💬 理由: %s",
		sender.DisplayName(), v.Category, v.Confidence, v.Reason)
}
