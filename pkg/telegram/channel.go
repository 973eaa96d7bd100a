// Package telegram binds the moderation pipeline to Telegram via long
// polling. It publishes group messages and member joins onto the bus,
// delivers outbound notices, answers the bot's own commands and exposes
// chat enforcement actions with permission errors normalized.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mymmrac/telego"
	"github.com/mymmrac/telego/telegoapi"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/groupwarden/groupwarden/pkg/bus"
	"github.com/groupwarden/groupwarden/pkg/logger"
	"github.com/groupwarden/groupwarden/pkg/moderation"
	"github.com/groupwarden/groupwarden/pkg/parser"
)

// newMemberWindow is how long after joining a sender is flagged as a
// new member in classifier prompts.
const newMemberWindow = 24 * time.Hour

type Channel struct {
	bot            *telego.Bot
	mb             *bus.MessageBus
	trusted        func(int64) bool
	checkUsernames bool

	running   atomic.Bool
	processed atomic.Int64
	startedAt time.Time
	self      telego.User
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	joinMu      sync.Mutex
	recentJoins map[string]time.Time
}

func NewChannel(token string, mb *bus.MessageBus, trusted func(int64) bool, checkUsernames bool) (*Channel, error) {
	bot, err := telego.NewBot(token, telego.WithDiscardLogger())
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return &Channel{
		bot:            bot,
		mb:             mb,
		trusted:        trusted,
		checkUsernames: checkUsernames,
		recentJoins:    make(map[string]time.Time),
	}, nil
}

func (c *Channel) Start(ctx context.Context) error {
	me, err := c.bot.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram getMe: %w", err)
	}
	c.self = *me

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	updates, err := c.bot.UpdatesViaLongPolling(runCtx, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("telegram long polling: %w", err)
	}

	c.startedAt = time.Now()
	c.running.Store(true)

	c.wg.Add(2)
	go c.pollLoop(runCtx, updates)
	go c.noticeLoop(runCtx)

	logger.InfoCF("telegram", "channel started", map[string]any{
		"bot": me.Username,
	})
	return nil
}

func (c *Channel) Stop(_ context.Context) error {
	if !c.running.CompareAndSwap(true, false) {
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	logger.InfoC("telegram", "channel stopped")
	return nil
}

func (c *Channel) IsRunning() bool {
	return c.running.Load()
}

func (c *Channel) pollLoop(ctx context.Context, updates <-chan telego.Update) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			c.handleUpdate(ctx, update)
		}
	}
}

func (c *Channel) noticeLoop(ctx context.Context) {
	defer c.wg.Done()
	for {
		notice, ok := c.mb.Notices(ctx)
		if !ok {
			return
		}
		if _, err := c.SendMessage(ctx, notice.ChatID, notice.Text); err != nil {
			logger.WarnCF("telegram", "notice delivery failed", map[string]any{
				"chat_id": notice.ChatID,
				"error":   err.Error(),
			})
		}
	}
}

func (c *Channel) handleUpdate(ctx context.Context, update telego.Update) {
	// Edited messages are deliberately not re-moderated.
	msg := update.Message
	if msg == nil {
		return
	}

	if len(msg.NewChatMembers) > 0 {
		c.handleJoins(ctx, msg)
		return
	}

	if msg.From != nil && msg.From.ID == c.self.ID {
		return
	}

	if cmd, ok := c.command(msg); ok {
		c.handleCommand(ctx, msg, cmd)
		return
	}

	if msg.Chat.Type != telego.ChatTypeGroup && msg.Chat.Type != telego.ChatTypeSupergroup {
		return
	}

	m := parser.Build(msg, c.trusted, c.isNewMember(msg.Chat.ID, senderID(msg)))
	if err := c.mb.Publish(ctx, bus.Event{Message: &m}); err != nil {
		logger.WarnCF("telegram", "event dropped", map[string]any{
			"chat_id": msg.Chat.ID,
			"error":   err.Error(),
		})
		return
	}
	c.processed.Add(1)
}

func (c *Channel) handleJoins(ctx context.Context, msg *telego.Message) {
	now := time.Now()
	for _, user := range msg.NewChatMembers {
		c.markJoined(msg.Chat.ID, user.ID, now)

		if !c.checkUsernames || user.IsBot {
			continue
		}
		join := moderation.JoinEvent{
			ChatID:    msg.Chat.ID,
			ChatTitle: msg.Chat.Title,
			User: moderation.Sender{
				ID:        user.ID,
				Username:  user.Username,
				FirstName: user.FirstName,
				LastName:  user.LastName,
				IsBot:     user.IsBot,
			},
			Timestamp: now,
		}
		if err := c.mb.Publish(ctx, bus.Event{Join: &join}); err != nil {
			logger.WarnCF("telegram", "join event dropped", map[string]any{
				"chat_id": msg.Chat.ID,
				"user_id": user.ID,
				"error":   err.Error(),
			})
		}
	}
}

// command extracts the bot command from the message, tolerating the
// /cmd@botname form used in groups.
func (c *Channel) command(msg *telego.Message) (string, bool) {
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	cmd := strings.Fields(text)[0]
	if at := strings.Index(cmd, "@"); at > 0 {
		if !strings.EqualFold(cmd[at+1:], c.self.Username) {
			return "", false
		}
		cmd = cmd[:at]
	}
	switch cmd {
	case "/start", "/help", "/status":
		return cmd, true
	}
	return "", false
}

func (c *Channel) handleCommand(ctx context.Context, msg *telego.Message, cmd string) {
	var text string
	switch cmd {
	case "/start":
		text = "👋 群组垃圾消息防护已启用。\n把我设为群管理员后，我会自动识别并处理垃圾消息。\n使用 /help 查看说明。"
	case "/help":
		text = "🛡️ 使用说明\n" +
			"- 我会分析群内消息并自动删除垃圾消息\n" +
			"- 管理员和白名单用户的消息不会被检测\n" +
			"- 使用 /status 查看运行状态"
	case "/status":
		text = c.statusText()
	}
	if _, err := c.SendMessage(ctx, msg.Chat.ID, text); err != nil {
		logger.WarnCF("telegram", "command reply failed", map[string]any{
			"command": cmd,
			"error":   err.Error(),
		})
	}
}

func (c *Channel) statusText() string {
	return fmt.Sprintf("✅ 运行中\n⏱️ 运行时长: %s\n📨 已处理消息: %d",
		formatUptime(time.Since(c.startedAt)), c.processed.Load())
}

func formatUptime(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

func (c *Channel) markJoined(chatID, userID int64, at time.Time) {
	c.joinMu.Lock()
	defer c.joinMu.Unlock()
	c.recentJoins[joinKey(chatID, userID)] = at
	// Opportunistic cleanup keeps the map bounded.
	if len(c.recentJoins) > 10000 {
		cutoff := at.Add(-newMemberWindow)
		for k, t := range c.recentJoins {
			if t.Before(cutoff) {
				delete(c.recentJoins, k)
			}
		}
	}
}

func (c *Channel) isNewMember(chatID, userID int64) bool {
	if userID == 0 {
		return false
	}
	c.joinMu.Lock()
	defer c.joinMu.Unlock()
	joined, ok := c.recentJoins[joinKey(chatID, userID)]
	return ok && time.Since(joined) < newMemberWindow
}

func joinKey(chatID, userID int64) string {
	return fmt.Sprintf("%d:%d", chatID, userID)
}

func senderID(msg *telego.Message) int64 {
	if msg.From == nil {
		return 0
	}
	return msg.From.ID
}

// DeleteMessage implements moderation.ChatActions.
func (c *Channel) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	err := c.bot.DeleteMessage(ctx, &telego.DeleteMessageParams{
		ChatID:    tu.ID(chatID),
		MessageID: messageID,
	})
	return wrapPermission(err)
}

// BanMember implements moderation.ChatActions.
func (c *Channel) BanMember(ctx context.Context, chatID, userID int64) error {
	err := c.bot.BanChatMember(ctx, &telego.BanChatMemberParams{
		ChatID: tu.ID(chatID),
		UserID: userID,
	})
	return wrapPermission(err)
}

// SendMessage implements moderation.ChatActions.
func (c *Channel) SendMessage(ctx context.Context, chatID int64, text string) (int, error) {
	msg, err := c.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text))
	if err != nil {
		return 0, wrapPermission(err)
	}
	return msg.MessageID, nil
}

// wrapPermission tags Telegram API errors caused by missing bot rights
// with moderation.ErrPermissionDenied so the enforcer can report them
// distinctly.
func wrapPermission(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *telegoapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	desc := strings.ToLower(apiErr.Description)
	if apiErr.ErrorCode == 403 ||
		strings.Contains(desc, "not enough rights") ||
		strings.Contains(desc, "can't be deleted") ||
		strings.Contains(desc, "chat_admin_required") ||
		strings.Contains(desc, "user is an administrator") {
		return fmt.Errorf("%w: %s", moderation.ErrPermissionDenied, apiErr.Description)
	}
	return err
}
