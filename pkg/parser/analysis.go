package parser

import (
	"fmt"
	"strings"
)

var mediaTypeZH = map[string]string{
	"photo":      "图片",
	"video":      "视频",
	"document":   "文件",
	"audio":      "音频",
	"voice":      "语音",
	"video_note": "视频消息",
	"sticker":    "贴纸",
	"animation":  "动图",
	"contact":    "联系人",
	"location":   "位置",
	"venue":      "场馆",
	"poll":       "投票",
	"dice":       "骰子",
}

const replyTextLimit = 300

// FormatForAnalysis renders the parsed message as the text block the
// classifier sees. trusted reports whether a user ID is an admin or on
// the system whitelist; when the message replies to a trusted user the
// quoted content is withheld so spam quotes cannot poison the verdict
// on an innocent reply, and vice versa.
func FormatForAnalysis(p Parsed, trusted func(int64) bool) string {
	if trusted == nil {
		trusted = func(int64) bool { return false }
	}

	var parts []string

	if p.Text != "" {
		parts = append(parts, "【消息文本】\n"+p.Text)
	}
	if p.Caption != "" {
		parts = append(parts, "【媒体说明】\n"+p.Caption)
	}

	if p.Forward != nil {
		parts = append(parts, formatForward(p.Forward))
	}
	if p.Reply != nil {
		parts = append(parts, formatReply(p.Reply, trusted))
	}

	if len(p.TelegramLinks) > 0 {
		parts = append(parts, "【⚠️ Telegram 频道/群组链接】\n"+bulleted(p.TelegramLinks))
	}
	if len(p.ExternalLinks) > 0 {
		parts = append(parts, "【外部链接】\n"+bulleted(p.ExternalLinks))
	}
	if len(p.Mentions) > 0 {
		parts = append(parts, "【提及用户】\n"+strings.Join(p.Mentions, ", "))
	}
	if len(p.Hashtags) > 0 {
		parts = append(parts, "【话题标签】\n"+strings.Join(p.Hashtags, ", "))
	}

	if p.HasMedia() {
		parts = append(parts, "【媒体类型】\n"+strings.Join(p.MediaTypes, ", "))
		if p.Contact != nil {
			parts = append(parts, fmt.Sprintf("【⚠️ 联系人信息】\n姓名: %s %s\n电话: %s",
				p.Contact.FirstName, p.Contact.LastName, orUnknown(p.Contact.PhoneNumber)))
		}
	}

	if len(p.Buttons) > 0 {
		var lines []string
		for _, row := range p.Buttons {
			for _, b := range row {
				if b.URL != "" {
					lines = append(lines, fmt.Sprintf("- %s -> %s", b.Text, b.URL))
				} else {
					lines = append(lines, "- "+b.Text)
				}
			}
		}
		parts = append(parts, "【⚠️ 消息按钮】\n"+strings.Join(lines, "\n"))
	}

	if p.IsMediaGroup {
		parts = append(parts, "【媒体组】\n此消息属于相册或媒体组")
	}
	if p.IsAutomaticForward {
		parts = append(parts, "【自动转发】\n此消息为频道自动转发到讨论组")
	}
	if p.HasProtectedContent {
		parts = append(parts, "【受保护内容】\n此消息内容受保护，无法转发或保存")
	}

	return strings.Join(parts, "\n\n")
}

func formatForward(f *Forward) string {
	lines := []string{"【⚠️ 转发消息】"}
	switch {
	case f.FromChannel || f.FromGroup:
		kind := "频道"
		if f.FromGroup {
			kind = "群组"
		}
		username := "无用户名"
		if f.ChatUsername != "" {
			username = "@" + f.ChatUsername
		}
		lines = append(lines, fmt.Sprintf("转发自%s: %s (%s)", kind, orUnknown(f.ChatTitle), username))
	case f.SenderName != "":
		lines = append(lines, "转发自: "+f.SenderName)
	}
	return strings.Join(lines, "\n")
}

func formatReply(r *Reply, trusted func(int64) bool) string {
	if r.UserID != 0 && trusted(r.UserID) {
		return strings.Join([]string{
			"【回复消息】",
			"用户正在回复白名单用户（管理员/系统账号）: " + orUnknown(r.FullName),
			"🔴 重要：被回复用户是白名单用户，请**仅根据当前用户的回复内容本身**判断，完全忽略被回复消息的内容",
			"✅ 正常的聊天回复（如打招呼、表情、礼貌用语等）不应被判定为垃圾消息",
		}, "\n")
	}

	lines := []string{"【回复消息 - 上下文分析】"}
	username := "无"
	if r.Username != "" {
		username = r.Username
	}
	lines = append(lines, fmt.Sprintf("被回复的用户: %s (@%s)", orUnknown(r.FullName), username))

	if r.Text != "" {
		text := r.Text
		if runes := []rune(text); len(runes) > replyTextLimit {
			text = string(runes[:replyTextLimit]) + "..."
		}
		lines = append(lines, "被回复的消息内容:\n"+text)
	}
	if r.FromChannel {
		lines = append(lines, fmt.Sprintf("(被回复的消息是转发自频道: %s)", orUnknown(r.ChannelTitle)))
	}
	if len(r.TelegramLinks) > 0 {
		lines = append(lines, fmt.Sprintf("(被回复消息包含 Telegram 链接: %s)", strings.Join(head(r.TelegramLinks, 2), ", ")))
	}
	if len(r.ExternalLinks) > 0 {
		lines = append(lines, fmt.Sprintf("(被回复消息包含外部链接: %s)", strings.Join(head(r.ExternalLinks, 2), ", ")))
	}
	if len(r.Mentions) > 0 {
		lines = append(lines, fmt.Sprintf("(被回复消息提及: %s)", strings.Join(head(r.Mentions, 3), ", ")))
	}
	if len(r.MediaTypes) > 0 {
		names := make([]string, 0, len(r.MediaTypes))
		for _, mt := range r.MediaTypes {
			if zh, ok := mediaTypeZH[mt]; ok {
				names = append(names, zh)
			} else {
				names = append(names, mt)
			}
		}
		lines = append(lines, fmt.Sprintf("(被回复消息包含: %s)", strings.Join(names, ", ")))
	}
	if r.ButtonCount > 0 {
		lines = append(lines, fmt.Sprintf("(被回复消息包含 %d 个按钮)", r.ButtonCount))
	}

	return strings.Join(lines, "\n")
}

func bulleted(items []string) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, "- "+item)
	}
	return strings.Join(lines, "\n")
}

func head(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func orUnknown(s string) string {
	if s == "" {
		return "未知"
	}
	return s
}
