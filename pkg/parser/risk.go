package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/mymmrac/telego"

	"github.com/groupwarden/groupwarden/pkg/moderation"
)

// Risk computes the structural risk score and flags for a message.
// Weights follow the tuned production values: channel forwards and
// shared contacts weigh heaviest, stacked signals add a combo bonus,
// and the score is capped at 1.0.
func Risk(p Parsed) (float64, []string) {
	var score float64
	var flags []string

	channelForward := p.Forward != nil && (p.Forward.FromChannel || p.Forward.FromGroup)
	if channelForward {
		score += 0.4
		flags = append(flags, "频道转发")
	}
	if n := len(p.TelegramLinks); n > 0 {
		score += 0.3
		flags = append(flags, fmt.Sprintf("%d个Telegram链接", n))
	}
	if n := len(p.ExternalLinks); n > 0 {
		capped := n
		if capped > 3 {
			capped = 3
		}
		score += 0.1 * float64(capped)
		flags = append(flags, fmt.Sprintf("%d个外部链接", n))
	}
	hasContact := p.hasMediaType("contact")
	if hasContact {
		score += 0.3
		flags = append(flags, "包含联系人")
	}
	if len(p.Buttons) > 0 {
		score += 0.2
		flags = append(flags, "包含按钮")
	}
	if p.IsMediaGroup {
		score += 0.1
		flags = append(flags, "媒体组")
	}

	risks := 0
	for _, present := range []bool{
		channelForward,
		len(p.TelegramLinks) > 0,
		len(p.ExternalLinks) > 0,
		hasContact,
		len(p.Buttons) > 0,
	} {
		if present {
			risks++
		}
	}
	if risks >= 2 {
		score += 0.2
	}

	if score > 1.0 {
		score = 1.0
	}
	return score, flags
}

// Build assembles the pipeline's Message from a raw update. trusted is
// forwarded to the analysis formatter for the whitelisted-reply rule.
func Build(msg *telego.Message, trusted func(int64) bool, isNewMember bool) moderation.Message {
	parsed := Parse(msg)
	score, flags := Risk(parsed)

	var sender moderation.Sender
	if msg.From != nil {
		sender = moderation.Sender{
			ID:        msg.From.ID,
			Username:  msg.From.Username,
			FirstName: msg.From.FirstName,
			LastName:  msg.From.LastName,
			IsBot:     msg.From.IsBot,
		}
	}

	text := msg.Text
	if text == "" {
		text = msg.Caption
	}

	return moderation.Message{
		ChatID:      msg.Chat.ID,
		ChatTitle:   msg.Chat.Title,
		ChatType:    msg.Chat.Type,
		MessageID:   msg.MessageID,
		Sender:      sender,
		Text:        text,
		Analysis:    strings.TrimSpace(FormatForAnalysis(parsed, trusted)),
		RiskScore:   score,
		RiskFlags:   flags,
		IsNewMember: isNewMember,
		Timestamp:   time.Unix(msg.Date, 0),
	}
}
