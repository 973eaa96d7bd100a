// Package parser turns raw Telegram messages into the structured form
// the moderation pipeline works with: categorized links, forward and
// reply context, media presence and inline buttons. Media content is
// never downloaded or analyzed; only its presence feeds risk signals.
package parser

import (
	"strings"
	"unicode/utf16"

	"github.com/mymmrac/telego"
)

// Parsed is the structured view of one message.
type Parsed struct {
	Text    string
	Caption string

	TelegramLinks []string
	ExternalLinks []string
	Mentions      []string
	Hashtags      []string
	BotCommands   []string

	Forward *Forward
	Reply   *Reply
	Buttons [][]Button

	MediaTypes   []string
	Contact      *Contact
	IsMediaGroup bool

	IsAutomaticForward  bool
	HasProtectedContent bool
	Edited              bool
}

// Forward describes where a forwarded message came from.
type Forward struct {
	FromChannel  bool
	FromGroup    bool
	ChatTitle    string
	ChatUsername string
	SenderName   string
}

// Reply captures the context of the message being replied to.
type Reply struct {
	UserID        int64
	Username      string
	FullName      string
	Text          string
	FromChannel   bool
	ChannelTitle  string
	TelegramLinks []string
	ExternalLinks []string
	Mentions      []string
	MediaTypes    []string
	ButtonCount   int
}

// Button is one inline keyboard button.
type Button struct {
	Text string
	URL  string
}

// Contact is shared contact info attached to a message.
type Contact struct {
	FirstName   string
	LastName    string
	PhoneNumber string
}

// Parse extracts everything the pipeline needs from one message.
func Parse(msg *telego.Message) Parsed {
	p := Parsed{
		Text:                msg.Text,
		Caption:             msg.Caption,
		IsAutomaticForward:  msg.IsAutomaticForward,
		HasProtectedContent: msg.HasProtectedContent,
		Edited:              msg.EditDate != 0,
		IsMediaGroup:        msg.MediaGroupID != "",
	}

	categorize(&p, msg.Entities, msg.Text)
	categorize(&p, msg.CaptionEntities, msg.Caption)

	p.Forward = forwardInfo(msg.ForwardOrigin)
	p.Reply = replyInfo(msg.ReplyToMessage)
	p.Buttons = buttonsInfo(msg.ReplyMarkup)
	p.MediaTypes = mediaTypes(msg)

	if msg.Contact != nil {
		p.Contact = &Contact{
			FirstName:   msg.Contact.FirstName,
			LastName:    msg.Contact.LastName,
			PhoneNumber: msg.Contact.PhoneNumber,
		}
	}

	return p
}

// categorize sorts entities into link, mention, hashtag and command
// buckets, resolving entity text from UTF-16 offsets.
func categorize(p *Parsed, entities []telego.MessageEntity, text string) {
	if len(entities) == 0 || text == "" {
		return
	}
	encoded := utf16.Encode([]rune(text))
	for _, e := range entities {
		value := entityText(encoded, e.Offset, e.Length)
		switch e.Type {
		case telego.EntityTypeURL:
			addLink(p, value)
		case telego.EntityTypeTextLink:
			addLink(p, e.URL)
		case telego.EntityTypeMention:
			p.Mentions = append(p.Mentions, value)
		case telego.EntityTypeHashtag:
			p.Hashtags = append(p.Hashtags, value)
		case telego.EntityTypeBotCommand:
			p.BotCommands = append(p.BotCommands, value)
		}
	}
}

func addLink(p *Parsed, url string) {
	if url == "" {
		return
	}
	lower := strings.ToLower(url)
	if strings.Contains(lower, "t.me/") || strings.Contains(lower, "telegram.me/") {
		p.TelegramLinks = append(p.TelegramLinks, url)
	} else {
		p.ExternalLinks = append(p.ExternalLinks, url)
	}
}

// entityText slices the UTF-16 encoded text by Telegram entity offsets.
// Byte or rune offsets would corrupt entities after emoji or CJK text.
func entityText(encoded []uint16, offset, length int) string {
	if offset < 0 || length <= 0 || offset+length > len(encoded) {
		return ""
	}
	return string(utf16.Decode(encoded[offset : offset+length]))
}

func forwardInfo(origin telego.MessageOrigin) *Forward {
	switch o := origin.(type) {
	case nil:
		return nil
	case *telego.MessageOriginChannel:
		return &Forward{
			FromChannel:  true,
			ChatTitle:    o.Chat.Title,
			ChatUsername: o.Chat.Username,
		}
	case *telego.MessageOriginChat:
		return &Forward{
			FromGroup:    true,
			ChatTitle:    o.SenderChat.Title,
			ChatUsername: o.SenderChat.Username,
		}
	case *telego.MessageOriginUser:
		return &Forward{
			SenderName: strings.TrimSpace(o.SenderUser.FirstName + " " + o.SenderUser.LastName),
		}
	case *telego.MessageOriginHiddenUser:
		return &Forward{SenderName: o.SenderUserName}
	default:
		return &Forward{}
	}
}

func replyInfo(replied *telego.Message) *Reply {
	if replied == nil {
		return nil
	}

	r := &Reply{Text: replied.Text}
	if r.Text == "" {
		r.Text = replied.Caption
	}
	if replied.From != nil {
		r.UserID = replied.From.ID
		r.Username = replied.From.Username
		r.FullName = strings.TrimSpace(replied.From.FirstName + " " + replied.From.LastName)
	}

	if origin, ok := replied.ForwardOrigin.(*telego.MessageOriginChannel); ok {
		r.FromChannel = true
		r.ChannelTitle = origin.Chat.Title
	}

	var inner Parsed
	categorize(&inner, replied.Entities, replied.Text)
	categorize(&inner, replied.CaptionEntities, replied.Caption)
	r.TelegramLinks = inner.TelegramLinks
	r.ExternalLinks = inner.ExternalLinks
	r.Mentions = inner.Mentions

	r.MediaTypes = mediaTypes(replied)
	for _, row := range buttonsInfo(replied.ReplyMarkup) {
		r.ButtonCount += len(row)
	}

	return r
}

func buttonsInfo(markup *telego.InlineKeyboardMarkup) [][]Button {
	if markup == nil || len(markup.InlineKeyboard) == 0 {
		return nil
	}
	rows := make([][]Button, 0, len(markup.InlineKeyboard))
	for _, row := range markup.InlineKeyboard {
		buttons := make([]Button, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, Button{Text: b.Text, URL: b.URL})
		}
		rows = append(rows, buttons)
	}
	return rows
}

func mediaTypes(msg *telego.Message) []string {
	var types []string
	if len(msg.Photo) > 0 {
		types = append(types, "photo")
	}
	if msg.Video != nil {
		types = append(types, "video")
	}
	if msg.Document != nil {
		types = append(types, "document")
	}
	if msg.Audio != nil {
		types = append(types, "audio")
	}
	if msg.Voice != nil {
		types = append(types, "voice")
	}
	if msg.VideoNote != nil {
		types = append(types, "video_note")
	}
	if msg.Sticker != nil {
		types = append(types, "sticker")
	}
	if msg.Animation != nil {
		types = append(types, "animation")
	}
	if msg.Contact != nil {
		types = append(types, "contact")
	}
	if msg.Location != nil {
		types = append(types, "location")
	}
	if msg.Venue != nil {
		types = append(types, "venue")
	}
	if msg.Poll != nil {
		types = append(types, "poll")
	}
	if msg.Dice != nil {
		types = append(types, "dice")
	}
	return types
}

// HasMedia reports whether the message carries any media attachment.
func (p Parsed) HasMedia() bool {
	return len(p.MediaTypes) > 0
}

func (p Parsed) hasMediaType(t string) bool {
	for _, mt := range p.MediaTypes {
		if mt == t {
			return true
		}
	}
	return false
}
