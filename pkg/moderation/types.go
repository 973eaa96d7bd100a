// Package moderation holds the decision pipeline for group messages:
// bypass checks, LLM classification with a fail-open default, threshold
// decisions, and enforcement against the chat platform.
package moderation

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrPermissionDenied marks enforcement failures caused by missing bot
// rights in the chat (not admin, or the target is itself an admin).
// Surfaced to operators through logs, never into the chat.
var ErrPermissionDenied = errors.New("bot lacks required chat permissions")

// Sender identifies the author of a group message.
type Sender struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
	IsBot     bool
}

// DisplayName returns the best human-readable name for the sender.
func (s Sender) DisplayName() string {
	if s.Username != "" {
		return "@" + s.Username
	}
	name := strings.TrimSpace(s.FirstName + " " + s.LastName)
	if name != "" {
		return name
	}
	return "unknown"
}

// Message is an immutable snapshot of one incoming group message.
// Analysis carries the parser-built text handed to the classifier;
// RiskScore and RiskFlags summarize structural signals (forwards,
// links, buttons) computed before any remote call.
type Message struct {
	ChatID      int64
	ChatTitle   string
	ChatType    string
	MessageID   int
	Sender      Sender
	Text        string
	Analysis    string
	RiskScore   float64
	RiskFlags   []string
	IsNewMember bool
	Timestamp   time.Time
}

// Verdict is the classifier's structured judgment on one message.
type Verdict struct {
	IsSpam     bool    `json:"is_spam"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
	Category   string  `json:"category"`
}

// FallbackVerdict is the deterministic verdict used whenever
// classification cannot complete. It always reads as not-spam so an
// unreachable or misbehaving model never causes enforcement.
func FallbackVerdict() Verdict {
	return Verdict{
		IsSpam:     false,
		Confidence: 0,
		Reason:     "classification unavailable",
		Category:   "none",
	}
}

// Outcome is the result of processing one message: either the message
// was skipped before classification (with a reason), or it was
// classified and carries a verdict. The zero Outcome is invalid; use
// Skip or Classified.
type Outcome struct {
	skipped bool
	reason  string
	verdict Verdict
}

// Skip builds an Outcome for a message that bypassed classification.
func Skip(reason string) Outcome {
	return Outcome{skipped: true, reason: reason}
}

// Classified builds an Outcome carrying a classifier verdict.
func Classified(v Verdict) Outcome {
	return Outcome{verdict: v}
}

// Skipped reports whether the message bypassed classification,
// and the reason when it did.
func (o Outcome) Skipped() (string, bool) {
	return o.reason, o.skipped
}

// Verdict returns the classifier verdict when the message was classified.
func (o Outcome) Verdict() (Verdict, bool) {
	if o.skipped {
		return Verdict{}, false
	}
	return o.verdict, true
}

// Decision says what enforcement a message should receive. Derived
// purely from an Outcome and the configured threshold; never stored.
type Decision struct {
	ShouldDelete bool
	ShouldBan    bool
}

// Classifier produces a Verdict for a message via a remote model call.
type Classifier interface {
	Classify(ctx context.Context, msg Message) (Verdict, error)
}

// ChatActions is the slice of the chat platform the enforcer needs.
// SendMessage returns the sent message ID so transient notices can be
// cleaned up later.
type ChatActions interface {
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	BanMember(ctx context.Context, chatID, userID int64) error
	SendMessage(ctx context.Context, chatID int64, text string) (int, error)
}

// JoinEvent describes a user joining a chat, used for join-time
// username screening.
type JoinEvent struct {
	ChatID    int64
	ChatTitle string
	User      Sender
	JoinText  string
	Timestamp time.Time
}

// UsernameChecker screens join-time usernames for violations.
type UsernameChecker interface {
	CheckUsername(ctx context.Context, join JoinEvent) (Verdict, error)
}
