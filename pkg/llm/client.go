// Package llm implements the classifier over chat-completion APIs.
// It owns prompt construction, input truncation and strict parsing of
// the model's JSON verdict. Transport failures and malformed replies
// surface as errors; the caller decides how to degrade.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/groupwarden/groupwarden/pkg/config"
	"github.com/groupwarden/groupwarden/pkg/logger"
	"github.com/groupwarden/groupwarden/pkg/moderation"
)

const (
	spamSystemPrompt     = "你是一个专业的内容审核助手，擅长识别垃圾消息和不当内容。"
	usernameSystemPrompt = "你是一个专业的群组安全审核助手，专注识别违规用户名。"
)

// ChatCompleter is the minimal surface a model backend must provide.
type ChatCompleter interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Client implements moderation.Classifier and moderation.UsernameChecker
// on top of a ChatCompleter backend.
type Client struct {
	backend        ChatCompleter
	timeout        time.Duration
	maxInputChars  int
	prompt         string
	usernamePrompt string
}

// NewClient builds a Client for the configured provider.
func NewClient(cfg config.LLMConfig) (*Client, error) {
	var backend ChatCompleter
	switch cfg.Provider {
	case "openai":
		backend = newOpenAIBackend(cfg)
	case "anthropic":
		backend = newAnthropicBackend(cfg)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
	return newClient(cfg, backend), nil
}

func newClient(cfg config.LLMConfig, backend ChatCompleter) *Client {
	return &Client{
		backend:        backend,
		timeout:        time.Duration(cfg.TimeoutSeconds) * time.Second,
		maxInputChars:  cfg.MaxInputChars,
		prompt:         cfg.SpamPromptTemplate(),
		usernamePrompt: cfg.UsernamePromptTemplate(),
	}
}

// Classify sends one classification request for the message and parses
// the verdict. Exactly one attempt; the timeout bounds the whole call.
func (c *Client) Classify(ctx context.Context, msg moderation.Message) (moderation.Verdict, error) {
	reqID := uuid.NewString()
	prompt := c.buildSpamPrompt(msg)

	logger.DebugCF("llm", "classification request", map[string]any{
		"request_id": reqID,
		"chat_id":    msg.ChatID,
		"user_id":    msg.Sender.ID,
		"chars":      len(prompt),
	})

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	raw, err := c.backend.Complete(ctx, spamSystemPrompt, prompt)
	if err != nil {
		return moderation.Verdict{}, fmt.Errorf("completion request %s: %w", reqID, err)
	}

	verdict, err := parseVerdict(raw)
	if err != nil {
		return moderation.Verdict{}, fmt.Errorf("parse verdict for request %s: %w", reqID, err)
	}

	logger.InfoCF("llm", "classification verdict", map[string]any{
		"request_id": reqID,
		"chat_id":    msg.ChatID,
		"is_spam":    verdict.IsSpam,
		"confidence": verdict.Confidence,
		"category":   verdict.Category,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return verdict, nil
}

// CheckUsername screens a join-time username with the same verdict
// contract as message classification.
func (c *Client) CheckUsername(ctx context.Context, join moderation.JoinEvent) (moderation.Verdict, error) {
	joinText := join.JoinText
	if joinText == "" {
		joinText = "（无）"
	}
	prompt := strings.NewReplacer(
		"{username}", orPlaceholder(join.User.Username),
		"{full_name}", orPlaceholder(strings.TrimSpace(join.User.FirstName+" "+join.User.LastName)),
		"{join_message}", truncate(joinText, c.maxInputChars),
	).Replace(c.usernamePrompt)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.backend.Complete(ctx, usernameSystemPrompt, prompt)
	if err != nil {
		return moderation.Verdict{}, fmt.Errorf("username check: %w", err)
	}
	return parseVerdict(raw)
}

func (c *Client) buildSpamPrompt(msg moderation.Message) string {
	return strings.NewReplacer(
		"{message_text}", truncate(msg.Analysis, c.maxInputChars),
		"{username}", orPlaceholder(msg.Sender.Username),
		"{user_id}", strconv.FormatInt(msg.Sender.ID, 10),
		"{is_new_member}", boolZH(msg.IsNewMember),
		"{risk_indicators}", riskIndicators(msg),
	).Replace(c.prompt)
}

func riskIndicators(msg moderation.Message) string {
	if len(msg.RiskFlags) == 0 {
		return "无"
	}
	var sb strings.Builder
	for _, flag := range msg.RiskFlags {
		sb.WriteString("- ")
		sb.WriteString(flag)
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "风险评分: %.1f", msg.RiskScore)
	return sb.String()
}

// truncate caps s at max runes. Long inputs are clipped rather than
// rejected so flooding with oversized messages cannot dodge review.
func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}

func orPlaceholder(s string) string {
	if s == "" {
		return "（无）"
	}
	return s
}

func boolZH(b bool) string {
	if b {
		return "是"
	}
	return "否"
}

// rawVerdict tolerates both the message verdict shape (is_spam) and the
// username verdict shape (is_violation). Pointer fields distinguish
// absent from false.
type rawVerdict struct {
	IsSpam      *bool    `json:"is_spam"`
	IsViolation *bool    `json:"is_violation"`
	Confidence  *float64 `json:"confidence"`
	Reason      string   `json:"reason"`
	Category    string   `json:"category"`
}

// parseVerdict decodes the model's JSON reply, tolerating markdown code
// fences around the object. Missing required fields are an error, never
// a guess.
func parseVerdict(raw string) (moderation.Verdict, error) {
	cleaned := stripFences(raw)
	if cleaned == "" {
		return moderation.Verdict{}, errors.New("empty completion")
	}

	var rv rawVerdict
	if err := json.Unmarshal([]byte(cleaned), &rv); err != nil {
		return moderation.Verdict{}, fmt.Errorf("invalid verdict JSON: %w", err)
	}

	flagged := rv.IsSpam
	if flagged == nil {
		flagged = rv.IsViolation
	}
	if flagged == nil {
		return moderation.Verdict{}, errors.New("verdict missing is_spam field")
	}
	if rv.Confidence == nil {
		return moderation.Verdict{}, errors.New("verdict missing confidence field")
	}

	confidence := *rv.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	category := rv.Category
	if *flagged && category == "" {
		category = "other"
	}
	if !*flagged {
		category = "none"
	}

	return moderation.Verdict{
		IsSpam:     *flagged,
		Confidence: confidence,
		Reason:     rv.Reason,
		Category:   category,
	}, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return s
}
