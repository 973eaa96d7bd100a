package moderation

import (
	"strings"

	"github.com/groupwarden/groupwarden/pkg/config"
)

// Skip reasons reported in logs and /status output.
const (
	SkipAdmin     = "admin user"
	SkipSystem    = "system whitelist user"
	SkipBot       = "bot message"
	SkipKeyword   = "allow keyword match"
	SkipNoContent = "no analyzable content"
)

// Policy applies the configured bypass rules and the confidence
// threshold. It holds read-only config snapshots taken at startup, so
// it is safe for concurrent use without locking.
type Policy struct {
	threshold   float64
	banOnDelete bool
	admins      map[int64]bool
	system      map[int64]bool
	keywords    []string
}

func NewPolicy(cfg config.ModerationConfig) *Policy {
	admins := make(map[int64]bool, len(cfg.AdminIDs))
	for _, id := range cfg.AdminIDs {
		admins[id] = true
	}
	system := make(map[int64]bool, len(cfg.SystemIDs))
	for _, id := range cfg.SystemIDs {
		system[id] = true
	}
	return &Policy{
		threshold:   cfg.ConfidenceThreshold,
		banOnDelete: cfg.BanOnDelete,
		admins:      admins,
		system:      system,
		keywords:    cfg.AllowKeywords,
	}
}

// Bypass reports whether the message must skip classification entirely,
// and why. Order matters: sender identity wins over content checks.
func (p *Policy) Bypass(msg Message) (string, bool) {
	if p.admins[msg.Sender.ID] {
		return SkipAdmin, true
	}
	if p.system[msg.Sender.ID] {
		return SkipSystem, true
	}
	if msg.Sender.IsBot {
		return SkipBot, true
	}
	if strings.TrimSpace(msg.Analysis) == "" {
		return SkipNoContent, true
	}
	for _, kw := range p.keywords {
		if kw != "" && strings.Contains(msg.Text, kw) {
			return SkipKeyword, true
		}
	}
	return "", false
}

// Decide maps an Outcome to enforcement. Skipped messages never get
// enforcement; classified messages are deleted when spam at or above
// the threshold (inclusive), and banning mirrors deletion unless
// disabled in config.
func (p *Policy) Decide(outcome Outcome) Decision {
	v, ok := outcome.Verdict()
	if !ok {
		return Decision{}
	}
	del := v.IsSpam && v.Confidence >= p.threshold
	return Decision{
		ShouldDelete: del,
		ShouldBan:    del && p.banOnDelete,
	}
}

// Trusted reports whether the user is an admin or on the system
// whitelist. Used by the parser's reply-context rule and by the
// username screening path.
func (p *Policy) Trusted(userID int64) bool {
	return p.admins[userID] || p.system[userID]
}

// Threshold returns the configured confidence threshold.
func (p *Policy) Threshold() float64 {
	return p.threshold
}
