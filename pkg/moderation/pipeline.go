package moderation

import (
	"context"

	"github.com/groupwarden/groupwarden/pkg/logger"
)

// Pipeline ties detection and enforcement together. Each message runs
// through Process independently; all shared state is read-only config,
// so concurrent pipelines need no locking.
type Pipeline struct {
	policy   *Policy
	detector *Detector
	enforcer *Enforcer
	checker  UsernameChecker
}

func NewPipeline(policy *Policy, detector *Detector, enforcer *Enforcer) *Pipeline {
	return &Pipeline{
		policy:   policy,
		detector: detector,
		enforcer: enforcer,
	}
}

// SetUsernameChecker enables join-time username screening.
func (p *Pipeline) SetUsernameChecker(c UsernameChecker) {
	p.checker = c
}

// Process runs one message end to end and returns its Outcome.
func (p *Pipeline) Process(ctx context.Context, msg Message) Outcome {
	outcome, decision := p.detector.Check(ctx, msg)

	if reason, ok := outcome.Skipped(); ok {
		logger.DebugCF("pipeline", "message skipped", map[string]any{
			"chat_id": msg.ChatID,
			"user_id": msg.Sender.ID,
			"reason":  reason,
		})
		return outcome
	}

	v, _ := outcome.Verdict()
	if decision.ShouldDelete || decision.ShouldBan {
		p.enforcer.Enforce(ctx, msg, decision, v)
	} else if v.IsSpam {
		logger.InfoCF("pipeline", "spam below threshold, no action", map[string]any{
			"chat_id":    msg.ChatID,
			"user_id":    msg.Sender.ID,
			"confidence": v.Confidence,
			"threshold":  p.policy.Threshold(),
		})
	}
	return outcome
}

// ProcessJoin screens a joining user's name when a checker is set.
// Trusted users are never screened. Checker failures fail open.
func (p *Pipeline) ProcessJoin(ctx context.Context, join JoinEvent) {
	if p.checker == nil {
		return
	}
	if join.User.IsBot || p.policy.Trusted(join.User.ID) {
		return
	}

	v, err := p.checker.CheckUsername(ctx, join)
	if err != nil {
		logger.ErrorCF("pipeline", "username check failed, failing open", map[string]any{
			"chat_id": join.ChatID,
			"user_id": join.User.ID,
			"error":   err.Error(),
		})
		return
	}

	if v.IsSpam && v.Confidence >= p.policy.Threshold() {
		p.enforcer.EnforceJoin(ctx, join, v)
	}
}
