package moderation

import (
	"context"

	"github.com/groupwarden/groupwarden/pkg/logger"
)

// Detector runs the bypass check and, when none applies, exactly one
// classifier call per message. Classifier failures degrade to the
// fail-open fallback verdict; they are logged but never propagated.
type Detector struct {
	policy     *Policy
	classifier Classifier
}

func NewDetector(policy *Policy, classifier Classifier) *Detector {
	return &Detector{policy: policy, classifier: classifier}
}

// Check produces the Outcome and Decision for one message.
func (d *Detector) Check(ctx context.Context, msg Message) (Outcome, Decision) {
	if reason, ok := d.policy.Bypass(msg); ok {
		logger.DebugCF("detector", "message bypassed classification", map[string]any{
			"chat_id": msg.ChatID,
			"user_id": msg.Sender.ID,
			"reason":  reason,
		})
		outcome := Skip(reason)
		return outcome, d.policy.Decide(outcome)
	}

	verdict, err := d.classifier.Classify(ctx, msg)
	if err != nil {
		logger.ErrorCF("detector", "classification failed, failing open", map[string]any{
			"chat_id":    msg.ChatID,
			"message_id": msg.MessageID,
			"error":      err.Error(),
		})
		verdict = FallbackVerdict()
	}

	outcome := Classified(verdict)
	return outcome, d.policy.Decide(outcome)
}
