package conversation

import (
	"context"
	"time"

	"relaydesk/services/channel-api/internal/utils/platformerrors"
)

// DefaultManualModeTimeout is how long a conversation stays in manual mode
// after the last observed human activity.
const DefaultManualModeTimeout = 30 * time.Minute

// Takeover decides per conversation whether the automated responder may
// answer. It is purely activity-driven: an echo (the business replying
// through the provider's own client) enters or refreshes manual mode, and
// only the auto-release sweep leaves it. There is no user-initiated
// transition in this path.
type Takeover struct {
	repo    ConversationRepository
	timeout time.Duration
}

// NewTakeover creates the state machine over the given repository. A
// non-positive timeout falls back to DefaultManualModeTimeout.
func NewTakeover(repo ConversationRepository, timeout time.Duration) *Takeover {
	if timeout <= 0 {
		timeout = DefaultManualModeTimeout
	}
	return &Takeover{repo: repo, timeout: timeout}
}

// AllowAutoReply reports whether the responder may answer in this
// conversation.
func (t *Takeover) AllowAutoReply(conv *Conversation) bool {
	return !conv.ManualMode
}

// MarkManual records human activity: AUTO conversations enter manual mode,
// MANUAL conversations refresh their activity timestamp. One write either
// way.
func (t *Takeover) MarkManual(ctx context.Context, conv *Conversation) error {
	now := time.Now()
	if err := t.repo.MarkManual(ctx, conv.ID, now); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to mark conversation manual")
	}
	conv.ManualMode = true
	conv.LastHumanActivityAt = &now
	return nil
}

// ReleaseIdle flips conversations whose human has been inactive past the
// timeout back to automatic mode and returns how many were released. Safe to
// run concurrently with itself and with echo handling: the repository scopes
// the update with the staleness predicate at write time, so a fresh echo is
// never clobbered.
func (t *Takeover) ReleaseIdle(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-t.timeout)
	released, err := t.repo.ReleaseIdleManual(ctx, cutoff)
	if err != nil {
		return 0, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to release idle manual conversations")
	}
	return released, nil
}
