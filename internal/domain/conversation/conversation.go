package conversation

import (
	"context"
	"fmt"
	"time"

	"relaydesk/services/channel-api/internal/utils/stringutils"
)

// ===============================================
// Conversation Types
// ===============================================

type ConversationStatus string

const (
	ConversationStatusActive  ConversationStatus = "active"
	ConversationStatusDeleted ConversationStatus = "deleted"
)

// SessionKeyNamespace prefixes session keys so one table can host more
// providers later without colliding addresses.
const SessionKeyNamespace = "wa"

// ===============================================
// Conversation Structure
// ===============================================

// Conversation identifies one ongoing exchange between a remote participant
// and one bot. At most one non-forked conversation exists per (participant,
// bot) pair; the unique session key enforces this across instances.
type Conversation struct {
	ID                  uint               `json:"-"`
	PublicID            string             `json:"id"`
	SessionKey          string             `json:"session_key"`
	BotID               uint               `json:"-"`
	ParticipantAddress  string             `json:"participant_address"`
	Status              ConversationStatus `json:"status"`
	ManualMode          bool               `json:"manual_mode"`
	LastHumanActivityAt *time.Time         `json:"last_human_activity_at,omitempty"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

// SessionKey derives the deterministic identifier used to find or reuse a
// conversation for a (participant, bot) pair.
func SessionKey(participantAddress string, botID uint) string {
	return fmt.Sprintf("%s:%s:%d", SessionKeyNamespace, stringutils.NormalizeAddress(participantAddress), botID)
}

// NewConversation creates an active conversation for the given pair.
func NewConversation(publicID, participantAddress string, botID uint) *Conversation {
	now := time.Now()
	return &Conversation{
		PublicID:           publicID,
		SessionKey:         SessionKey(participantAddress, botID),
		BotID:              botID,
		ParticipantAddress: stringutils.NormalizeAddress(participantAddress),
		Status:             ConversationStatusActive,
		ManualMode:         false,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// ===============================================
// Conversation Repository
// ===============================================

type ConversationRepository interface {
	// Create persists a new conversation. A session-key uniqueness violation
	// surfaces as a Conflict-tagged error so callers can re-fetch the winner.
	Create(ctx context.Context, conv *Conversation) error
	// FindBySessionKey looks up a conversation in any status. Missing rows
	// surface as a NotFound-tagged error.
	FindBySessionKey(ctx context.Context, sessionKey string) (*Conversation, error)
	FindByID(ctx context.Context, id uint) (*Conversation, error)
	Update(ctx context.Context, conv *Conversation) error
	SetStatus(ctx context.Context, id uint, status ConversationStatus) error

	// MarkManual enters or refreshes manual mode in one write.
	MarkManual(ctx context.Context, id uint, at time.Time) error
	// ReleaseIdleManual flips every conversation whose human has been idle
	// past the cutoff back to automatic mode. The staleness predicate is
	// applied at write time so an echo arriving mid-sweep is never clobbered.
	ReleaseIdleManual(ctx context.Context, cutoff time.Time) (int64, error)
}
