package conversation

import (
	"context"
	"time"
)

// ===============================================
// Message Types
// ===============================================

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// MessageChannel tags how a message entered the system.
type MessageChannel string

const (
	// MessageChannelNormal is the standard webhook delivery path.
	MessageChannelNormal MessageChannel = "normal"
	// MessageChannelEcho marks messages the business sent through the
	// provider's own client, mirrored back via webhook.
	MessageChannelEcho MessageChannel = "echo"
	// MessageChannelHistory marks messages merged from a bulk history sync.
	MessageChannelHistory MessageChannel = "history"
)

// MediaUnavailablePlaceholder is persisted as content when a message's media
// could not be downloaded. The message itself is never dropped.
const MediaUnavailablePlaceholder = "[media unavailable]"

// ===============================================
// Message Structure
// ===============================================

// Message is one unit of conversation content. (ConversationID, ExternalID)
// is unique when ExternalID is present; that pair is the idempotence anchor
// for history merge and echo handling. A message is created once and never
// mutated, except to backfill the provider-assigned id after an outbound
// send.
type Message struct {
	ID             uint           `json:"-"`
	PublicID       string         `json:"id"`
	ConversationID uint           `json:"-"`
	Role           MessageRole    `json:"role"`
	Content        string         `json:"content"`
	Channel        MessageChannel `json:"channel"`
	ExternalID     *string        `json:"external_id,omitempty"`
	MediaID        *string        `json:"media_id,omitempty"`
	MediaType      *string        `json:"media_type,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// ===============================================
// Message Repository
// ===============================================

type MessageFilter struct {
	ConversationID *uint
	ExternalID     *string
	Channel        *MessageChannel
}

type MessageRepository interface {
	// Add persists a message unconditionally (used for outbound replies,
	// which have no external id yet).
	Add(ctx context.Context, msg *Message) error

	// InsertIfAbsent atomically inserts msg unless a row with the same
	// (ConversationID, ExternalID) already exists, reporting whether this
	// call inserted. This is the exactly-once anchor for inbound, echo and
	// history messages; it must never be a read-then-write pair.
	InsertIfAbsent(ctx context.Context, msg *Message) (bool, error)

	// SetExternalID backfills the provider-assigned message id after an
	// outbound send.
	SetExternalID(ctx context.Context, id uint, externalID string) error

	// Recent returns up to limit messages for the conversation, oldest
	// first, for handing to the reply engine as context.
	Recent(ctx context.Context, conversationID uint, limit int) ([]*Message, error)

	Count(ctx context.Context, filter MessageFilter) (int64, error)
}
