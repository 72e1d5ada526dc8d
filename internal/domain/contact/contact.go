package contact

import (
	"context"
	"time"
)

// ===============================================
// Contact Types
// ===============================================

// Source records which ingestion path last touched the contact.
type Source string

const (
	SourceMessage Source = "message"
	SourceHistory Source = "history"
	SourceSync    Source = "sync"
)

// Contact is the denormalized participant identity per bot, unique on
// (BotID, Address). It is created or updated opportunistically whenever a
// message or sync event carries identity metadata; a Conversation never
// requires it to exist first.
type Contact struct {
	ID                uint      `json:"-"`
	BotID             uint      `json:"-"`
	Address           string    `json:"address"`
	DisplayName       string    `json:"display_name"`
	ProfilePictureURL *string   `json:"profile_picture_url,omitempty"`
	Source            Source    `json:"source"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ===============================================
// Contact Repository
// ===============================================

type Repository interface {
	// Upsert inserts the contact or updates the existing (BotID, Address)
	// row in one statement. Empty incoming fields never overwrite known
	// values.
	Upsert(ctx context.Context, c *Contact) error
	FindByAddress(ctx context.Context, botID uint, address string) (*Contact, error)
}
