package dbschema

import (
	"time"

	"relaydesk/services/channel-api/internal/domain/idempotency"
	"relaydesk/services/channel-api/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(IdempotencyRecord{})
}

// IdempotencyRecord represents the database schema for dedup and debounce
// markers. The composite unique index is the whole correctness mechanism:
// concurrent inserts for the same key elect exactly one winner.
type IdempotencyRecord struct {
	ID         uint             `gorm:"primarykey"`
	ExternalID string           `gorm:"type:varchar(128);uniqueIndex:ux_idempotency_key;not null"`
	ChannelKey string           `gorm:"type:varchar(128);uniqueIndex:ux_idempotency_key;not null"`
	Kind       idempotency.Kind `gorm:"type:varchar(20);uniqueIndex:ux_idempotency_key;not null"`
	CreatedAt  time.Time        `gorm:"not null"`
	ExpiresAt  time.Time        `gorm:"index:idx_idempotency_expires;not null"`
}

// NewSchemaIdempotencyRecord creates a database schema from domain record
func NewSchemaIdempotencyRecord(r *idempotency.Record) *IdempotencyRecord {
	return &IdempotencyRecord{
		ExternalID: r.ExternalID,
		ChannelKey: r.ChannelKey,
		Kind:       r.Kind,
		CreatedAt:  r.CreatedAt,
		ExpiresAt:  r.ExpiresAt,
	}
}

// EtoD converts database schema to domain record (Entity to Domain)
func (r *IdempotencyRecord) EtoD() *idempotency.Record {
	return &idempotency.Record{
		ExternalID: r.ExternalID,
		ChannelKey: r.ChannelKey,
		Kind:       r.Kind,
		CreatedAt:  r.CreatedAt,
		ExpiresAt:  r.ExpiresAt,
	}
}
