package idempotency

import (
	"context"
	"time"
)

// ===============================================
// Idempotency Record Types
// ===============================================

// Kind distinguishes the two record families sharing the store: long-lived
// "processed" markers and short-lived "debounce" markers.
type Kind string

const (
	KindProcessed Kind = "processed"
	KindDebounce  Kind = "debounce"
)

// Record is a durable marker proving a provider message id has been seen.
// Uniqueness on (ExternalID, ChannelKey, Kind) is the sole correctness
// mechanism for duplicate suppression across instances; records are removed
// by expiry, never by business logic.
type Record struct {
	ID         uint
	ExternalID string
	ChannelKey string
	Kind       Kind
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the record's window has elapsed at the given time.
func (r *Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// ===============================================
// Idempotency Store
// ===============================================

// Store is the shared coordination point between service instances. Both
// implementations (Postgres unique index, Redis SETNX) guarantee that Insert
// is a single atomic insert-on-conflict operation, never a read-then-write
// pair.
type Store interface {
	// Insert atomically inserts rec. On a uniqueness conflict it reports
	// inserted=false and returns the record already in place.
	Insert(ctx context.Context, rec *Record) (inserted bool, existing *Record, err error)

	// RefreshIfExpired atomically renews a record whose window has elapsed,
	// scoped by the expiry predicate at write time so concurrent refreshes
	// cannot both win. Reports whether this caller performed the renewal.
	RefreshIfExpired(ctx context.Context, externalID, channelKey string, kind Kind, now, expiresAt time.Time) (bool, error)

	// PurgeExpired removes records past their expiry. Backends with native
	// TTL support report zero without work.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
