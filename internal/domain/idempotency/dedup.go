package idempotency

import (
	"context"
	"time"

	"relaydesk/services/channel-api/internal/utils/platformerrors"
)

// Outcome is the result of a dedup check.
type Outcome string

const (
	OutcomeAccepted         Outcome = "accepted"
	OutcomeAlreadyProcessed Outcome = "already_processed"
)

// DefaultDedupWindow is how long a processed marker suppresses redelivery.
const DefaultDedupWindow = 10 * time.Minute

// Deduplicator is the long-window cross-instance guard against re-processing
// the same provider message id. Multiple service instances race on the same
// external id; correctness comes entirely from the store's atomic
// insert-on-conflict, not from anything held in process.
type Deduplicator struct {
	store  Store
	window time.Duration
}

// NewDeduplicator creates a deduplicator over the given store. A
// non-positive window falls back to DefaultDedupWindow.
func NewDeduplicator(store Store, window time.Duration) *Deduplicator {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &Deduplicator{store: store, window: window}
}

// MarkIfNew records the external id as processed if it has not been seen
// within the window. On a conflict with a live record it reports
// OutcomeAlreadyProcessed. A conflict with an expired record that the purge
// job has not collected yet is renewed and treated as new. Storage errors
// are returned untouched; the caller's policy decides (the webhook path
// fails open).
func (d *Deduplicator) MarkIfNew(ctx context.Context, externalID, channelKey string) (Outcome, error) {
	now := time.Now()
	rec := &Record{
		ExternalID: externalID,
		ChannelKey: channelKey,
		Kind:       KindProcessed,
		CreatedAt:  now,
		ExpiresAt:  now.Add(d.window),
	}

	inserted, existing, err := d.store.Insert(ctx, rec)
	if err != nil {
		return "", platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to write dedup record")
	}
	if inserted {
		return OutcomeAccepted, nil
	}

	if existing != nil && existing.Expired(now) {
		refreshed, err := d.store.RefreshIfExpired(ctx, externalID, channelKey, KindProcessed, now, now.Add(d.window))
		if err != nil {
			return "", platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to refresh dedup record")
		}
		if refreshed {
			return OutcomeAccepted, nil
		}
	}

	return OutcomeAlreadyProcessed, nil
}
