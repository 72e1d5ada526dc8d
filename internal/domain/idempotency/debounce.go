package idempotency

import (
	"context"
	"time"

	"relaydesk/services/channel-api/internal/utils/platformerrors"
)

// DefaultDebounceWindow covers provider retries of the same delivery, which
// arrive within seconds and must be suppressed before the longer dedup
// window would catch them.
const DefaultDebounceWindow = 5 * time.Second

// Debouncer is the short-window guard against rapid duplicate deliveries of
// one message id. Same atomic-insert pattern as the Deduplicator, with a
// distinct record kind so the two windows never collide.
type Debouncer struct {
	store  Store
	window time.Duration
}

// NewDebouncer creates a debouncer over the given store. A non-positive
// window falls back to DefaultDebounceWindow.
func NewDebouncer(store Store, window time.Duration) *Debouncer {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Debouncer{store: store, window: window}
}

// ShouldProcess reports whether the message id is first-seen within the
// debounce window. A conflict with a record older than the window is a stale
// marker: it is renewed (predicate-scoped, so concurrent renewals elect one
// winner) and the message reprocessed rather than permanently blocked.
func (d *Debouncer) ShouldProcess(ctx context.Context, messageID, channelKey string) (bool, error) {
	now := time.Now()
	rec := &Record{
		ExternalID: messageID,
		ChannelKey: channelKey,
		Kind:       KindDebounce,
		CreatedAt:  now,
		ExpiresAt:  now.Add(d.window),
	}

	inserted, existing, err := d.store.Insert(ctx, rec)
	if err != nil {
		return false, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to write debounce record")
	}
	if inserted {
		return true, nil
	}

	if existing != nil && existing.Expired(now) {
		refreshed, err := d.store.RefreshIfExpired(ctx, messageID, channelKey, KindDebounce, now, now.Add(d.window))
		if err != nil {
			return false, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to refresh debounce record")
		}
		return refreshed, nil
	}

	return false, nil
}
