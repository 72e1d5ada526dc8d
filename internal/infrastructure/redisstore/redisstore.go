// Package redisstore backs the idempotency guards with Redis for
// deployments that prefer TTL-native storage over the Postgres table.
package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"relaydesk/services/channel-api/internal/domain/idempotency"
	"relaydesk/services/channel-api/internal/utils/platformerrors"
)

const keyPrefix = "channel-api:idem:"

// Store implements idempotency.Store over Redis. SET NX is the atomic
// insert-on-conflict; Redis expiry replaces the purge job, so expired
// records simply vanish instead of lingering until a sweep.
type Store struct {
	client *redis.Client
}

var _ idempotency.Store = (*Store)(nil)

func New(client *redis.Client) *Store {
	return &Store{client: client}
}

// NewFromURL connects using a redis:// URL and verifies the connection.
func NewFromURL(ctx context.Context, url string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeConfiguration,
			"invalid redis url", err, "5d91c2e7-3b40-48f6-a1d8-6c27e09b54f3")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeUpstream,
			"failed to reach redis", err, "e86f04a1-7c25-4d9b-b3e0-29d51c8a67f4")
	}
	return New(client), nil
}

func key(externalID, channelKey string, kind idempotency.Kind) string {
	return keyPrefix + string(kind) + ":" + channelKey + ":" + externalID
}

// Insert implements idempotency.Store.
func (s *Store) Insert(ctx context.Context, rec *idempotency.Record) (bool, *idempotency.Record, error) {
	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	k := key(rec.ExternalID, rec.ChannelKey, rec.Kind)

	set, err := s.client.SetNX(ctx, k, rec.CreatedAt.UTC().Format(time.RFC3339Nano), ttl).Result()
	if err != nil {
		return false, nil, platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "failed to write idempotency key")
	}
	if set {
		return true, nil, nil
	}

	existing := &idempotency.Record{
		ExternalID: rec.ExternalID,
		ChannelKey: rec.ChannelKey,
		Kind:       rec.Kind,
	}
	if createdAt, err := s.client.Get(ctx, k).Result(); err == nil {
		if t, perr := time.Parse(time.RFC3339Nano, createdAt); perr == nil {
			existing.CreatedAt = t
		}
	}
	if remaining, err := s.client.TTL(ctx, k).Result(); err == nil && remaining > 0 {
		existing.ExpiresAt = time.Now().Add(remaining)
	} else {
		// Key expired between SETNX and TTL; report it as stale so the
		// caller takes the refresh path.
		existing.ExpiresAt = time.Now()
	}
	return false, existing, nil
}

// RefreshIfExpired implements idempotency.Store. Redis drops expired keys on
// its own, so refreshing is just another SET NX race.
func (s *Store) RefreshIfExpired(ctx context.Context, externalID, channelKey string, kind idempotency.Kind, now, expiresAt time.Time) (bool, error) {
	ttl := expiresAt.Sub(now)
	if ttl <= 0 {
		ttl = time.Second
	}
	set, err := s.client.SetNX(ctx, key(externalID, channelKey, kind), now.UTC().Format(time.RFC3339Nano), ttl).Result()
	if err != nil {
		return false, platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "failed to refresh idempotency key")
	}
	return set, nil
}

// PurgeExpired implements idempotency.Store. Nothing to do: Redis expiry is
// the purge.
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}
