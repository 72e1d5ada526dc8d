package idempotencyrepo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"relaydesk/services/channel-api/internal/domain/idempotency"
	"relaydesk/services/channel-api/internal/infrastructure/database/dbschema"
	"relaydesk/services/channel-api/internal/infrastructure/database/transaction"
	"relaydesk/services/channel-api/internal/utils/platformerrors"
)

// IdempotencyGormRepository backs the dedup and debounce guards with the
// idempotency_records table. Every operation is a single statement; the
// unique index on (external_id, channel_key, kind) arbitrates races between
// instances.
type IdempotencyGormRepository struct {
	db *transaction.Database
}

var _ idempotency.Store = (*IdempotencyGormRepository)(nil)

func NewIdempotencyGormRepository(db *transaction.Database) idempotency.Store {
	return &IdempotencyGormRepository{db}
}

// Insert implements idempotency.Store. ON CONFLICT DO NOTHING with
// RowsAffected deciding whether this call created the record. On conflict
// the surviving record is fetched so the caller can inspect its expiry.
func (repo *IdempotencyGormRepository) Insert(ctx context.Context, rec *idempotency.Record) (bool, *idempotency.Record, error) {
	model := dbschema.NewSchemaIdempotencyRecord(rec)
	result := repo.db.GetTx(ctx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_id"}, {Name: "channel_key"}, {Name: "kind"}},
			DoNothing: true,
		}).
		Create(model)
	if result.Error != nil {
		return false, nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, result.Error, "failed to insert idempotency record")
	}
	if result.RowsAffected > 0 {
		return true, nil, nil
	}

	var existing dbschema.IdempotencyRecord
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Where("external_id = ? AND channel_key = ? AND kind = ?", rec.ExternalID, rec.ChannelKey, rec.Kind).
		First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Lost the race and the winner was purged in between; the caller
			// retries through its expiry path.
			return false, nil, nil
		}
		return false, nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to load conflicting idempotency record")
	}
	return false, existing.EtoD(), nil
}

// RefreshIfExpired implements idempotency.Store. The expiry predicate is in
// the UPDATE itself, so concurrent refreshers of a stale record elect
// exactly one winner.
func (repo *IdempotencyGormRepository) RefreshIfExpired(ctx context.Context, externalID, channelKey string, kind idempotency.Kind, now, expiresAt time.Time) (bool, error) {
	result := repo.db.GetTx(ctx).WithContext(ctx).
		Model(&dbschema.IdempotencyRecord{}).
		Where("external_id = ? AND channel_key = ? AND kind = ? AND expires_at <= ?", externalID, channelKey, kind, now).
		Updates(map[string]any{
			"created_at": now,
			"expires_at": expiresAt,
		})
	if result.Error != nil {
		return false, platformerrors.AsError(ctx, platformerrors.LayerRepository, result.Error, "failed to refresh idempotency record")
	}
	return result.RowsAffected > 0, nil
}

// PurgeExpired implements idempotency.Store. Expiry is the only way records
// leave the table; business logic never deletes them.
func (repo *IdempotencyGormRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	result := repo.db.GetTx(ctx).WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&dbschema.IdempotencyRecord{})
	if result.Error != nil {
		return 0, platformerrors.AsError(ctx, platformerrors.LayerRepository, result.Error, "failed to purge idempotency records")
	}
	return result.RowsAffected, nil
}
