package integrationrepo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"relaydesk/services/channel-api/internal/domain/integration"
	"relaydesk/services/channel-api/internal/infrastructure/database/dbschema"
	"relaydesk/services/channel-api/internal/infrastructure/database/transaction"
	"relaydesk/services/channel-api/internal/utils/functional"
	"relaydesk/services/channel-api/internal/utils/platformerrors"
)

type IntegrationGormRepository struct {
	db *transaction.Database
}

var _ integration.Repository = (*IntegrationGormRepository)(nil)

func NewIntegrationGormRepository(db *transaction.Database) integration.Repository {
	return &IntegrationGormRepository{db}
}

// FindByPhoneNumberID implements integration.Repository.
func (repo *IntegrationGormRepository) FindByPhoneNumberID(ctx context.Context, phoneNumberID string) (*integration.Integration, error) {
	var model dbschema.Integration
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Where("phone_number_id = ?", phoneNumberID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
				"integration not found", err, "c09e37d5-2a81-4fb6-9d04-7e5a1c83b2f6")
		}
		return nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to find integration")
	}
	return model.EtoD(), nil
}

// ExistsByVerifyToken implements integration.Repository.
func (repo *IntegrationGormRepository) ExistsByVerifyToken(ctx context.Context, token string) (bool, error) {
	var count int64
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Model(&dbschema.Integration{}).
		Where("verify_token = ? AND is_active = ?", token, true).
		Count(&count).Error
	if err != nil {
		return false, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to check verify token")
	}
	return count > 0, nil
}

// UpdateSyncProgress implements integration.Repository. Progress lives in
// the metadata jsonb and only ever moves forward; the GREATEST guard keeps a
// late or re-delivered chunk from regressing it.
func (repo *IntegrationGormRepository) UpdateSyncProgress(ctx context.Context, id uint, progress int, phase string, at time.Time) error {
	progressKey := integration.MetadataSyncProgress
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Model(&dbschema.Integration{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"metadata": gorm.Expr(
				"COALESCE(metadata, '{}'::jsonb) || jsonb_build_object(?::text, GREATEST(COALESCE((metadata->>?)::int, 0), ?)::text, ?::text, ?::text)",
				progressKey, progressKey, progress, integration.MetadataSyncPhase, phase,
			),
			"sync_status":        integration.SyncStatusRunning,
			"last_sync_event_at": at,
		}).Error
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to update sync progress")
	}
	return nil
}

// SetSyncStatus implements integration.Repository.
func (repo *IntegrationGormRepository) SetSyncStatus(ctx context.Context, id uint, status integration.SyncStatus) error {
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Model(&dbschema.Integration{}).
		Where("id = ?", id).
		Update("sync_status", status).Error
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to set sync status")
	}
	return nil
}

// FindRunningSyncsQuietSince implements integration.Repository.
func (repo *IntegrationGormRepository) FindRunningSyncsQuietSince(ctx context.Context, cutoff time.Time) ([]*integration.Integration, error) {
	var rows []*dbschema.Integration
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Where("sync_status = ? AND last_sync_event_at < ?", integration.SyncStatusRunning, cutoff).
		Find(&rows).Error
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to find quiet running syncs")
	}
	return functional.Map(rows, func(item *dbschema.Integration) *integration.Integration {
		return item.EtoD()
	}), nil
}
