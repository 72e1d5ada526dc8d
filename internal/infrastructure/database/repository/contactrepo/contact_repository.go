package contactrepo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"relaydesk/services/channel-api/internal/domain/contact"
	"relaydesk/services/channel-api/internal/infrastructure/database/dbschema"
	"relaydesk/services/channel-api/internal/infrastructure/database/transaction"
	"relaydesk/services/channel-api/internal/utils/platformerrors"
)

type ContactGormRepository struct {
	db *transaction.Database
}

var _ contact.Repository = (*ContactGormRepository)(nil)

func NewContactGormRepository(db *transaction.Database) contact.Repository {
	return &ContactGormRepository{db}
}

// Upsert implements contact.Repository. One INSERT ... ON CONFLICT DO UPDATE
// on (bot_id, address); COALESCE/NULLIF keep empty incoming fields from
// clobbering known values.
func (repo *ContactGormRepository) Upsert(ctx context.Context, c *contact.Contact) error {
	model := dbschema.NewSchemaContact(c)
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "bot_id"}, {Name: "address"}},
			DoUpdates: clause.Assignments(map[string]any{
				"display_name":        gorm.Expr("COALESCE(NULLIF(EXCLUDED.display_name, ''), channel_api.contacts.display_name)"),
				"profile_picture_url": gorm.Expr("COALESCE(EXCLUDED.profile_picture_url, channel_api.contacts.profile_picture_url)"),
				"source":              gorm.Expr("EXCLUDED.source"),
				"updated_at":          gorm.Expr("EXCLUDED.updated_at"),
			}),
		}).
		Create(model).Error
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to upsert contact")
	}
	c.ID = model.ID
	return nil
}

// FindByAddress implements contact.Repository.
func (repo *ContactGormRepository) FindByAddress(ctx context.Context, botID uint, address string) (*contact.Contact, error) {
	var model dbschema.Contact
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Where("bot_id = ? AND address = ?", botID, address).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
				"contact not found", err, "6e2d80c4-9f17-43ab-b5e8-1a74c62d09f3")
		}
		return nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to find contact")
	}
	return model.EtoD(), nil
}
