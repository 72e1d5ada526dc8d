package conversationrepo

import (
	"context"

	"gorm.io/gorm/clause"

	"relaydesk/services/channel-api/internal/domain/conversation"
	"relaydesk/services/channel-api/internal/infrastructure/database/dbschema"
	"relaydesk/services/channel-api/internal/infrastructure/database/transaction"
	"relaydesk/services/channel-api/internal/utils/functional"
	"relaydesk/services/channel-api/internal/utils/idgen"
	"relaydesk/services/channel-api/internal/utils/platformerrors"
)

type MessageGormRepository struct {
	db *transaction.Database
}

var _ conversation.MessageRepository = (*MessageGormRepository)(nil)

func NewMessageGormRepository(db *transaction.Database) conversation.MessageRepository {
	return &MessageGormRepository{db}
}

// Add implements conversation.MessageRepository.
func (repo *MessageGormRepository) Add(ctx context.Context, msg *conversation.Message) error {
	if msg.PublicID == "" {
		publicID, err := idgen.GenerateSecureID("msg", 16)
		if err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to generate message id")
		}
		msg.PublicID = publicID
	}
	model := dbschema.NewSchemaMessage(msg)
	if err := repo.db.GetTx(ctx).WithContext(ctx).Create(model).Error; err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to create message")
	}
	msg.ID = model.ID
	msg.CreatedAt = model.CreatedAt
	return nil
}

// InsertIfAbsent implements conversation.MessageRepository. The insert and
// the duplicate check are one statement: ON CONFLICT DO NOTHING on the
// (conversation_id, external_id) unique index, with RowsAffected deciding
// who won. Never a read-then-write pair.
func (repo *MessageGormRepository) InsertIfAbsent(ctx context.Context, msg *conversation.Message) (bool, error) {
	if msg.PublicID == "" {
		publicID, err := idgen.GenerateSecureID("msg", 16)
		if err != nil {
			return false, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to generate message id")
		}
		msg.PublicID = publicID
	}
	model := dbschema.NewSchemaMessage(msg)
	result := repo.db.GetTx(ctx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "conversation_id"}, {Name: "external_id"}},
			DoNothing: true,
		}).
		Create(model)
	if result.Error != nil {
		return false, platformerrors.AsError(ctx, platformerrors.LayerRepository, result.Error, "failed to insert message")
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	msg.ID = model.ID
	msg.CreatedAt = model.CreatedAt
	return true, nil
}

// SetExternalID implements conversation.MessageRepository.
func (repo *MessageGormRepository) SetExternalID(ctx context.Context, id uint, externalID string) error {
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Model(&dbschema.Message{}).
		Where("id = ?", id).
		Update("external_id", externalID).Error
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to set message external id")
	}
	return nil
}

// Recent implements conversation.MessageRepository. Returns the newest
// messages in chronological order for handing to the reply engine.
func (repo *MessageGormRepository) Recent(ctx context.Context, conversationID uint, limit int) ([]*conversation.Message, error) {
	var rows []*dbschema.Message
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to load recent messages")
	}

	// Reverse into oldest-first order.
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return functional.Map(rows, func(item *dbschema.Message) *conversation.Message {
		return item.EtoD()
	}), nil
}

// Count implements conversation.MessageRepository.
func (repo *MessageGormRepository) Count(ctx context.Context, filter conversation.MessageFilter) (int64, error) {
	sql := repo.db.GetTx(ctx).WithContext(ctx).Model(&dbschema.Message{})
	if filter.ConversationID != nil {
		sql = sql.Where("conversation_id = ?", *filter.ConversationID)
	}
	if filter.ExternalID != nil {
		sql = sql.Where("external_id = ?", *filter.ExternalID)
	}
	if filter.Channel != nil {
		sql = sql.Where("channel = ?", *filter.Channel)
	}
	var count int64
	if err := sql.Count(&count).Error; err != nil {
		return 0, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to count messages")
	}
	return count, nil
}
