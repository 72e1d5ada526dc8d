package conversationrepo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"relaydesk/services/channel-api/internal/domain/conversation"
	"relaydesk/services/channel-api/internal/infrastructure/database/dbschema"
	"relaydesk/services/channel-api/internal/infrastructure/database/transaction"
	"relaydesk/services/channel-api/internal/utils/platformerrors"
)

type ConversationGormRepository struct {
	db *transaction.Database
}

var _ conversation.ConversationRepository = (*ConversationGormRepository)(nil)

func NewConversationGormRepository(db *transaction.Database) conversation.ConversationRepository {
	return &ConversationGormRepository{db}
}

// Create implements conversation.ConversationRepository.
func (repo *ConversationGormRepository) Create(ctx context.Context, conv *conversation.Conversation) error {
	model := dbschema.NewSchemaConversation(conv)
	if err := repo.db.GetTx(ctx).WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeConflict,
				"conversation session key already exists", err, "f4c18a92-3d6e-47b5-a0c1-8e9b52d7f364")
		}
		return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to create conversation")
	}
	// Update the domain object with generated ID and timestamps
	conv.ID = model.ID
	conv.CreatedAt = model.CreatedAt
	conv.UpdatedAt = model.UpdatedAt
	return nil
}

// FindBySessionKey implements conversation.ConversationRepository.
func (repo *ConversationGormRepository) FindBySessionKey(ctx context.Context, sessionKey string) (*conversation.Conversation, error) {
	var model dbschema.Conversation
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Where("session_key = ?", sessionKey).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
				"conversation not found", err, "2b7e94d0-6c5a-4f18-93e2-d41a0b86c7f5")
		}
		return nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to find conversation by session key")
	}
	return model.EtoD(), nil
}

// FindByID implements conversation.ConversationRepository.
func (repo *ConversationGormRepository) FindByID(ctx context.Context, id uint) (*conversation.Conversation, error) {
	var model dbschema.Conversation
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
				"conversation not found", err, "8d03f6b1-4e29-4a7c-85d0-36c9e21b48fa")
		}
		return nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to find conversation by ID")
	}
	return model.EtoD(), nil
}

// Update implements conversation.ConversationRepository.
func (repo *ConversationGormRepository) Update(ctx context.Context, conv *conversation.Conversation) error {
	model := dbschema.NewSchemaConversation(conv)
	if err := repo.db.GetTx(ctx).WithContext(ctx).Save(model).Error; err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to update conversation")
	}
	conv.UpdatedAt = model.UpdatedAt
	return nil
}

// SetStatus implements conversation.ConversationRepository.
func (repo *ConversationGormRepository) SetStatus(ctx context.Context, id uint, status conversation.ConversationStatus) error {
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Model(&dbschema.Conversation{}).
		Where("id = ?", id).
		Update("status", status).Error
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to set conversation status")
	}
	return nil
}

// MarkManual implements conversation.ConversationRepository.
func (repo *ConversationGormRepository) MarkManual(ctx context.Context, id uint, at time.Time) error {
	err := repo.db.GetTx(ctx).WithContext(ctx).
		Model(&dbschema.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"manual_mode":            true,
			"last_human_activity_at": at,
		}).Error
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to mark conversation manual")
	}
	return nil
}

// ReleaseIdleManual implements conversation.ConversationRepository. The
// staleness predicate is part of the UPDATE itself, so an echo landing
// between sweep iterations keeps its conversation in manual mode.
func (repo *ConversationGormRepository) ReleaseIdleManual(ctx context.Context, cutoff time.Time) (int64, error) {
	result := repo.db.GetTx(ctx).WithContext(ctx).
		Model(&dbschema.Conversation{}).
		Where("manual_mode = ? AND last_human_activity_at < ?", true, cutoff).
		Update("manual_mode", false)
	if result.Error != nil {
		return 0, platformerrors.AsError(ctx, platformerrors.LayerRepository, result.Error, "failed to release idle manual conversations")
	}
	return result.RowsAffected, nil
}
