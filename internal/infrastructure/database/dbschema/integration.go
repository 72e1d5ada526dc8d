package dbschema

import (
	"time"

	"gorm.io/datatypes"

	"relaydesk/services/channel-api/internal/domain/integration"
	"relaydesk/services/channel-api/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(Integration{})
}

// Integration represents the database schema for provider integrations. The
// table is owned by configuration management; this service reads it and
// writes only the history-sync progress columns.
type Integration struct {
	BaseModel
	BotID                uint                   `gorm:"index:idx_integrations_bot;not null"`
	PhoneNumberID        string                 `gorm:"type:varchar(64);uniqueIndex:ux_integrations_phone_number;not null"`
	EncryptedAccessToken string                 `gorm:"type:text;not null"`
	VerifyToken          string                 `gorm:"type:varchar(128);index:idx_integrations_verify_token"`
	IsActive             bool                   `gorm:"not null;default:true"`
	Metadata             datatypes.JSONMap      `gorm:"type:jsonb"`
	SyncStatus           integration.SyncStatus `gorm:"type:varchar(20);index:idx_integrations_sync_status;not null;default:'idle'"`
	LastSyncEventAt      *time.Time             `gorm:"type:timestamptz"`
}

// EtoD converts database schema to domain integration (Entity to Domain)
func (i *Integration) EtoD() *integration.Integration {
	return &integration.Integration{
		ID:                   i.ID,
		BotID:                i.BotID,
		PhoneNumberID:        i.PhoneNumberID,
		EncryptedAccessToken: i.EncryptedAccessToken,
		VerifyToken:          i.VerifyToken,
		IsActive:             i.IsActive,
		Metadata:             fromJSONMap(i.Metadata),
		SyncStatus:           i.SyncStatus,
		LastSyncEventAt:      i.LastSyncEventAt,
		CreatedAt:            i.CreatedAt,
		UpdatedAt:            i.UpdatedAt,
	}
}
