package dbschema

import (
	"relaydesk/services/channel-api/internal/domain/contact"
	"relaydesk/services/channel-api/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(Contact{})
}

// Contact represents the database schema for contacts
type Contact struct {
	BaseModel
	BotID             uint           `gorm:"uniqueIndex:ux_contacts_bot_address;not null"`
	Address           string         `gorm:"type:varchar(64);uniqueIndex:ux_contacts_bot_address;not null"`
	DisplayName       string         `gorm:"type:varchar(256)"`
	ProfilePictureURL *string        `gorm:"type:varchar(512)"`
	Source            contact.Source `gorm:"type:varchar(20);not null;default:'message'"`
}

// NewSchemaContact creates a database schema from domain contact
func NewSchemaContact(c *contact.Contact) *Contact {
	return &Contact{
		BaseModel: BaseModel{
			ID:        c.ID,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		},
		BotID:             c.BotID,
		Address:           c.Address,
		DisplayName:       c.DisplayName,
		ProfilePictureURL: c.ProfilePictureURL,
		Source:            c.Source,
	}
}

// EtoD converts database schema to domain contact (Entity to Domain)
func (c *Contact) EtoD() *contact.Contact {
	return &contact.Contact{
		ID:                c.ID,
		BotID:             c.BotID,
		Address:           c.Address,
		DisplayName:       c.DisplayName,
		ProfilePictureURL: c.ProfilePictureURL,
		Source:            c.Source,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}
