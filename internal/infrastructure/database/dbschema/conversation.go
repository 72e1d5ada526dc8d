package dbschema

import (
	"time"

	"relaydesk/services/channel-api/internal/domain/conversation"
	"relaydesk/services/channel-api/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(Conversation{})
	database.RegisterSchemaForAutoMigrate(Message{})
}

// Conversation represents the database schema for conversations
type Conversation struct {
	BaseModel
	PublicID            string                          `gorm:"type:varchar(50);uniqueIndex;not null"`
	SessionKey          string                          `gorm:"type:varchar(128);uniqueIndex:ux_conversations_session_key;not null"`
	BotID               uint                            `gorm:"index:idx_conversations_bot;not null"`
	ParticipantAddress  string                          `gorm:"type:varchar(64);not null"`
	Status              conversation.ConversationStatus `gorm:"type:varchar(20);index:idx_conversations_status;not null;default:'active'"`
	ManualMode          bool                            `gorm:"index:idx_conversations_manual_activity;not null;default:false"`
	LastHumanActivityAt *time.Time                      `gorm:"type:timestamptz;index:idx_conversations_manual_activity"`

	Messages []Message `gorm:"foreignKey:ConversationID"`
}

// Message represents the database schema for messages
type Message struct {
	BaseModel
	PublicID       string                     `gorm:"type:varchar(50);uniqueIndex"`
	ConversationID uint                       `gorm:"index:idx_messages_conversation_created;uniqueIndex:ux_messages_conversation_external;not null"`
	Conversation   Conversation               `gorm:"foreignKey:ConversationID"`
	Role           conversation.MessageRole   `gorm:"type:varchar(20);not null"`
	Content        string                     `gorm:"type:text;not null"`
	Channel        conversation.MessageChannel `gorm:"type:varchar(20);not null;default:'normal'"`
	ExternalID     *string                    `gorm:"type:varchar(128);uniqueIndex:ux_messages_conversation_external"`
	MediaID        *string                    `gorm:"type:varchar(128)"`
	MediaType      *string                    `gorm:"type:varchar(128)"`
}

// NewSchemaConversation creates a database schema from domain conversation
func NewSchemaConversation(c *conversation.Conversation) *Conversation {
	return &Conversation{
		BaseModel: BaseModel{
			ID:        c.ID,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		},
		PublicID:            c.PublicID,
		SessionKey:          c.SessionKey,
		BotID:               c.BotID,
		ParticipantAddress:  c.ParticipantAddress,
		Status:              c.Status,
		ManualMode:          c.ManualMode,
		LastHumanActivityAt: c.LastHumanActivityAt,
	}
}

// EtoD converts database schema to domain conversation (Entity to Domain)
func (c *Conversation) EtoD() *conversation.Conversation {
	return &conversation.Conversation{
		ID:                  c.ID,
		PublicID:            c.PublicID,
		SessionKey:          c.SessionKey,
		BotID:               c.BotID,
		ParticipantAddress:  c.ParticipantAddress,
		Status:              c.Status,
		ManualMode:          c.ManualMode,
		LastHumanActivityAt: c.LastHumanActivityAt,
		CreatedAt:           c.CreatedAt,
		UpdatedAt:           c.UpdatedAt,
	}
}

// NewSchemaMessage creates a database schema from domain message
func NewSchemaMessage(m *conversation.Message) *Message {
	return &Message{
		BaseModel: BaseModel{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
		},
		PublicID:       m.PublicID,
		ConversationID: m.ConversationID,
		Role:           m.Role,
		Content:        m.Content,
		Channel:        m.Channel,
		ExternalID:     m.ExternalID,
		MediaID:        m.MediaID,
		MediaType:      m.MediaType,
	}
}

// EtoD converts database schema to domain message (Entity to Domain)
func (m *Message) EtoD() *conversation.Message {
	return &conversation.Message{
		ID:             m.ID,
		PublicID:       m.PublicID,
		ConversationID: m.ConversationID,
		Role:           m.Role,
		Content:        m.Content,
		Channel:        m.Channel,
		ExternalID:     m.ExternalID,
		MediaID:        m.MediaID,
		MediaType:      m.MediaType,
		CreatedAt:      m.CreatedAt,
	}
}
