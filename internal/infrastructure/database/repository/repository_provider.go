package repository

import (
	"relaydesk/services/channel-api/internal/infrastructure/database/repository/contactrepo"
	"relaydesk/services/channel-api/internal/infrastructure/database/repository/conversationrepo"
	"relaydesk/services/channel-api/internal/infrastructure/database/repository/integrationrepo"

	"github.com/google/wire"
)

var RepositoryProvider = wire.NewSet(
	conversationrepo.NewConversationGormRepository,
	conversationrepo.NewMessageGormRepository,
	contactrepo.NewContactGormRepository,
	integrationrepo.NewIntegrationGormRepository,
)
