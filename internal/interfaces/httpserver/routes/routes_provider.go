package routes

import (
	"relaydesk/services/channel-api/internal/interfaces/httpserver/handlers/webhookhandler"
	"relaydesk/services/channel-api/internal/interfaces/httpserver/routes/webhooks"

	"github.com/google/wire"
)

var RouteProvider = wire.NewSet(
	// Handlers
	webhookhandler.NewWebhookHandler,

	// Routes
	webhooks.NewWebhookRoute,
)
