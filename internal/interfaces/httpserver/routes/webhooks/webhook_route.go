package webhooks

import (
	"relaydesk/services/channel-api/internal/interfaces/httpserver/handlers/webhookhandler"

	"github.com/gin-gonic/gin"
)

type WebhookRoute struct {
	handler *webhookhandler.WebhookHandler
}

func NewWebhookRoute(handler *webhookhandler.WebhookHandler) *WebhookRoute {
	return &WebhookRoute{handler: handler}
}

func (route *WebhookRoute) RegisterRouter(router gin.IRouter) {
	webhooks := router.Group("/webhooks")
	webhooks.GET("/whatsapp", route.handler.Verify)
	webhooks.POST("/whatsapp", route.handler.Receive)
}
