package webhookhandler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"relaydesk/services/channel-api/internal/application/audit"
	"relaydesk/services/channel-api/internal/config"
	"relaydesk/services/channel-api/internal/domain/integration"
	"relaydesk/services/channel-api/internal/domain/webhook"
	middleware "relaydesk/services/channel-api/internal/interfaces/httpserver/middlewares"
	"relaydesk/services/channel-api/internal/interfaces/httpserver/responses"
)

// =============================================================================
// Webhook Handler
// =============================================================================

// WebhookHandler terminates the provider's webhook callbacks: subscription
// verification on GET, event batches on POST.
type WebhookHandler struct {
	dispatcher   *webhook.Dispatcher
	integrations *integration.Service
	auditLogger  *audit.DeliveryAuditLogger
	config       *config.Config
	logger       zerolog.Logger
}

func NewWebhookHandler(
	dispatcher *webhook.Dispatcher,
	integrations *integration.Service,
	auditLogger *audit.DeliveryAuditLogger,
	cfg *config.Config,
	logger zerolog.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		dispatcher:   dispatcher,
		integrations: integrations,
		auditLogger:  auditLogger,
		config:       cfg,
		logger:       logger,
	}
}

// queryParam reads a verification parameter in either the provider's
// hub.-prefixed form or the bare form.
func queryParam(c *gin.Context, name string) string {
	if v := c.Query("hub." + name); v != "" {
		return v
	}
	return c.Query(name)
}

// Verify handles the provider's subscription handshake. The challenge is
// echoed back as plain text only when the mode is "subscribe" and the token
// matches either the static secret or a stored integration token.
func (h *WebhookHandler) Verify(c *gin.Context) {
	mode := queryParam(c, "mode")
	token := queryParam(c, "verify_token")
	challenge := queryParam(c, "challenge")

	if mode != "subscribe" {
		responses.HandleErrorWithStatus(c, http.StatusForbidden, nil, "verification rejected")
		return
	}

	ok, err := h.integrations.VerifyTokenMatches(c.Request.Context(), h.config.WebhookVerifyToken, token)
	if err != nil {
		h.logger.Error().Err(err).Msg("verify token lookup failed")
		responses.HandleErrorWithStatus(c, http.StatusForbidden, err, "verification rejected")
		return
	}
	if !ok {
		responses.HandleErrorWithStatus(c, http.StatusForbidden, nil, "verification rejected")
		return
	}

	c.String(http.StatusOK, challenge)
}

// Receive handles an event batch. The provider retries any non-200, so every
// per-item failure is reported in the body and the delivery itself is always
// acknowledged. Only a payload that cannot be decoded at the top level gets
// a 500.
func (h *WebhookHandler) Receive(c *gin.Context) {
	var payload webhook.Payload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.logger.Error().Err(err).Msg("malformed webhook payload")
		responses.HandleErrorWithStatus(c, http.StatusInternalServerError, err, "malformed payload")
		return
	}

	summary := h.dispatcher.Dispatch(c.Request.Context(), &payload)

	// Failed items are acknowledged, so keep a trail of what was dropped.
	for _, item := range summary.Items {
		if item.Status != webhook.ItemFailed {
			continue
		}
		h.auditLogger.Log(c.Request.Context(), audit.DeliveryAuditEntry{
			Kind:       item.Kind,
			ExternalID: item.ExternalID,
			Status:     string(item.Status),
			Reason:     item.Reason,
			RequestID:  middleware.RequestIDFromContext(c),
			IPAddress:  c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
		})
	}

	c.JSON(http.StatusOK, summary)
}
