package domain

import (
	"github.com/google/wire"

	"relaydesk/services/channel-api/internal/config"
	"relaydesk/services/channel-api/internal/domain/contact"
	"relaydesk/services/channel-api/internal/domain/conversation"
	"relaydesk/services/channel-api/internal/domain/history"
	"relaydesk/services/channel-api/internal/domain/idempotency"
	"relaydesk/services/channel-api/internal/domain/integration"
	"relaydesk/services/channel-api/internal/domain/webhook"
)

// ServiceProvider provides all domain services
var ServiceProvider = wire.NewSet(
	// Idempotency guards
	ProvideDeduplicator,
	ProvideDebouncer,

	// Conversation domain
	conversation.NewResolver,
	ProvideTakeover,

	// Contacts
	contact.NewService,

	// Integrations
	ProvideIntegrationService,

	// History back-fill
	ProvideReconciler,

	// Webhook ingestion
	ProvideDispatcherConfig,
	webhook.NewDispatcher,
)

func ProvideDeduplicator(store idempotency.Store, cfg *config.Config) *idempotency.Deduplicator {
	return idempotency.NewDeduplicator(store, cfg.DedupWindow)
}

func ProvideDebouncer(store idempotency.Store, cfg *config.Config) *idempotency.Debouncer {
	return idempotency.NewDebouncer(store, cfg.DebounceWindow)
}

func ProvideTakeover(repo conversation.ConversationRepository, cfg *config.Config) *conversation.Takeover {
	return conversation.NewTakeover(repo, cfg.ManualModeTimeout)
}

func ProvideIntegrationService(repo integration.Repository, cfg *config.Config) *integration.Service {
	return integration.NewService(repo, cfg.AccessTokenSecret)
}

func ProvideReconciler(
	resolver *conversation.Resolver,
	messages conversation.MessageRepository,
	contacts *contact.Service,
	integrations integration.Repository,
	cfg *config.Config,
) *history.Reconciler {
	return history.NewReconciler(resolver, messages, contacts, integrations, cfg.HistorySyncQuietGap)
}

func ProvideDispatcherConfig(cfg *config.Config) webhook.Config {
	return webhook.Config{
		StaleCutoff:       cfg.StaleMessageCutoff,
		FallbackReplyText: cfg.ReplyFallbackText,
		HistoryLimit:      cfg.ReplyHistoryLimit,
		MaxOutboundRunes:  cfg.MaxOutboundTextRunes,
	}
}
