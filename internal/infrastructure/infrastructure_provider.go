package infrastructure

import (
	"context"

	"github.com/google/wire"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"relaydesk/services/channel-api/internal/application/audit"
	"relaydesk/services/channel-api/internal/config"
	"relaydesk/services/channel-api/internal/domain/contact"
	"relaydesk/services/channel-api/internal/domain/idempotency"
	"relaydesk/services/channel-api/internal/domain/webhook"
	"relaydesk/services/channel-api/internal/infrastructure/crontab"
	"relaydesk/services/channel-api/internal/infrastructure/database"
	"relaydesk/services/channel-api/internal/infrastructure/database/repository"
	"relaydesk/services/channel-api/internal/infrastructure/database/repository/idempotencyrepo"
	"relaydesk/services/channel-api/internal/infrastructure/database/transaction"
	"relaydesk/services/channel-api/internal/infrastructure/logger"
	"relaydesk/services/channel-api/internal/infrastructure/redisstore"
	"relaydesk/services/channel-api/internal/infrastructure/responder"
	"relaydesk/services/channel-api/internal/infrastructure/whatsapp"
)

// ProvideConfig loads and provides the application configuration
func ProvideConfig() (*config.Config, error) {
	return config.Load()
}

// ProvideDatabase provides a database connection
func ProvideDatabase(cfg *config.Config, log zerolog.Logger) (*gorm.DB, error) {
	db, err := database.NewDB(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	// Run migrations if AUTO_MIGRATE is enabled. Development rebuilds the
	// schema from the gorm registry; everything else runs the versioned
	// SQL migrations.
	if cfg.AutoMigrate {
		if cfg.Environment == "development" {
			log.Info().Msg("Running development schema auto-migration...")
			if err := database.Migration(db, "channel_api."); err != nil {
				log.Error().Err(err).Msg("Failed to auto-migrate development schema")
				return nil, err
			}
		} else {
			log.Info().Msg("Running database migrations...")
			if err := database.AutoMigrate(db); err != nil {
				log.Error().Err(err).Msg("Failed to run database migrations")
				return nil, err
			}
			log.Info().Msg("Database migrations completed successfully")
		}
	}

	return db, nil
}

// ProvideTransactionDatabase provides a transaction database wrapper
func ProvideTransactionDatabase(db *gorm.DB) *transaction.Database {
	return transaction.NewDatabase(db)
}

// ProvideIdempotencyStore selects the idempotency backend: Redis when
// configured, otherwise the Postgres table shared with everything else.
func ProvideIdempotencyStore(cfg *config.Config, db *transaction.Database, log zerolog.Logger) (idempotency.Store, error) {
	if cfg.RedisURL != "" {
		store, err := redisstore.NewFromURL(context.Background(), cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		log.Info().Msg("Using redis idempotency store")
		return store, nil
	}
	return idempotencyrepo.NewIdempotencyGormRepository(db), nil
}

// ProvideWhatsAppClient provides the outbound provider client.
func ProvideWhatsAppClient(cfg *config.Config) *whatsapp.Client {
	return whatsapp.NewClient(cfg)
}

// ProvideMediaFetcher exposes the provider client as the dispatcher's media
// collaborator.
func ProvideMediaFetcher(client *whatsapp.Client) webhook.MediaFetcher {
	return client
}

// ProvideMessageSender exposes the provider client as the dispatcher's send
// collaborator.
func ProvideMessageSender(client *whatsapp.Client) webhook.MessageSender {
	return client
}

// ProvideAvatarFetcher exposes the provider client for best-effort profile
// picture lookups.
func ProvideAvatarFetcher(client *whatsapp.Client) contact.AvatarFetcher {
	return client
}

// ProvideReplyEngine provides the reply engine client.
func ProvideReplyEngine(cfg *config.Config) webhook.ReplyEngine {
	return responder.NewClient(cfg)
}

// Infrastructure holds all infrastructure dependencies
type Infrastructure struct {
	DB     *gorm.DB
	Logger zerolog.Logger
}

// NewInfrastructure creates a new infrastructure instance
func NewInfrastructure(db *gorm.DB, logger zerolog.Logger) *Infrastructure {
	return &Infrastructure{
		DB:     db,
		Logger: logger,
	}
}

// InfrastructureProvider provides all infrastructure dependencies
var InfrastructureProvider = wire.NewSet(
	// Config
	ProvideConfig,

	// Database
	ProvideDatabase,
	ProvideTransactionDatabase,

	// Repositories
	repository.RepositoryProvider,

	// Idempotency backend
	ProvideIdempotencyStore,

	// Provider client
	ProvideWhatsAppClient,
	ProvideMediaFetcher,
	ProvideMessageSender,
	ProvideAvatarFetcher,

	// Reply engine
	ProvideReplyEngine,

	// Logger
	logger.GetLogger,

	// Background jobs
	crontab.NewCrontab,

	// Delivery audit trail
	audit.NewDeliveryAuditLogger,

	// Infrastructure struct
	NewInfrastructure,
)
