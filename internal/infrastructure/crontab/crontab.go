package crontab

import (
	"context"
	"time"

	"github.com/mileusna/crontab"

	"relaydesk/services/channel-api/internal/domain/conversation"
	"relaydesk/services/channel-api/internal/domain/history"
	"relaydesk/services/channel-api/internal/domain/idempotency"
	"relaydesk/services/channel-api/internal/infrastructure/logger"
	"relaydesk/services/channel-api/internal/infrastructure/metrics"
	"relaydesk/services/channel-api/internal/utils/platformerrors"
)

// CronJobTimeout bounds each job execution.
const CronJobTimeout = 5 * time.Minute

// Crontab owns the background jobs: the manual-mode auto-release sweep, the
// history-sync quiet-gap finalizer and the idempotency record purge. All
// three are idempotent and predicate-scoped, so running them on several
// instances at once is harmless.
type Crontab struct {
	ctab       *crontab.Crontab
	takeover   *conversation.Takeover
	reconciler *history.Reconciler
	idemStore  idempotency.Store
}

func NewCrontab(
	takeover *conversation.Takeover,
	reconciler *history.Reconciler,
	idemStore idempotency.Store,
) *Crontab {
	return &Crontab{
		ctab:       crontab.New(),
		takeover:   takeover,
		reconciler: reconciler,
		idemStore:  idemStore,
	}
}

func (c *Crontab) Run(ctx context.Context) error {
	log := logger.GetLogger()

	// Every minute: release manual-mode conversations whose human has gone
	// idle, and finalize history syncs that have gone quiet.
	if err := c.ctab.AddJob("* * * * *", func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), CronJobTimeout)
		defer cancel()
		c.releaseIdleConversations(jobCtx)
		c.finalizeQuietSyncs(jobCtx)
	}); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "failed to add sweep job")
	}

	// Every ten minutes: collect expired idempotency records. For the Redis
	// backend this is a no-op; for Postgres it is the expiry mechanism.
	if err := c.ctab.AddJob("*/10 * * * *", func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), CronJobTimeout)
		defer cancel()
		c.purgeExpiredRecords(jobCtx)
	}); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "failed to add purge job")
	}

	log.Info().Msg("Background jobs scheduled")

	<-ctx.Done()
	c.ctab.Shutdown()
	return nil
}

func (c *Crontab) releaseIdleConversations(ctx context.Context) {
	log := logger.GetLogger()
	released, err := c.takeover.ReleaseIdle(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Auto-release sweep failed")
		return
	}
	if released > 0 {
		metrics.ConversationsReleasedTotal.Add(float64(released))
		log.Info().Int64("released", released).Msg("Released idle manual conversations")
	}
}

func (c *Crontab) finalizeQuietSyncs(ctx context.Context) {
	log := logger.GetLogger()
	finalized, err := c.reconciler.FinalizeQuietSyncs(ctx)
	if err != nil {
		log.Error().Err(err).Msg("History sync finalizer failed")
		return
	}
	if finalized > 0 {
		metrics.HistorySyncsFinalizedTotal.Add(float64(finalized))
	}
}

func (c *Crontab) purgeExpiredRecords(ctx context.Context) {
	log := logger.GetLogger()
	purged, err := c.idemStore.PurgeExpired(ctx, time.Now())
	if err != nil {
		log.Error().Err(err).Msg("Idempotency purge failed")
		return
	}
	if purged > 0 {
		metrics.IdempotencyPurgedTotal.Add(float64(purged))
		log.Debug().Int64("purged", purged).Msg("Purged expired idempotency records")
	}
}
