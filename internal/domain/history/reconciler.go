package history

import (
	"context"
	"strconv"
	"time"

	"relaydesk/services/channel-api/internal/domain/contact"
	"relaydesk/services/channel-api/internal/domain/conversation"
	"relaydesk/services/channel-api/internal/domain/integration"
	"relaydesk/services/channel-api/internal/infrastructure/logger"

	"github.com/rs/zerolog"
)

// ===============================================
// History Sync Types
// ===============================================

// Chunk is one history-sync delivery from the provider. The provider slices
// a backfill into many chunks and reports a coarse percentage alongside each
// one; chunks may repeat and may arrive out of order.
type Chunk struct {
	Phase    string   `json:"phase"`
	Progress int      `json:"progress"`
	Threads  []Thread `json:"threads"`
}

// Thread is one past conversation inside a chunk.
type Thread struct {
	Address     string          `json:"address"`
	DisplayName string          `json:"display_name"`
	Messages    []ThreadMessage `json:"messages"`
}

// ThreadMessage is one historical message. Only text bodies are carried;
// media in history arrives without a retrievable handle.
type ThreadMessage struct {
	ExternalID string    `json:"external_id"`
	FromMe     bool      `json:"from_me"`
	Type       string    `json:"type"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
}

// Result summarizes one chunk for logging.
type Result struct {
	Threads  int
	Inserted int
	Skipped  int
}

// ===============================================
// History Reconciler
// ===============================================

// QuietGap is how long a running sync may go without a chunk before the
// finalizer declares it complete. The provider does not always send a 100%
// chunk, so silence is the only reliable end signal.
const QuietGap = 60 * time.Second

// Reconciler merges history-sync chunks into the live conversation store.
// The whole merge is idempotent: re-delivered chunks insert nothing new and
// never move progress backwards.
type Reconciler struct {
	resolver     *conversation.Resolver
	messages     conversation.MessageRepository
	contacts     *contact.Service
	integrations integration.Repository
	quietGap     time.Duration
	log          zerolog.Logger
}

func NewReconciler(
	resolver *conversation.Resolver,
	messages conversation.MessageRepository,
	contacts *contact.Service,
	integrations integration.Repository,
	quietGap time.Duration,
) *Reconciler {
	if quietGap <= 0 {
		quietGap = QuietGap
	}
	return &Reconciler{
		resolver:     resolver,
		messages:     messages,
		contacts:     contacts,
		integrations: integrations,
		quietGap:     quietGap,
		log:          logger.GetLogger(),
	}
}

// Consume merges one chunk for the given integration. Thread failures are
// isolated: a bad thread is logged and skipped so the rest of the chunk
// still lands. The returned error is reserved for progress-tracking
// failures, which the caller may retry via provider redelivery.
func (r *Reconciler) Consume(ctx context.Context, itg *integration.Integration, chunk *Chunk) (*Result, error) {
	now := time.Now().UTC()
	res := &Result{Threads: len(chunk.Threads)}

	for _, thread := range chunk.Threads {
		if err := r.consumeThread(ctx, itg, thread, res); err != nil {
			r.log.Warn().Err(err).
				Str("phone_number_id", itg.PhoneNumberID).
				Str("address", thread.Address).
				Msg("skipping history thread")
		}
	}

	if err := r.integrations.UpdateSyncProgress(ctx, itg.ID, chunk.Progress, chunk.Phase, now); err != nil {
		return res, err
	}
	if chunk.Progress >= 100 {
		if err := r.integrations.SetSyncStatus(ctx, itg.ID, integration.SyncStatusCompleted); err != nil {
			return res, err
		}
		r.log.Info().Str("phone_number_id", itg.PhoneNumberID).Msg("history sync completed")
	}
	return res, nil
}

func (r *Reconciler) consumeThread(ctx context.Context, itg *integration.Integration, thread Thread, res *Result) error {
	conv, err := r.resolver.GetOrCreate(ctx, thread.Address, itg.BotID)
	if err != nil {
		return err
	}

	if thread.Address != "" {
		_ = r.contacts.Upsert(ctx, contact.UpsertInput{
			BotID:       itg.BotID,
			Address:     thread.Address,
			DisplayName: thread.DisplayName,
			Source:      contact.SourceHistory,
		})
	}

	for _, tm := range thread.Messages {
		if tm.Type != "text" || tm.Text == "" {
			res.Skipped++
			continue
		}
		role := conversation.MessageRoleUser
		if tm.FromMe {
			role = conversation.MessageRoleAssistant
		}
		externalID := tm.ExternalID
		msg := &conversation.Message{
			ConversationID: conv.ID,
			Role:           role,
			Channel:        conversation.MessageChannelHistory,
			Content:        tm.Text,
			ExternalID:     &externalID,
			CreatedAt:      tm.Timestamp,
		}
		inserted, err := r.messages.InsertIfAbsent(ctx, msg)
		if err != nil {
			return err
		}
		if inserted {
			res.Inserted++
		} else {
			res.Skipped++
		}
	}
	return nil
}

// FinalizeQuietSyncs marks running syncs as completed once they have been
// silent for the quiet gap. Returns how many were finalized.
func (r *Reconciler) FinalizeQuietSyncs(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-r.quietGap)
	stale, err := r.integrations.FindRunningSyncsQuietSince(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	finalized := 0
	for _, itg := range stale {
		if err := r.integrations.SetSyncStatus(ctx, itg.ID, integration.SyncStatusCompleted); err != nil {
			r.log.Error().Err(err).Str("phone_number_id", itg.PhoneNumberID).Msg("failed to finalize history sync")
			continue
		}
		progress := itg.Metadata[integration.MetadataSyncProgress]
		if progress == "" {
			progress = strconv.Itoa(0)
		}
		r.log.Info().
			Str("phone_number_id", itg.PhoneNumberID).
			Str("progress", progress).
			Msg("history sync finalized after quiet gap")
		finalized++
	}
	return finalized, nil
}
