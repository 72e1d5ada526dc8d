package webhook

import (
	"context"
	"fmt"
	"time"

	"relaydesk/services/channel-api/internal/domain/contact"
	"relaydesk/services/channel-api/internal/domain/conversation"
	"relaydesk/services/channel-api/internal/domain/history"
	"relaydesk/services/channel-api/internal/domain/idempotency"
	"relaydesk/services/channel-api/internal/domain/integration"
	"relaydesk/services/channel-api/internal/infrastructure/logger"
	"relaydesk/services/channel-api/internal/infrastructure/metrics"
	"relaydesk/services/channel-api/internal/infrastructure/observability"
	"relaydesk/services/channel-api/internal/utils/stringutils"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// ===============================================
// Collaborator Interfaces
// ===============================================

// MediaFetcher resolves a provider media id to binary content via the
// two-step signed-URL protocol. Implemented by the provider client.
type MediaFetcher interface {
	FetchMedia(ctx context.Context, mediaID, accessToken string) (data []byte, mimeType string, err error)
}

// MessageSender delivers an outbound text message through the provider and
// returns the provider-assigned message id.
type MessageSender interface {
	SendText(ctx context.Context, accessToken, phoneNumberID, to, text string) (string, error)
}

// ReplyTurn is one unit of context handed to the reply engine.
type ReplyTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ReplyRequest is what the reply engine needs to answer one user message.
type ReplyRequest struct {
	BotID          uint        `json:"bot_id"`
	ConversationID string      `json:"conversation_id"`
	Message        string      `json:"message"`
	History        []ReplyTurn `json:"history"`
}

// Reply is the reply engine's answer.
type Reply struct {
	Content    string `json:"content"`
	TokensUsed int    `json:"tokens_used"`
	LatencyMs  int64  `json:"latency_ms"`
}

// ReplyEngine generates reply text for a user message. It is a black box:
// any error it returns is swallowed and replaced with the fallback reply.
type ReplyEngine interface {
	GenerateReply(ctx context.Context, req *ReplyRequest) (*Reply, error)
}

// ===============================================
// Item Results
// ===============================================

type ItemStatus string

const (
	ItemProcessed ItemStatus = "processed"
	ItemSkipped   ItemStatus = "skipped"
	ItemFailed    ItemStatus = "failed"
)

// ItemResult reports the outcome of one sub-event. Failures live here, in
// the response body, never in the HTTP status.
type ItemResult struct {
	Kind       string     `json:"kind"`
	ExternalID string     `json:"external_id,omitempty"`
	Status     ItemStatus `json:"status"`
	Reason     string     `json:"reason,omitempty"`
}

// Summary is the per-delivery result the handler returns with its 200.
type Summary struct {
	Received  int          `json:"received"`
	Processed int          `json:"processed"`
	Skipped   int          `json:"skipped"`
	Failed    int          `json:"failed"`
	Items     []ItemResult `json:"items"`
}

func (s *Summary) add(res ItemResult) {
	s.Received++
	switch res.Status {
	case ItemProcessed:
		s.Processed++
	case ItemSkipped:
		s.Skipped++
	case ItemFailed:
		s.Failed++
	}
	s.Items = append(s.Items, res)
	metrics.RecordWebhookItem(res.Kind, string(res.Status))
}

// ===============================================
// Dispatcher
// ===============================================

// DefaultStaleCutoff drops very-delayed standard-path deliveries. History
// replay has no cutoff.
const DefaultStaleCutoff = 12 * time.Minute

// Config carries the dispatcher's tunables.
type Config struct {
	StaleCutoff       time.Duration
	FallbackReplyText string
	HistoryLimit      int
	MaxOutboundRunes  int
}

// Dispatcher classifies each inbound change by its field discriminator and
// routes it through the ingestion pipeline. Every sub-event is processed in
// isolation: one bad item never aborts its siblings.
type Dispatcher struct {
	debouncer    *idempotency.Debouncer
	dedup        *idempotency.Deduplicator
	integrations *integration.Service
	resolver     *conversation.Resolver
	takeover     *conversation.Takeover
	contacts     *contact.Service
	messages     conversation.MessageRepository
	media        MediaFetcher
	sender       MessageSender
	replies      ReplyEngine
	reconciler   *history.Reconciler
	cfg          Config
	log          zerolog.Logger
}

func NewDispatcher(
	debouncer *idempotency.Debouncer,
	dedup *idempotency.Deduplicator,
	integrations *integration.Service,
	resolver *conversation.Resolver,
	takeover *conversation.Takeover,
	contacts *contact.Service,
	messages conversation.MessageRepository,
	media MediaFetcher,
	sender MessageSender,
	replies ReplyEngine,
	reconciler *history.Reconciler,
	cfg Config,
) *Dispatcher {
	if cfg.StaleCutoff <= 0 {
		cfg.StaleCutoff = DefaultStaleCutoff
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20
	}
	if cfg.MaxOutboundRunes <= 0 {
		cfg.MaxOutboundRunes = 4096
	}
	return &Dispatcher{
		debouncer:    debouncer,
		dedup:        dedup,
		integrations: integrations,
		resolver:     resolver,
		takeover:     takeover,
		contacts:     contacts,
		messages:     messages,
		media:        media,
		sender:       sender,
		replies:      replies,
		reconciler:   reconciler,
		cfg:          cfg,
		log:          logger.GetLogger(),
	}
}

// Dispatch processes one webhook delivery and returns the per-item summary.
// It never returns an error: malformed top-level payloads are rejected by
// the HTTP handler before this point, and everything below is isolated per
// item.
func (d *Dispatcher) Dispatch(ctx context.Context, payload *Payload) *Summary {
	ctx, span := observability.StartSpan(ctx, "webhook.dispatch")
	defer span.End()

	summary := &Summary{}

	for _, entry := range payload.Entries {
		for _, change := range entry.Changes {
			switch change.Field {
			case FieldMessages:
				for i := range change.Value.Messages {
					d.record(ctx, summary, d.handleUserMessage(ctx, &change.Value, &change.Value.Messages[i]))
				}
			case FieldMessageEchoes:
				for i := range change.Value.Echoes {
					d.record(ctx, summary, d.handleEcho(ctx, &change.Value, &change.Value.Echoes[i]))
				}
			case FieldHistory:
				for i := range change.Value.History {
					d.record(ctx, summary, d.handleHistoryChunk(ctx, &change.Value, &change.Value.History[i]))
				}
			case FieldContactsSync, FieldAppStateSync:
				d.record(ctx, summary, d.handleContactsSync(ctx, change.Field, &change.Value))
			default:
				d.record(ctx, summary, ItemResult{Kind: change.Field, Status: ItemSkipped, Reason: "unknown field"})
			}
		}
	}

	observability.AddSpanAttributes(ctx,
		attribute.Int("webhook.received", summary.Received),
		attribute.Int("webhook.processed", summary.Processed),
		attribute.Int("webhook.skipped", summary.Skipped),
		attribute.Int("webhook.failed", summary.Failed),
	)

	return summary
}

// record folds one item result into the summary and mirrors it onto the
// dispatch span.
func (d *Dispatcher) record(ctx context.Context, summary *Summary, res ItemResult) {
	observability.WebhookItemEvent(ctx, res.Kind, res.ExternalID, string(res.Status), res.Reason)
	if res.Status == ItemFailed {
		observability.RecordError(ctx, fmt.Errorf("%s %s: %s", res.Kind, res.ExternalID, res.Reason))
	}
	summary.add(res)
}

// ===============================================
// User Message Path
// ===============================================

func (d *Dispatcher) handleUserMessage(ctx context.Context, value *Value, msg *InboundMessage) ItemResult {
	res := ItemResult{Kind: FieldMessages, ExternalID: msg.ID}

	if sentAt := msg.SentAt(); !sentAt.IsZero() && time.Since(sentAt) > d.cfg.StaleCutoff {
		res.Status = ItemSkipped
		res.Reason = "stale"
		return res
	}

	channelKey := channelKey(msg.From, value.Metadata.PhoneNumberID)
	if !d.passGuards(ctx, msg.ID, channelKey, &res) {
		return res
	}

	itg, err := d.integrations.Resolve(ctx, value.Metadata.PhoneNumberID)
	if err != nil {
		d.log.Error().Err(err).Str("phone_number_id", value.Metadata.PhoneNumberID).Msg("integration lookup failed")
		res.Status = ItemFailed
		res.Reason = "integration unavailable"
		return res
	}
	accessToken, err := d.integrations.AccessToken(ctx, itg)
	if err != nil {
		d.log.Error().Err(err).Str("phone_number_id", itg.PhoneNumberID).Msg("access token unavailable")
		res.Status = ItemFailed
		res.Reason = "integration unavailable"
		return res
	}

	conv, err := d.resolver.GetOrCreate(ctx, msg.From, itg.BotID)
	if err != nil {
		d.log.Error().Err(err).Str("address", msg.From).Msg("conversation resolution failed")
		res.Status = ItemFailed
		res.Reason = "conversation unavailable"
		return res
	}

	_ = d.contacts.Upsert(ctx, contact.UpsertInput{
		BotID:       itg.BotID,
		Address:     msg.From,
		DisplayName: displayNameFor(value.Contacts, msg.From),
		Source:      contact.SourceMessage,
		AccessToken: accessToken,
	})

	userMsg := d.buildUserMessage(ctx, conv, msg, accessToken)
	inserted, err := d.messages.InsertIfAbsent(ctx, userMsg)
	if err != nil {
		d.log.Error().Err(err).Str("external_id", msg.ID).Msg("failed to persist user message")
		res.Status = ItemFailed
		res.Reason = "persist failed"
		return res
	}
	if !inserted {
		res.Status = ItemSkipped
		res.Reason = "duplicate"
		return res
	}

	if !d.takeover.AllowAutoReply(conv) {
		// Human has the conversation; persist only.
		res.Status = ItemProcessed
		return res
	}

	return d.replyAndSend(ctx, itg, conv, accessToken, msg.From, userMsg.Content, res)
}

// passGuards runs the debounce then dedup checks, mutating res on
// suppression. Storage errors fail open: losing exactly-once is preferable
// to losing a message.
func (d *Dispatcher) passGuards(ctx context.Context, messageID, channelKey string, res *ItemResult) bool {
	ok, err := d.debouncer.ShouldProcess(ctx, messageID, channelKey)
	if err != nil {
		d.log.Error().Err(err).Str("external_id", messageID).Msg("debounce store error, failing open")
		metrics.IdempotencyFailOpenTotal.Inc()
	} else if !ok {
		metrics.RecordIdempotencySkip("debounce")
		res.Status = ItemSkipped
		res.Reason = "debounced"
		return false
	}

	outcome, err := d.dedup.MarkIfNew(ctx, messageID, channelKey)
	if err != nil {
		d.log.Error().Err(err).Str("external_id", messageID).Msg("dedup store error, failing open")
		metrics.IdempotencyFailOpenTotal.Inc()
	} else if outcome == idempotency.OutcomeAlreadyProcessed {
		metrics.RecordIdempotencySkip("dedup")
		res.Status = ItemSkipped
		res.Reason = "duplicate"
		return false
	}

	return true
}

// buildUserMessage derives the persisted content for an inbound message.
// Media fetch is best-effort: the message always lands, with a placeholder
// when the binary cannot be retrieved.
func (d *Dispatcher) buildUserMessage(ctx context.Context, conv *conversation.Conversation, msg *InboundMessage, accessToken string) *conversation.Message {
	externalID := msg.ID
	out := &conversation.Message{
		ConversationID: conv.ID,
		Role:           conversation.MessageRoleUser,
		Channel:        conversation.MessageChannelNormal,
		ExternalID:     &externalID,
		CreatedAt:      time.Now(),
	}

	if msg.Type == "text" && msg.Text != nil {
		out.Content = msg.Text.Body
		return out
	}

	media := msg.Media()
	if media == nil {
		out.Content = fmt.Sprintf("[%s]", msg.Type)
		return out
	}

	mediaID := media.ID
	mediaType := msg.Type
	out.MediaID = &mediaID
	out.MediaType = &mediaType

	data, mimeType, err := d.media.FetchMedia(ctx, media.ID, accessToken)
	if err != nil {
		d.log.Warn().Err(err).Str("media_id", media.ID).Msg("media fetch failed, persisting placeholder")
		metrics.RecordMediaFetch(false)
		out.Content = conversation.MediaUnavailablePlaceholder
		return out
	}
	metrics.RecordMediaFetch(true)
	d.log.Debug().Str("media_id", media.ID).Str("mime_type", mimeType).Int("bytes", len(data)).Msg("media fetched")

	// The mime type resolved during download is authoritative over the
	// payload's claimed message type.
	if mimeType != "" {
		out.MediaType = &mimeType
	}

	if media.Caption != "" {
		out.Content = media.Caption
	} else {
		out.Content = fmt.Sprintf("[%s]", msg.Type)
	}
	return out
}

// replyAndSend invokes the reply engine, persists the assistant message and
// sends it outbound. Responder failures degrade to the fallback text; only a
// persistence or send failure fails the item.
func (d *Dispatcher) replyAndSend(ctx context.Context, itg *integration.Integration, conv *conversation.Conversation, accessToken, to, userContent string, res ItemResult) ItemResult {
	content := d.generateReply(ctx, itg, conv, userContent)

	assistantMsg := &conversation.Message{
		ConversationID: conv.ID,
		Role:           conversation.MessageRoleAssistant,
		Channel:        conversation.MessageChannelNormal,
		Content:        content,
		CreatedAt:      time.Now(),
	}
	if err := d.messages.Add(ctx, assistantMsg); err != nil {
		d.log.Error().Err(err).Uint("conversation_id", conv.ID).Msg("failed to persist assistant message")
		res.Status = ItemFailed
		res.Reason = "persist failed"
		return res
	}

	outbound := stringutils.TruncateRunes(content, d.cfg.MaxOutboundRunes)
	providerID, err := d.sender.SendText(ctx, accessToken, itg.PhoneNumberID, to, outbound)
	if err != nil {
		d.log.Error().Err(err).Str("to", to).Msg("outbound send failed")
		metrics.RecordProviderError("send_text")
		res.Status = ItemFailed
		res.Reason = "send failed"
		return res
	}
	if err := d.messages.SetExternalID(ctx, assistantMsg.ID, providerID); err != nil {
		d.log.Warn().Err(err).Str("provider_id", providerID).Msg("failed to backfill provider message id")
	}

	res.Status = ItemProcessed
	return res
}

func (d *Dispatcher) generateReply(ctx context.Context, itg *integration.Integration, conv *conversation.Conversation, userContent string) string {
	turns := d.recentTurns(ctx, conv.ID)

	start := time.Now()
	reply, err := d.replies.GenerateReply(ctx, &ReplyRequest{
		BotID:          itg.BotID,
		ConversationID: conv.PublicID,
		Message:        userContent,
		History:        turns,
	})
	if err != nil || reply == nil || reply.Content == "" {
		d.log.Error().Err(err).Uint("conversation_id", conv.ID).Msg("reply engine failed, using fallback")
		metrics.RecordResponderCall(time.Since(start).Seconds(), true)
		return d.cfg.FallbackReplyText
	}
	metrics.RecordResponderCall(time.Since(start).Seconds(), false)
	return reply.Content
}

func (d *Dispatcher) recentTurns(ctx context.Context, conversationID uint) []ReplyTurn {
	msgs, err := d.messages.Recent(ctx, conversationID, d.cfg.HistoryLimit)
	if err != nil {
		d.log.Warn().Err(err).Uint("conversation_id", conversationID).Msg("failed to load reply history")
		return nil
	}
	turns := make([]ReplyTurn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, ReplyTurn{Role: string(m.Role), Content: m.Content})
	}
	return turns
}

// ===============================================
// Echo Path
// ===============================================

func (d *Dispatcher) handleEcho(ctx context.Context, value *Value, echo *EchoMessage) ItemResult {
	res := ItemResult{Kind: FieldMessageEchoes, ExternalID: echo.ID}

	// Echoes share ids with nothing else, but get their own channel-key
	// namespace so an echo never collides with the inbound guard records.
	channelKey := channelKey(echo.To, value.Metadata.PhoneNumberID) + ":echo"
	if !d.passGuards(ctx, echo.ID, channelKey, &res) {
		return res
	}

	itg, err := d.integrations.Resolve(ctx, value.Metadata.PhoneNumberID)
	if err != nil {
		d.log.Error().Err(err).Str("phone_number_id", value.Metadata.PhoneNumberID).Msg("integration lookup failed")
		res.Status = ItemFailed
		res.Reason = "integration unavailable"
		return res
	}

	conv, err := d.resolver.GetOrCreate(ctx, echo.To, itg.BotID)
	if err != nil {
		d.log.Error().Err(err).Str("address", echo.To).Msg("conversation resolution failed")
		res.Status = ItemFailed
		res.Reason = "conversation unavailable"
		return res
	}

	content := ""
	if echo.Text != nil {
		content = echo.Text.Body
	}
	externalID := echo.ID
	echoMsg := &conversation.Message{
		ConversationID: conv.ID,
		Role:           conversation.MessageRoleAssistant,
		Channel:        conversation.MessageChannelEcho,
		Content:        content,
		ExternalID:     &externalID,
		CreatedAt:      time.Now(),
	}
	inserted, err := d.messages.InsertIfAbsent(ctx, echoMsg)
	if err != nil {
		d.log.Error().Err(err).Str("external_id", echo.ID).Msg("failed to persist echo message")
		res.Status = ItemFailed
		res.Reason = "persist failed"
		return res
	}
	if !inserted {
		// Redelivered echo: the row and its manual-mode transition already
		// happened, so re-marking would extend the takeover on no new
		// human activity.
		res.Status = ItemSkipped
		res.Reason = "duplicate"
		return res
	}

	// A human replied through the provider's client: suppress the responder.
	if err := d.takeover.MarkManual(ctx, conv); err != nil {
		d.log.Error().Err(err).Uint("conversation_id", conv.ID).Msg("failed to enter manual mode")
		res.Status = ItemFailed
		res.Reason = "takeover update failed"
		return res
	}

	res.Status = ItemProcessed
	return res
}

// ===============================================
// History and Sync Paths
// ===============================================

func (d *Dispatcher) handleHistoryChunk(ctx context.Context, value *Value, chunk *HistoryChunk) ItemResult {
	res := ItemResult{Kind: FieldHistory}

	itg, err := d.integrations.Resolve(ctx, value.Metadata.PhoneNumberID)
	if err != nil {
		d.log.Error().Err(err).Str("phone_number_id", value.Metadata.PhoneNumberID).Msg("integration lookup failed")
		res.Status = ItemFailed
		res.Reason = "integration unavailable"
		return res
	}

	merged, err := d.reconciler.Consume(ctx, itg, toHistoryChunk(chunk))
	if err != nil {
		d.log.Error().Err(err).Str("phone_number_id", itg.PhoneNumberID).Msg("history chunk merge failed")
		res.Status = ItemFailed
		res.Reason = "merge failed"
		return res
	}
	metrics.HistoryMessagesMergedTotal.Add(float64(merged.Inserted))

	res.Status = ItemProcessed
	res.Reason = fmt.Sprintf("merged %d, skipped %d", merged.Inserted, merged.Skipped)
	return res
}

func toHistoryChunk(in *HistoryChunk) *history.Chunk {
	out := &history.Chunk{
		Phase:    in.Metadata.Phase,
		Progress: in.Metadata.Progress,
	}
	for _, thread := range in.Threads {
		t := history.Thread{Address: thread.ID}
		for _, m := range thread.Messages {
			text := ""
			if m.Text != nil {
				text = m.Text.Body
			}
			t.Messages = append(t.Messages, history.ThreadMessage{
				ExternalID: m.ID,
				FromMe:     m.FromMe,
				Type:       m.Type,
				Text:       text,
				Timestamp:  parseEpoch(m.Timestamp),
			})
		}
		out.Threads = append(out.Threads, t)
	}
	return out
}

func (d *Dispatcher) handleContactsSync(ctx context.Context, field string, value *Value) ItemResult {
	res := ItemResult{Kind: field}

	itg, err := d.integrations.Resolve(ctx, value.Metadata.PhoneNumberID)
	if err != nil {
		d.log.Error().Err(err).Str("phone_number_id", value.Metadata.PhoneNumberID).Msg("integration lookup failed")
		res.Status = ItemFailed
		res.Reason = "integration unavailable"
		return res
	}
	accessToken, err := d.integrations.AccessToken(ctx, itg)
	if err != nil {
		accessToken = ""
	}

	for _, profile := range value.Contacts {
		_ = d.contacts.Upsert(ctx, contact.UpsertInput{
			BotID:       itg.BotID,
			Address:     profile.WaID,
			DisplayName: profile.Profile.Name,
			Source:      contact.SourceSync,
			AccessToken: accessToken,
		})
	}

	res.Status = ItemProcessed
	res.Reason = fmt.Sprintf("%d contacts", len(value.Contacts))
	return res
}

// ===============================================
// Helpers
// ===============================================

func channelKey(address, phoneNumberID string) string {
	return stringutils.NormalizeAddress(address) + ":" + phoneNumberID
}

func displayNameFor(contacts []ContactProfile, waID string) string {
	for _, c := range contacts {
		if c.WaID == waID {
			return c.Profile.Name
		}
	}
	return ""
}

func parseEpoch(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t
	}
	var secs int64
	if _, err := fmt.Sscanf(s, "%d", &secs); err == nil && secs > 0 {
		return time.Unix(secs, 0)
	}
	return time.Now()
}
