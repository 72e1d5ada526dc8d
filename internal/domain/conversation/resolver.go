package conversation

import (
	"context"

	"relaydesk/services/channel-api/internal/infrastructure/metrics"
	"relaydesk/services/channel-api/internal/utils/idgen"
	"relaydesk/services/channel-api/internal/utils/platformerrors"
)

// Resolver maps a remote participant address plus bot id to a single logical
// conversation, reactivating soft-deleted ones instead of forking duplicates.
type Resolver struct {
	repo ConversationRepository
}

func NewResolver(repo ConversationRepository) *Resolver {
	return &Resolver{repo: repo}
}

// GetOrCreate returns the one conversation for the (participant, bot) pair,
// creating it on first traffic. A DELETED conversation is flipped back to
// ACTIVE and reused. Concurrent creates for the same key are arbitrated by
// the session-key unique constraint: the loser re-fetches the winner.
func (r *Resolver) GetOrCreate(ctx context.Context, participantAddress string, botID uint) (*Conversation, error) {
	sessionKey := SessionKey(participantAddress, botID)

	conv, err := r.repo.FindBySessionKey(ctx, sessionKey)
	if err == nil {
		if conv.Status == ConversationStatusDeleted {
			if err := r.repo.SetStatus(ctx, conv.ID, ConversationStatusActive); err != nil {
				return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to reactivate conversation")
			}
			conv.Status = ConversationStatusActive
		}
		return conv, nil
	}
	if !platformerrors.IsType(err, platformerrors.ErrorTypeNotFound) {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to look up conversation")
	}

	publicID, err := idgen.GenerateSecureID("conv", 16)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to generate conversation id")
	}

	conv = NewConversation(publicID, participantAddress, botID)
	if err := r.repo.Create(ctx, conv); err != nil {
		if platformerrors.IsType(err, platformerrors.ErrorTypeConflict) {
			// Another instance won the create race; use its row.
			return r.repo.FindBySessionKey(ctx, sessionKey)
		}
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to create conversation")
	}
	metrics.ConversationsCreatedTotal.Inc()

	return conv, nil
}
