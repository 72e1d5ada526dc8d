package contact

import (
	"context"

	"relaydesk/services/channel-api/internal/infrastructure/logger"
	"relaydesk/services/channel-api/internal/utils/platformerrors"
	"relaydesk/services/channel-api/internal/utils/stringutils"
)

// AvatarFetcher resolves a participant's profile picture URL from the
// provider. Implemented by the provider client; failures are tolerated.
type AvatarFetcher interface {
	ProfilePictureURL(ctx context.Context, accessToken, address string) (string, error)
}

// Service maintains contact records and best-effort fetches profile
// pictures. Nothing in the ingestion path depends on it succeeding.
type Service struct {
	repo    Repository
	avatars AvatarFetcher
}

func NewService(repo Repository, avatars AvatarFetcher) *Service {
	return &Service{repo: repo, avatars: avatars}
}

// UpsertInput carries the identity metadata observed on an inbound event.
type UpsertInput struct {
	BotID       uint
	Address     string
	DisplayName string
	Source      Source
	AccessToken string
}

// Upsert writes the contact and, when credentials are available, tries to
// attach a profile picture. The avatar lookup is best-effort: its failure is
// logged and the contact is stored without one.
func (s *Service) Upsert(ctx context.Context, in UpsertInput) error {
	c := &Contact{
		BotID:       in.BotID,
		Address:     stringutils.NormalizeAddress(in.Address),
		DisplayName: in.DisplayName,
		Source:      in.Source,
	}

	if in.AccessToken != "" && s.avatars != nil {
		url, err := s.avatars.ProfilePictureURL(ctx, in.AccessToken, c.Address)
		if err != nil {
			log := logger.GetLogger()
			log.Debug().Err(err).Str("address", c.Address).Msg("profile picture lookup failed")
		} else if url != "" {
			c.ProfilePictureURL = &url
		}
	}

	if err := s.repo.Upsert(ctx, c); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to upsert contact")
	}
	return nil
}
