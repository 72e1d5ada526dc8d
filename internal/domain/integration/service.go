package integration

import (
	"context"

	"relaydesk/services/channel-api/internal/utils/crypto"
	"relaydesk/services/channel-api/internal/utils/platformerrors"
)

// ===============================================
// Integration Service
// ===============================================

// Service resolves deliveries to the integration that owns them and hands
// out decrypted access tokens for outbound provider calls.
type Service struct {
	repo        Repository
	tokenSecret string
}

func NewService(repo Repository, tokenSecret string) *Service {
	return &Service{repo: repo, tokenSecret: tokenSecret}
}

// Resolve returns the active integration for the given provider phone number
// id. A delivery addressed to an unknown or disabled integration is a
// configuration problem, not a transient one; callers should drop the item
// rather than retry.
func (s *Service) Resolve(ctx context.Context, phoneNumberID string) (*Integration, error) {
	if phoneNumberID == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"phone number id is required", nil, "be2f0d41-5a47-4f8e-9f0c-3a1d6b8e2c94")
	}

	itg, err := s.repo.FindByPhoneNumberID(ctx, phoneNumberID)
	if err != nil {
		return nil, err
	}
	if !itg.IsActive {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConfiguration,
			"integration is disabled", nil, "0c9d7c3e-6f12-4bd1-8a55-e4b2a9d17f60")
	}
	return itg, nil
}

// AccessToken decrypts the stored provider token. When no secret is
// configured the token is assumed to be stored in the clear.
func (s *Service) AccessToken(ctx context.Context, itg *Integration) (string, error) {
	if itg.EncryptedAccessToken == "" {
		return "", platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConfiguration,
			"integration has no access token", nil, "7a3b1f58-9d04-4e6c-b2d7-5c8e0f41a923")
	}
	if s.tokenSecret == "" {
		return itg.EncryptedAccessToken, nil
	}
	token, err := crypto.DecryptString(s.tokenSecret, itg.EncryptedAccessToken)
	if err != nil {
		return "", platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConfiguration,
			"failed to decrypt integration access token", err, "d1e8b6a2-4c70-49f3-a8e1-92b5d03c7f46")
	}
	return token, nil
}

// VerifyTokenMatches checks a webhook subscription verify token against the
// static configured token first, then against the per-integration tokens.
func (s *Service) VerifyTokenMatches(ctx context.Context, staticToken, candidate string) (bool, error) {
	if candidate == "" {
		return false, nil
	}
	if staticToken != "" && candidate == staticToken {
		return true, nil
	}
	return s.repo.ExistsByVerifyToken(ctx, candidate)
}
