package integration

import (
	"context"
	"testing"
	"time"

	"relaydesk/services/channel-api/internal/utils/crypto"
	"relaydesk/services/channel-api/internal/utils/platformerrors"
)

type fakeRepo struct {
	byPhone      map[string]*Integration
	verifyTokens map[string]bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		byPhone:      make(map[string]*Integration),
		verifyTokens: make(map[string]bool),
	}
}

func (r *fakeRepo) FindByPhoneNumberID(ctx context.Context, phoneNumberID string) (*Integration, error) {
	itg, ok := r.byPhone[phoneNumberID]
	if !ok {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
			"integration not found", nil, "f3d2c1b0-0000-4000-8000-000000000001")
	}
	return itg, nil
}

func (r *fakeRepo) ExistsByVerifyToken(ctx context.Context, token string) (bool, error) {
	return r.verifyTokens[token], nil
}

func (r *fakeRepo) UpdateSyncProgress(ctx context.Context, id uint, progress int, phase string, at time.Time) error {
	return nil
}

func (r *fakeRepo) SetSyncStatus(ctx context.Context, id uint, status SyncStatus) error {
	return nil
}

func (r *fakeRepo) FindRunningSyncsQuietSince(ctx context.Context, cutoff time.Time) ([]*Integration, error) {
	return nil, nil
}

func TestResolveReturnsActiveIntegration(t *testing.T) {
	repo := newFakeRepo()
	repo.byPhone["999"] = &Integration{ID: 1, BotID: 7, PhoneNumberID: "999", IsActive: true}
	svc := NewService(repo, "")

	itg, err := svc.Resolve(context.Background(), "999")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if itg.BotID != 7 {
		t.Errorf("BotID = %d, want 7", itg.BotID)
	}
}

func TestResolveRejectsEmptyPhoneNumberID(t *testing.T) {
	svc := NewService(newFakeRepo(), "")

	_, err := svc.Resolve(context.Background(), "")
	if !platformerrors.IsType(err, platformerrors.ErrorTypeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestResolveRejectsDisabledIntegration(t *testing.T) {
	repo := newFakeRepo()
	repo.byPhone["999"] = &Integration{ID: 1, PhoneNumberID: "999", IsActive: false}
	svc := NewService(repo, "")

	_, err := svc.Resolve(context.Background(), "999")
	if !platformerrors.IsType(err, platformerrors.ErrorTypeConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestAccessTokenPlaintextPassthrough(t *testing.T) {
	svc := NewService(newFakeRepo(), "")

	token, err := svc.AccessToken(context.Background(), &Integration{EncryptedAccessToken: "EAAG-raw"})
	if err != nil {
		t.Fatalf("AccessToken returned error: %v", err)
	}
	if token != "EAAG-raw" {
		t.Errorf("token = %q, want EAAG-raw", token)
	}
}

func TestAccessTokenDecryptsWithSecret(t *testing.T) {
	const secret = "sixteen-byte-key"
	ciphertext, err := crypto.EncryptString(secret, "EAAG-plain")
	if err != nil {
		t.Fatalf("EncryptString: %v", err)
	}
	svc := NewService(newFakeRepo(), secret)

	token, err := svc.AccessToken(context.Background(), &Integration{EncryptedAccessToken: ciphertext})
	if err != nil {
		t.Fatalf("AccessToken returned error: %v", err)
	}
	if token != "EAAG-plain" {
		t.Errorf("token = %q, want EAAG-plain", token)
	}
}

func TestAccessTokenMissingIsConfigurationError(t *testing.T) {
	svc := NewService(newFakeRepo(), "")

	_, err := svc.AccessToken(context.Background(), &Integration{})
	if !platformerrors.IsType(err, platformerrors.ErrorTypeConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestVerifyTokenMatches(t *testing.T) {
	repo := newFakeRepo()
	repo.verifyTokens["stored"] = true
	svc := NewService(repo, "")

	cases := []struct {
		name      string
		static    string
		candidate string
		want      bool
	}{
		{name: "static match", static: "hub-secret", candidate: "hub-secret", want: true},
		{name: "stored match", static: "hub-secret", candidate: "stored", want: true},
		{name: "no match", static: "hub-secret", candidate: "other", want: false},
		{name: "empty candidate", static: "hub-secret", candidate: "", want: false},
		{name: "empty static falls through to stored", static: "", candidate: "stored", want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.VerifyTokenMatches(context.Background(), tc.static, tc.candidate)
			if err != nil {
				t.Fatalf("VerifyTokenMatches: %v", err)
			}
			if got != tc.want {
				t.Errorf("VerifyTokenMatches(%q, %q) = %v, want %v", tc.static, tc.candidate, got, tc.want)
			}
		})
	}
}
