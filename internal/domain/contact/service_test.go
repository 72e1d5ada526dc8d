package contact

import (
	"context"
	"errors"
	"testing"
)

type fakeRepo struct {
	contacts map[string]*Contact
	err      error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{contacts: make(map[string]*Contact)}
}

func (r *fakeRepo) Upsert(ctx context.Context, c *Contact) error {
	if r.err != nil {
		return r.err
	}
	r.contacts[c.Address] = c
	return nil
}

func (r *fakeRepo) FindByAddress(ctx context.Context, botID uint, address string) (*Contact, error) {
	c, ok := r.contacts[address]
	if !ok {
		return nil, errors.New("not found")
	}
	return c, nil
}

type fakeAvatars struct {
	url   string
	err   error
	calls int
}

func (f *fakeAvatars) ProfilePictureURL(ctx context.Context, accessToken, address string) (string, error) {
	f.calls++
	return f.url, f.err
}

func TestUpsertNormalizesAddressAndStoresAvatar(t *testing.T) {
	repo := newFakeRepo()
	avatars := &fakeAvatars{url: "https://cdn.example.com/pic.jpg"}
	svc := NewService(repo, avatars)

	err := svc.Upsert(context.Background(), UpsertInput{
		BotID:       7,
		Address:     " +34600111222 ",
		DisplayName: "Alice",
		Source:      SourceMessage,
		AccessToken: "token",
	})
	if err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	stored, ok := repo.contacts["34600111222"]
	if !ok {
		t.Fatalf("contact not stored under normalized address, got %v", repo.contacts)
	}
	if stored.DisplayName != "Alice" {
		t.Errorf("DisplayName = %q, want Alice", stored.DisplayName)
	}
	if stored.ProfilePictureURL == nil || *stored.ProfilePictureURL != avatars.url {
		t.Errorf("ProfilePictureURL = %v, want %q", stored.ProfilePictureURL, avatars.url)
	}
}

func TestUpsertToleratesAvatarFailure(t *testing.T) {
	repo := newFakeRepo()
	avatars := &fakeAvatars{err: errors.New("provider down")}
	svc := NewService(repo, avatars)

	err := svc.Upsert(context.Background(), UpsertInput{
		BotID:       7,
		Address:     "34600111222",
		DisplayName: "Alice",
		Source:      SourceHistory,
		AccessToken: "token",
	})
	if err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	stored := repo.contacts["34600111222"]
	if stored == nil {
		t.Fatal("contact not stored")
	}
	if stored.ProfilePictureURL != nil {
		t.Errorf("ProfilePictureURL = %v, want nil", *stored.ProfilePictureURL)
	}
}

func TestUpsertSkipsAvatarWithoutToken(t *testing.T) {
	repo := newFakeRepo()
	avatars := &fakeAvatars{url: "https://cdn.example.com/pic.jpg"}
	svc := NewService(repo, avatars)

	err := svc.Upsert(context.Background(), UpsertInput{
		BotID:   7,
		Address: "34600111222",
		Source:  SourceSync,
	})
	if err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	if avatars.calls != 0 {
		t.Errorf("avatar fetcher called %d times, want 0", avatars.calls)
	}
}

func TestUpsertWrapsRepositoryError(t *testing.T) {
	repo := newFakeRepo()
	repo.err = errors.New("connection reset")
	svc := NewService(repo, nil)

	err := svc.Upsert(context.Background(), UpsertInput{BotID: 7, Address: "34600111222"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}
