package conversation_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"relaydesk/services/channel-api/internal/domain/conversation"
	"relaydesk/services/channel-api/internal/utils/platformerrors"
)

// fakeConversationRepo is an in-memory ConversationRepository. Create holds
// one lock around the uniqueness check so it behaves like the database's
// unique index under concurrency.
type fakeConversationRepo struct {
	mu     sync.Mutex
	nextID uint
	byKey  map[string]*conversation.Conversation
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{byKey: make(map[string]*conversation.Conversation)}
}

func (r *fakeConversationRepo) Create(ctx context.Context, conv *conversation.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byKey[conv.SessionKey]; exists {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeConflict, "session key already exists", nil, "test-conflict")
	}
	r.nextID++
	conv.ID = r.nextID
	cp := *conv
	r.byKey[conv.SessionKey] = &cp
	return nil
}

func (r *fakeConversationRepo) FindBySessionKey(ctx context.Context, sessionKey string) (*conversation.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conv, ok := r.byKey[sessionKey]; ok {
		cp := *conv
		return &cp, nil
	}
	return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "conversation not found", nil, "test-not-found")
}

func (r *fakeConversationRepo) FindByID(ctx context.Context, id uint) (*conversation.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, conv := range r.byKey {
		if conv.ID == id {
			cp := *conv
			return &cp, nil
		}
	}
	return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "conversation not found", nil, "test-not-found")
}

func (r *fakeConversationRepo) Update(ctx context.Context, conv *conversation.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *conv
	r.byKey[conv.SessionKey] = &cp
	return nil
}

func (r *fakeConversationRepo) SetStatus(ctx context.Context, id uint, status conversation.ConversationStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, conv := range r.byKey {
		if conv.ID == id {
			conv.Status = status
			return nil
		}
	}
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "conversation not found", nil, "test-not-found")
}

func (r *fakeConversationRepo) MarkManual(ctx context.Context, id uint, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, conv := range r.byKey {
		if conv.ID == id {
			conv.ManualMode = true
			t := at
			conv.LastHumanActivityAt = &t
			return nil
		}
	}
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "conversation not found", nil, "test-not-found")
}

func (r *fakeConversationRepo) ReleaseIdleManual(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var released int64
	for _, conv := range r.byKey {
		if conv.ManualMode && conv.LastHumanActivityAt != nil && conv.LastHumanActivityAt.Before(cutoff) {
			conv.ManualMode = false
			released++
		}
	}
	return released, nil
}

func (r *fakeConversationRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byKey)
}

func TestResolver_GetOrCreate_CreatesOnFirstTraffic(t *testing.T) {
	repo := newFakeConversationRepo()
	resolver := conversation.NewResolver(repo)

	conv, err := resolver.GetOrCreate(context.Background(), "5215512345678", 999)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if conv.Status != conversation.ConversationStatusActive {
		t.Errorf("status = %v, want active", conv.Status)
	}
	if want := conversation.SessionKey("5215512345678", 999); conv.SessionKey != want {
		t.Errorf("session key = %q, want %q", conv.SessionKey, want)
	}
	if repo.count() != 1 {
		t.Errorf("conversation rows = %d, want 1", repo.count())
	}
}

func TestResolver_GetOrCreate_ReusesExisting(t *testing.T) {
	repo := newFakeConversationRepo()
	resolver := conversation.NewResolver(repo)
	ctx := context.Background()

	first, err := resolver.GetOrCreate(ctx, "5215512345678", 999)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	second, err := resolver.GetOrCreate(ctx, "5215512345678", 999)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("second call returned conversation %d, want %d", second.ID, first.ID)
	}
	if repo.count() != 1 {
		t.Errorf("conversation rows = %d, want 1", repo.count())
	}
}

func TestResolver_GetOrCreate_ReactivatesDeleted(t *testing.T) {
	repo := newFakeConversationRepo()
	resolver := conversation.NewResolver(repo)
	ctx := context.Background()

	conv, err := resolver.GetOrCreate(ctx, "5215512345678", 999)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if err := repo.SetStatus(ctx, conv.ID, conversation.ConversationStatusDeleted); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}

	reused, err := resolver.GetOrCreate(ctx, "5215512345678", 999)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if reused.ID != conv.ID {
		t.Errorf("reactivated conversation ID = %d, want %d", reused.ID, conv.ID)
	}
	if reused.Status != conversation.ConversationStatusActive {
		t.Errorf("status = %v, want active", reused.Status)
	}
	if repo.count() != 1 {
		t.Errorf("conversation rows = %d, want exactly 1 (no duplicate)", repo.count())
	}
}

func TestResolver_GetOrCreate_ConcurrentCallsShareOneRow(t *testing.T) {
	repo := newFakeConversationRepo()
	resolver := conversation.NewResolver(repo)
	ctx := context.Background()

	const callers = 12
	var wg sync.WaitGroup
	ids := make(chan uint, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conv, err := resolver.GetOrCreate(ctx, "5215512345678", 999)
			if err != nil {
				t.Errorf("GetOrCreate() error = %v", err)
				return
			}
			ids <- conv.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint]bool)
	for id := range ids {
		seen[id] = true
	}
	if len(seen) != 1 {
		t.Errorf("concurrent callers saw %d distinct conversations, want 1", len(seen))
	}
	if repo.count() != 1 {
		t.Errorf("conversation rows = %d, want 1", repo.count())
	}
}

func TestResolver_GetOrCreate_DistinctBotsGetDistinctConversations(t *testing.T) {
	repo := newFakeConversationRepo()
	resolver := conversation.NewResolver(repo)
	ctx := context.Background()

	a, err := resolver.GetOrCreate(ctx, "5215512345678", 1)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	b, err := resolver.GetOrCreate(ctx, "5215512345678", 2)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if a.ID == b.ID {
		t.Error("same participant with different bots must not share a conversation")
	}
}
