package history

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"relaydesk/services/channel-api/internal/domain/contact"
	"relaydesk/services/channel-api/internal/domain/conversation"
	"relaydesk/services/channel-api/internal/domain/integration"
	"relaydesk/services/channel-api/internal/utils/platformerrors"
)

// ===============================================
// Fakes
// ===============================================

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
	if _, ok := r.byKey[conv.SessionKey]; ok {
		return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeConflict,
			"duplicate session key", nil, "11111111-1111-1111-1111-111111111111")
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
	conv, ok := r.byKey[sessionKey]
	if !ok {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeNotFound,
			"conversation not found", nil, "22222222-2222-2222-2222-222222222222")
	}
	cp := *conv
	return &cp, nil
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
	return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeNotFound,
		"conversation not found", nil, "33333333-3333-3333-3333-333333333333")
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
		}
	}
	return nil
}

func (r *fakeConversationRepo) MarkManual(ctx context.Context, id uint, at time.Time) error {
	return nil
}

func (r *fakeConversationRepo) ReleaseIdleManual(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	nextID   uint
	messages []*conversation.Message
}

func (r *fakeMessageRepo) key(convID uint, externalID string) string {
	return fmt.Sprintf("%d:%s", convID, externalID)
}

func (r *fakeMessageRepo) Add(ctx context.Context, msg *conversation.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	msg.ID = r.nextID
	cp := *msg
	r.messages = append(r.messages, &cp)
	return nil
}

func (r *fakeMessageRepo) InsertIfAbsent(ctx context.Context, msg *conversation.Message) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg.ExternalID != nil {
		for _, m := range r.messages {
			if m.ConversationID == msg.ConversationID && m.ExternalID != nil && *m.ExternalID == *msg.ExternalID {
				return false, nil
			}
		}
	}
	r.nextID++
	msg.ID = r.nextID
	cp := *msg
	r.messages = append(r.messages, &cp)
	return true, nil
}

func (r *fakeMessageRepo) SetExternalID(ctx context.Context, id uint, externalID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ID == id {
			m.ExternalID = &externalID
		}
	}
	return nil
}

func (r *fakeMessageRepo) Recent(ctx context.Context, conversationID uint, limit int) ([]*conversation.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*conversation.Message
	for _, m := range r.messages {
		if m.ConversationID == conversationID {
			cp := *m
			out = append(out, &cp)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *fakeMessageRepo) Count(ctx context.Context, filter conversation.MessageFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.messages {
		if filter.ConversationID != nil && m.ConversationID != *filter.ConversationID {
			continue
		}
		if filter.Channel != nil && m.Channel != *filter.Channel {
			continue
		}
		n++
	}
	return n, nil
}

type fakeContactRepo struct {
	mu       sync.Mutex
	contacts map[string]*contact.Contact
}

func newFakeContactRepo() *fakeContactRepo {
	return &fakeContactRepo{contacts: make(map[string]*contact.Contact)}
}

func (r *fakeContactRepo) Upsert(ctx context.Context, c *contact.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := fmt.Sprintf("%d:%s", c.BotID, c.Address)
	existing, ok := r.contacts[key]
	if !ok {
		cp := *c
		r.contacts[key] = &cp
		return nil
	}
	if c.DisplayName != "" {
		existing.DisplayName = c.DisplayName
	}
	if c.ProfilePictureURL != nil {
		existing.ProfilePictureURL = c.ProfilePictureURL
	}
	existing.Source = c.Source
	return nil
}

func (r *fakeContactRepo) FindByAddress(ctx context.Context, botID uint, address string) (*contact.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contacts[fmt.Sprintf("%d:%s", botID, address)]
	if !ok {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeNotFound,
			"contact not found", nil, "44444444-4444-4444-4444-444444444444")
	}
	cp := *c
	return &cp, nil
}

type fakeIntegrationRepo struct {
	mu           sync.Mutex
	integrations map[uint]*integration.Integration
}

func newFakeIntegrationRepo(itgs ...*integration.Integration) *fakeIntegrationRepo {
	r := &fakeIntegrationRepo{integrations: make(map[uint]*integration.Integration)}
	for _, itg := range itgs {
		r.integrations[itg.ID] = itg
	}
	return r
}

func (r *fakeIntegrationRepo) FindByPhoneNumberID(ctx context.Context, phoneNumberID string) (*integration.Integration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, itg := range r.integrations {
		if itg.PhoneNumberID == phoneNumberID {
			return itg, nil
		}
	}
	return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeNotFound,
		"integration not found", nil, "55555555-5555-5555-5555-555555555555")
}

func (r *fakeIntegrationRepo) ExistsByVerifyToken(ctx context.Context, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, itg := range r.integrations {
		if itg.VerifyToken == token {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeIntegrationRepo) UpdateSyncProgress(ctx context.Context, id uint, progress int, phase string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	itg, ok := r.integrations[id]
	if !ok {
		return platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeNotFound,
			"integration not found", nil, "66666666-6666-6666-6666-666666666666")
	}
	if itg.Metadata == nil {
		itg.Metadata = make(map[string]string)
	}
	if atoiOr(itg.Metadata[integration.MetadataSyncProgress]) < progress {
		itg.Metadata[integration.MetadataSyncProgress] = fmt.Sprintf("%d", progress)
		itg.Metadata[integration.MetadataSyncPhase] = phase
	}
	itg.SyncStatus = integration.SyncStatusRunning
	t := at
	itg.LastSyncEventAt = &t
	return nil
}

func atoiOr(s string) int {
	var n int
	fmt.Sscanf(s, "%d", &n)
	return n
}

func (r *fakeIntegrationRepo) SetSyncStatus(ctx context.Context, id uint, status integration.SyncStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if itg, ok := r.integrations[id]; ok {
		itg.SyncStatus = status
	}
	return nil
}

func (r *fakeIntegrationRepo) FindRunningSyncsQuietSince(ctx context.Context, cutoff time.Time) ([]*integration.Integration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*integration.Integration
	for _, itg := range r.integrations {
		if itg.SyncStatus == integration.SyncStatusRunning && itg.LastSyncEventAt != nil && itg.LastSyncEventAt.Before(cutoff) {
			out = append(out, itg)
		}
	}
	return out, nil
}

// ===============================================
// Helpers
// ===============================================

func newTestReconciler(itg *integration.Integration) (*Reconciler, *fakeMessageRepo, *fakeIntegrationRepo) {
	convRepo := newFakeConversationRepo()
	msgRepo := &fakeMessageRepo{}
	itgRepo := newFakeIntegrationRepo(itg)
	contacts := contact.NewService(newFakeContactRepo(), nil)
	r := NewReconciler(conversation.NewResolver(convRepo), msgRepo, contacts, itgRepo, QuietGap)
	return r, msgRepo, itgRepo
}

func testIntegration() *integration.Integration {
	return &integration.Integration{
		ID:            1,
		BotID:         7,
		PhoneNumberID: "555000111",
		IsActive:      true,
		SyncStatus:    integration.SyncStatusIdle,
	}
}

func textMsg(id, text string, fromMe bool, at time.Time) ThreadMessage {
	return ThreadMessage{ExternalID: id, FromMe: fromMe, Type: "text", Text: text, Timestamp: at}
}

// ===============================================
// Tests
// ===============================================

func TestConsumeInsertsTextMessages(t *testing.T) {
	itg := testIntegration()
	r, msgRepo, _ := newTestReconciler(itg)
	now := time.Now()

	chunk := &Chunk{
		Phase:    "recent",
		Progress: 40,
		Threads: []Thread{
			{
				Address:     "15550001234",
				DisplayName: "Ada",
				Messages: []ThreadMessage{
					textMsg("wamid.h1", "hello", false, now.Add(-time.Hour)),
					textMsg("wamid.h2", "hi there", true, now.Add(-59*time.Minute)),
				},
			},
		},
	}

	res, err := r.Consume(context.Background(), itg, chunk)
	if err != nil {
		t.Fatalf("Consume returned error: %v", err)
	}
	if res.Inserted != 2 {
		t.Errorf("expected 2 inserted, got %d", res.Inserted)
	}
	if len(msgRepo.messages) != 2 {
		t.Fatalf("expected 2 stored messages, got %d", len(msgRepo.messages))
	}
	if msgRepo.messages[0].Role != conversation.MessageRoleUser {
		t.Errorf("expected first message role user, got %s", msgRepo.messages[0].Role)
	}
	if msgRepo.messages[1].Role != conversation.MessageRoleAssistant {
		t.Errorf("expected from_me message role assistant, got %s", msgRepo.messages[1].Role)
	}
	for _, m := range msgRepo.messages {
		if m.Channel != conversation.MessageChannelHistory {
			t.Errorf("expected history channel, got %s", m.Channel)
		}
	}
}

func TestConsumeIsIdempotentAcrossRedelivery(t *testing.T) {
	itg := testIntegration()
	r, msgRepo, _ := newTestReconciler(itg)
	now := time.Now()

	chunk := &Chunk{
		Phase:    "recent",
		Progress: 50,
		Threads: []Thread{
			{
				Address: "15550001234",
				Messages: []ThreadMessage{
					textMsg("wamid.h1", "hello", false, now),
				},
			},
		},
	}

	if _, err := r.Consume(context.Background(), itg, chunk); err != nil {
		t.Fatalf("first Consume returned error: %v", err)
	}
	res, err := r.Consume(context.Background(), itg, chunk)
	if err != nil {
		t.Fatalf("second Consume returned error: %v", err)
	}
	if res.Inserted != 0 {
		t.Errorf("redelivered chunk inserted %d messages, want 0", res.Inserted)
	}
	if res.Skipped != 1 {
		t.Errorf("expected 1 skipped on redelivery, got %d", res.Skipped)
	}
	if len(msgRepo.messages) != 1 {
		t.Errorf("expected 1 stored message after redelivery, got %d", len(msgRepo.messages))
	}
}

func TestConsumeSkipsNonTextMessages(t *testing.T) {
	itg := testIntegration()
	r, msgRepo, _ := newTestReconciler(itg)
	now := time.Now()

	chunk := &Chunk{
		Progress: 10,
		Threads: []Thread{
			{
				Address: "15550001234",
				Messages: []ThreadMessage{
					{ExternalID: "wamid.v1", Type: "video", Timestamp: now},
					textMsg("wamid.t1", "caption follows", false, now),
					{ExternalID: "wamid.s1", Type: "sticker", Timestamp: now},
				},
			},
		},
	}

	res, err := r.Consume(context.Background(), itg, chunk)
	if err != nil {
		t.Fatalf("Consume returned error: %v", err)
	}
	if res.Inserted != 1 {
		t.Errorf("expected 1 inserted, got %d", res.Inserted)
	}
	if res.Skipped != 2 {
		t.Errorf("expected 2 skipped, got %d", res.Skipped)
	}
	if len(msgRepo.messages) != 1 {
		t.Errorf("expected 1 stored message, got %d", len(msgRepo.messages))
	}
}

func TestConsumeTracksProgressAndCompletesAtFull(t *testing.T) {
	itg := testIntegration()
	r, _, itgRepo := newTestReconciler(itg)

	if _, err := r.Consume(context.Background(), itg, &Chunk{Progress: 30}); err != nil {
		t.Fatalf("Consume returned error: %v", err)
	}
	if got := itgRepo.integrations[1].SyncStatus; got != integration.SyncStatusRunning {
		t.Errorf("expected running after partial chunk, got %s", got)
	}
	if itgRepo.integrations[1].LastSyncEventAt == nil {
		t.Error("expected last_sync_event_at to be stamped")
	}

	if _, err := r.Consume(context.Background(), itg, &Chunk{Progress: 100}); err != nil {
		t.Fatalf("Consume returned error: %v", err)
	}
	if got := itgRepo.integrations[1].SyncStatus; got != integration.SyncStatusCompleted {
		t.Errorf("expected completed at 100%%, got %s", got)
	}
}

func TestFinalizeQuietSyncs(t *testing.T) {
	quiet := testIntegration()
	stale := time.Now().Add(-5 * time.Minute)
	quiet.SyncStatus = integration.SyncStatusRunning
	quiet.LastSyncEventAt = &stale

	active := testIntegration()
	active.ID = 2
	active.PhoneNumberID = "555000222"
	fresh := time.Now().Add(-5 * time.Second)
	active.SyncStatus = integration.SyncStatusRunning
	active.LastSyncEventAt = &fresh

	convRepo := newFakeConversationRepo()
	itgRepo := newFakeIntegrationRepo(quiet, active)
	contacts := contact.NewService(newFakeContactRepo(), nil)
	r := NewReconciler(conversation.NewResolver(convRepo), &fakeMessageRepo{}, contacts, itgRepo, QuietGap)

	finalized, err := r.FinalizeQuietSyncs(context.Background())
	if err != nil {
		t.Fatalf("FinalizeQuietSyncs returned error: %v", err)
	}
	if finalized != 1 {
		t.Errorf("expected 1 finalized, got %d", finalized)
	}
	if got := itgRepo.integrations[1].SyncStatus; got != integration.SyncStatusCompleted {
		t.Errorf("quiet sync should be completed, got %s", got)
	}
	if got := itgRepo.integrations[2].SyncStatus; got != integration.SyncStatusRunning {
		t.Errorf("fresh sync should still be running, got %s", got)
	}

	// A second sweep finds nothing left to finalize.
	finalized, err = r.FinalizeQuietSyncs(context.Background())
	if err != nil {
		t.Fatalf("second FinalizeQuietSyncs returned error: %v", err)
	}
	if finalized != 0 {
		t.Errorf("expected 0 finalized on second sweep, got %d", finalized)
	}
}
