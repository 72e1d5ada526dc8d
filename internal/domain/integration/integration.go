package integration

import (
	"context"
	"time"
)

// ===============================================
// Integration Types
// ===============================================

// SyncStatus tracks the provider's bulk history backfill for one
// integration.
type SyncStatus string

const (
	SyncStatusIdle      SyncStatus = "idle"
	SyncStatusRunning   SyncStatus = "running"
	SyncStatusCompleted SyncStatus = "completed"
)

// Metadata keys maintained by the ingestion path. The rest of the metadata
// map belongs to configuration management and is passed through untouched.
const (
	MetadataSyncProgress = "history_sync_progress"
	MetadataSyncPhase    = "history_sync_phase"
)

// Integration is the configuration for one provider connection. It is owned
// by configuration management; this service reads it to resolve which bot a
// delivery belongs to and to authenticate outbound calls, and writes only
// the history-sync progress fields.
type Integration struct {
	ID                   uint              `json:"-"`
	BotID                uint              `json:"-"`
	PhoneNumberID        string            `json:"phone_number_id"`
	EncryptedAccessToken string            `json:"-"`
	VerifyToken          string            `json:"-"`
	IsActive             bool              `json:"is_active"`
	Metadata             map[string]string `json:"metadata,omitempty"`
	SyncStatus           SyncStatus        `json:"sync_status"`
	LastSyncEventAt      *time.Time        `json:"last_sync_event_at,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// ===============================================
// Integration Repository
// ===============================================

type Repository interface {
	FindByPhoneNumberID(ctx context.Context, phoneNumberID string) (*Integration, error)
	// ExistsByVerifyToken reports whether any integration stores the given
	// webhook verify token.
	ExistsByVerifyToken(ctx context.Context, token string) (bool, error)

	// UpdateSyncProgress advances the stored progress/phase and the last
	// chunk timestamp, and moves the integration into SyncStatusRunning.
	// Progress only moves forward: a late or repeated chunk with a lower
	// percentage must not regress it.
	UpdateSyncProgress(ctx context.Context, id uint, progress int, phase string, at time.Time) error
	SetSyncStatus(ctx context.Context, id uint, status SyncStatus) error
	// FindRunningSyncsQuietSince returns integrations whose history sync is
	// running but has received no chunk since the cutoff.
	FindRunningSyncsQuietSince(ctx context.Context, cutoff time.Time) ([]*Integration, error)
}
