package audit

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// DeliveryAuditLogger records failed webhook items to the audit_logs table
// so operators can review what a delivery dropped and why.
type DeliveryAuditLogger struct {
	db     *gorm.DB
	logger zerolog.Logger
}

func NewDeliveryAuditLogger(db *gorm.DB, logger zerolog.Logger) *DeliveryAuditLogger {
	return &DeliveryAuditLogger{db: db, logger: logger}
}

type DeliveryAuditEntry struct {
	Kind       string
	ExternalID string
	Status     string
	Reason     string
	RequestID  string
	IPAddress  string
	UserAgent  string
}

// Log persists the audit entry; best-effort (logs warning on failure).
func (l *DeliveryAuditLogger) Log(ctx context.Context, entry DeliveryAuditEntry) {
	if l == nil || l.db == nil {
		return
	}

	sql := `
INSERT INTO channel_api.audit_logs
    (kind, external_id, status, reason, request_id, ip_address, user_agent)
VALUES
    (?, ?, ?, ?, ?, ?, ?)
`
	if err := l.db.WithContext(ctx).Exec(sql,
		entry.Kind,
		entry.ExternalID,
		entry.Status,
		entry.Reason,
		entry.RequestID,
		entry.IPAddress,
		entry.UserAgent,
	).Error; err != nil {
		l.logger.Warn().Err(err).Str("kind", entry.Kind).Msg("failed to write delivery audit log")
	}
}
