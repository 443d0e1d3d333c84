package shared

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// AuditLog is one row of audit_logs: who changed which record and how.
type AuditLog struct {
	ActorID  string
	Role     Role
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// AuditRecorder is implemented by anything able to persist audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, log AuditLog) error
}

// Execer is the subset of *pgxpool.Pool used by AuditLogger.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const insertAudit = `INSERT INTO audit_logs (actor_id, actor_role, action, entity, entity_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

// AuditLogger writes records into audit_logs.
type AuditLogger struct {
	db  Execer
	now func() time.Time
}

// NewAuditLogger returns an AuditLogger backed by db.
func NewAuditLogger(db Execer) *AuditLogger {
	return &AuditLogger{db: db, now: time.Now}
}

// Record persists the log entry. Entries stamped with a zero time get the
// logger's clock in UTC.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil || l.db == nil {
		return fmt.Errorf("audit: %w: logger not initialised", ErrStorage)
	}
	if strings.TrimSpace(log.Action) == "" || strings.TrimSpace(log.Entity) == "" || strings.TrimSpace(log.EntityID) == "" {
		return fmt.Errorf("audit: %w: action, entity and entity_id are required", ErrValidation)
	}
	meta := log.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("audit: %w: meta: %v", ErrValidation, err)
	}
	at := log.At
	if at.IsZero() {
		at = l.now()
	}
	if _, err := l.db.Exec(ctx, insertAudit,
		log.ActorID, string(log.Role), log.Action, log.Entity, log.EntityID, metaJSON, at.UTC()); err != nil {
		return fmt.Errorf("audit: insert: %w: %v", ErrStorage, err)
	}
	return nil
}
