package shared

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execSpy struct {
	sql  string
	args []any
	err  error
}

func (e *execSpy) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	e.sql, e.args = sql, args
	return pgconn.NewCommandTag("INSERT 0 1"), e.err
}

func TestAuditLoggerRecord(t *testing.T) {
	spy := &execSpy{}
	logger := NewAuditLogger(spy)
	fixed := time.Date(2024, 5, 2, 9, 30, 0, 0, time.FixedZone("GMT+1", 3600))
	logger.now = func() time.Time { return fixed }

	err := logger.Record(context.Background(), AuditLog{
		ActorID: "acc-1", Role: RoleAccountant, Action: "toggle", Entity: "accounting_report", EntityID: "42",
	})
	require.NoError(t, err)
	assert.Contains(t, spy.sql, "INSERT INTO audit_logs")
	require.Len(t, spy.args, 7)
	assert.Equal(t, "accountant", spy.args[1])
	assert.Equal(t, []byte("{}"), spy.args[5])
	assert.Equal(t, fixed.UTC(), spy.args[6])
}

func TestAuditLoggerRejectsIncompleteEntries(t *testing.T) {
	spy := &execSpy{}
	err := NewAuditLogger(spy).Record(context.Background(), AuditLog{Action: "settle", Entity: " "})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, spy.sql)
}

func TestAuditLoggerStorageFailure(t *testing.T) {
	err := NewAuditLogger(&execSpy{err: errors.New("conn refused")}).Record(context.Background(), AuditLog{
		Action: "create", Entity: "business", EntityID: "1",
	})
	assert.ErrorIs(t, err, ErrStorage)

	var nilLogger *AuditLogger
	assert.ErrorIs(t, nilLogger.Record(context.Background(), AuditLog{}), ErrStorage)
}
