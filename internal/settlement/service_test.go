package settlement

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daybook/daybook/internal/ledger"
	"github.com/daybook/daybook/internal/ledger/ledgertest"
	"github.com/daybook/daybook/internal/shared"
)

type auditSpy struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

func (a *auditSpy) Record(_ context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

type fixture struct {
	store  *ledgertest.Store
	locker *redislock.Client
	audit  *auditSpy
	svc    *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := ledgertest.New()
	locker := redislock.New(client)
	spy := &auditSpy{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{
		store:  store,
		locker: locker,
		audit:  spy,
		svc:    NewService(store, locker, logger, WithAudit(spy), WithLockTTL(5*time.Second)),
	}
}

func (f *fixture) seedOperational(t *testing.T, submitter string, debts ...ledger.Line) ledger.OperationalReport {
	t.Helper()
	b := f.store.AddBusiness("Quincaillerie 1", ledger.CategoryHardwareStore)
	rep, err := f.store.InsertOperationalReport(context.Background(), ledger.OperationalReport{
		BusinessID:  b.ID,
		SubmitterID: submitter,
		Date:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Debts:       debts,
	})
	require.NoError(t, err)
	return rep
}

var manager = shared.Actor{ID: "m1", Role: shared.RoleManager}

func TestSettleEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rep := f.seedOperational(t, "m1", ledger.Line{Ref: "facture num 1", Description: "x", Amount: dec("500")})

	out, err := f.svc.Settle(ctx, Command{ReportID: rep.ID, Ref: "facture num 1", Action: "partial", Amount: dec("200"), Actor: manager})
	require.NoError(t, err)
	assert.Equal(t, StatusReduced, out.Result.Status)
	assert.True(t, out.Result.NewAmount.Equal(dec("300")))
	assert.Equal(t, int64(2), out.Report.Version)

	out, err = f.svc.Settle(ctx, Command{ReportID: rep.ID, Ref: "FACTURE NUM 1", Action: "partial", Amount: dec("300"), Actor: manager})
	require.NoError(t, err)
	assert.Equal(t, StatusRemoved, out.Result.Status)

	stored, err := f.store.GetOperationalReport(ctx, rep.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Debts)
	assert.Len(t, f.audit.logs, 2)
	assert.Equal(t, "settle", f.audit.logs[0].Action)
}

func TestSettleValidatesBeforeReading(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := uuid.New()

	_, err := f.svc.Settle(ctx, Command{ReportID: id, Ref: "a", Action: "partial", Amount: decimal.Zero, Actor: manager})
	assert.True(t, errors.Is(err, shared.ErrValidation))
	_, err = f.svc.Settle(ctx, Command{ReportID: id, Ref: "a", Action: "bogus", Actor: manager})
	assert.True(t, errors.Is(err, shared.ErrInvalidAction))
	_, err = f.svc.Settle(ctx, Command{ReportID: id, Ref: "  ", Action: "full", Actor: manager})
	assert.True(t, errors.Is(err, shared.ErrValidation))
	assert.Zero(t, f.store.CallCount("GetOperationalReport"))

	_, err = f.svc.Settle(ctx, Command{ReportID: id, Ref: "a", Action: "full", Actor: manager})
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestSettleManagerOnlyOwnReport(t *testing.T) {
	f := newFixture(t)
	rep := f.seedOperational(t, "someone-else", ledger.Line{Ref: "a", Amount: dec("10")})

	_, err := f.svc.Settle(context.Background(), Command{ReportID: rep.ID, Ref: "a", Action: "full", Actor: manager})
	assert.True(t, errors.Is(err, shared.ErrForbidden))

	accountant := shared.Actor{ID: "acc", Role: shared.RoleAccountant}
	_, err = f.svc.Settle(context.Background(), Command{ReportID: rep.ID, Ref: "a", Action: "full", Actor: accountant})
	assert.NoError(t, err)
}

func TestSettleLockContentionIsConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rep := f.seedOperational(t, "m1", ledger.Line{Ref: "a", Amount: dec("10")})

	held, err := f.locker.Obtain(ctx, shared.ReportLockKey("operational", rep.ID.String()), time.Minute, nil)
	require.NoError(t, err)

	_, err = f.svc.Settle(ctx, Command{ReportID: rep.ID, Ref: "a", Action: "full", Actor: manager})
	assert.True(t, errors.Is(err, shared.ErrConflict))
	assert.Equal(t, shared.KindConflict, shared.KindOf(err))

	require.NoError(t, held.Release(ctx))
	_, err = f.svc.Settle(ctx, Command{ReportID: rep.ID, Ref: "a", Action: "full", Actor: manager})
	assert.NoError(t, err)
}

// staleStore bumps the stored version between load and save.
type staleStore struct {
	*ledgertest.Store
}

func (s staleStore) GetOperationalReport(ctx context.Context, id uuid.UUID) (ledger.OperationalReport, error) {
	rep, err := s.Store.GetOperationalReport(ctx, id)
	if err != nil {
		return rep, err
	}
	if _, err := s.Store.UpdateOperationalReport(ctx, rep); err != nil {
		return ledger.OperationalReport{}, err
	}
	return rep, nil
}

func TestSettleVersionMismatchIsConflict(t *testing.T) {
	f := newFixture(t)
	rep := f.seedOperational(t, "m1", ledger.Line{Ref: "a", Amount: dec("10")})
	svc := NewService(staleStore{f.store}, nil, nil)

	_, err := svc.Settle(context.Background(), Command{ReportID: rep.ID, Ref: "a", Action: "full", Actor: manager})
	assert.True(t, errors.Is(err, shared.ErrConflict))

	stored, err := f.store.GetOperationalReport(context.Background(), rep.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Debts, 1)
}

func TestToggleDebtStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rootID, platformDebtID := uuid.New(), uuid.New()
	rep := f.store.AddAccountingReport(ledger.AccountingReport{
		Date:      time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		RootDebts: []ledger.StatusDebt{{ID: rootID, Amount: dec("5"), Status: ledger.DebtUnpaid}},
		Platforms: []ledger.Platform{{
			Name:  "Wizall",
			Debts: []ledger.StatusDebt{{ID: platformDebtID, Amount: dec("7"), Status: ledger.DebtPaid}},
		}},
	})
	accountant := shared.Actor{ID: "acc", Role: shared.RoleAccountant}

	saved, err := f.svc.ToggleDebtStatus(ctx, accountant, rep.ID, rootID)
	require.NoError(t, err)
	assert.Equal(t, ledger.DebtPaid, saved.RootDebts[0].Status)

	saved, err = f.svc.ToggleDebtStatus(ctx, accountant, rep.ID, platformDebtID)
	require.NoError(t, err)
	assert.Equal(t, ledger.DebtUnpaid, saved.Platforms[0].Debts[0].Status)
	assert.Equal(t, int64(3), saved.Version)

	_, err = f.svc.ToggleDebtStatus(ctx, accountant, rep.ID, uuid.New())
	assert.True(t, errors.Is(err, shared.ErrNotFound))
	_, err = f.svc.ToggleDebtStatus(ctx, manager, rep.ID, rootID)
	assert.True(t, errors.Is(err, shared.ErrForbidden))
}
