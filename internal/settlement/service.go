package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/daybook/daybook/internal/ledger"
	"github.com/daybook/daybook/internal/shared"
)

const defaultLockTTL = 30 * time.Second

// Store is the persistence port used by the settlement service.
type Store interface {
	GetOperationalReport(ctx context.Context, id uuid.UUID) (ledger.OperationalReport, error)
	UpdateOperationalReport(ctx context.Context, rep ledger.OperationalReport) (ledger.OperationalReport, error)
	GetAccountingReport(ctx context.Context, id uuid.UUID) (ledger.AccountingReport, error)
	UpdateAccountingReport(ctx context.Context, rep ledger.AccountingReport) (ledger.AccountingReport, error)
}

// Command requests a settlement against one debt line of a report.
type Command struct {
	ReportID uuid.UUID
	Ref      string
	Action   string
	Amount   decimal.Decimal
	Actor    shared.Actor
}

// Outcome is the updated report together with the settlement result.
type Outcome struct {
	Report ledger.OperationalReport `json:"report"`
	Result Result                   `json:"result"`
}

// Service applies settlements under a per-report lock and an optimistic
// version check.
type Service struct {
	store   Store
	locker  *redislock.Client
	lockTTL time.Duration
	audit   shared.AuditRecorder
	logger  *slog.Logger
}

// Option configures the service.
type Option func(*Service)

// WithLockTTL overrides how long a report lock is held at most.
func WithLockTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithAudit records every successful mutation.
func WithAudit(rec shared.AuditRecorder) Option {
	return func(s *Service) { s.audit = rec }
}

// NewService builds the service. A nil locker leaves the version check as
// the only guard against concurrent writers.
func NewService(store Store, locker *redislock.Client, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{store: store, locker: locker, lockTTL: defaultLockTTL, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Settle validates cmd, applies it to the stored report and saves the result.
func (s *Service) Settle(ctx context.Context, cmd Command) (Outcome, error) {
	action, err := ParseAction(cmd.Action)
	if err != nil {
		return Outcome{}, err
	}
	ref := ledger.NewRefKey(cmd.Ref)
	if ref.Empty() {
		return Outcome{}, fmt.Errorf("%w: debt reference is required", shared.ErrValidation)
	}
	if action == ActionPartial && !cmd.Amount.IsPositive() {
		return Outcome{}, fmt.Errorf("%w: settlement amount must be greater than zero", shared.ErrValidation)
	}
	if !cmd.Actor.Is(shared.RoleManager, shared.RoleAccountant, shared.RoleAdmin) {
		return Outcome{}, fmt.Errorf("settlement: role %q: %w", cmd.Actor.Role, shared.ErrForbidden)
	}

	release, err := s.lock(ctx, "operational", cmd.ReportID)
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	report, err := s.store.GetOperationalReport(ctx, cmd.ReportID)
	if err != nil {
		return Outcome{}, err
	}
	if cmd.Actor.Role == shared.RoleManager && report.SubmitterID != cmd.Actor.ID {
		return Outcome{}, fmt.Errorf("settlement: report %s belongs to another submitter: %w", report.ID, shared.ErrForbidden)
	}

	result, err := Apply(&report, ref, action, cmd.Amount)
	if err != nil {
		return Outcome{}, err
	}
	saved, err := s.store.UpdateOperationalReport(ctx, report)
	if err != nil {
		return Outcome{}, err
	}

	s.logger.Info("settlement applied",
		slog.String("report_id", saved.ID.String()),
		slog.String("ref", ref.String()),
		slog.String("action", string(action)),
		slog.String("status", string(result.Status)),
		slog.Int64("version", saved.Version),
	)
	meta := map[string]any{"ref": ref.String(), "action": string(action), "status": string(result.Status)}
	if result.NewAmount != nil {
		meta["new_amount"] = result.NewAmount.String()
	}
	s.record(ctx, cmd.Actor, "settle", "operational_report", saved.ID, meta)
	return Outcome{Report: saved, Result: result}, nil
}

// ToggleDebtStatus flips the status of a root or platform debt of an
// accounting report between unpaid and paid.
func (s *Service) ToggleDebtStatus(ctx context.Context, actor shared.Actor, reportID, debtID uuid.UUID) (ledger.AccountingReport, error) {
	if debtID == uuid.Nil {
		return ledger.AccountingReport{}, fmt.Errorf("%w: debt id is required", shared.ErrValidation)
	}
	if !actor.Is(shared.RoleAccountant, shared.RoleAdmin) {
		return ledger.AccountingReport{}, fmt.Errorf("settlement: role %q: %w", actor.Role, shared.ErrForbidden)
	}

	release, err := s.lock(ctx, "accounting", reportID)
	if err != nil {
		return ledger.AccountingReport{}, err
	}
	defer release()

	report, err := s.store.GetAccountingReport(ctx, reportID)
	if err != nil {
		return ledger.AccountingReport{}, err
	}
	status, ok := toggleDebt(&report, debtID)
	if !ok {
		return ledger.AccountingReport{}, fmt.Errorf("settlement: debt %s: %w", debtID, shared.ErrNotFound)
	}
	saved, err := s.store.UpdateAccountingReport(ctx, report)
	if err != nil {
		return ledger.AccountingReport{}, err
	}
	s.logger.Info("debt status toggled",
		slog.String("report_id", saved.ID.String()),
		slog.String("debt_id", debtID.String()),
		slog.String("status", string(status)),
	)
	s.record(ctx, actor, "toggle_debt", "accounting_report", saved.ID, map[string]any{
		"debt_id": debtID.String(),
		"status":  string(status),
	})
	return saved, nil
}

func toggleDebt(report *ledger.AccountingReport, debtID uuid.UUID) (ledger.DebtStatus, bool) {
	for i := range report.RootDebts {
		if report.RootDebts[i].ID == debtID {
			report.RootDebts[i].Status = report.RootDebts[i].Status.Toggle()
			return report.RootDebts[i].Status, true
		}
	}
	for p := range report.Platforms {
		debts := report.Platforms[p].Debts
		for i := range debts {
			if debts[i].ID == debtID {
				debts[i].Status = debts[i].Status.Toggle()
				return debts[i].Status, true
			}
		}
	}
	return "", false
}

func (s *Service) lock(ctx context.Context, kind string, reportID uuid.UUID) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	key := shared.ReportLockKey(kind, reportID.String())
	lock, err := s.locker.Obtain(ctx, key, s.lockTTL, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("settlement: report %s is being modified: %w", reportID, shared.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("settlement: obtain lock: %w: %w", shared.ErrStorage, err)
	}
	return func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			s.logger.Warn("release report lock", slog.String("key", key), slog.Any("error", err))
		}
	}, nil
}

func (s *Service) record(ctx context.Context, actor shared.Actor, action, entity string, id uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Role:     actor.Role,
		Action:   action,
		Entity:   entity,
		EntityID: id.String(),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("entity", entity), slog.Any("error", err))
	}
}
