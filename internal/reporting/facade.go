package reporting

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/daybook/daybook/internal/aggregate"
	"github.com/daybook/daybook/internal/ledger"
	"github.com/daybook/daybook/internal/settlement"
	"github.com/daybook/daybook/internal/shared"
	"github.com/daybook/daybook/internal/snapshot"
)

// Store is the persistence port of the facade.
type Store interface {
	CreateBusiness(ctx context.Context, b ledger.Business) (ledger.Business, error)
	ListBusinesses(ctx context.Context) ([]ledger.Business, error)
	InsertOperationalReport(ctx context.Context, rep ledger.OperationalReport) (ledger.OperationalReport, error)
	GetOperationalReport(ctx context.Context, id uuid.UUID) (ledger.OperationalReport, error)
	UpdateOperationalReport(ctx context.Context, rep ledger.OperationalReport) (ledger.OperationalReport, error)
	ListOperationalReports(ctx context.Context, f ledger.ReportFilter) ([]ledger.OperationalReport, int, error)
	InsertAccountingReport(ctx context.Context, rep ledger.AccountingReport) (ledger.AccountingReport, error)
	GetAccountingReport(ctx context.Context, id uuid.UUID) (ledger.AccountingReport, error)
}

// Facade orchestrates the ledger, settlement, snapshot and aggregation
// services behind one error boundary.
type Facade struct {
	store    Store
	resolver *snapshot.Resolver
	engine   *aggregate.Engine
	settler  *settlement.Service
	scope    aggregate.Scope
	audit    shared.AuditRecorder
	logger   *slog.Logger
}

// Config carries the facade collaborators.
type Config struct {
	Store    Store
	Resolver *snapshot.Resolver
	Engine   *aggregate.Engine
	Settler  *settlement.Service
	Scope    aggregate.Scope
	Audit    shared.AuditRecorder
	Logger   *slog.Logger
}

// New builds the facade.
func New(cfg Config) *Facade {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Facade{
		store:    cfg.Store,
		resolver: cfg.Resolver,
		engine:   cfg.Engine,
		settler:  cfg.Settler,
		scope:    cfg.Scope,
		audit:    cfg.Audit,
		logger:   logger,
	}
}

// GetReconciledSnapshot loads an accounting report and completes it. A
// missing report fails before any fallback lookup.
func (f *Facade) GetReconciledSnapshot(ctx context.Context, id uuid.UUID) Result[ledger.Snapshot] {
	const op = "get_reconciled_snapshot"
	if id == uuid.Nil {
		return fail[ledger.Snapshot](f.logger, op, fmt.Errorf("%w: report id is required", shared.ErrValidation))
	}
	report, err := f.store.GetAccountingReport(ctx, id)
	if err != nil {
		return fail[ledger.Snapshot](f.logger, op, err)
	}
	snap, err := f.resolver.Resolve(ctx, report)
	if err != nil {
		return fail[ledger.Snapshot](f.logger, op, err)
	}
	return ok(snap)
}

// DashboardRequest asks for dashboard totals. Zero fields fall back to the
// configured scope and the current time.
type DashboardRequest struct {
	Now    time.Time
	Groups []aggregate.Group
}

// GetDashboardTotals returns day, month and year totals.
func (f *Facade) GetDashboardTotals(ctx context.Context, req DashboardRequest) Result[aggregate.Dashboard] {
	scope := f.scope
	if len(req.Groups) > 0 {
		scope.Groups = req.Groups
	}
	d, err := f.engine.Dashboard(ctx, aggregate.DashboardRequest{
		Now:       req.Now,
		Scope:     scope,
		Platforms: f.resolver.Platforms(),
	})
	if err != nil {
		return fail[aggregate.Dashboard](f.logger, "get_dashboard_totals", err)
	}
	return ok(d)
}

// Settle applies a settlement and returns the updated report.
func (f *Facade) Settle(ctx context.Context, cmd settlement.Command) Result[settlement.Outcome] {
	out, err := f.settler.Settle(ctx, cmd)
	if err != nil {
		return fail[settlement.Outcome](f.logger, "settle", err)
	}
	f.invalidate(ctx)
	return ok(out)
}

// ToggleDebtStatus flips an accounting debt between unpaid and paid.
func (f *Facade) ToggleDebtStatus(ctx context.Context, actor shared.Actor, reportID, debtID uuid.UUID) Result[ledger.AccountingReport] {
	rep, err := f.settler.ToggleDebtStatus(ctx, actor, reportID, debtID)
	if err != nil {
		return fail[ledger.AccountingReport](f.logger, "toggle_debt_status", err)
	}
	return ok(rep)
}

// OperationalInput is a manager's daily report as submitted.
type OperationalInput struct {
	BusinessID   uuid.UUID        `json:"business_id"`
	Date         time.Time        `json:"date"`
	Cash         decimal.Decimal  `json:"cash"`
	MobileMoneyA decimal.Decimal  `json:"mobile_money_a"`
	MobileMoneyB decimal.Decimal  `json:"mobile_money_b"`
	Sales        []ledger.Line    `json:"sales"`
	Debts        []ledger.Line    `json:"debts"`
	Settlements  []ledger.Line    `json:"settlements"`
	CashOutflows []ledger.Outflow `json:"cash_outflows"`
	TransferOut  decimal.Decimal  `json:"transfer_out"`
}

// apply cleans the input lists into rep and nets settlements off the debts.
func (in OperationalInput) apply(rep *ledger.OperationalReport) {
	rep.Cash = in.Cash
	rep.MobileMoneyA = in.MobileMoneyA
	rep.MobileMoneyB = in.MobileMoneyB
	rep.TransferOut = in.TransferOut
	rep.Sales = ledger.CleanLines(in.Sales)
	rep.Settlements = ledger.CleanLines(in.Settlements)
	rep.Debts = settlement.NetDebts(ledger.CleanLines(in.Debts), rep.Settlements)
	rep.CashOutflows = ledger.CleanOutflows(in.CashOutflows)
}

// SubmitOperationalReport validates, cleans and stores a daily report. A
// second report for the same business, submitter and day is a conflict.
func (f *Facade) SubmitOperationalReport(ctx context.Context, actor shared.Actor, in OperationalInput) Result[ledger.OperationalReport] {
	const op = "submit_operational_report"
	if !actor.Is(shared.RoleManager, shared.RoleAdmin) {
		return fail[ledger.OperationalReport](f.logger, op, fmt.Errorf("reporting: role %q: %w", actor.Role, shared.ErrForbidden))
	}
	rep := ledger.OperationalReport{BusinessID: in.BusinessID, SubmitterID: actor.ID}
	if !in.Date.IsZero() {
		rep.Date = ledger.TruncateDay(in.Date.In(f.engine.Location()))
	}
	in.apply(&rep)
	if err := ledger.ValidateOperationalReport(rep); err != nil {
		return fail[ledger.OperationalReport](f.logger, op, err)
	}
	saved, err := f.store.InsertOperationalReport(ctx, rep)
	if err != nil {
		return fail[ledger.OperationalReport](f.logger, op, err)
	}
	f.logger.Info("operational report submitted",
		slog.String("report_id", saved.ID.String()),
		slog.String("business_id", saved.BusinessID.String()),
		slog.String("date", saved.Date.Format("2006-01-02")),
	)
	f.record(ctx, actor, "submit", "operational_report", saved.ID.String())
	f.invalidate(ctx)
	return ok(saved)
}

// AmendOperationalReport replaces the figures and lists of a report. Only
// its submitter, an accountant or an admin may amend it, and version must
// match the stored one.
func (f *Facade) AmendOperationalReport(ctx context.Context, actor shared.Actor, id uuid.UUID, version int64, in OperationalInput) Result[ledger.OperationalReport] {
	const op = "amend_operational_report"
	if !actor.Is(shared.RoleManager, shared.RoleAccountant, shared.RoleAdmin) {
		return fail[ledger.OperationalReport](f.logger, op, fmt.Errorf("reporting: role %q: %w", actor.Role, shared.ErrForbidden))
	}
	if version <= 0 {
		return fail[ledger.OperationalReport](f.logger, op, fmt.Errorf("%w: version is required", shared.ErrValidation))
	}
	draft := ledger.OperationalReport{SubmitterID: actor.ID}
	in.apply(&draft)
	if err := ledger.Validate(draft); err != nil {
		return fail[ledger.OperationalReport](f.logger, op, err)
	}
	rep, err := f.store.GetOperationalReport(ctx, id)
	if err != nil {
		return fail[ledger.OperationalReport](f.logger, op, err)
	}
	if actor.Role == shared.RoleManager && rep.SubmitterID != actor.ID {
		return fail[ledger.OperationalReport](f.logger, op, fmt.Errorf("reporting: report %s belongs to another submitter: %w", id, shared.ErrForbidden))
	}
	if rep.Version != version {
		return fail[ledger.OperationalReport](f.logger, op, fmt.Errorf("reporting: report %s at version %d, not %d: %w", id, rep.Version, version, shared.ErrConflict))
	}
	in.apply(&rep)
	if err := ledger.ValidateOperationalReport(rep); err != nil {
		return fail[ledger.OperationalReport](f.logger, op, err)
	}
	saved, err := f.store.UpdateOperationalReport(ctx, rep)
	if err != nil {
		return fail[ledger.OperationalReport](f.logger, op, err)
	}
	f.record(ctx, actor, "amend", "operational_report", saved.ID.String())
	f.invalidate(ctx)
	return ok(saved)
}

// GetOperationalReport loads one daily report with its business name.
func (f *Facade) GetOperationalReport(ctx context.Context, id uuid.UUID) Result[ledger.OperationalReport] {
	const op = "get_operational_report"
	if id == uuid.Nil {
		return fail[ledger.OperationalReport](f.logger, op, fmt.Errorf("%w: report id is required", shared.ErrValidation))
	}
	rep, err := f.store.GetOperationalReport(ctx, id)
	if err != nil {
		return fail[ledger.OperationalReport](f.logger, op, err)
	}
	return ok(rep)
}

// SubmitAccountingReport stores an accountant's report. Empty sections are
// kept empty; they are carried forward when the snapshot is read.
func (f *Facade) SubmitAccountingReport(ctx context.Context, actor shared.Actor, rep ledger.AccountingReport) Result[ledger.AccountingReport] {
	const op = "submit_accounting_report"
	if !actor.Is(shared.RoleAccountant, shared.RoleAdmin) {
		return fail[ledger.AccountingReport](f.logger, op, fmt.Errorf("reporting: role %q: %w", actor.Role, shared.ErrForbidden))
	}
	rep.ID = uuid.Nil
	rep.AuthorID = actor.ID
	if !rep.Date.IsZero() {
		rep.Date = ledger.TruncateDay(rep.Date.In(f.engine.Location()))
	}
	rep.Register.Outflows = ledger.CleanOutflows(rep.Register.Outflows)
	prepareDebts(rep.RootDebts)
	for i := range rep.Platforms {
		rep.Platforms[i].Name = strings.TrimSpace(rep.Platforms[i].Name)
		prepareDebts(rep.Platforms[i].Debts)
	}
	for i := range rep.Register.Entries {
		if rep.Register.Entries[i].ID == uuid.Nil {
			rep.Register.Entries[i].ID = uuid.New()
		}
		if b := rep.Register.Entries[i].Business; b != nil {
			rep.Register.Entries[i].Business = &ledger.BusinessRef{ID: b.ID}
		}
	}
	if err := ledger.ValidateAccountingReport(rep); err != nil {
		return fail[ledger.AccountingReport](f.logger, op, err)
	}
	saved, err := f.store.InsertAccountingReport(ctx, rep)
	if err != nil {
		return fail[ledger.AccountingReport](f.logger, op, err)
	}
	f.logger.Info("accounting report submitted",
		slog.String("report_id", saved.ID.String()),
		slog.String("date", saved.Date.Format("2006-01-02")),
	)
	f.record(ctx, actor, "submit", "accounting_report", saved.ID.String())
	f.invalidate(ctx)
	return ok(saved)
}

func prepareDebts(debts []ledger.StatusDebt) {
	for i := range debts {
		if debts[i].ID == uuid.Nil {
			debts[i].ID = uuid.New()
		}
		if debts[i].Status == "" {
			debts[i].Status = ledger.DebtUnpaid
		}
	}
}

// ListFilter selects a page of operational reports.
type ListFilter struct {
	Page       int
	PerPage    int
	From       time.Time
	To         time.Time
	BusinessID uuid.UUID
}

// Page is one page of a listing.
type Page[T any] struct {
	Items      []T               `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

// ListOperationalReports returns operational reports, newest first.
func (f *Facade) ListOperationalReports(ctx context.Context, filter ListFilter) Result[Page[ledger.OperationalReport]] {
	const op = "list_operational_reports"
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return fail[Page[ledger.OperationalReport]](f.logger, op, fmt.Errorf("%w: end date precedes start date", shared.ErrValidation))
	}
	page, perPage := shared.NormalizePage(filter.Page, filter.PerPage)
	offset := shared.Pagination{Page: page, PerPage: perPage}.Offset()
	items, total, err := f.store.ListOperationalReports(ctx, ledger.ReportFilter{
		From:       filter.From,
		To:         filter.To,
		BusinessID: filter.BusinessID,
		Limit:      perPage,
		Offset:     offset,
	})
	if err != nil {
		return fail[Page[ledger.OperationalReport]](f.logger, op, err)
	}
	if items == nil {
		items = []ledger.OperationalReport{}
	}
	return ok(Page[ledger.OperationalReport]{Items: items, Pagination: shared.NewPagination(page, perPage, total)})
}

// CreateBusiness registers a business. Names are trimmed and unique.
func (f *Facade) CreateBusiness(ctx context.Context, actor shared.Actor, name, category string) Result[ledger.Business] {
	const op = "create_business"
	if !actor.Is(shared.RoleAdmin) {
		return fail[ledger.Business](f.logger, op, fmt.Errorf("reporting: role %q: %w", actor.Role, shared.ErrForbidden))
	}
	b := ledger.Business{Name: strings.TrimSpace(name), Category: strings.TrimSpace(category)}
	if err := ledger.ValidateBusiness(b); err != nil {
		return fail[ledger.Business](f.logger, op, err)
	}
	saved, err := f.store.CreateBusiness(ctx, b)
	if err != nil {
		return fail[ledger.Business](f.logger, op, err)
	}
	f.record(ctx, actor, "create", "business", saved.ID.String())
	f.invalidate(ctx)
	return ok(saved)
}

// ListBusinesses returns every business by name.
func (f *Facade) ListBusinesses(ctx context.Context) Result[[]ledger.Business] {
	items, err := f.store.ListBusinesses(ctx)
	if err != nil {
		return fail[[]ledger.Business](f.logger, "list_businesses", err)
	}
	if items == nil {
		items = []ledger.Business{}
	}
	return ok(items)
}

// DebtHistory lists debt and settlement lines between from and to.
func (f *Facade) DebtHistory(ctx context.Context, from, to time.Time, kind ledger.LineKind) Result[[]ledger.HistoryLine] {
	lines, err := f.engine.DebtHistory(ctx, from, to, kind)
	if err != nil {
		return fail[[]ledger.HistoryLine](f.logger, "debt_history", err)
	}
	return ok(lines)
}

// RentalEntries lists register entries booked against rental businesses.
func (f *Facade) RentalEntries(ctx context.Context) Result[[]ledger.CategoryEntry] {
	entries, err := f.engine.RentalEntries(ctx, ledger.CategoryRental)
	if err != nil {
		return fail[[]ledger.CategoryEntry](f.logger, "rental_entries", err)
	}
	return ok(entries)
}

// AccountingDebts lists root and platform debts of every accounting report.
func (f *Facade) AccountingDebts(ctx context.Context) Result[[]ledger.AccountingDebt] {
	debts, err := f.engine.AccountingDebts(ctx)
	if err != nil {
		return fail[[]ledger.AccountingDebt](f.logger, "accounting_debts", err)
	}
	return ok(debts)
}

func (f *Facade) invalidate(ctx context.Context) {
	if err := f.engine.Invalidate(ctx); err != nil {
		f.logger.Warn("dashboard cache invalidation failed", slog.Any("error", err))
	}
}

func (f *Facade) record(ctx context.Context, actor shared.Actor, action, entity, id string) {
	if f.audit == nil {
		return
	}
	if err := f.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Role:     actor.Role,
		Action:   action,
		Entity:   entity,
		EntityID: id,
	}); err != nil {
		f.logger.Warn("audit record failed", slog.String("entity", entity), slog.Any("error", err))
	}
}
