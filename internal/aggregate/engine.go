package aggregate

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/daybook/daybook/internal/ledger"
)

// Store is the read port of the aggregation engine. Names filters businesses
// by name: nil selects every business and an empty slice selects none.
type Store interface {
	SumOperational(ctx context.Context, w ledger.Window, names []string) (ledger.OperationalTotals, error)
	SumRegisterEntries(ctx context.Context, w ledger.Window, names []string) (decimal.Decimal, error)
	SumCommission(ctx context.Context, w ledger.Window, platform string) (decimal.Decimal, error)
	ListBusinesses(ctx context.Context) ([]ledger.Business, error)
	LatestBefore(ctx context.Context, day time.Time, section ledger.Section, platform string) (ledger.AccountingReport, error)
	DebtHistory(ctx context.Context, w ledger.Window, kinds []ledger.LineKind) ([]ledger.HistoryLine, error)
	CategoryEntries(ctx context.Context, category string) ([]ledger.CategoryEntry, error)
	ListAccountingReports(ctx context.Context, w ledger.Window) ([]ledger.AccountingReport, error)
}

// Engine sums operational and accounting flows over time windows.
type Engine struct {
	store  Store
	cache  *Cache
	loc    *time.Location
	logger *slog.Logger
}

// NewEngine builds an engine. Period boundaries are computed in loc.
func NewEngine(store Store, cache *Cache, loc *time.Location, logger *slog.Logger) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	cache.setLogger(logger)
	return &Engine{store: store, cache: cache, loc: loc, logger: logger}
}

// Location returns the location used for period boundaries.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// Invalidate drops every cached total.
func (e *Engine) Invalidate(ctx context.Context) error {
	return e.cache.Bump(ctx)
}

// Operational sums operational reports dated inside w.
func (e *Engine) Operational(ctx context.Context, w ledger.Window, names []string) (ledger.OperationalTotals, error) {
	return e.store.SumOperational(ctx, w, names)
}

// AccountingEntries sums main-register entries inside w attributed to names.
func (e *Engine) AccountingEntries(ctx context.Context, w ledger.Window, names []string) (decimal.Decimal, error) {
	return e.store.SumRegisterEntries(ctx, w, names)
}

// Locations is Operational with register entries of the same businesses
// added into cash. Rental income may be booked in either ledger.
func (e *Engine) Locations(ctx context.Context, w ledger.Window, names []string) (ledger.OperationalTotals, error) {
	totals, err := e.Operational(ctx, w, names)
	if err != nil {
		return ledger.OperationalTotals{}, err
	}
	entries, err := e.AccountingEntries(ctx, w, names)
	if err != nil {
		return ledger.OperationalTotals{}, err
	}
	totals.Cash = totals.Cash.Add(entries)
	return totals, nil
}

// CommissionForPlatform sums the commission of one platform inside w.
func (e *Engine) CommissionForPlatform(ctx context.Context, name string, w ledger.Window) (decimal.Decimal, error) {
	return e.store.SumCommission(ctx, w, name)
}

// Turnover splits global turnover into its three streams.
type Turnover struct {
	Operational     decimal.Decimal `json:"operational"`
	Commissions     decimal.Decimal `json:"commissions"`
	RegisterEntries decimal.Decimal `json:"register_entries"`
	Total           decimal.Decimal `json:"total"`
}

func turnoverOf(ops ledger.OperationalTotals, commissions, entries decimal.Decimal) Turnover {
	operational := ops.Cash.Add(ops.MobileMoneyA).Add(ops.MobileMoneyB).Add(ops.Settlements)
	return Turnover{
		Operational:     operational,
		Commissions:     commissions,
		RegisterEntries: entries,
		Total:           operational.Add(commissions).Add(entries),
	}
}

// GlobalTurnover adds operational takings of names to every platform
// commission and every register entry in w.
func (e *Engine) GlobalTurnover(ctx context.Context, w ledger.Window, names []string) (Turnover, error) {
	ops, err := e.store.SumOperational(ctx, w, names)
	if err != nil {
		return Turnover{}, err
	}
	commissions, err := e.store.SumCommission(ctx, w, "")
	if err != nil {
		return Turnover{}, err
	}
	entries, err := e.store.SumRegisterEntries(ctx, w, nil)
	if err != nil {
		return Turnover{}, err
	}
	return turnoverOf(ops, commissions, entries), nil
}
