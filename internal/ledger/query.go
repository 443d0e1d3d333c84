package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Window is a half-open date range [From, To). A zero To is unbounded.
type Window struct {
	From time.Time
	To   time.Time
}

// Since returns the window starting at from with no upper bound.
func Since(from time.Time) Window {
	return Window{From: from}
}

// Through returns the window from the day of from up to and including the
// day of now. A zero now leaves the window open-ended.
func Through(from, now time.Time) Window {
	w := Window{From: from}
	if !now.IsZero() {
		w.To = TruncateDay(now).AddDate(0, 0, 1)
	}
	return w
}

// Contains reports whether day falls inside the window.
func (w Window) Contains(day time.Time) bool {
	day = TruncateDay(day)
	if !w.From.IsZero() && day.Before(TruncateDay(w.From)) {
		return false
	}
	if !w.To.IsZero() && !day.Before(TruncateDay(w.To)) {
		return false
	}
	return true
}

// OperationalTotals are the summed figures of operational reports.
type OperationalTotals struct {
	Cash         decimal.Decimal `json:"cash"`
	MobileMoneyA decimal.Decimal `json:"mobile_money_a"`
	MobileMoneyB decimal.Decimal `json:"mobile_money_b"`
	SalesCount   int64           `json:"sales_count"`
	Debts        decimal.Decimal `json:"debts"`
	Settlements  decimal.Decimal `json:"settlements"`
	Outflows     decimal.Decimal `json:"outflows"`
	TransferOut  decimal.Decimal `json:"transfer_out"`
}

// Add returns the field-wise sum of t and o.
func (t OperationalTotals) Add(o OperationalTotals) OperationalTotals {
	return OperationalTotals{
		Cash:         t.Cash.Add(o.Cash),
		MobileMoneyA: t.MobileMoneyA.Add(o.MobileMoneyA),
		MobileMoneyB: t.MobileMoneyB.Add(o.MobileMoneyB),
		SalesCount:   t.SalesCount + o.SalesCount,
		Debts:        t.Debts.Add(o.Debts),
		Settlements:  t.Settlements.Add(o.Settlements),
		Outflows:     t.Outflows.Add(o.Outflows),
		TransferOut:  t.TransferOut.Add(o.TransferOut),
	}
}

// TotalsOf folds one report into totals.
func TotalsOf(r OperationalReport) OperationalTotals {
	return OperationalTotals{
		Cash:         r.Cash,
		MobileMoneyA: r.MobileMoneyA,
		MobileMoneyB: r.MobileMoneyB,
		SalesCount:   int64(len(r.Sales)),
		Debts:        SumLines(r.Debts),
		Settlements:  SumLines(r.Settlements),
		Outflows:     SumOutflows(r.CashOutflows),
		TransferOut:  r.TransferOut,
	}
}

// ReportFilter scopes operational report listings.
type ReportFilter struct {
	From       time.Time
	To         time.Time
	BusinessID uuid.UUID
	Limit      int
	Offset     int
}

// LineKind distinguishes debt and settlement rows in history listings.
type LineKind string

const (
	LineDebt       LineKind = "debt"
	LineSettlement LineKind = "settlement"
)

// HistoryLine is a debt or settlement row flattened out of its report.
type HistoryLine struct {
	ReportID     uuid.UUID       `json:"report_id"`
	Kind         LineKind        `json:"kind"`
	Date         time.Time       `json:"date"`
	BusinessName string          `json:"business"`
	Ref          string          `json:"ref"`
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
}

// CategoryEntry is a register entry attributed to a business of a category.
type CategoryEntry struct {
	Date         time.Time       `json:"date"`
	BusinessName string          `json:"business"`
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
}

// AccountingDebtKind tells root debts from platform debts.
type AccountingDebtKind string

const (
	DebtKindRoot     AccountingDebtKind = "root"
	DebtKindPlatform AccountingDebtKind = "platform"
)

// AccountingDebt is a status debt flattened out of its accounting report.
type AccountingDebt struct {
	StatusDebt
	ReportID uuid.UUID          `json:"report_id"`
	Date     time.Time          `json:"date"`
	Kind     AccountingDebtKind `json:"kind"`
	Platform string             `json:"platform,omitempty"`
}
