package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/daybook/daybook/internal/ledger"
	"github.com/daybook/daybook/internal/shared"
)

// DebtHistory lists debt and settlement lines dated in [from, to], newest
// first. An empty kind lists both.
func (e *Engine) DebtHistory(ctx context.Context, from, to time.Time, kind ledger.LineKind) ([]ledger.HistoryLine, error) {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, fmt.Errorf("%w: end date precedes start date", shared.ErrValidation)
	}
	var kinds []ledger.LineKind
	switch kind {
	case "":
	case ledger.LineDebt, ledger.LineSettlement:
		kinds = []ledger.LineKind{kind}
	default:
		return nil, fmt.Errorf("%w: unknown line kind %q", shared.ErrValidation, kind)
	}
	w := ledger.Window{From: from}
	if !to.IsZero() {
		w.To = ledger.TruncateDay(to).AddDate(0, 0, 1)
	}
	lines, err := e.store.DebtHistory(ctx, w, kinds)
	if err != nil {
		return nil, err
	}
	if lines == nil {
		lines = []ledger.HistoryLine{}
	}
	return lines, nil
}

// RentalEntries lists register entries booked against businesses of
// category, newest first.
func (e *Engine) RentalEntries(ctx context.Context, category string) ([]ledger.CategoryEntry, error) {
	if category == "" {
		category = ledger.CategoryRental
	}
	entries, err := e.store.CategoryEntries(ctx, category)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []ledger.CategoryEntry{}
	}
	return entries, nil
}

// AccountingDebts flattens root and platform debts of every accounting
// report, newest report first.
func (e *Engine) AccountingDebts(ctx context.Context) ([]ledger.AccountingDebt, error) {
	reports, err := e.store.ListAccountingReports(ctx, ledger.Window{})
	if err != nil {
		return nil, err
	}
	out := []ledger.AccountingDebt{}
	for _, rep := range reports {
		for _, d := range rep.RootDebts {
			out = append(out, ledger.AccountingDebt{StatusDebt: d, ReportID: rep.ID, Date: rep.Date, Kind: ledger.DebtKindRoot})
		}
		for _, p := range rep.Platforms {
			for _, d := range p.Debts {
				out = append(out, ledger.AccountingDebt{
					StatusDebt: d,
					ReportID:   rep.ID,
					Date:       rep.Date,
					Kind:       ledger.DebtKindPlatform,
					Platform:   p.Name,
				})
			}
		}
	}
	return out, nil
}
