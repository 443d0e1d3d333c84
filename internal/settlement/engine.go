package settlement

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/daybook/daybook/internal/ledger"
	"github.com/daybook/daybook/internal/shared"
)

// Action is the kind of settlement applied to a debt line.
type Action string

const (
	ActionFull    Action = "full"
	ActionPartial Action = "partial"
	// ActionDelete is accepted as an alias of ActionFull.
	ActionDelete Action = "delete"
)

// ParseAction normalises raw into a known action.
func ParseAction(raw string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(raw))); a {
	case ActionFull, ActionDelete:
		return ActionFull, nil
	case ActionPartial:
		return ActionPartial, nil
	default:
		return "", fmt.Errorf("%w: %q", shared.ErrInvalidAction, raw)
	}
}

// Status is the terminal state of the settled debt line.
type Status string

const (
	StatusRemoved Status = "removed"
	StatusReduced Status = "reduced"
)

// Result describes what happened to the debt line. NewAmount is set only
// when the line was reduced.
type Result struct {
	Status    Status           `json:"status"`
	NewAmount *decimal.Decimal `json:"new_amount,omitempty"`
}

// Apply settles the first debt line of report matching ref. The report is
// mutated only on success.
func Apply(report *ledger.OperationalReport, ref ledger.RefKey, action Action, amount decimal.Decimal) (Result, error) {
	if action == ActionDelete {
		action = ActionFull
	}
	if action != ActionFull && action != ActionPartial {
		return Result{}, fmt.Errorf("%w: %q", shared.ErrInvalidAction, action)
	}
	if action == ActionPartial && !amount.IsPositive() {
		return Result{}, fmt.Errorf("%w: settlement amount must be greater than zero", shared.ErrValidation)
	}
	if ref.Empty() {
		return Result{}, fmt.Errorf("%w: debt reference is required", shared.ErrValidation)
	}

	idx := -1
	for i, l := range report.Debts {
		if l.Key() == ref {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Result{}, fmt.Errorf("settlement: debt %q: %w", ref, shared.ErrNotFound)
	}

	if action == ActionPartial {
		remaining := report.Debts[idx].Amount.Sub(amount).Round(2)
		if remaining.IsPositive() {
			report.Debts[idx].Amount = remaining
			return Result{Status: StatusReduced, NewAmount: &remaining}, nil
		}
	}
	report.Debts = append(report.Debts[:idx:idx], report.Debts[idx+1:]...)
	return Result{Status: StatusRemoved}, nil
}

// NetDebts subtracts pooled settlements from debts at report creation.
// Settlements are summed per reference and the pooled total is taken off
// every debt line sharing that reference. Only debts with a positive
// remainder are kept; debts without settlements pass through unchanged.
func NetDebts(debts, settlements []ledger.Line) []ledger.Line {
	pooled := make(map[ledger.RefKey]decimal.Decimal, len(settlements))
	for _, s := range settlements {
		key := s.Key()
		pooled[key] = pooled[key].Add(s.Amount)
	}
	out := make([]ledger.Line, 0, len(debts))
	for _, d := range debts {
		paid, ok := pooled[d.Key()]
		if !ok {
			out = append(out, d)
			continue
		}
		remaining := d.Amount.Sub(paid).Round(2)
		if !remaining.IsPositive() {
			continue
		}
		d.Amount = remaining
		out = append(out, d)
	}
	return out
}
