package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Vacuous reports whether the line carries nothing worth persisting.
func (l Line) Vacuous() bool {
	return strings.TrimSpace(l.Ref) == "" && strings.TrimSpace(l.Description) == "" && !l.Amount.IsPositive()
}

// Vacuous reports whether the outflow carries nothing worth persisting.
func (o Outflow) Vacuous() bool {
	return strings.TrimSpace(o.Description) == "" && !o.Amount.IsPositive()
}

// CleanLines normalises references and descriptions and drops vacuous lines.
// The result is never nil.
func CleanLines(lines []Line) []Line {
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		if l.Vacuous() {
			continue
		}
		out = append(out, Line{
			Ref:         l.Key().String(),
			Description: strings.TrimSpace(l.Description),
			Amount:      l.Amount,
		})
	}
	return out
}

// CleanOutflows trims descriptions and drops vacuous outflows.
func CleanOutflows(outflows []Outflow) []Outflow {
	out := make([]Outflow, 0, len(outflows))
	for _, o := range outflows {
		if o.Vacuous() {
			continue
		}
		out = append(out, Outflow{Description: strings.TrimSpace(o.Description), Amount: o.Amount})
	}
	return out
}

// SumLines adds the amounts of lines.
func SumLines(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Amount)
	}
	return total
}

// SumOutflows adds the amounts of outflows.
func SumOutflows(outflows []Outflow) decimal.Decimal {
	total := decimal.Zero
	for _, o := range outflows {
		total = total.Add(o.Amount)
	}
	return total
}
