package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Well-known business categories. Categories are free-form tags; these are the
// defaults used for dashboard grouping.
const (
	CategoryHardwareStore = "hardware-store"
	CategoryRental        = "rental"
)

// Business is a reporting unit referenced by operational reports and
// register entries. Businesses are never deleted once referenced.
type Business struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name" validate:"required,max=120"`
	Category  string    `json:"category,omitempty" validate:"max=60"`
	CreatedAt time.Time `json:"created_at"`
}

// Line is a sale, debt or settlement row keyed by a free-text reference.
type Line struct {
	Ref         string          `json:"ref" validate:"max=120"`
	Description string          `json:"description" validate:"max=500"`
	Amount      decimal.Decimal `json:"amount" validate:"gte=0"`
}

// Key returns the normalised reference of the line.
func (l Line) Key() RefKey {
	return NewRefKey(l.Ref)
}

// Outflow is an unreferenced cash movement out of a register.
type Outflow struct {
	Description string          `json:"description" validate:"max=500"`
	Amount      decimal.Decimal `json:"amount" validate:"gte=0"`
}

// OperationalReport is one manager's daily report for one business.
type OperationalReport struct {
	ID           uuid.UUID       `json:"id"`
	BusinessID   uuid.UUID       `json:"business_id"`
	BusinessName string          `json:"business_name,omitempty"`
	SubmitterID  string          `json:"submitter_id" validate:"required"`
	Date         time.Time       `json:"date"`
	Cash         decimal.Decimal `json:"cash" validate:"gte=0"`
	MobileMoneyA decimal.Decimal `json:"mobile_money_a" validate:"gte=0"`
	MobileMoneyB decimal.Decimal `json:"mobile_money_b" validate:"gte=0"`
	Sales        []Line          `json:"sales" validate:"dive"`
	Debts        []Line          `json:"debts" validate:"dive"`
	Settlements  []Line          `json:"settlements" validate:"dive"`
	CashOutflows []Outflow       `json:"cash_outflows" validate:"dive"`
	TransferOut  decimal.Decimal `json:"transfer_out" validate:"gte=0"`
	Version      int64           `json:"version"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// EnsureLists replaces nil sub-lists with empty ones so they persist as [].
func (r *OperationalReport) EnsureLists() {
	if r.Sales == nil {
		r.Sales = []Line{}
	}
	if r.Debts == nil {
		r.Debts = []Line{}
	}
	if r.Settlements == nil {
		r.Settlements = []Line{}
	}
	if r.CashOutflows == nil {
		r.CashOutflows = []Outflow{}
	}
}

// DebtStatus is the payment state of an accounting debt.
type DebtStatus string

const (
	DebtUnpaid DebtStatus = "unpaid"
	DebtPaid   DebtStatus = "paid"
)

// Toggle flips between unpaid and paid.
func (s DebtStatus) Toggle() DebtStatus {
	if s == DebtUnpaid || s == "" {
		return DebtPaid
	}
	return DebtUnpaid
}

// Bank is the balance of one bank account on a given day.
type Bank struct {
	Name    string          `json:"name" validate:"required,max=120"`
	Balance decimal.Decimal `json:"balance"`
}

// BusinessRef points at a business and carries its display name when known.
type BusinessRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name,omitempty"`
}

// RegisterEntry is an inflow recorded in the main cash register.
type RegisterEntry struct {
	ID          uuid.UUID       `json:"id"`
	Business    *BusinessRef    `json:"business,omitempty"`
	Description string          `json:"description" validate:"max=500"`
	Amount      decimal.Decimal `json:"amount" validate:"gte=0"`
}

// MainRegister is the accountant's central cash register. A nil Balance means
// the accountant did not record one that day.
type MainRegister struct {
	Balance  *decimal.Decimal `json:"balance"`
	Entries  []RegisterEntry  `json:"entries" validate:"dive"`
	Outflows []Outflow        `json:"outflows" validate:"dive"`
}

// StatusDebt is an accounting-side debt tracked by status rather than by
// settlement lines.
type StatusDebt struct {
	ID          uuid.UUID       `json:"id"`
	Description string          `json:"description" validate:"max=500"`
	Amount      decimal.Decimal `json:"amount" validate:"gte=0"`
	Status      DebtStatus      `json:"status" validate:"oneof=unpaid paid"`
}

// Platform is the daily position of a money-transfer operator.
type Platform struct {
	Name             string          `json:"name" validate:"required,max=120"`
	FloatBalance     decimal.Decimal `json:"float_balance"`
	UnitsAvailable   decimal.Decimal `json:"units_available"`
	UnitsRecharged   decimal.Decimal `json:"units_recharged"`
	TotalDeposits    decimal.Decimal `json:"total_deposits" validate:"gte=0"`
	TotalWithdrawals decimal.Decimal `json:"total_withdrawals" validate:"gte=0"`
	Commission       decimal.Decimal `json:"commission" validate:"gte=0"`
	AvailableFunds   decimal.Decimal `json:"available_funds"`
	Debts            []StatusDebt    `json:"debts" validate:"dive"`
}

// SweepSettlement records the end-of-day sweep.
type SweepSettlement struct {
	Method string          `json:"method" validate:"required,max=60"`
	Amount decimal.Decimal `json:"amount" validate:"gte=0"`
}

// AccountingReport is the accountant's system-wide report for one date. Empty
// sections mean "unchanged since the previous report", not zero.
type AccountingReport struct {
	ID         uuid.UUID        `json:"id"`
	Date       time.Time        `json:"date"`
	Seq        int64            `json:"-"`
	AuthorID   string           `json:"author_id,omitempty"`
	Banks      []Bank           `json:"banks" validate:"dive"`
	Register   MainRegister     `json:"main_register"`
	Platforms  []Platform       `json:"transfer_platforms" validate:"dive"`
	RootDebts  []StatusDebt     `json:"root_debts" validate:"dive"`
	Settlement *SweepSettlement `json:"settlement"`
	Version    int64            `json:"version"`
	CreatedAt  time.Time        `json:"created_at"`
}

// EnsureLists replaces nil sub-lists with empty ones so they persist as [].
func (r *AccountingReport) EnsureLists() {
	if r.Banks == nil {
		r.Banks = []Bank{}
	}
	if r.Register.Entries == nil {
		r.Register.Entries = []RegisterEntry{}
	}
	if r.Register.Outflows == nil {
		r.Register.Outflows = []Outflow{}
	}
	if r.Platforms == nil {
		r.Platforms = []Platform{}
	}
	for i := range r.Platforms {
		if r.Platforms[i].Debts == nil {
			r.Platforms[i].Debts = []StatusDebt{}
		}
	}
	if r.RootDebts == nil {
		r.RootDebts = []StatusDebt{}
	}
}

// PlatformByName returns the named platform entry, matched exactly.
func (r AccountingReport) PlatformByName(name string) (Platform, bool) {
	for _, p := range r.Platforms {
		if p.Name == name {
			return p, true
		}
	}
	return Platform{}, false
}

// SectionSource records which report a snapshot section was taken from.
type SectionSource struct {
	ReportID uuid.UUID `json:"report_id"`
	Date     time.Time `json:"date"`
}

// Snapshot is an accounting report whose empty sections were filled from the
// nearest earlier report holding them. Sources maps each filled section (and
// "platform:<name>") to its origin.
type Snapshot struct {
	AccountingReport
	Sources map[string]SectionSource `json:"sources,omitempty"`
}

// TruncateDay returns the calendar day of t, read in t's own location, as
// midnight UTC. Report dates are stored as plain days.
func TruncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
