// Package ledgertest provides an in-memory ledger store for tests.
package ledgertest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/daybook/daybook/internal/ledger"
	"github.com/daybook/daybook/internal/shared"
)

// Store mirrors ledger.Repository in memory. Reads return deep copies so
// callers can mutate results freely.
type Store struct {
	mu          sync.Mutex
	businesses  map[uuid.UUID]ledger.Business
	operational map[uuid.UUID]ledger.OperationalReport
	accounting  map[uuid.UUID]ledger.AccountingReport
	seq         int64
	clock       func() time.Time

	// Fail makes the named operation return the error. Keys are method names.
	Fail map[string]error
	// Calls counts invocations per method name.
	Calls map[string]int
}

// New returns an empty store.
func New() *Store {
	return &Store{
		businesses:  make(map[uuid.UUID]ledger.Business),
		operational: make(map[uuid.UUID]ledger.OperationalReport),
		accounting:  make(map[uuid.UUID]ledger.AccountingReport),
		clock:       time.Now,
		Fail:        make(map[string]error),
		Calls:       make(map[string]int),
	}
}

func (s *Store) enter(op string) error {
	s.Calls[op]++
	if err, ok := s.Fail[op]; ok && err != nil {
		return err
	}
	return nil
}

// CallCount returns how many times op was invoked.
func (s *Store) CallCount(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Calls[op]
}

// SetFailure arms or clears (err == nil) a failure for op.
func (s *Store) SetFailure(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.Fail, op)
		return
	}
	s.Fail[op] = err
}

// --- Businesses ---

func (s *Store) CreateBusiness(_ context.Context, b ledger.Business) (ledger.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreateBusiness"); err != nil {
		return ledger.Business{}, err
	}
	for _, existing := range s.businesses {
		if existing.Name == b.Name {
			return ledger.Business{}, fmt.Errorf("ledgertest: business %q: %w", b.Name, shared.ErrConflict)
		}
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.CreatedAt = s.clock()
	s.businesses[b.ID] = b
	return b, nil
}

// AddBusiness seeds a business and returns it.
func (s *Store) AddBusiness(name, category string) ledger.Business {
	b, err := s.CreateBusiness(context.Background(), ledger.Business{Name: name, Category: category})
	if err != nil {
		panic(err)
	}
	return b
}

func (s *Store) ListBusinesses(_ context.Context) ([]ledger.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListBusinesses"); err != nil {
		return nil, err
	}
	out := make([]ledger.Business, 0, len(s.businesses))
	for _, b := range s.businesses {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) BusinessNames(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("BusinessNames"); err != nil {
		return nil, err
	}
	names := make(map[uuid.UUID]string, len(ids))
	for _, id := range ids {
		if b, ok := s.businesses[id]; ok {
			names[id] = b.Name
		}
	}
	return names, nil
}

// --- Operational reports ---

func (s *Store) InsertOperationalReport(_ context.Context, rep ledger.OperationalReport) (ledger.OperationalReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("InsertOperationalReport"); err != nil {
		return ledger.OperationalReport{}, err
	}
	b, ok := s.businesses[rep.BusinessID]
	if !ok {
		return ledger.OperationalReport{}, fmt.Errorf("ledgertest: business %s: %w", rep.BusinessID, shared.ErrNotFound)
	}
	rep.Date = ledger.TruncateDay(rep.Date)
	for _, existing := range s.operational {
		if existing.BusinessID == rep.BusinessID && existing.SubmitterID == rep.SubmitterID && existing.Date.Equal(rep.Date) {
			return ledger.OperationalReport{}, fmt.Errorf("ledgertest: uq_operational_reports_day: %w", shared.ErrConflict)
		}
	}
	if rep.ID == uuid.Nil {
		rep.ID = uuid.New()
	}
	rep.BusinessName = b.Name
	rep.EnsureLists()
	rep.Version = 1
	rep.CreatedAt = s.clock()
	rep.UpdatedAt = rep.CreatedAt
	s.operational[rep.ID] = cloneOperational(rep)
	return cloneOperational(rep), nil
}

func (s *Store) GetOperationalReport(_ context.Context, id uuid.UUID) (ledger.OperationalReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetOperationalReport"); err != nil {
		return ledger.OperationalReport{}, err
	}
	rep, ok := s.operational[id]
	if !ok {
		return ledger.OperationalReport{}, fmt.Errorf("ledgertest: operational report %s: %w", id, shared.ErrNotFound)
	}
	return cloneOperational(rep), nil
}

func (s *Store) UpdateOperationalReport(_ context.Context, rep ledger.OperationalReport) (ledger.OperationalReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("UpdateOperationalReport"); err != nil {
		return ledger.OperationalReport{}, err
	}
	stored, ok := s.operational[rep.ID]
	if !ok {
		return ledger.OperationalReport{}, fmt.Errorf("ledgertest: operational report %s: %w", rep.ID, shared.ErrNotFound)
	}
	if stored.Version != rep.Version {
		return ledger.OperationalReport{}, fmt.Errorf("ledgertest: operational report %s: stale version: %w", rep.ID, shared.ErrConflict)
	}
	rep.EnsureLists()
	rep.BusinessID = stored.BusinessID
	rep.BusinessName = stored.BusinessName
	rep.SubmitterID = stored.SubmitterID
	rep.Date = stored.Date
	rep.CreatedAt = stored.CreatedAt
	rep.Version = stored.Version + 1
	rep.UpdatedAt = s.clock()
	s.operational[rep.ID] = cloneOperational(rep)
	return cloneOperational(rep), nil
}

func (s *Store) ListOperationalReports(_ context.Context, f ledger.ReportFilter) ([]ledger.OperationalReport, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListOperationalReports"); err != nil {
		return nil, 0, err
	}
	var matched []ledger.OperationalReport
	for _, rep := range s.operational {
		if !f.From.IsZero() && rep.Date.Before(ledger.TruncateDay(f.From)) {
			continue
		}
		if !f.To.IsZero() && rep.Date.After(ledger.TruncateDay(f.To)) {
			continue
		}
		if f.BusinessID != uuid.Nil && rep.BusinessID != f.BusinessID {
			continue
		}
		matched = append(matched, rep)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].Date.Equal(matched[j].Date) {
			return matched[i].Date.After(matched[j].Date)
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := len(matched)
	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}
	start := f.Offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	out := make([]ledger.OperationalReport, 0, end-start)
	for _, rep := range matched[start:end] {
		out = append(out, cloneOperational(rep))
	}
	return out, total, nil
}

// --- Accounting reports ---

func (s *Store) InsertAccountingReport(_ context.Context, rep ledger.AccountingReport) (ledger.AccountingReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("InsertAccountingReport"); err != nil {
		return ledger.AccountingReport{}, err
	}
	if rep.ID == uuid.Nil {
		rep.ID = uuid.New()
	}
	s.seq++
	rep.Seq = s.seq
	rep.Date = ledger.TruncateDay(rep.Date)
	rep.EnsureLists()
	rep.Version = 1
	rep.CreatedAt = s.clock()
	s.accounting[rep.ID] = cloneAccounting(rep)
	return cloneAccounting(rep), nil
}

// AddAccountingReport seeds an accounting report and returns it.
func (s *Store) AddAccountingReport(rep ledger.AccountingReport) ledger.AccountingReport {
	out, err := s.InsertAccountingReport(context.Background(), rep)
	if err != nil {
		panic(err)
	}
	return out
}

func (s *Store) GetAccountingReport(_ context.Context, id uuid.UUID) (ledger.AccountingReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetAccountingReport"); err != nil {
		return ledger.AccountingReport{}, err
	}
	rep, ok := s.accounting[id]
	if !ok {
		return ledger.AccountingReport{}, fmt.Errorf("ledgertest: accounting report %s: %w", id, shared.ErrNotFound)
	}
	return cloneAccounting(rep), nil
}

func (s *Store) UpdateAccountingReport(_ context.Context, rep ledger.AccountingReport) (ledger.AccountingReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("UpdateAccountingReport"); err != nil {
		return ledger.AccountingReport{}, err
	}
	stored, ok := s.accounting[rep.ID]
	if !ok {
		return ledger.AccountingReport{}, fmt.Errorf("ledgertest: accounting report %s: %w", rep.ID, shared.ErrNotFound)
	}
	if stored.Version != rep.Version {
		return ledger.AccountingReport{}, fmt.Errorf("ledgertest: accounting report %s: stale version: %w", rep.ID, shared.ErrConflict)
	}
	rep.EnsureLists()
	stored.Platforms = rep.Platforms
	stored.RootDebts = rep.RootDebts
	stored.Version++
	s.accounting[rep.ID] = cloneAccounting(stored)
	return cloneAccounting(stored), nil
}

// sortedAccounting returns reports newest first: date desc, then seq desc.
func (s *Store) sortedAccounting() []ledger.AccountingReport {
	out := make([]ledger.AccountingReport, 0, len(s.accounting))
	for _, rep := range s.accounting {
		out = append(out, rep)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].Seq > out[j].Seq
	})
	return out
}

func (s *Store) LatestBefore(_ context.Context, day time.Time, section ledger.Section, platform string) (ledger.AccountingReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("LatestBefore"); err != nil {
		return ledger.AccountingReport{}, err
	}
	day = ledger.TruncateDay(day)
	for _, rep := range s.sortedAccounting() {
		if rep.Date.Before(day) && rep.Has(section, platform) {
			return cloneAccounting(rep), nil
		}
	}
	return ledger.AccountingReport{}, fmt.Errorf("ledgertest: no %s before %s: %w", section, day.Format("2006-01-02"), shared.ErrNotFound)
}

func (s *Store) ListAccountingReports(_ context.Context, w ledger.Window) ([]ledger.AccountingReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListAccountingReports"); err != nil {
		return nil, err
	}
	var out []ledger.AccountingReport
	for _, rep := range s.sortedAccounting() {
		if w.Contains(rep.Date) {
			out = append(out, cloneAccounting(rep))
		}
	}
	return out, nil
}

// --- Aggregates ---

func nameFilter(names []string) func(string) bool {
	if names == nil {
		return func(string) bool { return true }
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return func(n string) bool {
		_, ok := set[n]
		return ok
	}
}

func (s *Store) SumOperational(_ context.Context, w ledger.Window, names []string) (ledger.OperationalTotals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("SumOperational"); err != nil {
		return ledger.OperationalTotals{}, err
	}
	match := nameFilter(names)
	var t ledger.OperationalTotals
	for _, rep := range s.operational {
		if !w.Contains(rep.Date) || !match(s.businesses[rep.BusinessID].Name) {
			continue
		}
		t = t.Add(ledger.TotalsOf(rep))
	}
	return t, nil
}

func (s *Store) SumRegisterEntries(_ context.Context, w ledger.Window, names []string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("SumRegisterEntries"); err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, rep := range s.accounting {
		if !w.Contains(rep.Date) {
			continue
		}
		for _, e := range rep.Register.Entries {
			if names != nil {
				if e.Business == nil {
					continue
				}
				b, ok := s.businesses[e.Business.ID]
				if !ok || !nameFilter(names)(b.Name) {
					continue
				}
			}
			total = total.Add(e.Amount)
		}
	}
	return total, nil
}

func (s *Store) SumCommission(_ context.Context, w ledger.Window, platform string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("SumCommission"); err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, rep := range s.accounting {
		if !w.Contains(rep.Date) {
			continue
		}
		for _, p := range rep.Platforms {
			if platform == "" || p.Name == platform {
				total = total.Add(p.Commission)
			}
		}
	}
	return total, nil
}

func (s *Store) DebtHistory(_ context.Context, w ledger.Window, kinds []ledger.LineKind) ([]ledger.HistoryLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("DebtHistory"); err != nil {
		return nil, err
	}
	want := func(k ledger.LineKind) bool {
		if len(kinds) == 0 {
			return true
		}
		for _, candidate := range kinds {
			if candidate == k {
				return true
			}
		}
		return false
	}
	var out []ledger.HistoryLine
	for _, rep := range s.operational {
		if !w.Contains(rep.Date) {
			continue
		}
		emit := func(kind ledger.LineKind, lines []ledger.Line) {
			if !want(kind) {
				return
			}
			for _, l := range lines {
				out = append(out, ledger.HistoryLine{
					ReportID:     rep.ID,
					Kind:         kind,
					Date:         rep.Date,
					BusinessName: rep.BusinessName,
					Ref:          l.Ref,
					Description:  l.Description,
					Amount:       l.Amount,
				})
			}
		}
		emit(ledger.LineDebt, rep.Debts)
		emit(ledger.LineSettlement, rep.Settlements)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		if out[i].BusinessName != out[j].BusinessName {
			return out[i].BusinessName < out[j].BusinessName
		}
		return strings.Compare(string(out[i].Kind), string(out[j].Kind)) < 0
	})
	return out, nil
}

func (s *Store) CategoryEntries(_ context.Context, category string) ([]ledger.CategoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CategoryEntries"); err != nil {
		return nil, err
	}
	var out []ledger.CategoryEntry
	for _, rep := range s.sortedAccounting() {
		for _, e := range rep.Register.Entries {
			if e.Business == nil {
				continue
			}
			b, ok := s.businesses[e.Business.ID]
			if !ok || b.Category != category {
				continue
			}
			out = append(out, ledger.CategoryEntry{
				Date:         rep.Date,
				BusinessName: b.Name,
				Description:  e.Description,
				Amount:       e.Amount,
			})
		}
	}
	return out, nil
}

func cloneOperational(r ledger.OperationalReport) ledger.OperationalReport {
	r.Sales = append([]ledger.Line(nil), r.Sales...)
	r.Debts = append([]ledger.Line(nil), r.Debts...)
	r.Settlements = append([]ledger.Line(nil), r.Settlements...)
	r.CashOutflows = append([]ledger.Outflow(nil), r.CashOutflows...)
	r.EnsureLists()
	return r
}

func cloneAccounting(r ledger.AccountingReport) ledger.AccountingReport {
	r.Banks = append([]ledger.Bank(nil), r.Banks...)
	if r.Register.Balance != nil {
		b := *r.Register.Balance
		r.Register.Balance = &b
	}
	entries := make([]ledger.RegisterEntry, len(r.Register.Entries))
	for i, e := range r.Register.Entries {
		if e.Business != nil {
			ref := *e.Business
			e.Business = &ref
		}
		entries[i] = e
	}
	r.Register.Entries = entries
	r.Register.Outflows = append([]ledger.Outflow(nil), r.Register.Outflows...)
	platforms := make([]ledger.Platform, len(r.Platforms))
	for i, p := range r.Platforms {
		p.Debts = append([]ledger.StatusDebt(nil), p.Debts...)
		platforms[i] = p
	}
	r.Platforms = platforms
	r.RootDebts = append([]ledger.StatusDebt(nil), r.RootDebts...)
	if r.Settlement != nil {
		st := *r.Settlement
		r.Settlement = &st
	}
	r.EnsureLists()
	return r
}
