package snapshot

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daybook/daybook/internal/ledger"
	"github.com/daybook/daybook/internal/ledger/ledgertest"
	"github.com/daybook/daybook/internal/shared"
)

func day(d int) time.Time {
	return time.Date(2024, 2, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestResolveCarriesBanksFromNearestEarlier(t *testing.T) {
	store := ledgertest.New()
	store.AddAccountingReport(ledger.AccountingReport{Date: day(1), Banks: []ledger.Bank{{Name: "old", Balance: dec("1")}}})
	want := store.AddAccountingReport(ledger.AccountingReport{Date: day(3), Banks: []ledger.Bank{{Name: "BOA", Balance: dec("900")}}})
	store.AddAccountingReport(ledger.AccountingReport{Date: day(4)})
	current := store.AddAccountingReport(ledger.AccountingReport{Date: day(5)})
	store.AddAccountingReport(ledger.AccountingReport{Date: day(6), Banks: []ledger.Bank{{Name: "future"}}})

	snap, err := NewResolver(store, nil, nil).Resolve(context.Background(), current)
	require.NoError(t, err)
	assert.Equal(t, want.Banks, snap.Banks)
	assert.Equal(t, want.ID, snap.Sources["banks"].ReportID)
}

func TestResolveSameDateUsesLatestInserted(t *testing.T) {
	store := ledgertest.New()
	store.AddAccountingReport(ledger.AccountingReport{Date: day(1), Banks: []ledger.Bank{{Name: "first"}}})
	store.AddAccountingReport(ledger.AccountingReport{Date: day(1), Banks: []ledger.Bank{{Name: "second"}}})
	current := store.AddAccountingReport(ledger.AccountingReport{Date: day(2)})

	snap, err := NewResolver(store, nil, nil).Resolve(context.Background(), current)
	require.NoError(t, err)
	require.Len(t, snap.Banks, 1)
	assert.Equal(t, "second", snap.Banks[0].Name)
}

func TestResolveSectionsIndependent(t *testing.T) {
	store := ledgertest.New()
	balance := dec("250")
	debtsSrc := store.AddAccountingReport(ledger.AccountingReport{
		Date:      day(1),
		RootDebts: []ledger.StatusDebt{{ID: uuid.New(), Amount: dec("3"), Status: ledger.DebtUnpaid}},
		Register:  ledger.MainRegister{Balance: &balance},
	})
	banksSrc := store.AddAccountingReport(ledger.AccountingReport{
		Date:       day(2),
		Banks:      []ledger.Bank{{Name: "BOA", Balance: dec("10")}},
		Settlement: &ledger.SweepSettlement{Method: "wave", Amount: dec("40")},
	})
	current := store.AddAccountingReport(ledger.AccountingReport{Date: day(3)})

	snap, err := NewResolver(store, nil, nil).Resolve(context.Background(), current)
	require.NoError(t, err)
	assert.Equal(t, banksSrc.Banks, snap.Banks)
	assert.Equal(t, debtsSrc.RootDebts, snap.RootDebts)
	require.NotNil(t, snap.Register.Balance)
	assert.True(t, snap.Register.Balance.Equal(balance))
	require.NotNil(t, snap.Settlement)
	assert.Equal(t, "wave", snap.Settlement.Method)
	assert.Equal(t, banksSrc.ID, snap.Sources["banks"].ReportID)
	assert.Equal(t, debtsSrc.ID, snap.Sources["root_debts"].ReportID)
	assert.Equal(t, debtsSrc.ID, snap.Sources["main_register.balance"].ReportID)
	assert.Empty(t, snap.Register.Outflows)
	_, carried := snap.Sources["main_register.outflows"]
	assert.False(t, carried)
}

func TestResolveKeepsOwnSections(t *testing.T) {
	store := ledgertest.New()
	store.AddAccountingReport(ledger.AccountingReport{Date: day(1), Banks: []ledger.Bank{{Name: "old"}}})
	current := store.AddAccountingReport(ledger.AccountingReport{Date: day(2), Banks: []ledger.Bank{{Name: "today"}}})

	snap, err := NewResolver(store, nil, nil).Resolve(context.Background(), current)
	require.NoError(t, err)
	assert.Equal(t, "today", snap.Banks[0].Name)
	assert.NotContains(t, snap.Sources, "banks")
}

func TestResolvePlatformsPerName(t *testing.T) {
	store := ledgertest.New()
	store.AddAccountingReport(ledger.AccountingReport{Date: day(1), Platforms: []ledger.Platform{
		{Name: "Wizall", Commission: dec("1")},
		{Name: "Orange Money", Commission: dec("2")},
	}})
	wizall := store.AddAccountingReport(ledger.AccountingReport{Date: day(2), Platforms: []ledger.Platform{
		{Name: "Wizall", Commission: dec("5")},
	}})
	current := store.AddAccountingReport(ledger.AccountingReport{Date: day(3), Platforms: []ledger.Platform{
		{Name: "Wafacash", Commission: dec("9")},
		{Name: "Unlisted", Commission: dec("9")},
	}})

	snap, err := NewResolver(store, nil, nil).Resolve(context.Background(), current)
	require.NoError(t, err)
	names := make([]string, 0, len(snap.Platforms))
	for _, p := range snap.Platforms {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Wafacash", "Orange Money", "Wizall"}, names)
	assert.True(t, snap.Platforms[2].Commission.Equal(dec("5")))
	assert.Equal(t, wizall.ID, snap.Sources["platform:Wizall"].ReportID)
	assert.NotContains(t, snap.Sources, "platform:Ria BIS")
}

func TestResolvePlatformsFallsBackToWholeList(t *testing.T) {
	store := ledgertest.New()
	current := store.AddAccountingReport(ledger.AccountingReport{Date: day(3), Platforms: []ledger.Platform{{Name: "Other"}}})
	snap, err := NewResolver(store, []string{"Wizall"}, nil).Resolve(context.Background(), current)
	require.NoError(t, err)
	require.Len(t, snap.Platforms, 1)
	assert.Equal(t, "Other", snap.Platforms[0].Name)

	store.AddAccountingReport(ledger.AccountingReport{Date: day(1), Platforms: []ledger.Platform{{Name: "Legacy"}}})
	empty := store.AddAccountingReport(ledger.AccountingReport{Date: day(4)})
	snap, err = NewResolver(store, []string{"Wizall"}, nil).Resolve(context.Background(), empty)
	require.NoError(t, err)
	require.Len(t, snap.Platforms, 1)
	assert.Equal(t, "Other", snap.Platforms[0].Name)
}

func TestResolveWithoutHistoryLeavesSectionsEmpty(t *testing.T) {
	store := ledgertest.New()
	current := store.AddAccountingReport(ledger.AccountingReport{Date: day(1)})
	snap, err := NewResolver(store, nil, nil).Resolve(context.Background(), current)
	require.NoError(t, err)
	assert.NotNil(t, snap.Banks)
	assert.Empty(t, snap.Banks)
	assert.Empty(t, snap.Platforms)
	assert.Nil(t, snap.Register.Balance)
	assert.Nil(t, snap.Settlement)
	assert.Empty(t, snap.Sources)
}

func TestResolveEnrichesEntries(t *testing.T) {
	store := ledgertest.New()
	biz := store.AddBusiness("Appartement F4", ledger.CategoryRental)
	ghost := uuid.New()
	current := store.AddAccountingReport(ledger.AccountingReport{Date: day(1), Register: ledger.MainRegister{
		Entries: []ledger.RegisterEntry{
			{ID: uuid.New(), Business: &ledger.BusinessRef{ID: biz.ID}, Amount: dec("100")},
			{ID: uuid.New(), Business: &ledger.BusinessRef{ID: ghost}, Amount: dec("50")},
			{ID: uuid.New(), Amount: dec("5")},
		},
	}})

	snap, err := NewResolver(store, nil, nil).Resolve(context.Background(), current)
	require.NoError(t, err)
	require.Len(t, snap.Register.Entries, 3)
	assert.Equal(t, "Appartement F4", snap.Register.Entries[0].Business.Name)
	assert.Equal(t, ghost, snap.Register.Entries[1].Business.ID)
	assert.Empty(t, snap.Register.Entries[1].Business.Name)
	assert.Nil(t, snap.Register.Entries[2].Business)
	assert.Equal(t, 1, store.CallCount("BusinessNames"))
}

func TestResolveStorageFailure(t *testing.T) {
	store := ledgertest.New()
	current := store.AddAccountingReport(ledger.AccountingReport{Date: day(1)})
	store.SetFailure("LatestBefore", fmt.Errorf("ledger: latest before: %w", shared.ErrStorage))

	_, err := NewResolver(store, nil, nil).Resolve(context.Background(), current)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrStorage))
}
