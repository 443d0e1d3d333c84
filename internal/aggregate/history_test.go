package aggregate

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daybook/daybook/internal/ledger"
	"github.com/daybook/daybook/internal/shared"
)

func TestDebtHistory(t *testing.T) {
	s := seed(t)
	e := newEngine(s.store)
	ctx := context.Background()

	lines, err := e.DebtHistory(ctx, date(2024, 3, 1), date(2024, 3, 10), "")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "Quincaillerie 1", lines[0].BusinessName)

	debts, err := e.DebtHistory(ctx, date(2024, 3, 1), date(2024, 3, 31), ledger.LineDebt)
	require.NoError(t, err)
	require.Len(t, debts, 1)
	assert.Equal(t, ledger.LineDebt, debts[0].Kind)

	empty, err := e.DebtHistory(ctx, date(2024, 3, 11), date(2024, 3, 31), "")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = e.DebtHistory(ctx, date(2024, 3, 31), date(2024, 3, 1), "")
	assert.True(t, errors.Is(err, shared.ErrValidation))
	_, err = e.DebtHistory(ctx, date(2024, 3, 1), date(2024, 3, 31), "refund")
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestRentalEntries(t *testing.T) {
	s := seed(t)
	entries, err := newEngine(s.store).RentalEntries(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Appartement F4", entries[0].BusinessName)
	assert.True(t, entries[0].Amount.Equal(dec("250")))
}

func TestAccountingDebts(t *testing.T) {
	s := seed(t)
	s.store.AddAccountingReport(ledger.AccountingReport{
		Date:      date(2024, 3, 13),
		RootDebts: []ledger.StatusDebt{{ID: uuid.New(), Amount: dec("10"), Status: ledger.DebtUnpaid}},
		Platforms: []ledger.Platform{{Name: "Wizall", Debts: []ledger.StatusDebt{{ID: uuid.New(), Amount: dec("4"), Status: ledger.DebtPaid}}}},
	})
	debts, err := newEngine(s.store).AccountingDebts(context.Background())
	require.NoError(t, err)
	require.Len(t, debts, 2)
	assert.Equal(t, ledger.DebtKindRoot, debts[0].Kind)
	assert.Equal(t, ledger.DebtKindPlatform, debts[1].Kind)
	assert.Equal(t, "Wizall", debts[1].Platform)
}
