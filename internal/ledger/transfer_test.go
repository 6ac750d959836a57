package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/marketplace-settlement/internal/ledger"
	"github.com/nurpe/marketplace-settlement/internal/ledgertest"
	"github.com/nurpe/marketplace-settlement/internal/model"
)

func newStore() *ledgertest.Store {
	return ledgertest.New().Load([]model.Profile{
		{ID: 1, Type: model.ProfileTypeClient, Balance: decimal.RequireFromString("231.11")},
		{ID: 2, Type: model.ProfileTypeContractor, Balance: decimal.RequireFromString("1214.00")},
	}, nil, nil)
}

func TestTransfer_MovesExactAmount(t *testing.T) {
	store := newStore()

	err := store.WithTransaction(context.Background(), func(tx ledger.Tx) error {
		return ledger.Transfer(context.Background(), tx, 1, 2, decimal.RequireFromString("202.00"))
	})
	require.NoError(t, err)

	from, _ := store.Profile(1)
	to, _ := store.Profile(2)
	assert.Equal(t, "29.11", from.Balance.StringFixed(2))
	assert.Equal(t, "1416.00", to.Balance.StringFixed(2))
}

func TestTransfer_RejectsNonPositiveAmounts(t *testing.T) {
	for _, raw := range []string{"0", "-0.01", "-10"} {
		t.Run(raw, func(t *testing.T) {
			store := newStore()
			before := store.Balances()

			err := store.WithTransaction(context.Background(), func(tx ledger.Tx) error {
				return ledger.Transfer(context.Background(), tx, 1, 2, decimal.RequireFromString(raw))
			})
			require.ErrorIs(t, err, ledger.ErrInvalidTransferAmount)
			assert.Equal(t, before, store.Balances())
		})
	}
}

func TestTransfer_FailedCreditRollsBackDebit(t *testing.T) {
	store := newStore()
	before := store.Balances()

	err := store.WithTransaction(context.Background(), func(tx ledger.Tx) error {
		return ledger.Transfer(context.Background(), tx, 1, 99, decimal.RequireFromString("1.00"))
	})
	require.ErrorIs(t, err, ledger.ErrStaleWrite)
	assert.Equal(t, before, store.Balances(), "debit must not survive a failed credit")
	assert.Equal(t, 0, store.Commits())
}

func TestIsTransient(t *testing.T) {
	wrapped := errors.Join(errors.New("serialize"), ledger.ErrTransient)
	assert.True(t, ledger.IsTransient(wrapped))
	assert.False(t, ledger.IsTransient(ledger.ErrNotFound))
}

func TestHasMoneyScale(t *testing.T) {
	assert.True(t, ledger.HasMoneyScale(decimal.RequireFromString("12.11")))
	assert.True(t, ledger.HasMoneyScale(decimal.RequireFromString("12")))
	assert.True(t, ledger.HasMoneyScale(decimal.RequireFromString("12.100")))
	assert.False(t, ledger.HasMoneyScale(decimal.RequireFromString("12.111")))
}
