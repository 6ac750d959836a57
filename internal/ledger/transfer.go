package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits kept for balances and prices.
const MoneyScale = 2

// Transfer moves amount from one profile balance to another inside tx. Both rows
// must already be locked by the caller, and sufficient funds are the caller's
// precondition; Transfer only performs the arithmetic.
func Transfer(ctx context.Context, tx Tx, fromProfileID, toProfileID int64, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: got %s", ErrInvalidTransferAmount, amount.StringFixed(MoneyScale))
	}
	if _, err := tx.AddToBalance(ctx, fromProfileID, amount.Neg()); err != nil {
		return fmt.Errorf("debit profile %d: %w", fromProfileID, err)
	}
	if _, err := tx.AddToBalance(ctx, toProfileID, amount); err != nil {
		return fmt.Errorf("credit profile %d: %w", toProfileID, err)
	}
	return nil
}

// HasMoneyScale reports whether amount carries no more fractional digits than
// balances can store.
func HasMoneyScale(amount decimal.Decimal) bool {
	return amount.Equal(amount.Truncate(MoneyScale))
}
