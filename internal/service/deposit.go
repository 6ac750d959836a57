package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nurpe/marketplace-settlement/internal/idempotency"
	"github.com/nurpe/marketplace-settlement/internal/ledger"
	"github.com/nurpe/marketplace-settlement/internal/metrics"
)

// idempotencyWriteTimeout bounds the key bookkeeping that runs after the ledger
// transaction, which must finish even when the request context is already gone.
const idempotencyWriteTimeout = 2 * time.Second

// depositCapRatio bounds a single deposit relative to the client's outstanding exposure.
var depositCapRatio = decimal.RequireFromString("0.25")

type DepositInput struct {
	ProfileID      int64
	Amount         decimal.Decimal
	IdempotencyKey string
}

type DepositResult struct {
	ProfileID int64
	Amount    decimal.Decimal
	Balance   decimal.Decimal
	Replayed  bool
}

// Deposit credits a client balance. A single deposit may not exceed a quarter of the
// price of the client's unpaid jobs under non-terminated contracts; with nothing
// outstanding the cap is zero and every deposit is rejected.
func (s *SettlementService) Deposit(ctx context.Context, in DepositInput) (*DepositResult, error) {
	started := time.Now()
	defer func() {
		metrics.OperationDuration.WithLabelValues("deposit").Observe(time.Since(started).Seconds())
	}()

	result, err := s.deposit(ctx, in)

	outcome, code := outcomeOf(err)
	if err == nil && result.Replayed {
		outcome = metrics.OutcomeReplayed
	}
	metrics.DepositsTotal.WithLabelValues(outcome, code).Inc()
	return result, err
}

func (s *SettlementService) deposit(ctx context.Context, in DepositInput) (*DepositResult, error) {
	if !in.Amount.IsPositive() {
		return nil, ErrDepositAmountTooLow
	}
	if !ledger.HasMoneyScale(in.Amount) {
		return nil, fmt.Errorf("%w: at most %d fractional digits", ErrInvalidAmount, ledger.MoneyScale)
	}

	key := ""
	if in.IdempotencyKey != "" && s.idem != nil {
		key = fmt.Sprintf("%d:%s", in.ProfileID, in.IdempotencyKey)
		recorded, done, err := s.idem.Begin(ctx, key)
		switch {
		case errors.Is(err, idempotency.ErrInFlight):
			return nil, ErrDuplicateRequest
		case err != nil:
			return nil, fmt.Errorf("reserve idempotency key: %w", err)
		case done:
			balance, err := decimal.NewFromString(recorded)
			if err != nil {
				return nil, fmt.Errorf("decode recorded deposit %q: %w", recorded, err)
			}
			return &DepositResult{ProfileID: in.ProfileID, Amount: in.Amount, Balance: balance, Replayed: true}, nil
		}
	}

	var balance decimal.Decimal
	err := s.inTransaction(ctx, "deposit", func(tx ledger.Tx) error {
		profile, err := tx.LockProfile(ctx, in.ProfileID)
		if err != nil {
			return notFoundAs(err, ErrProfileNotFound)
		}

		exposure, err := tx.OutstandingExposure(ctx, profile.ID)
		if err != nil {
			return fmt.Errorf("outstanding exposure of profile %d: %w", profile.ID, err)
		}
		if in.Amount.GreaterThan(exposure.Mul(depositCapRatio)) {
			return ErrDepositLimit
		}

		balance, err = tx.AddToBalance(ctx, profile.ID, in.Amount)
		if err != nil {
			return fmt.Errorf("credit profile %d: %w", profile.ID, err)
		}
		return nil
	})
	if err != nil {
		if key != "" {
			if releaseErr := s.releaseKey(ctx, key); releaseErr != nil {
				s.log.Warn().Err(releaseErr).Int64("profile_id", in.ProfileID).Msg("failed to release idempotency key")
			}
		}
		return nil, err
	}

	if key != "" {
		if err := s.completeKey(ctx, key, balance.StringFixed(ledger.MoneyScale)); err != nil {
			s.log.Warn().Err(err).Int64("profile_id", in.ProfileID).Msg("failed to record idempotency key")
		}
	}

	s.log.Info().
		Int64("profile_id", in.ProfileID).
		Str("amount", in.Amount.StringFixed(ledger.MoneyScale)).
		Str("balance", balance.StringFixed(ledger.MoneyScale)).
		Msg("deposit applied")
	return &DepositResult{ProfileID: in.ProfileID, Amount: in.Amount, Balance: balance}, nil
}

func (s *SettlementService) releaseKey(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), idempotencyWriteTimeout)
	defer cancel()
	return s.idem.Release(ctx, key)
}

func (s *SettlementService) completeKey(ctx context.Context, key, balance string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), idempotencyWriteTimeout)
	defer cancel()
	return s.idem.Complete(ctx, key, balance)
}
