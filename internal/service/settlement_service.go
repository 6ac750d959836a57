package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/nurpe/marketplace-settlement/internal/config"
	"github.com/nurpe/marketplace-settlement/internal/ledger"
	"github.com/nurpe/marketplace-settlement/internal/metrics"
)

// DepositIdempotency remembers deposits by client-supplied key.
type DepositIdempotency interface {
	// Begin reserves key. If a deposit with this key already completed, it returns
	// the recorded value with done set. A key held by a deposit still in flight
	// yields idempotency.ErrInFlight.
	Begin(ctx context.Context, key string) (recorded string, done bool, err error)
	Complete(ctx context.Context, key, value string) error
	Release(ctx context.Context, key string) error
}

// SettlementService moves money between profile balances: job payments and
// client deposits.
type SettlementService struct {
	store ledger.Store
	idem  DepositIdempotency
	cfg   config.LedgerConfig
	log   zerolog.Logger
	now   func() time.Time
}

// NewSettlementService wires the engine. idem may be nil, which disables
// idempotency keys on deposits.
func NewSettlementService(store ledger.Store, idem DepositIdempotency, cfg config.LedgerConfig, log zerolog.Logger) *SettlementService {
	return &SettlementService{
		store: store,
		idem:  idem,
		cfg:   cfg,
		log:   log,
		now:   time.Now,
	}
}

// inTransaction runs fn in a ledger transaction, retrying the whole transaction
// with exponential backoff while the store reports transient failures. Any other
// error stops immediately.
func (s *SettlementService) inTransaction(ctx context.Context, operation string, fn func(tx ledger.Tx) error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.cfg.RetryBaseDelay
	policy.MaxInterval = 20 * s.cfg.RetryBaseDelay
	policy.MaxElapsedTime = 0

	retries := uint64(0)
	if s.cfg.MaxRetries > 0 {
		retries = uint64(s.cfg.MaxRetries)
	}
	b := backoff.WithContext(backoff.WithMaxRetries(policy, retries), ctx)

	attempt := func() error {
		err := s.store.WithTransaction(ctx, fn)
		if err == nil || ledger.IsTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		metrics.TransactionRetriesTotal.WithLabelValues(operation).Inc()
		s.log.Warn().
			Err(err).
			Str("operation", operation).
			Dur("backoff", wait).
			Msg("ledger transaction conflict, retrying")
	}

	return backoff.RetryNotify(attempt, b, notify)
}

func outcomeOf(err error) (outcome, code string) {
	if err == nil {
		return metrics.OutcomeSuccess, ""
	}
	if r, ok := AsRejection(err); ok {
		return metrics.OutcomeRejected, r.Code
	}
	if IsTransient(err) || errors.Is(err, context.DeadlineExceeded) {
		return metrics.OutcomeTransient, ""
	}
	return metrics.OutcomeError, ""
}
