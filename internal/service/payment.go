package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nurpe/marketplace-settlement/internal/ledger"
	"github.com/nurpe/marketplace-settlement/internal/metrics"
)

type PaymentResult struct {
	JobID             int64
	ClientID          int64
	ContractorID      int64
	Amount            decimal.Decimal
	ClientBalance     decimal.Decimal
	ContractorBalance decimal.Decimal
	PaidAt            time.Time
}

// Pay settles a job: the acting client pays the job price to the contractor of the
// job's contract and the job becomes paid. The client row and the job row are locked
// before any check is made; the contractor row is locked last, only once the payment
// is known to go ahead.
//
// Jobs under another client's contract are reported as ErrJobNotFound so that job
// ids of other clients cannot be probed.
func (s *SettlementService) Pay(ctx context.Context, profileID, jobID int64) (*PaymentResult, error) {
	started := time.Now()
	defer func() {
		metrics.OperationDuration.WithLabelValues("pay").Observe(time.Since(started).Seconds())
	}()

	var result PaymentResult
	err := s.inTransaction(ctx, "pay", func(tx ledger.Tx) error {
		client, err := tx.LockProfile(ctx, profileID)
		if err != nil {
			return notFoundAs(err, ErrProfileNotFound)
		}
		if !client.IsClient() {
			return ErrWrongProfileType
		}

		job, err := tx.LockJob(ctx, jobID)
		if err != nil {
			return notFoundAs(err, ErrJobNotFound)
		}

		if job.ClientID != client.ID {
			return ErrJobNotFound
		}
		if job.Paid {
			return ErrJobAlreadyPaid
		}
		if client.Balance.LessThan(job.Price) {
			return ErrInsufficientFunds
		}

		contractor, err := tx.LockProfile(ctx, job.ContractorID)
		if err != nil {
			return fmt.Errorf("lock contractor %d of job %d: %w", job.ContractorID, job.ID, err)
		}

		if err := ledger.Transfer(ctx, tx, client.ID, contractor.ID, job.Price); err != nil {
			return err
		}
		paidAt := s.now().UTC()
		if err := tx.MarkJobPaid(ctx, job.ID, paidAt); err != nil {
			return fmt.Errorf("mark job %d paid: %w", job.ID, err)
		}

		result = PaymentResult{
			JobID:             job.ID,
			ClientID:          client.ID,
			ContractorID:      contractor.ID,
			Amount:            job.Price,
			ClientBalance:     client.Balance.Sub(job.Price),
			ContractorBalance: contractor.Balance.Add(job.Price),
			PaidAt:            paidAt,
		}
		return nil
	})

	outcome, code := outcomeOf(err)
	metrics.PaymentsTotal.WithLabelValues(outcome, code).Inc()
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("job_id", result.JobID).
		Int64("client_id", result.ClientID).
		Int64("contractor_id", result.ContractorID).
		Str("amount", result.Amount.StringFixed(ledger.MoneyScale)).
		Msg("job paid")
	return &result, nil
}

func notFoundAs(err error, rejection *Rejection) error {
	if errors.Is(err, ledger.ErrNotFound) {
		return rejection
	}
	return err
}
