package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nurpe/marketplace-settlement/internal/model"
)

var (
	// ErrNotFound is returned by locked reads when the row does not exist.
	ErrNotFound = errors.New("ledger: not found")
	// ErrTransient marks failures that leave no trace and may succeed when the whole
	// transaction is retried from scratch: serialization conflicts, deadlocks and
	// lock wait timeouts.
	ErrTransient = errors.New("ledger: transient failure")
	// ErrInvalidTransferAmount is returned when a transfer of a non-positive amount
	// is attempted. Callers validate amounts first; reaching it is a bug.
	ErrInvalidTransferAmount = errors.New("ledger: transfer amount must be positive")
	// ErrStaleWrite is returned when a write under lock affected no row.
	ErrStaleWrite = errors.New("ledger: write affected no row")
)

// Store opens serializable transactions.
type Store interface {
	WithTransaction(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of reads and writes available inside one transaction.
type Tx interface {
	// LockProfile reads a profile and holds an exclusive lock on its row.
	LockProfile(ctx context.Context, id int64) (*model.Profile, error)
	// LockJob reads a job joined with its contract parties and holds an exclusive
	// lock on the job row.
	LockJob(ctx context.Context, id int64) (*model.PayableJob, error)
	// OutstandingExposure sums the price of unpaid jobs under the client's
	// non-terminated contracts.
	OutstandingExposure(ctx context.Context, clientID int64) (decimal.Decimal, error)
	// AddToBalance adds delta (which may be negative) to a profile balance and
	// returns the new balance.
	AddToBalance(ctx context.Context, profileID int64, delta decimal.Decimal) (decimal.Decimal, error)
	// MarkJobPaid flips an unpaid job to paid and stamps its payment date.
	MarkJobPaid(ctx context.Context, jobID int64, paidAt time.Time) error
}

// IsTransient reports whether err may be cured by retrying the transaction.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
