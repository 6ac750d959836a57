package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/marketplace-settlement/internal/ledger"
	"github.com/nurpe/marketplace-settlement/internal/model"
)

// SQLSTATE codes after which the whole transaction may simply be run again.
var transientCodes = map[string]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"55P03": {}, // lock_not_available (lock_timeout)
}

// LedgerRepository implements ledger.Store on PostgreSQL. Every transaction runs at
// SERIALIZABLE isolation and waits at most lockTimeout for any single row lock.
type LedgerRepository struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

var _ ledger.Store = (*LedgerRepository)(nil)

func NewLedgerRepository(db *gorm.DB, lockTimeout time.Duration) *LedgerRepository {
	return &LedgerRepository{db: db, lockTimeout: lockTimeout}
}

func (r *LedgerRepository) WithTransaction(ctx context.Context, fn func(tx ledger.Tx) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if r.lockTimeout > 0 {
			// SET does not accept bind parameters
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return fn(&ledgerTx{db: tx})
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
	return classify(err)
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if _, ok := transientCodes[pgErr.Code]; ok {
			return fmt.Errorf("%w: %w", ledger.ErrTransient, err)
		}
	}
	return err
}

type ledgerTx struct {
	db *gorm.DB
}

func (t *ledgerTx) LockProfile(ctx context.Context, id int64) (*model.Profile, error) {
	var profile model.Profile
	err := t.db.WithContext(ctx).Raw(`
		SELECT id, first_name, last_name, profession, balance, type, created_at, updated_at
		FROM profiles
		WHERE id = ?
		FOR UPDATE
	`, id).Scan(&profile).Error
	if err != nil {
		return nil, err
	}
	if profile.ID == 0 {
		return nil, ledger.ErrNotFound
	}
	return &profile, nil
}

func (t *ledgerTx) LockJob(ctx context.Context, id int64) (*model.PayableJob, error) {
	var row struct {
		ID             int64
		Description    string
		Price          decimal.Decimal
		Paid           bool
		PaymentDate    *time.Time
		ContractID     int64
		CreatedAt      time.Time
		UpdatedAt      time.Time
		ClientID       int64
		ContractorID   int64
		ContractStatus string
	}

	err := t.db.WithContext(ctx).Raw(`
		SELECT
			j.id,
			j.description,
			j.price,
			j.paid,
			j.payment_date,
			j.contract_id,
			j.created_at,
			j.updated_at,
			c.client_id,
			c.contractor_id,
			c.status AS contract_status
		FROM jobs j
		JOIN contracts c ON c.id = j.contract_id
		WHERE j.id = ?
		FOR UPDATE OF j
	`, id).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, ledger.ErrNotFound
	}

	return &model.PayableJob{
		Job: model.Job{
			ID:          row.ID,
			Description: row.Description,
			Price:       row.Price,
			Paid:        row.Paid,
			PaymentDate: row.PaymentDate,
			ContractID:  row.ContractID,
			CreatedAt:   row.CreatedAt,
			UpdatedAt:   row.UpdatedAt,
		},
		ClientID:       row.ClientID,
		ContractorID:   row.ContractorID,
		ContractStatus: model.ContractStatus(row.ContractStatus),
	}, nil
}

func (t *ledgerTx) OutstandingExposure(ctx context.Context, clientID int64) (decimal.Decimal, error) {
	var row struct {
		Total decimal.Decimal
	}
	err := t.db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(j.price), 0) AS total
		FROM jobs j
		JOIN contracts c ON c.id = j.contract_id
		WHERE c.client_id = ?
			AND c.status <> 'terminated'
			AND j.paid = FALSE
	`, clientID).Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return row.Total, nil
}

func (t *ledgerTx) AddToBalance(ctx context.Context, profileID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	var row struct {
		Balance decimal.Decimal
	}
	res := t.db.WithContext(ctx).Raw(`
		UPDATE profiles
		SET balance = balance + ?, updated_at = NOW()
		WHERE id = ?
		RETURNING balance
	`, delta, profileID).Scan(&row)
	if res.Error != nil {
		return decimal.Zero, res.Error
	}
	if res.RowsAffected == 0 {
		return decimal.Zero, ledger.ErrStaleWrite
	}
	return row.Balance, nil
}

func (t *ledgerTx) MarkJobPaid(ctx context.Context, jobID int64, paidAt time.Time) error {
	res := t.db.WithContext(ctx).Exec(`
		UPDATE jobs
		SET paid = TRUE, payment_date = ?, updated_at = NOW()
		WHERE id = ? AND paid = FALSE
	`, paidAt, jobID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ledger.ErrStaleWrite
	}
	return nil
}
