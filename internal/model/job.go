package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Job struct {
	ID          int64
	Description string
	Price       decimal.Decimal
	Paid        bool
	PaymentDate *time.Time
	ContractID  int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PayableJob is a job joined with the parties of its contract, as read under lock
// by the payment operation.
type PayableJob struct {
	Job
	ClientID       int64
	ContractorID   int64
	ContractStatus ContractStatus
}

// UnpaidJob is a job listed together with its contract.
type UnpaidJob struct {
	Job
	Contract Contract
}
