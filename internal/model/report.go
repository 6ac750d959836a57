package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProfessionEarnings struct {
	Profession  string
	TotalEarned decimal.Decimal
}

type ClientPayments struct {
	ID        int64
	FirstName string
	LastName  string
	TotalPaid decimal.Decimal
}

func (c ClientPayments) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

type BestClientsReport struct {
	PeriodStart time.Time
	PeriodEnd   time.Time
	Limit       int
	Clients     []ClientPayments
	GeneratedAt time.Time
}

// JobReceipt describes a paid job with both parties of its contract.
type JobReceipt struct {
	Job        Job
	Contract   Contract
	Client     Profile
	Contractor Profile
}
