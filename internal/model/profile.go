package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProfileType string

const (
	ProfileTypeClient     ProfileType = "client"
	ProfileTypeContractor ProfileType = "contractor"
)

type Profile struct {
	ID         int64
	FirstName  string
	LastName   string
	Profession string
	Balance    decimal.Decimal
	Type       ProfileType
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (p Profile) IsClient() bool {
	return p.Type == ProfileTypeClient
}

func (p Profile) FullName() string {
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}
