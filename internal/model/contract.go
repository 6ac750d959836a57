package model

import "time"

type ContractStatus string

const (
	ContractStatusNew        ContractStatus = "new"
	ContractStatusInProgress ContractStatus = "in_progress"
	ContractStatusTerminated ContractStatus = "terminated"
)

type Contract struct {
	ID           int64
	Terms        string
	Status       ContractStatus
	ClientID     int64
	ContractorID int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsParty reports whether the profile is the client or the contractor of the contract.
func (c Contract) IsParty(profileID int64) bool {
	return c.ClientID == profileID || c.ContractorID == profileID
}
