package service

import (
	"errors"

	"github.com/nurpe/marketplace-settlement/internal/ledger"
)

// Kind groups rejections by how callers should treat them.
type Kind string

const (
	// KindValidation is a rejection of caller input, independent of stored state.
	KindValidation Kind = "validation"
	// KindBusiness is a rejection caused by the state observed under lock.
	KindBusiness Kind = "business"
	// KindNotFound is a rejection for a missing profile, job or contract.
	KindNotFound Kind = "not_found"
	// KindForbidden is a rejection for a resource the profile is not a party to.
	KindForbidden Kind = "forbidden"
)

// Rejection is a failure that performed no mutation and must not be retried
// automatically.
type Rejection struct {
	Code string
	Kind Kind
}

func (r *Rejection) Error() string {
	return r.Code
}

func newRejection(code string, kind Kind) *Rejection {
	return &Rejection{Code: code, Kind: kind}
}

var (
	ErrWrongProfileType    = newRejection("WRONG_PROFILE_TYPE", KindValidation)
	ErrJobNotFound         = newRejection("JOB_NOT_FOUND", KindNotFound)
	ErrJobAlreadyPaid      = newRejection("JOB_ALREADY_PAID", KindBusiness)
	ErrInsufficientFunds   = newRejection("INSUFFICIENT_FUNDS", KindBusiness)
	ErrDepositAmountTooLow = newRejection("DEPOSIT_AMOUNT_TOO_LOW", KindValidation)
	ErrDepositLimit        = newRejection("DEPOSIT_LIMIT_EXCEEDED", KindBusiness)
	ErrInvalidAmount       = newRejection("INVALID_AMOUNT", KindValidation)
	ErrProfileNotFound     = newRejection("PROFILE_NOT_FOUND", KindNotFound)
	ErrContractNotFound    = newRejection("CONTRACT_NOT_FOUND", KindNotFound)
	ErrForbidden           = newRejection("FORBIDDEN", KindForbidden)
	ErrJobNotPaid          = newRejection("JOB_NOT_PAID", KindBusiness)
	ErrInsufficientData    = newRejection("INSUFFICIENT_DATA", KindBusiness)
	ErrDuplicateRequest    = newRejection("DUPLICATE_REQUEST", KindBusiness)
	ErrInvalidInput        = newRejection("INVALID_INPUT", KindValidation)
)

// AsRejection extracts the rejection carried by err, if any.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// IsTransient reports whether err is a lock timeout or serialization conflict that
// outlived the retry budget. The operation performed no mutation and may be retried
// from scratch.
func IsTransient(err error) bool {
	return ledger.IsTransient(err)
}
