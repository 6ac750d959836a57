// Package ledger defines the transactional contract every balance-moving operation
// runs against, and the balance transfer primitive built on top of it.
//
// A Store hands out a Tx for the duration of one serializable transaction. Every
// Lock* read takes an exclusive row lock that is held until the transaction ends,
// so values read through a Tx may be used for decisions without a time-of-check gap.
// Returning an error from the callback passed to WithTransaction rolls back every
// write made through that Tx.
package ledger
