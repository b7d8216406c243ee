package valueobject

import "errors"

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

var (
	// ErrLoanNotFound is returned when a loan identifier does not resolve.
	ErrLoanNotFound = errors.New("loan not found")
	// ErrTransactionNotFound is returned when a transaction identifier does not resolve.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrWalletNotFound is returned when a client has no wallet yet.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrInvalidAmount is returned for non-positive or sub-cent payment and reversal amounts.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidTransactionType is returned for unknown or non-payment types on RecordPayment.
	ErrInvalidTransactionType = errors.New("invalid transaction type")
	// ErrCurrencyMismatch is returned when a payment currency differs from the loan currency.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrAlreadyReverted is returned when reverting a transaction twice.
	ErrAlreadyReverted = errors.New("transaction already reverted")
	// ErrNotReversible is returned for transaction types that never touched the schedule.
	ErrNotReversible = errors.New("transaction type is not reversible")
	// ErrOverflowNotReversible is returned when a transaction parked part of its
	// amount in the client wallet. Reversing it would leave the wallet overstated.
	ErrOverflowNotReversible = errors.New("transaction overflowed into wallet and cannot be reverted")
	// ErrDuplicatePayment is returned when an idempotency key was already used.
	ErrDuplicatePayment = errors.New("duplicate payment")

	// ErrInvalidLoanTerms wraps origination validation failures.
	ErrInvalidLoanTerms = errors.New("invalid loan terms")
	// ErrInvalidInstallment is returned when a stored row breaks 0 <= paid <= due.
	ErrInvalidInstallment = errors.New("invalid installment")

	// ErrConcurrentUpdate is returned when a loan's version moved underneath a write.
	ErrConcurrentUpdate = errors.New("concurrent update")

	// ErrConservationViolated signals a bug in allocation math.
	ErrConservationViolated = errors.New("allocation does not conserve payment amount")
)
