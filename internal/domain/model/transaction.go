package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkopo/loanbook/internal/domain/valueobject"
)

// Transaction records money received against a loan. It is created once and
// only ever mutated by attaching its allocation outcome or by being reverted.
type Transaction struct {
	CreatedAt       time.Time
	RevertedAt      *time.Time
	Amount          decimal.Decimal
	AllocatedAmount decimal.Decimal
	OverflowAmount  decimal.Decimal
	Type            valueobject.TransactionType
	Currency        string
	Reference       string
	RevertReason    string
	ID              uuid.UUID
	LoanID          uuid.UUID
	ClientID        uuid.UUID
	IsReverted      bool
}

// NewPaymentTransaction validates and builds a payment record against loan.
func NewPaymentTransaction(
	loan Loan,
	txType valueobject.TransactionType,
	amount decimal.Decimal,
	reference string,
	now time.Time,
) (Transaction, error) {
	if !txType.AllocatesToSchedule() {
		return Transaction{}, fmt.Errorf("%w: %s is not a payment type", valueobject.ErrInvalidTransactionType, txType)
	}
	if !amount.IsPositive() {
		return Transaction{}, fmt.Errorf("%w: got %s", valueobject.ErrInvalidAmount, amount)
	}
	return Transaction{
		ID:              uuid.New(),
		LoanID:          loan.ID(),
		ClientID:        loan.ClientID(),
		Type:            txType,
		Amount:          amount,
		Currency:        loan.Currency().Code(),
		Reference:       reference,
		AllocatedAmount: decimal.Zero,
		OverflowAmount:  decimal.Zero,
		CreatedAt:       now,
	}, nil
}

// WithAllocation records how much of the amount reached the schedule and how
// much overflowed to the wallet.
func (t Transaction) WithAllocation(allocated, overflow decimal.Decimal) Transaction {
	next := t
	next.AllocatedAmount = allocated
	next.OverflowAmount = overflow
	return next
}

// Revert marks the transaction reverted. Payments whose overflow was parked in
// the wallet are refused because the wallet side cannot be unwound.
func (t Transaction) Revert(reason string, now time.Time) (Transaction, error) {
	switch {
	case t.IsReverted:
		return t, valueobject.ErrAlreadyReverted
	case !t.Type.AllocatesToSchedule():
		return t, fmt.Errorf("%w: %s", valueobject.ErrNotReversible, t.Type)
	case t.OverflowAmount.IsPositive():
		return t, fmt.Errorf("%w: %s parked in wallet", valueobject.ErrOverflowNotReversible, t.OverflowAmount)
	}
	next := t
	next.IsReverted = true
	next.RevertedAt = &now
	next.RevertReason = reason
	return next, nil
}
