package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkopo/loanbook/internal/domain/valueobject"
)

// Installment is one row of a loan's repayment schedule. Its status is never
// stored on the struct; call Status to derive it from the amounts.
type Installment struct {
	DueDate      time.Time
	UpdatedAt    time.Time
	PrincipalDue decimal.Decimal
	InterestDue  decimal.Decimal
	TotalDue     decimal.Decimal
	AmountPaid   decimal.Decimal
	Sequence     int
	ID           uuid.UUID
	LoanID       uuid.UUID
}

// Status derives the row's repayment state from AmountPaid and TotalDue.
func (i Installment) Status() valueobject.InstallmentStatus {
	return valueobject.DeriveInstallmentStatus(i.AmountPaid, i.TotalDue)
}

// Outstanding is what is still owed on the row, never negative.
func (i Installment) Outstanding() decimal.Decimal {
	out := i.TotalDue.Sub(i.AmountPaid)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// Validate checks the stored amounts.
func (i Installment) Validate() error {
	switch {
	case i.TotalDue.IsNegative():
		return fmt.Errorf("%w: row %d total due %s is negative", valueobject.ErrInvalidInstallment, i.Sequence, i.TotalDue)
	case i.AmountPaid.IsNegative():
		return fmt.Errorf("%w: row %d amount paid %s is negative", valueobject.ErrInvalidInstallment, i.Sequence, i.AmountPaid)
	case i.AmountPaid.GreaterThan(i.TotalDue):
		return fmt.Errorf("%w: row %d amount paid %s exceeds total due %s", valueobject.ErrInvalidInstallment, i.Sequence, i.AmountPaid, i.TotalDue)
	}
	return nil
}

// AllPaid reports whether a non-empty schedule has nothing left owing.
// Zero-due rows count as settled even though their status reads pending.
func AllPaid(rows []Installment) bool {
	if len(rows) == 0 {
		return false
	}
	for _, r := range rows {
		if !r.Outstanding().IsZero() {
			return false
		}
	}
	return true
}

// TotalOutstanding sums Outstanding over rows.
func TotalOutstanding(rows []Installment) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.Outstanding())
	}
	return total
}
