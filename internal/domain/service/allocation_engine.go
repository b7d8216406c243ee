package service

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkopo/loanbook/internal/domain/event"
	"github.com/mkopo/loanbook/internal/domain/model"
	"github.com/mkopo/loanbook/internal/domain/valueobject"
)

// ---------------------------------------------------------------------------
// AllocationEngine – applies and unwinds money against a repayment schedule
// ---------------------------------------------------------------------------

// Allocation is one schedule row touched by Allocate or Reverse.
type Allocation struct {
	DueDate       time.Time
	Amount        decimal.Decimal
	PaidBefore    decimal.Decimal
	PaidAfter     decimal.Decimal
	StatusAfter   valueobject.InstallmentStatus
	Sequence      int
	InstallmentID uuid.UUID
}

// AllocationResult is the outcome of Allocate. Updated holds the touched rows
// with their new AmountPaid, in the order they were filled.
type AllocationResult struct {
	Updated      []model.Installment
	Lines        []Allocation
	Amount       decimal.Decimal
	TotalApplied decimal.Decimal
	Residual     decimal.Decimal
}

// ReversalResult is the outcome of Reverse. Unreversed is the part of the
// requested amount that found no paid money to take back.
type ReversalResult struct {
	Updated       []model.Installment
	Lines         []Allocation
	Amount        decimal.Decimal
	TotalReversed decimal.Decimal
	Unreversed    decimal.Decimal
}

// AllocationEngine is stateless; callers must serialize calls per loan.
type AllocationEngine struct{}

// NewAllocationEngine returns a new engine instance.
func NewAllocationEngine() *AllocationEngine {
	return &AllocationEngine{}
}

// Allocate pays down rows oldest-due first. Each row receives at most its
// outstanding amount; whatever cannot be placed is returned as Residual.
func (e *AllocationEngine) Allocate(rows []model.Installment, amount decimal.Decimal) (AllocationResult, error) {
	if !amount.IsPositive() {
		return AllocationResult{}, fmt.Errorf("%w: allocate %s", valueobject.ErrInvalidAmount, amount)
	}
	if err := validateRows(rows); err != nil {
		return AllocationResult{}, err
	}

	eligible := make([]model.Installment, 0, len(rows))
	for _, r := range rows {
		if !r.Status().Equal(valueobject.InstallmentStatusPaid) {
			eligible = append(eligible, r)
		}
	}
	slices.SortStableFunc(eligible, byDueAscending)

	result := AllocationResult{Amount: amount, TotalApplied: decimal.Zero}
	remaining := amount

	for _, row := range eligible {
		if !remaining.IsPositive() {
			break
		}
		owed := row.Outstanding()
		if owed.IsZero() {
			continue
		}

		applied := decimal.Min(remaining, owed)
		before := row.AmountPaid
		row.AmountPaid = before.Add(applied)

		result.Updated = append(result.Updated, row)
		result.Lines = append(result.Lines, lineFor(row, applied, before))
		result.TotalApplied = result.TotalApplied.Add(applied)
		remaining = remaining.Sub(applied)
	}

	result.Residual = remaining
	if !result.TotalApplied.Add(result.Residual).Equal(amount) {
		return AllocationResult{}, fmt.Errorf("%w: applied %s + residual %s != %s",
			valueobject.ErrConservationViolated, result.TotalApplied, result.Residual, amount)
	}
	return result, nil
}

// Reverse takes money back from rows newest-due first, the mirror of Allocate.
func (e *AllocationEngine) Reverse(rows []model.Installment, amount decimal.Decimal) (ReversalResult, error) {
	if !amount.IsPositive() {
		return ReversalResult{}, fmt.Errorf("%w: reverse %s", valueobject.ErrInvalidAmount, amount)
	}
	if err := validateRows(rows); err != nil {
		return ReversalResult{}, err
	}

	eligible := make([]model.Installment, 0, len(rows))
	for _, r := range rows {
		if r.AmountPaid.IsPositive() && !r.Status().Equal(valueobject.InstallmentStatusPending) {
			eligible = append(eligible, r)
		}
	}
	slices.SortStableFunc(eligible, byDueDescending)

	result := ReversalResult{Amount: amount, TotalReversed: decimal.Zero}
	remaining := amount

	for _, row := range eligible {
		if !remaining.IsPositive() {
			break
		}

		reversed := decimal.Min(remaining, row.AmountPaid)
		before := row.AmountPaid
		row.AmountPaid = before.Sub(reversed)

		result.Updated = append(result.Updated, row)
		result.Lines = append(result.Lines, lineFor(row, reversed, before))
		result.TotalReversed = result.TotalReversed.Add(reversed)
		remaining = remaining.Sub(reversed)
	}

	result.Unreversed = remaining
	if !result.TotalReversed.Add(result.Unreversed).Equal(amount) {
		return ReversalResult{}, fmt.Errorf("%w: reversed %s + unreversed %s != %s",
			valueobject.ErrConservationViolated, result.TotalReversed, result.Unreversed, amount)
	}
	return result, nil
}

// Movements converts lines into their event representation.
func Movements(lines []Allocation) []event.InstallmentMovement {
	out := make([]event.InstallmentMovement, 0, len(lines))
	for _, l := range lines {
		out = append(out, event.InstallmentMovement{
			InstallmentID: l.InstallmentID,
			Sequence:      l.Sequence,
			Amount:        l.Amount,
			PaidAfter:     l.PaidAfter,
			Status:        l.StatusAfter.String(),
		})
	}
	return out
}

func lineFor(row model.Installment, moved, before decimal.Decimal) Allocation {
	return Allocation{
		InstallmentID: row.ID,
		Sequence:      row.Sequence,
		DueDate:       row.DueDate,
		Amount:        moved,
		PaidBefore:    before,
		PaidAfter:     row.AmountPaid,
		StatusAfter:   row.Status(),
	}
}

func validateRows(rows []model.Installment) error {
	for _, r := range rows {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func byDueAscending(a, b model.Installment) int {
	if c := a.DueDate.Compare(b.DueDate); c != 0 {
		return c
	}
	if a.Sequence != b.Sequence {
		return a.Sequence - b.Sequence
	}
	return strings.Compare(a.ID.String(), b.ID.String())
}

// byDueDescending mirrors byDueAscending on due date and sequence only. The ID
// key just makes the order total, so it stays ascending in both directions.
func byDueDescending(a, b model.Installment) int {
	if c := b.DueDate.Compare(a.DueDate); c != 0 {
		return c
	}
	if a.Sequence != b.Sequence {
		return b.Sequence - a.Sequence
	}
	return strings.Compare(a.ID.String(), b.ID.String())
}
