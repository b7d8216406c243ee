package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkopo/loanbook/internal/domain/event"
	"github.com/mkopo/loanbook/internal/domain/valueobject"
	"github.com/mkopo/loanbook/pkg/money"
)

// ---------------------------------------------------------------------------
// Loan aggregate root
// ---------------------------------------------------------------------------

// Loan is an immutable aggregate. Mutations return a new copy.
type Loan struct {
	createdAt       time.Time
	updatedAt       time.Time
	principal       decimal.Decimal
	currency        money.Currency
	status          valueobject.LoanStatus
	domainEvents    []event.DomainEvent
	interestRateBps int
	termMonths      int
	version         int
	id              uuid.UUID
	clientID        uuid.UUID
}

// NewLoan originates a loan and its repayment schedule. The loan starts ACTIVE.
func NewLoan(
	clientID uuid.UUID,
	principal decimal.Decimal,
	currency money.Currency,
	interestRateBps, termMonths int,
	now time.Time,
) (Loan, []Installment, error) {
	switch {
	case clientID == uuid.Nil:
		return Loan{}, nil, fmt.Errorf("%w: client ID is required", valueobject.ErrInvalidLoanTerms)
	case !principal.IsPositive():
		return Loan{}, nil, fmt.Errorf("%w: principal must be positive", valueobject.ErrInvalidLoanTerms)
	case !principal.Equal(principal.Truncate(valueobject.AmountScale)):
		return Loan{}, nil, fmt.Errorf("%w: principal has more than %d decimal places", valueobject.ErrInvalidLoanTerms, valueobject.AmountScale)
	case currency.IsZero():
		return Loan{}, nil, fmt.Errorf("%w: currency is required", valueobject.ErrInvalidLoanTerms)
	case termMonths <= 0:
		return Loan{}, nil, fmt.Errorf("%w: term months must be positive", valueobject.ErrInvalidLoanTerms)
	case interestRateBps < 0:
		return Loan{}, nil, fmt.Errorf("%w: interest rate cannot be negative", valueobject.ErrInvalidLoanTerms)
	}

	id := uuid.New()
	rows := GenerateInstallments(id, principal, interestRateBps, termMonths, now)

	repayable := decimal.Zero
	for _, r := range rows {
		repayable = repayable.Add(r.TotalDue)
	}

	loan := Loan{
		id:              id,
		clientID:        clientID,
		principal:       principal,
		currency:        currency,
		interestRateBps: interestRateBps,
		termMonths:      termMonths,
		status:          valueobject.LoanStatusActive,
		version:         1,
		createdAt:       now,
		updatedAt:       now,
	}
	loan.domainEvents = append(loan.domainEvents, event.NewLoanOriginated(
		id, clientID, principal, currency.Code(), interestRateBps, termMonths,
		repayable, rows[0].DueDate, now,
	))

	return loan, rows, nil
}

// ReconstructLoan rebuilds a Loan aggregate from persistence.
func ReconstructLoan(
	id, clientID uuid.UUID,
	principal decimal.Decimal,
	currency money.Currency,
	interestRateBps, termMonths int,
	status valueobject.LoanStatus,
	version int,
	createdAt, updatedAt time.Time,
) Loan {
	return Loan{
		id:              id,
		clientID:        clientID,
		principal:       principal,
		currency:        currency,
		interestRateBps: interestRateBps,
		termMonths:      termMonths,
		status:          status,
		version:         version,
		createdAt:       createdAt,
		updatedAt:       updatedAt,
	}
}

// ---------------------------------------------------------------------------
// State transitions
// ---------------------------------------------------------------------------

// SyncStatus recomputes ACTIVE / PAID_OFF from the schedule. The second
// return value is false when nothing changed.
func (l Loan) SyncStatus(rows []Installment, now time.Time) (Loan, bool) {
	target := valueobject.LoanStatusActive
	if AllPaid(rows) {
		target = valueobject.LoanStatusPaidOff
	}
	if l.status.Equal(target) {
		return l, false
	}

	next := l
	next.status = target
	next.version++
	next.updatedAt = now
	next.domainEvents = copyEvents(l.domainEvents)
	if target.Equal(valueobject.LoanStatusPaidOff) {
		next.domainEvents = append(next.domainEvents, event.NewLoanPaidOff(l.id, l.clientID, now))
	} else {
		next.domainEvents = append(next.domainEvents, event.NewLoanReopened(l.id, l.clientID, now))
	}
	return next, true
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

func (l Loan) ID() uuid.UUID                     { return l.id }
func (l Loan) ClientID() uuid.UUID               { return l.clientID }
func (l Loan) Principal() decimal.Decimal        { return l.principal }
func (l Loan) Currency() money.Currency          { return l.currency }
func (l Loan) InterestRateBps() int              { return l.interestRateBps }
func (l Loan) TermMonths() int                   { return l.termMonths }
func (l Loan) Status() valueobject.LoanStatus    { return l.status }
func (l Loan) Version() int                      { return l.version }
func (l Loan) CreatedAt() time.Time              { return l.createdAt }
func (l Loan) UpdatedAt() time.Time              { return l.updatedAt }
func (l Loan) DomainEvents() []event.DomainEvent { return l.domainEvents }

// ClearEvents returns a copy with an empty event list.
func (l Loan) ClearEvents() Loan {
	next := l
	next.domainEvents = nil
	return next
}

func copyEvents(src []event.DomainEvent) []event.DomainEvent {
	if src == nil {
		return nil
	}
	dst := make([]event.DomainEvent, len(src))
	copy(dst, src)
	return dst
}
