package event

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkopo/loanbook/pkg/events"
)

// DomainEvent is an alias for the shared pkg/events.DomainEvent interface.
type DomainEvent = events.DomainEvent

const (
	aggregateLoan   = "Loan"
	aggregateWallet = "Wallet"
)

const (
	TypeLoanOriginated   = "loanbook.loan.originated"
	TypeLoanPaidOff      = "loanbook.loan.paid_off"
	TypeLoanReopened     = "loanbook.loan.reopened"
	TypePaymentRecorded  = "loanbook.payment.recorded"
	TypePaymentReverted  = "loanbook.payment.reverted"
	TypePaymentAllocated = "loanbook.schedule.allocated"
	TypePaymentReversed  = "loanbook.schedule.reversed"
	TypeWalletCredited   = "loanbook.wallet.credited"
)

// InstallmentMovement is one schedule row touched by an allocation or reversal.
type InstallmentMovement struct {
	InstallmentID uuid.UUID       `json:"installment_id"`
	Sequence      int             `json:"sequence"`
	Amount        decimal.Decimal `json:"amount"`
	PaidAfter     decimal.Decimal `json:"paid_after"`
	Status        string          `json:"status"`
}

// ---------------------------------------------------------------------------
// Loan lifecycle
// ---------------------------------------------------------------------------

type LoanOriginated struct {
	events.BaseEvent
	ClientID        uuid.UUID       `json:"client_id"`
	Principal       decimal.Decimal `json:"principal"`
	Currency        string          `json:"currency"`
	InterestRateBps int             `json:"interest_rate_bps"`
	TermMonths      int             `json:"term_months"`
	TotalRepayable  decimal.Decimal `json:"total_repayable"`
	FirstDueDate    time.Time       `json:"first_due_date"`
}

func NewLoanOriginated(
	loanID, clientID uuid.UUID,
	principal decimal.Decimal, currency string,
	interestRateBps, termMonths int,
	totalRepayable decimal.Decimal, firstDue, now time.Time,
) LoanOriginated {
	return LoanOriginated{
		BaseEvent:       events.NewBaseEvent(TypeLoanOriginated, loanID, aggregateLoan, now),
		ClientID:        clientID,
		Principal:       principal,
		Currency:        currency,
		InterestRateBps: interestRateBps,
		TermMonths:      termMonths,
		TotalRepayable:  totalRepayable,
		FirstDueDate:    firstDue,
	}
}

// LoanPaidOff is raised when every installment reaches paid.
type LoanPaidOff struct {
	events.BaseEvent
	ClientID uuid.UUID `json:"client_id"`
}

func NewLoanPaidOff(loanID, clientID uuid.UUID, now time.Time) LoanPaidOff {
	return LoanPaidOff{
		BaseEvent: events.NewBaseEvent(TypeLoanPaidOff, loanID, aggregateLoan, now),
		ClientID:  clientID,
	}
}

// LoanReopened is raised when a reversal takes a paid-off loan back to active.
type LoanReopened struct {
	events.BaseEvent
	ClientID uuid.UUID `json:"client_id"`
}

func NewLoanReopened(loanID, clientID uuid.UUID, now time.Time) LoanReopened {
	return LoanReopened{
		BaseEvent: events.NewBaseEvent(TypeLoanReopened, loanID, aggregateLoan, now),
		ClientID:  clientID,
	}
}

// ---------------------------------------------------------------------------
// Payments
// ---------------------------------------------------------------------------

type PaymentRecorded struct {
	events.BaseEvent
	TransactionID   uuid.UUID       `json:"transaction_id"`
	Type            string          `json:"type"`
	Amount          decimal.Decimal `json:"amount"`
	AllocatedAmount decimal.Decimal `json:"allocated_amount"`
	OverflowAmount  decimal.Decimal `json:"overflow_amount"`
	Reference       string          `json:"reference,omitempty"`
}

func NewPaymentRecorded(
	loanID, transactionID uuid.UUID, txType string,
	amount, allocated, overflow decimal.Decimal, reference string, now time.Time,
) PaymentRecorded {
	return PaymentRecorded{
		BaseEvent:       events.NewBaseEvent(TypePaymentRecorded, loanID, aggregateLoan, now),
		TransactionID:   transactionID,
		Type:            txType,
		Amount:          amount,
		AllocatedAmount: allocated,
		OverflowAmount:  overflow,
		Reference:       reference,
	}
}

type PaymentReverted struct {
	events.BaseEvent
	TransactionID uuid.UUID       `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Reason        string          `json:"reason,omitempty"`
}

func NewPaymentReverted(loanID, transactionID uuid.UUID, amount decimal.Decimal, reason string, now time.Time) PaymentReverted {
	return PaymentReverted{
		BaseEvent:     events.NewBaseEvent(TypePaymentReverted, loanID, aggregateLoan, now),
		TransactionID: transactionID,
		Amount:        amount,
		Reason:        reason,
	}
}

// ---------------------------------------------------------------------------
// Schedule movements
// ---------------------------------------------------------------------------

type PaymentAllocated struct {
	events.BaseEvent
	Amount    decimal.Decimal       `json:"amount"`
	Applied   decimal.Decimal       `json:"applied"`
	Residual  decimal.Decimal       `json:"residual"`
	Movements []InstallmentMovement `json:"movements"`
}

func NewPaymentAllocated(loanID uuid.UUID, amount, applied, residual decimal.Decimal, movements []InstallmentMovement, now time.Time) PaymentAllocated {
	return PaymentAllocated{
		BaseEvent: events.NewBaseEvent(TypePaymentAllocated, loanID, aggregateLoan, now),
		Amount:    amount,
		Applied:   applied,
		Residual:  residual,
		Movements: movements,
	}
}

type PaymentReversed struct {
	events.BaseEvent
	Amount     decimal.Decimal       `json:"amount"`
	Reversed   decimal.Decimal       `json:"reversed"`
	Unreversed decimal.Decimal       `json:"unreversed"`
	Movements  []InstallmentMovement `json:"movements"`
}

func NewPaymentReversed(loanID uuid.UUID, amount, reversed, unreversed decimal.Decimal, movements []InstallmentMovement, now time.Time) PaymentReversed {
	return PaymentReversed{
		BaseEvent:  events.NewBaseEvent(TypePaymentReversed, loanID, aggregateLoan, now),
		Amount:     amount,
		Reversed:   reversed,
		Unreversed: unreversed,
		Movements:  movements,
	}
}

// ---------------------------------------------------------------------------
// Wallet
// ---------------------------------------------------------------------------

// WalletCredited is raised when allocation overflow lands in the client's wallet.
type WalletCredited struct {
	events.BaseEvent
	LoanID        uuid.UUID       `json:"loan_id"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Balance       decimal.Decimal `json:"balance"`
}

func NewWalletCredited(clientID, loanID, transactionID uuid.UUID, amount decimal.Decimal, currency string, balance decimal.Decimal, now time.Time) WalletCredited {
	return WalletCredited{
		BaseEvent:     events.NewBaseEvent(TypeWalletCredited, clientID, aggregateWallet, now),
		LoanID:        loanID,
		TransactionID: transactionID,
		Amount:        amount,
		Currency:      currency,
		Balance:       balance,
	}
}
