package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkopo/loanbook/internal/domain/model"
	"github.com/mkopo/loanbook/internal/domain/service"
)

// ---------------------------------------------------------------------------
// Request DTOs
// ---------------------------------------------------------------------------

// OriginateLoanRequest carries the terms of a new loan.
type OriginateLoanRequest struct {
	StartDate       time.Time       `json:"start_date"`
	Principal       decimal.Decimal `json:"principal"`
	Currency        string          `json:"currency"`
	InterestRateBps int             `json:"interest_rate_bps"`
	TermMonths      int             `json:"term_months"`
	ClientID        uuid.UUID       `json:"client_id"`
}

// AllocatePaymentRequest applies an amount directly to a loan's schedule.
type AllocatePaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	LoanID uuid.UUID       `json:"loan_id"`
}

// ReversePaymentRequest unwinds an amount from a loan's schedule.
type ReversePaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	LoanID uuid.UUID       `json:"loan_id"`
}

// RecordPaymentRequest records money received for a loan.
type RecordPaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Type   string          `json:"type"`
	// Reference is the channel receipt, e.g. an M-Pesa transaction code.
	Reference string `json:"reference"`
	// IdempotencyKey defaults to Reference for M-Pesa payments when empty.
	IdempotencyKey string    `json:"idempotency_key"`
	LoanID         uuid.UUID `json:"loan_id"`
}

// RevertPaymentRequest identifies a payment to undo.
type RevertPaymentRequest struct {
	Reason        string    `json:"reason"`
	TransactionID uuid.UUID `json:"transaction_id"`
}

// ---------------------------------------------------------------------------
// Response DTOs
// ---------------------------------------------------------------------------

// AllocationLine is one touched schedule row.
type AllocationLine struct {
	DueDate       time.Time       `json:"due_date"`
	Amount        decimal.Decimal `json:"amount"`
	PaidBefore    decimal.Decimal `json:"paid_before"`
	PaidAfter     decimal.Decimal `json:"paid_after"`
	Status        string          `json:"status"`
	Sequence      int             `json:"sequence"`
	InstallmentID uuid.UUID       `json:"installment_id"`
}

// AllocationResponse is the outcome of allocating money to a schedule.
type AllocationResponse struct {
	Amount     decimal.Decimal  `json:"amount"`
	Applied    decimal.Decimal  `json:"applied"`
	Residual   decimal.Decimal  `json:"residual"`
	LoanStatus string           `json:"loan_status"`
	Lines      []AllocationLine `json:"lines"`
	LoanID     uuid.UUID        `json:"loan_id"`
}

// ReversalResponse is the outcome of unwinding money from a schedule.
type ReversalResponse struct {
	Amount     decimal.Decimal  `json:"amount"`
	Reversed   decimal.Decimal  `json:"reversed"`
	Unreversed decimal.Decimal  `json:"unreversed"`
	LoanStatus string           `json:"loan_status"`
	Lines      []AllocationLine `json:"lines"`
	LoanID     uuid.UUID        `json:"loan_id"`
}

// TransactionResponse is the external view of a payment record.
type TransactionResponse struct {
	CreatedAt       time.Time       `json:"created_at"`
	RevertedAt      *time.Time      `json:"reverted_at,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	AllocatedAmount decimal.Decimal `json:"allocated_amount"`
	OverflowAmount  decimal.Decimal `json:"overflow_amount"`
	Type            string          `json:"type"`
	Currency        string          `json:"currency"`
	Reference       string          `json:"reference,omitempty"`
	ID              uuid.UUID       `json:"id"`
	LoanID          uuid.UUID       `json:"loan_id"`
	IsReverted      bool            `json:"is_reverted"`
}

// RecordPaymentResponse is returned by RecordPayment.
type RecordPaymentResponse struct {
	Transaction   TransactionResponse `json:"transaction"`
	Allocation    AllocationResponse  `json:"allocation"`
	WalletBalance *decimal.Decimal    `json:"wallet_balance,omitempty"`
}

// RevertPaymentResponse is returned by RevertPayment.
type RevertPaymentResponse struct {
	Transaction TransactionResponse `json:"transaction"`
	Reversal    ReversalResponse    `json:"reversal"`
}

// InstallmentResponse is one schedule row.
type InstallmentResponse struct {
	DueDate      time.Time       `json:"due_date"`
	PrincipalDue decimal.Decimal `json:"principal_due"`
	InterestDue  decimal.Decimal `json:"interest_due"`
	TotalDue     decimal.Decimal `json:"total_due"`
	AmountPaid   decimal.Decimal `json:"amount_paid"`
	Status       string          `json:"status"`
	Sequence     int             `json:"sequence"`
	ID           uuid.UUID       `json:"id"`
}

// LoanResponse is the loan header plus schedule.
type LoanResponse struct {
	CreatedAt       time.Time             `json:"created_at"`
	Principal       decimal.Decimal       `json:"principal"`
	Outstanding     decimal.Decimal       `json:"outstanding"`
	Currency        string                `json:"currency"`
	Status          string                `json:"status"`
	Schedule        []InstallmentResponse `json:"schedule"`
	Transactions    []TransactionResponse `json:"transactions,omitempty"`
	InterestRateBps int                   `json:"interest_rate_bps"`
	TermMonths      int                   `json:"term_months"`
	ID              uuid.UUID             `json:"id"`
	ClientID        uuid.UUID             `json:"client_id"`
}

// WalletEntryResponse is one wallet ledger line.
type WalletEntryResponse struct {
	CreatedAt     time.Time       `json:"created_at"`
	Amount        decimal.Decimal `json:"amount"`
	Type          string          `json:"type"`
	ID            uuid.UUID       `json:"id"`
	LoanID        uuid.UUID       `json:"loan_id"`
	TransactionID uuid.UUID       `json:"transaction_id"`
}

// WalletResponse is a client's wallet balance and ledger.
type WalletResponse struct {
	Balance  decimal.Decimal       `json:"balance"`
	Currency string                `json:"currency"`
	Entries  []WalletEntryResponse `json:"entries"`
	ClientID uuid.UUID             `json:"client_id"`
}

// ---------------------------------------------------------------------------
// Mappers
// ---------------------------------------------------------------------------

func ToAllocationLines(lines []service.Allocation) []AllocationLine {
	out := make([]AllocationLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, AllocationLine{
			InstallmentID: l.InstallmentID,
			Sequence:      l.Sequence,
			DueDate:       l.DueDate,
			Amount:        l.Amount,
			PaidBefore:    l.PaidBefore,
			PaidAfter:     l.PaidAfter,
			Status:        l.StatusAfter.String(),
		})
	}
	return out
}

func ToTransactionResponse(tx model.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:              tx.ID,
		LoanID:          tx.LoanID,
		Type:            tx.Type.String(),
		Amount:          tx.Amount,
		Currency:        tx.Currency,
		Reference:       tx.Reference,
		AllocatedAmount: tx.AllocatedAmount,
		OverflowAmount:  tx.OverflowAmount,
		IsReverted:      tx.IsReverted,
		RevertedAt:      tx.RevertedAt,
		CreatedAt:       tx.CreatedAt,
	}
}

func ToInstallmentResponses(rows []model.Installment) []InstallmentResponse {
	out := make([]InstallmentResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, InstallmentResponse{
			ID:           r.ID,
			Sequence:     r.Sequence,
			DueDate:      r.DueDate,
			PrincipalDue: r.PrincipalDue,
			InterestDue:  r.InterestDue,
			TotalDue:     r.TotalDue,
			AmountPaid:   r.AmountPaid,
			Status:       r.Status().String(),
		})
	}
	return out
}

func ToLoanResponse(loan model.Loan, rows []model.Installment) LoanResponse {
	return LoanResponse{
		ID:              loan.ID(),
		ClientID:        loan.ClientID(),
		Principal:       loan.Principal(),
		Currency:        loan.Currency().Code(),
		InterestRateBps: loan.InterestRateBps(),
		TermMonths:      loan.TermMonths(),
		Status:          loan.Status().String(),
		Outstanding:     model.TotalOutstanding(rows),
		Schedule:        ToInstallmentResponses(rows),
		CreatedAt:       loan.CreatedAt(),
	}
}
