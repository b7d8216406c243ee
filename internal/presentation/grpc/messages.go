package grpc

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mkopo/loanbook/internal/application/dto"
)

// Wire request messages. Amounts are decimal strings and dates are
// YYYY-MM-DD so that no client has to round-trip money through a float.

type OriginateLoanRequest struct {
	ClientID        string `json:"client_id"`
	Principal       string `json:"principal"`
	Currency        string `json:"currency"`
	StartDate       string `json:"start_date,omitempty"`
	InterestRateBps int32  `json:"interest_rate_bps"`
	TermMonths      int32  `json:"term_months"`
}

type GetLoanScheduleRequest struct {
	LoanID string `json:"loan_id"`
}

type RecordPaymentRequest struct {
	LoanID         string `json:"loan_id"`
	Amount         string `json:"amount"`
	Type           string `json:"type"`
	Reference      string `json:"reference,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type RevertPaymentRequest struct {
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason,omitempty"`
}

// AmountRequest is shared by AllocatePayment and ReversePayment.
type AmountRequest struct {
	LoanID string `json:"loan_id"`
	Amount string `json:"amount"`
}

type GetWalletRequest struct {
	ClientID string `json:"client_id"`
}

const dateLayout = "2006-01-02"

func parseID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "invalid %s: %v", field, err)
	}
	return id, nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, status.Errorf(codes.InvalidArgument, "invalid amount: %v", err)
	}
	return amount, nil
}

func (r *OriginateLoanRequest) toDTO() (dto.OriginateLoanRequest, error) {
	clientID, err := parseID("client_id", r.ClientID)
	if err != nil {
		return dto.OriginateLoanRequest{}, err
	}
	principal, err := decimal.NewFromString(r.Principal)
	if err != nil {
		return dto.OriginateLoanRequest{}, status.Errorf(codes.InvalidArgument, "invalid principal: %v", err)
	}
	var start time.Time
	if r.StartDate != "" {
		start, err = time.Parse(dateLayout, r.StartDate)
		if err != nil {
			return dto.OriginateLoanRequest{}, status.Errorf(codes.InvalidArgument, "invalid start_date: %v", err)
		}
	}
	return dto.OriginateLoanRequest{
		ClientID:        clientID,
		Principal:       principal,
		Currency:        r.Currency,
		InterestRateBps: int(r.InterestRateBps),
		TermMonths:      int(r.TermMonths),
		StartDate:       start,
	}, nil
}

func (r *RecordPaymentRequest) toDTO() (dto.RecordPaymentRequest, error) {
	loanID, err := parseID("loan_id", r.LoanID)
	if err != nil {
		return dto.RecordPaymentRequest{}, err
	}
	amount, err := parseAmount(r.Amount)
	if err != nil {
		return dto.RecordPaymentRequest{}, err
	}
	return dto.RecordPaymentRequest{
		LoanID:         loanID,
		Amount:         amount,
		Type:           r.Type,
		Reference:      r.Reference,
		IdempotencyKey: r.IdempotencyKey,
	}, nil
}

func (r *AmountRequest) parse() (uuid.UUID, decimal.Decimal, error) {
	loanID, err := parseID("loan_id", r.LoanID)
	if err != nil {
		return uuid.Nil, decimal.Zero, err
	}
	amount, err := parseAmount(r.Amount)
	if err != nil {
		return uuid.Nil, decimal.Zero, err
	}
	return loanID, amount, nil
}
