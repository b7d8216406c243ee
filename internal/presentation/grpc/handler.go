package grpc

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mkopo/loanbook/internal/application/dto"
	"github.com/mkopo/loanbook/internal/application/usecase"
	"github.com/mkopo/loanbook/internal/domain/valueobject"
)

// Compile-time assertion that LoanbookHandler implements LoanbookServiceServer.
var _ LoanbookServiceServer = (*LoanbookHandler)(nil)

// UseCases groups the application services exposed over gRPC.
type UseCases struct {
	Originate   *usecase.OriginateLoanUseCase
	GetSchedule *usecase.GetLoanScheduleUseCase
	Record      *usecase.RecordPaymentUseCase
	Revert      *usecase.RevertPaymentUseCase
	Allocate    *usecase.AllocatePaymentUseCase
	Reverse     *usecase.ReversePaymentUseCase
	GetWallet   *usecase.GetWalletUseCase
}

// LoanbookHandler is the gRPC LoanbookService server.
type LoanbookHandler struct {
	UnimplementedLoanbookServiceServer
	uc     UseCases
	logger *slog.Logger
}

func NewLoanbookHandler(uc UseCases, logger *slog.Logger) *LoanbookHandler {
	return &LoanbookHandler{uc: uc, logger: logger}
}

func (h *LoanbookHandler) OriginateLoan(ctx context.Context, req *OriginateLoanRequest) (*dto.LoanResponse, error) {
	in, err := req.toDTO()
	if err != nil {
		return nil, err
	}
	resp, err := h.uc.Originate.Execute(ctx, in)
	if err != nil {
		return nil, h.toStatus(ctx, "originate loan", err)
	}
	return &resp, nil
}

func (h *LoanbookHandler) GetLoanSchedule(ctx context.Context, req *GetLoanScheduleRequest) (*dto.LoanResponse, error) {
	loanID, err := parseID("loan_id", req.LoanID)
	if err != nil {
		return nil, err
	}
	resp, err := h.uc.GetSchedule.Execute(ctx, loanID)
	if err != nil {
		return nil, h.toStatus(ctx, "get loan schedule", err)
	}
	return &resp, nil
}

func (h *LoanbookHandler) RecordPayment(ctx context.Context, req *RecordPaymentRequest) (*dto.RecordPaymentResponse, error) {
	in, err := req.toDTO()
	if err != nil {
		return nil, err
	}
	resp, err := h.uc.Record.Execute(ctx, in)
	if err != nil {
		return nil, h.toStatus(ctx, "record payment", err)
	}
	return &resp, nil
}

func (h *LoanbookHandler) RevertPayment(ctx context.Context, req *RevertPaymentRequest) (*dto.RevertPaymentResponse, error) {
	txID, err := parseID("transaction_id", req.TransactionID)
	if err != nil {
		return nil, err
	}
	resp, err := h.uc.Revert.Execute(ctx, dto.RevertPaymentRequest{TransactionID: txID, Reason: req.Reason})
	if err != nil {
		return nil, h.toStatus(ctx, "revert payment", err)
	}
	return &resp, nil
}

// AllocatePayment applies money to the schedule without a transaction record.
func (h *LoanbookHandler) AllocatePayment(ctx context.Context, req *AmountRequest) (*dto.AllocationResponse, error) {
	loanID, amount, err := req.parse()
	if err != nil {
		return nil, err
	}
	resp, err := h.uc.Allocate.Execute(ctx, dto.AllocatePaymentRequest{LoanID: loanID, Amount: amount})
	if err != nil {
		return nil, h.toStatus(ctx, "allocate payment", err)
	}
	return &resp, nil
}

// ReversePayment takes money back off the schedule, newest installment first.
func (h *LoanbookHandler) ReversePayment(ctx context.Context, req *AmountRequest) (*dto.ReversalResponse, error) {
	loanID, amount, err := req.parse()
	if err != nil {
		return nil, err
	}
	resp, err := h.uc.Reverse.Execute(ctx, dto.ReversePaymentRequest{LoanID: loanID, Amount: amount})
	if err != nil {
		return nil, h.toStatus(ctx, "reverse payment", err)
	}
	return &resp, nil
}

func (h *LoanbookHandler) GetWallet(ctx context.Context, req *GetWalletRequest) (*dto.WalletResponse, error) {
	clientID, err := parseID("client_id", req.ClientID)
	if err != nil {
		return nil, err
	}
	resp, err := h.uc.GetWallet.Execute(ctx, clientID)
	if err != nil {
		return nil, h.toStatus(ctx, "get wallet", err)
	}
	return &resp, nil
}

var errorCodes = []struct {
	target error
	code   codes.Code
}{
	{valueobject.ErrLoanNotFound, codes.NotFound},
	{valueobject.ErrTransactionNotFound, codes.NotFound},
	{valueobject.ErrWalletNotFound, codes.NotFound},
	{valueobject.ErrInvalidAmount, codes.InvalidArgument},
	{valueobject.ErrInvalidTransactionType, codes.InvalidArgument},
	{valueobject.ErrInvalidLoanTerms, codes.InvalidArgument},
	{valueobject.ErrCurrencyMismatch, codes.InvalidArgument},
	{valueobject.ErrAlreadyReverted, codes.FailedPrecondition},
	{valueobject.ErrNotReversible, codes.FailedPrecondition},
	{valueobject.ErrOverflowNotReversible, codes.FailedPrecondition},
	{valueobject.ErrDuplicatePayment, codes.AlreadyExists},
	{valueobject.ErrConcurrentUpdate, codes.Aborted},
}

// toStatus maps domain errors onto gRPC codes. Anything unrecognised is a
// storage or programming failure: it is logged and hidden behind Internal.
func (h *LoanbookHandler) toStatus(ctx context.Context, op string, err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return status.Error(codes.Canceled, err.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	for _, m := range errorCodes {
		if errors.Is(err, m.target) {
			return status.Error(m.code, err.Error())
		}
	}
	h.logger.ErrorContext(ctx, op+" failed", "error", err)
	return status.Error(codes.Internal, "internal error")
}
