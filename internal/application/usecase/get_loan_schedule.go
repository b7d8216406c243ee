package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mkopo/loanbook/internal/application/dto"
	"github.com/mkopo/loanbook/internal/domain/port"
)

// GetLoanScheduleUseCase returns a loan, its schedule and its payment history.
type GetLoanScheduleUseCase struct {
	loans        port.LoanRepository
	schedules    port.ScheduleRepository
	transactions port.TransactionRepository
}

// NewGetLoanScheduleUseCase wires dependencies.
func NewGetLoanScheduleUseCase(
	loans port.LoanRepository,
	schedules port.ScheduleRepository,
	transactions port.TransactionRepository,
) *GetLoanScheduleUseCase {
	return &GetLoanScheduleUseCase{loans: loans, schedules: schedules, transactions: transactions}
}

func (uc *GetLoanScheduleUseCase) Execute(ctx context.Context, loanID uuid.UUID) (dto.LoanResponse, error) {
	loan, err := uc.loans.FindByID(ctx, loanID)
	if err != nil {
		return dto.LoanResponse{}, fmt.Errorf("find loan: %w", err)
	}
	rows, err := uc.schedules.ListByLoan(ctx, loanID)
	if err != nil {
		return dto.LoanResponse{}, fmt.Errorf("list installments: %w", err)
	}
	txs, err := uc.transactions.ListByLoan(ctx, loanID)
	if err != nil {
		return dto.LoanResponse{}, fmt.Errorf("list transactions: %w", err)
	}

	resp := dto.ToLoanResponse(loan, rows)
	for _, tx := range txs {
		resp.Transactions = append(resp.Transactions, dto.ToTransactionResponse(tx))
	}
	return resp, nil
}
