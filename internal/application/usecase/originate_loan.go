package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mkopo/loanbook/internal/application/dto"
	"github.com/mkopo/loanbook/internal/domain/model"
	"github.com/mkopo/loanbook/internal/domain/port"
	"github.com/mkopo/loanbook/internal/domain/valueobject"
	"github.com/mkopo/loanbook/pkg/money"
)

// OriginateLoanUseCase books a new loan together with its repayment schedule.
type OriginateLoanUseCase struct {
	uow    port.UnitOfWork
	logger *slog.Logger
}

// NewOriginateLoanUseCase wires dependencies.
func NewOriginateLoanUseCase(uow port.UnitOfWork, logger *slog.Logger) *OriginateLoanUseCase {
	return &OriginateLoanUseCase{uow: uow, logger: orDefault(logger)}
}

// Execute creates the loan. StartDate defaults to today; the first
// installment falls due one month after it.
func (uc *OriginateLoanUseCase) Execute(ctx context.Context, req dto.OriginateLoanRequest) (dto.LoanResponse, error) {
	currency, err := money.NewCurrency(req.Currency)
	if err != nil {
		return dto.LoanResponse{}, fmt.Errorf("%w: %w", valueobject.ErrInvalidLoanTerms, err)
	}

	start := req.StartDate
	if start.IsZero() {
		start = time.Now().UTC()
	}

	loan, rows, err := model.NewLoan(req.ClientID, req.Principal, currency, req.InterestRateBps, req.TermMonths, start)
	if err != nil {
		return dto.LoanResponse{}, err
	}

	err = uc.uow.Within(ctx, func(ctx context.Context, repos port.Repositories) error {
		if err := repos.Loans.Create(ctx, loan); err != nil {
			return fmt.Errorf("create loan: %w", err)
		}
		if err := repos.Schedules.SaveAll(ctx, rows); err != nil {
			return fmt.Errorf("save schedule: %w", err)
		}
		return stageEvents(ctx, repos.Outbox, loan.DomainEvents())
	})
	if err != nil {
		return dto.LoanResponse{}, err
	}

	uc.logger.InfoContext(ctx, "loan originated",
		"loan_id", loan.ID(),
		"client_id", loan.ClientID(),
		"principal", loan.Principal(),
		"installments", len(rows),
	)
	return dto.ToLoanResponse(loan.ClearEvents(), rows), nil
}
