package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mkopo/loanbook/internal/application/dto"
	"github.com/mkopo/loanbook/internal/domain/event"
	"github.com/mkopo/loanbook/internal/domain/model"
	"github.com/mkopo/loanbook/internal/domain/port"
)

// RevertPaymentUseCase undoes a recorded payment: the transaction is marked
// reverted and its amount is taken back off the schedule in one unit of work.
type RevertPaymentUseCase struct {
	uow          port.UnitOfWork
	transactions port.TransactionRepository
	reverse      *ReversePaymentUseCase
	logger       *slog.Logger
}

// NewRevertPaymentUseCase wires dependencies. transactions is a
// non-transactional reader used to find the owning loan before locking it.
func NewRevertPaymentUseCase(
	uow port.UnitOfWork,
	transactions port.TransactionRepository,
	reverse *ReversePaymentUseCase,
	logger *slog.Logger,
) *RevertPaymentUseCase {
	return &RevertPaymentUseCase{
		uow:          uow,
		transactions: transactions,
		reverse:      reverse,
		logger:       orDefault(logger),
	}
}

// Execute reverts req.TransactionID.
func (uc *RevertPaymentUseCase) Execute(ctx context.Context, req dto.RevertPaymentRequest) (dto.RevertPaymentResponse, error) {
	found, err := uc.transactions.FindByID(ctx, req.TransactionID)
	if err != nil {
		return dto.RevertPaymentResponse{}, fmt.Errorf("find transaction: %w", err)
	}

	var (
		tx  model.Transaction
		out reversalOutcome
	)
	err = uc.uow.WithinLoan(ctx, found.LoanID, func(ctx context.Context, repos port.Repositories) error {
		now := time.Now().UTC()

		// Re-read under the lock so two concurrent reverts cannot both pass.
		current, err := repos.Transactions.FindByID(ctx, req.TransactionID)
		if err != nil {
			return fmt.Errorf("find transaction: %w", err)
		}
		tx, err = current.Revert(req.Reason, now)
		if err != nil {
			return err
		}
		if err := repos.Transactions.Update(ctx, tx); err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}

		loan, err := repos.Loans.FindByID(ctx, tx.LoanID)
		if err != nil {
			return fmt.Errorf("find loan: %w", err)
		}
		out, err = uc.reverse.reverse(ctx, repos, loan, tx.Amount, now)
		if err != nil {
			return err
		}

		raised := make([]event.DomainEvent, 0, len(out.events)+1)
		raised = append(raised, out.events...)
		raised = append(raised, event.NewPaymentReverted(loan.ID(), tx.ID, tx.Amount, tx.RevertReason, now))
		return stageEvents(ctx, repos.Outbox, raised)
	})
	if err != nil {
		return dto.RevertPaymentResponse{}, err
	}

	uc.reverse.metrics.RecordReversal(ctx, out.result.TotalReversed, out.result.Unreversed)
	uc.logger.InfoContext(ctx, "payment reverted",
		"transaction_id", tx.ID,
		"loan_id", tx.LoanID,
		"amount", tx.Amount,
		"reason", tx.RevertReason,
	)

	return dto.RevertPaymentResponse{
		Transaction: dto.ToTransactionResponse(tx),
		Reversal:    toReversalResponse(out),
	}, nil
}
