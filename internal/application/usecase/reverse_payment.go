package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mkopo/loanbook/internal/application/dto"
	"github.com/mkopo/loanbook/internal/domain/event"
	"github.com/mkopo/loanbook/internal/domain/model"
	"github.com/mkopo/loanbook/internal/domain/port"
	"github.com/mkopo/loanbook/internal/domain/service"
	"github.com/mkopo/loanbook/internal/domain/valueobject"
)

// ReversePaymentUseCase takes money back off a loan's schedule, latest
// installment first.
type ReversePaymentUseCase struct {
	uow     port.UnitOfWork
	engine  *service.AllocationEngine
	metrics port.EngineMetrics
	logger  *slog.Logger
}

// NewReversePaymentUseCase wires dependencies. metrics and logger may be nil.
func NewReversePaymentUseCase(
	uow port.UnitOfWork,
	engine *service.AllocationEngine,
	metrics port.EngineMetrics,
	logger *slog.Logger,
) *ReversePaymentUseCase {
	return &ReversePaymentUseCase{
		uow:     uow,
		engine:  engine,
		metrics: orNop(metrics),
		logger:  orDefault(logger),
	}
}

type reversalOutcome struct {
	loan   model.Loan
	result service.ReversalResult
	events []event.DomainEvent
}

// Execute reverses req.Amount on req.LoanID under the loan lock. Any part of
// the amount with no paid money behind it is reported as Unreversed.
func (uc *ReversePaymentUseCase) Execute(ctx context.Context, req dto.ReversePaymentRequest) (dto.ReversalResponse, error) {
	ctx, span := startSpan(ctx, "ReversePayment", req.LoanID, req.Amount)
	resp, err := uc.execute(ctx, req)
	if err == nil {
		span.SetAttributes(attribute.String("unreversed", resp.Unreversed.String()))
	}
	endSpan(span, err)
	return resp, err
}

func (uc *ReversePaymentUseCase) execute(ctx context.Context, req dto.ReversePaymentRequest) (dto.ReversalResponse, error) {
	if err := valueobject.ValidateAmount(req.Amount); err != nil {
		return dto.ReversalResponse{}, err
	}

	var out reversalOutcome
	err := uc.uow.WithinLoan(ctx, req.LoanID, func(ctx context.Context, repos port.Repositories) error {
		loan, err := repos.Loans.FindByID(ctx, req.LoanID)
		if err != nil {
			return fmt.Errorf("find loan: %w", err)
		}
		out, err = uc.reverse(ctx, repos, loan, req.Amount, time.Now().UTC())
		if err != nil {
			return err
		}
		return stageEvents(ctx, repos.Outbox, out.events)
	})
	if err != nil {
		return dto.ReversalResponse{}, err
	}

	uc.metrics.RecordReversal(ctx, out.result.TotalReversed, out.result.Unreversed)
	return toReversalResponse(out), nil
}

func (uc *ReversePaymentUseCase) reverse(
	ctx context.Context,
	repos port.Repositories,
	loan model.Loan,
	amount decimal.Decimal,
	now time.Time,
) (reversalOutcome, error) {
	rows, err := repos.Schedules.ListByLoan(ctx, loan.ID())
	if err != nil {
		return reversalOutcome{}, fmt.Errorf("list installments: %w", err)
	}

	result, err := uc.engine.Reverse(rows, amount)
	if err != nil {
		return reversalOutcome{}, fmt.Errorf("reverse payment: %w", err)
	}
	logLines(ctx, uc.logger, "installment debited", result.Lines)

	if result.Unreversed.IsPositive() {
		uc.logger.WarnContext(ctx, "reversal exceeded paid amounts; remainder dropped",
			"loan_id", loan.ID(),
			"amount", amount,
			"unreversed", result.Unreversed,
		)
	}

	loan, statusEvents, err := persistSchedule(ctx, repos, loan, rows, result.Updated, now)
	if err != nil {
		return reversalOutcome{}, err
	}

	raised := []event.DomainEvent{event.NewPaymentReversed(
		loan.ID(), amount, result.TotalReversed, result.Unreversed, service.Movements(result.Lines), now,
	)}
	raised = append(raised, statusEvents...)

	uc.logger.InfoContext(ctx, "payment reversed",
		"loan_id", loan.ID(),
		"amount", amount,
		"reversed", result.TotalReversed,
		"rows_touched", len(result.Updated),
		"loan_status", loan.Status().String(),
	)

	return reversalOutcome{loan: loan, result: result, events: raised}, nil
}

func toReversalResponse(out reversalOutcome) dto.ReversalResponse {
	return dto.ReversalResponse{
		LoanID:     out.loan.ID(),
		Amount:     out.result.Amount,
		Reversed:   out.result.TotalReversed,
		Unreversed: out.result.Unreversed,
		LoanStatus: out.loan.Status().String(),
		Lines:      dto.ToAllocationLines(out.result.Lines),
	}
}
