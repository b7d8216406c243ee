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

// AllocatePaymentUseCase applies an amount to a loan's schedule, oldest
// installment first, and reports what could not be placed.
type AllocatePaymentUseCase struct {
	uow     port.UnitOfWork
	engine  *service.AllocationEngine
	metrics port.EngineMetrics
	logger  *slog.Logger
}

// NewAllocatePaymentUseCase wires dependencies. metrics and logger may be nil.
func NewAllocatePaymentUseCase(
	uow port.UnitOfWork,
	engine *service.AllocationEngine,
	metrics port.EngineMetrics,
	logger *slog.Logger,
) *AllocatePaymentUseCase {
	return &AllocatePaymentUseCase{
		uow:     uow,
		engine:  engine,
		metrics: orNop(metrics),
		logger:  orDefault(logger),
	}
}

type allocationOutcome struct {
	loan   model.Loan
	result service.AllocationResult
	events []event.DomainEvent
}

// Execute allocates req.Amount against req.LoanID under the loan lock. The
// returned Residual is the part that exceeded the outstanding balance.
func (uc *AllocatePaymentUseCase) Execute(ctx context.Context, req dto.AllocatePaymentRequest) (dto.AllocationResponse, error) {
	ctx, span := startSpan(ctx, "AllocatePayment", req.LoanID, req.Amount)
	resp, err := uc.execute(ctx, req)
	if err == nil {
		span.SetAttributes(attribute.String("residual", resp.Residual.String()))
	}
	endSpan(span, err)
	return resp, err
}

func (uc *AllocatePaymentUseCase) execute(ctx context.Context, req dto.AllocatePaymentRequest) (dto.AllocationResponse, error) {
	if err := valueobject.ValidateAmount(req.Amount); err != nil {
		return dto.AllocationResponse{}, err
	}

	var out allocationOutcome
	err := uc.uow.WithinLoan(ctx, req.LoanID, func(ctx context.Context, repos port.Repositories) error {
		loan, err := repos.Loans.FindByID(ctx, req.LoanID)
		if err != nil {
			return fmt.Errorf("find loan: %w", err)
		}
		out, err = uc.allocate(ctx, repos, loan, req.Amount, time.Now().UTC())
		if err != nil {
			return err
		}
		return stageEvents(ctx, repos.Outbox, out.events)
	})
	if err != nil {
		return dto.AllocationResponse{}, err
	}

	uc.metrics.RecordAllocation(ctx, out.result.TotalApplied, out.result.Residual)
	return toAllocationResponse(out), nil
}

// allocate runs inside an existing unit of work.
func (uc *AllocatePaymentUseCase) allocate(
	ctx context.Context,
	repos port.Repositories,
	loan model.Loan,
	amount decimal.Decimal,
	now time.Time,
) (allocationOutcome, error) {
	rows, err := repos.Schedules.ListByLoan(ctx, loan.ID())
	if err != nil {
		return allocationOutcome{}, fmt.Errorf("list installments: %w", err)
	}

	result, err := uc.engine.Allocate(rows, amount)
	if err != nil {
		return allocationOutcome{}, fmt.Errorf("allocate payment: %w", err)
	}
	logLines(ctx, uc.logger, "installment credited", result.Lines)

	loan, statusEvents, err := persistSchedule(ctx, repos, loan, rows, result.Updated, now)
	if err != nil {
		return allocationOutcome{}, err
	}

	raised := []event.DomainEvent{event.NewPaymentAllocated(
		loan.ID(), amount, result.TotalApplied, result.Residual, service.Movements(result.Lines), now,
	)}
	raised = append(raised, statusEvents...)

	uc.logger.InfoContext(ctx, "payment allocated",
		"loan_id", loan.ID(),
		"amount", amount,
		"applied", result.TotalApplied,
		"residual", result.Residual,
		"rows_touched", len(result.Updated),
		"loan_status", loan.Status().String(),
	)

	return allocationOutcome{loan: loan, result: result, events: raised}, nil
}

func toAllocationResponse(out allocationOutcome) dto.AllocationResponse {
	return dto.AllocationResponse{
		LoanID:     out.loan.ID(),
		Amount:     out.result.Amount,
		Applied:    out.result.TotalApplied,
		Residual:   out.result.Residual,
		LoanStatus: out.loan.Status().String(),
		Lines:      dto.ToAllocationLines(out.result.Lines),
	}
}
