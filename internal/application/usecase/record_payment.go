package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mkopo/loanbook/internal/application/dto"
	"github.com/mkopo/loanbook/internal/domain/event"
	"github.com/mkopo/loanbook/internal/domain/model"
	"github.com/mkopo/loanbook/internal/domain/port"
	"github.com/mkopo/loanbook/internal/domain/valueobject"
	"github.com/mkopo/loanbook/pkg/events"
	"github.com/mkopo/loanbook/pkg/money"
)

// RecordPaymentUseCase books a repayment, M-Pesa repayment or draw-down
// payment: the transaction record, the schedule allocation and any wallet
// overflow are written in one unit of work.
type RecordPaymentUseCase struct {
	uow      port.UnitOfWork
	allocate *AllocatePaymentUseCase
	idem     port.IdempotencyStore
	metrics  port.EngineMetrics
	logger   *slog.Logger
	ttl      time.Duration
}

// NewRecordPaymentUseCase wires dependencies. idem may be nil to disable
// de-duplication.
func NewRecordPaymentUseCase(
	uow port.UnitOfWork,
	allocate *AllocatePaymentUseCase,
	idem port.IdempotencyStore,
	idempotencyTTL time.Duration,
	metrics port.EngineMetrics,
	logger *slog.Logger,
) *RecordPaymentUseCase {
	return &RecordPaymentUseCase{
		uow:      uow,
		allocate: allocate,
		idem:     idem,
		ttl:      idempotencyTTL,
		metrics:  orNop(metrics),
		logger:   orDefault(logger),
	}
}

// Execute records the payment and returns the transaction with its allocation.
func (uc *RecordPaymentUseCase) Execute(ctx context.Context, req dto.RecordPaymentRequest) (dto.RecordPaymentResponse, error) {
	ctx, span := startSpan(ctx, "RecordPayment", req.LoanID, req.Amount)
	span.SetAttributes(attribute.String("type", req.Type))
	resp, err := uc.execute(ctx, req)
	if err == nil {
		span.SetAttributes(
			attribute.String("transaction_id", resp.Transaction.ID.String()),
			attribute.String("residual", resp.Allocation.Residual.String()),
		)
	}
	endSpan(span, err)
	return resp, err
}

func (uc *RecordPaymentUseCase) execute(ctx context.Context, req dto.RecordPaymentRequest) (dto.RecordPaymentResponse, error) {
	txType, err := valueobject.NewTransactionType(req.Type)
	if err != nil || !txType.AllocatesToSchedule() {
		return dto.RecordPaymentResponse{}, fmt.Errorf("%w: %q", valueobject.ErrInvalidTransactionType, req.Type)
	}
	if err := valueobject.ValidateAmount(req.Amount); err != nil {
		return dto.RecordPaymentResponse{}, err
	}

	key := idempotencyKey(req, txType)
	if key != "" && uc.idem != nil {
		fresh, err := uc.idem.MarkProcessed(ctx, key, uc.ttl)
		if err != nil {
			return dto.RecordPaymentResponse{}, fmt.Errorf("claim idempotency key: %w", err)
		}
		if !fresh {
			return dto.RecordPaymentResponse{}, fmt.Errorf("%w: %s", valueobject.ErrDuplicatePayment, key)
		}
	}

	var (
		tx      model.Transaction
		out     allocationOutcome
		balance *decimal.Decimal
	)
	err = uc.uow.WithinLoan(ctx, req.LoanID, func(ctx context.Context, repos port.Repositories) error {
		now := time.Now().UTC()

		loan, err := repos.Loans.FindByID(ctx, req.LoanID)
		if err != nil {
			return fmt.Errorf("find loan: %w", err)
		}

		tx, err = model.NewPaymentTransaction(loan, txType, req.Amount, req.Reference, now)
		if err != nil {
			return err
		}
		if err := repos.Transactions.Create(ctx, tx); err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}

		out, err = uc.allocate.allocate(ctx, repos, loan, req.Amount, now)
		if err != nil {
			return err
		}
		tx = tx.WithAllocation(out.result.TotalApplied, out.result.Residual)

		var raised events.EventCollector
		raised.Record(out.events...)
		if out.result.Residual.IsPositive() {
			credited, err := uc.depositOverflow(ctx, repos, loan, tx, out.result.Residual, now)
			if err != nil {
				return err
			}
			b := credited.Balance.Amount()
			balance = &b
			raised.Record(event.NewWalletCredited(
				loan.ClientID(), loan.ID(), tx.ID, out.result.Residual, loan.Currency().Code(), b, now,
			))
		}

		if err := repos.Transactions.Update(ctx, tx); err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}

		raised.Record(event.NewPaymentRecorded(
			loan.ID(), tx.ID, tx.Type.String(), tx.Amount, tx.AllocatedAmount, tx.OverflowAmount, tx.Reference, now,
		))
		return stageEvents(ctx, repos.Outbox, raised.ClearEvents())
	})
	if err != nil {
		uc.release(ctx, key)
		return dto.RecordPaymentResponse{}, err
	}

	uc.metrics.RecordAllocation(ctx, out.result.TotalApplied, out.result.Residual)
	if out.result.Residual.IsPositive() {
		uc.metrics.RecordWalletOverflow(ctx, out.result.Residual)
	}

	uc.logger.InfoContext(ctx, "payment recorded",
		"transaction_id", tx.ID,
		"loan_id", tx.LoanID,
		"type", tx.Type.String(),
		"amount", tx.Amount,
		"overflow", tx.OverflowAmount,
	)

	return dto.RecordPaymentResponse{
		Transaction:   dto.ToTransactionResponse(tx),
		Allocation:    toAllocationResponse(out),
		WalletBalance: balance,
	}, nil
}

func (uc *RecordPaymentUseCase) depositOverflow(
	ctx context.Context,
	repos port.Repositories,
	loan model.Loan,
	tx model.Transaction,
	residual decimal.Decimal,
	now time.Time,
) (model.Wallet, error) {
	entry, err := model.NewWalletDeposit(loan.ClientID(), loan.ID(), tx.ID, money.New(residual, loan.Currency()), now)
	if err != nil {
		return model.Wallet{}, err
	}
	wallet, err := repos.Wallets.Deposit(ctx, entry)
	if err != nil {
		return model.Wallet{}, fmt.Errorf("deposit overflow to wallet: %w", err)
	}
	uc.logger.InfoContext(ctx, "overflow credited to wallet",
		"client_id", loan.ClientID(),
		"loan_id", loan.ID(),
		"amount", residual,
		"balance", wallet.Balance.Amount(),
	)
	return wallet, nil
}

func (uc *RecordPaymentUseCase) release(ctx context.Context, key string) {
	if key == "" || uc.idem == nil {
		return
	}
	// The key stays claimed if release fails; the TTL eventually frees it.
	if err := uc.idem.Release(context.WithoutCancel(ctx), key); err != nil {
		uc.logger.ErrorContext(ctx, "release idempotency key", "key", key, "error", err)
	}
}

// idempotencyKey prefers the caller's key and falls back to the M-Pesa receipt.
func idempotencyKey(req dto.RecordPaymentRequest, txType valueobject.TransactionType) string {
	if req.IdempotencyKey != "" {
		return req.IdempotencyKey
	}
	if txType.Equal(valueobject.TransactionTypeMpesaRepayment) && req.Reference != "" {
		return "mpesa:" + req.Reference
	}
	return ""
}

// IsClientError reports whether err stems from caller input rather than storage.
func IsClientError(err error) bool {
	for _, target := range []error{
		valueobject.ErrInvalidAmount,
		valueobject.ErrInvalidTransactionType,
		valueobject.ErrDuplicatePayment,
		valueobject.ErrLoanNotFound,
		valueobject.ErrCurrencyMismatch,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
