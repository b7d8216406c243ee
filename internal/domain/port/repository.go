package port

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkopo/loanbook/internal/domain/model"
	"github.com/mkopo/loanbook/pkg/events"
)

// ---------------------------------------------------------------------------
// Repository ports (driven/secondary adapters)
// ---------------------------------------------------------------------------

// LoanRepository persists and retrieves loans.
type LoanRepository interface {
	Create(ctx context.Context, loan model.Loan) error
	// UpdateStatus persists status and version; the previous version must match.
	UpdateStatus(ctx context.Context, loan model.Loan) error
	FindByID(ctx context.Context, id uuid.UUID) (model.Loan, error)
}

// ScheduleRepository persists a loan's installment rows.
type ScheduleRepository interface {
	SaveAll(ctx context.Context, rows []model.Installment) error
	ListByLoan(ctx context.Context, loanID uuid.UUID) ([]model.Installment, error)
	// UpdateAmounts writes AmountPaid (and the derived status) for touched rows only.
	UpdateAmounts(ctx context.Context, rows []model.Installment) error
}

// TransactionRepository persists payment records.
type TransactionRepository interface {
	Create(ctx context.Context, tx model.Transaction) error
	Update(ctx context.Context, tx model.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (model.Transaction, error)
	ListByLoan(ctx context.Context, loanID uuid.UUID) ([]model.Transaction, error)
}

// WalletRepository stores client wallets and their ledger.
type WalletRepository interface {
	// Get returns valueobject.ErrWalletNotFound when the client has never been credited.
	Get(ctx context.Context, clientID uuid.UUID) (model.Wallet, error)
	// Deposit appends the entry and increments the balance, creating the
	// wallet on first use. It returns the wallet after the credit.
	Deposit(ctx context.Context, entry model.WalletEntry) (model.Wallet, error)
	ListEntries(ctx context.Context, clientID uuid.UUID) ([]model.WalletEntry, error)
}

// OutboxRepository is the shared outbox port.
type OutboxRepository = events.OutboxRepository

// Repositories groups the adapters a unit of work hands to its callback. All
// of them share the same underlying transaction.
type Repositories struct {
	Loans        LoanRepository
	Schedules    ScheduleRepository
	Transactions TransactionRepository
	Wallets      WalletRepository
	Outbox       OutboxRepository
}

// ---------------------------------------------------------------------------
// Unit of work
// ---------------------------------------------------------------------------

// UnitOfWork runs callbacks atomically. Any error returned by fn discards every
// write made through the provided repositories.
type UnitOfWork interface {
	// WithinLoan holds an exclusive lock on loanID for the duration of fn so
	// that concurrent allocations against one loan are serialized. It returns
	// valueobject.ErrLoanNotFound when the loan does not exist.
	WithinLoan(ctx context.Context, loanID uuid.UUID, fn func(ctx context.Context, repos Repositories) error) error
	// Within runs fn in a transaction without taking a loan lock.
	Within(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// ---------------------------------------------------------------------------
// Idempotency
// ---------------------------------------------------------------------------

// IdempotencyStore de-duplicates externally keyed payments such as M-Pesa receipts.
type IdempotencyStore interface {
	// MarkProcessed claims key. It returns false when the key was already claimed.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release frees a claimed key so a failed attempt can be retried.
	Release(ctx context.Context, key string) error
}

// ---------------------------------------------------------------------------
// Metrics
// ---------------------------------------------------------------------------

// EngineMetrics records allocation outcomes.
type EngineMetrics interface {
	RecordAllocation(ctx context.Context, applied, residual decimal.Decimal)
	RecordReversal(ctx context.Context, reversed, unreversed decimal.Decimal)
	RecordWalletOverflow(ctx context.Context, amount decimal.Decimal)
}
