package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mkopo/loanbook/internal/domain/port"
	"github.com/mkopo/loanbook/internal/domain/valueobject"
	pgutil "github.com/mkopo/loanbook/pkg/postgres"
)

// Database is satisfied by *pgxpool.Pool.
type Database interface {
	DBTX
	pgutil.TxStarter
}

var _ port.UnitOfWork = (*UnitOfWork)(nil)

// UnitOfWork runs callbacks inside a single database transaction. WithinLoan
// additionally takes a row lock on the loan so that allocations against one
// loan are serialized across processes.
type UnitOfWork struct {
	db Database
}

func NewUnitOfWork(db Database) *UnitOfWork {
	return &UnitOfWork{db: db}
}

// NewRepositories binds every repository to db, which may be a pool or a tx.
func NewRepositories(db DBTX) port.Repositories {
	return port.Repositories{
		Loans:        NewLoanRepo(db),
		Schedules:    NewScheduleRepo(db),
		Transactions: NewTransactionRepo(db),
		Wallets:      NewWalletRepo(db),
		Outbox:       NewOutboxRepo(db),
	}
}

func (u *UnitOfWork) WithinLoan(ctx context.Context, loanID uuid.UUID, fn func(context.Context, port.Repositories) error) error {
	return pgutil.WithTransaction(ctx, u.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var locked uuid.UUID
		err := tx.QueryRow(ctx, `SELECT id FROM loans WHERE id = $1 FOR UPDATE`, loanID).Scan(&locked)
		switch {
		case isNoRows(err):
			return fmt.Errorf("%w: %s", valueobject.ErrLoanNotFound, loanID)
		case lockNotAvailable(err):
			return fmt.Errorf("%w: loan %s is locked", valueobject.ErrConcurrentUpdate, loanID)
		case err != nil:
			return fmt.Errorf("lock loan: %w", err)
		}
		return fn(ctx, NewRepositories(tx))
	})
}

func (u *UnitOfWork) Within(ctx context.Context, fn func(context.Context, port.Repositories) error) error {
	return pgutil.WithTransaction(ctx, u.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(ctx, NewRepositories(tx))
	})
}
