package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mkopo/loanbook/internal/domain/model"
	"github.com/mkopo/loanbook/internal/domain/port"
	"github.com/mkopo/loanbook/internal/domain/valueobject"
	pgutil "github.com/mkopo/loanbook/pkg/postgres"
)

var _ port.TransactionRepository = (*TransactionRepo)(nil)

// TransactionRepo persists payment records.
type TransactionRepo struct {
	db pgutil.Querier
}

func NewTransactionRepo(db pgutil.Querier) *TransactionRepo {
	return &TransactionRepo{db: db}
}

const transactionColumns = `id, loan_id, client_id, type, amount, allocated_amount, overflow_amount,
	currency, reference, is_reverted, revert_reason, reverted_at, created_at`

func (r *TransactionRepo) Create(ctx context.Context, tx model.Transaction) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`,
		tx.ID, tx.LoanID, tx.ClientID, tx.Type.String(), tx.Amount, tx.AllocatedAmount, tx.OverflowAmount,
		tx.Currency, tx.Reference, tx.IsReverted, tx.RevertReason, tx.RevertedAt, tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// Update writes the mutable columns: allocation outcome and revert state.
func (r *TransactionRepo) Update(ctx context.Context, tx model.Transaction) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE transactions SET
			allocated_amount = $2,
			overflow_amount  = $3,
			is_reverted      = $4,
			revert_reason    = $5,
			reverted_at      = $6
		WHERE id = $1
	`, tx.ID, tx.AllocatedAmount, tx.OverflowAmount, tx.IsReverted, tx.RevertReason, tx.RevertedAt)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", valueobject.ErrTransactionNotFound, tx.ID)
	}
	return nil
}

func (r *TransactionRepo) FindByID(ctx context.Context, id uuid.UUID) (model.Transaction, error) {
	row := r.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	tx, err := scanTransaction(row)
	if err != nil {
		if isNoRows(err) {
			return model.Transaction{}, fmt.Errorf("%w: %s", valueobject.ErrTransactionNotFound, id)
		}
		return model.Transaction{}, fmt.Errorf("query transaction: %w", err)
	}
	return tx, nil
}

func (r *TransactionRepo) ListByLoan(ctx context.Context, loanID uuid.UUID) ([]model.Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE loan_id = $1
		ORDER BY created_at, id
	`, loanID)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Transaction, error) {
		return scanTransaction(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan transactions: %w", err)
	}
	return out, nil
}

func scanTransaction(s scannable) (model.Transaction, error) {
	var (
		tx         model.Transaction
		typeStr    string
		revertedAt *time.Time
	)
	err := s.Scan(
		&tx.ID, &tx.LoanID, &tx.ClientID, &typeStr, &tx.Amount, &tx.AllocatedAmount, &tx.OverflowAmount,
		&tx.Currency, &tx.Reference, &tx.IsReverted, &tx.RevertReason, &revertedAt, &tx.CreatedAt,
	)
	if err != nil {
		return model.Transaction{}, err
	}
	tx.Type, err = valueobject.NewTransactionType(typeStr)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("transaction %s: %w", tx.ID, err)
	}
	tx.RevertedAt = revertedAt
	return tx, nil
}
