package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mkopo/loanbook/internal/domain/model"
	"github.com/mkopo/loanbook/internal/domain/port"
	"github.com/mkopo/loanbook/internal/domain/valueobject"
	"github.com/mkopo/loanbook/pkg/money"
	pgutil "github.com/mkopo/loanbook/pkg/postgres"
)

var _ port.WalletRepository = (*WalletRepo)(nil)

// WalletRepo stores client wallets and their append-only ledger.
type WalletRepo struct {
	db pgutil.Querier
}

func NewWalletRepo(db pgutil.Querier) *WalletRepo {
	return &WalletRepo{db: db}
}

func (r *WalletRepo) Get(ctx context.Context, clientID uuid.UUID) (model.Wallet, error) {
	var (
		balance   decimal.Decimal
		code      string
		updatedAt time.Time
	)
	err := r.db.QueryRow(ctx, `
		SELECT balance, currency, updated_at FROM wallets WHERE client_id = $1
	`, clientID).Scan(&balance, &code, &updatedAt)
	if err != nil {
		if isNoRows(err) {
			return model.Wallet{}, fmt.Errorf("%w: client %s", valueobject.ErrWalletNotFound, clientID)
		}
		return model.Wallet{}, fmt.Errorf("query wallet: %w", err)
	}
	return toWallet(clientID, balance, code, updatedAt)
}

// Deposit upserts the wallet, increments its balance in place and appends the
// ledger line. The upsert refuses a deposit in a different currency.
func (r *WalletRepo) Deposit(ctx context.Context, entry model.WalletEntry) (model.Wallet, error) {
	var (
		balance   decimal.Decimal
		code      string
		updatedAt time.Time
	)
	err := r.db.QueryRow(ctx, `
		INSERT INTO wallets (client_id, currency, balance, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (client_id) DO UPDATE SET
			balance    = wallets.balance + EXCLUDED.balance,
			updated_at = EXCLUDED.updated_at
		WHERE wallets.currency = EXCLUDED.currency
		RETURNING balance, currency, updated_at
	`, entry.ClientID, entry.Amount.Currency().Code(), entry.Amount.Amount(), entry.CreatedAt).
		Scan(&balance, &code, &updatedAt)
	if err != nil {
		if isNoRows(err) {
			return model.Wallet{}, fmt.Errorf("%w: wallet for client %s", valueobject.ErrCurrencyMismatch, entry.ClientID)
		}
		return model.Wallet{}, fmt.Errorf("credit wallet: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO wallet_entries (id, client_id, loan_id, transaction_id, type, amount, currency, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		entry.ID, entry.ClientID, entry.LoanID, entry.TransactionID, string(entry.Type),
		entry.Amount.Amount(), entry.Amount.Currency().Code(), entry.CreatedAt,
	)
	if err != nil {
		return model.Wallet{}, fmt.Errorf("insert wallet entry: %w", err)
	}

	return toWallet(entry.ClientID, balance, code, updatedAt)
}

func (r *WalletRepo) ListEntries(ctx context.Context, clientID uuid.UUID) ([]model.WalletEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, client_id, loan_id, transaction_id, type, amount, currency, created_at
		FROM wallet_entries
		WHERE client_id = $1
		ORDER BY created_at, id
	`, clientID)
	if err != nil {
		return nil, fmt.Errorf("query wallet entries: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.WalletEntry, error) {
		var (
			e       model.WalletEntry
			typeStr string
			amount  decimal.Decimal
			code    string
		)
		if err := row.Scan(&e.ID, &e.ClientID, &e.LoanID, &e.TransactionID, &typeStr, &amount, &code, &e.CreatedAt); err != nil {
			return e, err
		}
		currency, err := money.NewCurrency(code)
		if err != nil {
			return e, err
		}
		e.Type = model.WalletEntryType(typeStr)
		e.Amount = money.New(amount, currency)
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan wallet entries: %w", err)
	}
	return out, nil
}

func toWallet(clientID uuid.UUID, balance decimal.Decimal, code string, updatedAt time.Time) (model.Wallet, error) {
	currency, err := money.NewCurrency(code)
	if err != nil {
		return model.Wallet{}, fmt.Errorf("wallet %s: %w", clientID, err)
	}
	return model.Wallet{ClientID: clientID, Balance: money.New(balance, currency), UpdatedAt: updatedAt}, nil
}
