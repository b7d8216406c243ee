package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mkopo/loanbook/internal/domain/valueobject"
	"github.com/mkopo/loanbook/pkg/money"
)

// WalletEntryType classifies a wallet ledger line.
type WalletEntryType string

const WalletEntryDeposit WalletEntryType = "deposit"

// Wallet is the per-client store of value that absorbs payment overflow.
type Wallet struct {
	UpdatedAt time.Time
	Balance   money.Money
	ClientID  uuid.UUID
}

// NewWallet returns an empty wallet in the given currency.
func NewWallet(clientID uuid.UUID, currency money.Currency, now time.Time) Wallet {
	return Wallet{ClientID: clientID, Balance: money.Zero(currency), UpdatedAt: now}
}

// WalletEntry is one append-only ledger line.
type WalletEntry struct {
	CreatedAt     time.Time
	Type          WalletEntryType
	Amount        money.Money
	ID            uuid.UUID
	ClientID      uuid.UUID
	LoanID        uuid.UUID
	TransactionID uuid.UUID
}

// NewWalletDeposit builds a deposit entry referencing the loan and transaction
// that produced the overflow.
func NewWalletDeposit(clientID, loanID, transactionID uuid.UUID, amount money.Money, now time.Time) (WalletEntry, error) {
	if !amount.IsPositive() {
		return WalletEntry{}, fmt.Errorf("%w: wallet deposit %s", valueobject.ErrInvalidAmount, amount)
	}
	return WalletEntry{
		ID:            uuid.New(),
		ClientID:      clientID,
		LoanID:        loanID,
		TransactionID: transactionID,
		Type:          WalletEntryDeposit,
		Amount:        amount,
		CreatedAt:     now,
	}, nil
}

// Apply credits the entry to the wallet.
func (w Wallet) Apply(entry WalletEntry) (Wallet, error) {
	if entry.ClientID != w.ClientID {
		return w, fmt.Errorf("wallet %s cannot take entry for client %s", w.ClientID, entry.ClientID)
	}
	balance, err := w.Balance.Add(entry.Amount)
	if err != nil {
		return w, fmt.Errorf("%w: %w", valueobject.ErrCurrencyMismatch, err)
	}
	next := w
	next.Balance = balance
	next.UpdatedAt = entry.CreatedAt
	return next, nil
}
