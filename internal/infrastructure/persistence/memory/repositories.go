package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/mkopo/loanbook/internal/domain/model"
	"github.com/mkopo/loanbook/internal/domain/valueobject"
	"github.com/mkopo/loanbook/pkg/events"
)

// Undo closures run with s.mu already held.

// ---------------------------------------------------------------------------
// Loans
// ---------------------------------------------------------------------------

type loanRepo struct {
	s *Store
	j *journal
}

func (r *loanRepo) Create(_ context.Context, loan model.Loan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.loans[loan.ID()]; ok {
		return fmt.Errorf("loan %s already exists", loan.ID())
	}
	r.s.loans[loan.ID()] = loan.ClearEvents()
	r.j.record(func() { delete(r.s.loans, loan.ID()) })
	return nil
}

func (r *loanRepo) UpdateStatus(_ context.Context, loan model.Loan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	prev, ok := r.s.loans[loan.ID()]
	if !ok {
		return valueobject.ErrLoanNotFound
	}
	if prev.Version() != loan.Version()-1 {
		return fmt.Errorf("%w: loan %s at version %d, update expects %d",
			valueobject.ErrConcurrentUpdate, loan.ID(), prev.Version(), loan.Version()-1)
	}
	r.s.loans[loan.ID()] = loan.ClearEvents()
	r.j.record(func() { r.s.loans[loan.ID()] = prev })
	return nil
}

func (r *loanRepo) FindByID(_ context.Context, id uuid.UUID) (model.Loan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	loan, ok := r.s.loans[id]
	if !ok {
		return model.Loan{}, valueobject.ErrLoanNotFound
	}
	return loan, nil
}

// ---------------------------------------------------------------------------
// Schedules
// ---------------------------------------------------------------------------

type scheduleRepo struct {
	s *Store
	j *journal
}

func (r *scheduleRepo) SaveAll(_ context.Context, rows []model.Installment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	touched := make(map[uuid.UUID][]model.Installment)
	for _, row := range rows {
		if _, ok := touched[row.LoanID]; !ok {
			touched[row.LoanID] = slices.Clone(r.s.installments[row.LoanID])
		}
		r.s.installments[row.LoanID] = append(r.s.installments[row.LoanID], row)
	}
	for loanID, prev := range touched {
		slices.SortFunc(r.s.installments[loanID], func(a, b model.Installment) int { return a.Sequence - b.Sequence })
		r.j.record(func() { r.s.installments[loanID] = prev })
	}
	return nil
}

func (r *scheduleRepo) ListByLoan(_ context.Context, loanID uuid.UUID) ([]model.Installment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return slices.Clone(r.s.installments[loanID]), nil
}

func (r *scheduleRepo) UpdateAmounts(_ context.Context, rows []model.Installment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now().UTC()
	for _, row := range rows {
		stored := r.s.installments[row.LoanID]
		i := slices.IndexFunc(stored, func(x model.Installment) bool { return x.ID == row.ID })
		if i < 0 {
			return fmt.Errorf("installment %s not found on loan %s", row.ID, row.LoanID)
		}
		prev := stored[i]
		stored[i].AmountPaid = row.AmountPaid
		stored[i].UpdatedAt = now
		loanID, idx := row.LoanID, i
		r.j.record(func() { r.s.installments[loanID][idx] = prev })
	}
	return nil
}

// ---------------------------------------------------------------------------
// Transactions
// ---------------------------------------------------------------------------

type transactionRepo struct {
	s *Store
	j *journal
}

func (r *transactionRepo) Create(_ context.Context, tx model.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.transactions[tx.ID]; ok {
		return fmt.Errorf("transaction %s already exists", tx.ID)
	}
	r.s.transactions[tx.ID] = tx
	r.j.record(func() { delete(r.s.transactions, tx.ID) })
	return nil
}

func (r *transactionRepo) Update(_ context.Context, tx model.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	prev, ok := r.s.transactions[tx.ID]
	if !ok {
		return valueobject.ErrTransactionNotFound
	}
	r.s.transactions[tx.ID] = tx
	r.j.record(func() { r.s.transactions[tx.ID] = prev })
	return nil
}

func (r *transactionRepo) FindByID(_ context.Context, id uuid.UUID) (model.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	tx, ok := r.s.transactions[id]
	if !ok {
		return model.Transaction{}, valueobject.ErrTransactionNotFound
	}
	return tx, nil
}

func (r *transactionRepo) ListByLoan(_ context.Context, loanID uuid.UUID) ([]model.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []model.Transaction
	for _, tx := range r.s.transactions {
		if tx.LoanID == loanID {
			out = append(out, tx)
		}
	}
	slices.SortFunc(out, func(a, b model.Transaction) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

// ---------------------------------------------------------------------------
// Wallets
// ---------------------------------------------------------------------------

type walletRepo struct {
	s *Store
	j *journal
}

func (r *walletRepo) Get(_ context.Context, clientID uuid.UUID) (model.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	w, ok := r.s.wallets[clientID]
	if !ok {
		return model.Wallet{}, valueobject.ErrWalletNotFound
	}
	return w, nil
}

func (r *walletRepo) Deposit(_ context.Context, entry model.WalletEntry) (model.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	w, ok := r.s.wallets[entry.ClientID]
	if !ok {
		w = model.NewWallet(entry.ClientID, entry.Amount.Currency(), entry.CreatedAt)
	}
	next, err := w.Apply(entry)
	if err != nil {
		return model.Wallet{}, err
	}
	r.s.wallets[entry.ClientID] = next
	r.s.walletEntries[entry.ClientID] = append(r.s.walletEntries[entry.ClientID], entry)

	clientID, entryID := entry.ClientID, entry.ID
	r.j.record(func() {
		// Other loans of the same client may have credited the wallet since,
		// so undo by subtracting this entry only.
		r.s.walletEntries[clientID] = slices.DeleteFunc(r.s.walletEntries[clientID], func(e model.WalletEntry) bool {
			return e.ID == entryID
		})
		cur, ok := r.s.wallets[clientID]
		if !ok {
			return
		}
		if bal, err := cur.Balance.Subtract(entry.Amount); err == nil {
			cur.Balance = bal
			r.s.wallets[clientID] = cur
		}
		if cur.Balance.IsZero() && len(r.s.walletEntries[clientID]) == 0 {
			delete(r.s.wallets, clientID)
			delete(r.s.walletEntries, clientID)
		}
	})
	return next, nil
}

func (r *walletRepo) ListEntries(_ context.Context, clientID uuid.UUID) ([]model.WalletEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return slices.Clone(r.s.walletEntries[clientID]), nil
}

// ---------------------------------------------------------------------------
// Outbox
// ---------------------------------------------------------------------------

type outboxRepo struct {
	s *Store
	j *journal
}

func (r *outboxRepo) Store(_ context.Context, entries []events.OutboxEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.outbox = append(r.s.outbox, entries...)
	ids := make(map[uuid.UUID]struct{}, len(entries))
	for _, e := range entries {
		ids[e.ID] = struct{}{}
	}
	r.j.record(func() {
		r.s.outbox = slices.DeleteFunc(r.s.outbox, func(e events.OutboxEntry) bool {
			_, staged := ids[e.ID]
			return staged
		})
	})
	return nil
}

func (r *outboxRepo) FetchUnpublished(_ context.Context, batchSize int) ([]events.OutboxEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []events.OutboxEntry
	for _, e := range r.s.outbox {
		if len(out) == batchSize {
			break
		}
		if e.PublishedAt == nil {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *outboxRepo) MarkPublished(_ context.Context, ids []uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now().UTC()
	for i := range r.s.outbox {
		if slices.Contains(ids, r.s.outbox[i].ID) {
			r.s.outbox[i].PublishedAt = &now
		}
	}
	return nil
}
