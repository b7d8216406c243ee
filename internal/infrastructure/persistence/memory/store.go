// Package memory is an in-process implementation of the persistence ports.
// It backs unit tests and the STORE_BACKEND=memory mode for local runs.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/mkopo/loanbook/internal/domain/model"
	"github.com/mkopo/loanbook/internal/domain/port"
	"github.com/mkopo/loanbook/internal/domain/valueobject"
	"github.com/mkopo/loanbook/pkg/events"
)

// Store holds all state behind one mutex. Per-loan locks serialize units of
// work against the same loan; each unit of work keeps an undo journal that is
// replayed when its callback fails.
type Store struct {
	mu            sync.Mutex
	loanLocks     map[uuid.UUID]chan struct{}
	loans         map[uuid.UUID]model.Loan
	installments  map[uuid.UUID][]model.Installment
	transactions  map[uuid.UUID]model.Transaction
	wallets       map[uuid.UUID]model.Wallet
	walletEntries map[uuid.UUID][]model.WalletEntry
	outbox        []events.OutboxEntry
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		loanLocks:     make(map[uuid.UUID]chan struct{}),
		loans:         make(map[uuid.UUID]model.Loan),
		installments:  make(map[uuid.UUID][]model.Installment),
		transactions:  make(map[uuid.UUID]model.Transaction),
		wallets:       make(map[uuid.UUID]model.Wallet),
		walletEntries: make(map[uuid.UUID][]model.WalletEntry),
	}
}

var _ port.UnitOfWork = (*Store)(nil)

// journal collects compensating actions for one unit of work.
type journal struct {
	undo []func()
}

func (j *journal) record(fn func()) {
	if j != nil {
		j.undo = append(j.undo, fn)
	}
}

// Repositories returns adapters that write straight through without a journal.
func (s *Store) Repositories() port.Repositories {
	return s.repositories(nil)
}

func (s *Store) repositories(j *journal) port.Repositories {
	return port.Repositories{
		Loans:        &loanRepo{s: s, j: j},
		Schedules:    &scheduleRepo{s: s, j: j},
		Transactions: &transactionRepo{s: s, j: j},
		Wallets:      &walletRepo{s: s, j: j},
		Outbox:       &outboxRepo{s: s, j: j},
	}
}

// WithinLoan implements port.UnitOfWork.
func (s *Store) WithinLoan(ctx context.Context, loanID uuid.UUID, fn func(ctx context.Context, repos port.Repositories) error) error {
	s.mu.Lock()
	_, exists := s.loans[loanID]
	lock, ok := s.loanLocks[loanID]
	if !ok {
		lock = make(chan struct{}, 1)
		s.loanLocks[loanID] = lock
	}
	s.mu.Unlock()

	if !exists {
		return valueobject.ErrLoanNotFound
	}

	select {
	case lock <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-lock }()

	return s.run(ctx, fn)
}

// Within implements port.UnitOfWork.
func (s *Store) Within(ctx context.Context, fn func(ctx context.Context, repos port.Repositories) error) error {
	return s.run(ctx, fn)
}

func (s *Store) run(ctx context.Context, fn func(ctx context.Context, repos port.Repositories) error) error {
	j := &journal{}
	if err := fn(ctx, s.repositories(j)); err != nil {
		s.mu.Lock()
		for i := len(j.undo) - 1; i >= 0; i-- {
			j.undo[i]()
		}
		s.mu.Unlock()
		return err
	}
	return nil
}
