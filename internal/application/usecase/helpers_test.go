package usecase_test

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mkopo/loanbook/internal/domain/model"
	"github.com/mkopo/loanbook/internal/domain/port"
	"github.com/mkopo/loanbook/internal/domain/valueobject"
	"github.com/mkopo/loanbook/internal/infrastructure/persistence/memory"
	"github.com/mkopo/loanbook/pkg/money"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// seedLoan stores an active KES loan whose schedule has the given totals,
// due monthly from February 2026.
func seedLoan(t *testing.T, store *memory.Store, totals ...string) model.Loan {
	t.Helper()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	principal := decimal.Zero
	for _, total := range totals {
		principal = principal.Add(d(total))
	}
	loan := model.ReconstructLoan(uuid.New(), uuid.New(), principal, money.KES, 0, len(totals),
		valueobject.LoanStatusActive, 1, now, now)

	rows := make([]model.Installment, 0, len(totals))
	for i, total := range totals {
		rows = append(rows, model.Installment{
			ID: uuid.New(), LoanID: loan.ID(), Sequence: i + 1,
			DueDate:  now.AddDate(0, i+1, 0),
			TotalDue: d(total), PrincipalDue: d(total), InterestDue: decimal.Zero,
			AmountPaid: decimal.Zero,
		})
	}

	repos := store.Repositories()
	require.NoError(t, repos.Loans.Create(context.Background(), loan))
	require.NoError(t, repos.Schedules.SaveAll(context.Background(), rows))
	return loan
}

func paidAmounts(t *testing.T, store *memory.Store, loanID uuid.UUID) []string {
	t.Helper()
	rows, err := store.Repositories().Schedules.ListByLoan(context.Background(), loanID)
	require.NoError(t, err)
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.AmountPaid.String()
	}
	return out
}

func stagedEventTypes(t *testing.T, store *memory.Store) []string {
	t.Helper()
	entries, err := store.Repositories().Outbox.FetchUnpublished(context.Background(), 1000)
	require.NoError(t, err)
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.EventType
	}
	return out
}

func bufferedLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

// overridingUoW swaps selected repositories inside each unit of work.
type overridingUoW struct {
	port.UnitOfWork
	wallets port.WalletRepository
}

func (u overridingUoW) WithinLoan(ctx context.Context, loanID uuid.UUID, fn func(context.Context, port.Repositories) error) error {
	return u.UnitOfWork.WithinLoan(ctx, loanID, func(ctx context.Context, repos port.Repositories) error {
		if u.wallets != nil {
			repos.Wallets = u.wallets
		}
		return fn(ctx, repos)
	})
}

type mockWalletRepository struct {
	getFunc         func(ctx context.Context, clientID uuid.UUID) (model.Wallet, error)
	depositFunc     func(ctx context.Context, entry model.WalletEntry) (model.Wallet, error)
	listEntriesFunc func(ctx context.Context, clientID uuid.UUID) ([]model.WalletEntry, error)
}

func (m *mockWalletRepository) Get(ctx context.Context, clientID uuid.UUID) (model.Wallet, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, clientID)
	}
	return model.Wallet{}, valueobject.ErrWalletNotFound
}

func (m *mockWalletRepository) Deposit(ctx context.Context, entry model.WalletEntry) (model.Wallet, error) {
	if m.depositFunc != nil {
		return m.depositFunc(ctx, entry)
	}
	return model.Wallet{ClientID: entry.ClientID, Balance: entry.Amount}, nil
}

func (m *mockWalletRepository) ListEntries(ctx context.Context, clientID uuid.UUID) ([]model.WalletEntry, error) {
	if m.listEntriesFunc != nil {
		return m.listEntriesFunc(ctx, clientID)
	}
	return nil, nil
}

type mockIdempotencyStore struct {
	mu       sync.Mutex
	claimed  map[string]bool
	released []string
	markErr  error
}

func newMockIdempotencyStore() *mockIdempotencyStore {
	return &mockIdempotencyStore{claimed: make(map[string]bool)}
}

func (m *mockIdempotencyStore) MarkProcessed(_ context.Context, key string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return false, m.markErr
	}
	if m.claimed[key] {
		return false, nil
	}
	m.claimed[key] = true
	return true, nil
}

func (m *mockIdempotencyStore) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claimed, key)
	m.released = append(m.released, key)
	return nil
}

type recordingMetrics struct {
	mu          sync.Mutex
	allocations int
	reversals   int
	overflow    decimal.Decimal
}

func (m *recordingMetrics) RecordAllocation(context.Context, decimal.Decimal, decimal.Decimal) {
	m.mu.Lock()
	m.allocations++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordReversal(context.Context, decimal.Decimal, decimal.Decimal) {
	m.mu.Lock()
	m.reversals++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordWalletOverflow(_ context.Context, amount decimal.Decimal) {
	m.mu.Lock()
	m.overflow = m.overflow.Add(amount)
	m.mu.Unlock()
}

