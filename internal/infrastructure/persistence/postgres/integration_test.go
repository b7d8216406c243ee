//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkopo/loanbook/internal/application/dto"
	"github.com/mkopo/loanbook/internal/application/usecase"
	"github.com/mkopo/loanbook/internal/domain/model"
	"github.com/mkopo/loanbook/internal/domain/port"
	"github.com/mkopo/loanbook/internal/domain/service"
	"github.com/mkopo/loanbook/internal/domain/valueobject"
	"github.com/mkopo/loanbook/internal/infrastructure/persistence/postgres"
	"github.com/mkopo/loanbook/pkg/money"
	"github.com/mkopo/loanbook/pkg/testutil"
)

func setup(t *testing.T) (*testutil.PostgresContainer, *postgres.UnitOfWork) {
	t.Helper()
	pc := testutil.NewPostgresContainer(context.Background(), t)
	pc.Migrate(t, "migrations")
	return pc, postgres.NewUnitOfWork(pc.Pool)
}

func originate(t *testing.T, uow port.UnitOfWork, principal string, months int) dto.LoanResponse {
	t.Helper()
	resp, err := usecase.NewOriginateLoanUseCase(uow, nil).Execute(context.Background(), dto.OriginateLoanRequest{
		ClientID:   uuid.New(),
		Principal:  decimal.RequireFromString(principal),
		Currency:   "KES",
		TermMonths: months,
		StartDate:  time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return resp
}

func TestPostgres_PaymentLifecycle(t *testing.T) {
	pc, uow := setup(t)
	ctx := context.Background()
	repos := postgres.NewRepositories(pc.Pool)
	engine := service.NewAllocationEngine()

	allocate := usecase.NewAllocatePaymentUseCase(uow, engine, nil, nil)
	record := usecase.NewRecordPaymentUseCase(uow, allocate, nil, time.Hour, nil, nil)
	reverse := usecase.NewReversePaymentUseCase(uow, engine, nil, nil)
	revert := usecase.NewRevertPaymentUseCase(uow, repos.Transactions, reverse, nil)

	loan := originate(t, uow, "900", 3)

	t.Run("schedule is persisted with derived status", func(t *testing.T) {
		rows, err := repos.Schedules.ListByLoan(ctx, loan.ID)
		require.NoError(t, err)
		require.Len(t, rows, 3)
		for _, r := range rows {
			assert.True(t, r.TotalDue.Equal(decimal.RequireFromString("300")))
			assert.True(t, r.Status().Equal(valueobject.InstallmentStatusPending))
		}
	})

	var first dto.RecordPaymentResponse
	t.Run("partial payment", func(t *testing.T) {
		var err error
		first, err = record.Execute(ctx, dto.RecordPaymentRequest{LoanID: loan.ID, Type: "repayment", Amount: decimal.RequireFromString("450")})
		require.NoError(t, err)
		assert.True(t, first.Allocation.Residual.IsZero())

		rows, err := repos.Schedules.ListByLoan(ctx, loan.ID)
		require.NoError(t, err)
		assert.Equal(t, "300", rows[0].AmountPaid.String())
		assert.Equal(t, "150", rows[1].AmountPaid.String())

		var status string
		require.NoError(t, pc.Pool.QueryRow(ctx, `SELECT status FROM installments WHERE id = $1`, rows[1].ID).Scan(&status))
		assert.Equal(t, "partial", status)
	})

	t.Run("overflow reaches the wallet and pays off the loan", func(t *testing.T) {
		resp, err := record.Execute(ctx, dto.RecordPaymentRequest{
			LoanID: loan.ID, Type: "mpesa_repayment", Amount: decimal.RequireFromString("700"), Reference: "QFT1",
		})
		require.NoError(t, err)
		assert.True(t, resp.Transaction.OverflowAmount.Equal(decimal.RequireFromString("250")))
		assert.Equal(t, "PAID_OFF", resp.Allocation.LoanStatus)

		wallet, err := repos.Wallets.Get(ctx, loan.ClientID)
		require.NoError(t, err)
		assert.True(t, wallet.Balance.Amount().Equal(decimal.RequireFromString("250")))

		stored, err := repos.Loans.FindByID(ctx, loan.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, stored.Version())
	})

	t.Run("revert first payment reopens the loan", func(t *testing.T) {
		resp, err := revert.Execute(ctx, dto.RevertPaymentRequest{TransactionID: first.Transaction.ID, Reason: "test"})
		require.NoError(t, err)
		assert.Equal(t, "ACTIVE", resp.Reversal.LoanStatus)

		rows, err := repos.Schedules.ListByLoan(ctx, loan.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"300", "300", "0"}, []string{
			rows[0].AmountPaid.String(), rows[1].AmountPaid.String(), rows[2].AmountPaid.String(),
		})
	})

	t.Run("events are staged in the outbox", func(t *testing.T) {
		entries, err := repos.Outbox.FetchUnpublished(ctx, 100)
		require.NoError(t, err)
		assert.NotEmpty(t, entries)

		ids := make([]uuid.UUID, len(entries))
		for i, e := range entries {
			ids[i] = e.ID
		}
		require.NoError(t, repos.Outbox.MarkPublished(ctx, ids))

		left, err := repos.Outbox.FetchUnpublished(ctx, 100)
		require.NoError(t, err)
		assert.Empty(t, left)
	})
}

func TestPostgres_WithinLoan(t *testing.T) {
	pc, uow := setup(t)
	ctx := context.Background()
	repos := postgres.NewRepositories(pc.Pool)

	t.Run("unknown loan", func(t *testing.T) {
		err := uow.WithinLoan(ctx, uuid.New(), func(context.Context, port.Repositories) error { return nil })
		assert.ErrorIs(t, err, valueobject.ErrLoanNotFound)
	})

	t.Run("currency mismatch rolls back the payment", func(t *testing.T) {
		loan := originate(t, uow, "100", 1)
		_, err := repos.Wallets.Deposit(ctx, model.WalletEntry{
			ID: uuid.New(), ClientID: loan.ClientID, LoanID: uuid.New(), TransactionID: uuid.New(),
			Type: model.WalletEntryDeposit, Amount: money.New(decimal.RequireFromString("5"), money.USD),
			CreatedAt: time.Now().UTC(),
		})
		require.NoError(t, err)

		allocate := usecase.NewAllocatePaymentUseCase(uow, service.NewAllocationEngine(), nil, nil)
		record := usecase.NewRecordPaymentUseCase(uow, allocate, nil, time.Hour, nil, nil)
		_, err = record.Execute(ctx, dto.RecordPaymentRequest{LoanID: loan.ID, Type: "repayment", Amount: decimal.RequireFromString("150")})
		assert.ErrorIs(t, err, valueobject.ErrCurrencyMismatch)

		rows, err := repos.Schedules.ListByLoan(ctx, loan.ID)
		require.NoError(t, err)
		assert.True(t, rows[0].AmountPaid.IsZero())
		txs, err := repos.Transactions.ListByLoan(ctx, loan.ID)
		require.NoError(t, err)
		assert.Empty(t, txs)
	})

	t.Run("concurrent payments are serialized by the row lock", func(t *testing.T) {
		loan := originate(t, uow, "1000", 4)
		allocate := usecase.NewAllocatePaymentUseCase(uow, service.NewAllocationEngine(), nil, nil)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := allocate.Execute(ctx, dto.AllocatePaymentRequest{LoanID: loan.ID, Amount: decimal.RequireFromString("150")})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		rows, err := repos.Schedules.ListByLoan(ctx, loan.ID)
		require.NoError(t, err)
		paid := decimal.Zero
		for _, r := range rows {
			assert.True(t, r.AmountPaid.LessThanOrEqual(r.TotalDue))
			paid = paid.Add(r.AmountPaid)
		}
		assert.True(t, paid.Equal(decimal.RequireFromString("1000")))
	})
}

func TestPostgres_MigrationsRoundTrip(t *testing.T) {
	pc, _ := setup(t)
	ctx := context.Background()

	tableExists := func(name string) bool {
		var exists bool
		require.NoError(t, pc.Pool.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", name).Scan(&exists))
		return exists
	}

	for _, table := range []string{"loans", "installments", "transactions", "wallets", "wallet_entries", "outbox"} {
		assert.True(t, tableExists(table), table)
	}

	pc.MigrateDown(t, "migrations")
	assert.False(t, tableExists("loans"))
	assert.False(t, tableExists("outbox"))

	pc.Migrate(t, "migrations")
	assert.True(t, tableExists("loans"))
}
