package usecase_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkopo/loanbook/internal/application/dto"
	"github.com/mkopo/loanbook/internal/application/usecase"
	"github.com/mkopo/loanbook/internal/domain/event"
	"github.com/mkopo/loanbook/internal/domain/service"
	"github.com/mkopo/loanbook/internal/domain/valueobject"
	"github.com/mkopo/loanbook/internal/infrastructure/persistence/memory"
)

func TestAllocatePayment_Execute(t *testing.T) {
	t.Run("fills oldest rows first", func(t *testing.T) {
		store := memory.NewStore()
		loan := seedLoan(t, store, "300", "300", "400")
		metrics := &recordingMetrics{}
		uc := usecase.NewAllocatePaymentUseCase(store, service.NewAllocationEngine(), metrics, nil)

		resp, err := uc.Execute(context.Background(), dto.AllocatePaymentRequest{LoanID: loan.ID(), Amount: d("500")})
		require.NoError(t, err)

		assert.True(t, resp.Applied.Equal(d("500")))
		assert.True(t, resp.Residual.IsZero())
		assert.Equal(t, "ACTIVE", resp.LoanStatus)
		require.Len(t, resp.Lines, 2)
		assert.Equal(t, "paid", resp.Lines[0].Status)
		assert.Equal(t, "partial", resp.Lines[1].Status)

		assert.Equal(t, []string{"300", "200", "0"}, paidAmounts(t, store, loan.ID()))
		assert.Equal(t, []string{event.TypePaymentAllocated}, stagedEventTypes(t, store))
		assert.Equal(t, 1, metrics.allocations)
	})

	t.Run("returns residual and pays off the loan", func(t *testing.T) {
		store := memory.NewStore()
		loan := seedLoan(t, store, "300", "300")
		logger, logs := bufferedLogger()
		uc := usecase.NewAllocatePaymentUseCase(store, service.NewAllocationEngine(), nil, logger)

		resp, err := uc.Execute(context.Background(), dto.AllocatePaymentRequest{LoanID: loan.ID(), Amount: d("1000")})
		require.NoError(t, err)
		assert.True(t, resp.Residual.Equal(d("400")))
		assert.Equal(t, "PAID_OFF", resp.LoanStatus)

		stored, err := store.Repositories().Loans.FindByID(context.Background(), loan.ID())
		require.NoError(t, err)
		assert.True(t, stored.Status().Equal(valueobject.LoanStatusPaidOff))
		assert.Equal(t, 2, stored.Version())

		assert.Equal(t, []string{event.TypePaymentAllocated, event.TypeLoanPaidOff}, stagedEventTypes(t, store))
		assert.Contains(t, logs.String(), "installment credited")
		assert.Contains(t, logs.String(), "residual=400")
	})

	t.Run("fully paid schedule returns everything as residual", func(t *testing.T) {
		store := memory.NewStore()
		loan := seedLoan(t, store, "100")
		uc := usecase.NewAllocatePaymentUseCase(store, service.NewAllocationEngine(), nil, nil)

		_, err := uc.Execute(context.Background(), dto.AllocatePaymentRequest{LoanID: loan.ID(), Amount: d("100")})
		require.NoError(t, err)

		resp, err := uc.Execute(context.Background(), dto.AllocatePaymentRequest{LoanID: loan.ID(), Amount: d("60")})
		require.NoError(t, err)
		assert.True(t, resp.Applied.IsZero())
		assert.True(t, resp.Residual.Equal(d("60")))
		assert.Empty(t, resp.Lines)
	})

	t.Run("rejects non-positive and sub-cent amounts", func(t *testing.T) {
		store := memory.NewStore()
		loan := seedLoan(t, store, "100")
		uc := usecase.NewAllocatePaymentUseCase(store, service.NewAllocationEngine(), nil, nil)

		for _, amount := range []string{"0", "0.014"} {
			_, err := uc.Execute(context.Background(), dto.AllocatePaymentRequest{LoanID: loan.ID(), Amount: d(amount)})
			assert.ErrorIs(t, err, valueobject.ErrInvalidAmount, amount)
		}
		assert.Equal(t, []string{"0"}, paidAmounts(t, store, loan.ID()))
	})

	t.Run("unknown loan", func(t *testing.T) {
		uc := usecase.NewAllocatePaymentUseCase(memory.NewStore(), service.NewAllocationEngine(), nil, nil)
		_, err := uc.Execute(context.Background(), dto.AllocatePaymentRequest{LoanID: uuid.New(), Amount: d("10")})
		assert.ErrorIs(t, err, valueobject.ErrLoanNotFound)
	})
}

func TestReversePayment_Execute(t *testing.T) {
	engine := service.NewAllocationEngine()

	t.Run("undoes an allocation latest row first", func(t *testing.T) {
		store := memory.NewStore()
		loan := seedLoan(t, store, "300", "300", "400")
		metrics := &recordingMetrics{}
		allocate := usecase.NewAllocatePaymentUseCase(store, engine, nil, nil)
		reverse := usecase.NewReversePaymentUseCase(store, engine, metrics, nil)

		_, err := allocate.Execute(context.Background(), dto.AllocatePaymentRequest{LoanID: loan.ID(), Amount: d("500")})
		require.NoError(t, err)

		resp, err := reverse.Execute(context.Background(), dto.ReversePaymentRequest{LoanID: loan.ID(), Amount: d("250")})
		require.NoError(t, err)
		assert.True(t, resp.Reversed.Equal(d("250")))
		assert.True(t, resp.Unreversed.IsZero())
		assert.Equal(t, []string{"250", "0", "0"}, paidAmounts(t, store, loan.ID()))
		assert.Equal(t, 1, metrics.reversals)

		_, err = reverse.Execute(context.Background(), dto.ReversePaymentRequest{LoanID: loan.ID(), Amount: d("250")})
		require.NoError(t, err)
		assert.Equal(t, []string{"0", "0", "0"}, paidAmounts(t, store, loan.ID()))
	})

	t.Run("reopens a paid-off loan", func(t *testing.T) {
		store := memory.NewStore()
		loan := seedLoan(t, store, "300", "300")
		allocate := usecase.NewAllocatePaymentUseCase(store, engine, nil, nil)
		reverse := usecase.NewReversePaymentUseCase(store, engine, nil, nil)

		_, err := allocate.Execute(context.Background(), dto.AllocatePaymentRequest{LoanID: loan.ID(), Amount: d("600")})
		require.NoError(t, err)

		resp, err := reverse.Execute(context.Background(), dto.ReversePaymentRequest{LoanID: loan.ID(), Amount: d("1")})
		require.NoError(t, err)
		assert.Equal(t, "ACTIVE", resp.LoanStatus)
		assert.Contains(t, stagedEventTypes(t, store), event.TypeLoanReopened)
	})

	t.Run("reports and logs the unreversed remainder", func(t *testing.T) {
		store := memory.NewStore()
		loan := seedLoan(t, store, "300")
		logger, logs := bufferedLogger()
		allocate := usecase.NewAllocatePaymentUseCase(store, engine, nil, nil)
		reverse := usecase.NewReversePaymentUseCase(store, engine, nil, logger)

		_, err := allocate.Execute(context.Background(), dto.AllocatePaymentRequest{LoanID: loan.ID(), Amount: d("100")})
		require.NoError(t, err)

		resp, err := reverse.Execute(context.Background(), dto.ReversePaymentRequest{LoanID: loan.ID(), Amount: d("150")})
		require.NoError(t, err)
		assert.True(t, resp.Reversed.Equal(d("100")))
		assert.True(t, resp.Unreversed.Equal(d("50")))
		assert.Contains(t, logs.String(), "level=WARN")
		assert.Contains(t, logs.String(), "unreversed=50")
	})

	t.Run("rejects non-positive and sub-cent amounts", func(t *testing.T) {
		store := memory.NewStore()
		loan := seedLoan(t, store, "100")
		reverse := usecase.NewReversePaymentUseCase(store, engine, nil, nil)
		for _, amount := range []string{"-5", "0.001"} {
			_, err := reverse.Execute(context.Background(), dto.ReversePaymentRequest{LoanID: loan.ID(), Amount: d(amount)})
			assert.ErrorIs(t, err, valueobject.ErrInvalidAmount, amount)
		}
	})
}
