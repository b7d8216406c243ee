package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkopo/loanbook/internal/application/dto"
	"github.com/mkopo/loanbook/internal/application/usecase"
	"github.com/mkopo/loanbook/internal/domain/event"
	"github.com/mkopo/loanbook/internal/domain/model"
	"github.com/mkopo/loanbook/internal/domain/port"
	"github.com/mkopo/loanbook/internal/domain/service"
	"github.com/mkopo/loanbook/internal/domain/valueobject"
	"github.com/mkopo/loanbook/internal/infrastructure/persistence/memory"
)

func newRecordPayment(uow port.UnitOfWork, idem port.IdempotencyStore, metrics port.EngineMetrics) *usecase.RecordPaymentUseCase {
	allocate := usecase.NewAllocatePaymentUseCase(uow, service.NewAllocationEngine(), metrics, nil)
	return usecase.NewRecordPaymentUseCase(uow, allocate, idem, time.Hour, metrics, nil)
}

func TestRecordPayment_Execute(t *testing.T) {
	t.Run("exact repayment", func(t *testing.T) {
		store := memory.NewStore()
		loan := seedLoan(t, store, "300", "300", "400")
		uc := newRecordPayment(store, nil, nil)

		resp, err := uc.Execute(context.Background(), dto.RecordPaymentRequest{
			LoanID: loan.ID(), Type: "repayment", Amount: d("500"),
		})
		require.NoError(t, err)

		assert.Equal(t, "repayment", resp.Transaction.Type)
		assert.True(t, resp.Transaction.AllocatedAmount.Equal(d("500")))
		assert.True(t, resp.Transaction.OverflowAmount.IsZero())
		assert.Nil(t, resp.WalletBalance)
		assert.Equal(t, []string{"300", "200", "0"}, paidAmounts(t, store, loan.ID()))
		assert.Equal(t, []string{event.TypePaymentAllocated, event.TypePaymentRecorded}, stagedEventTypes(t, store))

		stored, err := store.Repositories().Transactions.FindByID(context.Background(), resp.Transaction.ID)
		require.NoError(t, err)
		assert.True(t, stored.AllocatedAmount.Equal(d("500")))
	})

	t.Run("overflow is parked in the client's wallet", func(t *testing.T) {
		store := memory.NewStore()
		loan := seedLoan(t, store, "300", "300")
		metrics := &recordingMetrics{}
		uc := newRecordPayment(store, nil, metrics)

		resp, err := uc.Execute(context.Background(), dto.RecordPaymentRequest{
			LoanID: loan.ID(), Type: "mpesa_repayment", Amount: d("1000"), Reference: "QFT12ABC",
		})
		require.NoError(t, err)

		assert.True(t, resp.Transaction.OverflowAmount.Equal(d("400")))
		require.NotNil(t, resp.WalletBalance)
		assert.True(t, resp.WalletBalance.Equal(d("400")))
		assert.Equal(t, "PAID_OFF", resp.Allocation.LoanStatus)
		assert.True(t, metrics.overflow.Equal(d("400")))

		wallets := store.Repositories().Wallets
		wallet, err := wallets.Get(context.Background(), loan.ClientID())
		require.NoError(t, err)
		assert.True(t, wallet.Balance.Amount().Equal(d("400")))

		entries, err := wallets.ListEntries(context.Background(), loan.ClientID())
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, model.WalletEntryDeposit, entries[0].Type)
		assert.Equal(t, loan.ID(), entries[0].LoanID)
		assert.Equal(t, resp.Transaction.ID, entries[0].TransactionID)

		assert.Equal(t, []string{
			event.TypePaymentAllocated,
			event.TypeLoanPaidOff,
			event.TypeWalletCredited,
			event.TypePaymentRecorded,
		}, stagedEventTypes(t, store))
	})

	t.Run("duplicate M-Pesa receipt is rejected", func(t *testing.T) {
		store := memory.NewStore()
		loan := seedLoan(t, store, "300", "300")
		idem := newMockIdempotencyStore()
		uc := newRecordPayment(store, idem, nil)

		req := dto.RecordPaymentRequest{LoanID: loan.ID(), Type: "mpesa_repayment", Amount: d("100"), Reference: "QFT99XYZ"}
		_, err := uc.Execute(context.Background(), req)
		require.NoError(t, err)

		_, err = uc.Execute(context.Background(), req)
		assert.ErrorIs(t, err, valueobject.ErrDuplicatePayment)
		assert.True(t, idem.claimed["mpesa:QFT99XYZ"])
		assert.Equal(t, []string{"100", "0"}, paidAmounts(t, store, loan.ID()))
	})

	t.Run("explicit idempotency key wins over the receipt", func(t *testing.T) {
		store := memory.NewStore()
		loan := seedLoan(t, store, "300")
		idem := newMockIdempotencyStore()
		uc := newRecordPayment(store, idem, nil)

		_, err := uc.Execute(context.Background(), dto.RecordPaymentRequest{
			LoanID: loan.ID(), Type: "repayment", Amount: d("50"), IdempotencyKey: "teller-42",
		})
		require.NoError(t, err)
		assert.True(t, idem.claimed["teller-42"])
	})

	t.Run("idempotency store failure aborts before any write", func(t *testing.T) {
		store := memory.NewStore()
		loan := seedLoan(t, store, "300")
		idem := newMockIdempotencyStore()
		idem.markErr = errors.New("redis down")
		uc := newRecordPayment(store, idem, nil)

		_, err := uc.Execute(context.Background(), dto.RecordPaymentRequest{
			LoanID: loan.ID(), Type: "mpesa_repayment", Amount: d("50"), Reference: "R1",
		})
		assert.ErrorContains(t, err, "redis down")
		assert.Equal(t, []string{"0"}, paidAmounts(t, store, loan.ID()))
	})

	t.Run("wallet failure rolls back the whole payment", func(t *testing.T) {
		store := memory.NewStore()
		loan := seedLoan(t, store, "300", "300")
		idem := newMockIdempotencyStore()
		failing := &mockWalletRepository{
			depositFunc: func(context.Context, model.WalletEntry) (model.Wallet, error) {
				return model.Wallet{}, errors.New("wallet ledger unavailable")
			},
		}
		uc := newRecordPayment(overridingUoW{UnitOfWork: store, wallets: failing}, idem, nil)

		_, err := uc.Execute(context.Background(), dto.RecordPaymentRequest{
			LoanID: loan.ID(), Type: "mpesa_repayment", Amount: d("1000"), Reference: "QFT55",
		})
		require.Error(t, err)
		assert.ErrorContains(t, err, "deposit overflow to wallet")

		assert.Equal(t, []string{"0", "0"}, paidAmounts(t, store, loan.ID()))
		assert.Empty(t, stagedEventTypes(t, store))

		txs, err := store.Repositories().Transactions.ListByLoan(context.Background(), loan.ID())
		require.NoError(t, err)
		assert.Empty(t, txs)

		stored, err := store.Repositories().Loans.FindByID(context.Background(), loan.ID())
		require.NoError(t, err)
		assert.True(t, stored.Status().Equal(valueobject.LoanStatusActive))

		assert.Equal(t, []string{"mpesa:QFT55"}, idem.released)
		assert.False(t, idem.claimed["mpesa:QFT55"])
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		store := memory.NewStore()
		loan := seedLoan(t, store, "300")
		uc := newRecordPayment(store, nil, nil)

		tests := []struct {
			name string
			req  dto.RecordPaymentRequest
			want error
		}{
			{"unknown type", dto.RecordPaymentRequest{LoanID: loan.ID(), Type: "refund", Amount: d("10")}, valueobject.ErrInvalidTransactionType},
			{"disbursement", dto.RecordPaymentRequest{LoanID: loan.ID(), Type: "disbursement", Amount: d("10")}, valueobject.ErrInvalidTransactionType},
			{"zero amount", dto.RecordPaymentRequest{LoanID: loan.ID(), Type: "repayment", Amount: decimal.Zero}, valueobject.ErrInvalidAmount},
			{"sub-cent amount", dto.RecordPaymentRequest{LoanID: loan.ID(), Type: "repayment", Amount: d("0.014")}, valueobject.ErrInvalidAmount},
			{"unknown loan", dto.RecordPaymentRequest{LoanID: uuid.New(), Type: "repayment", Amount: d("10")}, valueobject.ErrLoanNotFound},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := uc.Execute(context.Background(), tt.req)
				assert.ErrorIs(t, err, tt.want)
				assert.True(t, usecase.IsClientError(err))
			})
		}
	})

	t.Run("concurrent payments never over-allocate", func(t *testing.T) {
		store := memory.NewStore()
		loan := seedLoan(t, store, "300", "300", "400")
		uc := newRecordPayment(store, nil, nil)

		const workers = 20
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := uc.Execute(context.Background(), dto.RecordPaymentRequest{
					LoanID: loan.ID(), Type: "repayment", Amount: d("75"),
				})
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		// 20 x 75 = 1500 against 1000 due; 500 must end up in the wallet.
		assert.Equal(t, []string{"300", "300", "400"}, paidAmounts(t, store, loan.ID()))
		wallet, err := store.Repositories().Wallets.Get(context.Background(), loan.ClientID())
		require.NoError(t, err)
		assert.True(t, wallet.Balance.Amount().Equal(d("500")), "wallet balance %s", wallet.Balance)

		txs, err := store.Repositories().Transactions.ListByLoan(context.Background(), loan.ID())
		require.NoError(t, err)
		require.Len(t, txs, workers)
		total := decimal.Zero
		for _, tx := range txs {
			total = total.Add(tx.AllocatedAmount).Add(tx.OverflowAmount)
		}
		assert.True(t, total.Equal(d("1500")))
	})
}

func TestIsClientError(t *testing.T) {
	assert.False(t, usecase.IsClientError(errors.New("connection reset")))
	assert.True(t, usecase.IsClientError(valueobject.ErrDuplicatePayment))
}
