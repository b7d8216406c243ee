package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkopo/loanbook/internal/domain/event"
	"github.com/mkopo/loanbook/internal/domain/model"
	"github.com/mkopo/loanbook/internal/domain/valueobject"
	"github.com/mkopo/loanbook/pkg/money"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestInstallment(t *testing.T) {
	row := model.Installment{Sequence: 1, TotalDue: d("300"), AmountPaid: d("120")}

	assert.True(t, row.Status().Equal(valueobject.InstallmentStatusPartial))
	assert.True(t, row.Outstanding().Equal(d("180")))
	assert.NoError(t, row.Validate())

	row.AmountPaid = d("300")
	assert.True(t, row.Status().Equal(valueobject.InstallmentStatusPaid))
	assert.True(t, row.Outstanding().IsZero())

	t.Run("validate rejects broken rows", func(t *testing.T) {
		for _, bad := range []model.Installment{
			{TotalDue: d("100"), AmountPaid: d("100.01")},
			{TotalDue: d("100"), AmountPaid: d("-1")},
			{TotalDue: d("-5"), AmountPaid: d("0")},
		} {
			assert.True(t, errors.Is(bad.Validate(), valueobject.ErrInvalidInstallment))
		}
	})
}

func TestAllPaid(t *testing.T) {
	paid := model.Installment{TotalDue: d("100"), AmountPaid: d("100")}
	open := model.Installment{TotalDue: d("100"), AmountPaid: d("40")}
	zero := model.Installment{TotalDue: d("0"), AmountPaid: d("0")}

	assert.False(t, model.AllPaid(nil))
	assert.True(t, model.AllPaid([]model.Installment{paid, zero}))
	assert.False(t, model.AllPaid([]model.Installment{paid, open}))
	assert.True(t, model.TotalOutstanding([]model.Installment{paid, open, zero}).Equal(d("60")))
}

func TestGenerateInstallments(t *testing.T) {
	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	loanID := uuid.New()

	t.Run("amortizing loan", func(t *testing.T) {
		// 50,000 KES at 18% over 12 months; payment is about 4583.99.
		rows := model.GenerateInstallments(loanID, d("50000"), 1800, 12, start)
		require.Len(t, rows, 12)

		assert.Equal(t, 1, rows[0].Sequence)
		assert.Equal(t, time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC), rows[0].DueDate)
		assert.True(t, rows[0].InterestDue.Equal(d("750")), "first interest %s", rows[0].InterestDue)
		assert.True(t, rows[0].TotalDue.Sub(d("4583.99")).Abs().LessThan(d("0.02")), "payment %s", rows[0].TotalDue)

		principal, interest, total := decimal.Zero, decimal.Zero, decimal.Zero
		for i, r := range rows {
			assert.Equal(t, loanID, r.LoanID)
			assert.Equal(t, i+1, r.Sequence)
			assert.True(t, r.AmountPaid.IsZero())
			assert.True(t, r.TotalDue.Equal(r.PrincipalDue.Add(r.InterestDue)))
			principal = principal.Add(r.PrincipalDue)
			interest = interest.Add(r.InterestDue)
			total = total.Add(r.TotalDue)
		}
		assert.True(t, principal.Equal(d("50000")), "principal sums to %s", principal)
		assert.True(t, total.Equal(d("50000").Add(interest)))
	})

	t.Run("zero interest splits evenly", func(t *testing.T) {
		rows := model.GenerateInstallments(loanID, d("1000"), 0, 3, start)
		require.Len(t, rows, 3)
		assert.True(t, rows[0].TotalDue.Equal(d("333.33")))
		assert.True(t, rows[1].TotalDue.Equal(d("333.33")))
		assert.True(t, rows[2].TotalDue.Equal(d("333.34")))
	})

	t.Run("invalid terms produce nothing", func(t *testing.T) {
		assert.Nil(t, model.GenerateInstallments(loanID, d("0"), 1200, 6, start))
		assert.Nil(t, model.GenerateInstallments(loanID, d("100"), 1200, 0, start))
		assert.Nil(t, model.GenerateInstallments(loanID, d("100"), -1, 6, start))
	})
}

func TestNewLoan(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	clientID := uuid.New()

	loan, rows, err := model.NewLoan(clientID, d("12000"), money.KES, 2400, 6, now)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, loan.ID())
	assert.Equal(t, clientID, loan.ClientID())
	assert.True(t, loan.Status().Equal(valueobject.LoanStatusActive))
	assert.Equal(t, 1, loan.Version())
	require.Len(t, rows, 6)
	for _, r := range rows {
		assert.Equal(t, loan.ID(), r.LoanID)
	}

	require.Len(t, loan.DomainEvents(), 1)
	originated, ok := loan.DomainEvents()[0].(event.LoanOriginated)
	require.True(t, ok)
	assert.Equal(t, event.TypeLoanOriginated, originated.EventType())
	assert.Equal(t, rows[0].DueDate, originated.FirstDueDate)
	assert.Empty(t, loan.ClearEvents().DomainEvents())

	t.Run("rejects bad terms", func(t *testing.T) {
		cases := []struct {
			name      string
			client    uuid.UUID
			principal string
			currency  money.Currency
			rate      int
			term      int
		}{
			{"no client", uuid.Nil, "100", money.KES, 0, 1},
			{"zero principal", clientID, "0", money.KES, 0, 1},
			{"sub-cent principal", clientID, "100.005", money.KES, 0, 1},
			{"no currency", clientID, "100", money.Currency{}, 0, 1},
			{"zero term", clientID, "100", money.KES, 0, 0},
			{"negative rate", clientID, "100", money.KES, -10, 3},
		}
		for _, c := range cases {
			t.Run(c.name, func(t *testing.T) {
				_, _, err := model.NewLoan(c.client, d(c.principal), c.currency, c.rate, c.term, now)
				assert.ErrorIs(t, err, valueobject.ErrInvalidLoanTerms)
			})
		}
	})
}

func TestLoanSyncStatus(t *testing.T) {
	now := time.Now().UTC()
	loan := model.ReconstructLoan(uuid.New(), uuid.New(), d("600"), money.KES, 0, 2,
		valueobject.LoanStatusActive, 3, now, now)

	paid := []model.Installment{
		{TotalDue: d("300"), AmountPaid: d("300")},
		{TotalDue: d("300"), AmountPaid: d("300")},
	}

	t.Run("active to paid off", func(t *testing.T) {
		next, changed := loan.SyncStatus(paid, now)
		require.True(t, changed)
		assert.True(t, next.Status().Equal(valueobject.LoanStatusPaidOff))
		assert.Equal(t, 4, next.Version())
		require.Len(t, next.DomainEvents(), 1)
		assert.Equal(t, event.TypeLoanPaidOff, next.DomainEvents()[0].EventType())
		assert.Empty(t, loan.DomainEvents(), "original must not change")

		reopened, changed := next.SyncStatus([]model.Installment{paid[0], {TotalDue: d("300"), AmountPaid: d("10")}}, now)
		require.True(t, changed)
		assert.True(t, reopened.Status().Equal(valueobject.LoanStatusActive))
		assert.Equal(t, event.TypeLoanReopened, reopened.DomainEvents()[1].EventType())
	})

	t.Run("no change", func(t *testing.T) {
		same, changed := loan.SyncStatus([]model.Installment{{TotalDue: d("300")}}, now)
		assert.False(t, changed)
		assert.Equal(t, loan.Version(), same.Version())
	})
}
