package postgres

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkopo/loanbook/internal/domain/valueobject"
)

// fakeRow copies canned values into Scan destinations.
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan: want %d destinations, got %d", len(r.values), len(dest))
	}
	for i, v := range r.values {
		switch d := dest[i].(type) {
		case *uuid.UUID:
			*d = v.(uuid.UUID)
		case *decimal.Decimal:
			*d = v.(decimal.Decimal)
		case *string:
			*d = v.(string)
		case *int:
			*d = v.(int)
		case *bool:
			*d = v.(bool)
		case *time.Time:
			*d = v.(time.Time)
		case **time.Time:
			if v == nil {
				*d = nil
			} else {
				t := v.(time.Time)
				*d = &t
			}
		default:
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
	}
	return nil
}

func TestScanLoanRow(t *testing.T) {
	id, clientID := uuid.New(), uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("reconstructs loan", func(t *testing.T) {
		loan, err := scanLoanRow(fakeRow{values: []any{
			id, clientID, decimal.RequireFromString("50000"), "KES", 1800, 12,
			"PAID_OFF", 3, now, now,
		}})
		require.NoError(t, err)
		assert.Equal(t, id, loan.ID())
		assert.Equal(t, clientID, loan.ClientID())
		assert.Equal(t, "KES", loan.Currency().Code())
		assert.True(t, loan.Status().Equal(valueobject.LoanStatusPaidOff))
		assert.Equal(t, 3, loan.Version())
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		_, err := scanLoanRow(fakeRow{values: []any{
			id, clientID, decimal.RequireFromString("100"), "KES", 0, 1,
			"WRITTEN_OFF", 1, now, now,
		}})
		assert.Error(t, err)
	})

	t.Run("passes no rows through", func(t *testing.T) {
		_, err := scanLoanRow(fakeRow{err: pgx.ErrNoRows})
		assert.True(t, isNoRows(err))
	})
}

func TestScanTransaction(t *testing.T) {
	id, loanID, clientID := uuid.New(), uuid.New(), uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)

	tx, err := scanTransaction(fakeRow{values: []any{
		id, loanID, clientID, "mpesa_repayment",
		decimal.RequireFromString("1000"), decimal.RequireFromString("600"), decimal.RequireFromString("400"),
		"KES", "QFT12ABC", true, "duplicate", now, now,
	}})
	require.NoError(t, err)
	assert.True(t, tx.Type.Equal(valueobject.TransactionTypeMpesaRepayment))
	assert.True(t, tx.OverflowAmount.Equal(decimal.RequireFromString("400")))
	require.NotNil(t, tx.RevertedAt)
	assert.Equal(t, now, *tx.RevertedAt)

	_, err = scanTransaction(fakeRow{values: []any{
		id, loanID, clientID, "refund",
		decimal.Zero, decimal.Zero, decimal.Zero, "KES", "", false, "", nil, now,
	}})
	assert.Error(t, err)
}

func TestLockNotAvailable(t *testing.T) {
	assert.True(t, lockNotAvailable(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "55P03"})))
	assert.False(t, lockNotAvailable(&pgconn.PgError{Code: "23505"}))
	assert.False(t, lockNotAvailable(errors.New("boom")))
}
