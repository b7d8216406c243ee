package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mkopo/loanbook/internal/domain/model"
	"github.com/mkopo/loanbook/internal/domain/port"
	"github.com/mkopo/loanbook/internal/domain/valueobject"
)

var _ port.ScheduleRepository = (*ScheduleRepo)(nil)

// ScheduleRepo stores installment rows. The status column is always written
// from Installment.Status and never read back.
type ScheduleRepo struct {
	db DBTX
}

func NewScheduleRepo(db DBTX) *ScheduleRepo {
	return &ScheduleRepo{db: db}
}

func (r *ScheduleRepo) SaveAll(ctx context.Context, rows []model.Installment) error {
	for _, row := range rows {
		_, err := r.db.Exec(ctx, `
			INSERT INTO installments (
				id, loan_id, sequence, due_date, principal_due, interest_due,
				total_due, amount_paid, status, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`,
			row.ID, row.LoanID, row.Sequence, row.DueDate, row.PrincipalDue, row.InterestDue,
			row.TotalDue, row.AmountPaid, row.Status().String(), updatedAt(row),
		)
		if err != nil {
			return fmt.Errorf("insert installment %d: %w", row.Sequence, err)
		}
	}
	return nil
}

func (r *ScheduleRepo) ListByLoan(ctx context.Context, loanID uuid.UUID) ([]model.Installment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, loan_id, sequence, due_date, principal_due, interest_due,
		       total_due, amount_paid, updated_at
		FROM installments
		WHERE loan_id = $1
		ORDER BY due_date, sequence
	`, loanID)
	if err != nil {
		return nil, fmt.Errorf("query installments: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Installment, error) {
		var i model.Installment
		err := row.Scan(
			&i.ID, &i.LoanID, &i.Sequence, &i.DueDate, &i.PrincipalDue, &i.InterestDue,
			&i.TotalDue, &i.AmountPaid, &i.UpdatedAt,
		)
		return i, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan installments: %w", err)
	}
	return out, nil
}

// UpdateAmounts writes amount_paid and the derived status of touched rows in
// one pipelined batch.
func (r *ScheduleRepo) UpdateAmounts(ctx context.Context, rows []model.Installment) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			UPDATE installments SET amount_paid = $2, status = $3, updated_at = now()
			WHERE id = $1 AND loan_id = $4
		`, row.ID, row.AmountPaid, row.Status().String(), row.LoanID)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for _, row := range rows {
		tag, err := results.Exec()
		if err != nil {
			return fmt.Errorf("update installment %s: %w", row.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s not found", valueobject.ErrInvalidInstallment, row.ID)
		}
	}
	return nil
}

func updatedAt(row model.Installment) time.Time {
	if row.UpdatedAt.IsZero() {
		return time.Now().UTC()
	}
	return row.UpdatedAt
}
