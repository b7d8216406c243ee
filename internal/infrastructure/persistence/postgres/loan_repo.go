package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkopo/loanbook/internal/domain/model"
	"github.com/mkopo/loanbook/internal/domain/port"
	"github.com/mkopo/loanbook/internal/domain/valueobject"
	"github.com/mkopo/loanbook/pkg/money"
	pgutil "github.com/mkopo/loanbook/pkg/postgres"
)

var _ port.LoanRepository = (*LoanRepo)(nil)

// LoanRepo implements port.LoanRepository over a pool or a transaction.
type LoanRepo struct {
	db pgutil.Querier
}

// NewLoanRepo creates a PostgreSQL-backed loan repository.
func NewLoanRepo(db pgutil.Querier) *LoanRepo {
	return &LoanRepo{db: db}
}

func (r *LoanRepo) Create(ctx context.Context, loan model.Loan) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO loans (
			id, client_id, principal, currency, interest_rate_bps, term_months,
			status, version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		loan.ID(), loan.ClientID(), loan.Principal(), loan.Currency().Code(),
		loan.InterestRateBps(), loan.TermMonths(), loan.Status().String(),
		loan.Version(), loan.CreatedAt(), loan.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("insert loan: %w", err)
	}
	return nil
}

// UpdateStatus writes status and version, guarded by the previous version.
func (r *LoanRepo) UpdateStatus(ctx context.Context, loan model.Loan) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE loans SET status = $2, version = $3, updated_at = $4
		WHERE id = $1 AND version = $5
	`, loan.ID(), loan.Status().String(), loan.Version(), loan.UpdatedAt(), loan.Version()-1)
	if err != nil {
		return fmt.Errorf("update loan status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: loan %s version %d", valueobject.ErrConcurrentUpdate, loan.ID(), loan.Version()-1)
	}
	return nil
}

func (r *LoanRepo) FindByID(ctx context.Context, id uuid.UUID) (model.Loan, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, client_id, principal, currency, interest_rate_bps, term_months,
		       status, version, created_at, updated_at
		FROM loans
		WHERE id = $1
	`, id)
	loan, err := scanLoanRow(row)
	if isNoRows(err) {
		return model.Loan{}, fmt.Errorf("%w: %s", valueobject.ErrLoanNotFound, id)
	}
	return loan, err
}

func scanLoanRow(s scannable) (model.Loan, error) {
	var (
		id, clientID                uuid.UUID
		principal                   decimal.Decimal
		currencyCode, statusStr     string
		interestRateBps, termMonths int
		version                     int
		createdAt, updatedAt        time.Time
	)
	err := s.Scan(
		&id, &clientID, &principal, &currencyCode, &interestRateBps, &termMonths,
		&statusStr, &version, &createdAt, &updatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return model.Loan{}, err
		}
		return model.Loan{}, fmt.Errorf("scan loan: %w", err)
	}

	currency, err := money.NewCurrency(currencyCode)
	if err != nil {
		return model.Loan{}, fmt.Errorf("loan %s: %w", id, err)
	}
	status, err := valueobject.NewLoanStatus(statusStr)
	if err != nil {
		return model.Loan{}, fmt.Errorf("loan %s: %w", id, err)
	}

	return model.ReconstructLoan(
		id, clientID, principal, currency, interestRateBps, termMonths,
		status, version, createdAt, updatedAt,
	), nil
}
