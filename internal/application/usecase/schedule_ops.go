package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mkopo/loanbook/internal/domain/event"
	"github.com/mkopo/loanbook/internal/domain/model"
	"github.com/mkopo/loanbook/internal/domain/port"
	"github.com/mkopo/loanbook/internal/domain/service"
	"github.com/mkopo/loanbook/pkg/events"
)

// mergeRows overlays touched rows onto the full schedule by ID.
func mergeRows(rows, touched []model.Installment) []model.Installment {
	if len(touched) == 0 {
		return rows
	}
	byID := make(map[string]model.Installment, len(touched))
	for _, t := range touched {
		byID[t.ID.String()] = t
	}
	out := make([]model.Installment, len(rows))
	for i, r := range rows {
		if t, ok := byID[r.ID.String()]; ok {
			out[i] = t
			continue
		}
		out[i] = r
	}
	return out
}

// persistSchedule writes touched rows and brings the loan status in line with
// the resulting schedule. Status-change events are returned for staging.
func persistSchedule(
	ctx context.Context,
	repos port.Repositories,
	loan model.Loan,
	rows, touched []model.Installment,
	now time.Time,
) (model.Loan, []event.DomainEvent, error) {
	if len(touched) > 0 {
		if err := repos.Schedules.UpdateAmounts(ctx, touched); err != nil {
			return loan, nil, fmt.Errorf("update installments: %w", err)
		}
	}

	next, changed := loan.SyncStatus(mergeRows(rows, touched), now)
	if !changed {
		return loan, nil, nil
	}
	if err := repos.Loans.UpdateStatus(ctx, next); err != nil {
		return loan, nil, fmt.Errorf("update loan status: %w", err)
	}
	raised := next.DomainEvents()
	return next.ClearEvents(), raised, nil
}

// stageEvents writes events to the outbox inside the current unit of work.
func stageEvents(ctx context.Context, outbox port.OutboxRepository, evts []event.DomainEvent) error {
	if len(evts) == 0 {
		return nil
	}
	entries, err := events.NewOutboxEntries(evts)
	if err != nil {
		return err
	}
	if err := outbox.Store(ctx, entries); err != nil {
		return fmt.Errorf("stage events: %w", err)
	}
	return nil
}

func logLines(ctx context.Context, logger *slog.Logger, msg string, lines []service.Allocation) {
	for _, l := range lines {
		logger.DebugContext(ctx, msg,
			"installment_id", l.InstallmentID,
			"sequence", l.Sequence,
			"amount", l.Amount,
			"paid_after", l.PaidAfter,
			"status", l.StatusAfter.String(),
		)
	}
}

type nopMetrics struct{}

func (nopMetrics) RecordAllocation(context.Context, decimal.Decimal, decimal.Decimal) {}
func (nopMetrics) RecordReversal(context.Context, decimal.Decimal, decimal.Decimal)   {}
func (nopMetrics) RecordWalletOverflow(context.Context, decimal.Decimal)              {}

func orNop(m port.EngineMetrics) port.EngineMetrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}

func orDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
