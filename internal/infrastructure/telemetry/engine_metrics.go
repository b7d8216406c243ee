// Package telemetry records allocation engine outcomes as OpenTelemetry metrics.
package telemetry

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mkopo/loanbook/internal/domain/port"
)

var ErrMeterNil = errors.New("telemetry: meter is nil")

var (
	attrOutcome = attribute.Key("outcome")

	outcomeFull     = attrOutcome.String("full")
	outcomeResidual = attrOutcome.String("residual")
	outcomeShort    = attrOutcome.String("unreversed")
)

// EngineMetrics implements port.EngineMetrics.
type EngineMetrics struct {
	allocations    metric.Int64Counter
	allocated      metric.Float64Counter
	residual       metric.Float64Counter
	reversals      metric.Int64Counter
	reversed       metric.Float64Counter
	unreversed     metric.Float64Counter
	walletOverflow metric.Float64Counter
}

// NewEngineMetrics registers the engine instruments on meter.
func NewEngineMetrics(meter metric.Meter) (*EngineMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &EngineMetrics{}
	var err error

	if m.allocations, err = meter.Int64Counter("loanbook_allocations_total",
		metric.WithDescription("Payments allocated to loan schedules"),
		metric.WithUnit("{allocations}"),
	); err != nil {
		return nil, fmt.Errorf("create allocations counter: %w", err)
	}
	if m.allocated, err = meter.Float64Counter("loanbook_allocated_amount_total",
		metric.WithDescription("Money applied to installments"),
	); err != nil {
		return nil, fmt.Errorf("create allocated counter: %w", err)
	}
	if m.residual, err = meter.Float64Counter("loanbook_residual_amount_total",
		metric.WithDescription("Money left over after a schedule was fully covered"),
	); err != nil {
		return nil, fmt.Errorf("create residual counter: %w", err)
	}
	if m.reversals, err = meter.Int64Counter("loanbook_reversals_total",
		metric.WithDescription("Reversals applied to loan schedules"),
		metric.WithUnit("{reversals}"),
	); err != nil {
		return nil, fmt.Errorf("create reversals counter: %w", err)
	}
	if m.reversed, err = meter.Float64Counter("loanbook_reversed_amount_total",
		metric.WithDescription("Money taken back off installments"),
	); err != nil {
		return nil, fmt.Errorf("create reversed counter: %w", err)
	}
	if m.unreversed, err = meter.Float64Counter("loanbook_unreversed_amount_total",
		metric.WithDescription("Reversal amounts that exceeded what had been paid"),
	); err != nil {
		return nil, fmt.Errorf("create unreversed counter: %w", err)
	}
	if m.walletOverflow, err = meter.Float64Counter("loanbook_wallet_overflow_total",
		metric.WithDescription("Overpayments credited to client wallets"),
	); err != nil {
		return nil, fmt.Errorf("create wallet overflow counter: %w", err)
	}

	return m, nil
}

// RecordAllocation is a no-op on a nil receiver, as are the other Record methods.
func (m *EngineMetrics) RecordAllocation(ctx context.Context, applied, residual decimal.Decimal) {
	if m == nil {
		return
	}
	outcome := outcomeFull
	if residual.IsPositive() {
		outcome = outcomeResidual
	}
	m.allocations.Add(ctx, 1, metric.WithAttributes(outcome))
	m.allocated.Add(ctx, applied.InexactFloat64())
	if residual.IsPositive() {
		m.residual.Add(ctx, residual.InexactFloat64())
	}
}

func (m *EngineMetrics) RecordReversal(ctx context.Context, reversed, unreversed decimal.Decimal) {
	if m == nil {
		return
	}
	outcome := outcomeFull
	if unreversed.IsPositive() {
		outcome = outcomeShort
	}
	m.reversals.Add(ctx, 1, metric.WithAttributes(outcome))
	m.reversed.Add(ctx, reversed.InexactFloat64())
	if unreversed.IsPositive() {
		m.unreversed.Add(ctx, unreversed.InexactFloat64())
	}
}

func (m *EngineMetrics) RecordWalletOverflow(ctx context.Context, amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.walletOverflow.Add(ctx, amount.InexactFloat64())
}

var _ port.EngineMetrics = (*EngineMetrics)(nil)
