package usecase

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/mkopo/loanbook/internal/application/usecase"

var tracer = otel.Tracer(tracerName)

func startSpan(ctx context.Context, name string, loanID uuid.UUID, amount decimal.Decimal) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("loan_id", loanID.String()),
		attribute.String("amount", amount.String()),
	))
}

// endSpan marks the span failed when err is set and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
