package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkopo/loanbook/internal/application/dto"
	"github.com/mkopo/loanbook/internal/application/usecase"
	"github.com/mkopo/loanbook/internal/domain/valueobject"
	"github.com/mkopo/loanbook/pkg/kafka"
)

// MpesaConfirmation is the C2B confirmation forwarded by the payments gateway.
// BillRefNumber carries the loan ID the customer typed as account number.
type MpesaConfirmation struct {
	TransactionType   string `json:"TransactionType"`
	TransID           string `json:"TransID"`
	TransTime         string `json:"TransTime"`
	TransAmount       string `json:"TransAmount"`
	BusinessShortCode string `json:"BusinessShortCode"`
	BillRefNumber     string `json:"BillRefNumber"`
	MSISDN            string `json:"MSISDN"`
}

// PaymentRecorder is satisfied by *usecase.RecordPaymentUseCase.
type PaymentRecorder interface {
	Execute(ctx context.Context, req dto.RecordPaymentRequest) (dto.RecordPaymentResponse, error)
}

// MpesaHandler books M-Pesa confirmations as mpesa_repayment transactions.
// Malformed, duplicate and unroutable messages are logged and skipped;
// storage failures are retried with backoff and then surfaced to the consumer.
type MpesaHandler struct {
	recorder PaymentRecorder
	logger   *slog.Logger
	attempts int
	backoff  time.Duration
}

func NewMpesaHandler(recorder PaymentRecorder, logger *slog.Logger) *MpesaHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MpesaHandler{recorder: recorder, logger: logger, attempts: 3, backoff: 200 * time.Millisecond}
}

var errMalformed = errors.New("malformed mpesa confirmation")

// Handle matches kafka.Handler.
func (h *MpesaHandler) Handle(ctx context.Context, msg kafka.Message) error {
	req, err := decodeConfirmation(msg.Value)
	if err != nil {
		h.logger.WarnContext(ctx, "skipping mpesa confirmation", "error", err)
		return nil
	}

	wait := h.backoff
	for attempt := 1; ; attempt++ {
		resp, err := h.recorder.Execute(ctx, req)
		switch {
		case err == nil:
			h.logger.InfoContext(ctx, "mpesa payment booked",
				"receipt", req.Reference,
				"loan_id", req.LoanID,
				"transaction_id", resp.Transaction.ID,
				"overflow", resp.Transaction.OverflowAmount,
			)
			return nil
		case errors.Is(err, valueobject.ErrDuplicatePayment):
			h.logger.InfoContext(ctx, "mpesa receipt already booked", "receipt", req.Reference)
			return nil
		case usecase.IsClientError(err):
			h.logger.WarnContext(ctx, "mpesa confirmation rejected",
				"receipt", req.Reference,
				"loan_id", req.LoanID,
				"error", err,
			)
			return nil
		case attempt >= h.attempts:
			return fmt.Errorf("book mpesa receipt %s after %d attempts: %w", req.Reference, attempt, err)
		}

		h.logger.WarnContext(ctx, "retrying mpesa confirmation", "receipt", req.Reference, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
}

func decodeConfirmation(raw []byte) (dto.RecordPaymentRequest, error) {
	var c MpesaConfirmation
	if err := json.Unmarshal(raw, &c); err != nil {
		return dto.RecordPaymentRequest{}, fmt.Errorf("%w: %w", errMalformed, err)
	}
	if c.TransID == "" {
		return dto.RecordPaymentRequest{}, fmt.Errorf("%w: missing TransID", errMalformed)
	}
	loanID, err := uuid.Parse(strings.TrimSpace(c.BillRefNumber))
	if err != nil {
		return dto.RecordPaymentRequest{}, fmt.Errorf("%w: receipt %s: bill reference %q is not a loan ID", errMalformed, c.TransID, c.BillRefNumber)
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(c.TransAmount))
	if err != nil {
		return dto.RecordPaymentRequest{}, fmt.Errorf("%w: receipt %s: amount %q", errMalformed, c.TransID, c.TransAmount)
	}
	return dto.RecordPaymentRequest{
		LoanID:    loanID,
		Type:      valueobject.TransactionTypeMpesaRepayment.String(),
		Amount:    amount,
		Reference: c.TransID,
	}, nil
}
