package model

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GenerateInstallments computes a fixed-payment monthly schedule for loanID.
//
//	monthlyRate = annualRateBps / 10_000 / 12
//	payment     = P * r * (1+r)^n / ((1+r)^n - 1)
//
// Amounts are rounded to cents. The last row absorbs rounding so principal
// parts sum exactly to principal. Row N is due N months after startDate.
func GenerateInstallments(
	loanID uuid.UUID,
	principal decimal.Decimal,
	annualRateBps int,
	termMonths int,
	startDate time.Time,
) []Installment {
	if termMonths <= 0 || !principal.IsPositive() || annualRateBps < 0 {
		return nil
	}

	monthlyRate := float64(annualRateBps) / 10_000.0 / 12.0
	monthlyRateDec := decimal.NewFromInt(int64(annualRateBps)).Div(decimal.NewFromInt(120_000))

	var payment decimal.Decimal
	if annualRateBps == 0 {
		payment = principal.Div(decimal.NewFromInt(int64(termMonths))).Round(2)
	} else {
		factor := math.Pow(1+monthlyRate, float64(termMonths))
		payment = decimal.NewFromFloat(principal.InexactFloat64() * monthlyRate * factor / (factor - 1)).Round(2)
	}

	rows := make([]Installment, 0, termMonths)
	remaining := principal

	for seq := 1; seq <= termMonths; seq++ {
		interest := remaining.Mul(monthlyRateDec).Round(2)
		principalPart := payment.Sub(interest)
		if seq == termMonths || principalPart.GreaterThan(remaining) {
			principalPart = remaining
		}
		remaining = remaining.Sub(principalPart)

		rows = append(rows, Installment{
			ID:           uuid.New(),
			LoanID:       loanID,
			Sequence:     seq,
			DueDate:      startDate.AddDate(0, seq, 0),
			PrincipalDue: principalPart,
			InterestDue:  interest,
			TotalDue:     principalPart.Add(interest),
			AmountPaid:   decimal.Zero,
			UpdatedAt:    startDate,
		})
	}

	return rows
}
