package valueobject

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// InstallmentStatus – derived value object
// ---------------------------------------------------------------------------

// InstallmentStatus is the repayment state of a single schedule row. It is
// always derived from the amount paid against the amount due; there is no way
// to construct one from outside this package except by parsing a persisted
// value.
type InstallmentStatus struct {
	value string
}

const (
	installmentStatusPending = "pending"
	installmentStatusPartial = "partial"
	installmentStatusPaid    = "paid"
)

var (
	InstallmentStatusPending = InstallmentStatus{value: installmentStatusPending}
	InstallmentStatusPartial = InstallmentStatus{value: installmentStatusPartial}
	InstallmentStatusPaid    = InstallmentStatus{value: installmentStatusPaid}
)

var validInstallmentStatuses = map[string]InstallmentStatus{
	installmentStatusPending: InstallmentStatusPending,
	installmentStatusPartial: InstallmentStatusPartial,
	installmentStatusPaid:    InstallmentStatusPaid,
}

// DeriveInstallmentStatus maps (amountPaid, totalDue) to exactly one status:
//
//	amountPaid <= 0          -> pending
//	amountPaid >= totalDue   -> paid
//	otherwise                -> partial
//
// A zero-amount row with nothing paid is pending, not paid.
func DeriveInstallmentStatus(amountPaid, totalDue decimal.Decimal) InstallmentStatus {
	switch {
	case amountPaid.LessThanOrEqual(decimal.Zero):
		return InstallmentStatusPending
	case amountPaid.GreaterThanOrEqual(totalDue):
		return InstallmentStatusPaid
	default:
		return InstallmentStatusPartial
	}
}

// ParseInstallmentStatus reads a persisted status. Callers must still re-derive
// the status from amounts; this is only used to validate stored data.
func ParseInstallmentStatus(s string) (InstallmentStatus, error) {
	v, ok := validInstallmentStatuses[s]
	if !ok {
		return InstallmentStatus{}, fmt.Errorf("invalid installment status: %q", s)
	}
	return v, nil
}

// String returns the string representation of the status.
func (s InstallmentStatus) String() string { return s.value }

// IsZero returns true if the status has not been initialised.
func (s InstallmentStatus) IsZero() bool { return s.value == "" }

// Equal returns true when both statuses carry the same value.
func (s InstallmentStatus) Equal(other InstallmentStatus) bool { return s.value == other.value }
