package valueobject

import "fmt"

// ---------------------------------------------------------------------------
// LoanStatus – immutable value object
// ---------------------------------------------------------------------------

// LoanStatus represents the servicing stage of a loan.
type LoanStatus struct {
	value string
}

const (
	loanStatusActive  = "ACTIVE"
	loanStatusPaidOff = "PAID_OFF"
)

var (
	LoanStatusActive  = LoanStatus{value: loanStatusActive}
	LoanStatusPaidOff = LoanStatus{value: loanStatusPaidOff}
)

var validLoanStatuses = map[string]LoanStatus{
	loanStatusActive:  LoanStatusActive,
	loanStatusPaidOff: LoanStatusPaidOff,
}

// NewLoanStatus creates a LoanStatus from a raw string.
func NewLoanStatus(s string) (LoanStatus, error) {
	v, ok := validLoanStatuses[s]
	if !ok {
		return LoanStatus{}, fmt.Errorf("invalid loan status: %q", s)
	}
	return v, nil
}

// String returns the string representation of the status.
func (s LoanStatus) String() string { return s.value }

// IsZero returns true if the status has not been initialised.
func (s LoanStatus) IsZero() bool { return s.value == "" }

// Equal returns true when both statuses carry the same value.
func (s LoanStatus) Equal(other LoanStatus) bool { return s.value == other.value }
