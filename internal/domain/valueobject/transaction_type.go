package valueobject

import "fmt"

// TransactionType classifies a money movement recorded against a loan.
type TransactionType struct {
	value string
}

const (
	transactionTypeRepayment       = "repayment"
	transactionTypeMpesaRepayment  = "mpesa_repayment"
	transactionTypeDrawDownPayment = "draw_down_payment"
	transactionTypeDisbursement    = "disbursement"
)

var (
	TransactionTypeRepayment       = TransactionType{value: transactionTypeRepayment}
	TransactionTypeMpesaRepayment  = TransactionType{value: transactionTypeMpesaRepayment}
	TransactionTypeDrawDownPayment = TransactionType{value: transactionTypeDrawDownPayment}
	TransactionTypeDisbursement    = TransactionType{value: transactionTypeDisbursement}
)

var validTransactionTypes = map[string]TransactionType{
	transactionTypeRepayment:       TransactionTypeRepayment,
	transactionTypeMpesaRepayment:  TransactionTypeMpesaRepayment,
	transactionTypeDrawDownPayment: TransactionTypeDrawDownPayment,
	transactionTypeDisbursement:    TransactionTypeDisbursement,
}

// NewTransactionType creates a TransactionType from a raw string.
func NewTransactionType(s string) (TransactionType, error) {
	v, ok := validTransactionTypes[s]
	if !ok {
		return TransactionType{}, fmt.Errorf("invalid transaction type: %q", s)
	}
	return v, nil
}

// AllocatesToSchedule reports whether a transaction of this type is applied
// against the installment schedule (and can therefore be reverted).
func (t TransactionType) AllocatesToSchedule() bool {
	switch t.value {
	case transactionTypeRepayment, transactionTypeMpesaRepayment, transactionTypeDrawDownPayment:
		return true
	default:
		return false
	}
}

// String returns the string representation of the type.
func (t TransactionType) String() string { return t.value }

// IsZero returns true if the type has not been initialised.
func (t TransactionType) IsZero() bool { return t.value == "" }

// Equal returns true when both types carry the same value.
func (t TransactionType) Equal(other TransactionType) bool { return t.value == other.value }
