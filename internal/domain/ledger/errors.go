package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrProductNotFound      = errors.New("product not found")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrOutOfStock           = errors.New("out of stock")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrMethodNotFound       = errors.New("payment method not found")
	ErrDuplicateCorrelation = errors.New("correlation id already used")
	ErrInvalidTransition    = errors.New("invalid transaction transition")
	ErrRefundExceedsBalance = errors.New("refund exceeds current balance")
)

// InsufficientBalanceError carries the amounts for the caller.
type InsufficientBalanceError struct {
	Needed int64
	Have   int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: need %d PRX, have %d PRX", e.Needed, e.Have)
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}
