package topup

import (
	"errors"
	"fmt"

	"github.com/parallax/parallax-api/internal/pkg/gateway"
)

var (
	ErrInvalidAmount      = errors.New("invalid top-up amount")
	ErrMethodDisabled     = errors.New("payment method disabled")
	ErrForbidden          = errors.New("not allowed to view this transaction")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// MethodDisabledError names the disabled method for the client.
type MethodDisabledError struct {
	Name string
}

func (e *MethodDisabledError) Error() string {
	return fmt.Sprintf("Payment method \"%s\" is currently disabled by administrator. Please choose another method.", e.Name)
}

func (e *MethodDisabledError) Is(target error) bool {
	return target == ErrMethodDisabled
}

// GatewayFailureError is returned when checkout could not be opened. The
// transaction it refers to stays PENDING.
type GatewayFailureError struct {
	TransactionID string
	Err           error
}

func (e *GatewayFailureError) Error() string {
	return fmt.Sprintf("checkout for transaction %s: %v", e.TransactionID, e.Err)
}

func (e *GatewayFailureError) Unwrap() error { return e.Err }

func (e *GatewayFailureError) Is(target error) bool {
	return target == ErrGatewayUnavailable
}

// Diagnostic is the operator-facing description, e.g.
// "robokassa: not_configured: missing merchant login".
func (e *GatewayFailureError) Diagnostic() string {
	var gerr *gateway.Error
	if errors.As(e.Err, &gerr) {
		return gerr.Error()
	}
	return e.Err.Error()
}
