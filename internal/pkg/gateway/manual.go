package gateway

import "context"

// ManualAdapter opens an inline checkout that an operator confirms later
// through the signed webhook. No external call is made.
type ManualAdapter struct{}

func (ManualAdapter) Code() string { return ProviderManual }

func (ManualAdapter) InitiateCheckout(_ context.Context, req CheckoutRequest) (*Checkout, error) {
	return &Checkout{CheckoutID: req.CorrelationID}, nil
}
