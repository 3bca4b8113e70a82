package webhook

import "errors"

var (
	ErrSecretNotConfigured = errors.New("webhook signing secret not configured")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrMalformedPayload    = errors.New("malformed webhook payload")
	ErrAmountMismatch      = errors.New("paid amount does not match transaction")
)
