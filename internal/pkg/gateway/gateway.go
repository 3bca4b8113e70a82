// Package gateway defines the contract between top-up sessions and external
// payment providers. Every provider code maps to exactly one Adapter.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Provider codes
const (
	ProviderMoneyMotion = "moneymotion"
	ProviderRoboKassa   = "robokassa"
	ProviderManual      = "manual"
)

// ErrNoHandlerForMethod means a payment method references a provider code
// with no registered adapter. It is a configuration error, not a gateway failure.
var ErrNoHandlerForMethod = errors.New("no payment handler for method")

// Kind tags a gateway failure.
type Kind string

const (
	KindNotConfigured Kind = "not_configured"
	KindGatewayError  Kind = "gateway_error"
	KindUnreachable   Kind = "gateway_unreachable"
)

// Error is the only error type adapters return.
type Error struct {
	Kind     Kind
	Provider string
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a tagged gateway error.
func NewError(provider string, kind Kind, err error) *Error {
	return &Error{Kind: kind, Provider: provider, Err: err}
}

// KindOf returns the tag of a gateway error, or KindGatewayError for anything else.
func KindOf(err error) Kind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return KindGatewayError
}

// CheckoutRequest is what a top-up session hands to a provider.
type CheckoutRequest struct {
	CorrelationID string
	InvoiceNo     int64 // numeric invoice for providers that need one
	UserID        string
	UserEmail     string
	PRXAmount     int64
	USDAmount     decimal.Decimal
	Description   string
	SuccessURL    string
	CancelURL     string
}

// Checkout is either a redirect target or an inline checkout id.
type Checkout struct {
	RedirectURL string
	CheckoutID  string
}

// Adapter initiates checkouts with one provider.
type Adapter interface {
	Code() string
	InitiateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
}

// FailureDetails describes why a provider declined a payment.
type FailureDetails struct {
	Reason         string
	LastFourDigits string
}

// FailureDetailer is implemented by adapters that can explain a failed checkout.
type FailureDetailer interface {
	FailureDetails(ctx context.Context, checkoutID string) (*FailureDetails, error)
}

// Registry maps provider codes to adapters
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds an adapter under its own code, replacing any previous one.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Code()] = a
}

// Get resolves an adapter by provider code.
func (r *Registry) Get(code string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[code]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoHandlerForMethod, code)
	}
	return a, nil
}

// Codes returns registered provider codes, sorted.
func (r *Registry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	codes := make([]string, 0, len(r.adapters))
	for code := range r.adapters {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Initiate calls a.InitiateCheckout and normalizes every failure, panics
// included, into *Error.
func Initiate(ctx context.Context, a Adapter, req CheckoutRequest) (out *Checkout, err error) {
	defer func() {
		if p := recover(); p != nil {
			log.Error().
				Interface("panic", p).
				Str("stack", string(debug.Stack())).
				Str("provider", a.Code()).
				Msg("Gateway adapter panicked")
			out, err = nil, NewError(a.Code(), KindGatewayError, fmt.Errorf("adapter panic: %v", p))
		}
	}()

	out, err = a.InitiateCheckout(ctx, req)
	if err != nil {
		var gerr *Error
		if !errors.As(err, &gerr) {
			err = NewError(a.Code(), KindGatewayError, err)
		}
		return nil, err
	}
	if out == nil || (out.RedirectURL == "" && out.CheckoutID == "") {
		return nil, NewError(a.Code(), KindGatewayError, errors.New("empty checkout"))
	}
	return out, nil
}
