package topup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/parallax/parallax-api/internal/domain/ledger"
	"github.com/parallax/parallax-api/internal/pkg/gateway"
)

const defaultFailureReason = "Payment failed or was cancelled."

// Store is the part of the ledger top-up sessions use.
type Store interface {
	GetUser(ctx context.Context, id uuid.UUID) (*ledger.User, error)
	GetPaymentMethod(ctx context.Context, id uuid.UUID) (*ledger.PaymentMethod, error)
	ListPaymentMethods(ctx context.Context) ([]ledger.PaymentMethod, error)
	SetPaymentMethodEnabled(ctx context.Context, id uuid.UUID, enabled bool) (*ledger.PaymentMethod, error)
	CreateTransaction(ctx context.Context, t *ledger.Transaction) error
	SetGatewayRef(ctx context.Context, id uuid.UUID, ref string) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]ledger.Transaction, int, error)
}

// Gateways resolves provider codes to adapters.
type Gateways interface {
	Get(code string) (gateway.Adapter, error)
}

// Caller is the authenticated user making a request.
type Caller struct {
	UserID uuid.UUID
	Role   ledger.Role
}

func (c Caller) IsAdmin() bool { return c.Role == ledger.RoleAdmin }

type Config struct {
	Pricing        Pricing
	GatewayTimeout time.Duration
	FrontendURL    string
}

type Service struct {
	store    Store
	gateways Gateways
	cfg      Config
}

func NewService(store Store, gateways Gateways, cfg Config) *Service {
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 10 * time.Second
	}
	return &Service{store: store, gateways: gateways, cfg: cfg}
}

// NewCorrelationID returns a fresh id shared with the gateway, prefixed by
// the provider code.
func NewCorrelationID(code string) string {
	return code + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// StartTopUp validates the request, records a PENDING transaction and opens
// a checkout with the method's gateway. A gateway failure leaves the
// transaction PENDING and returns *GatewayFailureError.
func (s *Service) StartTopUp(ctx context.Context, caller Caller, prxAmount float64, paymentMethodID string) (*StartResult, error) {
	quote, err := s.cfg.Pricing.Quote(prxAmount)
	if err != nil {
		return nil, err
	}

	// An id that cannot name a stored method is reported as an unknown method.
	methodID, err := uuid.Parse(strings.TrimSpace(paymentMethodID))
	if err != nil {
		return nil, ledger.ErrMethodNotFound
	}
	method, err := s.store.GetPaymentMethod(ctx, methodID)
	if err != nil {
		return nil, err
	}
	if !method.Enabled {
		return nil, &MethodDisabledError{Name: method.Name}
	}

	adapter, err := s.gateways.Get(method.Code)
	if err != nil {
		log.Error().Err(err).Str("method", method.Code).Msg("Enabled payment method has no gateway adapter")
		return nil, err
	}

	user, err := s.store.GetUser(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}

	tx := &ledger.Transaction{
		UserID:     user.ID,
		AmountPRX:  quote.TotalPRX,
		BonusPRX:   quote.BonusPRX,
		USDAmount:  quote.USDAmount,
		MethodCode: method.Code,
		ExternalID: NewCorrelationID(method.Code),
		Status:     ledger.TxPending,
		Type:       ledger.TxDeposit,
	}
	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	session := Session{
		ID:            tx.ExternalID,
		TransactionID: tx.ID,
		PRXAmount:     quote.PRXAmount,
		BonusPRX:      quote.BonusPRX,
		TotalPRX:      quote.TotalPRX,
		USDAmount:     quote.USDAmount.StringFixed(2),
		Method:        method.Code,
	}

	gctx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	defer cancel()

	checkout, err := gateway.Initiate(gctx, adapter, gateway.CheckoutRequest{
		CorrelationID: tx.ExternalID,
		InvoiceNo:     tx.InvoiceNo,
		UserID:        user.ID.String(),
		UserEmail:     user.Email,
		PRXAmount:     quote.TotalPRX,
		USDAmount:     quote.USDAmount,
		Description:   fmt.Sprintf("%d PRX top-up", quote.TotalPRX),
		SuccessURL:    fmt.Sprintf("%s/topup?success=true&session=%s", s.cfg.FrontendURL, tx.ExternalID),
		CancelURL:     fmt.Sprintf("%s/topup?cancelled=true", s.cfg.FrontendURL),
	})
	if err != nil {
		log.Error().
			Err(err).
			Str("kind", string(gateway.KindOf(err))).
			Str("method", method.Code).
			Str("transaction_id", tx.ID.String()).
			Msg("Gateway checkout failed, transaction left pending")
		return nil, &GatewayFailureError{TransactionID: tx.ID.String(), Err: err}
	}

	if checkout.CheckoutID != "" && checkout.CheckoutID != tx.ExternalID {
		if err := s.store.SetGatewayRef(ctx, tx.ID, checkout.CheckoutID); err != nil {
			log.Warn().Err(err).Str("transaction_id", tx.ID.String()).Msg("Failed to store gateway checkout id")
		}
	}
	session.CheckoutID = checkout.CheckoutID

	log.Info().
		Str("user_id", user.ID.String()).
		Str("transaction_id", tx.ID.String()).
		Str("method", method.Code).
		Int64("total_prx", quote.TotalPRX).
		Str("usd", session.USDAmount).
		Msg("top-up session started")

	return &StartResult{RedirectURL: checkout.RedirectURL, Session: session}, nil
}

// Status reports the state of a transaction to its owner or an admin.
func (s *Service) Status(ctx context.Context, caller Caller, txID uuid.UUID) (*StatusResponse, error) {
	tx, err := s.store.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	if tx.UserID != caller.UserID && !caller.IsAdmin() {
		return nil, ErrForbidden
	}

	resp := &StatusResponse{
		TransactionID:  tx.ID,
		Status:         tx.Status,
		AmountPRX:      tx.AmountPRX,
		FailedAttempts: tx.FailedAttempts,
	}
	if tx.Status != ledger.TxFailed {
		return resp, nil
	}

	reason := defaultFailureReason
	if tx.FailureReason.Valid && tx.FailureReason.String != "" {
		reason = tx.FailureReason.String
	}

	if details := s.failureDetails(ctx, tx); details != nil {
		if details.Reason != "" {
			reason = details.Reason
		}
		if details.LastFourDigits != "" {
			last4 := details.LastFourDigits
			resp.LastFourDigits = &last4
		}
	}
	resp.FailureReason = &reason
	return resp, nil
}

// failureDetails asks the gateway why a checkout failed. Best effort: any
// error is logged and nil returned.
func (s *Service) failureDetails(ctx context.Context, tx *ledger.Transaction) *gateway.FailureDetails {
	adapter, err := s.gateways.Get(tx.MethodCode)
	if err != nil {
		return nil
	}
	detailer, ok := adapter.(gateway.FailureDetailer)
	if !ok {
		return nil
	}

	gctx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	defer cancel()

	details, err := detailer.FailureDetails(gctx, tx.CheckoutRef())
	if err != nil {
		log.Warn().Err(err).Str("transaction_id", tx.ID.String()).Msg("Failed to fetch failure details from gateway")
		return nil
	}
	return details
}

func (s *Service) ListTransactions(ctx context.Context, userID uuid.UUID, page, limit int) ([]TransactionResponse, int, error) {
	txs, total, err := s.store.ListTransactions(ctx, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	out := make([]TransactionResponse, 0, len(txs))
	for i := range txs {
		out = append(out, TransactionResponseFrom(&txs[i]))
	}
	return out, total, nil
}

func (s *Service) ListMethods(ctx context.Context) ([]ledger.PaymentMethod, error) {
	return s.store.ListPaymentMethods(ctx)
}

// SetMethodEnabled toggles a payment method. Enabling a method without an
// adapter is allowed but logged, since top-ups through it will fail.
func (s *Service) SetMethodEnabled(ctx context.Context, id uuid.UUID, enabled bool) (*ledger.PaymentMethod, error) {
	m, err := s.store.SetPaymentMethodEnabled(ctx, id, enabled)
	if err != nil {
		return nil, err
	}
	if enabled {
		if _, err := s.gateways.Get(m.Code); errors.Is(err, gateway.ErrNoHandlerForMethod) {
			log.Error().Str("method", m.Code).Msg("Payment method enabled without a gateway adapter")
		}
	}
	log.Info().Str("method", m.Code).Bool("enabled", enabled).Msg("payment method toggled")
	return m, nil
}
