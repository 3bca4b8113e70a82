package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/parallax/parallax-api/internal/domain/ledger"
	"github.com/parallax/parallax-api/internal/domain/realtime"
	"github.com/parallax/parallax-api/internal/pkg/moneymotion"
	"github.com/parallax/parallax-api/internal/pkg/robokassa"
)

// Store is the part of the ledger reconciliation uses.
type Store interface {
	Reconcile(ctx context.Context, externalID string, audit ledger.AuditEvent, decide func(ledger.Transaction) ledger.Decision) (*ledger.ReconcileResult, error)
	GetTransactionByExternalID(ctx context.Context, externalID string) (*ledger.Transaction, error)
}

// Notifier receives balance changes after they commit.
type Notifier interface {
	Publish(userID uuid.UUID, ev realtime.BalanceEvent)
}

// ResultVerifier holds the credentials for RoboKassa result callbacks.
type ResultVerifier interface {
	Password2() string
	HashAlgo() robokassa.HashAlgorithm
}

type Config struct {
	MoneyMotionSecret string
	RoboKassa         ResultVerifier // nil disables the result callback
}

// Ack is returned to the provider for every accepted event.
type Ack struct {
	OK       bool   `json:"ok"`
	Message  string `json:"message,omitempty"`
	Credited int64  `json:"credited,omitempty"`
	Refunded int64  `json:"refunded,omitempty"`
}

type Service struct {
	store    Store
	notifier Notifier
	cfg      Config
}

// NewService creates the reconciler. notifier may be nil.
func NewService(store Store, notifier Notifier, cfg Config) *Service {
	return &Service{store: store, notifier: notifier, cfg: cfg}
}

// HandleEvent authenticates a MoneyMotion webhook and applies it. Nothing is
// parsed before the signature checks out.
func (s *Service) HandleEvent(ctx context.Context, raw []byte, signature string) (*Ack, error) {
	if s.cfg.MoneyMotionSecret == "" {
		log.Error().Msg("[WEBHOOK] MONEYMOTION_WEBHOOK_SECRET not configured")
		return nil, ErrSecretNotConfigured
	}
	if !moneymotion.VerifySignature(raw, signature, s.cfg.MoneyMotionSecret) {
		log.Warn().Int("body_bytes", len(raw)).Msg("[WEBHOOK] Signature mismatch")
		return nil, ErrInvalidSignature
	}

	ev, err := ParseMoneyMotion(raw)
	if err != nil {
		log.Warn().Err(err).Msg("[WEBHOOK] Malformed payload")
		return nil, err
	}
	return s.Apply(ctx, ev)
}

// Apply runs an authenticated event through the transaction state machine.
func (s *Service) Apply(ctx context.Context, ev Event) (*Ack, error) {
	logger := log.With().
		Str("event", ev.Type).
		Str("class", string(ev.Class)).
		Str("correlation_id", ev.CorrelationID).
		Logger()

	var message string
	res, err := s.store.Reconcile(ctx, ev.CorrelationID, ledger.AuditEvent{
		EventType:  ev.Type,
		EventClass: string(ev.Class),
		Payload:    ev.Payload,
	}, func(t ledger.Transaction) ledger.Decision {
		d, msg := Decide(ev, t.Status)
		message = msg
		return d
	})
	if errors.Is(err, ledger.ErrTransactionNotFound) {
		switch ev.Class {
		case ClassInfo:
			logger.Info().Msg("[WEBHOOK] Info event for unknown transaction ignored")
			return &Ack{OK: true, Message: MsgAcknowledged}, nil
		case ClassUnknown:
			logger.Warn().Msg("[WEBHOOK] Unknown event type")
			return &Ack{OK: true, Message: MsgUnknownEvent}, nil
		}
		logger.Error().Msg("[WEBHOOK] Transaction not found")
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	tx := res.Transaction
	switch res.Applied {
	case ledger.TransitionCredit:
		logger.Info().Str("user_id", tx.UserID.String()).Int64("amount_prx", tx.AmountPRX).Msg("[WEBHOOK] PRX credited")
		s.publish(tx, realtime.EventCredited, res.Balance)
		return &Ack{OK: true, Credited: tx.AmountPRX}, nil

	case ledger.TransitionRefund:
		logger.Info().Str("user_id", tx.UserID.String()).Int64("amount_prx", tx.AmountPRX).Msg("[WEBHOOK] PRX refunded")
		s.publish(tx, realtime.EventRefunded, res.Balance)
		return &Ack{OK: true, Refunded: tx.AmountPRX}, nil

	case ledger.TransitionFail:
		logger.Info().Int("failed_attempts", tx.FailedAttempts).Msg("[WEBHOOK] Transaction marked as failed")
		return &Ack{OK: true}, nil
	}

	if ev.Class == ClassUnknown {
		logger.Warn().Msg("[WEBHOOK] Unknown event type")
	} else {
		logger.Info().Str("status", string(tx.Status)).Msg("[WEBHOOK] No state change")
	}
	return &Ack{OK: true, Message: message}, nil
}

func (s *Service) publish(tx ledger.Transaction, eventType string, balance int64) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(tx.UserID, realtime.BalanceEvent{
		Type:          eventType,
		TransactionID: tx.ID.String(),
		AmountPRX:     tx.AmountPRX,
		Balance:       balance,
	})
}

// HandleRoboKassaResult authenticates a RoboKassa ResultURL callback and
// credits the matching transaction. It returns the "OK<InvId>" body the
// provider expects, also for replays of an already credited payment.
func (s *Service) HandleRoboKassaResult(ctx context.Context, form map[string][]string) (string, error) {
	if s.cfg.RoboKassa == nil || s.cfg.RoboKassa.Password2() == "" {
		log.Error().Msg("[ROBOKASSA] ROBOKASSA_PASSWORD2 not configured")
		return "", ErrSecretNotConfigured
	}

	n, err := robokassa.ParseResultForm(form)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if err := robokassa.VerifyResult(n, s.cfg.RoboKassa.Password2(), s.cfg.RoboKassa.HashAlgo()); err != nil {
		log.Warn().Err(err).Int64("inv_id", n.InvID).Msg("[ROBOKASSA] Signature mismatch")
		return "", ErrInvalidSignature
	}

	correlationID := n.CorrelationID()
	if correlationID == "" {
		return "", fmt.Errorf("%w: %v", ErrMalformedPayload, robokassa.ErrMissingCorrelation)
	}

	tx, err := s.store.GetTransactionByExternalID(ctx, correlationID)
	if err != nil {
		return "", err
	}
	if tx.InvoiceNo != n.InvID {
		return "", fmt.Errorf("%w: InvId %d does not match invoice %d", ErrMalformedPayload, n.InvID, tx.InvoiceNo)
	}
	paid, err := n.Amount()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if !robokassa.AmountsEqual(tx.USDAmount, paid) {
		log.Error().
			Str("transaction_id", tx.ID.String()).
			Str("expected", tx.USDAmount.StringFixed(2)).
			Str("paid", n.OutSum).
			Msg("[ROBOKASSA] Amount mismatch")
		return "", ErrAmountMismatch
	}

	payload, err := json.Marshal(form)
	if err != nil {
		return "", err
	}
	if _, err := s.Apply(ctx, Event{
		Type:          "result",
		Class:         ClassCredit,
		CorrelationID: correlationID,
		Payload:       payload,
	}); err != nil {
		return "", err
	}
	return "OK" + strconv.FormatInt(n.InvID, 10), nil
}
