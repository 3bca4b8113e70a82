package purchase

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/parallax/parallax-api/internal/domain/ledger"
	"github.com/parallax/parallax-api/internal/domain/realtime"
)

// Store is the part of the ledger a purchase needs.
type Store interface {
	Purchase(ctx context.Context, userID, productID uuid.UUID) (*ledger.PurchaseReceipt, error)
	ListOrders(ctx context.Context, userID uuid.UUID, limit, offset int) ([]ledger.OrderView, int, error)
	GetBalance(ctx context.Context, userID uuid.UUID) (int64, error)
}

// Notifier receives balance changes after they commit.
type Notifier interface {
	Publish(userID uuid.UUID, ev realtime.BalanceEvent)
}

type Service struct {
	store    Store
	notifier Notifier
}

// NewService creates the purchase service. notifier may be nil.
func NewService(store Store, notifier Notifier) *Service {
	return &Service{store: store, notifier: notifier}
}

// Purchase buys one unit of productID for userID.
func (s *Service) Purchase(ctx context.Context, userID, productID uuid.UUID) (*Result, error) {
	receipt, err := s.store.Purchase(ctx, userID, productID)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("product_id", productID.String()).
		Str("order_id", receipt.Order.ID.String()).
		Int64("cost_prx", receipt.Order.CostPRX).
		Int64("balance", receipt.NewBalance).
		Msg("purchase completed")

	if s.notifier != nil {
		s.notifier.Publish(userID, realtime.BalanceEvent{
			Type:      realtime.EventDebited,
			OrderID:   receipt.Order.ID.String(),
			AmountPRX: receipt.Order.CostPRX,
			Balance:   receipt.NewBalance,
		})
	}

	return &Result{
		OrderID:     receipt.Order.ID,
		ProductName: receipt.ProductName,
		Key:         receipt.Key,
		CostPRX:     receipt.Order.CostPRX,
		NewBalance:  receipt.NewBalance,
	}, nil
}

// ListOrders returns one page of the user's orders, newest first.
func (s *Service) ListOrders(ctx context.Context, userID uuid.UUID, page, limit int) ([]OrderResponse, int, error) {
	views, total, err := s.store.ListOrders(ctx, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	out := make([]OrderResponse, 0, len(views))
	for _, v := range views {
		out = append(out, OrderResponseFromView(v))
	}
	return out, total, nil
}

func (s *Service) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.store.GetBalance(ctx, userID)
}
