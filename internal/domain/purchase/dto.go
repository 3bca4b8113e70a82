package purchase

import (
	"time"

	"github.com/google/uuid"

	"github.com/parallax/parallax-api/internal/domain/ledger"
)

// Result is the purchase response body.
type Result struct {
	OrderID     uuid.UUID `json:"orderId"`
	ProductName string    `json:"productName"`
	Key         string    `json:"key"`
	CostPRX     int64     `json:"costPrx"`
	NewBalance  int64     `json:"newBalance"`
}

type OrderResponse struct {
	ID          uuid.UUID `json:"id"`
	ProductID   uuid.UUID `json:"productId"`
	ProductName string    `json:"productName"`
	Key         string    `json:"key"`
	CostPRX     int64     `json:"costPrx"`
	CreatedAt   time.Time `json:"createdAt"`
}

func OrderResponseFromView(v ledger.OrderView) OrderResponse {
	return OrderResponse{
		ID:          v.ID,
		ProductID:   v.ProductID,
		ProductName: v.ProductName,
		Key:         v.Key,
		CostPRX:     v.CostPRX,
		CreatedAt:   v.CreatedAt,
	}
}
