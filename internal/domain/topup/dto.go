package topup

import (
	"time"

	"github.com/google/uuid"

	"github.com/parallax/parallax-api/internal/domain/ledger"
)

type StartRequest struct {
	PRXAmount       float64 `json:"prxAmount"`
	PaymentMethodID string  `json:"paymentMethodId"`
}

type SetMethodRequest struct {
	ID      string `json:"id" validate:"required,uuid"`
	Enabled *bool  `json:"enabled" validate:"required"`
}

// Session describes a started top-up. ID is the correlation id the gateway
// echoes back; TransactionID is what the status endpoint takes.
type Session struct {
	ID            string    `json:"id"`
	TransactionID uuid.UUID `json:"transactionId"`
	PRXAmount     int64     `json:"prxAmount"`
	BonusPRX      int64     `json:"bonusPrx"`
	TotalPRX      int64     `json:"totalPrx"`
	USDAmount     string    `json:"usdAmount"`
	Method        string    `json:"method"`
	CheckoutID    string    `json:"checkoutId,omitempty"`
}

type StartResult struct {
	RedirectURL string  `json:"redirectUrl,omitempty"`
	Session     Session `json:"session"`
}

type StatusResponse struct {
	TransactionID  uuid.UUID       `json:"transactionId"`
	Status         ledger.TxStatus `json:"status"`
	AmountPRX      int64           `json:"amountPrx"`
	FailureReason  *string         `json:"failureReason"`
	FailedAttempts int             `json:"failedAttempts"`
	LastFourDigits *string         `json:"lastFourDigits"`
}

type TransactionResponse struct {
	ID             uuid.UUID       `json:"id"`
	AmountPRX      int64           `json:"amountPrx"`
	BonusPRX       int64           `json:"bonusPrx"`
	USDAmount      string          `json:"usdAmount"`
	Method         string          `json:"method"`
	Status         ledger.TxStatus `json:"status"`
	Type           ledger.TxType   `json:"type"`
	FailedAttempts int             `json:"failedAttempts"`
	FailureReason  *string         `json:"failureReason,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	CompletedAt    *time.Time      `json:"completedAt,omitempty"`
}

func TransactionResponseFrom(t *ledger.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:             t.ID,
		AmountPRX:      t.AmountPRX,
		BonusPRX:       t.BonusPRX,
		USDAmount:      t.USDAmount.StringFixed(2),
		Method:         t.MethodCode,
		Status:         t.Status,
		Type:           t.Type,
		FailedAttempts: t.FailedAttempts,
		CreatedAt:      t.CreatedAt,
	}
	if t.FailureReason.Valid {
		resp.FailureReason = &t.FailureReason.String
	}
	if t.CompletedAt.Valid {
		resp.CompletedAt = &t.CompletedAt.Time
	}
	return resp
}
