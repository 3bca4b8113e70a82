package ledger

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Role of an account
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// User owns a PRX balance. Only purchases and reconciled payments change it.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         Role      `db:"role" json:"role"`
	PRXBalance   int64     `db:"prx_balance" json:"prxBalance"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

type Product struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	PricePRX    int64     `db:"price_prx" json:"pricePrx"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// StockItem is a single-use key. Once sold it belongs to exactly one Order.
type StockItem struct {
	ID        uuid.UUID    `db:"id"`
	ProductID uuid.UUID    `db:"product_id"`
	Content   string       `db:"content"`
	IsSold    bool         `db:"is_sold"`
	SoldAt    sql.NullTime `db:"sold_at"`
	CreatedAt time.Time    `db:"created_at"`
}

// Order is immutable. CostPRX snapshots the price at purchase time.
type Order struct {
	ID          uuid.UUID `db:"id" json:"id"`
	UserID      uuid.UUID `db:"user_id" json:"userId"`
	ProductID   uuid.UUID `db:"product_id" json:"productId"`
	StockItemID uuid.UUID `db:"stock_item_id" json:"stockItemId"`
	CostPRX     int64     `db:"cost_prx" json:"costPrx"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// OrderView is an order joined with what the buyer received.
type OrderView struct {
	Order
	ProductName string `db:"product_name" json:"productName"`
	Key         string `db:"key" json:"key"`
}

// PurchaseReceipt is the result of a committed purchase.
type PurchaseReceipt struct {
	Order       Order
	ProductName string
	Key         string
	NewBalance  int64
}

type TxStatus string

const (
	TxPending   TxStatus = "PENDING"
	TxCompleted TxStatus = "COMPLETED"
	TxFailed    TxStatus = "FAILED"
)

type TxType string

const (
	TxDeposit    TxType = "DEPOSIT"
	TxWithdrawal TxType = "WITHDRAWAL"
)

// Transaction is a top-up attempt. ExternalID is the correlation id shared
// with the gateway.
type Transaction struct {
	ID             uuid.UUID       `db:"id"`
	InvoiceNo      int64           `db:"invoice_no"`
	UserID         uuid.UUID       `db:"user_id"`
	AmountPRX      int64           `db:"amount_prx"`
	BonusPRX       int64           `db:"bonus_prx"`
	USDAmount      decimal.Decimal `db:"usd_amount"`
	MethodCode     string          `db:"method_code"`
	ExternalID     string          `db:"external_id"`
	GatewayRef     sql.NullString  `db:"gateway_ref"`
	Status         TxStatus        `db:"status"`
	Type           TxType          `db:"type"`
	FailedAttempts int             `db:"failed_attempts"`
	FailureReason  sql.NullString  `db:"failure_reason"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
	CompletedAt    sql.NullTime    `db:"completed_at"`
	FailedAt       sql.NullTime    `db:"failed_at"`
}

// CheckoutRef is the id the gateway knows this transaction by.
func (t *Transaction) CheckoutRef() string {
	if t.GatewayRef.Valid && t.GatewayRef.String != "" {
		return t.GatewayRef.String
	}
	return t.ExternalID
}

type PaymentMethod struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Code        string    `db:"code" json:"code"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Enabled     bool      `db:"enabled" json:"enabled"`
	SortOrder   int       `db:"sort_order" json:"sortOrder"`
}

// Transition is a state change applied by reconciliation.
type Transition string

const (
	TransitionNone   Transition = ""
	TransitionCredit Transition = "credit" // PENDING -> COMPLETED, balance += amount
	TransitionFail   Transition = "fail"   // PENDING -> FAILED
	TransitionRefund Transition = "refund" // COMPLETED -> FAILED, balance -= amount
)

// ValidFrom reports whether t may be applied to a transaction in status s.
func (t Transition) ValidFrom(s TxStatus) bool {
	switch t {
	case TransitionCredit, TransitionFail:
		return s == TxPending
	case TransitionRefund:
		return s == TxCompleted
	case TransitionNone:
		return true
	}
	return false
}

// Decision is what reconciliation should do with a locked transaction.
type Decision struct {
	Transition    Transition
	FailureReason string
}

// AuditEvent is recorded for every event matched to a transaction.
type AuditEvent struct {
	EventType  string
	EventClass string
	Payload    []byte
}

// ReconcileResult describes the committed outcome of Reconcile.
type ReconcileResult struct {
	Transaction Transaction // state after the transition
	Applied     Transition
	Balance     int64 // user balance after the transition, when one was applied
}
