package ledger

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Store is the PostgreSQL ledger. Every multi-row change runs in one
// database transaction with row locks; nothing holds a table-wide lock.
//
// Lock order: purchases lock users then stock_items; reconciliation locks
// transactions then users. No path locks users before transactions.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, `
		SELECT id, name, email, password_hash, role, prx_balance, created_at
		FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	var balance int64
	err := s.db.GetContext(ctx, &balance, `SELECT prx_balance FROM users WHERE id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	return balance, err
}

func (s *Store) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	var p Product
	err := s.db.GetContext(ctx, &p, `
		SELECT id, name, description, price_prx, created_at
		FROM products WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CountAvailableStock returns the number of unsold items for a product.
func (s *Store) CountAvailableStock(ctx context.Context, productID uuid.UUID) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM stock_items WHERE product_id = $1 AND NOT is_sold`, productID)
	return n, err
}

const paymentMethodColumns = `id, code, name, description, enabled, sort_order`

func (s *Store) GetPaymentMethod(ctx context.Context, id uuid.UUID) (*PaymentMethod, error) {
	var m PaymentMethod
	err := s.db.GetContext(ctx, &m, `SELECT `+paymentMethodColumns+` FROM payment_methods WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMethodNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) ListPaymentMethods(ctx context.Context) ([]PaymentMethod, error) {
	methods := []PaymentMethod{}
	err := s.db.SelectContext(ctx, &methods, `SELECT `+paymentMethodColumns+` FROM payment_methods ORDER BY sort_order, name`)
	return methods, err
}

func (s *Store) SetPaymentMethodEnabled(ctx context.Context, id uuid.UUID, enabled bool) (*PaymentMethod, error) {
	var m PaymentMethod
	err := s.db.GetContext(ctx, &m, `
		UPDATE payment_methods SET enabled = $2 WHERE id = $1
		RETURNING `+paymentMethodColumns, id, enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMethodNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
