package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/parallax/parallax-api/internal/pkg/database"
)

// Purchase spends the product price from the user's balance, claims one
// unsold stock item and records the order, all in one database transaction.
//
// The user row is locked first so that purchases by the same user serialize.
// Stock is claimed with SKIP LOCKED: concurrent buyers of the same product
// each take a different row, and a buyer who finds every remaining row taken
// gets ErrOutOfStock instead of waiting.
func (s *Store) Purchase(ctx context.Context, userID, productID uuid.UUID) (*PurchaseReceipt, error) {
	var receipt *PurchaseReceipt

	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var balance int64
		err := tx.GetContext(ctx, &balance, `SELECT prx_balance FROM users WHERE id = $1 FOR UPDATE`, userID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("lock user: %w", err)
		}

		var product Product
		err = tx.GetContext(ctx, &product, `
			SELECT id, name, description, price_prx, created_at
			FROM products WHERE id = $1`, productID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrProductNotFound
		}
		if err != nil {
			return fmt.Errorf("get product: %w", err)
		}

		if balance < product.PricePRX {
			return &InsufficientBalanceError{Needed: product.PricePRX, Have: balance}
		}

		var item StockItem
		err = tx.GetContext(ctx, &item, `
			SELECT id, product_id, content, is_sold, sold_at, created_at
			FROM stock_items
			WHERE product_id = $1 AND NOT is_sold
			ORDER BY created_at, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED`, productID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrOutOfStock
		}
		if err != nil {
			return fmt.Errorf("claim stock: %w", err)
		}

		var newBalance int64
		err = tx.GetContext(ctx, &newBalance, `
			UPDATE users SET prx_balance = prx_balance - $2
			WHERE id = $1
			RETURNING prx_balance`, userID, product.PricePRX)
		if err != nil {
			if database.IsPQCode(err, database.CodeCheckViolation) {
				return &InsufficientBalanceError{Needed: product.PricePRX, Have: balance}
			}
			return fmt.Errorf("debit balance: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE stock_items SET is_sold = true, sold_at = now()
			WHERE id = $1 AND NOT is_sold`, item.ID)
		if err != nil {
			return fmt.Errorf("mark stock sold: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("mark stock sold: %w", err)
		} else if n != 1 {
			return ErrOutOfStock
		}

		order := Order{
			UserID:      userID,
			ProductID:   product.ID,
			StockItemID: item.ID,
			CostPRX:     product.PricePRX,
		}
		err = tx.QueryRowxContext(ctx, `
			INSERT INTO orders (user_id, product_id, stock_item_id, cost_prx)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at`,
			order.UserID, order.ProductID, order.StockItemID, order.CostPRX,
		).Scan(&order.ID, &order.CreatedAt)
		if err != nil {
			if database.IsPQCode(err, database.CodeUniqueViolation) {
				return ErrOutOfStock
			}
			return fmt.Errorf("insert order: %w", err)
		}

		receipt = &PurchaseReceipt{
			Order:       order,
			ProductName: product.Name,
			Key:         item.Content,
			NewBalance:  newBalance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// ListOrders returns a page of the user's orders, newest first, and the total count.
func (s *Store) ListOrders(ctx context.Context, userID uuid.UUID, limit, offset int) ([]OrderView, int, error) {
	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM orders WHERE user_id = $1`, userID); err != nil {
		return nil, 0, err
	}

	orders := []OrderView{}
	err := s.db.SelectContext(ctx, &orders, `
		SELECT o.id, o.user_id, o.product_id, o.stock_item_id, o.cost_prx, o.created_at,
		       p.name AS product_name, si.content AS key
		FROM orders o
		JOIN products p ON p.id = o.product_id
		JOIN stock_items si ON si.id = o.stock_item_id
		WHERE o.user_id = $1
		ORDER BY o.created_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}
