package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"

	"github.com/parallax/parallax-api/internal/config"
	"github.com/parallax/parallax-api/internal/domain/ledger"
	"github.com/parallax/parallax-api/internal/pkg/database"
	"github.com/parallax/parallax-api/internal/pkg/migrate"
	"github.com/parallax/parallax-api/internal/pkg/password"
)

type seedUser struct {
	Name, Email, Password string
	Role                  ledger.Role
	Balance               int64
}

type seedProduct struct {
	Name, Description string
	PricePRX          int64
	Stock             int
}

type seedMethod struct {
	Code, Name, Description string
	Enabled                 bool
	SortOrder               int
}

var users = []seedUser{
	{Name: "admin", Email: "admin@parallax.gg", Password: "admin123", Role: ledger.RoleAdmin, Balance: 99999},
	{Name: "user", Email: "user@parallax.gg", Password: "user123", Role: ledger.RoleUser, Balance: 5000},
}

var products = []seedProduct{
	{Name: "Starter Key", Description: "Single-use activation key", PricePRX: 350, Stock: 10},
	{Name: "Premium Key", Description: "30-day premium activation", PricePRX: 1200, Stock: 5},
	{Name: "Collector Bundle", Description: "Limited bundle key", PricePRX: 4500, Stock: 2},
}

var methods = []seedMethod{
	{Code: "moneymotion", Name: "Card (MoneyMotion)", Description: "Visa, Mastercard", Enabled: true, SortOrder: 1},
	{Code: "robokassa", Name: "RoboKassa", Description: "Cards, wallets, SBP", Enabled: true, SortOrder: 2},
	{Code: "manual", Name: "Manual", Description: "Credited by an operator", Enabled: true, SortOrder: 3},
	{Code: "paypal", Name: "PayPal", Description: "Not available yet", Enabled: false, SortOrder: 4},
}

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.ClosePostgres(db)

	if err := migrate.Up(ctx, db.DB); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	err = database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
		for _, u := range users {
			if err := upsertUser(ctx, tx, u); err != nil {
				return fmt.Errorf("user %s: %w", u.Email, err)
			}
		}
		for _, p := range products {
			if err := seedStock(ctx, tx, p); err != nil {
				return fmt.Errorf("product %s: %w", p.Name, err)
			}
		}
		for _, m := range methods {
			if err := upsertMethod(ctx, tx, m); err != nil {
				return fmt.Errorf("method %s: %w", m.Code, err)
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Seed failed: %v", err)
	}

	fmt.Println("--- Seeded accounts ---")
	for _, u := range users {
		fmt.Printf("%s / %s (%s, %d PRX)\n", u.Email, u.Password, u.Role, u.Balance)
	}
	fmt.Println("-----------------------")
}

func upsertUser(ctx context.Context, tx *sqlx.Tx, u seedUser) error {
	hash, err := password.Hash(u.Password)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (name, email, password_hash, role, prx_balance)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO UPDATE
		SET password_hash = EXCLUDED.password_hash, role = EXCLUDED.role, prx_balance = EXCLUDED.prx_balance`,
		u.Name, u.Email, hash, u.Role, u.Balance)
	return err
}

// seedStock creates the product once and tops its unsold stock up to p.Stock.
func seedStock(ctx context.Context, tx *sqlx.Tx, p seedProduct) error {
	var id string
	err := tx.GetContext(ctx, &id, `SELECT id FROM products WHERE name = $1`, p.Name)
	if errors.Is(err, sql.ErrNoRows) {
		err = tx.GetContext(ctx, &id, `
			INSERT INTO products (name, description, price_prx) VALUES ($1, $2, $3) RETURNING id`,
			p.Name, p.Description, p.PricePRX)
	}
	if err != nil {
		return err
	}

	var available int
	if err := tx.GetContext(ctx, &available, `SELECT COUNT(*) FROM stock_items WHERE product_id = $1 AND NOT is_sold`, id); err != nil {
		return err
	}
	for i := available; i < p.Stock; i++ {
		content := fmt.Sprintf("PRX-%s-%04d", id[:8], i+1)
		if _, err := tx.ExecContext(ctx, `INSERT INTO stock_items (product_id, content) VALUES ($1, $2)`, id, content); err != nil {
			return err
		}
	}
	return nil
}

func upsertMethod(ctx context.Context, tx *sqlx.Tx, m seedMethod) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payment_methods (code, name, description, enabled, sort_order)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO UPDATE
		SET name = EXCLUDED.name, description = EXCLUDED.description, sort_order = EXCLUDED.sort_order`,
		m.Code, m.Name, m.Description, m.Enabled, m.SortOrder)
	return err
}
