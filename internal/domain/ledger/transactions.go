package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/parallax/parallax-api/internal/pkg/database"
)

const transactionColumns = `id, invoice_no, user_id, amount_prx, bonus_prx, usd_amount, method_code,
	external_id, gateway_ref, status, type, failed_attempts, failure_reason,
	created_at, updated_at, completed_at, failed_at`

// CreateTransaction inserts t as a PENDING deposit and fills the generated columns.
func (s *Store) CreateTransaction(ctx context.Context, t *Transaction) error {
	if t.Status == "" {
		t.Status = TxPending
	}
	if t.Type == "" {
		t.Type = TxDeposit
	}

	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO transactions (user_id, amount_prx, bonus_prx, usd_amount, method_code, external_id, status, type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, invoice_no, created_at, updated_at`,
		t.UserID, t.AmountPRX, t.BonusPRX, t.USDAmount, t.MethodCode, t.ExternalID, t.Status, t.Type,
	).Scan(&t.ID, &t.InvoiceNo, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if database.IsPQCode(err, database.CodeUniqueViolation) {
			return ErrDuplicateCorrelation
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// SetGatewayRef stores the provider's checkout id for a transaction.
func (s *Store) SetGatewayRef(ctx context.Context, id uuid.UUID, ref string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions SET gateway_ref = $2, updated_at = now() WHERE id = $1`, id, ref)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return s.getTransaction(ctx, s.db, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
}

func (s *Store) GetTransactionByExternalID(ctx context.Context, externalID string) (*Transaction, error) {
	return s.getTransaction(ctx, s.db, `SELECT `+transactionColumns+` FROM transactions WHERE external_id = $1`, externalID)
}

func (s *Store) getTransaction(ctx context.Context, q sqlx.QueryerContext, query string, arg interface{}) (*Transaction, error) {
	var t Transaction
	err := sqlx.GetContext(ctx, q, &t, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTransactions returns a page of the user's transactions, newest first, and the total count.
func (s *Store) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Transaction, int, error) {
	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM transactions WHERE user_id = $1`, userID); err != nil {
		return nil, 0, err
	}

	txs := []Transaction{}
	err := s.db.SelectContext(ctx, &txs, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

// Reconcile locks the transaction identified by externalID, asks decide what
// to do with it and applies the result together with an audit row. decide
// sees the row as it is under the lock, so replays and reordered deliveries
// observe each other's committed effects.
//
// A refund larger than the user's current balance is refused with
// ErrRefundExceedsBalance and nothing is written.
func (s *Store) Reconcile(ctx context.Context, externalID string, audit AuditEvent, decide func(Transaction) Decision) (*ReconcileResult, error) {
	var result *ReconcileResult

	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		t, err := s.getTransaction(ctx, tx, `SELECT `+transactionColumns+` FROM transactions WHERE external_id = $1 FOR UPDATE`, externalID)
		if err != nil {
			return err
		}

		d := decide(*t)
		if !d.Transition.ValidFrom(t.Status) {
			return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, d.Transition, t.Status)
		}

		result = &ReconcileResult{Applied: d.Transition}

		switch d.Transition {
		case TransitionCredit:
			if err := tx.GetContext(ctx, &result.Balance, `
				UPDATE users SET prx_balance = prx_balance + $2
				WHERE id = $1
				RETURNING prx_balance`, t.UserID, t.AmountPRX); err != nil {
				return fmt.Errorf("credit balance: %w", err)
			}
			err = tx.GetContext(ctx, t, `
				UPDATE transactions
				SET status = $2, completed_at = now(), updated_at = now()
				WHERE id = $1
				RETURNING `+transactionColumns, t.ID, TxCompleted)

		case TransitionFail:
			err = tx.GetContext(ctx, t, `
				UPDATE transactions
				SET status = $2, failed_attempts = failed_attempts + 1,
				    failure_reason = NULLIF($3, ''), failed_at = now(), updated_at = now()
				WHERE id = $1
				RETURNING `+transactionColumns, t.ID, TxFailed, d.FailureReason)

		case TransitionRefund:
			var balance int64
			if err := tx.GetContext(ctx, &balance, `SELECT prx_balance FROM users WHERE id = $1 FOR UPDATE`, t.UserID); err != nil {
				return fmt.Errorf("lock user: %w", err)
			}
			if balance < t.AmountPRX {
				log.Error().
					Str("transaction_id", t.ID.String()).
					Str("user_id", t.UserID.String()).
					Int64("amount_prx", t.AmountPRX).
					Int64("balance", balance).
					Msg("Refund exceeds balance, manual review required")
				return ErrRefundExceedsBalance
			}
			if err := tx.GetContext(ctx, &result.Balance, `
				UPDATE users SET prx_balance = prx_balance - $2
				WHERE id = $1
				RETURNING prx_balance`, t.UserID, t.AmountPRX); err != nil {
				return fmt.Errorf("refund balance: %w", err)
			}
			err = tx.GetContext(ctx, t, `
				UPDATE transactions
				SET status = $2, failure_reason = NULLIF($3, ''), failed_at = now(), updated_at = now()
				WHERE id = $1
				RETURNING `+transactionColumns, t.ID, TxFailed, d.FailureReason)
		}
		if err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}

		outcome := string(d.Transition)
		if outcome == "" {
			outcome = "noop"
		}
		payload := auditPayload(audit.Payload)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO payment_events (transaction_id, event_type, event_class, outcome, payload)
			VALUES ($1, $2, $3, $4, $5::jsonb)`,
			t.ID, audit.EventType, audit.EventClass, outcome, payload); err != nil {
			return fmt.Errorf("insert payment event: %w", err)
		}

		result.Transaction = *t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
