package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return NewStore(sqlx.NewDb(raw, "postgres")), mock
}

var productCols = []string{"id", "name", "description", "price_prx", "created_at"}

func TestPurchaseCommitsAllEffects(t *testing.T) {
	store, mock := newMockStore(t)
	userID, productID, itemID, orderID := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT prx_balance FROM users WHERE id = \$1 FOR UPDATE`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"prx_balance"}).AddRow(int64(1000)))
	mock.ExpectQuery(`FROM products WHERE id = \$1`).
		WithArgs(productID).
		WillReturnRows(sqlmock.NewRows(productCols).AddRow(productID.String(), "Steam Key", "", int64(350), now))
	mock.ExpectQuery(`FOR UPDATE SKIP LOCKED`).
		WithArgs(productID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "product_id", "content", "is_sold", "sold_at", "created_at"}).
			AddRow(itemID.String(), productID.String(), "STEAM-AAAA", false, nil, now))
	mock.ExpectQuery(`UPDATE users SET prx_balance = prx_balance - \$2`).
		WithArgs(userID, int64(350)).
		WillReturnRows(sqlmock.NewRows([]string{"prx_balance"}).AddRow(int64(650)))
	mock.ExpectExec(`UPDATE stock_items SET is_sold = true`).
		WithArgs(itemID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO orders`).
		WithArgs(userID, productID, itemID, int64(350)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(orderID.String(), now))
	mock.ExpectCommit()

	receipt, err := store.Purchase(context.Background(), userID, productID)
	require.NoError(t, err)
	require.Equal(t, orderID, receipt.Order.ID)
	require.Equal(t, int64(650), receipt.NewBalance)
	require.Equal(t, "STEAM-AAAA", receipt.Key)
	require.Equal(t, int64(350), receipt.Order.CostPRX)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseInsufficientBalanceRollsBack(t *testing.T) {
	store, mock := newMockStore(t)
	userID, productID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM users WHERE id = \$1 FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"prx_balance"}).AddRow(int64(100)))
	mock.ExpectQuery(`FROM products WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows(productCols).AddRow(productID.String(), "Key", "", int64(350), time.Now()))
	mock.ExpectRollback()

	_, err := store.Purchase(context.Background(), userID, productID)
	require.ErrorIs(t, err, ErrInsufficientBalance)

	var ibe *InsufficientBalanceError
	require.True(t, errors.As(err, &ibe))
	require.Equal(t, int64(350), ibe.Needed)
	require.Equal(t, int64(100), ibe.Have)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseUnknownUserAndProduct(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM users WHERE id = \$1 FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"prx_balance"}))
	mock.ExpectRollback()

	_, err := store.Purchase(context.Background(), uuid.New(), uuid.New())
	require.ErrorIs(t, err, ErrUserNotFound)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM users WHERE id = \$1 FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"prx_balance"}).AddRow(int64(100)))
	mock.ExpectQuery(`FROM products WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows(productCols))
	mock.ExpectRollback()

	_, err = store.Purchase(context.Background(), uuid.New(), uuid.New())
	require.ErrorIs(t, err, ErrProductNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseOutOfStockRollsBack(t *testing.T) {
	store, mock := newMockStore(t)
	productID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM users WHERE id = \$1 FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"prx_balance"}).AddRow(int64(1000)))
	mock.ExpectQuery(`FROM products WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows(productCols).AddRow(productID.String(), "Key", "", int64(350), time.Now()))
	mock.ExpectQuery(`FOR UPDATE SKIP LOCKED`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "product_id", "content", "is_sold", "sold_at", "created_at"}))
	mock.ExpectRollback()

	_, err := store.Purchase(context.Background(), uuid.New(), productID)
	require.ErrorIs(t, err, ErrOutOfStock)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseOrderInsertFailureRollsBackDebit(t *testing.T) {
	store, mock := newMockStore(t)
	productID, itemID := uuid.New(), uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM users WHERE id = \$1 FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"prx_balance"}).AddRow(int64(1000)))
	mock.ExpectQuery(`FROM products WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows(productCols).AddRow(productID.String(), "Key", "", int64(350), now))
	mock.ExpectQuery(`FOR UPDATE SKIP LOCKED`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "product_id", "content", "is_sold", "sold_at", "created_at"}).
			AddRow(itemID.String(), productID.String(), "K", false, nil, now))
	mock.ExpectQuery(`UPDATE users SET prx_balance`).
		WillReturnRows(sqlmock.NewRows([]string{"prx_balance"}).AddRow(int64(650)))
	mock.ExpectExec(`UPDATE stock_items`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO orders`).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := store.Purchase(context.Background(), uuid.New(), productID)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

var txCols = []string{
	"id", "invoice_no", "user_id", "amount_prx", "bonus_prx", "usd_amount", "method_code",
	"external_id", "gateway_ref", "status", "type", "failed_attempts", "failure_reason",
	"created_at", "updated_at", "completed_at", "failed_at",
}

func txRow(id, userID uuid.UUID, status TxStatus, amount int64) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(txCols).AddRow(
		id.String(), int64(1), userID.String(), amount, int64(0), "10.00", "moneymotion",
		"moneymotion_x", nil, string(status), string(TxDeposit), 0, nil,
		now, now, nil, nil,
	)
}

func TestReconcileRefundExceedingBalanceRollsBack(t *testing.T) {
	store, mock := newMockStore(t)
	txID, userID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM transactions WHERE external_id = \$1 FOR UPDATE`).
		WithArgs("moneymotion_x").
		WillReturnRows(txRow(txID, userID, TxCompleted, 1050))
	mock.ExpectQuery(`SELECT prx_balance FROM users WHERE id = \$1 FOR UPDATE`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"prx_balance"}).AddRow(int64(400)))
	mock.ExpectRollback()

	_, err := store.Reconcile(context.Background(), "moneymotion_x", AuditEvent{EventType: "refunded"}, func(Transaction) Decision {
		return Decision{Transition: TransitionRefund}
	})
	require.ErrorIs(t, err, ErrRefundExceedsBalance)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM transactions WHERE external_id = \$1 FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(txCols))
	mock.ExpectRollback()

	called := false
	_, err := store.Reconcile(context.Background(), "missing", AuditEvent{}, func(Transaction) Decision {
		called = true
		return Decision{}
	})
	require.ErrorIs(t, err, ErrTransactionNotFound)
	require.False(t, called)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileRejectsInvalidTransition(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM transactions WHERE external_id = \$1 FOR UPDATE`).
		WillReturnRows(txRow(uuid.New(), uuid.New(), TxFailed, 100))
	mock.ExpectRollback()

	_, err := store.Reconcile(context.Background(), "moneymotion_x", AuditEvent{}, func(Transaction) Decision {
		return Decision{Transition: TransitionCredit}
	})
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileNoopStillAudits(t *testing.T) {
	store, mock := newMockStore(t)
	txID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM transactions WHERE external_id = \$1 FOR UPDATE`).
		WillReturnRows(txRow(txID, uuid.New(), TxCompleted, 100))
	mock.ExpectExec(`INSERT INTO payment_events`).
		WithArgs(txID, "complete", "CREDIT", "noop", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	res, err := store.Reconcile(context.Background(), "moneymotion_x",
		AuditEvent{EventType: "complete", EventClass: "CREDIT", Payload: []byte(`{"event":"complete"}`)},
		func(Transaction) Decision { return Decision{} })
	require.NoError(t, err)
	require.Equal(t, TransitionNone, res.Applied)
	require.Equal(t, TxCompleted, res.Transaction.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionValidFrom(t *testing.T) {
	require.True(t, TransitionCredit.ValidFrom(TxPending))
	require.False(t, TransitionCredit.ValidFrom(TxCompleted))
	require.True(t, TransitionFail.ValidFrom(TxPending))
	require.False(t, TransitionFail.ValidFrom(TxCompleted))
	require.True(t, TransitionRefund.ValidFrom(TxCompleted))
	require.False(t, TransitionRefund.ValidFrom(TxPending))
	require.False(t, TransitionRefund.ValidFrom(TxFailed))
	require.True(t, TransitionNone.ValidFrom(TxFailed))
}
