package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/facesheet360/carecoins/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var payoutRowColumns = []string{
	"id", "account_id", "kind", "amount", "fiat_amount", "currency", "rate", "payment_method", "bill_type",
	"recipient", "recipient_account", "details", "status", "external_reference", "ledger_entry_id", "created_at", "updated_at",
}

func newMockPayoutStore(t *testing.T) (*PostgresPayoutStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresPayoutStore(db), mock
}

func TestPostgresPayoutStore_Create(t *testing.T) {
	store, mock := newMockPayoutStore(t)
	p := testPayout()
	method := "paypal"
	p.PaymentMethod = &method
	p.CreatedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO payouts").
		WithArgs(p.ID, "alice", "cash-out", int64(1250), "12.5", "USD", sqlmock.AnyArg(), "paypal", nil,
			nil, nil, nil, "pending", p.ExternalReference, int64(77), p.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Create(context.Background(), nil, p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPayoutStore_GetByReference(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("maps nullable columns", func(t *testing.T) {
		store, mock := newMockPayoutStore(t)
		rows := sqlmock.NewRows(payoutRowColumns).AddRow(
			"p1", "alice", "bill-payment", 300, "3.00", "USD", "0.01", nil, "pharmacy",
			"Corner Pharmacy", "RX-0099", []byte(`{"invoice":"A7"}`), "pending", "PO1", 9, now, now)
		mock.ExpectQuery("FROM payouts WHERE external_reference = \\$1").WithArgs("PO1").WillReturnRows(rows)

		p, err := store.GetByReference(ctx, "PO1")
		require.NoError(t, err)
		assert.Equal(t, models.PayoutBillPayment, p.Kind)
		assert.Nil(t, p.PaymentMethod)
		assert.Equal(t, "pharmacy", models.Deref(p.BillType))
		assert.Equal(t, "A7", p.Details["invoice"])
		assert.Equal(t, "3", p.FiatAmount.String())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown reference", func(t *testing.T) {
		store, mock := newMockPayoutStore(t)
		mock.ExpectQuery("FROM payouts WHERE external_reference = \\$1").WithArgs("PO2").
			WillReturnRows(sqlmock.NewRows(payoutRowColumns))

		_, err := store.GetByReference(ctx, "PO2")
		assert.ErrorIs(t, err, ErrPayoutNotFound)
	})
}

func TestPostgresPayoutStore_Settle(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	store, mock := newMockPayoutStore(t)
	mock.ExpectExec("UPDATE payouts SET status = \\$2, updated_at = \\$3 WHERE external_reference = \\$1 AND status = 'pending'").
		WithArgs("PO1", "completed", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE payouts SET status").
		WithArgs("PO1", "failed", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	moved, err := store.Settle(ctx, "PO1", models.PayoutCompleted, at)
	require.NoError(t, err)
	assert.True(t, moved)

	moved, err = store.Settle(ctx, "PO1", models.PayoutFailed, at)
	require.NoError(t, err)
	assert.False(t, moved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPayoutStore_ListByAccount(t *testing.T) {
	store, mock := newMockPayoutStore(t)
	mock.ExpectQuery("FROM payouts WHERE account_id = \\$1 ORDER BY created_at DESC").
		WithArgs("alice", int64(defaultPageSize), int64(0)).
		WillReturnRows(sqlmock.NewRows(payoutRowColumns))

	payouts, err := store.ListByAccount(context.Background(), "alice", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, payouts)
	assert.NotNil(t, payouts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
