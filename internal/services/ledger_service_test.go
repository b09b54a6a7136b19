package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/facesheet360/carecoins/internal/models"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	lockQuery   = "SELECT id, care_coins_balance, lifetime_earned, version FROM users WHERE id = \\$1 FOR UPDATE"
	updateQuery = "UPDATE users SET care_coins_balance = \\$1, lifetime_earned = \\$2, version = version \\+ 1, updated_at = \\$3 WHERE id = \\$4 AND version = \\$5"
	insertQuery = "INSERT INTO care_coins_transactions"
	keyQuery    = "SELECT (.+) FROM care_coins_transactions WHERE idempotency_key = \\$1"
)

var lockColumns = []string{"id", "care_coins_balance", "lifetime_earned", "version"}

func newMockLedger(t *testing.T) (*PostgresLedgerStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresLedgerStore(db), mock
}

func transferEntry(from, to string, amount int64) *models.LedgerEntry {
	return &models.LedgerEntry{
		FromAccount: models.StringPtr(from),
		ToAccount:   models.StringPtr(to),
		Amount:      amount,
		Kind:        models.EntryTransfer,
		Description: "lunch",
	}
}

func TestPostgresLedgerStore_AppendEntry(t *testing.T) {
	ctx := context.Background()

	t.Run("transfer locks in id order and moves balance", func(t *testing.T) {
		store, mock := newMockLedger(t)

		mock.ExpectBegin()
		// "alice" sorts before "bob" even though bob is the sender.
		mock.ExpectQuery(lockQuery).WithArgs("alice").
			WillReturnRows(sqlmock.NewRows(lockColumns).AddRow("alice", 200, 200, 3))
		mock.ExpectQuery(lockQuery).WithArgs("bob").
			WillReturnRows(sqlmock.NewRows(lockColumns).AddRow("bob", 500, 900, 7))
		mock.ExpectExec(updateQuery).
			WithArgs(int64(400), int64(900), sqlmock.AnyArg(), "bob", 7).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(updateQuery).
			WithArgs(int64(300), int64(300), sqlmock.AnyArg(), "alice", 3).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(insertQuery).
			WithArgs("bob", "alice", int64(100), "transfer", "lunch", nil, nil, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
		mock.ExpectCommit()

		entry, err := store.AppendEntry(ctx, transferEntry("bob", "alice", 100))
		require.NoError(t, err)
		assert.Equal(t, int64(11), entry.ID)
		assert.Equal(t, models.EntryTransfer, entry.Kind)
		assert.False(t, entry.CreatedAt.IsZero())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("hook writes inside the ledger transaction", func(t *testing.T) {
		store, mock := newMockLedger(t)

		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).WithArgs("alice").
			WillReturnRows(sqlmock.NewRows(lockColumns).AddRow("alice", 200, 200, 3))
		mock.ExpectExec(updateQuery).
			WithArgs(int64(150), int64(200), sqlmock.AnyArg(), "alice", 3).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(insertQuery).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(12))
		mock.ExpectExec("INSERT INTO payouts").WithArgs(int64(12)).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		burn := &models.LedgerEntry{FromAccount: models.StringPtr("alice"), Amount: 50, Kind: models.EntryCashOut}
		entry, err := store.AppendEntryWith(ctx, burn, func(ctx context.Context, q Execer, e *models.LedgerEntry) error {
			_, err := q.ExecContext(ctx, `INSERT INTO payouts (ledger_entry_id) VALUES ($1)`, e.ID)
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, int64(12), entry.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("hook failure rolls back the entry", func(t *testing.T) {
		store, mock := newMockLedger(t)

		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).WithArgs("alice").
			WillReturnRows(sqlmock.NewRows(lockColumns).AddRow("alice", 200, 200, 3))
		mock.ExpectExec(updateQuery).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(insertQuery).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(13))
		mock.ExpectRollback()

		burn := &models.LedgerEntry{FromAccount: models.StringPtr("alice"), Amount: 50, Kind: models.EntryCashOut}
		entry, err := store.AppendEntryWith(ctx, burn, func(context.Context, Execer, *models.LedgerEntry) error {
			return errors.New("payout insert failed")
		})
		assert.Nil(t, entry)
		assert.ErrorContains(t, err, "payout insert failed")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient balance rolls back", func(t *testing.T) {
		store, mock := newMockLedger(t)

		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).WithArgs("alice").
			WillReturnRows(sqlmock.NewRows(lockColumns).AddRow("alice", 50, 50, 1))
		mock.ExpectQuery(lockQuery).WithArgs("bob").
			WillReturnRows(sqlmock.NewRows(lockColumns).AddRow("bob", 0, 0, 1))
		mock.ExpectRollback()

		entry, err := store.AppendEntry(ctx, transferEntry("alice", "bob", 60))
		assert.Nil(t, entry)
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown account", func(t *testing.T) {
		store, mock := newMockLedger(t)

		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).WithArgs("alice").WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, err := store.AppendEntry(ctx, transferEntry("alice", "zed", 10))
		assert.ErrorIs(t, err, ErrAccountNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reward credits receiver only", func(t *testing.T) {
		store, mock := newMockLedger(t)
		category := "patient_care"

		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).WithArgs("alice").
			WillReturnRows(sqlmock.NewRows(lockColumns).AddRow("alice", 0, 0, 1))
		mock.ExpectExec(updateQuery).
			WithArgs(int64(10), int64(10), sqlmock.AnyArg(), "alice", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(insertQuery).
			WithArgs(nil, "alice", int64(10), "reward", "checkup", category, nil, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectCommit()

		entry, err := store.AppendEntry(ctx, &models.LedgerEntry{
			ToAccount:   models.StringPtr("alice"),
			Amount:      10,
			Kind:        models.EntryReward,
			Category:    &category,
			Description: "checkup",
		})
		require.NoError(t, err)
		assert.Nil(t, entry.FromAccount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("replayed idempotency key returns stored entry", func(t *testing.T) {
		store, mock := newMockLedger(t)
		key := "transfer-abc"

		mock.ExpectBegin()
		mock.ExpectQuery(keyQuery).WithArgs(key).
			WillReturnRows(sqlmock.NewRows([]string{"id", "from_user_id", "to_user_id", "amount", "transaction_type", "description", "category", "idempotency_key", "created_at"}).
				AddRow(5, "bob", "alice", 100, "transfer", "lunch", nil, key, time.Now()))
		mock.ExpectRollback()

		e := transferEntry("bob", "alice", 100)
		e.IdempotencyKey = &key
		entry, err := store.AppendEntry(ctx, e)
		require.NoError(t, err)
		assert.Equal(t, int64(5), entry.ID)
		assert.Equal(t, "bob", models.Deref(entry.FromAccount))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("replayed key with a different request conflicts", func(t *testing.T) {
		store, mock := newMockLedger(t)
		key := "transfer:carol:k1"

		mock.ExpectBegin()
		mock.ExpectQuery(keyQuery).WithArgs(key).
			WillReturnRows(sqlmock.NewRows([]string{"id", "from_user_id", "to_user_id", "amount", "transaction_type", "description", "category", "idempotency_key", "created_at"}).
				AddRow(5, "bob", "alice", 100, "transfer", "lunch", nil, key, time.Now()))
		mock.ExpectRollback()

		e := transferEntry("carol", "alice", 70)
		e.IdempotencyKey = &key
		entry, err := store.AppendEntry(ctx, e)
		assert.ErrorIs(t, err, ErrIdempotencyConflict)
		assert.Nil(t, entry)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("concurrent duplicate key resolves to winner", func(t *testing.T) {
		store, mock := newMockLedger(t)
		key := "transfer-race"

		mock.ExpectBegin()
		mock.ExpectQuery(keyQuery).WithArgs(key).WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(lockQuery).WithArgs("alice").
			WillReturnRows(sqlmock.NewRows(lockColumns).AddRow("alice", 0, 0, 1))
		mock.ExpectQuery(lockQuery).WithArgs("bob").
			WillReturnRows(sqlmock.NewRows(lockColumns).AddRow("bob", 100, 100, 1))
		mock.ExpectExec(updateQuery).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(updateQuery).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(insertQuery).WillReturnError(&pq.Error{Code: "23505"})
		mock.ExpectRollback()
		mock.ExpectQuery(keyQuery).WithArgs(key).
			WillReturnRows(sqlmock.NewRows([]string{"id", "from_user_id", "to_user_id", "amount", "transaction_type", "description", "category", "idempotency_key", "created_at"}).
				AddRow(9, "bob", "alice", 100, "transfer", "lunch", nil, key, time.Now()))

		e := transferEntry("bob", "alice", 100)
		e.IdempotencyKey = &key
		entry, err := store.AppendEntry(ctx, e)
		require.NoError(t, err)
		assert.Equal(t, int64(9), entry.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid entries never reach the database", func(t *testing.T) {
		store, mock := newMockLedger(t)

		cases := map[string]*models.LedgerEntry{
			"zero amount":   transferEntry("a", "b", 0),
			"self":          transferEntry("a", "a", 5),
			"no endpoints":  {Amount: 5, Kind: models.EntryTransfer},
			"minted payout": {ToAccount: models.StringPtr("a"), Amount: 5, Kind: models.EntryCashOut},
			"reward sender": {FromAccount: models.StringPtr("b"), ToAccount: models.StringPtr("a"), Amount: 5, Kind: models.EntryReward},
			"unknown kind":  {FromAccount: models.StringPtr("a"), ToAccount: models.StringPtr("b"), Amount: 5, Kind: "gift"},
			"half transfer": {FromAccount: models.StringPtr("a"), Amount: 5, Kind: models.EntryTransfer},
			"empty sender":  {FromAccount: new(string), ToAccount: models.StringPtr("b"), Amount: 5, Kind: models.EntryTransfer},
		}
		for name, e := range cases {
			_, err := store.AppendEntry(ctx, e)
			assert.ErrorIs(t, err, ErrInvalidEntry, name)
		}
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresLedgerStore_updateAccountBalance(t *testing.T) {
	store, mock := newMockLedger(t)

	t.Run("optimistic lock failure", func(t *testing.T) {
		mock.ExpectBegin()
		tx, err := store.db.Begin()
		require.NoError(t, err)

		mock.ExpectExec(updateQuery).
			WithArgs(int64(4000), int64(5000), sqlmock.AnyArg(), "account1", 1).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err = store.updateAccountBalance(context.Background(), tx, "account1", 4000, 5000, 1, time.Now())
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "optimistic lock failed")
	})
}

func TestPostgresLedgerStore_Reads(t *testing.T) {
	ctx := context.Background()

	t.Run("balance of unknown account", func(t *testing.T) {
		store, mock := newMockLedger(t)
		mock.ExpectQuery("SELECT care_coins_balance FROM users WHERE id = \\$1").
			WithArgs("ghost").WillReturnError(sql.ErrNoRows)

		_, err := store.GetBalance(ctx, "ghost")
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})

	t.Run("balance of fresh account is zero", func(t *testing.T) {
		store, mock := newMockLedger(t)
		mock.ExpectQuery("SELECT care_coins_balance FROM users WHERE id = \\$1").
			WithArgs("new").WillReturnRows(sqlmock.NewRows([]string{"care_coins_balance"}).AddRow(0))

		balance, err := store.GetBalance(ctx, "new")
		require.NoError(t, err)
		assert.Zero(t, balance)
	})

	t.Run("list entries pages most recent first", func(t *testing.T) {
		store, mock := newMockLedger(t)
		now := time.Now()

		mock.ExpectQuery("SELECT EXISTS").WithArgs("alice").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectQuery("FROM care_coins_transactions WHERE from_user_id = \\$1 OR to_user_id = \\$1 ORDER BY created_at DESC, id DESC LIMIT \\$2 OFFSET \\$3").
			WithArgs("alice", 200, 10).
			WillReturnRows(sqlmock.NewRows([]string{"id", "from_user_id", "to_user_id", "amount", "transaction_type", "description", "category", "idempotency_key", "created_at"}).
				AddRow(3, "alice", nil, 20, "purchase", "salad", nil, nil, now).
				AddRow(2, nil, "alice", 100, "welcome", "welcome bonus", nil, "welcome:alice", now.Add(-time.Hour)))

		entries, err := store.ListEntries(ctx, "alice", 500, 10)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, int64(3), entries[0].ID)
		assert.Nil(t, entries[0].ToAccount)
		assert.Nil(t, entries[1].FromAccount)
		assert.Equal(t, "welcome:alice", models.Deref(entries[1].IdempotencyKey))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("list entries of unknown account", func(t *testing.T) {
		store, mock := newMockLedger(t)
		mock.ExpectQuery("SELECT EXISTS").WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		_, err := store.ListEntries(ctx, "ghost", 0, 0)
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})

	t.Run("reconcile reports drift", func(t *testing.T) {
		store, mock := newMockLedger(t)
		mock.ExpectQuery("SELECT u.id, u.care_coins_balance").
			WillReturnRows(sqlmock.NewRows([]string{"id", "care_coins_balance", "derived"}).
				AddRow("alice", 100, 100).
				AddRow("bob", 70, 50))

		mismatches, err := store.Reconcile(ctx)
		require.NoError(t, err)
		assert.Equal(t, []BalanceMismatch{{AccountID: "bob", Stored: 70, Derived: 50}}, mismatches)
	})
}

func TestNormalizePage(t *testing.T) {
	limit, offset := normalizePage(0, -4)
	assert.Equal(t, defaultPageSize, limit)
	assert.Equal(t, 0, offset)

	limit, _ = normalizePage(1000, 0)
	assert.Equal(t, maxPageSize, limit)
}
