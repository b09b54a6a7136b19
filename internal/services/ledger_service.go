package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/facesheet360/carecoins/internal/metrics"
	"github.com/facesheet360/carecoins/internal/models"
	"github.com/lib/pq"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// LedgerStore is the single writer of account balances.
type LedgerStore interface {
	GetBalance(ctx context.Context, accountID string) (int64, error)
	GetAccount(ctx context.Context, accountID string) (*models.Account, error)
	CreateAccount(ctx context.Context, accountID string) (*models.Account, error)
	AppendEntry(ctx context.Context, entry *models.LedgerEntry) (*models.LedgerEntry, error)
	// AppendEntryWith appends entry and runs hook before it commits. A hook
	// error aborts the append and leaves every balance untouched.
	AppendEntryWith(ctx context.Context, entry *models.LedgerEntry, hook EntryHook) (*models.LedgerEntry, error)
	ListEntries(ctx context.Context, accountID string, limit, offset int) ([]models.LedgerEntry, error)
	Reconcile(ctx context.Context) ([]BalanceMismatch, error)
}

// Execer runs a statement on the database or inside a transaction.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// EntryHook writes rows that must commit together with a ledger entry. q is
// the ledger transaction, or nil for stores without one.
type EntryHook func(ctx context.Context, q Execer, entry *models.LedgerEntry) error

// BalanceMismatch is an account whose stored balance disagrees with its history.
type BalanceMismatch struct {
	AccountID string `json:"account_id"`
	Stored    int64  `json:"stored"`
	Derived   int64  `json:"derived"`
}

type PostgresLedgerStore struct {
	db *sql.DB
}

func NewPostgresLedgerStore(db *sql.DB) *PostgresLedgerStore {
	return &PostgresLedgerStore{db: db}
}

const entryColumns = `id, from_user_id, to_user_id, amount, transaction_type, description, category, idempotency_key, created_at`

func (s *PostgresLedgerStore) GetBalance(ctx context.Context, accountID string) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx, `SELECT care_coins_balance FROM users WHERE id = $1`, accountID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

func (s *PostgresLedgerStore) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	var account models.Account
	err := s.db.QueryRowContext(ctx, `
		SELECT id, care_coins_balance, lifetime_earned, version, created_at, updated_at
		FROM users
		WHERE id = $1`, accountID).Scan(&account.ID, &account.Balance, &account.LifetimeEarned,
		&account.Version, &account.CreatedAt, &account.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &account, nil
}

// CreateAccount makes sure a zero-balance row exists for accountID. Registration
// usually inserts the row first, in which case this only reads it back.
func (s *PostgresLedgerStore) CreateAccount(ctx context.Context, accountID string) (*models.Account, error) {
	if accountID == "" {
		return nil, fmt.Errorf("%w: empty account id", ErrInvalidEntry)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, care_coins_balance, lifetime_earned, version, created_at, updated_at)
		VALUES ($1, 0, 0, 1, $2, $2)
		ON CONFLICT (id) DO NOTHING`, accountID, time.Now()); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return s.GetAccount(ctx, accountID)
}

// AppendEntry validates entry, moves the balance and records the entry inside
// one transaction. An entry whose idempotency key was already used returns the
// stored entry without touching any balance.
func (s *PostgresLedgerStore) AppendEntry(ctx context.Context, entry *models.LedgerEntry) (*models.LedgerEntry, error) {
	return s.AppendEntryWith(ctx, entry, nil)
}

func (s *PostgresLedgerStore) AppendEntryWith(ctx context.Context, entry *models.LedgerEntry, hook EntryHook) (*models.LedgerEntry, error) {
	if err := validateEntry(entry); err != nil {
		metrics.LedgerRejections.WithLabelValues(ErrorCode(err)).Inc()
		return nil, err
	}

	stored, err := s.appendEntry(ctx, entry, hook)
	if err != nil {
		var pqErr *pq.Error
		if entry.IdempotencyKey != nil && errors.As(err, &pqErr) && pqErr.Code == "23505" {
			// Lost a race with a concurrent append using the same key.
			existing, findErr := s.findByKey(ctx, s.db, *entry.IdempotencyKey)
			if findErr == nil && existing != nil {
				return replayOf(existing, entry)
			}
		}
		metrics.LedgerRejections.WithLabelValues(ErrorCode(err)).Inc()
		return nil, err
	}

	metrics.LedgerEntries.WithLabelValues(string(stored.Kind)).Inc()
	metrics.LedgerVolume.WithLabelValues(string(stored.Kind)).Add(float64(stored.Amount))
	return stored, nil
}

func (s *PostgresLedgerStore) appendEntry(ctx context.Context, entry *models.LedgerEntry, hook EntryHook) (*models.LedgerEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if entry.IdempotencyKey != nil {
		existing, err := s.findByKey(ctx, tx, *entry.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return replayOf(existing, entry)
		}
	}

	locked, err := s.lockAccounts(ctx, tx, entry.FromAccount, entry.ToAccount)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if entry.FromAccount != nil {
		sender := locked[*entry.FromAccount]
		if sender.Balance < entry.Amount {
			return nil, fmt.Errorf("%w: account %s has %d, needs %d", ErrInsufficientFunds, sender.ID, sender.Balance, entry.Amount)
		}
		if err := s.updateAccountBalance(ctx, tx, sender.ID, sender.Balance-entry.Amount, sender.LifetimeEarned, sender.Version, now); err != nil {
			return nil, err
		}
	}

	if entry.ToAccount != nil {
		receiver := locked[*entry.ToAccount]
		if err := s.updateAccountBalance(ctx, tx, receiver.ID, receiver.Balance+entry.Amount, receiver.LifetimeEarned+entry.Amount, receiver.Version, now); err != nil {
			return nil, err
		}
	}

	stored := *entry
	stored.CreatedAt = now
	err = tx.QueryRowContext(ctx, `
		INSERT INTO care_coins_transactions (from_user_id, to_user_id, amount, transaction_type, description, category, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		entry.FromAccount, entry.ToAccount, entry.Amount, string(entry.Kind), entry.Description,
		entry.Category, entry.IdempotencyKey, now).Scan(&stored.ID)
	if err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}

	if hook != nil {
		if err := hook(ctx, tx, &stored); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &stored, nil
}

// lockAccounts takes row locks on every non-nil endpoint in ascending id order
// so that two appends touching the same pair cannot deadlock.
func (s *PostgresLedgerStore) lockAccounts(ctx context.Context, tx *sql.Tx, from, to *string) (map[string]*models.Account, error) {
	var ids []string
	if from != nil {
		ids = append(ids, *from)
	}
	if to != nil {
		ids = append(ids, *to)
	}
	sort.Strings(ids)

	locked := make(map[string]*models.Account, len(ids))
	for _, id := range ids {
		account, err := s.lockAccount(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		locked[id] = account
	}
	return locked, nil
}

func (s *PostgresLedgerStore) lockAccount(ctx context.Context, tx *sql.Tx, accountID string) (*models.Account, error) {
	var account models.Account
	err := tx.QueryRowContext(ctx, `
		SELECT id, care_coins_balance, lifetime_earned, version
		FROM users
		WHERE id = $1
		FOR UPDATE`, accountID).Scan(&account.ID, &account.Balance, &account.LifetimeEarned, &account.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	if err != nil {
		return nil, fmt.Errorf("lock account %s: %w", accountID, err)
	}
	return &account, nil
}

func (s *PostgresLedgerStore) updateAccountBalance(ctx context.Context, tx *sql.Tx, accountID string, newBalance, lifetimeEarned int64, version int, now time.Time) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE users
		SET care_coins_balance = $1, lifetime_earned = $2, version = version + 1, updated_at = $3
		WHERE id = $4 AND version = $5`,
		newBalance, lifetimeEarned, now, accountID, version)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("optimistic lock failed for account %s", accountID)
	}

	return nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresLedgerStore) findByKey(ctx context.Context, q queryRower, key string) (*models.LedgerEntry, error) {
	entry, err := scanEntry(q.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM care_coins_transactions WHERE idempotency_key = $1`, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup idempotency key: %w", err)
	}
	return entry, nil
}

func (s *PostgresLedgerStore) ListEntries(ctx context.Context, accountID string, limit, offset int) ([]models.LedgerEntry, error) {
	limit, offset = normalizePage(limit, offset)

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, accountID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check account: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM care_coins_transactions
		WHERE from_user_id = $1 OR to_user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	entries := []models.LedgerEntry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// Reconcile reports every account whose stored balance differs from
// credits minus debits in the entry history.
func (s *PostgresLedgerStore) Reconcile(ctx context.Context) ([]BalanceMismatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.care_coins_balance,
			COALESCE((SELECT SUM(amount) FROM care_coins_transactions WHERE to_user_id = u.id), 0) -
			COALESCE((SELECT SUM(amount) FROM care_coins_transactions WHERE from_user_id = u.id), 0) AS derived
		FROM users u
		ORDER BY u.id`)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	defer rows.Close()

	var mismatches []BalanceMismatch
	for rows.Next() {
		var m BalanceMismatch
		if err := rows.Scan(&m.AccountID, &m.Stored, &m.Derived); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		if m.Stored != m.Derived {
			mismatches = append(mismatches, m)
		}
	}
	return mismatches, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*models.LedgerEntry, error) {
	var (
		entry                    models.LedgerEntry
		from, to, category, ikey sql.NullString
		kind                     string
	)
	if err := row.Scan(&entry.ID, &from, &to, &entry.Amount, &kind, &entry.Description, &category, &ikey, &entry.CreatedAt); err != nil {
		return nil, err
	}
	entry.Kind = models.EntryKind(kind)
	entry.FromAccount = nullString(from)
	entry.ToAccount = nullString(to)
	entry.Category = nullString(category)
	entry.IdempotencyKey = nullString(ikey)
	return &entry, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func validateEntry(e *models.LedgerEntry) error {
	if e == nil {
		return fmt.Errorf("%w: nil entry", ErrInvalidEntry)
	}
	if e.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive, got %d", ErrInvalidEntry, e.Amount)
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEntry, e.Kind)
	}
	if (e.FromAccount != nil && *e.FromAccount == "") || (e.ToAccount != nil && *e.ToAccount == "") {
		return fmt.Errorf("%w: empty account id", ErrInvalidEntry)
	}
	if e.FromAccount == nil && e.ToAccount == nil {
		return fmt.Errorf("%w: both endpoints are empty", ErrInvalidEntry)
	}
	if e.FromAccount != nil && e.ToAccount != nil && *e.FromAccount == *e.ToAccount {
		return fmt.Errorf("%w: sender and receiver are the same account", ErrInvalidEntry)
	}

	switch {
	case e.Kind.Mints() && (e.FromAccount != nil || e.ToAccount == nil):
		return fmt.Errorf("%w: %s entries credit an account from the system", ErrInvalidEntry, e.Kind)
	case e.Kind.Burns() && (e.ToAccount != nil || e.FromAccount == nil):
		return fmt.Errorf("%w: %s entries debit an account with no receiver", ErrInvalidEntry, e.Kind)
	case e.Kind == models.EntryTransfer && (e.FromAccount == nil || e.ToAccount == nil):
		return fmt.Errorf("%w: transfers need both accounts", ErrInvalidEntry)
	}
	if e.IdempotencyKey != nil && *e.IdempotencyKey == "" {
		e.IdempotencyKey = nil
	}
	return nil
}

// replayOf returns the stored entry for a reused idempotency key, or
// ErrIdempotencyConflict when the new entry moves different coins.
func replayOf(existing, entry *models.LedgerEntry) (*models.LedgerEntry, error) {
	if models.Deref(existing.FromAccount) != models.Deref(entry.FromAccount) ||
		models.Deref(existing.ToAccount) != models.Deref(entry.ToAccount) ||
		existing.Amount != entry.Amount ||
		existing.Kind != entry.Kind {
		return nil, fmt.Errorf("%w: key %q belongs to entry %d", ErrIdempotencyConflict, models.Deref(entry.IdempotencyKey), existing.ID)
	}
	return existing, nil
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
