package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/facesheet360/carecoins/internal/metrics"
	"github.com/facesheet360/carecoins/internal/models"
)

// MemoryLedgerStore keeps accounts and entries in process. It backs
// LEDGER_BACKEND=memory and the ledger property tests.
type MemoryLedgerStore struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	entries  []models.LedgerEntry
	byKey    map[string]int
	nextID   int64
	now      func() time.Time
}

func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		accounts: make(map[string]*models.Account),
		byKey:    make(map[string]int),
		now:      time.Now,
	}
}

func (m *MemoryLedgerStore) GetBalance(_ context.Context, accountID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[accountID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	return account.Balance, nil
}

func (m *MemoryLedgerStore) GetAccount(_ context.Context, accountID string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	copied := *account
	return &copied, nil
}

func (m *MemoryLedgerStore) CreateAccount(_ context.Context, accountID string) (*models.Account, error) {
	if accountID == "" {
		return nil, fmt.Errorf("%w: empty account id", ErrInvalidEntry)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[accountID]
	if !ok {
		now := m.now()
		account = &models.Account{ID: accountID, Version: 1, CreatedAt: now, UpdatedAt: now}
		m.accounts[accountID] = account
	}
	copied := *account
	return &copied, nil
}

func (m *MemoryLedgerStore) AppendEntry(ctx context.Context, entry *models.LedgerEntry) (*models.LedgerEntry, error) {
	return m.AppendEntryWith(ctx, entry, nil)
}

// AppendEntryWith runs hook with a nil Execer while holding the store lock,
// before any balance moves.
func (m *MemoryLedgerStore) AppendEntryWith(ctx context.Context, entry *models.LedgerEntry, hook EntryHook) (*models.LedgerEntry, error) {
	if err := validateEntry(entry); err != nil {
		metrics.LedgerRejections.WithLabelValues(ErrorCode(err)).Inc()
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if entry.IdempotencyKey != nil {
		if idx, ok := m.byKey[*entry.IdempotencyKey]; ok {
			existing := m.entries[idx]
			stored, err := replayOf(&existing, entry)
			if err != nil {
				return nil, m.reject(err)
			}
			return stored, nil
		}
	}

	var sender, receiver *models.Account
	if entry.FromAccount != nil {
		a, ok := m.accounts[*entry.FromAccount]
		if !ok {
			return nil, m.reject(fmt.Errorf("%w: %s", ErrAccountNotFound, *entry.FromAccount))
		}
		sender = a
	}
	if entry.ToAccount != nil {
		a, ok := m.accounts[*entry.ToAccount]
		if !ok {
			return nil, m.reject(fmt.Errorf("%w: %s", ErrAccountNotFound, *entry.ToAccount))
		}
		receiver = a
	}

	if sender != nil && sender.Balance < entry.Amount {
		return nil, m.reject(fmt.Errorf("%w: account %s has %d, needs %d", ErrInsufficientFunds, sender.ID, sender.Balance, entry.Amount))
	}

	now := m.now()
	stored := *entry
	stored.ID = m.nextID + 1
	stored.CreatedAt = now
	if hook != nil {
		if err := hook(ctx, nil, &stored); err != nil {
			return nil, m.reject(err)
		}
	}

	if sender != nil {
		sender.Balance -= entry.Amount
		sender.Version++
		sender.UpdatedAt = now
	}
	if receiver != nil {
		receiver.Balance += entry.Amount
		receiver.LifetimeEarned += entry.Amount
		receiver.Version++
		receiver.UpdatedAt = now
	}

	m.nextID++
	m.entries = append(m.entries, stored)
	if stored.IdempotencyKey != nil {
		m.byKey[*stored.IdempotencyKey] = len(m.entries) - 1
	}

	metrics.LedgerEntries.WithLabelValues(string(stored.Kind)).Inc()
	metrics.LedgerVolume.WithLabelValues(string(stored.Kind)).Add(float64(stored.Amount))
	return &stored, nil
}

func (m *MemoryLedgerStore) reject(err error) error {
	metrics.LedgerRejections.WithLabelValues(ErrorCode(err)).Inc()
	return err
}

func (m *MemoryLedgerStore) ListEntries(_ context.Context, accountID string, limit, offset int) ([]models.LedgerEntry, error) {
	limit, offset = normalizePage(limit, offset)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[accountID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}

	// Entries are appended in id order, so walking backwards is most-recent-first.
	out := []models.LedgerEntry{}
	skipped := 0
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := m.entries[i]
		if models.Deref(e.FromAccount) != accountID && models.Deref(e.ToAccount) != accountID {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *MemoryLedgerStore) Reconcile(_ context.Context) ([]BalanceMismatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	derived := make(map[string]int64, len(m.accounts))
	for _, e := range m.entries {
		if e.ToAccount != nil {
			derived[*e.ToAccount] += e.Amount
		}
		if e.FromAccount != nil {
			derived[*e.FromAccount] -= e.Amount
		}
	}

	var mismatches []BalanceMismatch
	for id, account := range m.accounts {
		if account.Balance != derived[id] {
			mismatches = append(mismatches, BalanceMismatch{AccountID: id, Stored: account.Balance, Derived: derived[id]})
		}
	}
	sort.Slice(mismatches, func(i, j int) bool { return mismatches[i].AccountID < mismatches[j].AccountID })
	return mismatches, nil
}
