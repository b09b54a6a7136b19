package models

import (
	"time"
)

type EntryKind string

const (
	EntryTransfer    EntryKind = "transfer"
	EntryReward      EntryKind = "reward"
	EntryPurchase    EntryKind = "purchase"
	EntryWelcome     EntryKind = "welcome"
	EntryCashOut     EntryKind = "cash-out"
	EntryBillPayment EntryKind = "bill-payment"
)

// Valid reports whether k is one of the known entry kinds.
func (k EntryKind) Valid() bool {
	switch k {
	case EntryTransfer, EntryReward, EntryPurchase, EntryWelcome, EntryCashOut, EntryBillPayment:
		return true
	}
	return false
}

// Mints reports whether entries of this kind are credited from the system (no sender).
func (k EntryKind) Mints() bool {
	return k == EntryReward || k == EntryWelcome
}

// Burns reports whether entries of this kind leave the ledger (no receiver).
func (k EntryKind) Burns() bool {
	return k == EntryPurchase || k == EntryCashOut || k == EntryBillPayment
}

// LedgerEntry is an immutable record of a single CareCoins movement.
// A nil FromAccount is a system mint, a nil ToAccount is a burn.
type LedgerEntry struct {
	ID             int64     `json:"id" db:"id" example:"42"`
	FromAccount    *string   `json:"from_account" db:"from_user_id"`
	ToAccount      *string   `json:"to_account" db:"to_user_id"`
	Amount         int64     `json:"amount" db:"amount" example:"100"`
	Kind           EntryKind `json:"kind" db:"transaction_type" example:"transfer"`
	Description    string    `json:"description" db:"description"`
	Category       *string   `json:"category,omitempty" db:"category"`
	IdempotencyKey *string   `json:"idempotency_key,omitempty" db:"idempotency_key"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

type Account struct {
	ID             string    `json:"id" db:"id"`
	Balance        int64     `json:"balance" db:"care_coins_balance"`
	LifetimeEarned int64     `json:"lifetime_earned" db:"lifetime_earned"`
	Version        int       `json:"version" db:"version"` // for optimistic locking
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// StringPtr returns nil for an empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
