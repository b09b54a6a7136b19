package models

import (
	"time"
)

type BridgeStatus string

const (
	BridgeRequested BridgeStatus = "requested"
	BridgeSubmitted BridgeStatus = "submitted"
	BridgeConfirmed BridgeStatus = "confirmed"
	BridgeFailed    BridgeStatus = "failed"
)

func (s BridgeStatus) Valid() bool {
	switch s {
	case BridgeRequested, BridgeSubmitted, BridgeConfirmed, BridgeFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s BridgeStatus) Terminal() bool {
	return s == BridgeConfirmed || s == BridgeFailed
}

// BridgeTransaction tracks one push of CareCoins to the external token contract.
type BridgeTransaction struct {
	ID               string       `json:"id" db:"id"`
	LedgerEntryID    *int64       `json:"ledger_entry_id,omitempty" db:"ledger_entry_id"`
	ContractAddress  string       `json:"contract_address" db:"contract_address"`
	Network          string       `json:"network" db:"network"`
	RecipientAddress string       `json:"recipient_address" db:"recipient_address"`
	Amount           int64        `json:"amount" db:"amount"`
	Status           BridgeStatus `json:"status" db:"status"`
	TxHash           *string      `json:"tx_hash,omitempty" db:"tx_hash"`
	BlockNumber      *int64       `json:"block_number,omitempty" db:"block_number"`
	ErrorCode        *string      `json:"error_code,omitempty" db:"error_code"`
	ErrorMessage     *string      `json:"error_message,omitempty" db:"error_message"`
	IdempotencyKey   *string      `json:"idempotency_key,omitempty" db:"idempotency_key"`
	AttemptStartedAt *time.Time   `json:"attempt_started_at,omitempty" db:"attempt_started_at"`
	SubmittedAt      *time.Time   `json:"submitted_at,omitempty" db:"submitted_at"`
	CompletedAt      *time.Time   `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt        time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at" db:"updated_at"`
}

// CareCoinContract describes the deployed ERC-20 token. Read-only here.
type CareCoinContract struct {
	ID              int64  `json:"id" db:"id"`
	ContractAddress string `json:"contract_address" db:"contract_address"`
	DeployerAddress string `json:"deployer_address" db:"deployer_address"`
	Network         string `json:"network" db:"network"`
	ChainID         int64  `json:"chain_id" db:"chain_id"`
	Decimals        int    `json:"decimals" db:"decimals"`
	ABI             string `json:"-" db:"abi"`
}
