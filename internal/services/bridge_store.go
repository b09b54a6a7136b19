package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/facesheet360/carecoins/internal/models"
	"github.com/lib/pq"
)

// BridgeRepository persists bridge transactions. Every Mark* call is a
// conditional update on the expected current status and reports whether a
// row actually moved, so terminal rows are never rewritten.
type BridgeRepository interface {
	FindContract(ctx context.Context, ref string) (*models.CareCoinContract, error)
	FindByKey(ctx context.Context, key string) (*models.BridgeTransaction, error)
	// LedgerEntryExists reports whether the ledger holds an entry with id.
	LedgerEntryExists(ctx context.Context, id int64) (bool, error)
	// FindActiveByLedgerEntry returns the non-failed bridge row for a ledger
	// entry, or nil when there is none.
	FindActiveByLedgerEntry(ctx context.Context, entryID int64) (*models.BridgeTransaction, error)
	Create(ctx context.Context, tx *models.BridgeTransaction) error
	Get(ctx context.Context, id string) (*models.BridgeTransaction, error)
	List(ctx context.Context, status models.BridgeStatus, limit int) ([]models.BridgeTransaction, error)
	ListPending(ctx context.Context, limit int) ([]models.BridgeTransaction, error)
	Claim(ctx context.Context, id string, at time.Time) (bool, error)
	MarkSubmitted(ctx context.Context, id, txHash string, at time.Time) (bool, error)
	MarkConfirmed(ctx context.Context, id string, blockNumber int64, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, id string, from models.BridgeStatus, code, message string, at time.Time) (bool, error)
}

var errDuplicateKey = errors.New("duplicate idempotency key")

// bridgeLedgerEntryIndex enforces one active bridge row per ledger entry.
const bridgeLedgerEntryIndex = "idx_bridge_ledger_entry"

type PostgresBridgeStore struct {
	db *sql.DB
}

func NewPostgresBridgeStore(db *sql.DB) *PostgresBridgeStore {
	return &PostgresBridgeStore{db: db}
}

const contractColumns = `id, contract_address, deployer_address, network, chain_id, decimals, abi`

const bridgeColumns = `id, ledger_entry_id, contract_address, network, recipient_address, amount, status,
	tx_hash, block_number, error_code, error_message, idempotency_key,
	attempt_started_at, submitted_at, completed_at, created_at, updated_at`

// FindContract resolves ref as a numeric id or a contract address. An empty
// ref selects the most recently deployed contract.
func (s *PostgresBridgeStore) FindContract(ctx context.Context, ref string) (*models.CareCoinContract, error) {
	var row *sql.Row
	if ref == "" {
		row = s.db.QueryRowContext(ctx, `SELECT `+contractColumns+` FROM carecoin_contract ORDER BY id DESC LIMIT 1`)
	} else if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		row = s.db.QueryRowContext(ctx, `SELECT `+contractColumns+` FROM carecoin_contract WHERE id = $1`, id)
	} else {
		row = s.db.QueryRowContext(ctx, `SELECT `+contractColumns+` FROM carecoin_contract WHERE lower(contract_address) = $1`, strings.ToLower(ref))
	}

	var c models.CareCoinContract
	var deployer, abi sql.NullString
	err := row.Scan(&c.ID, &c.ContractAddress, &deployer, &c.Network, &c.ChainID, &c.Decimals, &abi)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrContractNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("find contract: %w", err)
	}
	c.DeployerAddress = deployer.String
	c.ABI = abi.String
	return &c, nil
}

func (s *PostgresBridgeStore) FindByKey(ctx context.Context, key string) (*models.BridgeTransaction, error) {
	tx, err := scanBridge(s.db.QueryRowContext(ctx, `SELECT `+bridgeColumns+` FROM bridge_transactions WHERE idempotency_key = $1`, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find bridge by key: %w", err)
	}
	return tx, nil
}

func (s *PostgresBridgeStore) LedgerEntryExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM care_coins_transactions WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check ledger entry: %w", err)
	}
	return exists, nil
}

func (s *PostgresBridgeStore) FindActiveByLedgerEntry(ctx context.Context, entryID int64) (*models.BridgeTransaction, error) {
	tx, err := scanBridge(s.db.QueryRowContext(ctx, `
		SELECT `+bridgeColumns+`
		FROM bridge_transactions
		WHERE ledger_entry_id = $1 AND status <> 'failed'`, entryID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find bridge by ledger entry: %w", err)
	}
	return tx, nil
}

func (s *PostgresBridgeStore) Create(ctx context.Context, tx *models.BridgeTransaction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bridge_transactions (id, ledger_entry_id, contract_address, network, recipient_address, amount, status, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
		tx.ID, tx.LedgerEntryID, tx.ContractAddress, tx.Network, tx.RecipientAddress, tx.Amount,
		string(tx.Status), tx.IdempotencyKey, tx.CreatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "23505" && pqErr.Constraint == bridgeLedgerEntryIndex:
			return fmt.Errorf("%w: %s", ErrEntryAlreadyBridged, pqErr.Detail)
		case pqErr.Code == "23505":
			return errDuplicateKey
		case pqErr.Code == "23503":
			return fmt.Errorf("%w: %s", ErrLedgerEntryNotFound, pqErr.Detail)
		}
	}
	if err != nil {
		return fmt.Errorf("create bridge transaction: %w", err)
	}
	return nil
}

func (s *PostgresBridgeStore) Get(ctx context.Context, id string) (*models.BridgeTransaction, error) {
	tx, err := scanBridge(s.db.QueryRowContext(ctx, `SELECT `+bridgeColumns+` FROM bridge_transactions WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrBridgeNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get bridge transaction: %w", err)
	}
	return tx, nil
}

func (s *PostgresBridgeStore) List(ctx context.Context, status models.BridgeStatus, limit int) ([]models.BridgeTransaction, error) {
	limit, _ = normalizePage(limit, 0)
	var rows *sql.Rows
	var err error
	if status == "" {
		rows, err = s.db.QueryContext(ctx, `SELECT `+bridgeColumns+` FROM bridge_transactions ORDER BY created_at DESC LIMIT $1`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT `+bridgeColumns+` FROM bridge_transactions WHERE status = $1 ORDER BY created_at DESC LIMIT $2`, string(status), limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list bridge transactions: %w", err)
	}
	return collectBridge(rows)
}

func (s *PostgresBridgeStore) ListPending(ctx context.Context, limit int) ([]models.BridgeTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bridgeColumns+`
		FROM bridge_transactions
		WHERE status IN ('requested', 'submitted')
		ORDER BY created_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending bridge transactions: %w", err)
	}
	return collectBridge(rows)
}

func (s *PostgresBridgeStore) Claim(ctx context.Context, id string, at time.Time) (bool, error) {
	return s.exec(ctx, `
		UPDATE bridge_transactions
		SET attempt_started_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'requested' AND attempt_started_at IS NULL`, id, at)
}

func (s *PostgresBridgeStore) MarkSubmitted(ctx context.Context, id, txHash string, at time.Time) (bool, error) {
	return s.exec(ctx, `
		UPDATE bridge_transactions
		SET status = 'submitted', tx_hash = $2, submitted_at = $3, updated_at = $3
		WHERE id = $1 AND status = 'requested'`, id, txHash, at)
}

func (s *PostgresBridgeStore) MarkConfirmed(ctx context.Context, id string, blockNumber int64, at time.Time) (bool, error) {
	return s.exec(ctx, `
		UPDATE bridge_transactions
		SET status = 'confirmed', block_number = $2, completed_at = $3, updated_at = $3
		WHERE id = $1 AND status = 'submitted'`, id, blockNumber, at)
}

func (s *PostgresBridgeStore) MarkFailed(ctx context.Context, id string, from models.BridgeStatus, code, message string, at time.Time) (bool, error) {
	return s.exec(ctx, `
		UPDATE bridge_transactions
		SET status = 'failed', error_code = $3, error_message = $4, completed_at = $5, updated_at = $5
		WHERE id = $1 AND status = $2`, id, string(from), code, message, at)
}

func (s *PostgresBridgeStore) exec(ctx context.Context, query string, args ...any) (bool, error) {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update bridge transaction: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func collectBridge(rows *sql.Rows) ([]models.BridgeTransaction, error) {
	defer rows.Close()
	out := []models.BridgeTransaction{}
	for rows.Next() {
		tx, err := scanBridge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bridge transaction: %w", err)
		}
		out = append(out, *tx)
	}
	return out, rows.Err()
}

func scanBridge(row rowScanner) (*models.BridgeTransaction, error) {
	var (
		tx                                models.BridgeTransaction
		status                            string
		ledgerEntryID, blockNumber        sql.NullInt64
		txHash, code, message, ikey       sql.NullString
		attemptStarted, submitted, closed sql.NullTime
	)
	err := row.Scan(&tx.ID, &ledgerEntryID, &tx.ContractAddress, &tx.Network, &tx.RecipientAddress, &tx.Amount, &status,
		&txHash, &blockNumber, &code, &message, &ikey,
		&attemptStarted, &submitted, &closed, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return nil, err
	}
	tx.Status = models.BridgeStatus(status)
	tx.LedgerEntryID = nullInt64(ledgerEntryID)
	tx.BlockNumber = nullInt64(blockNumber)
	tx.TxHash = nullString(txHash)
	tx.ErrorCode = nullString(code)
	tx.ErrorMessage = nullString(message)
	tx.IdempotencyKey = nullString(ikey)
	tx.AttemptStartedAt = nullTime(attemptStarted)
	tx.SubmittedAt = nullTime(submitted)
	tx.CompletedAt = nullTime(closed)
	return &tx, nil
}

func nullInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
