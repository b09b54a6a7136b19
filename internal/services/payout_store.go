package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/facesheet360/carecoins/internal/models"
)

type PayoutRepository interface {
	// Create inserts p through q, or through the store's own connection when
	// q is nil.
	Create(ctx context.Context, q Execer, p *models.Payout) error
	GetByReference(ctx context.Context, ref string) (*models.Payout, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.Payout, error)
	// Settle moves a pending payout to status and reports whether it moved.
	Settle(ctx context.Context, ref string, status models.PayoutStatus, at time.Time) (bool, error)
}

type PostgresPayoutStore struct {
	db *sql.DB
}

func NewPostgresPayoutStore(db *sql.DB) *PostgresPayoutStore {
	return &PostgresPayoutStore{db: db}
}

const payoutColumns = `id, account_id, kind, amount, fiat_amount, currency, rate, payment_method, bill_type,
	recipient, recipient_account, details, status, external_reference, ledger_entry_id, created_at, updated_at`

func (s *PostgresPayoutStore) Create(ctx context.Context, q Execer, p *models.Payout) error {
	if q == nil {
		q = s.db
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO payouts (id, account_id, kind, amount, fiat_amount, currency, rate, payment_method, bill_type,
			recipient, recipient_account, details, status, external_reference, ledger_entry_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $16)`,
		p.ID, p.AccountID, string(p.Kind), p.Amount, p.FiatAmount, p.Currency, p.Rate, p.PaymentMethod, p.BillType,
		p.Recipient, p.RecipientAccount, p.Details, string(p.Status), p.ExternalReference, p.LedgerEntryID, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("create payout: %w", err)
	}
	return nil
}

func (s *PostgresPayoutStore) GetByReference(ctx context.Context, ref string) (*models.Payout, error) {
	p, err := scanPayout(s.db.QueryRowContext(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE external_reference = $1`, ref))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrPayoutNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("get payout: %w", err)
	}
	return p, nil
}

func (s *PostgresPayoutStore) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.Payout, error) {
	limit, offset = normalizePage(limit, offset)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+payoutColumns+`
		FROM payouts
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list payouts: %w", err)
	}
	defer rows.Close()

	payouts := []models.Payout{}
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payout: %w", err)
		}
		payouts = append(payouts, *p)
	}
	return payouts, rows.Err()
}

func (s *PostgresPayoutStore) Settle(ctx context.Context, ref string, status models.PayoutStatus, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE payouts SET status = $2, updated_at = $3
		WHERE external_reference = $1 AND status = 'pending'`, ref, string(status), at)
	if err != nil {
		return false, fmt.Errorf("settle payout: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func scanPayout(row rowScanner) (*models.Payout, error) {
	var (
		p                                    models.Payout
		kind, status                         string
		method, billType, recipient, account sql.NullString
	)
	err := row.Scan(&p.ID, &p.AccountID, &kind, &p.Amount, &p.FiatAmount, &p.Currency, &p.Rate, &method, &billType,
		&recipient, &account, &p.Details, &status, &p.ExternalReference, &p.LedgerEntryID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Kind = models.PayoutKind(kind)
	p.Status = models.PayoutStatus(status)
	p.PaymentMethod = nullString(method)
	p.BillType = nullString(billType)
	p.Recipient = nullString(recipient)
	p.RecipientAccount = nullString(account)
	return &p, nil
}
