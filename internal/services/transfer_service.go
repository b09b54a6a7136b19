package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/facesheet360/carecoins/internal/logger"
	"github.com/facesheet360/carecoins/internal/models"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

const TransferCompletedChannel = "carecoins.transfer.completed"

// TransferRequest moves coins between two accounts. IdempotencyKey is scoped
// to the sender, so two senders may use the same key independently.
type TransferRequest struct {
	From           string
	To             string
	Amount         int64
	Description    string
	IdempotencyKey string
}

// TransferCompleted is published after a transfer commits.
type TransferCompleted struct {
	EntryID     int64     `json:"entry_id"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Amount      int64     `json:"amount"`
	Description string    `json:"description"`
	OccurredAt  time.Time `json:"occurred_at"`
}

type EventPublisher interface {
	PublishTransferCompleted(ctx context.Context, evt TransferCompleted) error
}

// Auditor records money movements for the audit trail.
type Auditor interface {
	LogTransfer(txID, fromAccount, toAccount string, amount int64, status string)
	LogError(txID, accountID string, err error)
}

// RedisEventPublisher fans events out over redis pub/sub. A nil client drops
// events silently.
type RedisEventPublisher struct {
	redis *redis.Client
}

func NewRedisEventPublisher(redisClient *redis.Client) *RedisEventPublisher {
	return &RedisEventPublisher{redis: redisClient}
}

func (p *RedisEventPublisher) PublishTransferCompleted(ctx context.Context, evt TransferCompleted) error {
	if p.redis == nil {
		return nil
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return p.redis.Publish(ctx, TransferCompletedChannel, data).Err()
}

type TransferService struct {
	ledger LedgerStore
	events EventPublisher
	audit  Auditor
	logger zerolog.Logger
}

func NewTransferService(ledger LedgerStore, events EventPublisher, audit Auditor) *TransferService {
	return &TransferService{
		ledger: ledger,
		events: events,
		audit:  audit,
		logger: logger.Component("transfer"),
	}
}

// Transfer moves Amount from one account to another. Validation failures are
// returned before the ledger is touched.
func (s *TransferService) Transfer(ctx context.Context, req TransferRequest) (*models.LedgerEntry, error) {
	if req.From == req.To {
		return nil, ErrSelfTransfer
	}
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	for _, id := range []string{req.From, req.To} {
		if _, err := s.ledger.GetAccount(ctx, id); err != nil {
			return nil, err
		}
	}

	entry, err := s.ledger.AppendEntry(ctx, &models.LedgerEntry{
		FromAccount:    models.StringPtr(req.From),
		ToAccount:      models.StringPtr(req.To),
		Amount:         req.Amount,
		Kind:           models.EntryTransfer,
		Description:    req.Description,
		IdempotencyKey: scopedKey("transfer:"+req.From, req.IdempotencyKey),
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("from", req.From).Str("to", req.To).Int64("amount", req.Amount).Msg("transfer rejected")
		if s.audit != nil {
			s.audit.LogError(req.IdempotencyKey, req.From, err)
		}
		return nil, err
	}

	if s.audit != nil {
		s.audit.LogTransfer(strconv.FormatInt(entry.ID, 10), req.From, req.To, entry.Amount, "SUCCESS")
	}
	s.logger.Info().Int64("entry_id", entry.ID).Str("from", req.From).Str("to", req.To).Int64("amount", entry.Amount).Msg("transfer completed")

	if s.events != nil {
		evt := TransferCompleted{
			EntryID:     entry.ID,
			From:        req.From,
			To:          req.To,
			Amount:      entry.Amount,
			Description: entry.Description,
			OccurredAt:  entry.CreatedAt,
		}
		if err := s.events.PublishTransferCompleted(ctx, evt); err != nil {
			s.logger.Error().Err(err).Int64("entry_id", entry.ID).Msg("failed to publish transfer event")
		}
	}

	return entry, nil
}

// Purchase spends coins on platform goods. The coins leave the ledger.
func (s *TransferService) Purchase(ctx context.Context, accountID string, amount int64, description string) (*models.LedgerEntry, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	entry, err := s.ledger.AppendEntry(ctx, &models.LedgerEntry{
		FromAccount: models.StringPtr(accountID),
		Amount:      amount,
		Kind:        models.EntryPurchase,
		Description: description,
	})
	if err != nil {
		if s.audit != nil {
			s.audit.LogError("", accountID, err)
		}
		return nil, fmt.Errorf("purchase: %w", err)
	}

	if s.audit != nil {
		s.audit.LogTransfer(strconv.FormatInt(entry.ID, 10), accountID, "", amount, "SUCCESS")
	}
	return entry, nil
}
