package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/facesheet360/carecoins/internal/logger"
	"github.com/facesheet360/carecoins/internal/metrics"
	"github.com/facesheet360/carecoins/internal/models"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	PayoutQueueKey = "payout_queue"
	payoutCurrency = "USD"
)

// PayoutInstruction is the message the payout rail consumes from the queue.
// Bank transfers carry a pacs.008 credit transfer in Message.
type PayoutInstruction struct {
	PayoutID          string               `json:"payout_id"`
	ExternalReference string               `json:"external_reference"`
	Kind              models.PayoutKind    `json:"kind"`
	AccountID         string               `json:"account_id"`
	Amount            int64                `json:"amount"`
	FiatAmount        decimal.Decimal      `json:"fiat_amount"`
	Currency          string               `json:"currency"`
	PaymentMethod     models.PaymentMethod `json:"payment_method,omitempty"`
	BillType          models.BillType      `json:"bill_type,omitempty"`
	Recipient         string               `json:"recipient,omitempty"`
	RecipientAccount  string               `json:"recipient_account,omitempty"`
	Details           models.Metadata      `json:"details,omitempty"`
	MessageType       string               `json:"message_type,omitempty"`
	Message           string               `json:"message,omitempty"`
	QueuedAt          time.Time            `json:"queued_at"`
}

type PayoutQueue interface {
	Enqueue(ctx context.Context, msg PayoutInstruction) error
}

// RedisPayoutQueue appends instructions to the payout_queue list.
type RedisPayoutQueue struct {
	redis *redis.Client
}

func NewRedisPayoutQueue(redisClient *redis.Client) *RedisPayoutQueue {
	return &RedisPayoutQueue{redis: redisClient}
}

func (q *RedisPayoutQueue) Enqueue(ctx context.Context, msg PayoutInstruction) error {
	if q.redis == nil {
		return fmt.Errorf("payout queue: redis not configured")
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return q.redis.RPush(ctx, PayoutQueueKey, data).Err()
}

// PayoutService turns CareCoins into fiat payouts. Coins are burned from the
// ledger first; the fiat leg is handed to the payout rail asynchronously.
type PayoutService struct {
	ledger    LedgerStore
	rates     RateSource
	store     PayoutRepository
	queue     PayoutQueue
	iso       *ISO20022Service
	validator *ValidationHelper
	audit     Auditor
	now       func() time.Time
	logger    zerolog.Logger
}

func NewPayoutService(ledger LedgerStore, rates RateSource, store PayoutRepository, queue PayoutQueue, audit Auditor) *PayoutService {
	return &PayoutService{
		ledger:    ledger,
		rates:     rates,
		store:     store,
		queue:     queue,
		iso:       NewISO20022Service(),
		validator: NewValidationHelper(),
		audit:     audit,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger.Component("payout"),
	}
}

func (s *PayoutService) CashOut(ctx context.Context, req models.CashOutRequest) (*models.CashOutResult, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.Details == nil || req.Details.Method() != req.PaymentMethod {
		return nil, fmt.Errorf("%w: no %q details supplied", ErrIncompletePayoutDetails, req.PaymentMethod)
	}
	if err := s.validator.ValidateStruct(req.Details); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIncompletePayoutDetails, err)
	}
	if bank, ok := req.Details.(*models.BankTransferDetails); ok {
		if !ValidRoutingNumber(bank.RoutingNumber) {
			return nil, fmt.Errorf("%w: routing number %s fails checksum", ErrIncompletePayoutDetails, bank.RoutingNumber)
		}
		if known, ok := lookupBank(usBanks, bank.RoutingNumber); ok && bank.BankName == "" {
			bank.BankName = known.Name
		}
	}

	rate, err := s.rates.GetExchangeRate(ctx)
	if err != nil {
		return nil, err
	}

	method := string(req.PaymentMethod)
	details := models.DetailsMetadata(req.Details)
	p := s.draft(req.AccountID, models.PayoutCashOut, req.Amount, rate.RateToUSD)
	p.PaymentMethod = &method
	p.Details = maskDetails(details)

	msg := s.instruction(p)
	msg.PaymentMethod = req.PaymentMethod
	msg.Details = details
	if bank, ok := req.Details.(*models.BankTransferDetails); ok {
		msg.MessageType = Pacs008MessageType
		msg.Recipient = bank.AccountHolder
		msg.RecipientAccount = bank.AccountNumber
	}

	description := fmt.Sprintf("Cash out via %s", strings.ReplaceAll(method, "_", " "))
	if err := s.execute(ctx, p, models.EntryCashOut, description, &msg, req.Details); err != nil {
		return nil, err
	}

	return &models.CashOutResult{
		PayoutResult:  result(p),
		PaymentMethod: req.PaymentMethod,
	}, nil
}

func (s *PayoutService) PayBill(ctx context.Context, req models.BillPaymentRequest) (*models.BillPaymentResult, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !req.BillType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBillType, req.BillType)
	}
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIncompletePayoutDetails, err)
	}

	rate, err := s.rates.GetExchangeRate(ctx)
	if err != nil {
		return nil, err
	}

	billType := string(req.BillType)
	p := s.draft(req.AccountID, models.PayoutBillPayment, req.Amount, rate.RateToUSD)
	p.BillType = &billType
	p.Recipient = &req.Recipient
	p.RecipientAccount = &req.RecipientAccount
	p.Details = req.BillInfo

	msg := s.instruction(p)
	msg.BillType = req.BillType
	msg.Recipient = req.Recipient
	msg.RecipientAccount = req.RecipientAccount
	msg.Details = req.BillInfo

	description := fmt.Sprintf("%s bill payment to %s", billType, req.Recipient)
	if err := s.execute(ctx, p, models.EntryBillPayment, description, &msg, nil); err != nil {
		return nil, err
	}

	return &models.BillPaymentResult{
		PayoutResult: result(p),
		BillType:     req.BillType,
		Recipient:    req.Recipient,
	}, nil
}

// execute burns the coins and records the payout in the same ledger
// transaction, then queues the instruction. A queue failure leaves the payout
// pending for the rail to pick up later.
func (s *PayoutService) execute(ctx context.Context, p *models.Payout, kind models.EntryKind, description string, msg *PayoutInstruction, details models.PayoutDetails) error {
	burn := &models.LedgerEntry{
		FromAccount: models.StringPtr(p.AccountID),
		Amount:      p.Amount,
		Kind:        kind,
		Description: description,
	}
	_, err := s.ledger.AppendEntryWith(ctx, burn, func(ctx context.Context, q Execer, entry *models.LedgerEntry) error {
		p.LedgerEntryID = entry.ID
		if err := s.store.Create(ctx, q, p); err != nil {
			return fmt.Errorf("record payout: %w", err)
		}
		return nil
	})
	if err != nil {
		metrics.Payouts.WithLabelValues(string(p.Kind), "rejected").Inc()
		if s.audit != nil {
			s.audit.LogError(p.ExternalReference, p.AccountID, err)
		}
		return err
	}

	if bank, ok := details.(*models.BankTransferDetails); ok {
		doc, err := s.iso.CreatePacs008(p, bank)
		if err == nil {
			msg.Message, err = s.iso.ConvertToXML(doc)
		}
		if err != nil {
			s.logger.Error().Err(err).Str("reference", p.ExternalReference).Msg("failed to build pacs.008")
		}
	}
	if s.queue != nil {
		if err := s.queue.Enqueue(ctx, *msg); err != nil {
			s.logger.Error().Err(err).Str("reference", p.ExternalReference).Msg("failed to queue payout instruction")
		}
	}

	if s.audit != nil {
		s.audit.LogTransfer(p.ExternalReference, p.AccountID, "", p.Amount, string(models.PayoutPending))
	}
	metrics.Payouts.WithLabelValues(string(p.Kind), string(models.PayoutPending)).Inc()
	s.logger.Info().
		Str("payout_id", p.ID).
		Str("kind", string(p.Kind)).
		Str("account_id", p.AccountID).
		Int64("amount", p.Amount).
		Str("fiat_amount", p.FiatAmount.StringFixed(2)).
		Msg("payout requested")
	return nil
}

// SettlePayout applies a status reported by the payout rail. Only pending
// payouts move; reports for settled payouts are acknowledged and ignored.
// Failed payouts are not refunded here.
func (s *PayoutService) SettlePayout(ctx context.Context, ref, code string) (*models.Payout, error) {
	status, final := PayoutStatusFromISO(code)
	if !final {
		return s.store.GetByReference(ctx, ref)
	}

	moved, err := s.store.Settle(ctx, ref, status, s.now())
	if err != nil {
		return nil, err
	}
	p, err := s.store.GetByReference(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !moved {
		s.logger.Debug().Str("reference", ref).Str("status", string(p.Status)).Str("code", code).Msg("settlement for closed payout ignored")
		return p, nil
	}

	metrics.Payouts.WithLabelValues(string(p.Kind), string(status)).Inc()
	if s.audit != nil {
		s.audit.LogTransfer(ref, p.AccountID, "", p.Amount, string(status))
	}
	s.logger.Info().Str("payout_id", p.ID).Str("reference", ref).Str("status", string(status)).Msg("payout settled")
	return p, nil
}

// SettleReport applies every status line of a pacs.002 report.
func (s *PayoutService) SettleReport(ctx context.Context, report []byte) ([]*models.Payout, error) {
	statuses, err := s.iso.ParsePacs002(report)
	if err != nil {
		return nil, err
	}
	settled := make([]*models.Payout, 0, len(statuses))
	for _, st := range statuses {
		p, err := s.SettlePayout(ctx, st.ExternalReference, st.Status)
		if err != nil {
			return settled, err
		}
		settled = append(settled, p)
	}
	return settled, nil
}

func (s *PayoutService) ListPayouts(ctx context.Context, accountID string, limit, offset int) ([]models.Payout, error) {
	return s.store.ListByAccount(ctx, accountID, limit, offset)
}

func (s *PayoutService) draft(accountID string, kind models.PayoutKind, amount int64, rate decimal.Decimal) *models.Payout {
	now := s.now()
	return &models.Payout{
		ID:                uuid.NewString(),
		AccountID:         accountID,
		Kind:              kind,
		Amount:            amount,
		FiatAmount:        ConvertAt(rate, amount),
		Currency:          payoutCurrency,
		Rate:              rate,
		Status:            models.PayoutPending,
		ExternalReference: newPayoutReference(),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func (s *PayoutService) instruction(p *models.Payout) PayoutInstruction {
	return PayoutInstruction{
		PayoutID:          p.ID,
		ExternalReference: p.ExternalReference,
		Kind:              p.Kind,
		AccountID:         p.AccountID,
		Amount:            p.Amount,
		FiatAmount:        p.FiatAmount,
		Currency:          p.Currency,
		QueuedAt:          s.now(),
	}
}

func result(p *models.Payout) models.PayoutResult {
	return models.PayoutResult{
		PayoutID:          p.ID,
		Status:            p.Status,
		ExternalReference: p.ExternalReference,
		Amount:            p.Amount,
		FiatAmount:        p.FiatAmount,
		Rate:              p.Rate,
		LedgerEntryID:     p.LedgerEntryID,
	}
}

// newPayoutReference fits the 35 character ISO 20022 end-to-end id.
func newPayoutReference() string {
	return "PO" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// maskDetails keeps the last four digits of account numbers in stored details.
func maskDetails(m models.Metadata) models.Metadata {
	if m == nil {
		return nil
	}
	masked := make(models.Metadata, len(m))
	for k, v := range m {
		masked[k] = v
	}
	if number, ok := masked["account_number"].(string); ok && len(number) > 4 {
		masked["account_number"] = strings.Repeat("*", len(number)-4) + number[len(number)-4:]
	}
	return masked
}
