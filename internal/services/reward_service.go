package services

import (
	"context"
	"fmt"
	"strconv"

	"github.com/facesheet360/carecoins/internal/logger"
	"github.com/facesheet360/carecoins/internal/models"
	"github.com/rs/zerolog"
)

const (
	CategoryPatientCare           = "patient_care"
	CategoryAppointmentAttendance = "appointment_attendance"
	CategoryHealthGoal            = "health_goal"
	CategoryReferral              = "referral"
	CategorySurvey                = "survey"
	CategoryOther                 = "other"
)

var rewardCategories = map[string]bool{
	CategoryPatientCare:           true,
	CategoryAppointmentAttendance: true,
	CategoryHealthGoal:            true,
	CategoryReferral:              true,
	CategorySurvey:                true,
	CategoryOther:                 true,
}

type RewardRequest struct {
	To             string
	Amount         int64
	Category       string
	Description    string
	IdempotencyKey string
}

// RewardService mints coins from the system into user accounts.
type RewardService struct {
	ledger       LedgerStore
	audit        Auditor
	welcomeBonus int64
	maxAmount    int64
	logger       zerolog.Logger
}

// NewRewardService builds a distributor. maxAmount <= 0 disables the per-grant ceiling.
func NewRewardService(ledger LedgerStore, audit Auditor, welcomeBonus, maxAmount int64) *RewardService {
	return &RewardService{
		ledger:       ledger,
		audit:        audit,
		welcomeBonus: welcomeBonus,
		maxAmount:    maxAmount,
		logger:       logger.Component("reward"),
	}
}

// DistributeReward credits req.To with no sender. Without an idempotency key
// every call mints a new entry.
func (s *RewardService) DistributeReward(ctx context.Context, req RewardRequest) (*models.LedgerEntry, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if s.maxAmount > 0 && req.Amount > s.maxAmount {
		return nil, fmt.Errorf("%w: reward of %d exceeds the %d ceiling", ErrInvalidAmount, req.Amount, s.maxAmount)
	}
	if !rewardCategories[req.Category] {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, req.Category)
	}

	return s.mint(ctx, &models.LedgerEntry{
		ToAccount:      models.StringPtr(req.To),
		Amount:         req.Amount,
		Kind:           models.EntryReward,
		Description:    req.Description,
		Category:       models.StringPtr(req.Category),
		IdempotencyKey: scopedKey("reward", req.IdempotencyKey),
	})
}

// GrantWelcomeBonus credits the configured sign-up bonus once per account.
// A zero bonus is a no-op and returns nil, nil.
func (s *RewardService) GrantWelcomeBonus(ctx context.Context, accountID string) (*models.LedgerEntry, error) {
	if s.welcomeBonus <= 0 {
		return nil, nil
	}
	return s.mint(ctx, &models.LedgerEntry{
		ToAccount:      models.StringPtr(accountID),
		Amount:         s.welcomeBonus,
		Kind:           models.EntryWelcome,
		Description:    "Welcome to CareCoins",
		IdempotencyKey: models.StringPtr("welcome:" + accountID),
	})
}

func (s *RewardService) mint(ctx context.Context, entry *models.LedgerEntry) (*models.LedgerEntry, error) {
	to := models.Deref(entry.ToAccount)
	stored, err := s.ledger.AppendEntry(ctx, entry)
	if err != nil {
		if s.audit != nil {
			s.audit.LogError(models.Deref(entry.IdempotencyKey), to, err)
		}
		return nil, err
	}

	if s.audit != nil {
		s.audit.LogTransfer(strconv.FormatInt(stored.ID, 10), "system", to, stored.Amount, "SUCCESS")
	}
	s.logger.Info().
		Int64("entry_id", stored.ID).
		Str("to", to).
		Str("kind", string(stored.Kind)).
		Int64("amount", stored.Amount).
		Msg("coins minted")
	return stored, nil
}

// scopedKey prefixes a caller-supplied key with its namespace so keys from
// different callers and operations never collide. An empty key stays unset.
func scopedKey(scope, key string) *string {
	if key == "" {
		return nil
	}
	return models.StringPtr(scope + ":" + key)
}

// RewardCategories lists the accepted categories.
func RewardCategories() []string {
	return []string{
		CategoryPatientCare,
		CategoryAppointmentAttendance,
		CategoryHealthGoal,
		CategoryReferral,
		CategorySurvey,
		CategoryOther,
	}
}
