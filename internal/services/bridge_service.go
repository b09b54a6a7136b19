package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/facesheet360/carecoins/internal/logger"
	"github.com/facesheet360/carecoins/internal/metrics"
	"github.com/facesheet360/carecoins/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TxReceipt is the outcome of a mined token transfer.
type TxReceipt struct {
	BlockNumber int64
	Success     bool
}

// TokenNetwork is the external chain holding the CareCoin ERC-20 contract.
type TokenNetwork interface {
	// BalanceOf returns the operator's token balance in base units.
	BalanceOf(ctx context.Context, contract *models.CareCoinContract) (*big.Int, error)
	SubmitTransfer(ctx context.Context, contract *models.CareCoinContract, recipient string, amount *big.Int) (string, error)
	WaitReceipt(ctx context.Context, txHash string) (*TxReceipt, error)
}

// BridgeJob asks a worker to drive one bridge transaction. Resume jobs only
// wait for the receipt of an already submitted transaction.
type BridgeJob struct {
	ID     string
	Resume bool
}

// Dispatcher hands jobs to background workers without blocking.
type Dispatcher interface {
	Submit(job BridgeJob) bool
}

type BridgeRequest struct {
	ContractRef      string
	RecipientAddress string
	Amount           int64
	LedgerEntryID    *int64
	IdempotencyKey   string
}

const sweepBatchSize = 500

type BridgeService struct {
	store          BridgeRepository
	network        TokenNetwork
	dispatcher     Dispatcher
	submitTimeout  time.Duration
	confirmTimeout time.Duration
	inflight       sync.Map
	now            func() time.Time
	logger         zerolog.Logger
}

func NewBridgeService(store BridgeRepository, network TokenNetwork, submitTimeout, confirmTimeout time.Duration) *BridgeService {
	return &BridgeService{
		store:          store,
		network:        network,
		submitTimeout:  submitTimeout,
		confirmTimeout: confirmTimeout,
		now:            func() time.Time { return time.Now().UTC() },
		logger:         logger.Component("bridge"),
	}
}

// SetDispatcher attaches the worker pool. The pool needs the service as its
// processor, so it is wired after construction.
func (s *BridgeService) SetDispatcher(d Dispatcher) {
	s.dispatcher = d
}

// RequestBridgeTransfer records a bridge request, runs the balance pre-flight
// and hands the submission to a worker. Pre-flight failures return the failed
// record together with the cause.
func (s *BridgeService) RequestBridgeTransfer(ctx context.Context, req BridgeRequest) (*models.BridgeTransaction, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !validRecipient(req.RecipientAddress) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRecipientAddress, req.RecipientAddress)
	}

	if req.IdempotencyKey != "" {
		existing, err := s.store.FindByKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	if req.LedgerEntryID != nil {
		if err := s.checkLedgerEntry(ctx, *req.LedgerEntryID); err != nil {
			return nil, err
		}
	}

	contract, err := s.store.FindContract(ctx, req.ContractRef)
	if err != nil {
		return nil, err
	}

	now := s.now()
	tx := &models.BridgeTransaction{
		ID:               uuid.NewString(),
		LedgerEntryID:    req.LedgerEntryID,
		ContractAddress:  contract.ContractAddress,
		Network:          contract.Network,
		RecipientAddress: common.HexToAddress(req.RecipientAddress).Hex(),
		Amount:           req.Amount,
		Status:           models.BridgeRequested,
		IdempotencyKey:   models.StringPtr(req.IdempotencyKey),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.Create(ctx, tx); err != nil {
		if errors.Is(err, errDuplicateKey) {
			return s.store.FindByKey(ctx, req.IdempotencyKey)
		}
		return nil, err
	}
	metrics.BridgeTransitions.WithLabelValues(string(models.BridgeRequested), "").Inc()

	if err := s.preflight(ctx, contract, req.Amount); err != nil {
		s.fail(ctx, tx, models.BridgeRequested, err, err.Error())
		return tx, err
	}

	s.dispatch(BridgeJob{ID: tx.ID})
	s.logger.Info().
		Str("bridge_id", tx.ID).
		Str("recipient", tx.RecipientAddress).
		Int64("amount", tx.Amount).
		Msg("bridge transfer requested")
	return tx, nil
}

// checkLedgerEntry rejects a missing entry and an entry that already has a
// bridge row which has not failed.
func (s *BridgeService) checkLedgerEntry(ctx context.Context, entryID int64) error {
	exists, err := s.store.LedgerEntryExists(ctx, entryID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %d", ErrLedgerEntryNotFound, entryID)
	}
	active, err := s.store.FindActiveByLedgerEntry(ctx, entryID)
	if err != nil {
		return err
	}
	if active != nil {
		return fmt.Errorf("%w: entry %d is bridged by %s", ErrEntryAlreadyBridged, entryID, active.ID)
	}
	return nil
}

func (s *BridgeService) preflight(ctx context.Context, contract *models.CareCoinContract, amount int64) error {
	if s.network == nil {
		return fmt.Errorf("%w: no token network configured", ErrNetworkUnavailable)
	}
	balance, err := s.network.BalanceOf(ctx, contract)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	needed := ScaleAmount(amount, contract.Decimals)
	if balance.Cmp(needed) < 0 {
		return fmt.Errorf("%w: operator holds %s, need %s", ErrInsufficientExternalBalance, balance, needed)
	}
	return nil
}

// Process drives one job. It runs on a worker with its own context, never the
// request's.
func (s *BridgeService) Process(ctx context.Context, job BridgeJob) error {
	if _, busy := s.inflight.LoadOrStore(job.ID, struct{}{}); busy {
		return nil
	}
	defer s.inflight.Delete(job.ID)

	tx, err := s.store.Get(ctx, job.ID)
	if err != nil {
		return err
	}
	if tx.Status.Terminal() {
		return nil
	}

	if tx.Status == models.BridgeSubmitted {
		return s.awaitReceipt(ctx, tx)
	}
	if job.Resume {
		return nil
	}

	claimed, err := s.store.Claim(ctx, tx.ID, s.now())
	if err != nil {
		return err
	}
	if !claimed {
		s.logger.Debug().Str("bridge_id", tx.ID).Msg("bridge transaction already claimed")
		return nil
	}

	contract, err := s.store.FindContract(ctx, tx.ContractAddress)
	if err != nil {
		s.fail(ctx, tx, models.BridgeRequested, err, err.Error())
		return err
	}
	if s.network == nil {
		err := fmt.Errorf("%w: no token network configured", ErrNetworkUnavailable)
		s.fail(ctx, tx, models.BridgeRequested, err, err.Error())
		return err
	}

	submitCtx, cancel := context.WithTimeout(ctx, s.submitTimeout)
	hash, err := s.network.SubmitTransfer(submitCtx, contract, tx.RecipientAddress, ScaleAmount(tx.Amount, contract.Decimals))
	cancel()
	if err != nil && ctx.Err() != nil {
		// Shutting down. The sweep fails the claimed row once it is abandoned.
		return ctx.Err()
	}
	if err != nil {
		s.fail(ctx, tx, models.BridgeRequested, ErrNetworkUnavailable, err.Error())
		return fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}

	now := s.now()
	moved, err := s.store.MarkSubmitted(ctx, tx.ID, hash, now)
	if err != nil {
		return err
	}
	if !moved {
		s.logger.Warn().Str("bridge_id", tx.ID).Str("tx_hash", hash).Msg("bridge transaction left requested state before submission was recorded")
		return nil
	}
	tx.Status = models.BridgeSubmitted
	tx.TxHash = &hash
	tx.SubmittedAt = &now
	metrics.BridgeTransitions.WithLabelValues(string(models.BridgeSubmitted), "").Inc()
	s.logger.Info().Str("bridge_id", tx.ID).Str("tx_hash", hash).Msg("bridge transfer submitted")

	return s.awaitReceipt(ctx, tx)
}

func (s *BridgeService) awaitReceipt(ctx context.Context, tx *models.BridgeTransaction) error {
	hash := models.Deref(tx.TxHash)
	if s.network == nil {
		return fmt.Errorf("%w: no token network configured", ErrNetworkUnavailable)
	}
	waitCtx, cancel := context.WithTimeout(ctx, s.confirmTimeout)
	defer cancel()

	receipt, err := s.network.WaitReceipt(waitCtx, hash)
	if err != nil && ctx.Err() != nil {
		// Shutting down. The row stays submitted and the sweep resumes it.
		return ctx.Err()
	}
	if err != nil {
		message := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			message = "timed out waiting for receipt"
		}
		s.fail(ctx, tx, models.BridgeSubmitted, ErrNetworkUnavailable, message)
		return fmt.Errorf("%w: %s", ErrNetworkUnavailable, message)
	}
	if !receipt.Success {
		s.fail(ctx, tx, models.BridgeSubmitted, ErrSubmissionReverted, "transaction reverted")
		return ErrSubmissionReverted
	}

	now := s.now()
	moved, err := s.store.MarkConfirmed(ctx, tx.ID, receipt.BlockNumber, now)
	if err != nil {
		return err
	}
	if !moved {
		return nil
	}
	tx.Status = models.BridgeConfirmed
	tx.BlockNumber = &receipt.BlockNumber
	tx.CompletedAt = &now
	metrics.BridgeTransitions.WithLabelValues(string(models.BridgeConfirmed), "").Inc()
	if tx.SubmittedAt != nil {
		metrics.BridgeConfirmSeconds.Observe(now.Sub(*tx.SubmittedAt).Seconds())
	}
	s.logger.Info().Str("bridge_id", tx.ID).Str("tx_hash", hash).Int64("block", receipt.BlockNumber).Msg("bridge transfer confirmed")
	return nil
}

// fail records a terminal failure. cause supplies the error code.
func (s *BridgeService) fail(ctx context.Context, tx *models.BridgeTransaction, from models.BridgeStatus, cause error, message string) {
	code := ErrorCode(cause)
	now := s.now()
	moved, err := s.store.MarkFailed(ctx, tx.ID, from, code, message, now)
	if err != nil {
		s.logger.Error().Err(err).Str("bridge_id", tx.ID).Msg("failed to record bridge failure")
		return
	}
	if !moved {
		return
	}
	tx.Status = models.BridgeFailed
	tx.ErrorCode = &code
	tx.ErrorMessage = &message
	tx.CompletedAt = &now
	metrics.BridgeTransitions.WithLabelValues(string(models.BridgeFailed), code).Inc()
	s.logger.Warn().Str("bridge_id", tx.ID).Str("code", code).Str("reason", message).Msg("bridge transfer failed")
}

func (s *BridgeService) dispatch(job BridgeJob) bool {
	if s.dispatcher == nil || !s.dispatcher.Submit(job) {
		s.logger.Warn().Str("bridge_id", job.ID).Msg("bridge queue unavailable, leaving job for the sweep")
		return false
	}
	return true
}

// Sweep re-dispatches unfinished work after a restart or a full queue and
// fails rows whose submission attempt was abandoned. It returns the number of
// rows it acted on.
func (s *BridgeService) Sweep(ctx context.Context) (int, error) {
	pending, err := s.store.ListPending(ctx, sweepBatchSize)
	if err != nil {
		return 0, err
	}

	now := s.now()
	acted := 0
	for i := range pending {
		tx := &pending[i]
		if _, busy := s.inflight.Load(tx.ID); busy {
			continue
		}
		switch tx.Status {
		case models.BridgeRequested:
			if tx.AttemptStartedAt == nil {
				if now.Sub(tx.CreatedAt) < s.submitTimeout {
					continue
				}
				if s.dispatch(BridgeJob{ID: tx.ID}) {
					acted++
				}
				continue
			}
			if now.Sub(*tx.AttemptStartedAt) > s.submitTimeout {
				s.fail(ctx, tx, models.BridgeRequested, ErrNetworkUnavailable, "abandoned before submission")
				acted++
			}
		case models.BridgeSubmitted:
			if s.dispatch(BridgeJob{ID: tx.ID, Resume: true}) {
				acted++
			}
		}
	}
	return acted, nil
}

func (s *BridgeService) GetBridgeTransaction(ctx context.Context, id string) (*models.BridgeTransaction, error) {
	return s.store.Get(ctx, id)
}

func (s *BridgeService) ListBridgeTransactions(ctx context.Context, status models.BridgeStatus, limit int) ([]models.BridgeTransaction, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown bridge status %q", ErrInvalidEntry, status)
	}
	return s.store.List(ctx, status, limit)
}

// ScaleAmount converts whole coins to token base units.
func ScaleAmount(amount int64, decimals int) *big.Int {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return new(big.Int).Mul(big.NewInt(amount), scale)
}

func validRecipient(addr string) bool {
	if !common.IsHexAddress(addr) {
		return false
	}
	return common.HexToAddress(addr) != (common.Address{})
}
