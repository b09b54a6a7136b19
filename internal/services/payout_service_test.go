package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/facesheet360/carecoins/internal/models"
	"github.com/go-redis/redismock/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixedRate struct {
	rate *models.ExchangeRate
	err  error
}

func (f fixedRate) GetExchangeRate(context.Context) (*models.ExchangeRate, error) {
	return f.rate, f.err
}

type fakePayoutRepo struct {
	mu      sync.Mutex
	payouts map[string]*models.Payout
	err     error
}

func newFakePayoutRepo() *fakePayoutRepo {
	return &fakePayoutRepo{payouts: map[string]*models.Payout{}}
}

func (r *fakePayoutRepo) Create(_ context.Context, _ Execer, p *models.Payout) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	cp := *p
	r.payouts[p.ExternalReference] = &cp
	return nil
}

func (r *fakePayoutRepo) GetByReference(_ context.Context, ref string) (*models.Payout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payouts[ref]
	if !ok {
		return nil, ErrPayoutNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakePayoutRepo) ListByAccount(_ context.Context, accountID string, _, _ int) ([]models.Payout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Payout
	for _, p := range r.payouts {
		if p.AccountID == accountID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakePayoutRepo) Settle(_ context.Context, ref string, status models.PayoutStatus, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payouts[ref]
	if !ok || p.Status != models.PayoutPending {
		return false, nil
	}
	p.Status = status
	p.UpdatedAt = at
	return true, nil
}

type payoutFixture struct {
	svc   *PayoutService
	store *MemoryLedgerStore
	repo  *fakePayoutRepo
	queue *MockPayoutQueue
	audit *MockAuditLogger
}

func newPayoutFixture(t *testing.T, balances map[string]int64, rates RateSource) *payoutFixture {
	t.Helper()
	f := &payoutFixture{
		store: seededStore(t, balances),
		repo:  newFakePayoutRepo(),
		queue: &MockPayoutQueue{},
		audit: &MockAuditLogger{},
	}
	f.svc = NewPayoutService(f.store, rates, f.repo, f.queue, f.audit)
	return f
}

func centRate() RateSource {
	return fixedRate{rate: &models.ExchangeRate{
		Currency:  models.CareCoinCurrency,
		RateToUSD: decimal.RequireFromString("0.01"),
	}}
}

func bankDetails() *models.BankTransferDetails {
	return &models.BankTransferDetails{AccountHolder: "Alice Doe", AccountNumber: "000123456789", RoutingNumber: "021000021"}
}

func TestPayoutService_CashOut(t *testing.T) {
	ctx := context.Background()

	t.Run("bank transfer burns coins and queues a pacs.008", func(t *testing.T) {
		f := newPayoutFixture(t, map[string]int64{"alice": 2000}, centRate())
		f.audit.On("LogTransfer", mock.Anything, "alice", "", int64(1250), "pending").Return()
		f.queue.On("Enqueue", mock.Anything, mock.MatchedBy(func(msg PayoutInstruction) bool {
			return msg.MessageType == Pacs008MessageType &&
				msg.RecipientAccount == "000123456789" &&
				msg.FiatAmount.Equal(decimal.RequireFromString("12.50"))
		})).Return(nil)

		res, err := f.svc.CashOut(ctx, models.CashOutRequest{
			AccountID:     "alice",
			Amount:        1250,
			PaymentMethod: models.MethodBankTransfer,
			Details:       bankDetails(),
		})
		require.NoError(t, err)
		assert.Equal(t, models.PayoutPending, res.Status)
		assert.Equal(t, "12.5", res.FiatAmount.String())
		assert.Len(t, res.ExternalReference, 34)
		assert.NotZero(t, res.LedgerEntryID)

		balance, _ := f.store.GetBalance(ctx, "alice")
		assert.Equal(t, int64(750), balance)

		stored, err := f.repo.GetByReference(ctx, res.ExternalReference)
		require.NoError(t, err)
		assert.Equal(t, "********6789", stored.Details["account_number"])
		assert.Equal(t, "bank_transfer", models.Deref(stored.PaymentMethod))

		msg := f.queue.Calls[0].Arguments.Get(1).(PayoutInstruction)
		assert.Contains(t, msg.Message, res.ExternalReference)
		f.queue.AssertExpectations(t)
	})

	t.Run("above balance leaves everything untouched", func(t *testing.T) {
		f := newPayoutFixture(t, map[string]int64{"alice": 100}, centRate())
		f.audit.On("LogError", mock.Anything, "alice", mock.Anything).Return()

		_, err := f.svc.CashOut(ctx, models.CashOutRequest{
			AccountID:     "alice",
			Amount:        101,
			PaymentMethod: models.MethodPayPal,
			Details:       &models.PayPalDetails{Email: "alice@example.com"},
		})
		assert.ErrorIs(t, err, ErrInsufficientFunds)

		balance, _ := f.store.GetBalance(ctx, "alice")
		assert.Equal(t, int64(100), balance)
		assert.Empty(t, f.repo.payouts)
		f.queue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
	})

	t.Run("rate unavailable mutates nothing", func(t *testing.T) {
		f := newPayoutFixture(t, map[string]int64{"alice": 100}, fixedRate{err: ErrRateUnavailable})

		_, err := f.svc.CashOut(ctx, models.CashOutRequest{
			AccountID:     "alice",
			Amount:        50,
			PaymentMethod: models.MethodVenmo,
			Details:       &models.VenmoDetails{Handle: "@alice"},
		})
		assert.ErrorIs(t, err, ErrRateUnavailable)

		balance, _ := f.store.GetBalance(ctx, "alice")
		assert.Equal(t, int64(100), balance)
		entries, _ := f.store.ListEntries(ctx, "alice", 10, 0)
		assert.Len(t, entries, 1)
	})

	t.Run("incomplete details", func(t *testing.T) {
		f := newPayoutFixture(t, map[string]int64{"alice": 100}, centRate())

		_, err := f.svc.CashOut(ctx, models.CashOutRequest{
			AccountID:     "alice",
			Amount:        50,
			PaymentMethod: models.MethodBankTransfer,
			Details:       &models.BankTransferDetails{AccountHolder: "Alice Doe", AccountNumber: "123456"},
		})
		assert.ErrorIs(t, err, ErrIncompletePayoutDetails)
		assert.Contains(t, ValidationDetails(err), "routing_number")

		_, err = f.svc.CashOut(ctx, models.CashOutRequest{
			AccountID:     "alice",
			Amount:        50,
			PaymentMethod: models.MethodBankTransfer,
			Details:       &models.PayPalDetails{Email: "alice@example.com"},
		})
		assert.ErrorIs(t, err, ErrIncompletePayoutDetails)

		_, err = f.svc.CashOut(ctx, models.CashOutRequest{
			AccountID:     "alice",
			Amount:        50,
			PaymentMethod: models.MethodBankTransfer,
			Details:       &models.BankTransferDetails{AccountHolder: "Alice Doe", AccountNumber: "123456", RoutingNumber: "021000022"},
		})
		assert.ErrorIs(t, err, ErrIncompletePayoutDetails)

		balance, _ := f.store.GetBalance(ctx, "alice")
		assert.Equal(t, int64(100), balance)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		f := newPayoutFixture(t, map[string]int64{"alice": 100}, centRate())
		_, err := f.svc.CashOut(ctx, models.CashOutRequest{AccountID: "alice", Amount: 0, PaymentMethod: models.MethodVenmo, Details: &models.VenmoDetails{Handle: "@a1"}})
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("queue failure still records the payout", func(t *testing.T) {
		f := newPayoutFixture(t, map[string]int64{"alice": 100}, centRate())
		f.audit.On("LogTransfer", mock.Anything, "alice", "", int64(60), "pending").Return()
		f.queue.On("Enqueue", mock.Anything, mock.Anything).Return(errors.New("redis down"))

		res, err := f.svc.CashOut(ctx, models.CashOutRequest{
			AccountID:     "alice",
			Amount:        60,
			PaymentMethod: models.MethodVenmo,
			Details:       &models.VenmoDetails{Handle: "@alice"},
		})
		require.NoError(t, err)
		_, err = f.repo.GetByReference(ctx, res.ExternalReference)
		assert.NoError(t, err)
	})

	t.Run("record failure rolls back the burn", func(t *testing.T) {
		f := newPayoutFixture(t, map[string]int64{"alice": 100}, centRate())
		f.repo.err = errors.New("db gone")
		f.audit.On("LogError", mock.Anything, "alice", mock.Anything).Return()

		_, err := f.svc.CashOut(ctx, models.CashOutRequest{
			AccountID:     "alice",
			Amount:        60,
			PaymentMethod: models.MethodVenmo,
			Details:       &models.VenmoDetails{Handle: "@alice"},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "record payout")
		f.queue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)

		balance, _ := f.store.GetBalance(ctx, "alice")
		assert.Equal(t, int64(100), balance)
		entries, _ := f.store.ListEntries(ctx, "alice", 10, 0)
		assert.Len(t, entries, 1)
		assert.Empty(t, f.repo.payouts)
	})
}

func TestPayoutService_PayBill(t *testing.T) {
	ctx := context.Background()

	t.Run("pays the bill", func(t *testing.T) {
		f := newPayoutFixture(t, map[string]int64{"alice": 500}, centRate())
		f.audit.On("LogTransfer", mock.Anything, "alice", "", int64(300), "pending").Return()
		f.queue.On("Enqueue", mock.Anything, mock.MatchedBy(func(msg PayoutInstruction) bool {
			return msg.Kind == models.PayoutBillPayment && msg.BillType == models.BillPharmacy && msg.Message == ""
		})).Return(nil)

		res, err := f.svc.PayBill(ctx, models.BillPaymentRequest{
			AccountID:        "alice",
			Amount:           300,
			BillType:         models.BillPharmacy,
			Recipient:        "Corner Pharmacy",
			RecipientAccount: "RX-0099",
		})
		require.NoError(t, err)
		assert.Equal(t, models.BillPharmacy, res.BillType)
		assert.Equal(t, "3", res.FiatAmount.String())

		balance, _ := f.store.GetBalance(ctx, "alice")
		assert.Equal(t, int64(200), balance)
		entries, _ := f.store.ListEntries(ctx, "alice", 1, 0)
		require.Len(t, entries, 1)
		assert.Equal(t, models.EntryBillPayment, entries[0].Kind)
		f.queue.AssertExpectations(t)
	})

	t.Run("unknown bill type", func(t *testing.T) {
		f := newPayoutFixture(t, map[string]int64{"alice": 500}, centRate())
		_, err := f.svc.PayBill(ctx, models.BillPaymentRequest{
			AccountID: "alice", Amount: 10, BillType: "parking", Recipient: "City", RecipientAccount: "1",
		})
		assert.ErrorIs(t, err, ErrInvalidBillType)
	})

	t.Run("missing recipient", func(t *testing.T) {
		f := newPayoutFixture(t, map[string]int64{"alice": 500}, centRate())
		_, err := f.svc.PayBill(ctx, models.BillPaymentRequest{
			AccountID: "alice", Amount: 10, BillType: models.BillPhone, RecipientAccount: "555",
		})
		assert.ErrorIs(t, err, ErrIncompletePayoutDetails)
		balance, _ := f.store.GetBalance(ctx, "alice")
		assert.Equal(t, int64(500), balance)
	})
}

func TestPayoutService_SettlePayout(t *testing.T) {
	ctx := context.Background()
	f := newPayoutFixture(t, map[string]int64{"alice": 500}, centRate())
	f.audit.On("LogTransfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return()
	f.queue.On("Enqueue", mock.Anything, mock.Anything).Return(nil)

	res, err := f.svc.CashOut(ctx, models.CashOutRequest{
		AccountID:     "alice",
		Amount:        100,
		PaymentMethod: models.MethodPayPal,
		Details:       &models.PayPalDetails{Email: "alice@example.com"},
	})
	require.NoError(t, err)

	p, err := f.svc.SettlePayout(ctx, res.ExternalReference, "PDNG")
	require.NoError(t, err)
	assert.Equal(t, models.PayoutPending, p.Status)

	p, err = f.svc.SettlePayout(ctx, res.ExternalReference, "ACSC")
	require.NoError(t, err)
	assert.Equal(t, models.PayoutCompleted, p.Status)

	p, err = f.svc.SettlePayout(ctx, res.ExternalReference, "RJCT")
	require.NoError(t, err)
	assert.Equal(t, models.PayoutCompleted, p.Status, "settled payouts do not move again")

	balance, _ := f.store.GetBalance(ctx, "alice")
	assert.Equal(t, int64(400), balance, "no refund on settlement")

	_, err = f.svc.SettlePayout(ctx, "PO-missing", "ACSC")
	assert.ErrorIs(t, err, ErrPayoutNotFound)
}

func TestPayoutService_SettleReport(t *testing.T) {
	ctx := context.Background()
	f := newPayoutFixture(t, map[string]int64{"alice": 500}, centRate())
	f.audit.On("LogTransfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return()
	f.queue.On("Enqueue", mock.Anything, mock.Anything).Return(nil)

	res, err := f.svc.CashOut(ctx, models.CashOutRequest{
		AccountID:     "alice",
		Amount:        100,
		PaymentMethod: models.MethodBankTransfer,
		Details:       bankDetails(),
	})
	require.NoError(t, err)

	stored, _ := f.repo.GetByReference(ctx, res.ExternalReference)
	doc, err := f.svc.iso.CreatePacs002(stored, "RJCT")
	require.NoError(t, err)
	report, err := f.svc.iso.ConvertToXML(doc)
	require.NoError(t, err)

	settled, err := f.svc.SettleReport(ctx, []byte(report))
	require.NoError(t, err)
	require.Len(t, settled, 1)
	assert.Equal(t, models.PayoutFailed, settled[0].Status)
}

func TestRedisPayoutQueue(t *testing.T) {
	db, rmock := redismock.NewClientMock()
	queue := NewRedisPayoutQueue(db)

	msg := PayoutInstruction{
		PayoutID:          "p1",
		ExternalReference: "PO1",
		Kind:              models.PayoutCashOut,
		AccountID:         "alice",
		Amount:            100,
		FiatAmount:        decimal.RequireFromString("1.00"),
		Currency:          "USD",
		QueuedAt:          time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	payload, err := json.Marshal(msg)
	require.NoError(t, err)
	rmock.ExpectRPush(PayoutQueueKey, payload).SetVal(1)

	require.NoError(t, queue.Enqueue(context.Background(), msg))
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestMaskDetails(t *testing.T) {
	masked := maskDetails(models.Metadata{"account_number": "123456789", "account_holder": "A"})
	assert.Equal(t, "*****6789", masked["account_number"])
	assert.Equal(t, "A", masked["account_holder"])
	assert.Nil(t, maskDetails(nil))
}
