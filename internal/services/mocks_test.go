package services

import (
	"context"
	"math/big"

	"github.com/facesheet360/carecoins/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockAuditLogger struct {
	mock.Mock
}

func (m *MockAuditLogger) LogTransfer(txID, fromAccount, toAccount string, amount int64, status string) {
	m.Called(txID, fromAccount, toAccount, amount, status)
}

func (m *MockAuditLogger) LogError(txID, accountID string, err error) {
	m.Called(txID, accountID, err)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishTransferCompleted(ctx context.Context, evt TransferCompleted) error {
	args := m.Called(ctx, evt)
	return args.Error(0)
}

type MockTokenNetwork struct {
	mock.Mock
}

func (m *MockTokenNetwork) BalanceOf(ctx context.Context, contract *models.CareCoinContract) (*big.Int, error) {
	args := m.Called(ctx, contract)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}

func (m *MockTokenNetwork) SubmitTransfer(ctx context.Context, contract *models.CareCoinContract, recipient string, amount *big.Int) (string, error) {
	args := m.Called(ctx, contract, recipient, amount)
	return args.String(0), args.Error(1)
}

func (m *MockTokenNetwork) WaitReceipt(ctx context.Context, txHash string) (*TxReceipt, error) {
	args := m.Called(ctx, txHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*TxReceipt), args.Error(1)
}

type MockPayoutQueue struct {
	mock.Mock
}

func (m *MockPayoutQueue) Enqueue(ctx context.Context, msg PayoutInstruction) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}
