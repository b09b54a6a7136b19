package blockchain

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/facesheet360/carecoins/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	balance  *big.Int
	callErr  error
	sent     []*types.Transaction
	receipts map[common.Hash]*types.Receipt
	lastCall ethereum.CallMsg
}

func (f *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.lastCall = msg
	if f.callErr != nil {
		return nil, f.callErr
	}
	return common.LeftPadBytes(f.balance.Bytes(), 32), nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return uint64(len(f.sent)), nil
}

func (f *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(2), nil
}

func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: big.NewInt(10)}, nil
}

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 52000, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionByHash(_ context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	for _, tx := range f.sent {
		if tx.Hash() == hash {
			return tx, false, nil
		}
	}
	return nil, false, ethereum.NotFound
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	if r, ok := f.receipts[hash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (f *fakeBackend) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{1}, nil
}

type keySigner struct{}

var signerKey, _ = crypto.HexToECDSA("b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291")

func (keySigner) Address(string) (common.Address, error) {
	return crypto.PubkeyToAddress(signerKey.PublicKey), nil
}

func (keySigner) SignTx(_ string, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), signerKey)
}

var testContract = &models.CareCoinContract{
	ID:              1,
	ContractAddress: "0x1111111111111111111111111111111111111111",
	Network:         "sepolia",
	ChainID:         11155111,
	Decimals:        18,
}

func TestClient_BalanceOf(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{balance: big.NewInt(123456)}
	client := NewClient(backend, keySigner{}, "operator")

	balance, err := client.BalanceOf(ctx, testContract)
	require.NoError(t, err)
	assert.Equal(t, int64(123456), balance.Int64())
	assert.Equal(t, common.HexToAddress(testContract.ContractAddress), *backend.lastCall.To)

	parsed, err := abi.JSON(strings.NewReader(ERC20ABI))
	require.NoError(t, err)
	assert.Equal(t, parsed.Methods["balanceOf"].ID, backend.lastCall.Data[:4])

	backend.callErr = errors.New("connection refused")
	_, err = client.BalanceOf(ctx, testContract)
	assert.Error(t, err)
}

func TestClient_SubmitAndWait(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{receipts: map[common.Hash]*types.Receipt{}}
	client := NewClient(backend, keySigner{}, "operator")
	recipient := "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

	hash, err := client.SubmitTransfer(ctx, testContract, recipient, big.NewInt(5000))
	require.NoError(t, err)
	require.Len(t, backend.sent, 1)

	tx := backend.sent[0]
	assert.Equal(t, hash, tx.Hash().Hex())
	assert.Equal(t, common.HexToAddress(testContract.ContractAddress), *tx.To())
	assert.Equal(t, big.NewInt(22), tx.GasFeeCap())

	parsed, _ := abi.JSON(strings.NewReader(ERC20ABI))
	args, err := parsed.Methods["transfer"].Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(recipient), args[0])
	assert.Equal(t, big.NewInt(5000), args[1])

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(testContract.ChainID)), tx)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(signerKey.PublicKey), sender)

	backend.receipts[tx.Hash()] = &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(99)}
	receipt, err := client.WaitReceipt(ctx, hash)
	require.NoError(t, err)
	assert.False(t, receipt.Success)
	assert.Equal(t, int64(99), receipt.BlockNumber)
}

func TestClient_WaitReceiptHonoursContext(t *testing.T) {
	backend := &fakeBackend{receipts: map[common.Hash]*types.Receipt{}}
	client := NewClient(backend, keySigner{}, "operator")
	hash, err := client.SubmitTransfer(context.Background(), testContract, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", big.NewInt(1))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.WaitReceipt(ctx, hash)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_BadABI(t *testing.T) {
	client := NewClient(&fakeBackend{}, keySigner{}, "operator")
	_, err := client.BalanceOf(context.Background(), &models.CareCoinContract{ContractAddress: "0x2222222222222222222222222222222222222222", ABI: "{not json"})
	assert.Error(t, err)
}
