package blockchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/facesheet360/carecoins/internal/logger"
	"github.com/facesheet360/carecoins/internal/models"
	"github.com/facesheet360/carecoins/internal/services"
	"github.com/rs/zerolog"
)

// ERC20ABI covers the calls the bridge makes when a contract row carries no ABI.
const ERC20ABI = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"}
]`

// Backend is the subset of ethclient.Client the bridge needs.
type Backend interface {
	bind.DeployBackend
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
}

// Signer signs with a key that stays inside the vault.
type Signer interface {
	Address(keyID string) (common.Address, error)
	SignTx(keyID string, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// Client talks ERC-20 to the CareCoin token contract on behalf of the
// operator account.
type Client struct {
	backend Backend
	signer  Signer
	keyID   string
	logger  zerolog.Logger

	mu   sync.Mutex
	abis map[string]abi.ABI
	// Serializes nonce allocation for the operator account.
	sendMu sync.Mutex
}

var _ services.TokenNetwork = (*Client)(nil)

func Dial(ctx context.Context, rpcURL string, signer Signer, keyID string) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	return NewClient(ec, signer, keyID), nil
}

func NewClient(backend Backend, signer Signer, keyID string) *Client {
	return &Client{
		backend: backend,
		signer:  signer,
		keyID:   keyID,
		logger:  logger.Component("blockchain"),
		abis:    make(map[string]abi.ABI),
	}
}

func (c *Client) BalanceOf(ctx context.Context, contract *models.CareCoinContract) (*big.Int, error) {
	parsed, err := c.contractABI(contract)
	if err != nil {
		return nil, err
	}
	operator, err := c.signer.Address(c.keyID)
	if err != nil {
		return nil, err
	}

	data, err := parsed.Pack("balanceOf", operator)
	if err != nil {
		return nil, err
	}
	to := common.HexToAddress(contract.ContractAddress)
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{From: operator, To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("balanceOf call: %w", err)
	}

	values, err := parsed.Unpack("balanceOf", out)
	if err != nil {
		return nil, fmt.Errorf("decode balanceOf: %w", err)
	}
	if len(values) != 1 {
		return nil, errors.New("decode balanceOf: unexpected output")
	}
	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("decode balanceOf: got %T", values[0])
	}
	return balance, nil
}

// SubmitTransfer signs and broadcasts transfer(recipient, amount) and returns
// the transaction hash.
func (c *Client) SubmitTransfer(ctx context.Context, contract *models.CareCoinContract, recipient string, amount *big.Int) (string, error) {
	parsed, err := c.contractABI(contract)
	if err != nil {
		return "", err
	}
	operator, err := c.signer.Address(c.keyID)
	if err != nil {
		return "", err
	}

	data, err := parsed.Pack("transfer", common.HexToAddress(recipient), amount)
	if err != nil {
		return "", err
	}
	to := common.HexToAddress(contract.ContractAddress)

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	nonce, err := c.backend.PendingNonceAt(ctx, operator)
	if err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	tip, err := c.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return "", fmt.Errorf("gas tip: %w", err)
	}
	head, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("latest header: %w", err)
	}
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{From: operator, To: &to, Data: data})
	if err != nil {
		return "", fmt.Errorf("estimate gas: %w", err)
	}

	chainID := big.NewInt(contract.ChainID)
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Data:      data,
	})
	signed, err := c.signer.SignTx(c.keyID, tx, chainID)
	if err != nil {
		return "", err
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}

	hash := signed.Hash().Hex()
	c.logger.Info().Str("tx_hash", hash).Uint64("nonce", nonce).Str("recipient", recipient).Msg("token transfer broadcast")
	return hash, nil
}

// WaitReceipt blocks until the transaction is mined or ctx ends.
func (c *Client) WaitReceipt(ctx context.Context, txHash string) (*services.TxReceipt, error) {
	tx, _, err := c.backend.TransactionByHash(ctx, common.HexToHash(txHash))
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", txHash, err)
	}
	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return nil, err
	}
	return &services.TxReceipt{
		BlockNumber: receipt.BlockNumber.Int64(),
		Success:     receipt.Status == types.ReceiptStatusSuccessful,
	}, nil
}

func (c *Client) contractABI(contract *models.CareCoinContract) (abi.ABI, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := strings.ToLower(contract.ContractAddress)
	if parsed, ok := c.abis[key]; ok {
		return parsed, nil
	}

	source := contract.ABI
	if strings.TrimSpace(source) == "" {
		source = ERC20ABI
	}
	parsed, err := abi.JSON(strings.NewReader(source))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse ABI for %s: %w", contract.ContractAddress, err)
	}
	c.abis[key] = parsed
	return parsed, nil
}
