package hsm

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/argon2"
)

var ErrKeyNotFound = errors.New("key not found")

// Vault holds the secp256k1 operator keys that sign outbound token
// transfers. Keys are kept AES-GCM encrypted on disk under a master key
// derived with Argon2.
type Vault struct {
	keys         map[string]*OperatorKey
	masterKey    []byte
	mu           sync.RWMutex
	keyStorePath string
	auditLogger  *AuditLogger
}

type OperatorKey struct {
	ID         string
	Address    common.Address
	PrivateKey *ecdsa.PrivateKey
	CreatedAt  time.Time
}

// storedKey is the on-disk form of an OperatorKey before encryption.
type storedKey struct {
	ID         string    `json:"id"`
	PrivateKey string    `json:"private_key"`
	CreatedAt  time.Time `json:"created_at"`
}

type Config struct {
	MasterKey    string
	KeyStorePath string
	Salt         []byte // Optional: if nil, read from or written to KeyStorePath
	DefaultKeyID string
	AuditLogger  *AuditLogger
}

// Open loads the vault from disk, creating DefaultKeyID when it is missing.
func Open(config Config) (*Vault, error) {
	if config.MasterKey == "" {
		return nil, errors.New("master key required")
	}

	salt, err := resolveSalt(config)
	if err != nil {
		return nil, err
	}

	audit := config.AuditLogger
	if audit == nil {
		audit = NewAuditLogger()
	}

	v := &Vault{
		keys:         make(map[string]*OperatorKey),
		masterKey:    deriveKey(config.MasterKey, string(salt), 32),
		keyStorePath: config.KeyStorePath,
		auditLogger:  audit,
	}

	if err := v.loadKeys(); err != nil {
		return nil, fmt.Errorf("failed to load keys: %w", err)
	}

	if config.DefaultKeyID != "" {
		if _, err := v.key(config.DefaultKeyID); errors.Is(err, ErrKeyNotFound) {
			if _, err := v.GenerateKey(config.DefaultKeyID); err != nil {
				return nil, fmt.Errorf("failed to generate default key: %w", err)
			}
		}
	}

	v.auditLogger.LogOperation("", "system", "VAULT_OPENED", fmt.Sprintf("%d operator keys loaded", len(v.keys)))
	return v, nil
}

// GenerateKey creates and persists a new operator key.
func (v *Vault) GenerateKey(keyID string) (*OperatorKey, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate secp256k1 key: %w", err)
	}
	return v.store(keyID, privateKey)
}

// ImportKey stores an existing hex-encoded private key under keyID.
func (v *Vault) ImportKey(keyID, hexKey string) (*OperatorKey, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return v.store(keyID, privateKey)
}

func (v *Vault) store(keyID string, privateKey *ecdsa.PrivateKey) (*OperatorKey, error) {
	if err := validateKeyID(keyID); err != nil {
		return nil, fmt.Errorf("invalid key ID: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if _, exists := v.keys[keyID]; exists {
		return nil, fmt.Errorf("key with ID %s already exists", keyID)
	}

	key := &OperatorKey{
		ID:         keyID,
		Address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		PrivateKey: privateKey,
		CreatedAt:  time.Now().UTC(),
	}
	if err := v.saveKeyToDisk(key); err != nil {
		return nil, fmt.Errorf("failed to save key to disk: %w", err)
	}
	v.keys[keyID] = key

	v.auditLogger.LogOperation("", keyID, "KEY_STORED", key.Address.Hex())
	return key, nil
}

func (v *Vault) Address(keyID string) (common.Address, error) {
	key, err := v.key(keyID)
	if err != nil {
		return common.Address{}, err
	}
	return key.Address, nil
}

// SignTx signs tx for chainID with the operator key. The private key never
// leaves the vault.
func (v *Vault) SignTx(keyID string, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	key, err := v.key(keyID)
	if err != nil {
		return nil, err
	}
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), key.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	v.auditLogger.LogOperation(signed.Hash().Hex(), keyID, "TX_SIGNED", fmt.Sprintf("nonce=%d chain=%s", signed.Nonce(), chainID))
	return signed, nil
}

func (v *Vault) DeleteKey(keyID string) error {
	if err := validateKeyID(keyID); err != nil {
		return fmt.Errorf("invalid key ID: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if _, exists := v.keys[keyID]; !exists {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, keyID)
	}
	delete(v.keys, keyID)

	if v.keyStorePath != "" {
		if err := os.Remove(filepath.Join(v.keyStorePath, keyID+".key")); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	v.auditLogger.LogOperation("", keyID, "KEY_DELETED", "")
	return nil
}

func (v *Vault) key(keyID string) (*OperatorKey, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	key, exists := v.keys[keyID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, keyID)
	}
	return key, nil
}

// saltFile holds the generated KDF salt next to the keys it protects.
const saltFile = "vault.salt"

// resolveSalt returns the configured salt, or the one persisted in the key
// store, generating and persisting it on first use. A vault without a key
// store keeps nothing on disk and gets a throwaway salt.
func resolveSalt(config Config) ([]byte, error) {
	if config.Salt != nil {
		return config.Salt, nil
	}

	var path string
	if config.KeyStorePath != "" {
		path = filepath.Join(config.KeyStorePath, saltFile)
		salt, err := os.ReadFile(path)
		if err == nil {
			if len(salt) < 16 {
				return nil, fmt.Errorf("%s is truncated", path)
			}
			return salt, nil
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read salt: %w", err)
		}
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	if path == "" {
		return salt, nil
	}
	if err := os.MkdirAll(config.KeyStorePath, 0700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, salt, 0600); err != nil {
		return nil, fmt.Errorf("failed to persist salt: %w", err)
	}
	return salt, nil
}

func (v *Vault) loadKeys() error {
	if v.keyStorePath == "" {
		return nil
	}

	files, err := os.ReadDir(v.keyStorePath)
	if err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(v.keyStorePath, 0700)
		}
		return err
	}

	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".key" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(v.keyStorePath, file.Name()))
		if err != nil {
			return err
		}

		decrypted, err := v.decryptWithMasterKey(data)
		if err != nil {
			return fmt.Errorf("%s: %w", file.Name(), err)
		}

		var stored storedKey
		if err := json.Unmarshal(decrypted, &stored); err != nil {
			return fmt.Errorf("%s: %w", file.Name(), err)
		}

		privateKey, err := crypto.HexToECDSA(stored.PrivateKey)
		if err != nil {
			return fmt.Errorf("%s: %w", file.Name(), err)
		}

		v.keys[stored.ID] = &OperatorKey{
			ID:         stored.ID,
			Address:    crypto.PubkeyToAddress(privateKey.PublicKey),
			PrivateKey: privateKey,
			CreatedAt:  stored.CreatedAt,
		}
	}

	return nil
}

func (v *Vault) saveKeyToDisk(key *OperatorKey) error {
	if v.keyStorePath == "" {
		return nil
	}

	data, err := json.Marshal(storedKey{
		ID:         key.ID,
		PrivateKey: fmt.Sprintf("%x", crypto.FromECDSA(key.PrivateKey)),
		CreatedAt:  key.CreatedAt,
	})
	if err != nil {
		return err
	}

	encrypted, err := v.encryptWithMasterKey(data)
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(v.keyStorePath, key.ID+".key"), encrypted, 0600)
}

func (v *Vault) encryptWithMasterKey(data []byte) ([]byte, error) {
	gcm, err := v.gcm()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, data, nil), nil
}

func (v *Vault) decryptWithMasterKey(data []byte) ([]byte, error) {
	gcm, err := v.gcm()
	if err != nil {
		return nil, err
	}

	if len(data) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func (v *Vault) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(v.masterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

func deriveKey(password, salt string, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), []byte(salt), 3, 32*1024, 4, keyLen)
}

var validKeyID = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// validateKeyID validates key ID to prevent path traversal attacks
func validateKeyID(keyID string) error {
	if keyID == "" {
		return errors.New("key ID cannot be empty")
	}
	if !validKeyID.MatchString(keyID) {
		return errors.New("key ID contains invalid characters")
	}
	return nil
}
