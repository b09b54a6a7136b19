package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"
)

var ErrReceiveRequestExpired = errors.New("invalid or expired QR code")

const receiveRequestTTL = 5 * time.Minute

// ReceiveRequest asks the scanner to pay Amount coins to AccountID.
type ReceiveRequest struct {
	AccountID string `json:"account_id"`
	Amount    int64  `json:"amount"`
	Memo      string `json:"memo,omitempty"`
	IssuedAt  int64  `json:"issued_at"`
	Nonce     string `json:"nonce"`
}

// QRService issues single-use wallet receive requests encoded as QR codes.
type QRService struct {
	redis *redis.Client
	ttl   time.Duration
	now   func() time.Time
	nonce func() (string, error)
}

func NewQRService(redisClient *redis.Client) *QRService {
	return &QRService{
		redis: redisClient,
		ttl:   receiveRequestTTL,
		now:   time.Now,
		nonce: generateNonce,
	}
}

// GenerateQRCode stores the request and returns its code with a base64 PNG.
func (s *QRService) GenerateQRCode(ctx context.Context, accountID string, amount int64, memo string) (string, string, error) {
	if amount <= 0 {
		return "", "", ErrInvalidAmount
	}
	nonce, err := s.nonce()
	if err != nil {
		return "", "", err
	}
	req := ReceiveRequest{
		AccountID: accountID,
		Amount:    amount,
		Memo:      memo,
		IssuedAt:  s.now().Unix(),
		Nonce:     nonce,
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return "", "", err
	}

	qrCode := base64.URLEncoding.EncodeToString(jsonData)

	if err := s.redis.Set(ctx, qrKey(qrCode), jsonData, s.ttl).Err(); err != nil {
		return "", "", err
	}

	qr, err := qrcode.New(qrCode, qrcode.Medium)
	if err != nil {
		return "", "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", "", err
	}

	return qrCode, base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ProcessQRCode consumes a receive request. A code can be redeemed once.
func (s *QRService) ProcessQRCode(ctx context.Context, code string) (*ReceiveRequest, error) {
	key := qrKey(code)

	data, err := s.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrReceiveRequestExpired
	}
	if err != nil {
		return nil, err
	}

	deleted, err := s.redis.Del(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	// Someone else redeemed it between Get and Del.
	if deleted == 0 {
		return nil, ErrReceiveRequestExpired
	}

	var req ReceiveRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func qrKey(code string) string {
	return fmt.Sprintf("qr:%s", code)
}

func generateNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
