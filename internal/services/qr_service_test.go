package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQRService(t *testing.T) (*QRService, redismock.ClientMock) {
	t.Helper()
	db, rmock := redismock.NewClientMock()
	svc := NewQRService(db)
	svc.now = func() time.Time { return time.Unix(1767225600, 0) }
	svc.nonce = func() (string, error) { return "n0nce", nil }
	return svc, rmock
}

func TestQRService_GenerateQRCode(t *testing.T) {
	svc, rmock := newTestQRService(t)

	payload, err := json.Marshal(ReceiveRequest{AccountID: "bob", Amount: 25, Memo: "lunch", IssuedAt: 1767225600, Nonce: "n0nce"})
	require.NoError(t, err)
	code := base64.URLEncoding.EncodeToString(payload)
	rmock.ExpectSet("qr:"+code, payload, receiveRequestTTL).SetVal("OK")

	gotCode, image, err := svc.GenerateQRCode(context.Background(), "bob", 25, "lunch")
	require.NoError(t, err)
	assert.Equal(t, code, gotCode)

	png, err := base64.StdEncoding.DecodeString(image)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(png[:4]))
	assert.NoError(t, rmock.ExpectationsWereMet())

	_, _, err = svc.GenerateQRCode(context.Background(), "bob", 0, "")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestQRService_ProcessQRCode(t *testing.T) {
	ctx := context.Background()
	payload := []byte(`{"account_id":"bob","amount":25,"issued_at":1767225600,"nonce":"n0nce"}`)

	t.Run("redeems once", func(t *testing.T) {
		svc, rmock := newTestQRService(t)
		rmock.ExpectGet("qr:abc").SetVal(string(payload))
		rmock.ExpectDel("qr:abc").SetVal(1)

		req, err := svc.ProcessQRCode(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, "bob", req.AccountID)
		assert.Equal(t, int64(25), req.Amount)
		assert.NoError(t, rmock.ExpectationsWereMet())
	})

	t.Run("unknown code", func(t *testing.T) {
		svc, rmock := newTestQRService(t)
		rmock.ExpectGet("qr:gone").RedisNil()

		_, err := svc.ProcessQRCode(ctx, "gone")
		assert.ErrorIs(t, err, ErrReceiveRequestExpired)
	})

	t.Run("lost the race", func(t *testing.T) {
		svc, rmock := newTestQRService(t)
		rmock.ExpectGet("qr:abc").SetVal(string(payload))
		rmock.ExpectDel("qr:abc").SetVal(0)

		_, err := svc.ProcessQRCode(ctx, "abc")
		assert.ErrorIs(t, err, ErrReceiveRequestExpired)
	})
}
