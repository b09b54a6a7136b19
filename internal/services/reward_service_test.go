package services

import (
	"context"
	"testing"

	"github.com/facesheet360/carecoins/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRewardService_DistributeReward(t *testing.T) {
	ctx := context.Background()

	newService := func(t *testing.T) (*RewardService, *MemoryLedgerStore) {
		store := seededStore(t, map[string]int64{"pat": 0})
		audit := &MockAuditLogger{}
		audit.On("LogTransfer", mock.Anything, "system", mock.Anything, mock.Anything, "SUCCESS").Return()
		audit.On("LogError", mock.Anything, mock.Anything, mock.Anything).Return()
		return NewRewardService(store, audit, 100, 10000), store
	}

	t.Run("credits a zero balance account", func(t *testing.T) {
		svc, store := newService(t)

		entry, err := svc.DistributeReward(ctx, RewardRequest{To: "pat", Amount: 10, Category: CategoryPatientCare})
		require.NoError(t, err)
		assert.Nil(t, entry.FromAccount)

		balance, _ := store.GetBalance(ctx, "pat")
		assert.Equal(t, int64(10), balance)
		entries, _ := store.ListEntries(ctx, "pat", 10, 0)
		require.Len(t, entries, 1)
		assert.Nil(t, entries[0].FromAccount)
		assert.Equal(t, CategoryPatientCare, *entries[0].Category)
	})

	t.Run("duplicate calls without a key mint twice", func(t *testing.T) {
		svc, store := newService(t)
		req := RewardRequest{To: "pat", Amount: 10, Category: CategorySurvey}

		first, err := svc.DistributeReward(ctx, req)
		require.NoError(t, err)
		second, err := svc.DistributeReward(ctx, req)
		require.NoError(t, err)

		assert.NotEqual(t, first.ID, second.ID)
		balance, _ := store.GetBalance(ctx, "pat")
		assert.Equal(t, int64(20), balance)
	})

	t.Run("keyed calls mint once", func(t *testing.T) {
		svc, store := newService(t)
		req := RewardRequest{To: "pat", Amount: 10, Category: CategorySurvey, IdempotencyKey: "survey-42"}

		first, err := svc.DistributeReward(ctx, req)
		require.NoError(t, err)
		second, err := svc.DistributeReward(ctx, req)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		balance, _ := store.GetBalance(ctx, "pat")
		assert.Equal(t, int64(10), balance)
	})

	t.Run("reward keys live in their own namespace", func(t *testing.T) {
		svc, store := newService(t)
		raw, err := store.AppendEntry(ctx, &models.LedgerEntry{
			ToAccount:      models.StringPtr("pat"),
			Amount:         5,
			Kind:           models.EntryReward,
			IdempotencyKey: models.StringPtr("survey-7"),
		})
		require.NoError(t, err)

		entry, err := svc.DistributeReward(ctx, RewardRequest{To: "pat", Amount: 10, Category: CategorySurvey, IdempotencyKey: "survey-7"})
		require.NoError(t, err)

		assert.NotEqual(t, raw.ID, entry.ID)
		assert.Equal(t, "reward:survey-7", models.Deref(entry.IdempotencyKey))
		balance, _ := store.GetBalance(ctx, "pat")
		assert.Equal(t, int64(15), balance)
	})

	t.Run("rejects bad requests before touching the ledger", func(t *testing.T) {
		svc, store := newService(t)

		cases := []struct {
			name string
			req  RewardRequest
			want error
		}{
			{"zero amount", RewardRequest{To: "pat", Amount: 0, Category: CategoryOther}, ErrInvalidAmount},
			{"over ceiling", RewardRequest{To: "pat", Amount: 10001, Category: CategoryOther}, ErrInvalidAmount},
			{"unknown category", RewardRequest{To: "pat", Amount: 5, Category: "lottery"}, ErrInvalidCategory},
			{"unknown account", RewardRequest{To: "ghost", Amount: 5, Category: CategoryOther}, ErrAccountNotFound},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := svc.DistributeReward(ctx, tc.req)
				assert.ErrorIs(t, err, tc.want)
			})
		}

		balance, _ := store.GetBalance(ctx, "pat")
		assert.Zero(t, balance)
	})
}

func TestRewardService_GrantWelcomeBonus(t *testing.T) {
	ctx := context.Background()

	t.Run("granted once per account", func(t *testing.T) {
		store := seededStore(t, map[string]int64{"new": 0})
		audit := &MockAuditLogger{}
		audit.On("LogTransfer", mock.Anything, "system", "new", int64(100), "SUCCESS").Return()
		svc := NewRewardService(store, audit, 100, 0)

		first, err := svc.GrantWelcomeBonus(ctx, "new")
		require.NoError(t, err)
		second, err := svc.GrantWelcomeBonus(ctx, "new")
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		account, err := store.GetAccount(ctx, "new")
		require.NoError(t, err)
		assert.Equal(t, int64(100), account.Balance)
		assert.Equal(t, int64(100), account.LifetimeEarned)
	})

	t.Run("disabled bonus", func(t *testing.T) {
		store := seededStore(t, map[string]int64{"new": 0})
		svc := NewRewardService(store, nil, 0, 0)

		entry, err := svc.GrantWelcomeBonus(ctx, "new")
		require.NoError(t, err)
		assert.Nil(t, entry)
	})
}
