package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/facesheet360/carecoins/internal/logger"
	"github.com/facesheet360/carecoins/internal/models"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const rateCacheKey = "carecoins:exchange_rate:" + models.CareCoinCurrency

// RateSource supplies the current CareCoin to USD rate.
type RateSource interface {
	GetExchangeRate(ctx context.Context) (*models.ExchangeRate, error)
}

type ExchangeRateService struct {
	db          *sql.DB
	redis       *redis.Client
	ttl         time.Duration
	providerURL string
	httpClient  *http.Client
	logger      zerolog.Logger
}

func NewExchangeRateService(db *sql.DB, redisClient *redis.Client, ttl time.Duration, providerURL string) *ExchangeRateService {
	return &ExchangeRateService{
		db:          db,
		redis:       redisClient,
		ttl:         ttl,
		providerURL: providerURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		logger:      logger.Component("rates"),
	}
}

// GetExchangeRate reads the rate through the redis cache. A missing or
// non-positive rate is ErrRateUnavailable.
func (s *ExchangeRateService) GetExchangeRate(ctx context.Context) (*models.ExchangeRate, error) {
	if rate, ok := s.cached(ctx); ok {
		return rate, nil
	}

	var rate models.ExchangeRate
	err := s.db.QueryRowContext(ctx,
		"SELECT currency, rate_to_usd, last_updated FROM exchange_rates WHERE currency = $1",
		models.CareCoinCurrency,
	).Scan(&rate.Currency, &rate.RateToUSD, &rate.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no rate for %s", ErrRateUnavailable, models.CareCoinCurrency)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
	}
	if !rate.RateToUSD.IsPositive() {
		return nil, fmt.Errorf("%w: rate %s is not positive", ErrRateUnavailable, rate.RateToUSD)
	}

	s.store(ctx, &rate)
	return &rate, nil
}

// ConvertCareCoinsToUSD prices amount at the current rate, rounded half-up to cents.
func (s *ExchangeRateService) ConvertCareCoinsToUSD(ctx context.Context, amount int64) (decimal.Decimal, error) {
	rate, err := s.GetExchangeRate(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return ConvertAt(rate.RateToUSD, amount), nil
}

// ConvertAt prices amount at rate, rounded half-up to cents.
func ConvertAt(rate decimal.Decimal, amount int64) decimal.Decimal {
	return rate.Mul(decimal.NewFromInt(amount)).Round(2)
}

type providerRate struct {
	RateToUSD   decimal.Decimal `json:"rate_to_usd"`
	LastUpdated *time.Time      `json:"last_updated"`
}

// Refresh pulls the rate from the configured provider, stores it and drops
// the cached copy.
func (s *ExchangeRateService) Refresh(ctx context.Context) (*models.ExchangeRate, error) {
	if s.providerURL == "" {
		return nil, errors.New("no rate provider configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.providerURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rate: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch rate: provider returned %s", resp.Status)
	}

	var body providerRate
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode rate: %w", err)
	}
	if !body.RateToUSD.IsPositive() {
		return nil, fmt.Errorf("provider sent non-positive rate %s", body.RateToUSD)
	}

	rate := models.ExchangeRate{
		Currency:    models.CareCoinCurrency,
		RateToUSD:   body.RateToUSD,
		LastUpdated: time.Now().UTC(),
	}
	if body.LastUpdated != nil {
		rate.LastUpdated = body.LastUpdated.UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO exchange_rates (currency, rate_to_usd, last_updated)
		VALUES ($1, $2, $3)
		ON CONFLICT (currency) DO UPDATE SET rate_to_usd = EXCLUDED.rate_to_usd, last_updated = EXCLUDED.last_updated`,
		rate.Currency, rate.RateToUSD, rate.LastUpdated)
	if err != nil {
		return nil, fmt.Errorf("store rate: %w", err)
	}

	if s.redis != nil {
		if err := s.redis.Del(ctx, rateCacheKey).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to invalidate cached rate")
		}
	}

	s.logger.Info().Str("rate_to_usd", rate.RateToUSD.String()).Msg("exchange rate refreshed")
	return &rate, nil
}

func (s *ExchangeRateService) cached(ctx context.Context) (*models.ExchangeRate, bool) {
	if s.redis == nil {
		return nil, false
	}
	data, err := s.redis.Get(ctx, rateCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("rate cache read failed")
		}
		return nil, false
	}
	var rate models.ExchangeRate
	if err := json.Unmarshal(data, &rate); err != nil {
		return nil, false
	}
	return &rate, true
}

func (s *ExchangeRateService) store(ctx context.Context, rate *models.ExchangeRate) {
	if s.redis == nil || s.ttl <= 0 {
		return
	}
	data, err := json.Marshal(rate)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, rateCacheKey, data, s.ttl).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("rate cache write failed")
	}
}
