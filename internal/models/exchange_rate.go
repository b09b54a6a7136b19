package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const CareCoinCurrency = "CARECOIN"

type ExchangeRate struct {
	Currency    string          `json:"currency" db:"currency"`
	RateToUSD   decimal.Decimal `json:"rate_to_usd" db:"rate_to_usd" swaggertype:"string" example:"0.01"`
	LastUpdated time.Time       `json:"last_updated" db:"last_updated"`
}
