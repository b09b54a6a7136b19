package handlers

import (
	"net/http"

	"github.com/facesheet360/carecoins/internal/models"
	"github.com/facesheet360/carecoins/internal/services"
	"github.com/shopspring/decimal"
)

const exampleCoins = 100

// ExchangeRateResponse is the current rate with a worked conversion.
type ExchangeRateResponse struct {
	models.ExchangeRate
	Example struct {
		CareCoins int64           `json:"care_coins" example:"100"`
		USD       decimal.Decimal `json:"usd" swaggertype:"string" example:"1.00"`
	} `json:"example"`
}

type RateHandler struct {
	rates services.RateSource
	banks *services.BankService
}

func NewRateHandler(rates services.RateSource, banks *services.BankService) *RateHandler {
	return &RateHandler{rates: rates, banks: banks}
}

// GetExchangeRate returns the CareCoin to USD rate
// @Summary Exchange rate
// @Tags payouts
// @Produce json
// @Success 200 {object} ExchangeRateResponse
// @Failure 503 {object} ErrorResponse "Exchange rate unavailable"
// @Router /exchange-rate [get]
func (h *RateHandler) GetExchangeRate(w http.ResponseWriter, r *http.Request) {
	rate, err := h.rates.GetExchangeRate(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	var res ExchangeRateResponse
	res.ExchangeRate = *rate
	res.Example.CareCoins = exampleCoins
	res.Example.USD = services.ConvertAt(rate.RateToUSD, exampleCoins)
	writeJSON(w, http.StatusOK, res)
}

// GetBanks lists supported payout banks
// @Summary Bank directory
// @Tags payouts
// @Produce json
// @Success 200 {array} services.Bank
// @Router /banks [get]
func (h *RateHandler) GetBanks(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=86400")
	writeJSON(w, http.StatusOK, h.banks.Banks())
}
