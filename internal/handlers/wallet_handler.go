package handlers

import (
	"net/http"

	"github.com/facesheet360/carecoins/internal/middleware"
	"github.com/facesheet360/carecoins/internal/services"
)

// BalanceResponse is the caller's wallet summary.
type BalanceResponse struct {
	AccountID      string `json:"account_id"`
	Balance        int64  `json:"balance" example:"100"`
	LifetimeEarned int64  `json:"lifetime_earned" example:"250"`
}

// TransferBody is the JSON body of POST /transfers.
type TransferBody struct {
	To          string `json:"to" validate:"required"`
	Amount      int64  `json:"amount" validate:"required,gt=0" example:"25"`
	Description string `json:"description" validate:"max=255"`
}

// PurchaseBody is the JSON body of POST /purchases.
type PurchaseBody struct {
	Amount      int64  `json:"amount" validate:"required,gt=0" example:"40"`
	Description string `json:"description" validate:"required,max=255" example:"Pharmacy co-pay"`
}

type WalletHandler struct {
	ledger    services.LedgerStore
	transfers *services.TransferService
	validator *services.ValidationHelper
}

func NewWalletHandler(ledger services.LedgerStore, transfers *services.TransferService) *WalletHandler {
	return &WalletHandler{
		ledger:    ledger,
		transfers: transfers,
		validator: services.NewValidationHelper(),
	}
}

// GetBalance returns the caller's balance
// @Summary Wallet balance
// @Tags wallet
// @Produce json
// @Security BearerAuth
// @Success 200 {object} BalanceResponse
// @Failure 404 {object} ErrorResponse
// @Router /wallet/balance [get]
func (h *WalletHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	account, err := h.ledger.GetAccount(r.Context(), middleware.AccountID(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{
		AccountID:      account.ID,
		Balance:        account.Balance,
		LifetimeEarned: account.LifetimeEarned,
	})
}

// ListEntries returns the caller's ledger history, newest first
// @Summary Wallet history
// @Tags wallet
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size (max 200)"
// @Param offset query int false "Offset"
// @Success 200 {array} models.LedgerEntry
// @Router /wallet/entries [get]
func (h *WalletHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	entries, err := h.ledger.ListEntries(r.Context(), middleware.AccountID(r.Context()), limit, offset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// Transfer moves coins from the caller to another account
// @Summary Transfer CareCoins
// @Description Retries with the same Idempotency-Key return the original entry. Keys are scoped to the caller.
// @Tags wallet
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Deduplication key"
// @Param request body TransferBody true "Transfer request"
// @Success 201 {object} models.LedgerEntry
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Idempotency key reused for a different transfer"
// @Failure 422 {object} ErrorResponse "Insufficient balance"
// @Router /transfers [post]
func (h *WalletHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var body TransferBody
	if !decodeJSON(w, r, &body, h.validator) {
		return
	}

	entry, err := h.transfers.Transfer(r.Context(), services.TransferRequest{
		From:           middleware.AccountID(r.Context()),
		To:             body.To,
		Amount:         body.Amount,
		Description:    body.Description,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// Purchase spends coins on an in-network purchase
// @Summary Purchase with CareCoins
// @Tags wallet
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body PurchaseBody true "Purchase request"
// @Success 201 {object} models.LedgerEntry
// @Failure 422 {object} ErrorResponse "Insufficient balance"
// @Router /purchases [post]
func (h *WalletHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	var body PurchaseBody
	if !decodeJSON(w, r, &body, h.validator) {
		return
	}

	entry, err := h.transfers.Purchase(r.Context(), middleware.AccountID(r.Context()), body.Amount, body.Description)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}
