package handlers

import (
	"errors"
	"net/http"

	"github.com/facesheet360/carecoins/internal/models"
	"github.com/facesheet360/carecoins/internal/services"
	"github.com/go-chi/chi/v5"
)

// BridgeBody is the JSON body of POST /bridge/transfers.
type BridgeBody struct {
	ContractRef      string `json:"contract_ref,omitempty" example:"1"`
	RecipientAddress string `json:"recipient_address" validate:"required" example:"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"`
	Amount           int64  `json:"amount" example:"5000"`
	LedgerEntryID    *int64 `json:"ledger_entry_id,omitempty"`
}

// BridgeFailure is returned when the bridge record was created but failed its
// pre-flight checks.
type BridgeFailure struct {
	Error       string                    `json:"error" example:"insufficient external balance"`
	Transaction *models.BridgeTransaction `json:"bridge_transaction"`
}

type BridgeHandler struct {
	service   *services.BridgeService
	validator *services.ValidationHelper
}

func NewBridgeHandler(service *services.BridgeService) *BridgeHandler {
	return &BridgeHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// Request records a bridge transfer and queues it for submission
// @Summary Request a bridge transfer
// @Description Admin only. Returns 202 while the transfer is processed asynchronously.
// @Tags bridge
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Deduplication key"
// @Param request body BridgeBody true "Bridge request"
// @Success 202 {object} models.BridgeTransaction
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse "Ledger entry not found"
// @Failure 409 {object} ErrorResponse "Ledger entry already bridged"
// @Failure 422 {object} BridgeFailure "Insufficient external balance"
// @Failure 503 {object} BridgeFailure "Token network unavailable"
// @Router /bridge/transfers [post]
func (h *BridgeHandler) Request(w http.ResponseWriter, r *http.Request) {
	var body BridgeBody
	if !decodeJSON(w, r, &body, h.validator) {
		return
	}

	tx, err := h.service.RequestBridgeTransfer(r.Context(), services.BridgeRequest{
		ContractRef:      body.ContractRef,
		RecipientAddress: body.RecipientAddress,
		Amount:           body.Amount,
		LedgerEntryID:    body.LedgerEntryID,
		IdempotencyKey:   r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		if tx != nil {
			status, message := statusFor(err)
			writeJSON(w, status, BridgeFailure{Error: message, Transaction: tx})
			return
		}
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, tx)
}

// Get returns one bridge transaction
// @Summary Get a bridge transaction
// @Tags bridge
// @Produce json
// @Security BearerAuth
// @Param id path string true "Bridge transaction id"
// @Success 200 {object} models.BridgeTransaction
// @Failure 404 {object} ErrorResponse
// @Router /bridge/transfers/{id} [get]
func (h *BridgeHandler) Get(w http.ResponseWriter, r *http.Request) {
	tx, err := h.service.GetBridgeTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// List returns bridge transactions, optionally filtered by status
// @Summary List bridge transactions
// @Tags bridge
// @Produce json
// @Security BearerAuth
// @Param status query string false "requested, submitted, confirmed or failed"
// @Param limit query int false "Page size"
// @Success 200 {array} models.BridgeTransaction
// @Router /bridge/transfers [get]
func (h *BridgeHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := pageParams(r)
	txs, err := h.service.ListBridgeTransactions(r.Context(), models.BridgeStatus(r.URL.Query().Get("status")), limit)
	if errors.Is(err, services.ErrInvalidEntry) {
		writeError(w, http.StatusBadRequest, "invalid status filter", nil)
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}
