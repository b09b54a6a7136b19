package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/facesheet360/carecoins/internal/middleware"
	"github.com/facesheet360/carecoins/internal/models"
	"github.com/facesheet360/carecoins/internal/services"
)

// CashOutBody is the JSON body of POST /payouts/cash-out. Details must match
// the payment method.
type CashOutBody struct {
	Amount        int64                `json:"amount" example:"1250"`
	PaymentMethod models.PaymentMethod `json:"payment_method" validate:"required" example:"bank_transfer"`
	Details       json.RawMessage      `json:"details" swaggertype:"object"`
}

// SettlementBody is the JSON form of a payout status report.
type SettlementBody struct {
	ExternalReference string `json:"external_reference" validate:"required"`
	Status            string `json:"status" validate:"required" example:"ACSC"`
}

type SettlementResponse struct {
	Settled []*models.Payout `json:"settled"`
}

type PayoutHandler struct {
	service   *services.PayoutService
	validator *services.ValidationHelper
}

func NewPayoutHandler(service *services.PayoutService) *PayoutHandler {
	return &PayoutHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// CashOut converts CareCoins to fiat
// @Summary Cash out CareCoins
// @Description Coins are burned immediately; the fiat payout settles asynchronously.
// @Tags payouts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CashOutBody true "Cash-out request"
// @Success 202 {object} models.CashOutResult
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse "Insufficient balance"
// @Failure 503 {object} ErrorResponse "Exchange rate unavailable"
// @Router /payouts/cash-out [post]
func (h *PayoutHandler) CashOut(w http.ResponseWriter, r *http.Request) {
	var body CashOutBody
	if !decodeJSON(w, r, &body, h.validator) {
		return
	}

	details, err := models.DecodePayoutDetails(body.PaymentMethod, body.Details)
	if err != nil {
		if errors.Is(err, models.ErrUnknownPaymentMethod) {
			writeServiceError(w, r, err)
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid payout details", nil)
		return
	}

	res, err := h.service.CashOut(r.Context(), models.CashOutRequest{
		AccountID:     middleware.AccountID(r.Context()),
		Amount:        body.Amount,
		PaymentMethod: body.PaymentMethod,
		Details:       details,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

// PayBill pays a bill with CareCoins
// @Summary Pay a bill
// @Tags payouts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.BillPaymentRequest true "Bill payment request"
// @Success 202 {object} models.BillPaymentResult
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse "Insufficient balance"
// @Router /payouts/bill-payment [post]
func (h *PayoutHandler) PayBill(w http.ResponseWriter, r *http.Request) {
	var req models.BillPaymentRequest
	if !decodeJSON(w, r, &req, nil) {
		return
	}
	req.AccountID = middleware.AccountID(r.Context())

	res, err := h.service.PayBill(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

// List returns the caller's payouts
// @Summary List payouts
// @Tags payouts
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} models.Payout
// @Router /payouts [get]
func (h *PayoutHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	payouts, err := h.service.ListPayouts(r.Context(), middleware.AccountID(r.Context()), limit, offset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payouts)
}

// Settle applies a status report from the payout rail
// @Summary Settle payouts
// @Description Accepts a pacs.002 document (application/xml) or a JSON status. Admin only.
// @Tags payouts
// @Accept json,xml
// @Produce json
// @Security BearerAuth
// @Param request body SettlementBody true "Settlement report"
// @Success 200 {object} SettlementResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /payouts/settlement [post]
func (h *PayoutHandler) Settle(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/xml" || mediaType == "text/xml" {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", nil)
			return
		}
		settled, err := h.service.SettleReport(r.Context(), data)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, SettlementResponse{Settled: settled})
		return
	}

	var body SettlementBody
	if !decodeJSON(w, r, &body, h.validator) {
		return
	}
	p, err := h.service.SettlePayout(r.Context(), body.ExternalReference, body.Status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SettlementResponse{Settled: []*models.Payout{p}})
}
