package handlers

import (
	"net/http"

	"github.com/facesheet360/carecoins/internal/middleware"
	"github.com/facesheet360/carecoins/internal/models"
	"github.com/facesheet360/carecoins/internal/services"
)

// GenerateQRBody is the JSON body of POST /qr/generate.
type GenerateQRBody struct {
	Amount int64  `json:"amount" validate:"required,gt=0" example:"25"`
	Memo   string `json:"memo,omitempty" validate:"max=140"`
}

// ProcessQRBody is the JSON body of POST /qr/process.
type ProcessQRBody struct {
	QRData string `json:"qrData" validate:"required"`
}

type GenerateQRResponse struct {
	QRCode  string `json:"qrCode"`
	QRImage string `json:"qrImage"`
}

type ProcessQRResponse struct {
	Request *services.ReceiveRequest `json:"request"`
	Entry   *models.LedgerEntry      `json:"entry"`
}

type QRHandler struct {
	service   *services.QRService
	transfers *services.TransferService
	validator *services.ValidationHelper
}

func NewQRHandler(service *services.QRService, transfers *services.TransferService) *QRHandler {
	return &QRHandler{
		service:   service,
		transfers: transfers,
		validator: services.NewValidationHelper(),
	}
}

// GenerateQR creates a receive request for the caller's wallet
// @Summary Generate QR Code
// @Description Generate a single-use QR code asking the scanner to pay the caller
// @Tags QR
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body GenerateQRBody true "QR generation request"
// @Success 200 {object} GenerateQRResponse
// @Failure 400 {object} ErrorResponse
// @Router /qr/generate [post]
func (h *QRHandler) GenerateQR(w http.ResponseWriter, r *http.Request) {
	var body GenerateQRBody
	if !decodeJSON(w, r, &body, h.validator) {
		return
	}

	qrCode, qrImage, err := h.service.GenerateQRCode(r.Context(), middleware.AccountID(r.Context()), body.Amount, body.Memo)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, GenerateQRResponse{QRCode: qrCode, QRImage: qrImage})
}

// ProcessQR pays a scanned receive request from the caller's wallet
// @Summary Process QR Code
// @Description Redeem a receive request; the caller pays the requester
// @Tags QR
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ProcessQRBody true "QR processing request"
// @Success 201 {object} ProcessQRResponse
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse "Insufficient balance"
// @Router /qr/process [post]
func (h *QRHandler) ProcessQR(w http.ResponseWriter, r *http.Request) {
	var body ProcessQRBody
	if !decodeJSON(w, r, &body, h.validator) {
		return
	}

	req, err := h.service.ProcessQRCode(r.Context(), body.QRData)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	description := req.Memo
	if description == "" {
		description = "QR payment"
	}
	entry, err := h.transfers.Transfer(r.Context(), services.TransferRequest{
		From:           middleware.AccountID(r.Context()),
		To:             req.AccountID,
		Amount:         req.Amount,
		Description:    description,
		IdempotencyKey: "qr:" + req.Nonce,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ProcessQRResponse{Request: req, Entry: entry})
}
