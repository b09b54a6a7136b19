package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/facesheet360/carecoins/internal/models"
	"github.com/facesheet360/carecoins/internal/services"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1_048_576

// ErrorResponse is the body of every non-2xx response.
// @Description Error response structure
type ErrorResponse struct {
	Error   string            `json:"error" example:"insufficient balance"`
	Details map[string]string `json:"details,omitempty"`
}

var errorStatuses = []struct {
	err     error
	status  int
	message string
}{
	{services.ErrInvalidAmount, http.StatusBadRequest, "invalid amount"},
	{services.ErrSelfTransfer, http.StatusBadRequest, "cannot transfer to self"},
	{services.ErrInvalidEntry, http.StatusBadRequest, "invalid entry"},
	{services.ErrIncompletePayoutDetails, http.StatusBadRequest, "incomplete payout details"},
	{services.ErrInvalidRecipientAddress, http.StatusBadRequest, "invalid address"},
	{services.ErrInvalidCategory, http.StatusBadRequest, "invalid reward category"},
	{services.ErrInvalidBillType, http.StatusBadRequest, "invalid bill type"},
	{services.ErrReceiveRequestExpired, http.StatusBadRequest, "invalid or expired QR code"},
	{services.ErrInvalidReport, http.StatusBadRequest, "invalid pacs.002 document"},
	{models.ErrUnknownPaymentMethod, http.StatusBadRequest, "unknown payment method"},
	{services.ErrAccountNotFound, http.StatusNotFound, "account not found"},
	{services.ErrContractNotFound, http.StatusNotFound, "token contract not found"},
	{services.ErrBridgeNotFound, http.StatusNotFound, "bridge transaction not found"},
	{services.ErrPayoutNotFound, http.StatusNotFound, "payout not found"},
	{services.ErrLedgerEntryNotFound, http.StatusNotFound, "ledger entry not found"},
	{services.ErrInvalidCredentials, http.StatusUnauthorized, "invalid credentials"},
	{services.ErrInvalidToken, http.StatusUnauthorized, "invalid token"},
	{services.ErrEmailTaken, http.StatusConflict, "email already exists"},
	{services.ErrIdempotencyConflict, http.StatusConflict, "idempotency key conflict"},
	{services.ErrEntryAlreadyBridged, http.StatusConflict, "ledger entry already bridged"},
	{services.ErrInsufficientFunds, http.StatusUnprocessableEntity, "insufficient balance"},
	{services.ErrInsufficientExternalBalance, http.StatusUnprocessableEntity, "insufficient external balance"},
	{services.ErrSubmissionReverted, http.StatusBadGateway, "transaction reverted"},
	{services.ErrNetworkUnavailable, http.StatusServiceUnavailable, "token network unavailable"},
	{services.ErrRateUnavailable, http.StatusServiceUnavailable, "exchange rate unavailable"},
}

// statusFor maps a service error to an HTTP status and a short message.
func statusFor(err error) (int, string) {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status, e.message
		}
	}
	if services.ValidationDetails(err) != nil {
		return http.StatusBadRequest, "validation failed"
	}
	return http.StatusInternalServerError, "An Internal Error Occurred"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string, details map[string]string) {
	writeJSON(w, status, ErrorResponse{Error: message, Details: details})
}

// writeServiceError logs unexpected failures; expected ones are the caller's
// problem and are only reported back.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeError(w, status, message, services.ValidationDetails(err))
}

// decodeJSON reads exactly one JSON object of at most 1 MB, rejecting unknown
// fields, and validates it when v carries validate tags.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, validator *services.ValidationHelper) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large", nil)
			return false
		}
		writeError(w, http.StatusBadRequest, "Invalid request body", nil)
		return false
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, http.StatusBadRequest, "Request body must only contain a single JSON object", nil)
		return false
	}

	if validator != nil {
		if err := validator.ValidateStruct(v); err != nil {
			writeError(w, http.StatusBadRequest, "Validation failed", services.ValidationDetails(err))
			return false
		}
	}
	return true
}

// pageParams reads limit and offset query parameters; bad values fall back to
// the store defaults.
func pageParams(r *http.Request) (int, int) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}
