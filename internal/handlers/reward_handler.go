package handlers

import (
	"net/http"

	"github.com/facesheet360/carecoins/internal/services"
)

// RewardBody is the JSON body of POST /rewards.
type RewardBody struct {
	To             string `json:"to" validate:"required"`
	Amount         int64  `json:"amount" example:"10"`
	Category       string `json:"category" validate:"required" example:"patient_care"`
	Description    string `json:"description" validate:"max=255"`
	IdempotencyKey string `json:"idempotency_key,omitempty" validate:"max=128"`
}

type RewardHandler struct {
	service   *services.RewardService
	validator *services.ValidationHelper
}

func NewRewardHandler(service *services.RewardService) *RewardHandler {
	return &RewardHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// Distribute mints a reward into a user's account
// @Summary Distribute a reward
// @Description Admin only. Without an idempotency key every call mints again.
// @Tags rewards
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body RewardBody true "Reward request"
// @Success 201 {object} models.LedgerEntry
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /rewards [post]
func (h *RewardHandler) Distribute(w http.ResponseWriter, r *http.Request) {
	var body RewardBody
	if !decodeJSON(w, r, &body, h.validator) {
		return
	}

	entry, err := h.service.DistributeReward(r.Context(), services.RewardRequest{
		To:             body.To,
		Amount:         body.Amount,
		Category:       body.Category,
		Description:    body.Description,
		IdempotencyKey: body.IdempotencyKey,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// Categories lists the accepted reward categories
// @Summary Reward categories
// @Tags rewards
// @Produce json
// @Security BearerAuth
// @Success 200 {array} string
// @Router /rewards/categories [get]
func (h *RewardHandler) Categories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, services.RewardCategories())
}
