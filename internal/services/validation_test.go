package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/facesheet360/carecoins/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type TestStruct struct {
	Name  string `json:"name" validate:"required,min=2"`
	Email string `json:"email" validate:"required,email"`
	Age   int    `validate:"required,gte=18"`
}

func TestValidationHelper_ValidateStruct(t *testing.T) {
	vh := NewValidationHelper()

	t.Run("valid struct", func(t *testing.T) {
		valid := TestStruct{
			Name:  "John Doe",
			Email: "john@example.com",
			Age:   25,
		}

		assert.NoError(t, vh.ValidateStruct(&valid))
	})

	t.Run("invalid struct - missing required fields", func(t *testing.T) {
		invalid := TestStruct{
			Name: "J", // Too short
			Age:  16,  // Too young
		}

		err := vh.ValidateStruct(&invalid)
		require.Error(t, err)

		var validationErrors validator.ValidationErrors
		require.True(t, errors.As(err, &validationErrors))
		assert.Len(t, validationErrors, 3)

		details := ValidationDetails(err)
		assert.Contains(t, details, "name")
		assert.Contains(t, details, "email")
		assert.Contains(t, details, "Age")
	})
}

func TestValidationHelper_PayoutDetails(t *testing.T) {
	vh := NewValidationHelper()

	cases := []struct {
		name    string
		details models.PayoutDetails
		field   string
	}{
		{"valid bank", &models.BankTransferDetails{AccountHolder: "Alice Doe", AccountNumber: "000123456789", RoutingNumber: "021000021"}, ""},
		{"short routing number", &models.BankTransferDetails{AccountHolder: "Alice Doe", AccountNumber: "000123456789", RoutingNumber: "0210"}, "routing_number"},
		{"letters in account number", &models.BankTransferDetails{AccountHolder: "Alice Doe", AccountNumber: "ABC123456", RoutingNumber: "021000021"}, "account_number"},
		{"missing holder", &models.BankTransferDetails{AccountNumber: "000123456789", RoutingNumber: "021000021"}, "account_holder"},
		{"valid paypal", &models.PayPalDetails{Email: "alice@example.com"}, ""},
		{"bad paypal email", &models.PayPalDetails{Email: "alice"}, "email"},
		{"valid venmo", &models.VenmoDetails{Handle: "@alice"}, ""},
		{"venmo without at", &models.VenmoDetails{Handle: "alice"}, "handle"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := vh.ValidateStruct(tc.details)
			if tc.field == "" {
				assert.NoError(t, err)
				return
			}
			assert.Contains(t, ValidationDetails(err), tc.field)
		})
	}
}

func TestValidationDetails_Wrapped(t *testing.T) {
	vh := NewValidationHelper()
	err := vh.ValidateStruct(&models.PayPalDetails{})
	wrapped := fmt.Errorf("%w: %w", ErrIncompletePayoutDetails, err)

	assert.ErrorIs(t, wrapped, ErrIncompletePayoutDetails)
	assert.Contains(t, ValidationDetails(wrapped), "email")
	assert.Nil(t, ValidationDetails(errors.New("plain")))
}
