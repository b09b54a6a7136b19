package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodPayPal       PaymentMethod = "paypal"
	MethodVenmo        PaymentMethod = "venmo"
)

type BillType string

const (
	BillMedical   BillType = "medical"
	BillPharmacy  BillType = "pharmacy"
	BillInsurance BillType = "insurance"
	BillUtilities BillType = "utilities"
	BillPhone     BillType = "phone"
	BillInternet  BillType = "internet"
)

func (b BillType) Valid() bool {
	switch b {
	case BillMedical, BillPharmacy, BillInsurance, BillUtilities, BillPhone, BillInternet:
		return true
	}
	return false
}

type PayoutKind string

const (
	PayoutCashOut     PayoutKind = "cash-out"
	PayoutBillPayment PayoutKind = "bill-payment"
)

type PayoutStatus string

const (
	PayoutPending   PayoutStatus = "pending"
	PayoutCompleted PayoutStatus = "completed"
	PayoutFailed    PayoutStatus = "failed"
)

// PayoutDetails is one of BankTransferDetails, PayPalDetails or VenmoDetails.
type PayoutDetails interface {
	Method() PaymentMethod
}

type BankTransferDetails struct {
	AccountHolder string `json:"account_holder" validate:"required,min=2,max=140"`
	AccountNumber string `json:"account_number" validate:"required,numeric,min=4,max=17"`
	RoutingNumber string `json:"routing_number" validate:"required,numeric,len=9"`
	BankName      string `json:"bank_name,omitempty" validate:"max=140"`
}

func (BankTransferDetails) Method() PaymentMethod { return MethodBankTransfer }

type PayPalDetails struct {
	Email string `json:"email" validate:"required,email"`
}

func (PayPalDetails) Method() PaymentMethod { return MethodPayPal }

type VenmoDetails struct {
	Handle string `json:"handle" validate:"required,startswith=@,min=2,max=31"`
}

func (VenmoDetails) Method() PaymentMethod { return MethodVenmo }

var ErrUnknownPaymentMethod = errors.New("unknown payment method")

// DecodePayoutDetails unmarshals raw JSON into the variant selected by method.
// Unknown fields are rejected.
func DecodePayoutDetails(method PaymentMethod, raw json.RawMessage) (PayoutDetails, error) {
	var details PayoutDetails
	switch method {
	case MethodBankTransfer:
		details = &BankTransferDetails{}
	case MethodPayPal:
		details = &PayPalDetails{}
	case MethodVenmo:
		details = &VenmoDetails{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, method)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return details, nil
	}
	if err := strictUnmarshal(raw, details); err != nil {
		return nil, err
	}
	return details, nil
}

// CashOutRequest converts CareCoins into a fiat payout.
type CashOutRequest struct {
	AccountID     string
	Amount        int64
	PaymentMethod PaymentMethod
	Details       PayoutDetails
}

// BillPaymentRequest spends CareCoins against a bill.
type BillPaymentRequest struct {
	AccountID        string   `json:"-"`
	Amount           int64    `json:"amount" validate:"required,gt=0"`
	BillType         BillType `json:"bill_type" validate:"required,oneof=medical pharmacy insurance utilities phone internet"`
	Recipient        string   `json:"recipient" validate:"required,max=140"`
	RecipientAccount string   `json:"recipient_account" validate:"required,max=34"`
	BillInfo         Metadata `json:"bill_info,omitempty"`
}

type Payout struct {
	ID                string          `json:"id" db:"id"`
	AccountID         string          `json:"account_id" db:"account_id"`
	Kind              PayoutKind      `json:"kind" db:"kind"`
	Amount            int64           `json:"amount" db:"amount"`
	FiatAmount        decimal.Decimal `json:"fiat_amount" db:"fiat_amount" swaggertype:"string"`
	Currency          string          `json:"currency" db:"currency"`
	Rate              decimal.Decimal `json:"rate" db:"rate" swaggertype:"string"`
	PaymentMethod     *string         `json:"payment_method,omitempty" db:"payment_method"`
	BillType          *string         `json:"bill_type,omitempty" db:"bill_type"`
	Recipient         *string         `json:"recipient,omitempty" db:"recipient"`
	RecipientAccount  *string         `json:"recipient_account,omitempty" db:"recipient_account"`
	Details           Metadata        `json:"details,omitempty" db:"details"`
	Status            PayoutStatus    `json:"status" db:"status"`
	ExternalReference string          `json:"external_reference" db:"external_reference"`
	LedgerEntryID     int64           `json:"ledger_entry_id" db:"ledger_entry_id"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// PayoutResult is what callers get back once a payout is recorded.
type PayoutResult struct {
	PayoutID          string          `json:"payout_id"`
	Status            PayoutStatus    `json:"status"`
	ExternalReference string          `json:"external_reference"`
	Amount            int64           `json:"amount"`
	FiatAmount        decimal.Decimal `json:"fiat_amount" swaggertype:"string" example:"12.50"`
	Rate              decimal.Decimal `json:"rate" swaggertype:"string" example:"0.01"`
	LedgerEntryID     int64           `json:"ledger_entry_id"`
}

type CashOutResult struct {
	PayoutResult
	PaymentMethod PaymentMethod `json:"payment_method"`
}

type BillPaymentResult struct {
	PayoutResult
	BillType  BillType `json:"bill_type"`
	Recipient string   `json:"recipient"`
}

// Metadata type for JSONB fields
type Metadata map[string]any

// Value implements driver.Valuer for Metadata
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for Metadata
func (m *Metadata) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}

	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(b, m)
}

// DetailsMetadata flattens payout details for storage.
func DetailsMetadata(d PayoutDetails) Metadata {
	if d == nil {
		return nil
	}
	data, err := json.Marshal(d)
	if err != nil {
		return nil
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}

func strictUnmarshal(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
