package services

import "errors"

var (
	ErrInvalidAmount               = errors.New("amount must be positive")
	ErrSelfTransfer                = errors.New("cannot transfer to self")
	ErrAccountNotFound             = errors.New("account not found")
	ErrInsufficientFunds           = errors.New("insufficient balance")
	ErrInvalidEntry                = errors.New("invalid ledger entry")
	ErrIncompletePayoutDetails     = errors.New("incomplete payout details")
	ErrNetworkUnavailable          = errors.New("token network unavailable")
	ErrInsufficientExternalBalance = errors.New("insufficient external token balance")
	ErrInvalidRecipientAddress     = errors.New("invalid recipient address")
	ErrSubmissionReverted          = errors.New("token transfer reverted")
	ErrContractNotFound            = errors.New("token contract not found")
	ErrRateUnavailable             = errors.New("exchange rate unavailable")
	ErrBridgeNotFound              = errors.New("bridge transaction not found")
	ErrPayoutNotFound              = errors.New("payout not found")
	ErrInvalidCategory             = errors.New("invalid reward category")
	ErrInvalidBillType             = errors.New("invalid bill type")
	ErrInvalidReport               = errors.New("invalid settlement report")
	ErrIdempotencyConflict         = errors.New("idempotency key already used for a different request")
	ErrLedgerEntryNotFound         = errors.New("ledger entry not found")
	ErrEntryAlreadyBridged         = errors.New("ledger entry already bridged")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrInvalidAmount, "InvalidAmount"},
	{ErrSelfTransfer, "SelfTransfer"},
	{ErrAccountNotFound, "AccountNotFound"},
	{ErrInsufficientFunds, "InsufficientFunds"},
	{ErrInvalidEntry, "InvalidEntry"},
	{ErrIncompletePayoutDetails, "IncompletePayoutDetails"},
	{ErrNetworkUnavailable, "NetworkUnavailable"},
	{ErrInsufficientExternalBalance, "InsufficientExternalBalance"},
	{ErrInvalidRecipientAddress, "InvalidRecipientAddress"},
	{ErrSubmissionReverted, "SubmissionReverted"},
	{ErrContractNotFound, "ContractNotFound"},
	{ErrRateUnavailable, "RateUnavailable"},
	{ErrBridgeNotFound, "BridgeNotFound"},
	{ErrPayoutNotFound, "PayoutNotFound"},
	{ErrInvalidCategory, "InvalidCategory"},
	{ErrInvalidBillType, "InvalidBillType"},
	{ErrInvalidReport, "InvalidReport"},
	{ErrIdempotencyConflict, "IdempotencyConflict"},
	{ErrLedgerEntryNotFound, "LedgerEntryNotFound"},
	{ErrEntryAlreadyBridged, "EntryAlreadyBridged"},
}

// ErrorCode returns the taxonomy name of the first sentinel err wraps, or
// "Internal" when it wraps none.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "Internal"
}
