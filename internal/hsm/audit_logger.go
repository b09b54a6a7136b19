package hsm

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// AuditLogger writes money movements and key operations as zerolog events
// tagged audit=true, so they can be routed apart from application logs.
type AuditLogger struct {
	logger zerolog.Logger
}

func NewAuditLogger() *AuditLogger {
	return &AuditLogger{logger: log.With().Bool("audit", true).Logger()}
}

// NewAuditLoggerWith writes to l instead of the global logger.
func NewAuditLoggerWith(l zerolog.Logger) *AuditLogger {
	return &AuditLogger{logger: l.With().Bool("audit", true).Logger()}
}

func (a *AuditLogger) LogTransfer(transactionID, fromAccount, toAccount string, amount int64, status string) {
	a.logger.Info().
		Str("event_type", "TRANSFER").
		Str("transaction_id", transactionID).
		Str("from_account", fromAccount).
		Str("to_account", toAccount).
		Int64("amount", amount).
		Str("status", status).
		Msg("audit")
}

func (a *AuditLogger) LogError(transactionID, accountID string, err error) {
	a.logger.Warn().
		Str("event_type", "ERROR").
		Str("transaction_id", transactionID).
		Str("account_id", accountID).
		Str("status", "FAILED").
		AnErr("reason", err).
		Msg("audit")
}

func (a *AuditLogger) LogOperation(transactionID, accountID, operation, details string) {
	a.logger.Info().
		Str("event_type", operation).
		Str("transaction_id", transactionID).
		Str("account_id", accountID).
		Str("status", "SUCCESS").
		Str("details", details).
		Msg("audit")
}
