package interpret

import (
	"context"

	"github.com/shopspring/decimal"
)

// Candidate is one transaction as reported by the generative model.
// Every field is optional at this boundary: the model's output is untrusted
// free text, and a malformed candidate must never crash the pipeline.
// Eligibility for persistence is decided downstream by the reconciliation
// engine.
type Candidate struct {
	AccountNumber   string              `json:"account_number"`   // last-digits suffix, not yet resolved
	CreditedDebited string              `json:"credited_debited"` // "credited" or "debited"
	Amount          decimal.NullDecimal `json:"amount"`
	Date            string              `json:"date"` // DD/MM/YY
	ReferenceNumber string              `json:"reference_number"`
	ToFrom          string              `json:"to_from"`
}

// Interpreter defines the interface for generative-model operations
type Interpreter interface {
	// ExtractTransactions sends the OCR text to the model with the fixed
	// extraction instruction and returns the raw response text. The
	// response is expected to be a JSON array string but is returned
	// unparsed and unvalidated; callers must treat it as untrusted.
	ExtractTransactions(ctx context.Context, text string) (string, error)

	// Reply answers a free-form user message with a short assistant reply
	Reply(ctx context.Context, userInput string) (string, error)

	// Close closes the interpreter and releases resources
	Close() error
}
