package transaction

import (
	"time"

	"github.com/shopspring/decimal"
)

// StoredTransaction is a committed transaction record. It is created exactly
// once per unique reference number and never updated or deleted.
type StoredTransaction struct {
	ID              string          `json:"id,omitempty"`   // internal storage identifier
	AccountNumber   string          `json:"account_number"` // resolved full identifier
	CreditedDebited string          `json:"credited_debited"`
	Amount          decimal.Decimal `json:"amount"`
	Date            string          `json:"date"` // DD/MM/YY as extracted
	ReferenceNumber string          `json:"reference_number"`
	ToFrom          string          `json:"to_from,omitempty"`
	UserID          string          `json:"user_id"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Account is a registered account number owned by a user. The reconciliation
// engine only ever reads accounts; registration and removal happen through
// the account management endpoints.
type Account struct {
	AccountNumber string    `json:"account_number"`
	UserID        string    `json:"user_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// PersistResult reports which candidates of a batch were committed, in the
// relative order they were submitted. Records carry no internal ID.
type PersistResult struct {
	InsertedCount        int                  `json:"inserted_count"`
	InsertedTransactions []*StoredTransaction `json:"inserted_transactions"`
}
