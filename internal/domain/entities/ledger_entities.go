package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledger-service/ledger_service/pkg/money"
)

// Currency is the ISO code carried by an account
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyINR Currency = "INR"
)

// ParseCurrency normalizes and validates a currency code
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if err := c.Validate(); err != nil {
		return "", err
	}
	return c, nil
}

// Validate checks if the currency is supported
func (c Currency) Validate() error {
	switch c {
	case CurrencyUSD, CurrencyINR:
		return nil
	default:
		return fmt.Errorf("unsupported currency: %s", c)
	}
}

// TransactionType represents the type of ledger transaction
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal TransactionType = "WITHDRAWAL"
	TransactionTypeTransfer   TransactionType = "TRANSFER"
)

// Validate checks if the transaction type is valid
func (t TransactionType) Validate() error {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdrawal, TransactionTypeTransfer:
		return nil
	default:
		return fmt.Errorf("invalid transaction type: %s", t)
	}
}

// TransactionStatus represents the status of a ledger transaction.
// PENDING and FAILED are part of the model for forward compatibility; the
// processor only ever persists COMPLETED rows (failures roll back).
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// Validate checks if the transaction status is valid
func (s TransactionStatus) Validate() error {
	switch s {
	case TransactionStatusPending, TransactionStatusCompleted, TransactionStatusFailed:
		return nil
	default:
		return fmt.Errorf("invalid transaction status: %s", s)
	}
}

// EntryDirection represents debit or credit
type EntryDirection string

const (
	EntryDirectionDebit  EntryDirection = "DEBIT"
	EntryDirectionCredit EntryDirection = "CREDIT"
)

// Validate checks if the entry direction is valid
func (d EntryDirection) Validate() error {
	switch d {
	case EntryDirectionDebit, EntryDirectionCredit:
		return nil
	default:
		return fmt.Errorf("invalid entry direction: %s", d)
	}
}

// Account represents a monetary account. The balance is only ever mutated by
// the transaction processor under a row lock.
type Account struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	Name      string      `json:"name" db:"name"`
	Currency  Currency    `json:"currency" db:"currency"`
	Balance   money.Money `json:"balance" db:"balance"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
}

// Validate validates the account
func (a *Account) Validate() error {
	if a.ID == uuid.Nil {
		return fmt.Errorf("account ID is required")
	}
	if a.Name == "" {
		return fmt.Errorf("account name is required")
	}
	if err := a.Currency.Validate(); err != nil {
		return err
	}
	if a.Balance.IsNegative() {
		return fmt.Errorf("account balance cannot be negative")
	}
	return nil
}

// Transaction represents one processed request. Ledger entries reference it.
type Transaction struct {
	ID             uuid.UUID         `json:"id" db:"id"`
	IdempotencyKey *string           `json:"idempotency_key,omitempty" db:"idempotency_key"`
	Type           TransactionType   `json:"type" db:"type"`
	Status         TransactionStatus `json:"status" db:"status"`
	Reference      *string           `json:"reference,omitempty" db:"reference"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
}

// Validate validates the transaction
func (t *Transaction) Validate() error {
	if t.ID == uuid.Nil {
		return fmt.Errorf("transaction ID is required")
	}
	if err := t.Type.Validate(); err != nil {
		return err
	}
	if err := t.Status.Validate(); err != nil {
		return err
	}
	if t.IdempotencyKey != nil && *t.IdempotencyKey == "" {
		return fmt.Errorf("idempotency key cannot be empty when present")
	}
	return nil
}

// LedgerEntry is an immutable record of one signed amount posted to one
// account. Amounts are negative for DEBIT and positive for CREDIT.
type LedgerEntry struct {
	ID            uuid.UUID      `json:"id" db:"id"`
	TransactionID uuid.UUID      `json:"transaction_id" db:"transaction_id"`
	AccountID     uuid.UUID      `json:"account_id" db:"account_id"`
	Amount        money.Money    `json:"amount" db:"amount"`
	Direction     EntryDirection `json:"direction" db:"direction"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
}

// Validate validates the ledger entry, including the sign/direction pairing
func (e *LedgerEntry) Validate() error {
	if e.ID == uuid.Nil {
		return fmt.Errorf("entry ID is required")
	}
	if e.TransactionID == uuid.Nil {
		return fmt.Errorf("transaction ID is required")
	}
	if e.AccountID == uuid.Nil {
		return fmt.Errorf("account ID is required")
	}
	if err := e.Direction.Validate(); err != nil {
		return err
	}
	if e.Amount.IsZero() {
		return fmt.Errorf("entry amount cannot be zero")
	}
	if e.Direction == EntryDirectionDebit && !e.Amount.IsNegative() {
		return fmt.Errorf("debit entry must carry a negative amount")
	}
	if e.Direction == EntryDirectionCredit && !e.Amount.IsPositive() {
		return fmt.Errorf("credit entry must carry a positive amount")
	}
	return nil
}

// IsDebit returns true if this is a debit entry
func (e *LedgerEntry) IsDebit() bool {
	return e.Direction == EntryDirectionDebit
}

// IsCredit returns true if this is a credit entry
func (e *LedgerEntry) IsCredit() bool {
	return e.Direction == EntryDirectionCredit
}
