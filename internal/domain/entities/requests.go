package entities

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ledger-service/ledger_service/pkg/money"
)

// MaxIdempotencyKeyLength bounds the opaque client token
const MaxIdempotencyKeyLength = 255

// CreateAccountRequest is the payload for account creation
type CreateAccountRequest struct {
	Name     string `json:"name" binding:"required"`
	Currency string `json:"currency" binding:"required"`
}

// Validate validates the create account request
func (r *CreateAccountRequest) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if _, err := ParseCurrency(r.Currency); err != nil {
		return err
	}
	return nil
}

// CreateTransactionRequest is the payload for transaction processing.
// Amount must be strictly positive; signedness is introduced only when the
// processor derives ledger entries.
type CreateTransactionRequest struct {
	AccountID  uuid.UUID       `json:"account_id" binding:"required"`
	Type       TransactionType `json:"type" binding:"required"`
	Amount     money.Money     `json:"amount"`
	Reference  *string         `json:"reference,omitempty"`
	ReceiverID *uuid.UUID      `json:"receiver_id,omitempty"`
}

// Validate validates the create transaction request
func (r *CreateTransactionRequest) Validate() error {
	if r.AccountID == uuid.Nil {
		return fmt.Errorf("account_id is required")
	}
	if err := r.Type.Validate(); err != nil {
		return err
	}
	if !r.Amount.IsPositive() {
		return fmt.Errorf("amount must be strictly positive")
	}
	if r.Type == TransactionTypeTransfer {
		if r.ReceiverID == nil || *r.ReceiverID == uuid.Nil {
			return fmt.Errorf("receiver_id is required for transfers")
		}
		if *r.ReceiverID == r.AccountID {
			return fmt.Errorf("cannot transfer to the same account")
		}
	}
	return nil
}

// ValidateIdempotencyKey checks the optional client token
func ValidateIdempotencyKey(key string) error {
	if key == "" {
		return fmt.Errorf("idempotency key cannot be empty")
	}
	if len(key) > MaxIdempotencyKeyLength {
		return fmt.Errorf("idempotency key exceeds %d characters", MaxIdempotencyKeyLength)
	}
	return nil
}

// ErrorResponse is the standard error payload returned by the API
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
